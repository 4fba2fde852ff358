package validaterequirementschema

import "encoding/json"

type Input struct {
	TenderID     string          `json:"tenderId"`
	Requirements json.RawMessage `json:"requirements"`
}

type Output struct {
	Valid     bool           `json:"valid"`
	Total     float64        `json:"total"`
	ItemCount int            `json:"itemCount"`
	PerStage  map[string]int `json:"perStage"`
}
