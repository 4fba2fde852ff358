package checkapplicationgate

type Input struct {
	TenderID string `json:"tenderId"`
	BidderID string `json:"bidderId"`
}

type ChecklistEntry struct {
	Stage  string   `json:"stage"`
	Fields []string `json:"fields"`
}

type Output struct {
	Locked        bool             `json:"locked"`
	GateState     string           `json:"gateState,omitempty"`
	GateOpen      bool             `json:"gateOpen"`
	Balance       string           `json:"balance,omitempty"`
	Threshold     string           `json:"threshold"`
	Steps         []string         `json:"steps"`
	Checklist     []ChecklistEntry `json:"checklist"`
	ApplicationID string           `json:"applicationId,omitempty"`
}
