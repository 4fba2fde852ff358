// Package requirement models the weighted, per-stage document requirements a
// procurement entity attaches to a tender, and the designer used to author them.
package requirement

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Stage is a named phase of document collection.
type Stage string

const (
	StageDetails     Stage = "DETAILS"
	StagePayment     Stage = "PAYMENT"
	StagePreliminary Stage = "PRELIMINARY"
	StageTechnical   Stage = "TECHNICAL"
	StageCommercial  Stage = "COMMERCIAL"
	StageFinancial   Stage = "FINANCIAL"
	StageConsent     Stage = "CONSENT"
)

// DesignerStages are the stages a procurement entity can attach requirements to, in display order.
var DesignerStages = []Stage{
	StagePreliminary,
	StageTechnical,
	StageCommercial,
	StageFinancial,
	StageConsent,
}

// DocumentStages are the wizard stages whose progress is gated on uploaded documents.
var DocumentStages = []Stage{
	StagePreliminary,
	StageTechnical,
	StageCommercial,
}

// ProofOfPayment is the field uploaded on the PAYMENT step.
const ProofOfPayment = "PROOF_OF_PAYMENT"

// IsDesignerStage reports whether requirements may be authored for s.
func (s Stage) IsDesignerStage() bool {
	for _, d := range DesignerStages {
		if d == s {
			return true
		}
	}
	return false
}

// Valid reports whether s is any known stage.
func (s Stage) Valid() bool {
	switch s {
	case StageDetails, StagePayment, StagePreliminary, StageTechnical,
		StageCommercial, StageFinancial, StageConsent:
		return true
	}
	return false
}

func (s Stage) String() string {
	return string(s)
}

// ParseStage accepts any casing.
func ParseStage(raw string) (Stage, error) {
	s := Stage(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown requirement stage %q", raw)
	}
	return s, nil
}

// UnmarshalJSON rejects unknown stages so new ones cannot be silently ignored.
func (s *Stage) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseStage(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
