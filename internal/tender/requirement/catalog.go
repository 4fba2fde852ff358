package requirement

// Catalog lists the selectable field names per stage.
type Catalog map[Stage][]string

// DefaultCatalog is the document picker offered to procurement entities.
func DefaultCatalog() Catalog {
	return Catalog{
		StagePreliminary: {
			"CV",
			"CERTIFICATE_OF_INCORPORATION",
			"BUSINESS_LICENSE",
			"TAX_CLEARANCE",
			"VAT_REGISTRATION",
			"POWER_OF_ATTORNEY",
		},
		StageTechnical: {
			"TECHNICAL_PROPOSAL",
			"METHODOLOGY",
			"WORK_PLAN",
			"KEY_PERSONNEL",
			"EQUIPMENT_LIST",
			"PAST_EXPERIENCE",
		},
		StageCommercial: {
			"PRICE_SCHEDULE",
			"BID_FORM",
			"BID_SECURITY",
			"PAYMENT_TERMS",
		},
		StageFinancial: {
			"AUDITED_ACCOUNTS",
			"BANK_STATEMENT",
			"LINE_OF_CREDIT",
		},
		StageConsent: {
			"DECLARATION_OF_CONSENT",
			"CONFLICT_OF_INTEREST_DECLARATION",
		},
	}
}

func (c Catalog) contains(stage Stage, name string) bool {
	for _, n := range c[stage] {
		if n == name {
			return true
		}
	}
	return false
}
