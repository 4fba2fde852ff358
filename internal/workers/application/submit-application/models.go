package submitapplication

type Input struct {
	TenderID      string `json:"tenderId"`
	BidderID      string `json:"bidderId"`
	ApplicationID string `json:"applicationId"`
	ConsentGiven  bool   `json:"consentGiven"`
}

type Output struct {
	ApplicationID    string `json:"applicationId"`
	Status           string `json:"status"`
	AlreadySubmitted bool   `json:"alreadySubmitted"`
}
