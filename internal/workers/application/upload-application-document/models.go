package uploadapplicationdocument

// Input carries one document. Content is base64 in the job variables.
type Input struct {
	TenderID    string `json:"tenderId"`
	BidderID    string `json:"bidderId"`
	Stage       string `json:"stage"`
	FieldName   string `json:"fieldName"`
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	Content     []byte `json:"content"`
}

type Output struct {
	ApplicationID string `json:"applicationId"`
	Stage         string `json:"stage"`
	FieldName     string `json:"fieldName"`
	Status        string `json:"status"`
	Resumed       bool   `json:"resumed"`
}
