package confirmpayment

import "github.com/shopspring/decimal"

type Input struct {
	TenderID      string          `json:"tenderId"`
	BidderID      string          `json:"bidderId"`
	Amount        decimal.Decimal `json:"amount"`
	PhoneNumber   string          `json:"phoneNumber"`
	MNO           string          `json:"mno"`
	Source        string          `json:"source"`
	PaymentReason string          `json:"paymentReason"`
}

type Output struct {
	RequestID string `json:"requestId"`
	Confirmed bool   `json:"confirmed"`
	Attempts  int    `json:"attempts"`
}
