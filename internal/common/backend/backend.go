// Package backend describes the procurement REST backend the tender workflow
// runs against and provides an HTTP implementation of it.
package backend

import (
	"context"

	"github.com/shopspring/decimal"

	"tender-workflow/internal/tender/requirement"
)

// Application statuses reported on tender details.
const (
	ApplicationStatusNotFound  = "NOT_FOUND"
	ApplicationStatusDraft     = "DRAFT"
	ApplicationStatusSubmitted = "SUBMITTED"
)

// EnquirySuccess is the only push enquiry code treated as a confirmed payment.
const EnquirySuccess = "SUCCESS"

// Payment sources.
const (
	SourceWallet = "WALLET"
	SourceMobile = "MOBILE"
)

// TenderDetails is what a bidder sees when opening a tender.
type TenderDetails struct {
	ID                string             `json:"id"`
	Title             string             `json:"title"`
	Description       string             `json:"description"`
	ApplicationStatus string             `json:"applicationStatus"`
	ApplicationID     string             `json:"applicationId,omitempty"`
	ApplicationFee    decimal.Decimal    `json:"applicationFee"`
	ConsultationFee   decimal.Decimal    `json:"consultationFee"`
	FeePaid           bool               `json:"feePaid"`
	Requirements      []requirement.Item `json:"requirements"`
}

// TenderForm is the metadata persisted alongside a requirement schema.
type TenderForm struct {
	Title           string
	Description     string
	CloseDate       string
	ApplicationFee  decimal.Decimal
	ConsultationFee decimal.Decimal
	Requirements    []requirement.Item
}

// UploadRequest is one application document.
type UploadRequest struct {
	TenderID         string
	DocumentType     string
	RequirementStage string
	FileName         string
	ContentType      string
	Content          []byte
}

// UploadResponse may carry the server assigned applicationId.
type UploadResponse struct {
	ApplicationID string `json:"applicationId,omitempty"`
}

// PaymentForm is a synchronous debit, used for wallet fee payment.
type PaymentForm struct {
	TenderID string          `json:"tenderId"`
	BidderID string          `json:"bidderId"`
	Amount   decimal.Decimal `json:"amount"`
	Source   string          `json:"source"`
	Reason   string          `json:"paymentReason"`
}

// PushRequest starts a USSD push.
type PushRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	PhoneNumber   string          `json:"phoneNumber"`
	MNO           string          `json:"mno"`
	Source        string          `json:"source"`
	PaymentReason string          `json:"paymentReason"`
}

type PushResponse struct {
	ID string `json:"id"`
}

type EnquiryResponse struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

type WalletBalance struct {
	Balance decimal.Decimal `json:"balance"`
}

// TenderService persists and reads tenders.
type TenderService interface {
	GetTenderDetails(ctx context.Context, tenderID string) (*TenderDetails, error)
	CreateTender(ctx context.Context, form TenderForm) (string, error)
	UpdateTender(ctx context.Context, tenderID string, form TenderForm) error
}

// ApplicationService handles bidder documents and the final review call.
type ApplicationService interface {
	UploadApplicationDocument(ctx context.Context, req UploadRequest) (*UploadResponse, error)
	ReviewApplication(ctx context.Context, applicationID, status string) error
}

// PaymentService covers direct debit, wallet lookup and the push/poll protocol.
type PaymentService interface {
	CreatePayment(ctx context.Context, form PaymentForm) error
	GetWalletBalance(ctx context.Context, bidderID string) (*WalletBalance, error)
	USSDPushRequest(ctx context.Context, req PushRequest) (*PushResponse, error)
	USSDPushEnquiry(ctx context.Context, requestID string) (*EnquiryResponse, error)
}

// Backend is the full collaborator surface.
type Backend interface {
	TenderService
	ApplicationService
	PaymentService
}
