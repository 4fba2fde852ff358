package backend

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"tender-workflow/internal/common/auth"
	"tender-workflow/internal/common/errors"
	commonhttp "tender-workflow/internal/common/http"
	"tender-workflow/internal/common/logger"
	"tender-workflow/internal/tender/requirement"
)

const tracerName = "tender-workflow/backend"

// APIError is a non-2xx answer from the backend. Message is the server text,
// passed to users verbatim.
type APIError struct {
	Operation  string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: backend returned %d: %s", e.Operation, e.StatusCode, e.Message)
}

// ServerMessage extracts the backend's message from err, falling back to err's text.
func ServerMessage(err error) string {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// Client is the REST implementation of Backend.
type Client struct {
	baseURL string
	http    *commonhttp.Client
	logger  logger.Logger
}

var _ Backend = (*Client)(nil)

// NewClient builds a REST client. tokens may be nil for unauthenticated backends.
func NewClient(baseURL string, timeout time.Duration, tokens auth.TokenSource, log logger.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    commonhttp.NewClient(timeout, tokens),
		logger:  log.WithFields(map[string]interface{}{"component": "backend-client"}),
	}
}

func (c *Client) GetTenderDetails(ctx context.Context, tenderID string) (*TenderDetails, error) {
	var out TenderDetails
	path := "/tenders/" + url.PathEscape(tenderID)
	if err := c.doJSON(ctx, "getTenderDetails", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if out.ApplicationStatus == "" {
		out.ApplicationStatus = ApplicationStatusNotFound
	}
	return &out, nil
}

func (c *Client) CreateTender(ctx context.Context, form TenderForm) (string, error) {
	body, contentType, err := encodeTenderForm(form)
	if err != nil {
		return "", err
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, "createTender", http.MethodPost, "/tenders", contentType, body, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) UpdateTender(ctx context.Context, tenderID string, form TenderForm) error {
	body, contentType, err := encodeTenderForm(form)
	if err != nil {
		return err
	}
	path := "/tenders/" + url.PathEscape(tenderID)
	return c.do(ctx, "updateTender", http.MethodPut, path, contentType, body, nil)
}

func (c *Client) UploadApplicationDocument(ctx context.Context, req UploadRequest) (*UploadResponse, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	fields := [][2]string{
		{"tenderId", req.TenderID},
		{"documentType", req.DocumentType},
		{"requirementStage", req.RequirementStage},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, err
		}
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, req.FileName))
	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(req.Content); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	var out UploadResponse
	if err := c.do(ctx, "uploadApplicationDocument", http.MethodPost, "/applications/documents", w.FormDataContentType(), buf, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ReviewApplication(ctx context.Context, applicationID, status string) error {
	path := "/applications/" + url.PathEscape(applicationID) + "/review"
	return c.doJSON(ctx, "reviewApplication", http.MethodPut, path, map[string]string{"status": status}, nil)
}

func (c *Client) CreatePayment(ctx context.Context, form PaymentForm) error {
	return c.doJSON(ctx, "createPayment", http.MethodPost, "/payments", form, nil)
}

func (c *Client) GetWalletBalance(ctx context.Context, bidderID string) (*WalletBalance, error) {
	var out WalletBalance
	path := "/wallets/" + url.PathEscape(bidderID) + "/balance"
	if err := c.doJSON(ctx, "getWalletBalance", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) USSDPushRequest(ctx context.Context, req PushRequest) (*PushResponse, error) {
	var out PushResponse
	if err := c.doJSON(ctx, "ussdPushRequest", http.MethodPost, "/payments/ussd-push", req, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, &APIError{Operation: "ussdPushRequest", StatusCode: http.StatusOK, Message: "push request returned no id"}
	}
	return &out, nil
}

func (c *Client) USSDPushEnquiry(ctx context.Context, requestID string) (*EnquiryResponse, error) {
	var out EnquiryResponse
	path := "/payments/ussd-push/" + url.PathEscape(requestID)
	if err := c.doJSON(ctx, "ussdPushEnquiry", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, in, out interface{}) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.do(ctx, op, method, path, contentType, body, out)
}

func (c *Client) do(ctx context.Context, op, method, path, contentType string, body io.Reader, out interface{}) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "backend."+op)
	defer span.End()
	span.SetAttributes(attribute.String("http.method", method), attribute.String("http.path", path))

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.DoWithContext(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		c.logger.Warn("backend call failed", map[string]interface{}{
			"operation": op,
			"error":     err.Error(),
		})
		return errors.NewBackendUnavailableError(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewBackendUnavailableError(op, err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	c.logger.Debug("backend call", map[string]interface{}{
		"operation":   op,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	if resp.StatusCode >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, resp.Status)
		return errors.NewBackendUnavailableError(op, &APIError{Operation: op, StatusCode: resp.StatusCode, Message: decodeMessage(data)})
	}
	if resp.StatusCode >= http.StatusBadRequest {
		span.SetStatus(codes.Error, resp.Status)
		return &APIError{Operation: op, StatusCode: resp.StatusCode, Message: decodeMessage(data)}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func decodeMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return strings.TrimSpace(string(data))
}

func encodeTenderForm(form TenderForm) (io.Reader, string, error) {
	payload, err := requirement.MarshalPayload(form.Requirements)
	if err != nil {
		return nil, "", err
	}

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	fields := [][2]string{
		{"title", form.Title},
		{"description", form.Description},
		{"closeDate", form.CloseDate},
		{"applicationFee", form.ApplicationFee.String()},
		{"consultationFee", form.ConsultationFee.String()},
		{"requirements", string(payload)},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}
