package submitapplication

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tender-workflow/internal/common/backend"
	"tender-workflow/internal/common/errors"
	"tender-workflow/internal/common/events"
	"tender-workflow/internal/common/logger"
	"tender-workflow/internal/store"
)

type stubTenders struct {
	status string
}

func (s stubTenders) GetTenderDetails(_ context.Context, id string) (*backend.TenderDetails, error) {
	return &backend.TenderDetails{ID: id, ApplicationStatus: s.status}, nil
}

type recordingReviewer struct {
	calls []string
	err   error
}

func (r *recordingReviewer) ReviewApplication(_ context.Context, id, status string) error {
	r.calls = append(r.calls, id+":"+status)
	return r.err
}

type recordingLedger struct {
	records []store.SubmissionRecord
}

func (l *recordingLedger) RecordSubmission(_ context.Context, rec store.SubmissionRecord) error {
	l.records = append(l.records, rec)
	return nil
}

type recordingEvents struct {
	types []string
}

func (e *recordingEvents) Publish(_ context.Context, eventType string, _ map[string]interface{}) error {
	e.types = append(e.types, eventType)
	return nil
}

type recordingSideEffects struct {
	invalidated []string
	forgotten   []string
}

func (s *recordingSideEffects) Invalidate(_ context.Context, tenderID string) {
	s.invalidated = append(s.invalidated, tenderID)
}

func (s *recordingSideEffects) Forget(_ context.Context, tenderID, bidderID string) error {
	s.forgotten = append(s.forgotten, tenderID+"/"+bidderID)
	return nil
}

type fixture struct {
	handler  *Handler
	reviewer *recordingReviewer
	ledger   *recordingLedger
	events   *recordingEvents
	effects  *recordingSideEffects
}

func newFixture(t *testing.T, status string, reviewErr error) *fixture {
	f := &fixture{
		reviewer: &recordingReviewer{err: reviewErr},
		ledger:   &recordingLedger{},
		events:   &recordingEvents{},
		effects:  &recordingSideEffects{},
	}
	f.handler = NewHandler(LoadConfig(), Dependencies{
		Tenders:      stubTenders{status: status},
		Reviewer:     f.reviewer,
		Ledger:       f.ledger,
		Events:       f.events,
		Cache:        f.effects,
		Correlations: f.effects,
	}, nil, logger.NewTestLogger(t))
	return f
}

func validInput() *Input {
	return &Input{TenderID: "T-1", BidderID: "B-1", ApplicationID: "APP-1", ConsentGiven: true}
}

func TestHandler_Execute_Submits(t *testing.T) {
	f := newFixture(t, backend.ApplicationStatusDraft, nil)

	out, err := f.handler.Execute(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, &Output{ApplicationID: "APP-1", Status: "SUBMITTED"}, out)
	assert.Equal(t, []string{"APP-1:SUBMITTED"}, f.reviewer.calls)
	require.Len(t, f.ledger.records, 1)
	assert.Equal(t, "SUBMITTED", f.ledger.records[0].Status)
	assert.Equal(t, []string{events.ApplicationSubmitted}, f.events.types)
	assert.Equal(t, []string{"T-1"}, f.effects.invalidated)
	assert.Equal(t, []string{"T-1/B-1"}, f.effects.forgotten)
}

func TestHandler_Execute_Preconditions(t *testing.T) {
	tests := []struct {
		name  string
		input *Input
		code  errors.ErrorCode
		msg   string
	}{
		{
			name:  "no consent",
			input: &Input{TenderID: "T-1", ApplicationID: "APP-1"},
			code:  errors.ErrCodeValidation,
			msg:   "must agree to terms",
		},
		{
			name:  "no documents",
			input: &Input{TenderID: "T-1", ConsentGiven: true},
			code:  errors.ErrCodePreconditionFailed,
			msg:   "upload documents first",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, backend.ApplicationStatusDraft, nil)

			_, err := f.handler.Execute(context.Background(), tt.input)
			assert.Equal(t, tt.code, errors.CodeOf(err))
			assert.Equal(t, tt.msg, errors.MessageOf(err))
			assert.Empty(t, f.reviewer.calls)
		})
	}
}

func TestHandler_Execute_RejectedCarriesServerMessage(t *testing.T) {
	f := newFixture(t, backend.ApplicationStatusDraft, &backend.APIError{StatusCode: 422, Message: "missing tax clearance"})

	_, err := f.handler.Execute(context.Background(), validInput())
	assert.Equal(t, errors.ErrCodeSubmitRejected, errors.CodeOf(err))
	assert.Equal(t, "missing tax clearance", errors.MessageOf(err))
	require.Len(t, f.ledger.records, 1)
	assert.Equal(t, "REJECTED", f.ledger.records[0].Status)
	assert.Empty(t, f.events.types)
	assert.Empty(t, f.effects.forgotten)
}

func TestHandler_Execute_AlreadySubmittedIsIdempotent(t *testing.T) {
	f := newFixture(t, backend.ApplicationStatusSubmitted, nil)

	out, err := f.handler.Execute(context.Background(), validInput())
	require.NoError(t, err)
	assert.True(t, out.AlreadySubmitted)
	assert.Empty(t, f.reviewer.calls)
	assert.Empty(t, f.ledger.records)
}
