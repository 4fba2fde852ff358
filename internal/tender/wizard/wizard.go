// Package wizard implements the bidder application wizard: a gated step
// sequence over the tender's requirement schema ending in final submission.
package wizard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"tender-workflow/internal/common/backend"
	"tender-workflow/internal/common/errors"
	"tender-workflow/internal/common/logger"
	"tender-workflow/internal/common/metrics"
	"tender-workflow/internal/tender/notify"
	"tender-workflow/internal/tender/requirement"
	"tender-workflow/internal/tender/upload"
)

// LockedNotice is shown instead of any step once an application is submitted.
const LockedNotice = "This application has already been submitted and can no longer be changed."

// Action is an interactive control offered on the current step.
type Action string

const (
	ActionBack    Action = "BACK"
	ActionNext    Action = "NEXT"
	ActionUpload  Action = "UPLOAD"
	ActionConsent Action = "CONSENT"
	ActionSubmit  Action = "SUBMIT"
)

// DocumentTracker is the upload lifecycle the wizard gates on. *upload.Tracker implements it.
type DocumentTracker interface {
	Upload(ctx context.Context, key upload.Key, file upload.File) error
	Remove(key upload.Key) error
	IsDone(key upload.Key) bool
	ApplicationID() string
	Close() error
}

// Reviewer performs the final review/submit call.
type Reviewer interface {
	ReviewApplication(ctx context.Context, applicationID, status string) error
}

type Options struct {
	PaymentStepOnZeroFee bool
}

type Dependencies struct {
	Documents DocumentTracker
	Reviewer  Reviewer
	Notifier  notify.Notifier
	// OnSubmitted runs once after a successful submission.
	OnSubmitted func(applicationID string)
}

// State is a snapshot of the wizard.
type State struct {
	Steps         []requirement.Stage
	CurrentIndex  int
	Completed     []int
	ConsentGiven  bool
	ApplicationID string
	Locked        bool
	Closed        bool
}

// View is what a surface should render.
type View struct {
	Locked    bool
	Notice    string
	Step      requirement.Stage
	Index     int
	Checklist []ChecklistEntry
	Actions   []Action
}

type Wizard struct {
	tender   *backend.TenderDetails
	steps    []requirement.Stage
	byStage  map[requirement.Stage][]requirement.Item
	docs     DocumentTracker
	reviewer Reviewer
	notifier notify.Notifier
	onSubmit func(string)
	logger   logger.Logger

	mu         sync.Mutex
	current    int
	completed  map[int]bool
	consent    bool
	locked     bool
	closed     bool
	submitting bool
}

// Open builds the wizard for a tender. A tender whose application is already
// SUBMITTED opens locked.
func Open(tender *backend.TenderDetails, opts Options, deps Dependencies, log logger.Logger) *Wizard {
	n := deps.Notifier
	if n == nil {
		n = notify.Nop{}
	}
	w := &Wizard{
		tender:    tender,
		steps:     BuildSteps(tender.ApplicationFee, opts.PaymentStepOnZeroFee),
		byStage:   requirement.GroupByStage(tender.Requirements),
		docs:      deps.Documents,
		reviewer:  deps.Reviewer,
		notifier:  n,
		onSubmit:  deps.OnSubmitted,
		logger:    log.WithFields(map[string]interface{}{"component": "application-wizard", "tenderId": tender.ID}),
		completed: make(map[int]bool),
		locked:    tender.ApplicationStatus == backend.ApplicationStatusSubmitted,
	}
	if w.locked {
		w.logger.Info("wizard opened on submitted application", nil)
	}
	return w
}

func (w *Wizard) Steps() []requirement.Stage {
	return append([]requirement.Stage(nil), w.steps...)
}

func (w *Wizard) CurrentIndex() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

func (w *Wizard) CurrentStep() requirement.Stage {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.steps[w.current]
}

func (w *Wizard) Locked() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.locked
}

// Checklist returns the required field names per stage for the DETAILS view.
func (w *Wizard) Checklist() []ChecklistEntry {
	return BuildChecklist(w.tender.Requirements)
}

// CanProceed evaluates the completion rule of step.
func (w *Wizard) CanProceed(step requirement.Stage) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.missingLocked(step) == nil
}

// missingLocked returns what blocks step, or nil when it is complete.
func (w *Wizard) missingLocked(step requirement.Stage) []string {
	switch step {
	case requirement.StageDetails:
		return nil
	case requirement.StagePayment:
		if w.docs.IsDone(upload.Key{Stage: requirement.StagePayment, FieldName: requirement.ProofOfPayment}) {
			return nil
		}
		return []string{requirement.ProofOfPayment}
	case requirement.StagePreliminary, requirement.StageTechnical, requirement.StageCommercial:
		var missing []string
		for _, it := range w.byStage[step] {
			if !it.Required {
				continue
			}
			if !w.docs.IsDone(upload.Key{Stage: step, FieldName: it.FieldName}) {
				missing = append(missing, it.FieldName)
			}
		}
		return missing
	case requirement.StageConsent:
		if w.consent {
			return nil
		}
		return []string{"consent"}
	}
	return []string{"unknown step " + string(step)}
}

// Next advances one step if the current step is complete.
func (w *Wizard) Next() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.mutableLocked(); err != nil {
		return err
	}
	if w.current == len(w.steps)-1 {
		return errors.NewPreconditionFailedError("already on the final step")
	}

	step := w.steps[w.current]
	if missing := w.missingLocked(step); missing != nil {
		err := errors.NewValidationError(blockedMessage(step, missing)).
			WithMetadata("stage", string(step))
		w.notifier.Notify(notify.FromError(err))
		return err
	}
	w.completed[w.current] = true
	w.current++
	w.logger.Debug("wizard advanced", map[string]interface{}{"step": string(w.steps[w.current])})
	return nil
}

// Back moves one step backwards without re-validation.
func (w *Wizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.mutableLocked(); err != nil {
		return err
	}
	if w.current > 0 {
		w.current--
	}
	return nil
}

// JumpTo allows index 0 or any step whose predecessor is completed.
func (w *Wizard) JumpTo(index int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.mutableLocked(); err != nil {
		return err
	}
	if index < 0 || index >= len(w.steps) {
		return errors.NewValidationError(fmt.Sprintf("step %d does not exist", index))
	}
	if index != 0 && !w.completed[index-1] {
		return errors.NewPreconditionFailedError(
			fmt.Sprintf("complete %s before opening %s", w.steps[index-1], w.steps[index]))
	}
	w.current = index
	return nil
}

// SetConsent toggles the terms checkbox on the CONSENT step.
func (w *Wizard) SetConsent(given bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.mutableLocked(); err != nil {
		return err
	}
	w.consent = given
	return nil
}

// Upload sends one document. Failures are reported to the notifier and
// returned; sibling uploads are unaffected.
func (w *Wizard) Upload(ctx context.Context, key upload.Key, file upload.File) error {
	w.mu.Lock()
	err := w.mutableLocked()
	if err == nil {
		err = w.acceptsLocked(key)
	}
	w.mu.Unlock()
	if err != nil {
		return err
	}

	if err := w.docs.Upload(ctx, key, file); err != nil {
		w.notifier.Notify(notify.FromError(err))
		return err
	}
	return nil
}

// RemoveDocument clears a slot locally; the server copy is not retracted.
func (w *Wizard) RemoveDocument(key upload.Key) error {
	w.mu.Lock()
	err := w.mutableLocked()
	w.mu.Unlock()
	if err != nil {
		return err
	}
	return w.docs.Remove(key)
}

func (w *Wizard) acceptsLocked(key upload.Key) error {
	if key.Stage == requirement.StagePayment {
		if !w.hasStep(requirement.StagePayment) {
			return errors.NewValidationError("this tender has no payment step")
		}
		if key.FieldName != requirement.ProofOfPayment {
			return errors.NewValidationError("the payment step only accepts " + requirement.ProofOfPayment)
		}
		return nil
	}
	for _, it := range w.byStage[key.Stage] {
		if it.FieldName == key.FieldName {
			return nil
		}
	}
	return errors.NewValidationError(fmt.Sprintf("%s is not a requirement of stage %s", key.FieldName, key.Stage))
}

func (w *Wizard) hasStep(stage requirement.Stage) bool {
	for _, s := range w.steps {
		if s == stage {
			return true
		}
	}
	return false
}

// Submit sends the application for review. It is only reachable from the
// final step. A rejection keeps the wizard on CONSENT with state intact.
func (w *Wizard) Submit(ctx context.Context) error {
	w.mu.Lock()
	if err := w.mutableLocked(); err != nil {
		w.mu.Unlock()
		return err
	}
	if w.current != len(w.steps)-1 {
		w.mu.Unlock()
		return errors.NewPreconditionFailedError("submit is only available on the final step")
	}
	if w.submitting {
		w.mu.Unlock()
		return errors.NewPreconditionFailedError("submission already in progress")
	}
	if !w.consent {
		w.mu.Unlock()
		err := errors.NewValidationError("must agree to terms")
		w.notifier.Notify(notify.FromError(err))
		return err
	}
	appID := w.docs.ApplicationID()
	if appID == "" {
		w.mu.Unlock()
		err := errors.NewPreconditionFailedError("upload documents first")
		w.notifier.Notify(notify.FromError(err))
		return err
	}
	w.submitting = true
	w.mu.Unlock()

	err := w.reviewer.ReviewApplication(ctx, appID, backend.ApplicationStatusSubmitted)

	w.mu.Lock()
	w.submitting = false
	if err != nil {
		w.mu.Unlock()
		rejected := errors.NewSubmitRejectedError(backend.ServerMessage(err), err).
			WithMetadata("applicationId", appID)
		metrics.ApplicationSubmissions.WithLabelValues("rejected").Inc()
		w.logger.Warn("application submission rejected", map[string]interface{}{
			"applicationId": appID,
			"error":         err.Error(),
		})
		w.notifier.Notify(notify.FromError(rejected))
		return rejected
	}
	w.locked = true
	w.mu.Unlock()

	metrics.ApplicationSubmissions.WithLabelValues("submitted").Inc()
	w.logger.Info("application submitted", map[string]interface{}{"applicationId": appID})
	w.notifier.Notify(notify.Notification{Level: notify.LevelInfo, Message: "application submitted"})
	if w.onSubmit != nil {
		w.onSubmit(appID)
	}
	return w.Close()
}

// Close tears the wizard down and releases every document preview.
func (w *Wizard) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()
	return w.docs.Close()
}

// State returns a snapshot.
func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	completed := make([]int, 0, len(w.completed))
	for i := range w.completed {
		completed = append(completed, i)
	}
	sort.Ints(completed)
	return State{
		Steps:         append([]requirement.Stage(nil), w.steps...),
		CurrentIndex:  w.current,
		Completed:     completed,
		ConsentGiven:  w.consent,
		ApplicationID: w.docs.ApplicationID(),
		Locked:        w.locked,
		Closed:        w.closed,
	}
}

// View describes what to render. A locked wizard offers no controls at all.
func (w *Wizard) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.locked {
		return View{Locked: true, Notice: LockedNotice}
	}

	step := w.steps[w.current]
	v := View{Step: step, Index: w.current}
	if w.current > 0 {
		v.Actions = append(v.Actions, ActionBack)
	}
	switch step {
	case requirement.StageDetails:
		v.Checklist = BuildChecklist(w.tender.Requirements)
	case requirement.StagePayment, requirement.StagePreliminary, requirement.StageTechnical, requirement.StageCommercial:
		v.Actions = append(v.Actions, ActionUpload)
	case requirement.StageConsent:
		v.Actions = append(v.Actions, ActionConsent)
	}
	if w.current == len(w.steps)-1 {
		v.Actions = append(v.Actions, ActionSubmit)
	} else {
		v.Actions = append(v.Actions, ActionNext)
	}
	return v
}

func (w *Wizard) mutableLocked() error {
	if w.locked {
		return errors.NewApplicationLockedError(w.tender.ApplicationID)
	}
	if w.closed {
		return errors.NewPreconditionFailedError("wizard is closed")
	}
	return nil
}

func blockedMessage(step requirement.Stage, missing []string) string {
	switch step {
	case requirement.StageConsent:
		return "must agree to terms"
	case requirement.StagePayment:
		return "upload proof of payment first"
	}
	return fmt.Sprintf("required documents missing for %s: %s", step, strings.Join(missing, ", "))
}
