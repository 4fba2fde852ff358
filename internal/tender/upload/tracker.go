// Package upload tracks the per-document upload lifecycle of one application
// wizard session and correlates uploads to the server assigned applicationId.
package upload

import (
	"context"
	stderrors "errors"
	"sort"
	"strings"
	"sync"

	"tender-workflow/internal/common/backend"
	"tender-workflow/internal/common/errors"
	"tender-workflow/internal/common/logger"
	"tender-workflow/internal/common/metrics"
	"tender-workflow/internal/tender/requirement"
)

// Status of one document key.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusUploading Status = "uploading"
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
)

// Key identifies a document slot.
type Key struct {
	Stage     requirement.Stage
	FieldName string
}

func (k Key) String() string {
	return string(k.Stage) + "/" + k.FieldName
}

// File is a selected file.
type File struct {
	Name        string
	ContentType string
	Content     []byte
}

// Document is a snapshot of one slot.
type Document struct {
	Key         Key
	FileName    string
	Status      Status
	PreviewPath string
	Err         error
}

// Uploader is the backend operation the tracker drives.
type Uploader interface {
	UploadApplicationDocument(ctx context.Context, req backend.UploadRequest) (*backend.UploadResponse, error)
}

// Dependencies holds the tracker's collaborators. Previewer and IDStore are optional.
type Dependencies struct {
	Uploader  Uploader
	Previewer Previewer
	IDStore   IDStore
}

type entry struct {
	file    File
	status  Status
	preview Preview
	gen     uint64
	err     error
}

// Tracker is safe for concurrent use: uploads for different keys may be in
// flight at the same time. A result only lands on its key if no newer
// selection or removal happened for that key meanwhile.
type Tracker struct {
	tenderID  string
	uploader  Uploader
	previewer Previewer
	ids       IDStore
	logger    logger.Logger

	mu      sync.Mutex
	entries map[Key]*entry
	gen     uint64
	appID   string
	closed  bool
}

func NewTracker(tenderID string, deps Dependencies, log logger.Logger) *Tracker {
	ids := deps.IDStore
	if ids == nil {
		ids = NewMemoryIDStore("")
	}
	return &Tracker{
		tenderID:  tenderID,
		uploader:  deps.Uploader,
		previewer: deps.Previewer,
		ids:       ids,
		logger:    log.WithFields(map[string]interface{}{"component": "upload-tracker", "tenderId": tenderID}),
		entries:   make(map[Key]*entry),
	}
}

// Resume adopts an applicationId already known to the IDStore.
func (t *Tracker) Resume(ctx context.Context) error {
	id, err := t.ids.Get(ctx)
	if err != nil {
		return err
	}
	if id == "" {
		return nil
	}
	t.mu.Lock()
	if t.appID == "" {
		t.appID = id
	}
	t.mu.Unlock()
	t.logger.Info("resumed application", map[string]interface{}{"applicationId": id})
	return nil
}

// Upload marks key uploading, opens a preview and sends the document. It blocks
// until the backend answers; callers run uploads for separate keys concurrently.
func (t *Tracker) Upload(ctx context.Context, key Key, file File) error {
	if !key.Stage.Valid() || key.FieldName == "" {
		return errors.NewValidationError("document key must name a known stage and a field")
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return errors.NewPreconditionFailedError("upload tracker is closed")
	}
	t.gen++
	gen := t.gen
	if old, ok := t.entries[key]; ok {
		t.releaseLocked(key, old)
	}
	t.entries[key] = &entry{file: file, status: StatusUploading, gen: gen}
	t.mu.Unlock()

	t.attachPreview(key, gen, file)

	metrics.DocumentUploadsInFlight.Inc()
	resp, err := t.uploader.UploadApplicationDocument(ctx, backend.UploadRequest{
		TenderID:         t.tenderID,
		DocumentType:     strings.ToUpper(key.FieldName),
		RequirementStage: string(key.Stage),
		FileName:         file.Name,
		ContentType:      file.ContentType,
		Content:          file.Content,
	})
	metrics.DocumentUploadsInFlight.Dec()

	if err == nil && resp != nil && resp.ApplicationID != "" {
		t.adopt(ctx, resp.ApplicationID)
	}

	var uploadErr error
	if err != nil {
		uploadErr = errors.NewUploadFailedError(string(key.Stage), key.FieldName, err)
	}

	t.mu.Lock()
	cur, ok := t.entries[key]
	current := ok && cur.gen == gen
	if current {
		if uploadErr != nil {
			cur.status = StatusFailed
			cur.err = uploadErr
			t.releasePreviewLocked(key, cur)
		} else {
			cur.status = StatusDone
		}
	}
	t.mu.Unlock()

	outcome := string(StatusDone)
	if uploadErr != nil {
		outcome = string(StatusFailed)
	}
	metrics.DocumentUploads.WithLabelValues(string(key.Stage), outcome).Inc()

	if !current {
		t.logger.Debug("upload result superseded", map[string]interface{}{"key": key.String()})
	}
	if uploadErr != nil {
		t.logger.Warn("document upload failed", map[string]interface{}{
			"key":   key.String(),
			"error": err.Error(),
		})
		return uploadErr
	}
	return nil
}

func (t *Tracker) attachPreview(key Key, gen uint64, file File) {
	if t.previewer == nil {
		return
	}
	preview, err := t.previewer.Open(key, file)
	if err != nil {
		t.logger.Warn("preview unavailable", map[string]interface{}{"key": key.String(), "error": err.Error()})
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.entries[key]; ok && cur.gen == gen && !t.closed {
		cur.preview = preview
		return
	}
	if err := preview.Release(); err != nil {
		t.logger.Warn("failed to release preview", map[string]interface{}{"key": key.String(), "error": err.Error()})
	}
}

// adopt keeps the first applicationId seen. Later ids are ignored.
func (t *Tracker) adopt(ctx context.Context, id string) {
	t.mu.Lock()
	known := t.appID
	t.mu.Unlock()
	if known != "" {
		if known != id {
			t.logger.Debug("ignoring later applicationId", map[string]interface{}{"kept": known, "ignored": id})
		}
		return
	}

	stored, err := t.ids.SetIfAbsent(ctx, id)
	if err != nil || stored == "" {
		t.logger.Warn("correlation store unavailable, keeping id locally", map[string]interface{}{
			"applicationId": id,
			"error":         errString(err),
		})
		stored = id
	}

	t.mu.Lock()
	if t.appID == "" {
		t.appID = stored
		t.logger.Info("adopted applicationId", map[string]interface{}{"applicationId": stored})
	}
	t.mu.Unlock()
}

// Remove clears the slot locally. Nothing is deleted server side.
func (t *Tracker) Remove(key Key) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[key]
	if !ok {
		return nil
	}
	delete(t.entries, key)
	return t.releaseLocked(key, e)
}

// Status is idle for unknown keys.
func (t *Tracker) Status(key Key) Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[key]; ok {
		return e.status
	}
	return StatusIdle
}

// IsDone reports a completed upload, not merely a selection.
func (t *Tracker) IsDone(key Key) bool {
	return t.Status(key) == StatusDone
}

func (t *Tracker) Document(key Key) (Document, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[key]
	if !ok {
		return Document{Key: key, Status: StatusIdle}, false
	}
	return snapshot(key, e), true
}

// Documents lists every tracked slot ordered by key.
func (t *Tracker) Documents() []Document {
	t.mu.Lock()
	out := make([]Document, 0, len(t.entries))
	for k, e := range t.entries {
		out = append(out, snapshot(k, e))
	}
	t.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key.String() < out[j].Key.String() })
	return out
}

// Uploading reports whether any slot is still in flight.
func (t *Tracker) Uploading() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.entries {
		if e.status == StatusUploading {
			return true
		}
	}
	return false
}

// ApplicationID is empty until the first successful upload (or Resume).
func (t *Tracker) ApplicationID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.appID
}

// Close releases every preview regardless of upload state. In-flight uploads
// still complete but their results are dropped.
func (t *Tracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	var errs []error
	for k, e := range t.entries {
		if err := t.releaseLocked(k, e); err != nil {
			errs = append(errs, err)
		}
	}
	t.entries = make(map[Key]*entry)
	return stderrors.Join(errs...)
}

func (t *Tracker) releaseLocked(key Key, e *entry) error {
	e.file = File{}
	return t.releasePreviewLocked(key, e)
}

func (t *Tracker) releasePreviewLocked(key Key, e *entry) error {
	if e.preview == nil {
		return nil
	}
	p := e.preview
	e.preview = nil
	if err := p.Release(); err != nil {
		t.logger.Warn("failed to release preview", map[string]interface{}{"key": key.String(), "error": err.Error()})
		return err
	}
	return nil
}

func snapshot(key Key, e *entry) Document {
	d := Document{Key: key, FileName: e.file.Name, Status: e.status, Err: e.err}
	if e.preview != nil {
		d.PreviewPath = e.preview.Path()
	}
	return d
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
