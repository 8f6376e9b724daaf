package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	api "github.com/autolot/dealer-admin/api/v1alpha1"
	"github.com/autolot/dealer-admin/internal/client"
	"github.com/autolot/dealer-admin/internal/events"
	"go.uber.org/zap"
)

const (
	DefaultPollInterval = 2 * time.Second

	// closeCancelTimeout bounds the best-effort session delete issued on Close.
	closeCancelTimeout = 5 * time.Second
)

var (
	ErrNoSession = &client.APIError{Kind: client.KindNotFound, Message: "No import session"}
	// ErrNotInPreview is returned when confirm is requested outside the preview stage.
	ErrNotInPreview = &client.APIError{Kind: client.KindValidation, Message: "Import can only be confirmed from the preview"}
	// ErrSuperseded means the job was reset while the request was in flight.
	ErrSuperseded = errors.New("import session was replaced")
)

type Options struct {
	// PollInterval is the delay between status checks. Defaults to 2s.
	PollInterval time.Duration
	// PollJitter is the standard deviation applied to every interval.
	PollJitter time.Duration
	Notifier   Notifier
	// OnRefresh is called once when an import reaches a completed status.
	OnRefresh     func(ctx context.Context)
	OnStageChange func(from, to Stage)
	Events        EventSink
	Logger        *zap.SugaredLogger
}

// Coordinator drives one bulk import at a time through
// upload -> preview -> importing -> complete. It is safe for concurrent use.
type Coordinator struct {
	service  ImportService
	opts     Options
	log      *zap.SugaredLogger
	notifier Notifier

	mu sync.Mutex
	job Job
	// generation changes on every reset so that in-flight results of a
	// discarded job are ignored.
	generation uint64
	poller     *poller
	// pollDone belongs to the last started poller and survives its detach.
	pollDone <-chan struct{}

	activePolls atomic.Int32
}

func NewCoordinator(service ImportService, opts Options) *Coordinator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.PollJitter < 0 {
		opts.PollJitter = 0
	}
	if opts.Logger == nil {
		opts.Logger = zap.S().Named("importer")
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = &logNotifier{log: opts.Logger}
	}

	return &Coordinator{
		service:  service,
		opts:     opts,
		log:      opts.Logger,
		notifier: notifier,
		job:      initialJob(),
	}
}

// Snapshot returns a copy of the current job.
func (c *Coordinator) Snapshot() Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.job.clone()
}

// ActivePolls returns the number of running status pollers. It is never more
// than one once the call that stopped the previous poller has returned.
func (c *Coordinator) ActivePolls() int {
	return int(c.activePolls.Load())
}

// Open prepares a fresh session.
func (c *Coordinator) Open() {
	c.ResetImport()
}

// Close ends the session. An import that was uploaded but not confirmed is
// cancelled on the server; a running import is left to finish there.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	stage, jobID := c.job.Stage, c.job.JobID
	c.mu.Unlock()

	if jobID != "" && (stage == StageUpload || stage == StagePreview) {
		ctx, cancel := context.WithTimeout(ctx, closeCancelTimeout)
		defer cancel()
		return c.CancelImport(ctx)
	}

	c.ResetImport()
	return nil
}

// ResetImport stops polling and returns every field to its initial value.
func (c *Coordinator) ResetImport() {
	from, p := c.reset()
	if p != nil {
		p.Stop()
	}
	c.stageChanged(from, StageUpload)
}

func (c *Coordinator) reset() (Stage, *poller) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.poller
	c.poller = nil
	c.generation++
	from := c.job.Stage
	c.job = initialJob()
	return from, p
}

// UploadExcel discards any previous job and sends file to the service. On
// success the coordinator holds the preview and moves to the preview stage.
func (c *Coordinator) UploadExcel(ctx context.Context, filename string, file io.Reader) (*Job, error) {
	c.ResetImport()

	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()

	resp, err := c.service.UploadExcel(ctx, filename, file)
	if err != nil {
		c.log.Errorw("upload failed", "file", filename, "error", err)
		c.notifier.Error(err.Error())
		return nil, err
	}

	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return nil, ErrSuperseded
	}
	total := resp.Total
	if total == 0 {
		total = len(resp.Preview)
	}
	c.job = Job{
		JobID:    resp.JobID,
		Status:   api.ImportStatusPending,
		Total:    total,
		Preview:  resp.Preview,
		Errors:   resp.Errors,
		Stage:    StagePreview,
		Progress: ProgressIdle,
	}
	job := c.job.clone()
	c.mu.Unlock()

	c.log.Infow("workbook uploaded", "job_id", job.JobID, "total", job.Total, "errors", len(job.Errors))
	c.stageChanged(StageUpload, StagePreview)
	c.emit(ctx, events.ImportUploadedKind, job, "")

	if n := len(job.Errors); n > 0 {
		c.notifier.Warning(fmt.Sprintf("%d of %d rows have errors and will be skipped", n, len(job.Preview)))
	} else {
		c.notifier.Success(fmt.Sprintf("File parsed: %d rows ready to import", len(job.Preview)))
	}

	return &job, nil
}

// ConfirmImport commits the previewed job and starts polling its status.
// On failure the job keeps its status and stays in preview.
func (c *Coordinator) ConfirmImport(ctx context.Context) error {
	c.mu.Lock()
	jobID, stage, gen := c.job.JobID, c.job.Stage, c.generation
	c.mu.Unlock()

	if jobID == "" {
		c.notifier.Error(ErrNoSession.Message)
		return ErrNoSession
	}
	if stage != StagePreview {
		c.notifier.Error(ErrNotInPreview.Message)
		return ErrNotInPreview
	}

	resp, err := c.service.ConfirmImport(ctx, jobID)
	if err != nil {
		c.log.Errorw("confirm failed", "job_id", jobID, "error", err)
		c.notifier.Error(err.Error())
		return err
	}

	c.mu.Lock()
	if c.generation != gen || c.job.Stage != StagePreview {
		c.mu.Unlock()
		return ErrSuperseded
	}
	status := resp.Status
	if status == "" {
		status = api.ImportStatusProcessing
	}
	c.job.Status = status
	if len(resp.Errors) > 0 {
		c.job.Errors = resp.Errors
	}
	c.job.Stage = StageImporting
	c.job.Progress = ProgressImporting
	job := c.job.clone()

	var after func()
	if status.IsTerminal() {
		after = c.finishLocked(ctx)
	}
	c.mu.Unlock()

	c.log.Infow("import confirmed", "job_id", jobID, "status", status)
	c.stageChanged(StagePreview, StageImporting)
	c.emit(ctx, events.ImportConfirmedKind, job, "")
	if after != nil {
		after()
		return nil
	}

	c.notifier.Info("Import started")
	c.startPolling(ctx, gen, jobID)
	return nil
}

// startPolling starts the status poller unless the job was reset or one is
// already running.
func (c *Coordinator) startPolling(ctx context.Context, gen uint64, jobID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation != gen || c.job.Stage != StageImporting || c.poller != nil {
		return
	}
	c.poller = startPoller(context.WithoutCancel(ctx), c.opts.PollInterval, c.opts.PollJitter, &c.activePolls, c.statusCheck(gen, jobID))
	c.pollDone = c.poller.done
}

// Wait blocks until the last started poller has exited, including the
// completion callbacks it runs, and returns the resulting job.
func (c *Coordinator) Wait(ctx context.Context) (Job, error) {
	c.mu.Lock()
	done := c.pollDone
	c.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return c.Snapshot(), ctx.Err()
		}
	}
	return c.Snapshot(), nil
}

// GetImportStatus reads the status of any job. It does not touch the current job.
func (c *Coordinator) GetImportStatus(ctx context.Context, jobID string) (*api.ImportStatusResponse, error) {
	resp, err := c.service.GetImportStatus(ctx, jobID)
	if err != nil {
		c.notifier.Error(err.Error())
		return nil, err
	}
	return resp, nil
}

// CancelImport resets the coordinator and asks the service to drop the
// session. The reset happens even when the delete fails; the delete error is
// returned for information.
func (c *Coordinator) CancelImport(ctx context.Context) error {
	c.mu.Lock()
	job := c.job.clone()
	c.mu.Unlock()

	from, p := c.reset()
	if p != nil {
		p.Stop()
	}

	var err error
	if job.JobID != "" {
		if err = c.service.CancelImport(ctx, job.JobID); err != nil {
			// the server session may be orphaned until it expires
			c.log.Warnw("failed to delete import session", "job_id", job.JobID, "error", err)
		}
	}

	if job.JobID != "" {
		c.stageChanged(from, StageCancelled)
		c.stageChanged(StageCancelled, StageUpload)
		c.emit(ctx, events.ImportCancelledKind, job, "")
	} else {
		c.stageChanged(from, StageUpload)
	}

	return err
}

// DownloadTemplate writes the import template to w.
func (c *Coordinator) DownloadTemplate(ctx context.Context, w io.Writer) (int64, error) {
	n, err := c.service.DownloadTemplate(ctx, w)
	if err != nil {
		c.notifier.Error(err.Error())
		return n, err
	}
	c.notifier.Success("Template downloaded")
	return n, nil
}

func (c *Coordinator) statusCheck(gen uint64, jobID string) checkFunc {
	return func(ctx context.Context) bool {
		resp, err := c.service.GetImportStatus(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				return true
			}
			if client.IsNotFound(err) {
				return c.sessionLost(ctx, gen, err)
			}
			// transient; try again on the next tick
			c.log.Warnw("failed to get import status", "job_id", jobID, "error", err)
			return false
		}

		c.mu.Lock()
		if c.generation != gen || c.job.Stage != StageImporting {
			c.mu.Unlock()
			return true
		}
		if resp.Status != "" {
			c.job.Status = resp.Status
		}
		if resp.Errors != nil {
			c.job.Errors = resp.Errors
		}
		if !c.job.Status.IsTerminal() {
			c.mu.Unlock()
			c.log.Debugw("import in progress", "job_id", jobID, "status", resp.Status)
			return false
		}
		after := c.finishLocked(ctx)
		c.mu.Unlock()

		after()
		return true
	}
}

// finishLocked applies a terminal status to the current job and returns the
// side effects to run once the lock is released. The poller, if any, is
// detached so that callbacks may reset the coordinator.
func (c *Coordinator) finishLocked(ctx context.Context) func() {
	c.poller = nil

	if c.job.Status == api.ImportStatusCancelled {
		job := c.job.clone()
		c.generation++
		c.job = initialJob()
		return func() {
			c.log.Infow("import cancelled by the service", "job_id", job.JobID)
			c.stageChanged(StageImporting, StageUpload)
			c.emit(ctx, events.ImportCancelledKind, job, "cancelled by the service")
			c.notifier.Warning("Import was cancelled")
		}
	}

	c.job.Stage = StageComplete
	c.job.Progress = ProgressDone
	job := c.job.clone()

	return func() {
		withErrors := len(job.Errors) > 0 || job.Status == api.ImportStatusCompletedWithErrors
		var message string
		switch {
		case len(job.Errors) > 0:
			message = fmt.Sprintf("Import completed with %d errors", len(job.Errors))
		case withErrors:
			message = "Import completed with errors"
		default:
			message = fmt.Sprintf("Successfully imported %d cars", job.ValidCount())
		}

		c.log.Infow("import finished", "job_id", job.JobID, "status", job.Status, "errors", len(job.Errors))
		c.stageChanged(StageImporting, StageComplete)
		if c.opts.OnRefresh != nil {
			c.opts.OnRefresh(ctx)
		}
		c.emit(ctx, events.ImportCompletedKind, job, message)

		if withErrors {
			c.notifier.Warning(message)
		} else {
			c.notifier.Success(message)
		}
	}
}

// sessionLost handles a job that disappeared from the service while importing.
func (c *Coordinator) sessionLost(ctx context.Context, gen uint64, err error) bool {
	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return true
	}
	c.poller = nil
	c.generation++
	job := c.job.clone()
	c.job = initialJob()
	c.mu.Unlock()

	c.log.Warnw("import session no longer exists", "job_id", job.JobID, "error", err)
	c.stageChanged(job.Stage, StageUpload)
	c.notifier.Error(err.Error())
	return true
}

func (c *Coordinator) stageChanged(from, to Stage) {
	if from == to || c.opts.OnStageChange == nil {
		return
	}
	c.opts.OnStageChange(from, to)
}

func (c *Coordinator) emit(ctx context.Context, kind string, job Job, message string) {
	if c.opts.Events == nil {
		return
	}

	body, err := json.Marshal(events.ImportEvent{
		JobID:      job.JobID,
		Stage:      string(job.Stage),
		Status:     string(job.Status),
		Total:      job.Total,
		ValidCount: job.ValidCount(),
		ErrorCount: len(job.Errors),
		Message:    message,
	})
	if err != nil {
		c.log.Errorw("failed to encode import event", "kind", kind, "error", err)
		return
	}

	if err := c.opts.Events.Write(ctx, kind, bytes.NewReader(body)); err != nil {
		c.log.Warnw("failed to write import event", "kind", kind, "error", err)
	}
}
