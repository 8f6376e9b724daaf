package importer

import (
	"context"
	"io"

	api "github.com/autolot/dealer-admin/api/v1alpha1"
	"go.uber.org/zap"
)

// ImportService is the remote service holding import jobs.
type ImportService interface {
	UploadExcel(ctx context.Context, filename string, file io.Reader) (*api.UploadResponse, error)
	ConfirmImport(ctx context.Context, jobID string) (*api.ImportStatusResponse, error)
	GetImportStatus(ctx context.Context, jobID string) (*api.ImportStatusResponse, error)
	CancelImport(ctx context.Context, jobID string) error
	DownloadTemplate(ctx context.Context, w io.Writer) (int64, error)
}

// Notifier shows short advisory messages to the operator.
type Notifier interface {
	Info(message string)
	Success(message string)
	Warning(message string)
	Error(message string)
}

// EventSink receives lifecycle events. events.EventProducer implements it.
type EventSink interface {
	Write(ctx context.Context, kind string, body io.Reader) error
}

type logNotifier struct {
	log *zap.SugaredLogger
}

func (n *logNotifier) Info(message string)    { n.log.Info(message) }
func (n *logNotifier) Success(message string) { n.log.Info(message) }
func (n *logNotifier) Warning(message string) { n.log.Warn(message) }
func (n *logNotifier) Error(message string)   { n.log.Error(message) }
