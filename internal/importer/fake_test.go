package importer_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	api "github.com/autolot/dealer-admin/api/v1alpha1"
	"github.com/autolot/dealer-admin/internal/client"
)

type fakeService struct {
	mu sync.Mutex

	upload      *api.UploadResponse
	uploadErr   error
	uploadGate  chan struct{}
	confirm     *api.ImportStatusResponse
	confirmErr  error
	statuses    []api.ImportStatusResponse
	statusErrs  []error
	cancelErr   error
	templateErr error

	uploadCalls  int
	confirmCalls int
	statusCalls  int
	cancelled    []string
}

func newFakeService(rows int) *fakeService {
	return &fakeService{
		upload: &api.UploadResponse{
			JobID:   "job-1",
			Preview: previewRows(rows),
			Total:   rows,
		},
		confirm: &api.ImportStatusResponse{JobID: "job-1", Status: api.ImportStatusProcessing},
	}
}

func (f *fakeService) UploadExcel(ctx context.Context, filename string, file io.Reader) (*api.UploadResponse, error) {
	f.mu.Lock()
	f.uploadCalls++
	gate := f.uploadGate
	resp, err := f.upload, f.uploadErr
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	out := *resp
	return &out, nil
}

func (f *fakeService) ConfirmImport(_ context.Context, jobID string) (*api.ImportStatusResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmCalls++
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	out := *f.confirm
	out.JobID = jobID
	return &out, nil
}

// GetImportStatus replays errors first, then statuses. The last status repeats.
func (f *fakeService) GetImportStatus(ctx context.Context, jobID string) (*api.ImportStatusResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if len(f.statusErrs) > 0 {
		err := f.statusErrs[0]
		f.statusErrs = f.statusErrs[1:]
		return nil, err
	}
	if len(f.statuses) == 0 {
		return &api.ImportStatusResponse{JobID: jobID, Status: api.ImportStatusProcessing}, nil
	}
	out := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	out.JobID = jobID
	return &out, nil
}

func (f *fakeService) CancelImport(_ context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, jobID)
	return f.cancelErr
}

func (f *fakeService) DownloadTemplate(_ context.Context, w io.Writer) (int64, error) {
	f.mu.Lock()
	err := f.templateErr
	f.mu.Unlock()
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(w, strings.NewReader("PK template"))
	return n, err
}

func (f *fakeService) StatusCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls
}

func (f *fakeService) Cancelled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cancelled...)
}

func (f *fakeService) setStatuses(statuses ...api.ImportStatusResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = statuses
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) add(level, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, level+": "+message)
}

func (n *recordingNotifier) Info(message string)    { n.add("info", message) }
func (n *recordingNotifier) Success(message string) { n.add("success", message) }
func (n *recordingNotifier) Warning(message string) { n.add("warning", message) }
func (n *recordingNotifier) Error(message string)   { n.add("error", message) }

func (n *recordingNotifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

type recordingSink struct {
	mu    sync.Mutex
	kinds []string
}

func (s *recordingSink) Write(_ context.Context, kind string, body io.Reader) error {
	if _, err := io.ReadAll(body); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kinds = append(s.kinds, kind)
	return nil
}

func (s *recordingSink) Kinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.kinds...)
}

type counter struct {
	mu sync.Mutex
	n  int
}

func (c *counter) Inc() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
}

func (c *counter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func previewRows(n int) []api.Row {
	rows := make([]api.Row, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, api.Row{
			Name:         fmt.Sprintf("Car %d", i+1),
			Price:        float64(15000 + i*500),
			Year:         2018,
			Mileage:      10000 * (i + 1),
			Transmission: "automatic",
			BodyType:     "sedan",
			FuelType:     "petrol",
		})
	}
	return rows
}

func notFound(message string) error {
	return &client.APIError{Kind: client.KindNotFound, StatusCode: http.StatusNotFound, Message: message}
}
