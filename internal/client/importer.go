package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	api "github.com/autolot/dealer-admin/api/v1alpha1"
	"github.com/autolot/dealer-admin/pkg/requestid"
)

const (
	bulkImportPath = "/cars/bulk-import"
	carsPath       = "/cars"

	// UploadFieldName is the multipart field holding the workbook.
	UploadFieldName = "excel"
	// TemplateFileName is the name the template is saved under by default.
	TemplateFileName = "car-import-template.xlsx"
)

const (
	msgUploadFailed   = "Failed to upload file"
	msgConfirmFailed  = "Failed to confirm import"
	msgStatusFailed   = "Failed to get import status"
	msgCancelFailed   = "Failed to cancel import"
	msgTemplateFailed = "Failed to download template"
	msgListCarsFailed = "Failed to list cars"
)

// ImportClient is an HTTP client for the bulk import endpoints of the dealer API.
type ImportClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewImportClient(baseURL string, timeout time.Duration) *ImportClient {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	httpClient := NewHTTPClient()
	httpClient.Timeout = timeout
	return &ImportClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// UploadExcel sends the workbook as multipart form data and returns the parsed preview.
func (c *ImportClient) UploadExcel(ctx context.Context, filename string, file io.Reader) (*api.UploadResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile(UploadFieldName, filepath.Base(filename))
	if err != nil {
		return nil, newNetworkError(msgUploadFailed, fmt.Errorf("creating form file: %w", err))
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, newNetworkError(msgUploadFailed, fmt.Errorf("copying file into multipart: %w", err))
	}
	if err := mw.Close(); err != nil {
		return nil, newNetworkError(msgUploadFailed, fmt.Errorf("closing multipart writer: %w", err))
	}

	req, err := c.newRequest(ctx, http.MethodPost, bulkImportPath+"/upload", &buf)
	if err != nil {
		return nil, newNetworkError(msgUploadFailed, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out api.UploadResponse
	if err := c.doJSON(req, msgUploadFailed, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConfirmImport asks the service to commit the job's valid rows.
func (c *ImportClient) ConfirmImport(ctx context.Context, jobID string) (*api.ImportStatusResponse, error) {
	body, err := json.Marshal(api.ConfirmRequest{JobID: jobID})
	if err != nil {
		return nil, newNetworkError(msgConfirmFailed, fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := c.newRequest(ctx, http.MethodPost, bulkImportPath+"/confirm", bytes.NewReader(body))
	if err != nil {
		return nil, newNetworkError(msgConfirmFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out api.ImportStatusResponse
	if err := c.doJSON(req, msgConfirmFailed, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetImportStatus reads the current status of a job. It has no side effects.
func (c *ImportClient) GetImportStatus(ctx context.Context, jobID string) (*api.ImportStatusResponse, error) {
	req, err := c.newRequest(ctx, http.MethodGet, bulkImportPath+"/status/"+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, newNetworkError(msgStatusFailed, err)
	}

	var out api.ImportStatusResponse
	if err := c.doJSON(req, msgStatusFailed, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelImport deletes the server side session of a job.
func (c *ImportClient) CancelImport(ctx context.Context, jobID string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, bulkImportPath+"/session/"+url.PathEscape(jobID), nil)
	if err != nil {
		return newNetworkError(msgCancelFailed, err)
	}
	return c.doJSON(req, msgCancelFailed, nil)
}

// DownloadTemplate streams the import template workbook into w.
func (c *ImportClient) DownloadTemplate(ctx context.Context, w io.Writer) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, bulkImportPath+"/template", nil)
	if err != nil {
		return 0, newNetworkError(msgTemplateFailed, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, newNetworkError(msgTemplateFailed, fmt.Errorf("failed to call import service: %w", err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return 0, newStatusError(resp.StatusCode, errorMessage(bodyBytes, msgTemplateFailed))
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, newNetworkError(msgTemplateFailed, fmt.Errorf("failed to read template: %w", err))
	}
	return n, nil
}

// ListCars returns the car inventory. It is used to refresh the listing after an import.
func (c *ImportClient) ListCars(ctx context.Context) ([]api.Car, error) {
	req, err := c.newRequest(ctx, http.MethodGet, carsPath, nil)
	if err != nil {
		return nil, newNetworkError(msgListCarsFailed, err)
	}

	cars := []api.Car{}
	if err := c.doJSON(req, msgListCarsFailed, &cars); err != nil {
		return nil, err
	}
	return cars, nil
}

func (c *ImportClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(requestid.Header, requestid.FromContextOrNew(ctx))
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// doJSON executes req and decodes a 2xx body into out when out is not nil.
// Any other status becomes an APIError whose message is the body's "error"
// field, or defaultMsg when the body has none.
func (c *ImportClient) doJSON(req *http.Request, defaultMsg string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return newNetworkError(defaultMsg, fmt.Errorf("failed to call import service: %w", err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return newNetworkError(defaultMsg, fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newStatusError(resp.StatusCode, errorMessage(bodyBytes, defaultMsg))
	}

	if out == nil || len(bytes.TrimSpace(bodyBytes)) == 0 {
		return nil
	}
	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return &APIError{
			Kind:       KindServer,
			StatusCode: resp.StatusCode,
			Message:    defaultMsg,
			Err:        fmt.Errorf("failed to decode response: %w", err),
		}
	}
	return nil
}

func errorMessage(body []byte, defaultMsg string) string {
	var errResp api.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && strings.TrimSpace(errResp.Error) != "" {
		return errResp.Error
	}
	return defaultMsg
}
