package importsim

import (
	"bytes"
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	api "github.com/autolot/dealer-admin/api/v1alpha1"
	"github.com/autolot/dealer-admin/internal/client"
	"github.com/autolot/dealer-admin/internal/sheet"
	"github.com/autolot/dealer-admin/pkg/metrics"
	"github.com/autolot/dealer-admin/pkg/requestid"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var allowedExtensions = []string{".xlsx", ".xls"}

// Handler serves the bulk import endpoints.
type Handler struct {
	store          *Store
	processor      *Processor
	maxUploadBytes int64
	log            *zap.SugaredLogger
}

func NewHandler(store *Store, processor *Processor, maxUploadBytes int64) *Handler {
	return &Handler{
		store:          store,
		processor:      processor,
		maxUploadBytes: maxUploadBytes,
		log:            zap.S().Named("import_handler"),
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Route("/cars", func(r chi.Router) {
		r.Get("/", h.ListCars)
		r.Route("/bulk-import", func(r chi.Router) {
			r.Post("/upload", h.Upload)
			r.Post("/confirm", h.Confirm)
			r.Get("/status/{jobId}", h.Status)
			r.Delete("/session/{jobId}", h.DeleteSession)
			r.Get("/template", h.Template)
		})
	})
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.reject(w, r, http.StatusRequestEntityTooLarge, "File is too large")
			return
		}
		h.reject(w, r, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile(client.UploadFieldName)
	if err != nil {
		h.reject(w, r, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	if !isExcelFile(header.Filename) {
		h.reject(w, r, http.StatusBadRequest, "Only Excel files are allowed")
		return
	}

	rows, rowErrors, err := sheet.ParseWorkbook(file)
	if err != nil {
		h.log.Infow("workbook rejected", "file", header.Filename, "error", err, "request_id", requestid.FromRequest(r))
		h.reject(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if len(rows) == 0 {
		h.reject(w, r, http.StatusBadRequest, "No data rows found in file")
		return
	}

	sess := h.store.CreateSession(rows, rowErrors)
	metrics.IncreaseUploadsTotalMetric("accepted")
	h.log.Infow("session created", "job_id", sess.ID, "rows", len(rows), "invalid", len(rowErrors))

	render.JSON(w, r, api.UploadResponse{
		JobID:   sess.ID,
		Preview: sess.Preview,
		Total:   len(sess.Preview),
		Errors:  sess.Errors,
	})
}

func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req api.ConfirmRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.JobID) == "" {
		h.writeError(w, r, http.StatusBadRequest, "jobId is required")
		return
	}

	sess, err := h.store.MarkProcessing(req.JobID)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	h.processor.Submit(sess.ID)
	render.JSON(w, r, api.ImportStatusResponse{JobID: sess.ID, Status: sess.Status})
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	sess, err := h.store.GetSession(chi.URLParam(r, "jobId"))
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	resp := api.ImportStatusResponse{JobID: sess.ID, Status: sess.Status}
	if sess.Status.IsTerminal() {
		resp.Errors = sess.Errors
	}
	render.JSON(w, r, resp)
}

func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if err := h.store.DeleteSession(jobID); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.log.Infow("session deleted", "job_id", jobID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Template(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := sheet.WriteTemplate(&buf); err != nil {
		h.log.Errorw("failed to build template", "error", err)
		h.writeError(w, r, http.StatusInternalServerError, "Failed to generate template")
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+client.TemplateFileName+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) ListCars(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.store.ListCars())
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request, status int, message string) {
	metrics.IncreaseUploadsTotalMetric("rejected")
	h.writeError(w, r, status, message)
}

func (h *Handler) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch err.(type) {
	case *ErrSessionNotFound:
		h.writeError(w, r, http.StatusNotFound, "Import session not found")
	case *ErrSessionNotPending:
		h.writeError(w, r, http.StatusBadRequest, "Import has already been confirmed")
	default:
		h.log.Errorw("store error", "error", err, "request_id", requestid.FromRequest(r))
		h.writeError(w, r, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, api.ErrorResponse{Error: message})
}

func isExcelFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range allowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
