package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/model"
	"github.com/FabioProni/mida-chatbot-mvp-custom/pkg/logger"
)

// uploadField is the multipart field carrying documents.
const uploadField = "files"

// DocumentHandler handles document endpoints.
type DocumentHandler struct {
	sessions       Sessions
	maxUploadBytes int64
	logger         *logger.Logger
}

// NewDocumentHandler creates a document handler.
func NewDocumentHandler(sessions Sessions, maxUploadBytes int64, log *logger.Logger) *DocumentHandler {
	return &DocumentHandler{sessions: sessions, maxUploadBytes: maxUploadBytes, logger: log}
}

// UploadResult is the outcome for one uploaded file.
type UploadResult struct {
	Name  string `json:"name"`
	Added bool   `json:"added"`
	Error string `json:"error,omitempty"`
}

// UploadResponse is the response for a multipart upload.
type UploadResponse struct {
	Results   []UploadResult       `json:"results"`
	Documents []model.DocumentView `json:"documents"`
}

// List handles GET /api/v1/documents
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(h.sessions, w, r)
	if !ok {
		return
	}
	docs := s.Documents()
	writeJSON(w, http.StatusOK, model.ListDocumentsResponse{Documents: docs, Total: len(docs)})
}

// Upload handles POST /api/v1/documents. Files are processed in order; one
// failing file does not stop the others.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(h.sessions, w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files := r.MultipartForm.File[uploadField]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "no files in field '"+uploadField+"'")
		return
	}

	resp := UploadResponse{Results: make([]UploadResult, 0, len(files))}
	var firstErr error
	succeeded := 0
	for _, fh := range files {
		res := UploadResult{Name: fh.Filename}
		content, err := readPart(fh)
		if err == nil {
			res.Added, err = s.AddDocument(r.Context(), fh.Filename, content)
		}
		if err != nil {
			h.logger.Warn("document upload failed",
				zap.String("session_id", s.ID),
				zap.String("filename", fh.Filename),
				zap.Error(err),
			)
			res.Error = err.Error()
			if firstErr == nil {
				firstErr = err
			}
		} else {
			succeeded++
		}
		resp.Results = append(resp.Results, res)
	}
	resp.Documents = s.Documents()

	status := http.StatusOK
	if succeeded == 0 {
		status = statusFor(firstErr)
	}
	writeJSON(w, status, resp)
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// Remove handles DELETE /api/v1/documents/{index}
func (h *DocumentHandler) Remove(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(h.sessions, w, r)
	if !ok {
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document index")
		return
	}

	removed, err := s.RemoveDocument(r.Context(), index)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, removed)
}

// RestoreMedia handles POST /api/v1/documents/media/{name}
func (h *DocumentHandler) RestoreMedia(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(h.sessions, w, r)
	if !ok {
		return
	}

	if err := s.RestoreMedia(r.Context(), chi.URLParam(r, "name")); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	docs := s.Documents()
	writeJSON(w, http.StatusOK, model.ListDocumentsResponse{Documents: docs, Total: len(docs)})
}
