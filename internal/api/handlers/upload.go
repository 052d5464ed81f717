package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/cloo-solutions/interviewqa/internal/api"
	"github.com/cloo-solutions/interviewqa/internal/domain"
	"github.com/cloo-solutions/interviewqa/internal/service"
)

// DefaultMaxUploadBytes is the PDF size limit.
const DefaultMaxUploadBytes int64 = 50 << 20

// multipartOverhead leaves room for boundaries and the other form fields.
const multipartOverhead int64 = 1 << 20

// memoryLimit bounds how much of a multipart form is held in memory;
// the rest is spooled to disk by mime/multipart.
const memoryLimit int64 = 8 << 20

type IngestService interface {
	IngestReader(ctx context.Context, filename string, r io.Reader, kb string) (int, error)
}

type UploadHandler struct {
	svc      IngestService
	maxBytes int64
}

func NewUploadHandler(svc IngestService, maxBytes int64) *UploadHandler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &UploadHandler{svc: svc, maxBytes: maxBytes}
}

// MaxRequestBytes is the request body limit matching the file limit.
func (h *UploadHandler) MaxRequestBytes() int64 {
	return h.maxBytes + multipartOverhead
}

// UploadPDF ingests the multipart "file" into "knowledge_base_name" (default global).
func (h *UploadHandler) UploadPDF(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxRequestBytes())
	if err := r.ParseMultipartForm(memoryLimit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.Error(w, http.StatusRequestEntityTooLarge, domain.ErrFileTooLarge.Message)
			return
		}
		api.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	if !service.IsPDFName(header.Filename) {
		api.HandleError(w, domain.ErrNotPDF)
		return
	}
	if header.Size > h.maxBytes {
		api.Error(w, http.StatusRequestEntityTooLarge, domain.ErrFileTooLarge.Message)
		return
	}

	kb := r.FormValue("knowledge_base_name")
	if kb == "" {
		kb = domain.GlobalKnowledgeBase
	}

	n, err := h.svc.IngestReader(r.Context(), header.Filename, file, kb)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	name := domain.NormalizeKnowledgeBaseName(kb)
	if n == 0 {
		api.Message(w, api.StatusWarning, fmt.Sprintf("未能从PDF中提取文本，%s知识库未改变", name))
		return
	}
	api.Message(w, api.StatusSuccess, fmt.Sprintf("PDF已添加到%s知识库（%d个片段）", name, n))
}
