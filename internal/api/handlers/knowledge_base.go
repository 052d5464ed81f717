package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/cloo-solutions/interviewqa/internal/api"
	"github.com/cloo-solutions/interviewqa/internal/domain"
	"github.com/cloo-solutions/interviewqa/internal/service"
	"github.com/go-chi/chi/v5"
)

type KnowledgeBaseService interface {
	List(ctx context.Context) ([]string, error)
	Create(ctx context.Context, name string) (string, error)
	Delete(ctx context.Context, name string) (int, error)
	Stats(ctx context.Context, name string) ([]domain.KnowledgeBaseStats, error)
}

// ArchiveBrowser lists archived PDFs. S3Client implements it.
type ArchiveBrowser interface {
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
}

type KnowledgeBaseHandler struct {
	svc     KnowledgeBaseService
	archive ArchiveBrowser
}

func NewKnowledgeBaseHandler(svc KnowledgeBaseService, archive ArchiveBrowser) *KnowledgeBaseHandler {
	return &KnowledgeBaseHandler{svc: svc, archive: archive}
}

type CreateKnowledgeBaseRequest struct {
	Name string `json:"name"`
}

type ArchivedFile struct {
	Name string `json:"name"`
	Key  string `json:"key"`
	URL  string `json:"url"`
}

func (h *KnowledgeBaseHandler) List(w http.ResponseWriter, r *http.Request) {
	names, err := h.svc.List(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Data(w, names)
}

// Stats describes ?kb_name=, or every knowledge base when it is absent.
func (h *KnowledgeBaseHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context(), r.URL.Query().Get("kb_name"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Data(w, stats)
}

func (h *KnowledgeBaseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateKnowledgeBaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	name, err := h.svc.Create(r.Context(), req.Name)
	switch {
	case errors.Is(err, domain.ErrKnowledgeBaseAlreadyExists):
		api.Message(w, api.StatusWarning, fmt.Sprintf("知识库 %s 已存在", name))
	case err != nil:
		api.HandleError(w, err)
	default:
		api.Message(w, api.StatusSuccess, fmt.Sprintf("知识库 %s 创建成功", name))
	}
}

func (h *KnowledgeBaseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "kb_name")

	n, err := h.svc.Delete(r.Context(), name)
	switch {
	case errors.Is(err, domain.ErrKnowledgeBaseNotFound):
		api.Message(w, api.StatusWarning, fmt.Sprintf("知识库 %s 不存在或已为空", strings.TrimSpace(name)))
	case err != nil:
		api.HandleError(w, err)
	default:
		api.Message(w, api.StatusSuccess, fmt.Sprintf("知识库 %s 已删除（%d个片段）", domain.NormalizeKnowledgeBaseName(name), n))
	}
}

// Files lists the archived PDFs of ?kb_name= with presigned download links.
func (h *KnowledgeBaseHandler) Files(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		api.Error(w, http.StatusNotImplemented, "PDF archive is not configured")
		return
	}

	kb := domain.NormalizeKnowledgeBaseName(r.URL.Query().Get("kb_name"))
	if kb == "" {
		api.HandleError(w, domain.ErrInvalidKnowledgeBaseName)
		return
	}

	keys, err := h.archive.ListKeys(r.Context(), service.ArchivePrefix(kb))
	if err != nil {
		api.HandleError(w, domain.Wrap(domain.ErrStorageFailed, err))
		return
	}

	files := make([]ArchivedFile, 0, len(keys))
	for _, key := range keys {
		url, err := h.archive.GenerateDownloadURL(r.Context(), key)
		if err != nil {
			api.HandleError(w, domain.Wrap(domain.ErrStorageFailed, err))
			return
		}
		files = append(files, ArchivedFile{
			Name: strings.TrimPrefix(key, service.ArchivePrefix(kb)),
			Key:  key,
			URL:  url,
		})
	}
	api.Data(w, files)
}
