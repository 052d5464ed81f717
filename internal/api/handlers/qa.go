package handlers

import (
	"context"
	"net/http"

	"github.com/cloo-solutions/interviewqa/internal/api"
	"github.com/cloo-solutions/interviewqa/internal/service"
)

// Banner is returned by GET /.
const Banner = "Java面试AI问答系统已启动"

type QAService interface {
	Ask(ctx context.Context, question string) (*service.AskResult, error)
	AskIn(ctx context.Context, question, kb string) (*service.AskResult, error)
}

type QAHandler struct {
	svc QAService
}

func NewQAHandler(svc QAService) *QAHandler {
	return &QAHandler{svc: svc}
}

func (h *QAHandler) Root(w http.ResponseWriter, r *http.Request) {
	api.JSON(w, http.StatusOK, map[string]string{"message": Banner})
}

func (h *QAHandler) Health(w http.ResponseWriter, r *http.Request) {
	api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ask answers ?question=. An optional ?kb= pins retrieval to one knowledge base.
func (h *QAHandler) Ask(w http.ResponseWriter, r *http.Request) {
	question := r.URL.Query().Get("question")
	kb := r.URL.Query().Get("kb")

	var (
		result *service.AskResult
		err    error
	)
	if kb != "" {
		result, err = h.svc.AskIn(r.Context(), question, kb)
	} else {
		result, err = h.svc.Ask(r.Context(), question)
	}
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, result)
}
