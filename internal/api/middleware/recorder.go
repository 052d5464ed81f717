package middleware

import (
	"net/http"

	"github.com/cloo-solutions/interviewqa/internal/domain"
	"github.com/go-chi/chi/v5"
)

// statusRecorder remembers the status and size a handler wrote.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// Status is the written status, 200 when the handler wrote nothing.
func (r *statusRecorder) Status() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

// knowledgeBaseOf returns the normalized knowledge base a request names
// through ?kb=, ?kb_name= or the {kb_name} route parameter. Route
// parameters are only known once chi has routed the request.
func knowledgeBaseOf(r *http.Request) string {
	q := r.URL.Query()
	for _, key := range []string{"kb", "kb_name"} {
		if v := q.Get(key); v != "" {
			return domain.NormalizeKnowledgeBaseName(v)
		}
	}
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if v := rctx.URLParam("kb_name"); v != "" {
			return domain.NormalizeKnowledgeBaseName(v)
		}
	}
	return ""
}

// routeOf is the matched chi pattern, or the raw path before routing.
func routeOf(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return r.URL.Path
}
