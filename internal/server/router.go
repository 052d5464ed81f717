package server

import (
	"net/http"

	"github.com/cloo-solutions/interviewqa/internal/api/handlers"
	"github.com/cloo-solutions/interviewqa/internal/api/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
)

// maxJSONBodyBytes bounds every non-upload request body.
const maxJSONBodyBytes int64 = 1 << 20

type RouterConfig struct {
	// TokenValidator guards mutating routes; nil leaves them open.
	TokenValidator       middleware.TokenValidator
	CORSOrigins          []string
	QAHandler            *handlers.QAHandler
	UploadHandler        *handlers.UploadHandler
	KnowledgeBaseHandler *handlers.KnowledgeBaseHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
	})

	r.Use(c.Handler)
	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)

	r.Get("/", cfg.QAHandler.Root)
	r.Get("/health", cfg.QAHandler.Health)
	r.Get("/ask", cfg.QAHandler.Ask)
	r.Get("/ask/", cfg.QAHandler.Ask)

	r.Route("/knowledge_bases", func(r chi.Router) {
		r.Get("/", cfg.KnowledgeBaseHandler.List)
		r.Get("/stats", cfg.KnowledgeBaseHandler.Stats)
		r.Get("/files", cfg.KnowledgeBaseHandler.Files)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerAuth(cfg.TokenValidator))

		r.With(middleware.MaxBodyBytes(cfg.UploadHandler.MaxRequestBytes())).
			Post("/upload_pdf/", cfg.UploadHandler.UploadPDF)
		r.With(middleware.MaxBodyBytes(cfg.UploadHandler.MaxRequestBytes())).
			Post("/upload_pdf", cfg.UploadHandler.UploadPDF)

		r.Group(func(r chi.Router) {
			r.Use(middleware.MaxBodyBytes(maxJSONBodyBytes))
			r.Post("/create_kb", cfg.KnowledgeBaseHandler.Create)
			r.Delete("/delete_kb/{kb_name}", cfg.KnowledgeBaseHandler.Delete)
		})
	})

	return r
}
