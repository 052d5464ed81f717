package middleware

import (
	"fmt"
	"net/http"

	"github.com/cloo-solutions/interviewqa/internal/api"
	"github.com/cloo-solutions/interviewqa/internal/domain"
)

// MaxBodyBytes caps the request body at limit. A declared Content-Length
// over the cap is refused before the body is read, so a 60MB PDF upload
// fails fast instead of after streaming; chunked bodies hit the
// MaxBytesReader while the handler parses them.
func MaxBodyBytes(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)
				return
			}
			if r.ContentLength > limit {
				api.Error(w, http.StatusRequestEntityTooLarge,
					fmt.Sprintf("%s (%d MB)", domain.ErrFileTooLarge.Message, limit>>20))
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
