package middleware

import (
	"net/http"

	"github.com/cloo-solutions/remind/internal/api"
	"github.com/cloo-solutions/remind/internal/domain"
)

// MaxBodyBytes caps request bodies at limit bytes. A declared Content-Length
// over the cap is refused up front with the error envelope; chunked bodies are
// cut off while the handler decodes them (see api.Decode).
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
				api.HandleError(w, domain.ErrBodyTooLarge)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
