package middleware

import (
	"net/http"

	apperrors "roadquest/pkg/errors"
	httputil "roadquest/pkg/http"
)

// MaxRequestSize rejects bodies that declare a length above limit and caps the
// rest with http.MaxBytesReader, so decoders fail once they read past it.
func MaxRequestSize(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit <= 0 || r.Body == nil {
				next.ServeHTTP(w, r)
				return
			}

			if r.ContentLength > limit {
				_ = httputil.WriteError(w, apperrors.TooLarge(limit))
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
