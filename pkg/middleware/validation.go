package middleware

import (
	"fmt"
	"mime"
	"net/http"

	"taskboard-backend/pkg/utils"
)

// bodyMethods are the methods whose body is decoded as a JSON document.
var bodyMethods = map[string]bool{
	http.MethodPost:  true,
	http.MethodPut:   true,
	http.MethodPatch: true,
}

// ContentTypeJSON rejects write requests whose body is not JSON. Bodiless
// writes (logout, resolve without a body) pass through untouched.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !bodyMethods[r.Method] || r.ContentLength == 0 {
			next.ServeHTTP(w, r)
			return
		}
		raw := r.Header.Get("Content-Type")
		if raw == "" {
			utils.WriteError(w, utils.CodeUnsupportedMedia, "Content-Type header is required", "")
			return
		}
		mediaType, _, err := mime.ParseMediaType(raw)
		if err != nil || mediaType != "application/json" {
			utils.WriteError(w, utils.CodeUnsupportedMedia, "Content-Type must be application/json", raw)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// MaxBodySize caps request bodies at maxBytes. A declared length over the cap
// is refused up front; undeclared bodies fail when the decoder hits the cap.
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				utils.WriteError(w, utils.CodePayloadTooLarge, "Request body too large",
					fmt.Sprintf("limit is %d bytes", maxBytes))
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
