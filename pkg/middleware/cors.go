package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS builds the CORS middleware. Credentials (the session cookie) are only allowed
// for an explicit origin list, never for "*".
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	corsOptions := cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
			http.MethodPatch,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Requested-With",
			"X-Request-Id",
		},
		ExposedHeaders: []string{
			"X-Request-Id",
			"X-RateLimit-Limit",
			"X-RateLimit-Remaining",
			"X-RateLimit-Reset",
		},
		AllowCredentials: false,
		MaxAge:           300, // 5分钟
	}

	if len(allowedOrigins) > 0 && !contains(allowedOrigins, "*") {
		corsOptions.AllowedOrigins = allowedOrigins
		corsOptions.AllowCredentials = true
	}
	return cors.Handler(corsOptions)
}

// contains 检查切片是否包含指定的字符串
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
