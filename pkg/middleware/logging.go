package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

type logInfoKey struct{}

// logInfo is filled in by middleware further down the chain.
type logInfo struct {
	actorID string
}

func noteActor(r *http.Request, actorID string) {
	if info, ok := r.Context().Value(logInfoKey{}).(*logInfo); ok {
		info.actorID = actorID
	}
}

// Logger 请求日志中间件
func Logger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			info := &logInfo{}
			r = r.WithContext(context.WithValue(r.Context(), logInfoKey{}, info))

			// 创建响应写入器包装器来捕获状态码
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			fields := logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start).String(),
				"ip":         r.RemoteAddr,
				"request_id": middleware.GetReqID(r.Context()),
			}
			if info.actorID != "" {
				fields["actor_id"] = info.actorID
			}

			entry := log.WithFields(fields)
			switch {
			case ww.Status() >= 500:
				entry.Error("request failed")
			case ww.Status() >= 400:
				entry.Warn("request rejected")
			default:
				entry.Info("request served")
			}
		})
	}
}
