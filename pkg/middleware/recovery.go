package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"taskboard-backend/pkg/utils"
)

// Recovery 恢复中间件，处理panic并返回友好的错误信息
func Recovery(log logrus.FieldLogger, verbose bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					stack := debug.Stack()
					log.WithFields(logrus.Fields{
						"panic": err,
						"path":  r.URL.Path,
						"stack": string(stack),
					}).Error("recovered from panic")

					if verbose {
						// 开发环境：显示详细错误信息
						utils.WriteError(w, utils.CodeInternal,
							fmt.Sprintf("Internal server error: %v", err),
							string(stack))
						return
					}
					utils.WriteError(w, utils.CodeInternal, "Internal server error occurred", "")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
