package logger

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the service logger: JSON for production, colored console
// otherwise.
func New(env, level string) (*zap.Logger, error) {
	var config zap.Config
	if env == "production" {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
		}
		config.Level = zap.NewAtomicLevelAt(lvl)
	}

	return config.Build(zap.AddStacktrace(zapcore.ErrorLevel))
}

// RequestLogger logs one line per HTTP request. It expects chi's RequestID
// middleware to run first.
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("query", r.URL.RawQuery),
				zap.Int("status", status),
				zap.Duration("latency", time.Since(start)),
				zap.String("client_ip", r.RemoteAddr),
				zap.Int("body_size", ww.BytesWritten()),
			}
			if rid := middleware.GetReqID(r.Context()); rid != "" {
				fields = append(fields, zap.String("request_id", rid))
			}

			switch {
			case status >= 500:
				log.Error("http_request", fields...)
			case status >= 400:
				log.Warn("http_request", fields...)
			default:
				log.Info("http_request", fields...)
			}
		})
	}
}
