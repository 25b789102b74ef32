package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/noah-isme/sma-electives-api/pkg/config"
	"github.com/noah-isme/sma-electives-api/pkg/middleware/requestid"
)

const contextKey = "request_logger"

// New builds the process logger from configuration.
func New(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Env == config.EnvProduction {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Log.Format {
	case "console":
		zapCfg.Encoding = "console"
	default:
		zapCfg.Encoding = "json"
	}

	if cfg.Log.Level != "" {
		if err := zapCfg.Level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		}
	}

	zapCfg.EncoderConfig.TimeKey = "timestamp"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	return l.With(
		zap.Int("process_year", cfg.Enrollment.ProcessYear),
		zap.String("enrollment_level", cfg.Enrollment.Level),
	), nil
}

// GinMiddleware logs one line per request and stores a request-scoped logger
// carrying the request id for handlers to pick up with FromContext.
func GinMiddleware(l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqLogger := l
		if reqID := requestid.Value(c); reqID != "" {
			reqLogger = l.With(zap.String("request_id", reqID))
		}
		c.Set(contextKey, reqLogger)

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			reqLogger.Error("http_request", fields...)
		case c.Request.URL.Path == "/health" || c.Request.URL.Path == "/ready":
			reqLogger.Debug("http_request", fields...)
		default:
			reqLogger.Info("http_request", fields...)
		}
	}
}

// FromContext returns the request-scoped logger, falling back to fallback.
func FromContext(c *gin.Context, fallback *zap.Logger) *zap.Logger {
	if c != nil {
		if v, ok := c.Get(contextKey); ok {
			if l, ok := v.(*zap.Logger); ok {
				return l
			}
		}
	}
	if fallback == nil {
		return zap.NewNop()
	}
	return fallback
}
