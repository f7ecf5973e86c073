package logger

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/noah-isme/supatable-api/pkg/config"
	"github.com/noah-isme/supatable-api/pkg/middleware/traceid"
)

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

	return build(zapCfg, cfg.Log.Level)
}

// NewConsole builds a development logger writing console lines to stderr, for interactive tools
// whose stdout belongs to the user.
func NewConsole(level string) (*zap.Logger, error) {
	zapCfg := zap.NewDevelopmentConfig()
	zapCfg.Encoding = "console"
	zapCfg.OutputPaths = []string{"stderr"}
	return build(zapCfg, level)
}

// build applies the shared level and timestamp settings. An unparsable level falls back to info.
func build(zapCfg zap.Config, level string) (*zap.Logger, error) {
	if level != "" {
		if err := zapCfg.Level.UnmarshalText([]byte(level)); err != nil {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		}
	}

	zapCfg.EncoderConfig.TimeKey = "timestamp"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return zapCfg.Build()
}

// GinMiddleware logs one entry per request. Scrapes of the metrics endpoint are logged at debug level.
func GinMiddleware(l *zap.Logger, metricsPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		latency := time.Since(start)
		traceID := traceid.Value(c)

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		}
		if traceID != "" {
			fields = append(fields, zap.String("trace_id", traceID))
		}

		if metricsPath != "" && strings.HasPrefix(c.Request.URL.Path, metricsPath) {
			l.Debug("http_request", fields...)
			return
		}
		l.Info("http_request", fields...)
	}
}
