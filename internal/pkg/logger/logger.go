// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// Options 控制全局 logger 的输出格式
type Options struct {
	Level   string
	Pretty  bool
	Service string
	Output  io.Writer
}

// Init 配置全局 zerolog logger，所有包都通过 Ctx / L 获取它
func Init(opts Options) {
	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var out io.Writer = os.Stdout
	if opts.Output != nil {
		out = opts.Output
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.DateTime}
	}

	l := zerolog.New(out).With().Timestamp()
	if opts.Service != "" {
		l = l.Str("service", opts.Service)
	}
	zlog.Logger = l.Logger()
	zerolog.DefaultContextLogger = &zlog.Logger
}

// L 返回全局 logger
func L() *zerolog.Logger {
	return &zlog.Logger
}

// Ctx 返回绑定在 ctx 上的 logger，并附带当前 span 的 trace_id
func Ctx(ctx context.Context) *zerolog.Logger {
	l := zerolog.Ctx(ctx)
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return l
	}
	withTrace := l.With().Str("trace_id", sc.TraceID().String()).Logger()
	return &withTrace
}
