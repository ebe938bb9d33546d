package httpapi

import (
	"bytes"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// LogLevel controls per-request logging behavior.
type LogLevel int

const (
	LevelOff LogLevel = iota
	LevelError
	LevelInfo
	LevelDebug
)

func parseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "":
		return LevelOff
	case "error":
		return LevelError
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// global default, read once; unset means info
var defaultLogLevel = func() LogLevel {
	v, ok := os.LookupEnv("MODELSERVE_REQUEST_LOG")
	if !ok {
		return LevelInfo
	}
	return parseLevel(v)
}()

// requestLogLevel honors ?log= and X-Log-Level overrides.
func requestLogLevel(r *http.Request) LogLevel {
	if v := r.URL.Query().Get("log"); v != "" {
		if v == "1" {
			return LevelDebug
		}
		return parseLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseLevel(v)
	}
	return defaultLogLevel
}

// requestLog writes the start and end lines of one inference request.
type requestLog struct {
	log   zerolog.Logger
	level LogLevel
	start time.Time
}

func beginRequest(base *zerolog.Logger, r *http.Request, op string) *requestLog {
	ctx := base.With().Str("op", op).Str("path", r.URL.Path)
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		ctx = ctx.Str("request_id", rid)
	}
	rl := &requestLog{log: ctx.Logger(), level: requestLogLevel(r), start: time.Now()}
	if rl.level >= LevelDebug {
		rl.log = rl.log.Level(zerolog.DebugLevel)
	}
	if rl.level >= LevelInfo {
		rl.log.Info().Msg("request start")
	}
	return rl
}

func (rl *requestLog) end(status int, err error) {
	dur := time.Since(rl.start)
	switch {
	case rl.level >= LevelInfo:
		rl.log.Info().Int("status", status).Dur("dur", dur).Err(err).Msg("request end")
	case rl.level >= LevelError && err != nil:
		rl.log.Error().Int("status", status).Dur("dur", dur).Err(err).Msg("request failed")
	}
}

// streamTap returns a writer that logs streamed events at debug level, or nil
// when the request is not logged at debug.
func (rl *requestLog) streamTap() io.Writer {
	if rl.level < LevelDebug {
		return nil
	}
	return &loggingLineWriter{log: rl.log}
}

// loggingLineWriter logs complete non-empty lines written to it.
type loggingLineWriter struct {
	log zerolog.Logger
	buf []byte
}

func (lw *loggingLineWriter) Write(p []byte) (int, error) {
	lw.buf = append(lw.buf, p...)
	for {
		idx := bytes.IndexByte(lw.buf, '\n')
		if idx < 0 {
			break
		}
		if line := lw.buf[:idx]; len(line) > 0 {
			lw.log.Debug().Bytes("line", line).Msg("stream")
		}
		lw.buf = lw.buf[idx+1:]
	}
	return len(p), nil
}
