package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
)

// sseWriter emits server-sent events. Headers are written with the first
// event so a failure before any output can still become a JSON error.
type sseWriter struct {
	w       http.ResponseWriter
	out     io.Writer
	started bool
}

func newSSEWriter(w http.ResponseWriter, tap io.Writer) *sseWriter {
	out := io.Writer(w)
	if tap != nil {
		out = io.MultiWriter(w, tap)
	}
	return &sseWriter{w: w, out: out}
}

func (s *sseWriter) start() {
	if s.started {
		return
	}
	s.started = true
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
}

func (s *sseWriter) send(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.write(b)
}

func (s *sseWriter) write(data []byte) error {
	s.start()
	buf := make([]byte, 0, len(data)+8)
	buf = append(buf, "data: "...)
	buf = append(buf, data...)
	buf = append(buf, '\n', '\n')
	if _, err := s.out.Write(buf); err != nil {
		return err
	}
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

func (s *sseWriter) done() error { return s.write([]byte("[DONE]")) }
