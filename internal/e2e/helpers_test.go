package e2e

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"modelserve/internal/app"
	"modelserve/internal/config"
)

// runtimeStub is an OpenAI-compatible runtime. Completion requests block on
// release when it is non-nil and announce themselves on started.
type runtimeStub struct {
	model   string
	started chan struct{}
	release chan struct{}
}

func newRuntimeStub(t *testing.T, model string, block bool) (*runtimeStub, *httptest.Server) {
	t.Helper()
	rs := &runtimeStub{model: model, started: make(chan struct{}, 16)}
	if block {
		rs.release = make(chan struct{})
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"object":"list","data":[{"id":%q,"object":"model"}]}`, rs.model)
	})
	mux.HandleFunc("/v1/completions", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rs.started <- struct{}{}
		if rs.release != nil {
			select {
			case <-rs.release:
			case <-r.Context().Done():
				return
			}
		}
		if bytes.Contains(body, []byte(`"stream":true`)) {
			w.Header().Set("Content-Type", "text/event-stream")
			for _, tok := range []string{"Hel", "lo"} {
				fmt.Fprintf(w, "data: {\"id\":\"c1\",\"object\":\"text_completion\",\"choices\":[{\"index\":0,\"text\":%q}]}\n\n", tok)
			}
			fmt.Fprint(w, "data: [DONE]\n\n")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"text_completion","choices":[{"index":0,"text":"Hello","finish_reason":"stop"}],"usage":{"prompt_tokens":1,"completion_tokens":2,"total_tokens":3}}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		if rs.release != nil {
			select {
			case <-rs.release:
			default:
				close(rs.release)
			}
		}
		srv.Close()
	})
	return rs, srv
}

// newTextServer serves the text application against runtimeURL.
func newTextServer(t *testing.T, runtimeURL string, mutate func(*config.Config)) *httptest.Server {
	t.Helper()
	cfg := config.Defaults(config.ServiceText)
	cfg.Backend = "remote"
	cfg.RuntimeURL = runtimeURL
	cfg.ModelID = "tiny"
	if mutate != nil {
		mutate(&cfg)
	}
	a, err := app.NewText(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewText: %v", err)
	}
	base, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(a.Handler(base))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		_ = a.Close()
	})
	return srv
}

func postJSON(t *testing.T, url, body string) (int, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b
}
