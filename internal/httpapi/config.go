package httpapi

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// defaultMaxBodyBytes bounds JSON bodies when Options leaves it unset.
const defaultMaxBodyBytes int64 = 1 << 20

// Options configures a mux. The zero value serves routes at the root with a
// 1 MiB body limit, no inference timeout and CORS disabled.
type Options struct {
	// RoutePrefix is prepended to the API routes ("/v1", "/api/v1").
	// Health, readiness, status and metrics stay at the root.
	RoutePrefix string
	// MaxBodyBytes limits request bodies, including multipart uploads.
	MaxBodyBytes int64
	// InferTimeout bounds a single inference request. Zero disables it.
	InferTimeout time.Duration
	CORS         CORSOptions
	// BaseContext is canceled on shutdown; in-flight inference is canceled
	// with it.
	BaseContext context.Context
	Logger      *zerolog.Logger
}

// CORSOptions configures CORS. An empty origin list disables the middleware.
type CORSOptions struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
}

// PermissiveCORS allows every origin, method and header with credentials.
func PermissiveCORS() CORSOptions {
	return CORSOptions{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}
}

func (o Options) withDefaults() Options {
	if p := strings.Trim(strings.TrimSpace(o.RoutePrefix), "/"); p != "" {
		o.RoutePrefix = "/" + p
	} else {
		o.RoutePrefix = ""
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = defaultMaxBodyBytes
	}
	if o.InferTimeout < 0 {
		o.InferTimeout = 0
	}
	if o.BaseContext == nil {
		o.BaseContext = context.Background()
	}
	if o.Logger == nil {
		l := zerolog.Nop()
		o.Logger = &l
	}
	return o
}
