package manager

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultMaxQueueDepth = 32
	defaultMaxInflight   = 1
	defaultMaxWait       = 30 * time.Second
)

// Config encapsulates all tunables for Manager construction.
type Config struct {
	ModelID string
	Device  string
	// Load builds the handle; required.
	Load LoadFunc
	// BaseContext bounds the load. Request contexts never cancel a load.
	BaseContext   context.Context
	MaxQueueDepth int
	MaxInflight   int
	MaxWait       time.Duration
	Publisher     EventPublisher
	Logger        *zerolog.Logger
}

// New constructs a Manager in the uninitialized state.
func New(cfg Config) *Manager {
	m := &Manager{
		state:     StateUninitialized,
		modelID:   cfg.ModelID,
		device:    cfg.Device,
		load:      cfg.Load,
		baseCtx:   cfg.BaseContext,
		publisher: cfg.Publisher,
		done:      make(chan struct{}),
		startTime: time.Now(),
	}
	if m.baseCtx == nil {
		m.baseCtx = context.Background()
	}
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	if cfg.Logger != nil {
		m.log = cfg.Logger.With().Str("component", "manager").Str("model", cfg.ModelID).Logger()
	} else {
		m.log = zerolog.Nop()
	}
	// Apply defaults if unset
	depth := cfg.MaxQueueDepth
	if depth <= 0 {
		depth = defaultMaxQueueDepth
	}
	inflight := cfg.MaxInflight
	if inflight <= 0 {
		inflight = defaultMaxInflight
	}
	if inflight > depth {
		depth = inflight
	}
	m.maxWait = cfg.MaxWait
	if m.maxWait <= 0 {
		m.maxWait = defaultMaxWait
	}
	m.queueCh = make(chan struct{}, depth)
	m.genCh = make(chan struct{}, inflight)
	return m
}
