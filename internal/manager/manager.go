package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Manager owns the process-wide model handle. The zero value is not usable;
// construct with New.
type Manager struct {
	mu         sync.RWMutex
	state      State
	handle     Handle
	err        error
	done       chan struct{} // closed when the load settles
	closed     bool
	load       LoadFunc
	baseCtx    context.Context
	modelID    string
	device     string
	loadsTotal uint64
	publisher  EventPublisher
	log        zerolog.Logger

	// Admission
	genCh   chan struct{} // in-flight slots
	queueCh chan struct{} // queued + in-flight slots
	maxWait time.Duration

	startTime time.Time
}

// ModelID returns the configured model identifier.
func (m *Manager) ModelID() string { return m.modelID }

// Device returns the configured compute device.
func (m *Manager) Device() string { return m.device }

// SetEventPublisher replaces the event sink. Call before Warm/Ensure.
func (m *Manager) SetEventPublisher(p EventPublisher) {
	if p == nil {
		p = noopPublisher{}
	}
	m.mu.Lock()
	m.publisher = p
	m.mu.Unlock()
}

// Ready reports whether the handle has been loaded successfully.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateReady
}

// Warm triggers the load without waiting for it. It is the startup hook.
func (m *Manager) Warm() {
	m.mu.Lock()
	m.startLoadLocked()
	m.mu.Unlock()
}

// Ensure returns the loaded handle, triggering the load on first touch.
// Concurrent callers share the single load and observe the same handle or
// the same error. ctx only bounds how long this caller waits.
func (m *Manager) Ensure(ctx context.Context) (Handle, error) {
	m.mu.Lock()
	switch m.state {
	case StateReady:
		h := m.handle
		m.mu.Unlock()
		return h, nil
	case StateFailed:
		err := m.err
		m.mu.Unlock()
		return nil, err
	}
	m.startLoadLocked()
	done := m.done
	m.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state == StateReady {
		return m.handle, nil
	}
	return nil, m.err
}

// startLoadLocked moves uninitialized -> loading and starts the load.
// Caller holds m.mu.
func (m *Manager) startLoadLocked() {
	if m.state != StateUninitialized {
		return
	}
	if m.closed {
		m.state = StateFailed
		m.err = modelLoadError{modelID: m.modelID, err: errManagerClosed}
		close(m.done)
		return
	}
	m.state = StateLoading
	m.loadsTotal++
	go m.runLoad()
}

func (m *Manager) runLoad() {
	start := time.Now()
	m.log.Info().Str("device", m.device).Msg("model load start")
	m.publisher.Publish(Event{Name: EventLoadStart, ModelID: m.modelID, Fields: map[string]any{"device": m.device}})

	h, err := m.callLoad()
	dur := time.Since(start)
	loadDuration.Observe(dur.Seconds())

	m.mu.Lock()
	var orphan Handle
	if err == nil && m.closed {
		// Close ran while loading; nobody will release h later.
		orphan, err = h, errManagerClosed
	}
	if err != nil {
		m.state = StateFailed
		m.err = modelLoadError{modelID: m.modelID, err: err}
	} else {
		m.state = StateReady
		m.handle = h
	}
	close(m.done)
	m.mu.Unlock()
	if orphan != nil {
		if cerr := orphan.Close(); cerr != nil {
			m.log.Warn().Err(cerr).Msg("close handle loaded after shutdown")
		}
	}

	if err != nil {
		loadsTotal.WithLabelValues("failed").Inc()
		m.log.Error().Err(err).Dur("dur", dur).Msg("model load failed")
		m.publisher.Publish(Event{Name: EventLoadFailed, ModelID: m.modelID, Fields: map[string]any{"error": err.Error()}})
		return
	}
	loadsTotal.WithLabelValues("ready").Inc()
	m.log.Info().Dur("dur", dur).Msg("model ready")
	m.publisher.Publish(Event{Name: EventLoadReady, ModelID: m.modelID, Fields: map[string]any{"dur_ms": int(dur / time.Millisecond)}})
}

// callLoad converts a panicking loader into a load failure.
func (m *Manager) callLoad() (h Handle, err error) {
	if m.load == nil {
		return nil, errors.New("no model loader configured")
	}
	defer func() {
		if r := recover(); r != nil {
			h, err = nil, fmt.Errorf("model loader panic: %v", r)
		}
	}()
	h, err = m.load(m.baseCtx)
	if err == nil && h == nil {
		err = errors.New("model loader returned no handle")
	}
	return h, err
}

var errManagerClosed = errors.New("manager closed")

// Close releases the handle when one was loaded. Close does not wait for an
// in-progress load; a load that completes afterwards closes its own handle.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	h := m.handle
	m.handle = nil
	if m.state == StateReady {
		m.state = StateFailed
		m.err = modelLoadError{modelID: m.modelID, err: errManagerClosed}
	}
	m.mu.Unlock()
	if h == nil {
		return nil
	}
	return h.Close()
}
