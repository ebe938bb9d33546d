package manager

import (
	"time"

	"modelserve/pkg/types"
)

// Snapshot returns a read-only view of the manager state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := Snapshot{State: m.state, ModelID: m.modelID}
	if m.err != nil {
		s.Err = m.err.Error()
	}
	return s
}

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	m.mu.RLock()
	defer m.mu.RUnlock()
	resp := types.StatusResponse{
		ModelID:        m.modelID,
		Device:         m.device,
		State:          string(m.state),
		LoadsTotal:     m.loadsTotal,
		QueueLen:       len(m.queueCh),
		Inflight:       len(m.genCh),
		MaxQueueDepth:  cap(m.queueCh),
		UptimeSeconds:  int64(time.Since(m.startTime) / time.Second),
		ServerTimeUnix: time.Now().Unix(),
	}
	if m.err != nil {
		resp.LastError = m.err.Error()
	}
	return resp
}
