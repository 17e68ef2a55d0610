package manager

import (
	"musicd/pkg/types"
)

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	m.mu.RLock()
	lastErr := m.lastErr
	m.mu.RUnlock()
	now := m.now()
	resp := types.StatusResponse{
		Loading:           m.handles.inProgress(),
		Variants:          m.Variants(),
		LastError:         lastErr,
		LoadsTotal:        m.handles.loads.Load(),
		LoadFailuresTotal: m.handles.failures.Load(),
		GenerationsTotal:  m.generations.Load(),
		UptimeSeconds:     int64(m.elapsedSince(m.startTime).Seconds()),
		ServerTimeUnix:    now.Unix(),
	}
	handles := m.handles.all()
	resp.Handles = make([]types.HandleStatus, 0, len(handles))
	for _, h := range handles {
		resp.Handles = append(resp.Handles, types.HandleStatus{
			Variant:          h.Variant.Name,
			ModelID:          h.Variant.ModelID,
			Device:           string(h.Device.Kind),
			DeviceDescriptor: h.Device.Descriptor,
			SampleRate:       h.SampleRate(),
			LoadedAt:         h.LoadedAt.Unix(),
			LoadSeconds:      h.LoadDuration.Seconds(),
			LastUsed:         h.LastUsed().Unix(),
			QueueLen:         len(h.queueCh),
			Inflight:         len(h.genCh),
			MaxQueueDepth:    cap(h.queueCh),
			Generations:      h.generations.Load(),
		})
	}
	return resp
}
