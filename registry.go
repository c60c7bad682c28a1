package issuefs

import (
	"context"
	"time"

	"github.com/brettbedarf/issuefs/internal/util"
)

// Registry is an immutable mapping from backend to its configured client.
// Backends without credentials are simply absent.
type Registry struct {
	trackers map[Backend]Tracker
}

// NewRegistry copies trackers into a new Registry, dropping nil clients
func NewRegistry(trackers map[Backend]Tracker) *Registry {
	r := &Registry{trackers: make(map[Backend]Tracker, len(trackers))}
	for b, t := range trackers {
		if t != nil {
			r.trackers[b] = t
		}
	}
	return r
}

// Lookup returns the client for b if one is registered
func (r *Registry) Lookup(b Backend) (Tracker, bool) {
	if r == nil {
		return nil, false
	}
	t, ok := r.trackers[b]
	return t, ok
}

// Backends returns the registered backends in priority order
func (r *Registry) Backends() []Backend {
	out := make([]Backend, 0, len(Backends))
	for _, b := range Backends {
		if _, ok := r.Lookup(b); ok {
			out = append(out, b)
		}
	}
	return out
}

// Len returns the number of registered backends
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.trackers)
}

// ProbeVersions calls Version on every registered tracker, each bounded by timeout.
// Results are in priority order.
func ProbeVersions(ctx context.Context, r *Registry, timeout time.Duration) []VersionInfo {
	logger := util.GetLogger("ProbeVersions")

	infos := make([]VersionInfo, 0, r.Len())
	for _, b := range r.Backends() {
		t, _ := r.Lookup(b)
		pctx, cancel := context.WithTimeout(ctx, timeout)
		info := t.Version(pctx)
		cancel()

		info.Backend = b
		if info.CheckedAt.IsZero() {
			info.CheckedAt = time.Now()
		}
		if info.Success {
			logger.Info().Str("backend", string(b)).Str("version", info.Version).Str("url", info.BaseURL).Msg("Connected to tracker")
		} else {
			logger.Warn().Str("backend", string(b)).Str("error", info.Error).Msg("Could not connect to tracker; queries may fail")
		}
		infos = append(infos, info)
	}
	return infos
}
