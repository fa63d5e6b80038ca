package app

import (
	"context"
	"fmt"
	"time"

	"github.com/inboxpilot/voicepilot/internal/backend"
	"github.com/inboxpilot/voicepilot/internal/store"
	"github.com/inboxpilot/voicepilot/internal/voice"
	"github.com/inboxpilot/voicepilot/pkg/core/health"
	"github.com/inboxpilot/voicepilot/pkg/core/version"
)

// BackendPinger reports backend availability
type BackendPinger interface {
	HealthCheck(ctx context.Context) (*backend.HealthStatus, error)
}

// StatusSource reports the controller status
type StatusSource interface {
	Status() voice.Status
}

// NewHealthRegistry registers one check per collaborator. stuckAfter is
// how long the controller may stay outside Idle before it counts as stuck.
func NewHealthRegistry(ping BackendPinger, ctrl StatusSource, queue store.QueueStore, stuckAfter time.Duration, now func() time.Time) *health.Registry {
	r := health.NewRegistry("voicepilot", version.Release)
	r.RegisterFunc("backend", backendCheck(ping))
	r.RegisterFunc("controller", controllerCheck(ctrl, stuckAfter, now))
	if queue != nil {
		r.RegisterFunc("queue-store", queueCheck(queue))
	}
	return r
}

func backendCheck(ping BackendPinger) func(ctx context.Context) health.CheckResult {
	return func(ctx context.Context) health.CheckResult {
		res := health.CheckResult{Name: "backend"}
		st, err := ping.HealthCheck(ctx)
		if err != nil {
			res.Status = health.StatusUnhealthy
			res.Message = err.Error()
			return res
		}
		res.Status = health.StatusHealthy
		res.Message = st.Status
		res.Details = map[string]interface{}{"version": st.Version}
		return res
	}
}

func controllerCheck(ctrl StatusSource, stuckAfter time.Duration, now func() time.Time) func(ctx context.Context) health.CheckResult {
	return func(ctx context.Context) health.CheckResult {
		st := ctrl.Status()
		res := health.CheckResult{
			Name:    "controller",
			Status:  health.StatusHealthy,
			Message: st.State.Label(),
			Details: map[string]interface{}{
				"state": st.State.String(),
				"mode":  string(st.Mode),
				"queue": st.Queue,
			},
		}
		if st.State == voice.StateIdle || st.Since.IsZero() {
			return res
		}
		if d := now().Sub(st.Since); d > stuckAfter {
			res.Status = health.StatusDegraded
			res.Message = fmt.Sprintf("%s for %s", st.State, d.Round(time.Second))
		}
		return res
	}
}

func queueCheck(queue store.QueueStore) func(ctx context.Context) health.CheckResult {
	return func(ctx context.Context) health.CheckResult {
		res := health.CheckResult{Name: "queue-store"}
		stats, err := queue.Statistics(ctx)
		if err != nil {
			res.Status = health.StatusUnhealthy
			res.Message = err.Error()
			return res
		}
		res.Status = health.StatusHealthy
		res.Details = stats
		return res
	}
}
