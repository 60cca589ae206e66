package app

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"modgraph/internal/engine/graph"
)

type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components"`
}

type HealthService struct {
	app *App
}

func NewHealthService(app *App) *HealthService {
	return &HealthService{app: app}
}

func (s *HealthService) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:     "up",
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]string),
	}

	// Addons paths
	missing := 0
	paths := s.app.manifests.Paths()
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			missing++
		}
	}
	if missing == len(paths) {
		status.Status = "degraded"
		status.Components["manifests"] = "no addons path is readable"
	} else {
		status.Components["manifests"] = fmt.Sprintf("ok (%d of %d paths)", len(paths)-missing, len(paths))
	}

	// State store
	if _, err := s.app.states.NamesByState(ctx, graph.StateInstalled); err != nil {
		status.Status = "down"
		status.Components["state_store"] = "error: " + err.Error()
	} else {
		status.Components["state_store"] = "ok"
	}

	if s.app.history != nil {
		status.Components["history"] = "ok"
	} else {
		status.Components["history"] = "disabled"
	}

	if plan := s.app.LastPlan(); plan != nil {
		status.Components["last_plan"] = fmt.Sprintf("ok (%d modules, %d pruned, %s ago)",
			len(plan.Entries), len(plan.Pruned), time.Since(plan.Timestamp).Round(time.Second))
	} else {
		status.Components["last_plan"] = "none"
	}

	status.Components["memory"] = fmt.Sprintf("%d MB", heapAllocMB())
	return status
}

func heapAllocMB() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.Alloc >> 20
}
