package history

import "time"

// PrunedModule mirrors a module dropped from a resolved graph.
type PrunedModule struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
	Cause  string `json:"cause,omitempty"`
}

// PlanRecord is one persisted resolve run.
type PlanRecord struct {
	RunID         string         `json:"run_id"`
	Mode          string         `json:"mode"`
	Timestamp     time.Time      `json:"timestamp"`
	Order         []string       `json:"order"`
	Pruned        []PrunedModule `json:"pruned"`
	AutoInstalled []string       `json:"auto_installed,omitempty"`
	Duration      time.Duration  `json:"duration"`
}
