// Package monitoring collects in-process counters for the serve endpoint's
// stats view. Counters reset on restart; durable metrics are out of scope.
package monitoring

import (
	"sort"
	"sync"
	"time"

	"github.com/plantops/queryengine/internal/model"
)

// CapabilityStats aggregates per-capability execution counters.
type CapabilityStats struct {
	Executions int   `json:"executions"`
	Timeouts   int   `json:"timeouts"`
	Errors     int   `json:"errors"`
	TotalMS    int64 `json:"total_ms"`
}

// Snapshot is a point-in-time view of engine activity.
type Snapshot struct {
	Requests      int                        `json:"requests"`
	Escalations   int                        `json:"escalations"`
	Outcomes      map[string]int             `json:"outcomes"`
	Capabilities  map[string]CapabilityStats `json:"capabilities"`
	AvgDurationMS int64                      `json:"avg_duration_ms"`
	CollectedAt   time.Time                  `json:"collected_at"`
}

// Collector accumulates request and capability counters. Safe for
// concurrent use.
type Collector struct {
	mu           sync.Mutex
	requests     int
	escalations  int
	totalMS      int64
	outcomes     map[model.Outcome]int
	capabilities map[string]CapabilityStats
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{
		outcomes:     make(map[model.Outcome]int),
		capabilities: make(map[string]CapabilityStats),
	}
}

// RecordRequest tallies one completed search request and its outcomes.
func (c *Collector) RecordRequest(resp *model.Response, outcomes []model.ExecutionOutcome, escalated bool) {
	if resp == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests++
	c.totalMS += resp.DurationMS
	c.outcomes[resp.Outcome]++
	if escalated {
		c.escalations++
	}
	for _, o := range outcomes {
		stats := c.capabilities[o.CapabilityID]
		stats.Executions++
		stats.TotalMS += o.Duration.Milliseconds()
		if o.TimedOut {
			stats.Timeouts++
		}
		if o.Err != nil {
			stats.Errors++
		}
		c.capabilities[o.CapabilityID] = stats
	}
}

// Collect returns a copy of the current counters.
func (c *Collector) Collect() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Requests:     c.requests,
		Escalations:  c.escalations,
		Outcomes:     make(map[string]int, len(c.outcomes)),
		Capabilities: make(map[string]CapabilityStats, len(c.capabilities)),
		CollectedAt:  time.Now().UTC(),
	}
	for k, v := range c.outcomes {
		snap.Outcomes[string(k)] = v
	}
	ids := make([]string, 0, len(c.capabilities))
	for id := range c.capabilities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		snap.Capabilities[id] = c.capabilities[id]
	}
	if c.requests > 0 {
		snap.AvgDurationMS = c.totalMS / int64(c.requests)
	}
	return snap
}
