package monitoring

import (
	"time"
)

// TableStat describes one loaded table.
type TableStat struct {
	Kind        string `json:"kind"`
	Rows        int    `json:"rows"`
	MissingRows int    `json:"missing_rows"`
}

// StatsSource abstracts the registry methods needed by the collector.
type StatsSource interface {
	TableStats() []TableStat
	ModelNames() []string
}

// Snapshot holds a point-in-time view of service health.
type Snapshot struct {
	Status      string      `json:"status"`
	Tables      []TableStat `json:"tables"`
	Models      []string    `json:"models"`
	Batches     int64       `json:"batches"`
	Rows        int64       `json:"rows"`
	MissingRows int64       `json:"missing_rows"`
	MissingRate float64     `json:"missing_rate"`
	CollectedAt time.Time   `json:"collected_at"`
}

// Collector gathers a Snapshot from the registry and batch counters.
type Collector struct {
	src      StatsSource
	counters *Counters
}

// NewCollector creates a collector. A nil counters uses Default.
func NewCollector(src StatsSource, counters *Counters) *Collector {
	if counters == nil {
		counters = Default
	}
	return &Collector{src: src, counters: counters}
}

// Collect returns the current snapshot.
func (c *Collector) Collect() *Snapshot {
	snap := &Snapshot{
		Status:      "ok",
		Tables:      []TableStat{},
		Models:      []string{},
		Batches:     c.counters.Batches.Load(),
		Rows:        c.counters.Rows.Load(),
		MissingRows: c.counters.MissingRows.Load(),
		CollectedAt: time.Now().UTC(),
	}
	if c.src != nil {
		if t := c.src.TableStats(); t != nil {
			snap.Tables = t
		}
		if m := c.src.ModelNames(); m != nil {
			snap.Models = m
		}
	}
	if snap.Rows > 0 {
		snap.MissingRate = float64(snap.MissingRows) / float64(snap.Rows)
	}
	return snap
}
