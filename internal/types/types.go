package types

import (
	"fmt"
	"time"
)

// NinjaAsset is a raw device record as returned by NinjaOne.
type NinjaAsset map[string]any

// Identifier returns the id or hostname of the record, for logs and error entries.
func (a NinjaAsset) Identifier() string {
	for _, k := range []string{"id", "hostname", "name"} {
		if v, ok := a[k]; ok && v != nil {
			if s := fmt.Sprint(v); s != "" {
				return s
			}
		}
	}
	return "<unknown>"
}

// FreshAsset is the Freshservice CMDB payload produced by the mapping layer.
// Nullable fields are pointers so they encode as JSON null.
type FreshAsset struct {
	Name         string         `json:"name"`
	SerialNumber *string        `json:"serial_number"`
	Description  string         `json:"description"`
	Impact       *string        `json:"impact"`
	UsedByID     *int64         `json:"used_by_id"`
	Location     *string        `json:"location"`
	CustomFields map[string]any `json:"custom_fields"`
	Tags         []string       `json:"tags,omitempty"`
}

// UpsertResult is what Freshservice reported for a single upsert.
type UpsertResult struct {
	ID      string         `json:"id,omitempty" bson:"id,omitempty"`
	Created bool           `json:"created" bson:"created"`
	Raw     map[string]any `json:"-" bson:"-"`
}

// ErrorEntry captures a per-asset failure during a sync run.
type ErrorEntry struct {
	Asset string `json:"asset" bson:"asset"`
	Error string `json:"error" bson:"error"`
}

// SyncReport summarises one NinjaOne -> Freshservice run.
type SyncReport struct {
	RunID         string       `json:"run_id" bson:"run_id"`
	StartedAt     time.Time    `json:"started_at" bson:"started_at"`
	FinishedAt    time.Time    `json:"finished_at" bson:"finished_at"`
	DryRun        bool         `json:"dry_run" bson:"dry_run"`
	Fetched       int          `json:"fetched" bson:"fetched"`
	Created       int          `json:"created" bson:"created"`
	Updated       int          `json:"updated" bson:"updated"`
	Unchanged     int          `json:"unchanged" bson:"unchanged"`
	Skipped       int          `json:"skipped" bson:"skipped"`
	Errors        int          `json:"errors" bson:"errors"`
	ErrorEntries  []ErrorEntry `json:"error_entries" bson:"error_entries"`
	ErrorRate     float64      `json:"error_rate" bson:"error_rate"`
	MeanLatencyMs float64      `json:"mean_latency_ms" bson:"mean_latency_ms"`
	P95LatencyMs  float64      `json:"p95_latency_ms" bson:"p95_latency_ms"`
}

// Duration is the wall time of the run.
func (r SyncReport) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// StringPtr returns nil for the empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
