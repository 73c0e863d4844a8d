package models

import (
	"sync"
	"time"
)

// RunStatus represents the status of a simulation run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Terminal reports whether the status is final
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	}
	return false
}

// Run represents a market simulation run
type Run struct {
	ID        string            `json:"id"`
	Status    RunStatus         `json:"status"`
	Dataset   string            `json:"dataset,omitempty"`
	Seed      int64             `json:"seed"`
	CreatedAt time.Time         `json:"created_at"`
	StartedAt time.Time         `json:"started_at,omitempty"`
	EndedAt   time.Time         `json:"ended_at,omitempty"`
	Duration  time.Duration     `json:"duration,omitempty"`
	Summary   *RunSummary       `json:"summary,omitempty"`
	Error     string            `json:"error,omitempty"`
	Files     []string          `json:"files,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// RunSummary contains aggregated results of a simulation run
type RunSummary struct {
	Hours         int       `json:"hours"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	MeanPrice     float64   `json:"mean_price"`
	MinPrice      float64   `json:"min_price"`
	MaxPrice      float64   `json:"max_price"`
	StdPrice      float64   `json:"std_price"`
	MeanQuantity  float64   `json:"mean_quantity"`
	FloorHours    int       `json:"floor_hours"`
	CeilingHours  int       `json:"ceiling_hours"`
	FallbackHours int       `json:"fallback_hours"`

	// MeanOutput is technology -> mean hourly output
	MeanOutput map[string]float64 `json:"mean_output"`

	// RegimeVariable names the driver whose regimes key MeanPriceByRegime
	RegimeVariable    string             `json:"regime_variable,omitempty"`
	MeanPriceByRegime map[string]float64 `json:"mean_price_by_regime,omitempty"`

	Price    *Aggregation `json:"price,omitempty"`
	Quantity *Aggregation `json:"quantity,omitempty"`
}

// Progress tracks how many hours of a run have been cleared
type Progress struct {
	Total int `json:"total"`
	Done  int `json:"done"`
	mu    sync.RWMutex
}

// NewProgress creates a tracker for total hours
func NewProgress(total int) *Progress {
	return &Progress{Total: total}
}

// SetTotal sets the expected number of hours (thread-safe)
func (p *Progress) SetTotal(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Total = total
	if p.Done > total {
		p.Done = total
	}
}

// Advance marks n more hours as done (thread-safe)
func (p *Progress) Advance(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Done += n
	if p.Done > p.Total {
		p.Done = p.Total
	}
}

// Snapshot returns done and total hours (thread-safe)
func (p *Progress) Snapshot() (done, total int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Done, p.Total
}

// Fraction returns the completed share in [0, 1] (thread-safe)
func (p *Progress) Fraction() float64 {
	done, total := p.Snapshot()
	if total <= 0 {
		return 0
	}
	return float64(done) / float64(total)
}

// MetricPoint represents a single metric data point
type MetricPoint struct {
	Timestamp time.Time         `json:"timestamp"`
	Name      string            `json:"name"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
}

// Aggregation represents aggregated statistics for a metric
type Aggregation struct {
	Count int64   `json:"count"`
	Sum   float64 `json:"sum"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
}
