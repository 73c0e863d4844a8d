package metrics

import (
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/marketsim/pkg/models"
	"github.com/GoSim-25-26J-441/marketsim/pkg/utils"
)

// Collector keeps per-hour series of a market run. The covered span is the
// simulated time of the first and last recorded points.
type Collector struct {
	mu sync.RWMutex

	startTime time.Time
	endTime   time.Time
	// regimeVars limits which variables get per-regime price series; nil
	// means all
	regimeVars map[string]bool

	// Time-series data: metric name -> labels -> []MetricPoint
	timeSeries map[string]map[string][]*models.MetricPoint

	// Aggregated data: metric name -> labels -> Aggregation
	aggregations map[string]map[string]*models.Aggregation
}

// NewCollector creates a collector. regimeVars restricts per-regime price
// tracking to the named variables; none tracks every variable.
func NewCollector(regimeVars ...string) *Collector {
	c := &Collector{
		timeSeries:   make(map[string]map[string][]*models.MetricPoint),
		aggregations: make(map[string]map[string]*models.Aggregation),
	}
	if len(regimeVars) > 0 {
		c.regimeVars = make(map[string]bool, len(regimeVars))
		for _, v := range regimeVars {
			c.regimeVars[v] = true
		}
	}
	return c
}

// tracksRegime reports whether per-regime prices are kept for variable.
func (c *Collector) tracksRegime(variable string) bool {
	return c.regimeVars == nil || c.regimeVars[variable]
}

// Span returns the simulated time covered by recorded points.
func (c *Collector) Span() (time.Time, time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.startTime, c.endTime
}

// Record records a metric value at a specific timestamp
func (c *Collector) Record(name string, value float64, timestamp time.Time, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.startTime.IsZero() {
		c.startTime, c.endTime = timestamp, timestamp
	} else {
		c.startTime = utils.MinTime(c.startTime, timestamp)
		c.endTime = utils.MaxTime(c.endTime, timestamp)
	}

	labelKey := labelKey(labels)
	if c.timeSeries[name] == nil {
		c.timeSeries[name] = make(map[string][]*models.MetricPoint)
	}
	if c.timeSeries[name][labelKey] == nil {
		c.timeSeries[name][labelKey] = make([]*models.MetricPoint, 0)
	}

	point := &models.MetricPoint{
		Timestamp: timestamp,
		Name:      name,
		Value:     value,
		Labels:    copyLabels(labels),
	}

	c.timeSeries[name][labelKey] = append(c.timeSeries[name][labelKey], point)
	// a cached aggregation is stale once its series grows
	if c.aggregations[name] != nil {
		delete(c.aggregations[name], labelKey)
	}
}

// GetTimeSeries returns all time-series points for a metric
func (c *Collector) GetTimeSeries(name string, labels map[string]string) []*models.MetricPoint {
	c.mu.RLock()
	defer c.mu.RUnlock()

	labelKey := labelKey(labels)
	if c.timeSeries[name] == nil {
		return nil
	}
	points := c.timeSeries[name][labelKey]
	if points == nil {
		return nil
	}

	// Return a copy
	result := make([]*models.MetricPoint, len(points))
	for i, p := range points {
		result[i] = &models.MetricPoint{
			Timestamp: p.Timestamp,
			Name:      p.Name,
			Value:     p.Value,
			Labels:    copyLabels(p.Labels),
		}
	}
	return result
}

// GetOrComputeAggregation gets cached aggregation or computes it
func (c *Collector) GetOrComputeAggregation(name string, labels map[string]string) *models.Aggregation {
	c.mu.Lock()
	defer c.mu.Unlock()

	labelKey := labelKey(labels)
	if c.aggregations[name] == nil {
		c.aggregations[name] = make(map[string]*models.Aggregation)
	}

	// Check cache
	if agg, ok := c.aggregations[name][labelKey]; ok {
		return agg
	}

	// Compute and cache
	points := c.getPointsUnsafe(name, labelKey)
	if len(points) == 0 {
		return nil
	}

	agg := calculateAggregation(points)
	c.aggregations[name][labelKey] = agg
	return agg
}

// ComputeAllAggregations computes aggregations for all metrics
func (c *Collector) ComputeAllAggregations() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for name, labelMap := range c.timeSeries {
		if c.aggregations[name] == nil {
			c.aggregations[name] = make(map[string]*models.Aggregation)
		}
		for labelKey, points := range labelMap {
			if len(points) > 0 {
				c.aggregations[name][labelKey] = calculateAggregation(points)
			}
		}
	}
}

// GetLabelsForMetric returns all label combinations for a metric
func (c *Collector) GetLabelsForMetric(name string) []map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.timeSeries[name] == nil {
		return nil
	}

	keys := make([]string, 0, len(c.timeSeries[name]))
	for key, points := range c.timeSeries[name] {
		if len(points) > 0 {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	labelsList := make([]map[string]string, 0, len(keys))
	for _, key := range keys {
		labelsList = append(labelsList, copyLabels(c.timeSeries[name][key][0].Labels))
	}
	return labelsList
}

// getPointsUnsafe returns points without locking (caller must hold lock)
func (c *Collector) getPointsUnsafe(name, labelKey string) []*models.MetricPoint {
	if c.timeSeries[name] == nil {
		return nil
	}
	return c.timeSeries[name][labelKey]
}

// labelKey creates a key from labels for map lookup
func labelKey(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
		b.WriteByte(',')
	}
	return b.String()
}

// copyLabels creates a copy of the labels map
func copyLabels(labels map[string]string) map[string]string {
	if labels == nil {
		return nil
	}
	copy := make(map[string]string, len(labels))
	for k, v := range labels {
		copy[k] = v
	}
	return copy
}

// calculateAggregation calculates aggregated statistics from metric points
func calculateAggregation(points []*models.MetricPoint) *models.Aggregation {
	if len(points) == 0 {
		return nil
	}

	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}

	count := int64(len(values))
	sum := utils.Sum(values)
	min := slices.Min(values)
	max := slices.Max(values)
	mean := sum / float64(count)
	p50 := utils.Percentile(values, 50)
	p95 := utils.Percentile(values, 95)
	p99 := utils.Percentile(values, 99)

	return &models.Aggregation{
		Count: count,
		Sum:   sum,
		Min:   min,
		Max:   max,
		Mean:  mean,
		P50:   p50,
		P95:   p95,
		P99:   p99,
	}
}
