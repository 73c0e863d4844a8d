package metrics

import (
	"github.com/GoSim-25-26J-441/marketsim/internal/market"
	"github.com/GoSim-25-26J-441/marketsim/internal/simulate"
	"github.com/GoSim-25-26J-441/marketsim/pkg/models"
	"github.com/GoSim-25-26J-441/marketsim/pkg/utils"
)

// Common metric names
const (
	MetricPrice       = "market_price"
	MetricQuantity    = "market_quantity"
	MetricOutput      = "market_output"
	MetricClipped     = "market_clipped_hours"
	MetricRegimePrice = "market_price_by_regime"
)

// Label names
const (
	LabelTechnology = "technology"
	LabelOutcome    = "outcome"
	LabelVariable   = "variable"
	LabelRegime     = "regime"
)

// Observe records one simulated hour. Collector satisfies simulate.Observer.
func (c *Collector) Observe(rec simulate.Record) {
	c.Record(MetricPrice, rec.Price, rec.Timestamp, nil)
	c.Record(MetricQuantity, rec.Quantity, rec.Timestamp, nil)
	for _, tech := range market.Technologies {
		c.Record(MetricOutput, rec.Output.Get(tech), rec.Timestamp, CreateTechnologyLabels(tech))
	}
	if rec.Outcome != market.Solved {
		c.Record(MetricClipped, 1, rec.Timestamp, CreateOutcomeLabels(rec.Outcome))
	}
	for variable, regime := range rec.Regimes {
		if c.tracksRegime(variable) {
			c.Record(MetricRegimePrice, rec.Price, rec.Timestamp, CreateRegimeLabels(variable, regime))
		}
	}
}

// CreateTechnologyLabels creates a labels map for a technology
func CreateTechnologyLabels(tech string) map[string]string {
	return map[string]string{
		LabelTechnology: tech,
	}
}

// CreateOutcomeLabels creates a labels map for a clipping outcome
func CreateOutcomeLabels(outcome market.Outcome) map[string]string {
	return map[string]string{
		LabelOutcome: outcome.String(),
	}
}

// CreateRegimeLabels creates a labels map for a variable's regime
func CreateRegimeLabels(variable, regime string) map[string]string {
	return map[string]string{
		LabelVariable: variable,
		LabelRegime:   regime,
	}
}

// BuildSummary converts collector series into a run summary. regimeVar, when
// set, selects the variable whose regimes key MeanPriceByRegime.
func BuildSummary(collector *Collector, regimeVar string) *models.RunSummary {
	collector.ComputeAllAggregations()

	summary := &models.RunSummary{
		MeanOutput:     make(map[string]float64, len(market.Technologies)),
		RegimeVariable: regimeVar,
	}
	summary.Start, summary.End = collector.Span()

	if agg := collector.GetOrComputeAggregation(MetricPrice, nil); agg != nil {
		summary.Hours = int(agg.Count)
		summary.MeanPrice = agg.Mean
		summary.MinPrice = agg.Min
		summary.MaxPrice = agg.Max
		summary.Price = agg

		points := collector.GetTimeSeries(MetricPrice, nil)
		prices := make([]float64, len(points))
		for i, p := range points {
			prices[i] = p.Value
		}
		summary.StdPrice = utils.StdDev(prices)
	}
	if agg := collector.GetOrComputeAggregation(MetricQuantity, nil); agg != nil {
		summary.MeanQuantity = agg.Mean
		summary.Quantity = agg
	}

	for _, tech := range market.Technologies {
		if agg := collector.GetOrComputeAggregation(MetricOutput, CreateTechnologyLabels(tech)); agg != nil {
			summary.MeanOutput[tech] = agg.Mean
		}
	}

	clipped := func(o market.Outcome) int {
		if agg := collector.GetOrComputeAggregation(MetricClipped, CreateOutcomeLabels(o)); agg != nil {
			return int(agg.Sum)
		}
		return 0
	}
	summary.FloorHours = clipped(market.ClippedFloor)
	summary.CeilingHours = clipped(market.ClippedCeiling)
	summary.FallbackHours = clipped(market.Fallback)

	if regimeVar != "" {
		for _, labels := range collector.GetLabelsForMetric(MetricRegimePrice) {
			if labels[LabelVariable] != regimeVar {
				continue
			}
			if summary.MeanPriceByRegime == nil {
				summary.MeanPriceByRegime = make(map[string]float64)
			}
			if agg := collector.GetOrComputeAggregation(MetricRegimePrice, labels); agg != nil {
				summary.MeanPriceByRegime[labels[LabelRegime]] = agg.Mean
			}
		}
	}
	return summary
}

// Summarize runs records through a fresh collector and summarizes them.
func Summarize(records []simulate.Record, regimeVar string) *models.RunSummary {
	c := NewCollector(regimeVar)
	for _, r := range records {
		c.Observe(r)
	}
	return BuildSummary(c, regimeVar)
}
