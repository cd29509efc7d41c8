package filters

// Decision is the outcome of one chain evaluation
type Decision struct {
	Pass           bool
	Reason         Reason
	Filter         string // name of the rejecting filter, empty on pass
	HighConviction bool
}

// Chain evaluates filters in order and stops at the first failure
type Chain struct {
	filters []Filter
}

// NewChain creates a chain from an explicit filter order
func NewChain(filters ...Filter) *Chain {
	return &Chain{filters: filters}
}

// NewDefaultChain builds the standard order: warmup, universe, regime, trend,
// relative strength, volume, breakout, candle quality.
func NewDefaultChain(cfg Config) *Chain {
	return NewChain(
		WarmupFilter{},
		UniverseFilter{},
		RegimeFilter{},
		TrendFilter{},
		RelativeStrengthFilter{},
		VolumeFilter{Multiplier: cfg.VolumeMultiplier},
		BreakoutFilter{Multiplier: cfg.TriggerMultiplier},
		CandleQualityFilter{MaxUpperWickRatio: cfg.MaxUpperWickRatio},
	)
}

// Evaluate runs the chain for one candidate
func (ch *Chain) Evaluate(c *Candidate) Decision {
	for _, f := range ch.filters {
		if ok, reason := f.Evaluate(c); !ok {
			return Decision{Reason: reason, Filter: f.Name()}
		}
	}
	d := Decision{Pass: true, Reason: ReasonEntrySignal}
	if c.Squeeze != nil {
		d.HighConviction = c.Squeeze.IsHighConviction()
	}
	return d
}

// Names returns the filter names in evaluation order
func (ch *Chain) Names() []string {
	names := make([]string, len(ch.filters))
	for i, f := range ch.filters {
		names[i] = f.Name()
	}
	return names
}
