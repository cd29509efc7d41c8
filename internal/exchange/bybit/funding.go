package bybit

import (
	"context"
	"time"

	"github.com/ducminhle1904/trend-engine/internal/logger"
	"github.com/ducminhle1904/trend-engine/internal/monitoring"
	"github.com/ducminhle1904/trend-engine/pkg/types"
)

// FundingSource returns the current funding rate of a symbol
type FundingSource interface {
	GetFundingRate(ctx context.Context, symbol string) (float64, time.Time, error)
}

// FundingPoller turns periodic funding-rate reads into carry-cost observations
type FundingPoller struct {
	source   FundingSource
	symbols  []string
	interval time.Duration
	logger   *logger.Logger
	now      func() time.Time
}

// NewFundingPoller creates a poller over symbols
func NewFundingPoller(source FundingSource, symbols []string, interval time.Duration, log *logger.Logger) *FundingPoller {
	if log == nil {
		log = logger.Nop()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &FundingPoller{
		source:   source,
		symbols:  symbols,
		interval: interval,
		logger:   log,
		now:      time.Now,
	}
}

// Poll reads every symbol once. Failed symbols are logged and skipped.
func (p *FundingPoller) Poll(ctx context.Context) []types.CarryCost {
	out := make([]types.CarryCost, 0, len(p.symbols))
	for _, sym := range p.symbols {
		rate, _, err := p.source.GetFundingRate(ctx, sym)
		if err != nil {
			if ctx.Err() != nil {
				return out
			}
			monitoring.RecordError("funding")
			p.logger.Warning("funding rate for %s unavailable: %v", sym, err)
			continue
		}
		out = append(out, types.CarryCost{Symbol: sym, Rate: rate, Timestamp: p.now().UTC()})
	}
	return out
}

// Run polls immediately and then every interval until ctx is done
func (p *FundingPoller) Run(ctx context.Context, emit func(types.CarryCost)) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		for _, c := range p.Poll(ctx) {
			emit(c)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
