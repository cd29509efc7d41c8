package backtest

import (
	"math"
	"time"

	"github.com/ducminhle1904/trend-engine/pkg/types"
)

// EquityPoint is one mark-to-market sample taken after every replay step
type EquityPoint struct {
	Timestamp time.Time
	Equity    float64
	Exposure  float64
}

// Results is the outcome of one replay
type Results struct {
	StartEquity      float64
	EndEquity        float64
	TotalReturn      float64
	AnnualizedReturn float64
	MaxDrawdown      float64
	SharpeRatio      float64
	SortinoRatio     float64
	ProfitFactor     float64
	WinRate          float64
	TotalTrades      int
	WinningTrades    int
	LosingTrades     int
	MaxExposure      float64
	AvgExposure      float64
	Turnover         float64

	Trades        []types.TradeRecord
	EquityCurve   []EquityPoint
	FilterReports []types.FilterStatsReport
	FilterTotals  types.FilterStatsReport
	Failures      map[string]error
}

// CalculateSharpeRatio computes the per-trade Sharpe ratio from trade returns
func (b *Results) CalculateSharpeRatio() float64 {
	var returns []float64
	for _, trade := range b.Trades {
		if trade.EntryPrice > 0 && trade.Quantity > 0 {
			returns = append(returns, trade.PnL/(trade.EntryPrice*trade.Quantity))
		}
	}
	if len(returns) == 0 {
		return 0
	}

	avgReturn := mean(returns)
	variance := 0.0
	for _, r := range returns {
		variance += math.Pow(r-avgReturn, 2)
	}
	stdDev := math.Sqrt(variance / float64(len(returns)))
	if stdDev < 1e-10 {
		return 0
	}

	// risk-free rate assumed zero
	return avgReturn / stdDev
}

// CalculateProfitFactor calculates gross profit over gross loss
func (b *Results) CalculateProfitFactor() float64 {
	totalProfit := 0.0
	totalLoss := 0.0
	for _, trade := range b.Trades {
		if trade.PnL > 0 {
			totalProfit += trade.PnL
		} else {
			totalLoss += math.Abs(trade.PnL)
		}
	}

	if totalLoss == 0 {
		if totalProfit > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return totalProfit / totalLoss
}

// CalculateWinRate calculates the win rate percentage
func (b *Results) CalculateWinRate() float64 {
	if len(b.Trades) == 0 {
		return 0
	}
	wins := 0
	for _, trade := range b.Trades {
		if trade.PnL > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(b.Trades)) * 100
}

// UpdateMetrics updates all calculated metrics
func (b *Results) UpdateMetrics() {
	b.SharpeRatio = b.CalculateSharpeRatio()
	b.ProfitFactor = b.CalculateProfitFactor()
	b.WinRate = b.CalculateWinRate()

	b.TotalTrades = len(b.Trades)
	b.WinningTrades = 0
	for _, trade := range b.Trades {
		if trade.PnL > 0 {
			b.WinningTrades++
		}
	}
	b.LosingTrades = b.TotalTrades - b.WinningTrades

	b.calculateCurveMetrics()
}

// calculateCurveMetrics derives return, drawdown and exposure from the equity curve
func (b *Results) calculateCurveMetrics() {
	b.EndEquity = b.StartEquity
	if len(b.EquityCurve) == 0 {
		return
	}

	peak := b.StartEquity
	maxExp, totalExp := 0.0, 0.0
	for _, point := range b.EquityCurve {
		if point.Equity > peak {
			peak = point.Equity
		}
		if peak > 0 {
			if dd := (peak - point.Equity) / peak; dd > b.MaxDrawdown {
				b.MaxDrawdown = dd
			}
		}
		if point.Exposure > maxExp {
			maxExp = point.Exposure
		}
		totalExp += point.Exposure
	}
	b.MaxExposure = maxExp
	b.AvgExposure = totalExp / float64(len(b.EquityCurve))

	last := b.EquityCurve[len(b.EquityCurve)-1]
	b.EndEquity = last.Equity
	if b.StartEquity > 0 {
		b.TotalReturn = (b.EndEquity - b.StartEquity) / b.StartEquity
	}

	years := last.Timestamp.Sub(b.EquityCurve[0].Timestamp).Hours() / (24 * 365.25)
	if years > 0 && b.StartEquity > 0 && b.EndEquity > 0 {
		b.AnnualizedReturn = math.Pow(b.EndEquity/b.StartEquity, 1.0/years) - 1.0
	}

	b.SortinoRatio = b.calculateSortinoRatio()
}

// calculateSortinoRatio computes the per-step Sortino ratio (return / downside deviation)
func (b *Results) calculateSortinoRatio() float64 {
	if len(b.EquityCurve) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(b.EquityCurve)-1)
	for i := 1; i < len(b.EquityCurve); i++ {
		if prev := b.EquityCurve[i-1].Equity; prev > 0 {
			returns = append(returns, (b.EquityCurve[i].Equity-prev)/prev)
		}
	}
	if len(returns) == 0 {
		return 0
	}

	downsideVariance := 0.0
	downsideCount := 0
	for _, r := range returns {
		if r < 0 {
			downsideVariance += r * r
			downsideCount++
		}
	}
	if downsideCount == 0 {
		return 0
	}
	return mean(returns) / math.Sqrt(downsideVariance/float64(downsideCount))
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
