package backtest

import (
	"sync"
	"time"

	"github.com/ducminhle1904/trend-engine/pkg/types"
)

type paperPosition struct {
	quantity float64
	avgPrice float64
}

type queuedIntent struct {
	order *types.OrderIntent
	close *types.ClosePositionIntent
}

func (q queuedIntent) symbol() string {
	if q.order != nil {
		return q.order.Symbol
	}
	return q.close.Symbol
}

// PaperExecutor is a simulated venue. Intents are queued when submitted and
// filled against the next bar of their symbol, at its open, or at the close
// of the current bar when FillAtClose is used.
type PaperExecutor struct {
	commission float64

	mu        sync.Mutex
	queue     []queuedIntent
	positions map[string]*paperPosition
	lastClose map[string]float64

	realized    float64
	commissions float64
	turnover    float64
	fills       int
}

// NewPaperExecutor creates an executor charging commission as a fraction of notional
func NewPaperExecutor(commission float64) *PaperExecutor {
	return &PaperExecutor{
		commission: commission,
		positions:  make(map[string]*paperPosition),
		lastClose:  make(map[string]float64),
	}
}

// SubmitOrder queues an entry intent
func (p *PaperExecutor) SubmitOrder(intent types.OrderIntent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = append(p.queue, queuedIntent{order: &intent})
}

// SubmitClose queues a close intent
func (p *PaperExecutor) SubmitClose(intent types.ClosePositionIntent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = append(p.queue, queuedIntent{close: &intent})
}

// Pending returns the number of queued intents
func (p *PaperExecutor) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// FillAtOpen fills queued intents whose symbol has a bar in step, at that bar's open
func (p *PaperExecutor) FillAtOpen(step []types.Bar) []types.Fill {
	return p.fill(step, func(b types.Bar) float64 { return b.Open })
}

// FillAtClose fills queued intents whose symbol has a bar in step, at that bar's close
func (p *PaperExecutor) FillAtClose(step []types.Bar) []types.Fill {
	return p.fill(step, func(b types.Bar) float64 { return b.Close })
}

func (p *PaperExecutor) fill(step []types.Bar, price func(types.Bar) float64) []types.Fill {
	bars := make(map[string]types.Bar, len(step))
	for _, b := range step {
		bars[b.Symbol] = b
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var fills []types.Fill
	remaining := p.queue[:0]
	for _, q := range p.queue {
		b, ok := bars[q.symbol()]
		if !ok {
			remaining = append(remaining, q)
			continue
		}
		if q.order != nil {
			fills = append(fills, p.fillOrder(*q.order, price(b), b.Timestamp))
		} else {
			fills = append(fills, p.fillClose(*q.close, price(b), b.Timestamp))
		}
	}
	p.queue = remaining
	return fills
}

func (p *PaperExecutor) fillOrder(intent types.OrderIntent, price float64, ts time.Time) types.Fill {
	pos, ok := p.positions[intent.Symbol]
	if !ok {
		pos = &paperPosition{}
		p.positions[intent.Symbol] = pos
	}
	qty := intent.Quantity
	commission := price * qty * p.commission
	pos.avgPrice = (pos.avgPrice*pos.quantity + price*qty) / (pos.quantity + qty)
	pos.quantity += qty

	p.commissions += commission
	p.turnover += price * qty
	p.fills++
	return types.Fill{
		IntentID:   intent.ID,
		Symbol:     intent.Symbol,
		Side:       types.SideBuy,
		Quantity:   qty,
		Price:      price,
		Commission: commission,
		Timestamp:  ts,
	}
}

// fillClose reports a zero-quantity fill when there is nothing to close
func (p *PaperExecutor) fillClose(intent types.ClosePositionIntent, price float64, ts time.Time) types.Fill {
	fill := types.Fill{
		IntentID:  intent.ID,
		Symbol:    intent.Symbol,
		Side:      types.SideSell,
		Price:     price,
		Timestamp: ts,
	}
	pos, ok := p.positions[intent.Symbol]
	if !ok || pos.quantity <= 0 {
		return fill
	}

	qty := pos.quantity
	if intent.Fraction > 0 && intent.Fraction < 1 {
		qty = pos.quantity * intent.Fraction
	}
	fill.Quantity = qty
	fill.Commission = price * qty * p.commission

	p.realized += (price - pos.avgPrice) * qty
	p.commissions += fill.Commission
	p.turnover += price * qty
	p.fills++

	pos.quantity -= qty
	if intent.Fraction <= 0 || intent.Fraction >= 1 {
		delete(p.positions, intent.Symbol)
	}
	return fill
}

// Mark records the closes of a step for mark-to-market valuation
func (p *PaperExecutor) Mark(step []types.Bar) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, b := range step {
		p.lastClose[b.Symbol] = b.Close
	}
}

// Equity values the account: initial capital plus realized and unrealized
// PnL net of commissions. Exposure is open notional over equity.
func (p *PaperExecutor) Equity(initial float64) (equity, exposure float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	equity = initial + p.realized - p.commissions
	notional := 0.0
	for sym, pos := range p.positions {
		mark, ok := p.lastClose[sym]
		if !ok {
			mark = pos.avgPrice
		}
		equity += (mark - pos.avgPrice) * pos.quantity
		notional += mark * pos.quantity
	}
	if equity > 0 {
		exposure = notional / equity
	}
	return equity, exposure
}

// Position returns the simulated quantity held for symbol
func (p *PaperExecutor) Position(symbol string) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pos, ok := p.positions[symbol]; ok {
		return pos.quantity
	}
	return 0
}

// Turnover returns the traded notional and fill count
func (p *PaperExecutor) Turnover() (notional float64, fills int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.turnover, p.fills
}
