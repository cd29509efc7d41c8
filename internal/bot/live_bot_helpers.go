package bot

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ducminhle1904/trend-engine/internal/backtest"
	"github.com/ducminhle1904/trend-engine/internal/monitoring"
	"github.com/ducminhle1904/trend-engine/internal/notifications"
	"github.com/ducminhle1904/trend-engine/pkg/types"
)

// stepBuffer groups streamed bars into one step per timestamp. A step is
// complete once every feed symbol has reported; bars at or before the last
// dispatched timestamp are dropped.
type stepBuffer struct {
	expected map[string]bool
	ts       time.Time
	bars     map[string]types.Bar
	last     time.Time
}

func newStepBuffer(symbols []string, last time.Time) *stepBuffer {
	expected := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		expected[s] = true
	}
	return &stepBuffer{expected: expected, bars: make(map[string]types.Bar), last: last}
}

// add buffers b and returns the steps it completed, oldest first, and whether
// b opened a new pending step.
func (s *stepBuffer) add(b types.Bar) (ready [][]types.Bar, opened bool) {
	if !s.expected[b.Symbol] || !b.Timestamp.After(s.last) {
		return nil, false
	}
	if len(s.bars) > 0 {
		if b.Timestamp.Before(s.ts) {
			return nil, false
		}
		if b.Timestamp.After(s.ts) {
			ready = append(ready, s.flush())
		}
	}
	if len(s.bars) == 0 {
		s.ts = b.Timestamp
		opened = true
	}
	s.bars[b.Symbol] = b
	if len(s.bars) == len(s.expected) {
		ready = append(ready, s.flush())
	}
	return ready, opened
}

func (s *stepBuffer) pending() bool {
	return len(s.bars) > 0
}

// flush returns the pending bars sorted by symbol, or nil when nothing is pending
func (s *stepBuffer) flush() []types.Bar {
	if len(s.bars) == 0 {
		return nil
	}
	step := make([]types.Bar, 0, len(s.bars))
	for _, b := range s.bars {
		step = append(step, b)
	}
	sort.Slice(step, func(i, j int) bool { return step[i].Symbol < step[j].Symbol })
	s.last = s.ts
	s.bars = make(map[string]types.Bar)
	return step
}

// logStatus logs equity, exposure and regime after a live step
func (bot *LiveBot) logStatus(sess *backtest.Session, step []types.Bar) {
	point, ok := sess.Last()
	if !ok {
		return
	}
	bot.logger.Status("step %s: %d bars | regime %s | equity $%.2f | exposure %.1f%%",
		step[0].Timestamp.Format("2006-01-02 15:04"), len(step), sess.Regime().Type,
		point.Equity, point.Exposure*100)
}

// printStartupInfo prints initial startup information
func (bot *LiveBot) printStartupInfo() {
	t := table.NewWriter()
	t.SetOutputMirror(bot.deps.Out)
	t.SetTitle("LIVE PAPER SESSION")
	t.SetStyle(table.StyleRounded)

	env := bot.opts.Environment
	if env == "" {
		env = "unknown"
	}
	t.AppendRows([]table.Row{
		{"Symbols", strings.Join(bot.symbols, ", ")},
		{"Interval", string(bot.opts.Interval)},
		{"Warm-up Bars", bot.opts.WarmupBars},
		{"Step Timeout", bot.opts.StepTimeout.String()},
		{"Environment", env},
		{"Funding Feed", fmt.Sprintf("%t", bot.deps.Carry != nil)},
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 15, WidthMax: 15, Align: text.AlignLeft},
		{Number: 2, WidthMin: 30, WidthMax: 60, Align: text.AlignLeft},
	})

	t.Render()
}

// alert sends an operator alert; delivery failures are logged only
func (bot *LiveBot) alert(level, format string, args ...interface{}) {
	if bot.deps.Notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := bot.deps.Notifier.SendAlert(ctx, level, fmt.Sprintf(format, args...)); err != nil {
		monitoring.RecordError("notify")
		bot.logger.Warning("alert not sent: %v", err)
	}
}

func (bot *LiveBot) alertSummary(res *backtest.Results, runErr error) {
	if len(res.Failures) > 0 {
		syms := make([]string, 0, len(res.Failures))
		for sym := range res.Failures {
			syms = append(syms, sym)
		}
		sort.Strings(syms)
		bot.alert(notifications.LevelWarning, "actors failed: %s", strings.Join(syms, ", "))
	}
	if runErr != nil {
		bot.alert(notifications.LevelError, "live session stopped: %v", runErr)
		return
	}
	bot.alert(notifications.LevelSuccess, "live session ended: %d steps, %d trades, return %.2f%%",
		bot.steps, res.TotalTrades, res.TotalReturn*100)
}
