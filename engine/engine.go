// Package engine runs the sizing core once per incoming signal.
//
// Process holds a single lock for the whole signal: mark to market, trail
// stops, close stopped legs, then size and book the entry. Every decision
// therefore comes from one consistent view of equity and open legs.
package engine

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/evdnx/gosizer/config"
	"github.com/evdnx/gosizer/equity"
	"github.com/evdnx/gosizer/executor"
	"github.com/evdnx/gosizer/instrument"
	"github.com/evdnx/gosizer/logger"
	"github.com/evdnx/gosizer/metrics"
	"github.com/evdnx/gosizer/portfolio"
	"github.com/evdnx/gosizer/risk"
	"github.com/evdnx/gosizer/stop"
	"github.com/evdnx/gosizer/types"
)

var (
	// ErrTradeOpen rejects a base entry while the instrument has a trade.
	ErrTradeOpen = portfolio.ErrTradeOpen
	// ErrNoOpenTrade rejects pyramids and exits without a trade.
	ErrNoOpenTrade = portfolio.ErrNoTrade
)

// equityDriftPct is the broker/ledger equity gap that gets logged.
const equityDriftPct = 1.0

// Engine owns the equity ledger and the book. Safe for concurrent use;
// signals are handled one at a time in call order.
type Engine struct {
	mu       sync.Mutex
	cfg      config.SizerConfig
	registry *instrument.Registry
	sizer    *risk.Sizer
	trailer  stop.Trailer
	tracker  *equity.Tracker
	book     *portfolio.Book
	exec     executor.Executor
	log      logger.Logger
}

// New builds an engine with a fresh ledger at cfg.InitialCapital.
func New(cfg config.SizerConfig, exec executor.Executor, log logger.Logger) (*Engine, error) {
	tr, err := equity.NewTracker(cfg.InitialCapital)
	if err != nil {
		return nil, err
	}
	return build(cfg, tr, portfolio.NewBook(), exec, log)
}

// Resume builds an engine from a persisted snapshot.
func Resume(cfg config.SizerConfig, snap portfolio.Snapshot, exec executor.Executor, log logger.Logger) (*Engine, error) {
	book, tr, err := portfolio.Restore(snap)
	if err != nil {
		return nil, err
	}
	return build(cfg, tr, book, exec, log)
}

func build(cfg config.SizerConfig, tr *equity.Tracker, book *portfolio.Book,
	exec executor.Executor, log logger.Logger) (*Engine, error) {

	sizer, err := risk.NewSizer(cfg)
	if err != nil {
		return nil, err
	}
	reg, err := cfg.Registry()
	if err != nil {
		return nil, err
	}
	mode, err := stop.ParseMode(cfg.StopMode)
	if err != nil {
		return nil, err
	}
	if exec == nil {
		return nil, errors.New("engine needs an executor")
	}
	if log == nil {
		if log, err = logger.NewZapLogger(cfg.LogLevel); err != nil {
			return nil, err
		}
	}
	return &Engine{
		cfg:      sizer.Config(),
		registry: reg,
		sizer:    sizer,
		trailer:  stop.NewTrailer(mode, cfg.ATRTrailMultiplier),
		tracker:  tr,
		book:     book,
		exec:     exec,
		log:      log,
	}, nil
}

// Process handles one signal and returns the decision taken for it. For
// EXIT and stop-outs the decision's Lots is the number of lots closed.
func (e *Engine) Process(sig types.Signal, acct types.Account) (types.SizingDecision, error) {
	if err := sig.Validate(); err != nil {
		e.log.Warn("signal_rejected", logger.Err(err))
		return types.SizingDecision{}, err
	}
	spec, err := e.registry.Resolve(sig.Instrument, sig.Timestamp)
	if err != nil {
		e.log.Error("instrument_lookup_failed", logger.String("instrument", sig.Instrument), logger.Err(err))
		return types.SizingDecision{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	stopped, err := e.refresh(sig)
	if err != nil {
		return types.SizingDecision{}, err
	}
	e.checkDrift(acct)

	var d types.SizingDecision
	switch sig.Type {
	case types.BaseEntry:
		d, err = e.baseEntry(sig, acct, spec)
	case types.Pyramid:
		d, err = e.pyramid(sig, acct, spec)
	case types.Exit:
		d, err = e.exit(sig, stopped)
	default:
		d = types.SizingDecision{Reason: "mark only"}
		if stopped > 0 {
			d = types.SizingDecision{Lots: stopped, Constraint: types.ConstraintExit, Reason: "stop hit"}
		}
	}
	if err != nil {
		return d, err
	}
	e.record(sig, d)
	return d, nil
}

// refresh marks the instrument, trails its stops and closes legs whose
// stop has been reached. It returns the lots closed.
func (e *Engine) refresh(sig types.Signal) (int, error) {
	e.book.Mark(sig.Instrument, sig.Price)
	e.book.Trail(sig.Instrument, e.trailer, stop.Input{
		Price:      sig.Price,
		SignalStop: sig.Stop,
		ATR:        sig.ATR,
	})
	e.log.Debug("stops_trailed",
		logger.String("instrument", sig.Instrument),
		logger.String("mode", e.trailer.Mode().String()),
		logger.Float64("price", sig.Price),
	)

	var closed int
	if hit := e.book.Stopped(sig.Instrument, sig.Price); len(hit) > 0 {
		ids := make([]string, 0, len(hit))
		lots := 0
		for _, l := range hit {
			ids = append(ids, l.ID)
			lots += l.Lots
		}
		n, err := e.closeLegs(sig, ids, lots, "stop_hit")
		if err != nil {
			return 0, err
		}
		closed = n
	}
	return closed, e.markToMarket()
}

func (e *Engine) markToMarket() error {
	if err := e.tracker.RecordUnrealizedPnL(e.book.UnrealizedPnL()); err != nil {
		e.log.Error("unrealized_update_failed", logger.Err(err))
		return err
	}
	return nil
}

func (e *Engine) checkDrift(acct types.Account) {
	if acct.Equity <= 0 {
		return
	}
	cur := e.tracker.CurrentEquity()
	if cur <= 0 {
		return
	}
	if gap := math.Abs(acct.Equity-cur) / cur * 100; gap > equityDriftPct {
		e.log.Warn("equity_drift",
			logger.Float64("broker_equity", acct.Equity),
			logger.Float64("ledger_equity", cur),
			logger.Float64("gap_pct", gap),
		)
	}
}

func (e *Engine) baseEntry(sig types.Signal, acct types.Account, spec instrument.Spec) (types.SizingDecision, error) {
	if e.book.HasOpenTrade(sig.Instrument) {
		return types.SizingDecision{}, fmt.Errorf("%w: %s", ErrTradeOpen, sig.Instrument)
	}
	basis, err := risk.EquityBasis(e.tracker, e.cfg.EquityBasis)
	if err != nil {
		return types.SizingDecision{}, err
	}
	d, err := e.sizer.SizeBaseEntry(sig, acct, basis, spec)
	if err != nil {
		e.log.Warn("base_entry_rejected",
			logger.String("instrument", sig.Instrument),
			logger.Float64("price", sig.Price),
			logger.Float64("stop", sig.Stop),
			logger.Err(err),
		)
		return d, err
	}
	fill, err := e.buy(sig, d.Lots, "base_entry")
	if err != nil || fill.Lots == 0 {
		return d, err
	}
	leg, err := e.book.OpenBase(portfolio.Entry{
		Instrument: sig.Instrument,
		Fill:       fill,
		Stop:       e.initialStop(sig),
		PointValue: spec.PointValue,
	})
	if err != nil {
		return d, err
	}
	e.log.Info("trade_opened",
		logger.String("instrument", sig.Instrument),
		logger.String("trade_id", leg.TradeID),
		logger.Int("lots", leg.Lots),
		logger.Float64("entry", leg.EntryPrice),
		logger.Float64("stop", leg.Stop),
	)
	return d, e.markToMarket()
}

func (e *Engine) pyramid(sig types.Signal, acct types.Account, spec instrument.Spec) (types.SizingDecision, error) {
	if !e.book.HasOpenTrade(sig.Instrument) {
		return types.SizingDecision{}, fmt.Errorf("%w: %s", ErrNoOpenTrade, sig.Instrument)
	}
	d := e.sizer.EvaluatePyramid(risk.PyramidRequest{
		Positions:       e.book.Legs(sig.Instrument),
		Equity:          e.tracker.State(),
		Instrument:      spec,
		Price:           sig.Price,
		CandidateStop:   sig.Stop,
		ATR:             sig.ATR,
		AvailableMargin: acct.AvailableMargin,
	})
	if d.Lots == 0 {
		return d, nil
	}
	fill, err := e.buy(sig, d.Lots, "pyramid")
	if err != nil || fill.Lots == 0 {
		return d, err
	}
	leg, err := e.book.AddPyramid(portfolio.Entry{
		Instrument: sig.Instrument,
		Fill:       fill,
		Stop:       e.initialStop(sig),
		PointValue: spec.PointValue,
	})
	if err != nil {
		return d, err
	}
	e.log.Info("pyramid_added",
		logger.String("instrument", sig.Instrument),
		logger.Int("level", leg.PyramidIndex),
		logger.Int("lots", leg.Lots),
		logger.Float64("entry", leg.EntryPrice),
	)
	return d, e.markToMarket()
}

func (e *Engine) exit(sig types.Signal, stopped int) (types.SizingDecision, error) {
	ids := e.book.OpenLegIDs(sig.Instrument)
	if len(ids) == 0 {
		if stopped > 0 {
			return types.SizingDecision{Lots: stopped, Constraint: types.ConstraintExit, Reason: "stop hit"}, nil
		}
		return types.SizingDecision{}, fmt.Errorf("%w: %s", ErrNoOpenTrade, sig.Instrument)
	}
	n, err := e.closeLegs(sig, ids, e.book.OpenLots(sig.Instrument), "exit_signal")
	if err != nil {
		return types.SizingDecision{}, err
	}
	return types.SizingDecision{Lots: n + stopped, Constraint: types.ConstraintExit, Reason: "exit signal"}, e.markToMarket()
}

// initialStop is the signal's stop, or an ATR stop when the alert carries
// none (percent-volatility entries). With neither the leg is booked without
// a stop: its risk is then the full entry value, which keeps the pyramid
// gate shut until a later signal trails a stop in.
func (e *Engine) initialStop(sig types.Signal) float64 {
	if sig.Stop > 0 && sig.Stop < sig.Price {
		return sig.Stop
	}
	if st := sig.Price - e.cfg.ATRTrailMultiplier*sig.ATR; sig.ATR > 0 && st > 0 && st < sig.Price {
		return st
	}
	e.log.Warn("entry_without_stop",
		logger.String("instrument", sig.Instrument),
		logger.Float64("price", sig.Price),
		logger.Float64("atr", sig.ATR),
	)
	return 0
}

func (e *Engine) buy(sig types.Signal, lots int, ctx string) (types.Fill, error) {
	return e.submitOrder(types.Order{
		ID:         uuid.NewString(),
		Instrument: sig.Instrument,
		Side:       types.Buy,
		Lots:       lots,
		Price:      sig.Price,
		Time:       sig.Timestamp,
		Comment:    ctx,
	}, ctx)
}

// closeLegs sells lots across the given legs and books the result as one
// realized P&L entry.
func (e *Engine) closeLegs(sig types.Signal, ids []string, lots int, ctx string) (int, error) {
	fill, err := e.submitOrder(types.Order{
		ID:         uuid.NewString(),
		Instrument: sig.Instrument,
		Side:       types.Sell,
		Lots:       lots,
		Price:      sig.Price,
		Time:       sig.Timestamp,
		Comment:    ctx,
	}, ctx)
	if err != nil || fill.Lots == 0 {
		return 0, err
	}
	at := fill.Time
	if at.IsZero() {
		at = sig.Timestamp
	}
	pnl, err := e.book.CloseLots(sig.Instrument, ids, fill.Lots, fill.Price, at)
	if err != nil {
		e.log.Error("close_booking_failed", logger.String("instrument", sig.Instrument), logger.Err(err))
		return 0, err
	}
	if err := e.tracker.RecordRealizedPnL(pnl); err != nil {
		return 0, err
	}
	e.log.Info("legs_closed",
		logger.String("instrument", sig.Instrument),
		logger.String("reason", ctx),
		logger.Int("lots", fill.Lots),
		logger.Float64("price", fill.Price),
		logger.Float64("realized_pnl", pnl),
		logger.Float64("high_water_mark", e.tracker.HighWaterMark()),
	)
	return fill.Lots, nil
}

// submitOrder is a thin wrapper that logs the outcome.
func (e *Engine) submitOrder(o types.Order, ctx string) (types.Fill, error) {
	fill, err := e.exec.Submit(o)
	if err != nil {
		e.log.Error("order_submit_failed",
			logger.String("instrument", o.Instrument),
			logger.String("side", string(o.Side)),
			logger.Int("lots", o.Lots),
			logger.Err(err),
		)
		return types.Fill{}, fmt.Errorf("submit %s order: %w", ctx, err)
	}
	if fill.Lots < o.Lots {
		e.log.Warn("order_partially_filled",
			logger.String("instrument", o.Instrument),
			logger.String("side", string(o.Side)),
			logger.Int("ordered", o.Lots),
			logger.Int("filled", fill.Lots),
		)
	}
	if fill.Price <= 0 {
		fill.Price = o.Price
	}
	if fill.Time.IsZero() {
		fill.Time = o.Time
	}
	return fill, nil
}

// record logs the decision with its limiting constraint and updates metrics.
func (e *Engine) record(sig types.Signal, d types.SizingDecision) {
	e.log.Info("sizing_decision",
		logger.String("instrument", sig.Instrument),
		logger.String("type", string(sig.Type)),
		logger.Int("lots", d.Lots),
		logger.String("constraint", string(d.Constraint)),
		logger.Bool("blocked", d.Blocked()),
		logger.Float64("risk_amount", d.RiskAmount),
		logger.String("reason", d.Reason),
	)
	if d.Constraint != "" {
		metrics.Decisions.WithLabelValues(sig.Instrument, string(d.Constraint)).Inc()
	}
	if d.Lots > 0 {
		metrics.LotsSized.WithLabelValues(sig.Instrument, string(sig.Type)).Observe(float64(d.Lots))
	}
	metrics.OpenLegs.WithLabelValues(sig.Instrument).Set(float64(e.book.OpenLegCount(sig.Instrument)))
	metrics.RealizedEquity.Set(e.tracker.RealizedEquity())
	metrics.CurrentEquity.Set(e.tracker.CurrentEquity())
	metrics.HighWaterMark.Set(e.tracker.HighWaterMark())
}

// Snapshot returns the persisted form of the engine's state.
func (e *Engine) Snapshot() portfolio.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.Snapshot(e.tracker.State())
}

// Equity returns a copy of the equity ledger.
func (e *Engine) Equity() equity.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracker.State()
}

// Legs returns the legs of the open trade on instrument.
func (e *Engine) Legs(instrument string) []types.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.Legs(instrument)
}

// History returns closed trades.
func (e *Engine) History() []portfolio.Trade {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.History()
}
