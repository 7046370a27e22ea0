package live

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ducminhle1904/quant-backtest/internal/broker"
	"github.com/ducminhle1904/quant-backtest/internal/monitoring"
	"github.com/ducminhle1904/quant-backtest/internal/risk"
	"github.com/ducminhle1904/quant-backtest/internal/sizing"
	"github.com/ducminhle1904/quant-backtest/internal/strategy"
	"github.com/ducminhle1904/quant-backtest/pkg/types"
)

// Config holds the live runner parameters.
type Config struct {
	Symbol       string        `json:"symbol" yaml:"symbol"`
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`
	Lookback     int           `json:"lookback" yaml:"lookback"`
	MaxRetries   int           `json:"max_retries" yaml:"max_retries"`
	RetryBackoff time.Duration `json:"retry_backoff" yaml:"retry_backoff"`
}

func (c Config) validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	if c.Lookback < 2 {
		return fmt.Errorf("lookback must be at least 2 bars, got %d", c.Lookback)
	}
	return nil
}

// Runner polls a broker for prices, runs the signal generator over the
// accumulated bars and turns signal changes into orders, with every order
// gated through the risk manager. The same strategy, sizing and risk code
// drives both simulation and live runs; only the broker differs.
type Runner struct {
	config    Config
	broker    broker.Broker
	generator strategy.SignalGenerator
	sizer     sizing.Sizer
	risk      *risk.Manager
	health    *monitoring.HealthChecker
	log       *logrus.Entry

	bars       []types.OHLCV
	lastSignal float64
	position   float64 // held quantity, long only
}

func NewRunner(config Config, b broker.Broker, gen strategy.SignalGenerator, sizer sizing.Sizer, riskManager *risk.Manager, health *monitoring.HealthChecker, log *logrus.Logger) (*Runner, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid runner config: %w", err)
	}
	if b == nil || gen == nil || sizer == nil || riskManager == nil {
		return nil, fmt.Errorf("broker, generator, sizer and risk manager are all required")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Runner{
		config:    config,
		broker:    b,
		generator: gen,
		sizer:     sizer,
		risk:      riskManager,
		health:    health,
		log: log.WithFields(logrus.Fields{
			"component": "live-runner",
			"symbol":    config.Symbol,
			"broker":    b.GetName(),
		}),
	}, nil
}

// Run polls until the context is cancelled. Tick failures are logged and
// counted, never fatal; the next tick starts fresh.
func (r *Runner) Run(ctx context.Context) error {
	r.log.WithField("interval", r.config.PollInterval).Info("live runner started")

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("live runner stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := r.tick(ctx); err != nil {
				r.log.WithError(err).Error("tick failed")
				monitoring.RecordError("tick")
				if r.health != nil {
					r.health.RecordError(err.Error())
				}
			}
		}
	}
}

func (r *Runner) tick(ctx context.Context) error {
	price, err := r.fetchPrice(ctx)
	if err != nil {
		return fmt.Errorf("fetch price: %w", err)
	}

	now := time.Now().UTC()
	r.appendBar(price, now)
	monitoring.UpdatePrice(r.config.Symbol, price)
	if r.health != nil {
		r.health.RecordTick(price)
	}

	cash, err := r.broker.GetBalance(ctx)
	if err != nil {
		return fmt.Errorf("fetch balance: %w", err)
	}
	equity := cash + r.position*price
	r.risk.UpdateEquity(equity, now)
	r.risk.UpdatePosition(r.config.Symbol, price)
	monitoring.UpdateEquity(equity)

	halted := r.risk.State() == risk.StateHalted
	monitoring.SetHalted(halted)
	if r.health != nil {
		r.health.SetHalted(halted)
	}

	if err := r.enforceStops(ctx, price, now); err != nil {
		return err
	}

	signals, err := r.generator.Generate(r.bars)
	if err != nil {
		return fmt.Errorf("generate signals: %w", err)
	}
	signal := signals[len(signals)-1]
	if signal == r.lastSignal {
		return nil
	}

	if err := r.executeChange(ctx, signal, price, cash, now); err != nil {
		return err
	}
	r.lastSignal = signal
	return nil
}

// appendBar folds the polled price into a synthetic bar series capped at the
// lookback window.
func (r *Runner) appendBar(price float64, now time.Time) {
	r.bars = append(r.bars, types.OHLCV{
		Open:      price,
		High:      price,
		Low:       price,
		Close:     price,
		Timestamp: now,
	})
	if len(r.bars) > r.config.Lookback {
		r.bars = r.bars[len(r.bars)-r.config.Lookback:]
	}
}

// executeChange flattens on a non-positive signal and enters long on a
// positive one. Shorting is left to the simulator.
func (r *Runner) executeChange(ctx context.Context, signal, price, cash float64, now time.Time) error {
	if r.position > 0 && signal <= 0 {
		return r.closeLong(ctx, "signal exit")
	}
	if r.position != 0 || signal <= 0 {
		return nil
	}

	size := r.sizer.CalculateSize(cash, price, signal)
	if size.Type == sizing.PositionRejected || size.Shares <= 0 {
		r.log.WithField("reason", size.Reason).Info("sizer rejected entry")
		return nil
	}

	quantity := size.Shares
	proposal := risk.TradeProposal{
		Symbol:   r.config.Symbol,
		Value:    quantity * price,
		Quantity: quantity,
		Side:     risk.SideLong,
	}
	check := r.risk.CheckAll(proposal, now)
	switch check.Action {
	case risk.Reject, risk.CloseAll, risk.HaltTrading:
		r.log.WithFields(logrus.Fields{"action": check.Action.String(), "reason": check.Reason}).Warn("entry blocked")
		monitoring.RecordRejection(check.Reason)
		return nil
	case risk.Reduce:
		r.log.WithField("reason", check.Reason).Info("entry reduced")
		quantity /= 2
	}

	order, err := r.broker.PlaceMarketOrder(ctx, r.config.Symbol, broker.OrderSideBuy, quantity)
	if err != nil {
		return fmt.Errorf("place buy order: %w", err)
	}
	if order.Status == broker.OrderStatusRejected {
		r.log.WithField("reason", order.Reason).Warn("buy order rejected by broker")
		monitoring.RecordRejection(order.Reason)
		return nil
	}

	r.position = quantity
	r.risk.RecordTrade(now)
	if err := r.risk.AddPosition(risk.Position{
		Symbol:     r.config.Symbol,
		Quantity:   quantity,
		EntryPrice: order.Price,
		EntryDate:  now,
		Side:       risk.SideLong,
	}); err != nil {
		r.log.WithError(err).Error("failed to track position")
	}
	monitoring.RecordTrade(r.config.Symbol, string(broker.OrderSideBuy))
	r.log.WithFields(logrus.Fields{
		"order_id": order.ID,
		"quantity": quantity,
		"price":    order.Price,
	}).Info("entered long")
	return nil
}

func (r *Runner) closeLong(ctx context.Context, reason string) error {
	order, err := r.broker.PlaceMarketOrder(ctx, r.config.Symbol, broker.OrderSideSell, r.position)
	if err != nil {
		return fmt.Errorf("place sell order: %w", err)
	}
	if order.Status == broker.OrderStatusRejected {
		return fmt.Errorf("sell order rejected: %s", order.Reason)
	}

	r.position = 0
	if _, err := r.risk.ClosePosition(r.config.Symbol); err != nil {
		r.log.WithError(err).Debug("position was not tracked")
	}
	monitoring.RecordTrade(r.config.Symbol, string(broker.OrderSideSell))
	r.log.WithFields(logrus.Fields{
		"order_id": order.ID,
		"price":    order.Price,
		"reason":   reason,
	}).Info("closed long")
	return nil
}

// enforceStops closes the position when its stop level is crossed.
func (r *Runner) enforceStops(ctx context.Context, price float64, now time.Time) error {
	if r.position == 0 {
		return nil
	}
	for _, symbol := range r.risk.CheckStopLosses() {
		if symbol != r.config.Symbol {
			continue
		}
		r.log.WithField("price", price).Warn("stop loss crossed")
		return r.closeLong(ctx, "stop loss")
	}
	return nil
}

// fetchPrice retries transient failures with a fixed backoff before giving
// up on the tick.
func (r *Runner) fetchPrice(ctx context.Context) (float64, error) {
	retries := r.config.MaxRetries
	if retries < 0 {
		retries = 0
	}
	backoff := r.config.RetryBackoff
	if backoff <= 0 {
		backoff = time.Second
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		price, err := r.broker.GetPrice(ctx, r.config.Symbol)
		if err == nil {
			return price, nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return 0, fmt.Errorf("after %d attempts: %w", retries+1, lastErr)
}
