package trading

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/alejandrodnm/hoopsedge/internal/application/engine"
	"github.com/alejandrodnm/hoopsedge/internal/domain"
	"github.com/alejandrodnm/hoopsedge/internal/ports"
)

// Config agrupa los parámetros de un engine de partido.
type Config struct {
	Model         domain.ModelParams
	HalfLife      float64
	Weights       domain.EventWeights
	EdgeThreshold float64
	Sizing        domain.SizingParams
	Exits         domain.ExitLimits
	Policy        engine.SignalPolicy
	Valuer        engine.Valuer // nil = MarkToMarket
}

// DefaultConfig devuelve la configuración por defecto.
func DefaultConfig() Config {
	return Config{
		Model:         domain.DefaultModelParams(),
		HalfLife:      domain.DefaultHalfLifeSeconds,
		Weights:       domain.DefaultEventWeights(),
		EdgeThreshold: domain.DefaultEdgeThreshold,
		Sizing:        domain.DefaultSizingParams(),
		Exits:         domain.DefaultExitLimits(),
		Policy:        engine.PolicyIgnore,
	}
}

// TickResult describe lo que produjo un tick. Un tick sin cambios accionables
// devuelve un resultado vacío, no un error.
type TickResult struct {
	Timestamp  float64
	Skipped    bool
	SkipReason string
	ModelProb  float64
	Momentum   float64
	Signal     *domain.TradeSignal
	Rejection  string
	Opened     *domain.Position
	ScaledIn   *domain.Position
	Unrealized float64
	Closed     *domain.Position
}

// Engine es la máquina de estados secuencial de un partido. No es seguro para
// uso concurrente: cada partido tiene su engine y solo comparten el Account.
type Engine struct {
	gameID   string
	cfg      Config
	momentum *domain.MomentumTracker
	model    *domain.ProbabilityModel
	detector *domain.EdgeDetector
	sizer    *domain.PositionSizer
	risk     *RiskManager
	account  *engine.Account
	exec     ports.OrderExecutor
	journal  ports.TradeJournal
	valuer   engine.Valuer

	state     domain.GameState
	quote     *domain.MarketQuote
	lastTS    float64
	started   bool
	modelProb float64
	closed    []domain.Position
}

// New crea el engine de un partido. journal puede ser nil.
func New(
	gameID string,
	cfg Config,
	account *engine.Account,
	exec ports.OrderExecutor,
	journal ports.TradeJournal,
) *Engine {
	if cfg.Policy == "" {
		cfg.Policy = engine.PolicyIgnore
	}
	valuer := cfg.Valuer
	if valuer == nil {
		valuer = engine.MarkToMarket{}
	}
	model := domain.NewProbabilityModel(cfg.Model)
	return &Engine{
		gameID:    gameID,
		cfg:       cfg,
		momentum:  domain.NewMomentumTracker(cfg.Weights, cfg.HalfLife),
		model:     model,
		detector:  domain.NewEdgeDetector(cfg.EdgeThreshold),
		sizer:     domain.NewPositionSizer(cfg.Sizing),
		risk:      NewRiskManager(cfg.Exits),
		account:   account,
		exec:      exec,
		journal:   journal,
		valuer:    valuer,
		state:     domain.NewGameState(),
		modelProb: model.Params().HomeAdvantagePrior,
	}
}

// GameID devuelve el identificador del partido.
func (e *Engine) GameID() string { return e.gameID }

// State devuelve el último GameState conocido.
func (e *Engine) State() domain.GameState { return e.state }

// ModelProb devuelve la última probabilidad estimada.
func (e *Engine) ModelProb() float64 { return e.modelProb }

// Position devuelve la posición abierta, si la hay.
func (e *Engine) Position() (domain.Position, bool) { return e.risk.Position() }

// Closed devuelve las posiciones cerradas por este engine.
func (e *Engine) Closed() []domain.Position {
	out := make([]domain.Position, len(e.closed))
	copy(out, e.closed)
	return out
}

// Process aplica un tick: momentum → probabilidad → edge → sizing → riesgo.
// Los ticks malformados se registran y se descartan sin tocar el estado.
func (e *Engine) Process(ctx context.Context, tick domain.Tick) TickResult {
	tick = tick.Normalize()
	res := TickResult{Timestamp: tick.Timestamp}

	if err := e.validate(tick); err != nil {
		slog.Warn("trading: skipping malformed tick",
			"game", e.gameID,
			"ts", tick.Timestamp,
			"err", err,
		)
		res.Skipped = true
		res.SkipReason = err.Error()
		return res
	}
	e.lastTS = tick.Timestamp
	e.started = true

	if tick.State != nil {
		e.state = *tick.State
	}
	if tick.Event != nil {
		if tick.Event.Kind == domain.EventEndGame {
			e.state.TimeRemaining = 0
		}
		if err := e.momentum.Record(*tick.Event); err != nil {
			slog.Warn("trading: event not recorded", "game", e.gameID, "err", err)
		}
	}

	mom := e.momentum.Value(tick.Timestamp)
	p := e.model.Estimate(e.state, mom)
	if !domain.IsProbability(p) {
		slog.Warn("trading: model probability out of range",
			"invariant", "probability_bounds",
			"game", e.gameID,
			"prob", p,
		)
		p = domain.ClampProbability(p)
	}
	e.modelProb = p
	res.ModelProb = p
	res.Momentum = mom

	if tick.Quote != nil {
		q := *tick.Quote
		e.quote = &q
		if !e.state.IsOver() {
			if sig, ok := e.detector.Detect(p, q.ImpliedHomeProb, tick.Timestamp); ok {
				res.Signal = &sig
				e.onSignal(ctx, sig, &res)
			}
		}
	}

	e.evaluateRisk(ctx, &res)
	return res
}

// Shutdown fuerza el cierre de la posición abierta por la misma vía que el
// final de partido. Se llama al agotar el feed o al cancelar la simulación.
func (e *Engine) Shutdown(ctx context.Context) (domain.Position, bool) {
	pos, ok := e.risk.Position()
	if !ok {
		return domain.Position{}, false
	}
	// el contexto puede estar ya cancelado: el cierre tiene que salir igualmente
	ctx = context.WithoutCancel(ctx)
	mark := e.markProb(pos)
	pnl := e.valuer.Unrealized(pos, mark)
	res := TickResult{Timestamp: e.lastTS}
	e.close(ctx, domain.ExitEndOfGame, pnl, mark, &res)
	if res.Closed == nil {
		return domain.Position{}, false
	}
	return *res.Closed, true
}

func (e *Engine) validate(tick domain.Tick) error {
	if err := tick.Validate(e.momentum.Weights().Known); err != nil {
		return err
	}
	if e.started && tick.Timestamp < e.lastTS {
		return fmt.Errorf("tick at %.1f after %.1f: %w", tick.Timestamp, e.lastTS, domain.ErrOutOfOrder)
	}
	if e.started && tick.Event != nil && tick.Event.Timestamp < e.lastTS {
		return fmt.Errorf("event at %.1f after %.1f: %w", tick.Event.Timestamp, e.lastTS, domain.ErrOutOfOrder)
	}
	if e.started && tick.Quote != nil && tick.Quote.Timestamp < e.lastTS {
		return fmt.Errorf("quote at %.1f after %.1f: %w", tick.Quote.Timestamp, e.lastTS, domain.ErrOutOfOrder)
	}
	return nil
}

func (e *Engine) onSignal(ctx context.Context, sig domain.TradeSignal, res *TickResult) {
	pos, open := e.risk.Position()
	if !open {
		e.open(ctx, sig, res)
		return
	}

	if e.cfg.Policy != engine.PolicyScaleIn || sig.Side != pos.Side {
		slog.Debug("trading: signal ignored, position open",
			"game", e.gameID,
			"position", pos.ID,
			"side", sig.Side,
			"edge", fmt.Sprintf("%.3f", sig.Edge),
		)
		res.Rejection = domain.ErrPositionOpen.Error()
		return
	}
	e.scaleIn(ctx, pos, sig, res)
}

func (e *Engine) open(ctx context.Context, sig domain.TradeSignal, res *TickResult) {
	snap := e.account.Snapshot()
	d := e.sizer.Size(sig, snap.Balance, snap.AtRisk)
	if !d.Approved {
		slog.Debug("trading: no trade",
			"game", e.gameID,
			"reason", d.Reason,
			"raw_size", fmt.Sprintf("$%.2f", d.RawSize),
			"at_risk", fmt.Sprintf("$%.2f", snap.AtRisk),
		)
		res.Rejection = d.Reason
		return
	}

	// otro partido pudo reservar entre el snapshot y aquí: Reserve revalida
	if err := e.account.Reserve(d.Size, e.cfg.Sizing.MaxCapitalAtRiskPct); err != nil {
		slog.Debug("trading: reservation refused", "game", e.gameID, "err", err)
		res.Rejection = domain.RejectRiskCap
		return
	}

	pos := domain.Position{
		ID:              domain.NewPositionID(),
		GameID:          e.gameID,
		Side:            sig.Side,
		Size:            d.Size,
		EntryModelProb:  sig.ModelProb,
		EntryMarketProb: sig.MarketProb,
		KellyFraction:   d.KellyFraction,
		EntryTime:       sig.Timestamp,
	}
	req := domain.OrderRequest{
		PositionID:    pos.ID,
		GameID:        e.gameID,
		Side:          sig.Side,
		Size:          d.Size,
		ReferenceProb: sig.MarketProb,
	}
	if err := e.exec.SubmitOrder(ctx, req); err != nil {
		e.account.Release(d.Size)
		slog.Warn("trading: order rejected by executor", "game", e.gameID, "err", err)
		res.Rejection = "executor: " + err.Error()
		return
	}
	if err := e.risk.Open(pos); err != nil {
		// inalcanzable mientras el engine sea secuencial
		e.account.Release(d.Size)
		slog.Warn("trading: open refused", "game", e.gameID, "err", err)
		res.Rejection = err.Error()
		return
	}

	opened, _ := e.risk.Position()
	e.persist(ctx, opened)
	res.Opened = &opened

	slog.Info("trading: position opened",
		"game", e.gameID,
		"id", opened.ID,
		"side", opened.Side,
		"size", fmt.Sprintf("$%.2f", opened.Size),
		"model", fmt.Sprintf("%.3f", sig.ModelProb),
		"market", fmt.Sprintf("%.3f", sig.MarketProb),
		"edge", fmt.Sprintf("%.3f", sig.Edge),
		"kelly_full", fmt.Sprintf("%.3f", d.FullKelly),
	)
}

func (e *Engine) scaleIn(ctx context.Context, pos domain.Position, sig domain.TradeSignal, res *TickResult) {
	snap := e.account.Snapshot()
	d := e.sizer.Size(sig, snap.Balance, snap.AtRisk)
	if d.Approved && pos.Size+d.Size > e.cfg.Sizing.MaxPosition {
		d.Approved = false
		d.Reason = "max position"
	}
	if !d.Approved {
		slog.Debug("trading: scale-in refused", "game", e.gameID, "reason", d.Reason)
		res.Rejection = d.Reason
		return
	}
	if err := e.account.Reserve(d.Size, e.cfg.Sizing.MaxCapitalAtRiskPct); err != nil {
		res.Rejection = domain.RejectRiskCap
		return
	}
	req := domain.OrderRequest{
		PositionID:    pos.ID,
		GameID:        e.gameID,
		Side:          sig.Side,
		Size:          d.Size,
		ReferenceProb: sig.MarketProb,
	}
	if err := e.exec.SubmitOrder(ctx, req); err != nil {
		e.account.Release(d.Size)
		slog.Warn("trading: scale-in rejected by executor", "game", e.gameID, "err", err)
		res.Rejection = "executor: " + err.Error()
		return
	}
	scaled, err := e.risk.ScaleIn(d.Size, sig.MarketProb, sig.ModelProb)
	if err != nil {
		e.account.Release(d.Size)
		res.Rejection = err.Error()
		return
	}
	e.persist(ctx, scaled)
	res.ScaledIn = &scaled
	slog.Info("trading: position scaled in",
		"game", e.gameID,
		"id", scaled.ID,
		"added", fmt.Sprintf("$%.2f", d.Size),
		"size", fmt.Sprintf("$%.2f", scaled.Size),
	)
}

func (e *Engine) evaluateRisk(ctx context.Context, res *TickResult) {
	pos, ok := e.risk.Position()
	if !ok {
		return
	}
	mark := e.markProb(pos)
	pnl := e.valuer.Unrealized(pos, mark)
	if math.IsNaN(pnl) || math.IsInf(pnl, 0) {
		slog.Warn("trading: unrealized pnl not finite",
			"invariant", "finite_pnl",
			"game", e.gameID,
			"id", pos.ID,
		)
		pnl = 0
	}
	res.Unrealized = pnl

	reason := e.risk.Evaluate(e.state, pnl)
	if reason == domain.ExitNone {
		return
	}
	e.close(ctx, reason, pnl, mark, res)
}

func (e *Engine) close(ctx context.Context, reason domain.ExitReason, pnl, mark float64, res *TickResult) {
	pos, ok := e.risk.Position()
	if !ok {
		slog.Warn("trading: close without open position", "game", e.gameID, "reason", reason)
		return
	}

	applied := e.account.Settle(pos.Size, pnl)
	closed, err := e.risk.Close(reason, applied, e.lastTS, mark)
	if err != nil {
		slog.Warn("trading: close refused", "game", e.gameID, "err", err)
		return
	}

	if err := e.exec.SubmitClose(ctx, domain.CloseRequest{
		PositionID: closed.ID,
		GameID:     e.gameID,
		Reason:     reason,
	}); err != nil {
		slog.Warn("trading: close request failed, broker must reconcile",
			"game", e.gameID,
			"id", closed.ID,
			"err", err,
		)
	}

	e.persist(ctx, closed)
	e.closed = append(e.closed, closed)
	res.Closed = &closed

	snap := e.account.Snapshot()
	slog.Info("trading: position closed",
		"game", e.gameID,
		"id", closed.ID,
		"reason", reason,
		"pnl", fmt.Sprintf("$%.2f", applied),
		"balance", fmt.Sprintf("$%.2f", snap.Balance),
	)
}

// markProb es la probabilidad a la que se valora la posición. Con el reloj a
// cero y marcador no empatado el contrato liquida a 1 o 0.
func (e *Engine) markProb(pos domain.Position) float64 {
	if e.state.IsOver() {
		switch {
		case e.state.ScoreDiff > 0:
			return 1
		case e.state.ScoreDiff < 0:
			return 0
		}
	}
	if e.quote != nil {
		return e.quote.ImpliedHomeProb
	}
	return pos.EntryMarketProb
}

func (e *Engine) persist(ctx context.Context, pos domain.Position) {
	if e.journal == nil {
		return
	}
	if err := e.journal.SavePosition(ctx, pos); err != nil {
		slog.Warn("trading: error saving position", "game", e.gameID, "id", pos.ID, "err", err)
	}
}
