package engine

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/alejandrodnm/hoopsedge/internal/domain"
	"github.com/shopspring/decimal"
)

// AccountSnapshot es una vista consistente del bankroll.
type AccountSnapshot struct {
	Initial  float64
	Balance  float64 // caja: inicial + P&L realizado
	AtRisk   float64 // capital reservado por posiciones abiertas
	Realized float64

	// Violations cuenta las correcciones defensivas aplicadas (pérdidas por
	// encima del stake, balance negativo, releases por encima de lo reservado).
	Violations int
}

// Available devuelve la caja no reservada.
func (s AccountSnapshot) Available() float64 {
	return s.Balance - s.AtRisk
}

// Account es el bankroll compartido por todos los partidos. Todas las
// mutaciones pasan por el mutex, así el límite de capital en riesgo se evalúa
// siempre contra un snapshot consistente.
type Account struct {
	mu         sync.Mutex
	initial    decimal.Decimal
	balance    decimal.Decimal
	atRisk     decimal.Decimal
	realized   decimal.Decimal
	violations int
}

// NewAccount crea una cuenta con el capital inicial dado.
func NewAccount(initial float64) *Account {
	d := decimal.NewFromFloat(initial)
	return &Account{initial: d, balance: d}
}

// Snapshot devuelve el estado actual de la cuenta.
func (a *Account) Snapshot() AccountSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return AccountSnapshot{
		Initial:    a.initial.InexactFloat64(),
		Balance:    a.balance.InexactFloat64(),
		AtRisk:     a.atRisk.InexactFloat64(),
		Realized:   a.realized.InexactFloat64(),
		Violations: a.violations,
	}
}

// Reserve compromete amount si el capital en riesgo resultante no supera
// maxPct del balance. Comprobación y reserva son atómicas.
func (a *Account) Reserve(amount, maxPct float64) error {
	if amount <= 0 {
		return fmt.Errorf("engine.Account.Reserve: amount %.2f must be positive", amount)
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	next := a.atRisk.Add(decimal.NewFromFloat(amount))
	if !domain.WithinRiskCap(next.InexactFloat64(), a.balance.InexactFloat64(), maxPct) {
		return fmt.Errorf("engine.Account.Reserve: %.2f on top of %s at risk (balance %s): %w",
			amount, a.atRisk.StringFixed(2), a.balance.StringFixed(2), domain.ErrInsufficientCapital)
	}
	a.atRisk = next
	return nil
}

// Release libera una reserva sin realizar P&L (p. ej. orden rechazada por el broker).
func (a *Account) Release(amount float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.releaseLocked(decimal.NewFromFloat(amount))
}

// Settle libera la reserva de stake y realiza pnl (redondeado a céntimos) en
// una sola operación. Devuelve el P&L efectivamente aplicado tras las correcciones defensivas.
func (a *Account) Settle(stake, pnl float64) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := decimal.NewFromFloat(stake)
	p := decimal.NewFromFloat(pnl).Round(2)
	a.releaseLocked(s)

	// un contrato comprado no puede perder más que lo pagado
	if p.LessThan(s.Neg()) {
		a.violations++
		slog.Warn("account: loss beyond stake clamped",
			"invariant", "max_loss",
			"stake", s.StringFixed(2),
			"pnl", p.StringFixed(2),
		)
		p = s.Neg()
	}

	next := a.balance.Add(p)
	if next.IsNegative() {
		a.violations++
		slog.Warn("account: negative balance clamped",
			"invariant", "non_negative_balance",
			"balance", a.balance.StringFixed(2),
			"pnl", p.StringFixed(2),
		)
		p = a.balance.Neg()
		next = decimal.Zero
	}

	a.balance = next
	a.realized = a.realized.Add(p)
	return p.InexactFloat64()
}

func (a *Account) releaseLocked(amount decimal.Decimal) {
	if amount.GreaterThan(a.atRisk) {
		a.violations++
		slog.Warn("account: release exceeds reserved capital",
			"invariant", "reservation",
			"release", amount.StringFixed(2),
			"at_risk", a.atRisk.StringFixed(2),
		)
		a.atRisk = decimal.Zero
		return
	}
	a.atRisk = a.atRisk.Sub(amount)
}
