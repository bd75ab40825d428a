// Package execution contiene los colaboradores que ejecutan las órdenes del motor.
package execution

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/hoopsedge/internal/domain"
	"github.com/google/uuid"
)

// Fill es una orden o cierre aceptado por el ejecutor simulado.
type Fill struct {
	ID       string
	Close    bool
	Order    domain.OrderRequest
	CloseReq domain.CloseRequest
	At       time.Time
}

// PaperExecutor implementa ports.OrderExecutor sin tocar ningún mercado:
// acepta cada petición, la registra y la deja en el log.
type PaperExecutor struct {
	mu    sync.Mutex
	fills []Fill
	fail  error
}

// NewPaperExecutor crea un ejecutor simulado vacío.
func NewPaperExecutor() *PaperExecutor {
	return &PaperExecutor{}
}

// FailWith hace que las siguientes peticiones devuelvan err. nil lo desactiva.
func (p *PaperExecutor) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = err
}

// SubmitOrder registra una orden de apertura o ampliación.
func (p *PaperExecutor) SubmitOrder(ctx context.Context, req domain.OrderRequest) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("execution.SubmitOrder: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return fmt.Errorf("execution.SubmitOrder: %s: %w", req.PositionID, p.fail)
	}

	f := Fill{ID: uuid.New().String(), Order: req, At: time.Now().UTC()}
	p.fills = append(p.fills, f)
	slog.Info("[PAPER] order filled",
		"game", req.GameID,
		"position", shortID(req.PositionID),
		"side", req.Side,
		"size", fmt.Sprintf("%.2f", req.Size),
		"price", fmt.Sprintf("%.4f", req.ReferenceProb),
	)
	return nil
}

// SubmitClose registra un cierre. Los cierres no comprueban ctx: el motor los
// envía también durante el apagado.
func (p *PaperExecutor) SubmitClose(_ context.Context, req domain.CloseRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return fmt.Errorf("execution.SubmitClose: %s: %w", req.PositionID, p.fail)
	}

	f := Fill{ID: uuid.New().String(), Close: true, CloseReq: req, At: time.Now().UTC()}
	p.fills = append(p.fills, f)
	slog.Info("[PAPER] position closed",
		"game", req.GameID,
		"position", shortID(req.PositionID),
		"reason", req.Reason,
	)
	return nil
}

// Fills devuelve una copia de todo lo ejecutado, en orden.
func (p *PaperExecutor) Fills() []Fill {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Fill, len(p.fills))
	copy(out, p.fills)
	return out
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
