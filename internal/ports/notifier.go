package ports

import (
	"context"

	"github.com/alejandrodnm/hoopsedge/internal/domain"
)

// Notifier presenta al usuario los cambios de posición según ocurren.
// Las implementaciones deben admitir llamadas concurrentes desde varios partidos.
type Notifier interface {
	// PositionOpened se llama al abrir una posición.
	PositionOpened(ctx context.Context, pos domain.Position) error

	// PositionScaled se llama al ampliar una posición abierta.
	PositionScaled(ctx context.Context, pos domain.Position) error

	// PositionClosed se llama al cerrar una posición, con el P&L ya realizado.
	PositionClosed(ctx context.Context, pos domain.Position) error
}
