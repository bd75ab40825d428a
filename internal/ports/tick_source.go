package ports

import (
	"context"

	"github.com/alejandrodnm/hoopsedge/internal/domain"
)

// TickSource entrega los ticks de un partido en orden. Devuelve io.EOF al agotarse.
type TickSource interface {
	Next(ctx context.Context) (domain.Tick, error)
}
