package ports

import (
	"context"

	"github.com/alejandrodnm/hoopsedge/internal/domain"
)

// OrderExecutor es el colaborador externo que ejecuta las decisiones del engine.
type OrderExecutor interface {
	// SubmitOrder envía la orden de apertura de una posición aprobada.
	// Si devuelve error la posición no se abre y la reserva se libera.
	SubmitOrder(ctx context.Context, req domain.OrderRequest) error

	// SubmitClose envía el cierre de una posición. El engine ya la considera
	// cerrada; un error aquí se registra para que el broker reconcilie.
	SubmitClose(ctx context.Context, req domain.CloseRequest) error
}
