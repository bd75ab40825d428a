package ports

import (
	"context"

	"github.com/alejandrodnm/hoopsedge/internal/domain"
)

// TradeJournal persiste el ciclo de vida de las posiciones.
type TradeJournal interface {
	// SavePosition inserta o actualiza la posición por ID.
	SavePosition(ctx context.Context, pos domain.Position) error

	// GetPositions devuelve las posiciones de un partido, o todas si gameID es "".
	GetPositions(ctx context.Context, gameID string) ([]domain.Position, error)

	// RecordRun guarda el resumen de una ejecución.
	RecordRun(ctx context.Context, run domain.RunRecord) error

	// GetRuns devuelve las últimas ejecuciones, la más reciente primero.
	GetRuns(ctx context.Context, limit int) ([]domain.RunRecord, error)

	// GetStats agrega el histórico completo.
	GetStats(ctx context.Context) (domain.JournalStats, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
