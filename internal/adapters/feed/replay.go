// Package feed convierte ficheros de ticks grabados en fuentes para el motor.
package feed

// replay.go: feed JSON-lines.
//
// Formato: un tick por línea, {"game_id","timestamp","event":{},"state":{},"quote":{}}.
// Las líneas vacías y las que empiezan por '#' se ignoran. Una línea que no
// parsea se registra y se salta: un feed con ruido no debe parar la sesión.
// Los ticks se agrupan por game_id conservando el orden del fichero; cada
// grupo es una ports.TickSource independiente.

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/alejandrodnm/hoopsedge/internal/domain"
	"github.com/alejandrodnm/hoopsedge/internal/ports"
	"golang.org/x/time/rate"
)

// DefaultGameID se asigna a los ticks sin game_id.
const DefaultGameID = "game"

const maxLineBytes = 1 << 20

// Options controla la lectura y el ritmo del replay.
type Options struct {
	// TicksPerSecond limita el ritmo de cada partido. 0 = sin límite.
	TicksPerSecond float64
}

// Stats resume la lectura del fichero.
type Stats struct {
	Lines     int
	Ticks     int
	Malformed int
	Games     int
}

// Replay contiene los ticks de un fichero agrupados por partido.
type Replay struct {
	opts  Options
	order []string
	games map[string][]domain.Tick
	stats Stats
}

// Open lee el feed de la ruta dada.
func Open(path string, opts Options) (*Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("feed.Open: %w", err)
	}
	defer f.Close()
	r, err := Load(f, opts)
	if err != nil {
		return nil, fmt.Errorf("feed.Open: %s: %w", path, err)
	}
	return r, nil
}

// Load lee un feed JSON-lines completo de r.
func Load(r io.Reader, opts Options) (*Replay, error) {
	rp := &Replay{opts: opts, games: make(map[string][]domain.Tick)}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		rp.stats.Lines++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}

		var t domain.Tick
		if err := json.Unmarshal(line, &t); err != nil {
			rp.stats.Malformed++
			slog.Warn("feed: malformed line skipped", "line", rp.stats.Lines, "err", err)
			continue
		}
		if t.GameID == "" {
			t.GameID = DefaultGameID
		}
		if _, ok := rp.games[t.GameID]; !ok {
			rp.order = append(rp.order, t.GameID)
		}
		rp.games[t.GameID] = append(rp.games[t.GameID], t)
		rp.stats.Ticks++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("feed.Load: line %d: %w", rp.stats.Lines+1, err)
	}
	rp.stats.Games = len(rp.order)

	slog.Debug("feed: loaded",
		"lines", rp.stats.Lines,
		"ticks", rp.stats.Ticks,
		"malformed", rp.stats.Malformed,
		"games", rp.stats.Games,
	)
	return rp, nil
}

// Stats devuelve los contadores de lectura.
func (r *Replay) Stats() Stats { return r.stats }

// Games devuelve los IDs de partido en orden de primera aparición.
func (r *Replay) Games() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Source devuelve una fuente nueva para un partido. Cada llamada empieza desde
// el primer tick.
func (r *Replay) Source(gameID string) (*Source, bool) {
	ticks, ok := r.games[gameID]
	if !ok {
		return nil, false
	}
	s := &Source{ticks: ticks}
	if r.opts.TicksPerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(r.opts.TicksPerSecond), 1)
	}
	return s, true
}

// Sources devuelve una fuente por partido, lista para trading.Runner.
func (r *Replay) Sources() map[string]ports.TickSource {
	out := make(map[string]ports.TickSource, len(r.order))
	for _, id := range r.order {
		s, _ := r.Source(id)
		out[id] = s
	}
	return out
}

// Source entrega los ticks de un partido en orden. Implementa ports.TickSource.
type Source struct {
	mu      sync.Mutex
	ticks   []domain.Tick
	next    int
	limiter *rate.Limiter
}

// Next devuelve el siguiente tick, esperando al limitador si lo hay.
// Devuelve io.EOF al agotarse.
func (s *Source) Next(ctx context.Context) (domain.Tick, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.next >= len(s.ticks) {
		return domain.Tick{}, io.EOF
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return domain.Tick{}, fmt.Errorf("feed.Next: %w", err)
		}
	}
	t := s.ticks[s.next]
	s.next++
	return t, nil
}

// Remaining devuelve cuántos ticks quedan por entregar.
func (s *Source) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ticks) - s.next
}
