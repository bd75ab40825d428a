package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/alejandrodnm/hoopsedge/internal/domain"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del motor.
type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	Replay  ReplayConfig  `yaml:"replay"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

// EngineConfig contiene las constantes del modelo, el sizer y el gestor de riesgo.
type EngineConfig struct {
	InitialBankroll      float64 `yaml:"initial_bankroll"`
	HomeAdvantagePrior   float64 `yaml:"home_advantage_prior"`
	MomentumHalfLifeSec  float64 `yaml:"momentum_half_life_sec"`
	RegulationSeconds    float64 `yaml:"regulation_seconds"`
	ScoreLogOddsPerPoint float64 `yaml:"score_log_odds_per_point"`
	// puntero: 0 es válido y desactiva el término de momentum
	MomentumLogOdds *float64 `yaml:"momentum_log_odds"`

	EdgeThreshold       float64 `yaml:"edge_threshold"`
	MaxPosition         float64 `yaml:"max_position"`
	MaxCapitalAtRiskPct float64 `yaml:"max_capital_at_risk_pct"`
	MinTrade            float64 `yaml:"min_trade"`
	KellyFactor         float64 `yaml:"kelly_conservatism_factor"`

	TakeProfitBase          float64 `yaml:"take_profit_base"`
	StopLoss                float64 `yaml:"stop_loss"`
	LateGameWindowSec       float64 `yaml:"late_game_window_sec"`
	LateGameScoreDiff       int     `yaml:"late_game_score_diff_threshold"`
	LateGameProfitThreshold float64 `yaml:"late_game_profit_threshold"`

	SignalPolicy    string             `yaml:"signal_policy"`    // ignore | scale_in
	MomentumWeights map[string]float64 `yaml:"momentum_weights"` // se suman a la tabla por defecto
}

// ReplayConfig controla la lectura del feed grabado.
type ReplayConfig struct {
	FeedPath       string  `yaml:"feed_path"`
	TicksPerSecond float64 `yaml:"ticks_per_second"` // 0 = sin límite
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// Default devuelve la configuración por defecto sin leer ningún archivo.
func Default() *Config {
	var cfg Config
	setDefaults(&cfg)
	return &cfg
}

// Validate rechaza combinaciones imposibles.
func (c *Config) Validate() error {
	e := c.Engine
	var errs []error
	if e.HomeAdvantagePrior <= 0 || e.HomeAdvantagePrior >= 1 {
		errs = append(errs, fmt.Errorf("home_advantage_prior %v outside (0,1)", e.HomeAdvantagePrior))
	}
	if e.MaxCapitalAtRiskPct <= 0 || e.MaxCapitalAtRiskPct > 1 {
		errs = append(errs, fmt.Errorf("max_capital_at_risk_pct %v outside (0,1]", e.MaxCapitalAtRiskPct))
	}
	if e.KellyFactor <= 0 || e.KellyFactor > 1 {
		errs = append(errs, fmt.Errorf("kelly_conservatism_factor %v outside (0,1]", e.KellyFactor))
	}
	if e.MinTrade > e.MaxPosition {
		errs = append(errs, fmt.Errorf("min_trade %v above max_position %v", e.MinTrade, e.MaxPosition))
	}
	if e.EdgeThreshold >= 1 {
		errs = append(errs, fmt.Errorf("edge_threshold %v must be below 1", e.EdgeThreshold))
	}
	if e.MomentumLogOdds != nil && *e.MomentumLogOdds < 0 {
		errs = append(errs, fmt.Errorf("momentum_log_odds %v is negative", *e.MomentumLogOdds))
	}
	if e.LateGameScoreDiff < 0 {
		errs = append(errs, fmt.Errorf("late_game_score_diff_threshold %d is negative", e.LateGameScoreDiff))
	}
	switch e.SignalPolicy {
	case "ignore", "scale_in":
	default:
		errs = append(errs, fmt.Errorf("unknown signal_policy %q", e.SignalPolicy))
	}
	if c.Replay.TicksPerSecond < 0 {
		errs = append(errs, fmt.Errorf("ticks_per_second %v is negative", c.Replay.TicksPerSecond))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config.Validate: %w", errors.Join(errs...))
	}
	return nil
}

// ModelParams devuelve los coeficientes del modelo de probabilidad.
func (c *Config) ModelParams() domain.ModelParams {
	p := domain.ModelParams{
		HomeAdvantagePrior:   c.Engine.HomeAdvantagePrior,
		ScoreLogOddsPerPoint: c.Engine.ScoreLogOddsPerPoint,
		RegulationSeconds:    c.Engine.RegulationSeconds,
	}
	if c.Engine.MomentumLogOdds != nil {
		p.MomentumLogOdds = *c.Engine.MomentumLogOdds
	}
	return p
}

// SizingParams devuelve los límites del sizer.
func (c *Config) SizingParams() domain.SizingParams {
	return domain.SizingParams{
		MaxPosition:         c.Engine.MaxPosition,
		MinTrade:            c.Engine.MinTrade,
		MaxCapitalAtRiskPct: c.Engine.MaxCapitalAtRiskPct,
		KellyFactor:         c.Engine.KellyFactor,
	}
}

// ExitLimits devuelve los umbrales del gestor de riesgo.
func (c *Config) ExitLimits() domain.ExitLimits {
	return domain.ExitLimits{
		TakeProfitBase:          c.Engine.TakeProfitBase,
		StopLoss:                c.Engine.StopLoss,
		LateGameWindow:          c.Engine.LateGameWindowSec,
		LateGameScoreDiff:       c.Engine.LateGameScoreDiff,
		LateGameProfitThreshold: c.Engine.LateGameProfitThreshold,
	}
}

// EventWeights devuelve la tabla de pesos por defecto con los overrides del YAML.
func (c *Config) EventWeights() domain.EventWeights {
	return domain.DefaultEventWeights().Merge(c.Engine.MomentumWeights)
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("HOOPSEDGE_DB"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("HOOPSEDGE_INITIAL_BANKROLL"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("HOOPSEDGE_INITIAL_BANKROLL: %w", err)
		}
		cfg.Engine.InitialBankroll = f
	}
	if v := os.Getenv("HOOPSEDGE_KELLY_FACTOR"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("HOOPSEDGE_KELLY_FACTOR: %w", err)
		}
		cfg.Engine.KellyFactor = f
	}
	return nil
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	e := &cfg.Engine
	model := domain.DefaultModelParams()
	sizing := domain.DefaultSizingParams()
	exits := domain.DefaultExitLimits()

	if e.InitialBankroll <= 0 {
		e.InitialBankroll = 100000
	}
	if e.HomeAdvantagePrior == 0 {
		e.HomeAdvantagePrior = model.HomeAdvantagePrior
	}
	if e.MomentumHalfLifeSec <= 0 {
		e.MomentumHalfLifeSec = domain.DefaultHalfLifeSeconds
	}
	if e.RegulationSeconds <= 0 {
		e.RegulationSeconds = model.RegulationSeconds
	}
	if e.ScoreLogOddsPerPoint <= 0 {
		e.ScoreLogOddsPerPoint = model.ScoreLogOddsPerPoint
	}
	if e.MomentumLogOdds == nil {
		v := model.MomentumLogOdds
		e.MomentumLogOdds = &v
	}
	if e.EdgeThreshold <= 0 {
		e.EdgeThreshold = domain.DefaultEdgeThreshold
	}
	if e.MaxPosition <= 0 {
		e.MaxPosition = sizing.MaxPosition
	}
	if e.MaxCapitalAtRiskPct == 0 {
		e.MaxCapitalAtRiskPct = sizing.MaxCapitalAtRiskPct
	}
	if e.MinTrade <= 0 {
		e.MinTrade = sizing.MinTrade
	}
	if e.KellyFactor == 0 {
		e.KellyFactor = sizing.KellyFactor
	}
	if e.TakeProfitBase <= 0 {
		e.TakeProfitBase = exits.TakeProfitBase
	}
	if e.StopLoss <= 0 {
		e.StopLoss = exits.StopLoss
	}
	if e.LateGameWindowSec <= 0 {
		e.LateGameWindowSec = exits.LateGameWindow
	}
	if e.LateGameScoreDiff == 0 {
		e.LateGameScoreDiff = exits.LateGameScoreDiff
	}
	if e.LateGameProfitThreshold <= 0 {
		e.LateGameProfitThreshold = exits.LateGameProfitThreshold
	}
	if e.SignalPolicy == "" {
		e.SignalPolicy = "ignore"
	}
	if cfg.Replay.FeedPath == "" {
		cfg.Replay.FeedPath = "data/games.jsonl"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "hoopsedge.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
