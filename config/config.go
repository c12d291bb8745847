package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/kalshibot/internal/domain"
)

// Config es la configuración completa del bot.
// Los secretos vienen SOLO de variables de entorno; el YAML cubre el resto.
type Config struct {
	Kalshi   KalshiConfig   `yaml:"kalshi"`
	Sports   SportsConfig   `yaml:"sports"`
	Strategy StrategyConfig `yaml:"strategy"`
	Risk     RiskConfig     `yaml:"risk"`
	Polling  PollingConfig  `yaml:"polling"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`
}

// SportsConfig contiene credenciales y endpoints de los score providers.
// Las API keys solo son obligatorias si algún deporte usa sportsdata_io.
type SportsConfig struct {
	SportsDataKeyNCAA    string `yaml:"-"` // SPORTSDATA_API_KEY_NCAA
	SportsDataKeySoccer  string `yaml:"-"` // SPORTSDATA_API_KEY_SOCCER
	SportsDataBaseNCAA   string `yaml:"sportsdata_base_ncaa"`
	SportsDataBaseSoccer string `yaml:"sportsdata_base_soccer"`
}

// KalshiConfig contiene credenciales y endpoints del exchange.
type KalshiConfig struct {
	APIKeyID           string `yaml:"-"` // KALSHI_API_KEY_ID (requerida)
	PrivateKeyPath     string `yaml:"-"` // KALSHI_PRIVATE_KEY_PATH (requerida)
	BaseURL            string `yaml:"base_url"`
	WSURL              string `yaml:"ws_url"`
	Demo               bool   `yaml:"demo"`
	KeepaliveSeconds   int    `yaml:"keepalive_seconds"`
	OrderTimeoutMillis int    `yaml:"order_timeout_ms"`
}

// StrategyConfig controla la evaluación de edge y el sizing.
type StrategyConfig struct {
	MinEdgeCents          int `yaml:"min_edge_cents"`
	MaxPriceSlippageCents int `yaml:"max_price_slippage_cents"`
	DefaultQuantity       int `yaml:"default_quantity"`
	MaxQuantity           int `yaml:"max_quantity"`
}

// RiskConfig son los límites duros del Shield.
type RiskConfig struct {
	MaxDailyLossCents    int `yaml:"max_daily_loss_cents"`
	MaxOpenExposureCents int `yaml:"max_open_exposure_cents"`
	MaxTradesPerGame     int `yaml:"max_trades_per_game"`
}

// PollingConfig controla el ritmo del Oracle.
type PollingConfig struct {
	IntervalMillis int `yaml:"interval_ms"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// StorageConfig — ruta del journal de fills (":memory:" para desactivar disco).
type StorageConfig struct {
	DSN string `yaml:"dsn"`
}

// Load carga la configuración desde el archivo YAML y el .env si existe.
// Las variables de entorno sobreescriben al YAML; las credenciales son
// obligatorias y su ausencia es un error de arranque.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if cfg.Kalshi.APIKeyID == "" {
		return nil, fmt.Errorf("config.Load: KALSHI_API_KEY_ID no está definida")
	}
	if cfg.Kalshi.PrivateKeyPath == "" {
		return nil, fmt.Errorf("config.Load: KALSHI_PRIVATE_KEY_PATH no está definida")
	}

	return &cfg, nil
}

// PollInterval devuelve el intervalo de polling como time.Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Polling.IntervalMillis) * time.Millisecond
}

// OrderTimeout devuelve el timeout duro de envío de órdenes.
func (c *Config) OrderTimeout() time.Duration {
	return time.Duration(c.Kalshi.OrderTimeoutMillis) * time.Millisecond
}

// KeepaliveInterval devuelve el intervalo de keepalive REST.
func (c *Config) KeepaliveInterval() time.Duration {
	return time.Duration(c.Kalshi.KeepaliveSeconds) * time.Second
}

func applyEnvOverrides(cfg *Config) {
	cfg.Kalshi.APIKeyID = envStr("KALSHI_API_KEY_ID", cfg.Kalshi.APIKeyID)
	cfg.Kalshi.PrivateKeyPath = envStr("KALSHI_PRIVATE_KEY_PATH", cfg.Kalshi.PrivateKeyPath)
	cfg.Kalshi.BaseURL = envStr("KALSHI_BASE_URL", cfg.Kalshi.BaseURL)
	cfg.Kalshi.WSURL = envStr("KALSHI_WS_URL", cfg.Kalshi.WSURL)
	cfg.Kalshi.Demo = envBool("KALSHI_DEMO", cfg.Kalshi.Demo)

	cfg.Strategy.MinEdgeCents = envInt("MIN_EDGE_CENTS", cfg.Strategy.MinEdgeCents)
	cfg.Strategy.MaxPriceSlippageCents = envInt("MAX_PRICE_SLIPPAGE_CENTS", cfg.Strategy.MaxPriceSlippageCents)
	cfg.Strategy.DefaultQuantity = envInt("DEFAULT_QUANTITY", cfg.Strategy.DefaultQuantity)
	cfg.Strategy.MaxQuantity = envInt("MAX_QUANTITY", cfg.Strategy.MaxQuantity)

	cfg.Risk.MaxDailyLossCents = envInt("MAX_DAILY_LOSS_CENTS", cfg.Risk.MaxDailyLossCents)
	cfg.Risk.MaxOpenExposureCents = envInt("MAX_OPEN_EXPOSURE_CENTS", cfg.Risk.MaxOpenExposureCents)
	cfg.Risk.MaxTradesPerGame = envInt("MAX_TRADES_PER_GAME", cfg.Risk.MaxTradesPerGame)

	cfg.Polling.IntervalMillis = envInt("SPORTS_POLL_INTERVAL_MS", cfg.Polling.IntervalMillis)
	cfg.Kalshi.KeepaliveSeconds = envInt("KEEPALIVE_INTERVAL_S", cfg.Kalshi.KeepaliveSeconds)

	cfg.Sports.SportsDataKeyNCAA = envStr("SPORTSDATA_API_KEY_NCAA", cfg.Sports.SportsDataKeyNCAA)
	cfg.Sports.SportsDataKeySoccer = envStr("SPORTSDATA_API_KEY_SOCCER", cfg.Sports.SportsDataKeySoccer)
	cfg.Sports.SportsDataBaseNCAA = envStr("SPORTSDATA_BASE_URL_NCAA", cfg.Sports.SportsDataBaseNCAA)
	cfg.Sports.SportsDataBaseSoccer = envStr("SPORTSDATA_BASE_URL_SOCCER", cfg.Sports.SportsDataBaseSoccer)
	cfg.Storage.DSN = envStr("FILL_JOURNAL_DSN", cfg.Storage.DSN)

	cfg.Log.Level = envStr("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = envStr("LOG_FORMAT", cfg.Log.Format)
}

func setDefaults(cfg *Config) {
	if cfg.Kalshi.BaseURL == "" {
		if cfg.Kalshi.Demo {
			cfg.Kalshi.BaseURL = "https://demo-api.kalshi.co/trade-api/v2"
		} else {
			cfg.Kalshi.BaseURL = "https://api.elections.kalshi.com/trade-api/v2"
		}
	}
	if cfg.Kalshi.WSURL == "" {
		if cfg.Kalshi.Demo {
			cfg.Kalshi.WSURL = "wss://demo-api.kalshi.co/trade-api/ws/v2"
		} else {
			cfg.Kalshi.WSURL = "wss://api.elections.kalshi.com/trade-api/ws/v2"
		}
	}
	if cfg.Kalshi.KeepaliveSeconds <= 0 {
		cfg.Kalshi.KeepaliveSeconds = 30
	}
	if cfg.Kalshi.OrderTimeoutMillis <= 0 {
		cfg.Kalshi.OrderTimeoutMillis = 500
	}
	if cfg.Strategy.MinEdgeCents <= 0 {
		cfg.Strategy.MinEdgeCents = 3
	}
	if cfg.Strategy.MaxPriceSlippageCents <= 0 {
		cfg.Strategy.MaxPriceSlippageCents = 2
	}
	if cfg.Strategy.DefaultQuantity <= 0 {
		cfg.Strategy.DefaultQuantity = 10
	}
	if cfg.Strategy.MaxQuantity <= 0 {
		cfg.Strategy.MaxQuantity = 50
	}
	if cfg.Risk.MaxDailyLossCents <= 0 {
		cfg.Risk.MaxDailyLossCents = 10000 // $100
	}
	if cfg.Risk.MaxOpenExposureCents <= 0 {
		cfg.Risk.MaxOpenExposureCents = 50000 // $500
	}
	if cfg.Risk.MaxTradesPerGame <= 0 {
		cfg.Risk.MaxTradesPerGame = 5
	}
	if cfg.Polling.IntervalMillis <= 0 {
		cfg.Polling.IntervalMillis = 750
	}
	if cfg.Sports.SportsDataBaseNCAA == "" {
		cfg.Sports.SportsDataBaseNCAA = "https://api.sportsdata.io/v3/cbb/scores/json"
	}
	if cfg.Sports.SportsDataBaseSoccer == "" {
		cfg.Sports.SportsDataBaseSoccer = "https://api.sportsdata.io/v3/soccer/scores/json"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "kalshibot.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	switch os.Getenv(key) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	}
	return def
}

// SeriesConfig describe una serie de mercados de totales para un deporte.
type SeriesConfig struct {
	SeriesPrefix  string `yaml:"series_prefix"`
	LineSpacing   int    `yaml:"line_spacing"`
	Provider      string `yaml:"provider"`       // "espn" | "sportsdata_io"
	ESPNPath      string `yaml:"espn_path"`      // path del scoreboard de ESPN
	CompetitionID int    `yaml:"competition_id"` // filtro de SportsData.io (soccer)
}

// MarketsConfig mapea el tag de deporte a su serie configurada.
type MarketsConfig map[domain.Sport]SeriesConfig

// LoadMarkets carga config/markets.yaml.
func LoadMarkets(path string) (MarketsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.LoadMarkets: read %q: %w", path, err)
	}
	var mc MarketsConfig
	if err := yaml.Unmarshal(data, &mc); err != nil {
		return nil, fmt.Errorf("config.LoadMarkets: parse YAML: %w", err)
	}
	if len(mc) == 0 {
		return nil, fmt.Errorf("config.LoadMarkets: %q no define ningún deporte", path)
	}
	for sport, sc := range mc {
		if sc.SeriesPrefix == "" {
			return nil, fmt.Errorf("config.LoadMarkets: deporte %q sin series_prefix", sport)
		}
	}
	return mc, nil
}
