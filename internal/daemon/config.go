// Package daemon wires the whole market server: store, scheduler, weather
// client, house bot, chat front end and the HTTP API, from one config file.
package daemon

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/kumanofoo/tako/internal/domain"
)

// ─── Configuration ──────────────────────────────────────────────────────────

// duration is a toml-decodable time.Duration ("30s", "10m").
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(v)
	return nil
}

func (d duration) Std() time.Duration { return time.Duration(d) }

// Config is the daemon configuration. Every field has a default;
// a config file only overrides what it names.
type Config struct {
	DB        DBConfig        `toml:"db"`
	Market    MarketConfig    `toml:"market"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	API       APIConfig       `toml:"api"`
	Cache     CacheConfig     `toml:"cache"`
	Weather   WeatherConfig   `toml:"weather"`
	Bot       BotConfig       `toml:"bot"`
}

type DBConfig struct {
	Path string `toml:"path"`
}

// MarketConfig is the market economy; it maps onto domain.Params.
type MarketConfig struct {
	CostPrice    int64  `toml:"cost_price"`
	SellingPrice int64  `toml:"selling_price"`
	SeedMoney    int64  `toml:"seed_money"`
	Target       int64  `toml:"target"`
	OpeningTime  string `toml:"opening_time"`
	ClosingTime  string `toml:"closing_time"`
}

type SchedulerConfig struct {
	IdleWait   duration `toml:"idle_wait"`
	RetryWait  duration `toml:"retry_wait"`
	DemandWait duration `toml:"demand_wait"`
}

type APIConfig struct {
	Enabled bool   `toml:"enabled"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	Metrics bool   `toml:"metrics"`
}

func (a APIConfig) Address() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// CacheConfig selects the weather cache backend: "memory" or "redis".
type CacheConfig struct {
	Backend   string   `toml:"backend"`
	TTL       duration `toml:"ttl"`
	RedisAddr string   `toml:"redis_addr"`
	RedisDB   int      `toml:"redis_db"`
}

type WeatherConfig struct {
	BaseURL string   `toml:"base_url"`
	Timeout duration `toml:"timeout"`
}

type BotConfig struct {
	Enabled bool   `toml:"enabled"`
	ID      string `toml:"id"`
	Name    string `toml:"name"`
}

// DefaultConfig returns the canonical daemon configuration.
func DefaultConfig() Config {
	p := domain.DefaultParams()
	return Config{
		DB: DBConfig{Path: "tako.db"},
		Market: MarketConfig{
			CostPrice:    p.CostPrice,
			SellingPrice: p.SellingPrice,
			SeedMoney:    p.SeedMoney,
			Target:       p.Target,
			OpeningTime:  p.OpeningTime,
			ClosingTime:  p.ClosingTime,
		},
		Scheduler: SchedulerConfig{
			IdleWait:   duration(60 * time.Second),
			RetryWait:  duration(30 * time.Second),
			DemandWait: duration(15 * time.Second),
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8089,
			Metrics: true,
		},
		Cache: CacheConfig{
			Backend:   "memory",
			TTL:       duration(10 * time.Minute),
			RedisAddr: "localhost:6379",
		},
		Weather: WeatherConfig{
			Timeout: duration(30 * time.Second),
		},
		Bot: BotConfig{Enabled: true},
	}
}

// LoadConfig reads a TOML config file over the defaults. An empty path
// returns the defaults untouched.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Params converts the market section to domain parameters.
func (c Config) Params() domain.Params {
	return domain.Params{
		CostPrice:    c.Market.CostPrice,
		SellingPrice: c.Market.SellingPrice,
		SeedMoney:    c.Market.SeedMoney,
		Target:       c.Market.Target,
		OpeningTime:  c.Market.OpeningTime,
		ClosingTime:  c.Market.ClosingTime,
	}
}

// ─── Secrets ────────────────────────────────────────────────────────────────

// Secrets are credentials kept out of the config file. They come from the
// environment, with a .env file loaded first when present.
type Secrets struct {
	TelegramToken string `envconfig:"TAKO_TELEGRAM_TOKEN" default:""`
	RedisPassword string `envconfig:"TAKO_REDIS_PASSWORD" default:""`
	DBPath        string `envconfig:"TAKO_DB" default:""`
}

// LoadSecrets reads secrets from .env and the environment.
func LoadSecrets() (Secrets, error) {
	_ = godotenv.Load()
	var s Secrets
	if err := envconfig.Process("", &s); err != nil {
		return s, fmt.Errorf("load secrets: %w", err)
	}
	return s, nil
}
