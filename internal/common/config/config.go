package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/leonid6372/stock-arena/pkg/log"
	"github.com/shopspring/decimal"
)

const (
	EnvProd = "prod"
	EnvTest = "test"
)

type Config struct {
	Env      string `yaml:"env" env:"ENV" env-upd:"" env-default:"test"`
	Location string `yaml:"location" env:"LOCATION" env-upd:"" env-default:"UTC"`

	Log      Log      `yaml:"log"`
	HTTP     HTTP     `yaml:"http"`
	Postgres Postgres `yaml:"postgres"`
	Redis    Redis    `yaml:"redis"`
	Bot      Bot      `yaml:"bot"`
	Quotes   Quotes   `yaml:"quotes"`
	Game     Game     `yaml:"game"`
}

type Log struct {
	Level    string `yaml:"level" env:"LOG_LEVEL" env-upd:"" env-default:"info"`
	Encoding string `yaml:"encoding" env:"LOG_ENCODING" env-upd:"" env-default:"console"`
}

type HTTP struct {
	Addr            string        `yaml:"addr" env:"HTTP_ADDR" env-upd:"" env-default:":8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-upd:"" env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-upd:"" env-default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-upd:"" env-default:"10s"`
}

// Postgres is optional: with an empty host the in-memory store is used.
type Postgres struct {
	Database string `yaml:"database" env:"POSTGRES_DATABASE" env-upd:""`
	Host     string `yaml:"host" env:"POSTGRES_HOST" env-upd:""`
	Schema   string `yaml:"schema" env:"POSTGRES_SCHEMA" env-upd:"" env-default:"arena"`
	Username string `yaml:"username" env:"POSTGRES_USER" env-upd:""`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD" env-upd:""`
	Port     int64  `yaml:"port" env:"POSTGRES_PORT" env-upd:"" env-default:"5432"`
}

// Redis is optional: with an empty addr quote snapshots go to postgres, or nowhere.
type Redis struct {
	Addr        string        `yaml:"addr" env:"REDIS_ADDR" env-upd:""`
	Password    string        `yaml:"password" env:"REDIS_PASSWORD" env-upd:""`
	DB          int           `yaml:"db" env:"REDIS_DB" env-upd:""`
	SnapshotTTL time.Duration `yaml:"snapshot_ttl" env:"REDIS_SNAPSHOT_TTL" env-upd:"" env-default:"24h"`
}

type Bot struct {
	APIKey      string        `yaml:"api_key" env:"BOT_API_KEY" env-upd:""`
	PollTimeout time.Duration `yaml:"poll_timeout" env:"BOT_POLL_TIMEOUT" env-upd:"" env-default:"10s"`
}

type Quotes struct {
	ProviderURL    string        `yaml:"provider_url" env:"QUOTES_PROVIDER_URL" env-upd:"" env-default:"https://api.api-ninjas.com"`
	APIKey         string        `yaml:"api_key" env:"QUOTES_API_KEY" env-upd:""`
	TTL            time.Duration `yaml:"ttl" env:"QUOTES_TTL" env-upd:"" env-default:"60s"`
	Retention      time.Duration `yaml:"retention" env:"QUOTES_RETENTION" env-upd:"" env-default:"24h"`
	FetchTimeout   time.Duration `yaml:"fetch_timeout" env:"QUOTES_FETCH_TIMEOUT" env-upd:"" env-default:"10s"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"QUOTES_REQUEST_TIMEOUT" env-upd:"" env-default:"5s"`
	RPS            float64       `yaml:"rps" env:"QUOTES_RPS" env-upd:"" env-default:"5"`
	Burst          int           `yaml:"burst" env:"QUOTES_BURST" env-upd:"" env-default:"5"`
	MaxRetries     uint          `yaml:"max_retries" env:"QUOTES_MAX_RETRIES" env-upd:"" env-default:"2"`
	Workers        int           `yaml:"workers" env:"QUOTES_WORKERS" env-upd:"" env-default:"8"`
}

type Game struct {
	InitialCash        string        `yaml:"initial_cash" env:"GAME_INITIAL_CASH" env-upd:"" env-default:"10000"`
	RefreshCooldown    time.Duration `yaml:"refresh_cooldown" env:"GAME_REFRESH_COOLDOWN" env-upd:"" env-default:"1h"`
	RefreshInterval    time.Duration `yaml:"refresh_interval" env:"GAME_REFRESH_INTERVAL" env-upd:""`
	LeaderboardWorkers int           `yaml:"leaderboard_workers" env:"GAME_LEADERBOARD_WORKERS" env-upd:"" env-default:"8"`
	TopLimit           int           `yaml:"top_limit" env:"GAME_TOP_LIMIT" env-upd:"" env-default:"10"`
}

func (c *Config) GetPostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Postgres.Username, c.Postgres.Password, c.Postgres.Host, c.Postgres.Port, c.Postgres.Database)
}

func (c *Config) GetInitialCash() (decimal.Decimal, error) {
	cash, err := decimal.NewFromString(c.Game.InitialCash)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid initial cash %q: %w", c.Game.InitialCash, err)
	}

	if !cash.IsPositive() {
		return decimal.Zero, fmt.Errorf("initial cash must be positive, got %s", cash)
	}

	return cash, nil
}

func (c *Config) GetLocation() *time.Location {
	location, err := time.LoadLocation(c.Location)
	if err != nil {
		return time.UTC
	}

	return location
}

// Load reads configPath and applies environment overrides.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config path is required")
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, err
	}

	if err := cleanenv.UpdateEnv(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func GetConfig(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatal(err.Error())
	}

	return cfg
}
