package ops

import (
	stderrors "errors"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/yanun0323/errors"
	"gopkg.in/yaml.v3"

	"venuetrader/internal/client"
	"venuetrader/internal/history"
	"venuetrader/internal/obs"
	"venuetrader/internal/og"
	"venuetrader/internal/paper"
	"venuetrader/internal/recorder"
	"venuetrader/internal/schema"
	"venuetrader/internal/session"
	"venuetrader/internal/shutdown"
	"venuetrader/internal/strategy"
	"venuetrader/pkg/exception"
)

// EnvPrefix prefixes every environment key read by Load.
const EnvPrefix = "NINJA_API_"

// EnvFiles are loaded, when present, before the environment is read.
var EnvFiles = []string{".env", ".env.prod"}

// Strategy names accepted by Config.Strategies.
const (
	StrategyMomentum = "momentum"
	StrategyBreakout = "breakout"
	StrategyTrail    = "trail"
)

// Config mirrors the YAML config layout.
type Config struct {
	Timezone   string          `yaml:"timezone"`
	Products   []ProductConfig `yaml:"products"`
	Accounts   []string        `yaml:"accounts"`
	Strategies []string        `yaml:"strategies"`

	Trading   session.Config    `yaml:"trading"`
	Positions session.Config    `yaml:"positions"`
	Client    client.Config     `yaml:"client"`
	Gateway   og.GatewayConfig  `yaml:"gateway"`
	QueueSize int               `yaml:"queue_size"`
	Shutdown  shutdown.Config   `yaml:"shutdown"`
	TradeLog  recorder.Config   `yaml:"trade_log"`
	History   history.Config    `yaml:"history"`
	Metrics   MetricsConfig     `yaml:"metrics"`
	Profiling obs.ProfileConfig `yaml:"profiling"`
	Paper     paper.Config      `yaml:"paper"`

	Momentum strategy.MomentumConfig `yaml:"momentum"`
	Breakout strategy.BreakoutConfig `yaml:"breakout"`
	Trail    strategy.TrailConfig    `yaml:"trail"`
}

// ProductConfig describes one tradable contract.
type ProductConfig struct {
	Name     string  `yaml:"name"`
	Exchange string  `yaml:"exchange"`
	TickSize float64 `yaml:"tick_size"`
	Divisor  int64   `yaml:"divisor"`
}

// MetricsConfig enables the /metrics endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Config
	Registry *schema.Registry
	Location *time.Location
	// TradingAuth and PositionsAuth come from the environment.
	TradingAuth   client.Credentials
	PositionsAuth client.Credentials
}

// PositionsEnabled reports whether a positions session is configured.
func (l Loaded) PositionsEnabled() bool {
	return l.PositionsAuth.AccessToken != ""
}

// StrategyEnabled reports whether name is listed in the strategies.
func (l Loaded) StrategyEnabled(name string) bool {
	return slices.Contains(l.Strategies, name)
}

// TradingClient returns the trading client config with its credentials.
func (l Loaded) TradingClient() client.Config {
	cfg := l.Client
	cfg.Credentials = l.TradingAuth
	return cfg
}

// PositionsClient returns the positions client config with its credentials.
func (l Loaded) PositionsClient() client.Config {
	cfg := l.Client
	cfg.Credentials = l.PositionsAuth
	return cfg
}

// Default returns a complete configuration for the NQ desk.
func Default() Config {
	shut := shutdown.DefaultConfig()
	shut.SnapshotPath = "state.json"
	return Config{
		Timezone:   "America/Chicago",
		Products:   []ProductConfig{{Name: "NQU5", Exchange: "CME", TickSize: 0.25, Divisor: 100}},
		Accounts:   []string{"FW077", "FW078", "FW079"},
		Strategies: []string{StrategyMomentum, StrategyBreakout, StrategyTrail},
		Trading:    session.Config{Name: "trading", Host: "127.0.0.1", Port: 58000},
		Positions:  session.Config{Name: "positions", Host: "127.0.0.1", Port: 58001},
		Client: client.Config{
			OrderPoll:          client.DefaultOrderPoll,
			SummaryInterval:    client.DefaultSummaryInterval,
			PositionPollActive: client.DefaultPositionPollActive,
			PositionPollIdle:   client.DefaultPositionPollIdle,
		},
		Gateway:   og.GatewayConfig{OrdersPerSecond: 20, Burst: 5},
		QueueSize: 4096,
		Shutdown:  shut,
		TradeLog:  recorder.DefaultConfig("trades"),
		History:   history.Config{Table: history.DefaultTable},
		Paper:     paper.DefaultConfig(),
		Momentum:  strategy.DefaultMomentumConfig(),
		Breakout:  strategy.DefaultBreakoutConfig(),
		Trail:     strategy.DefaultTrailConfig(),
	}
}

// Load reads the YAML file at path over Default and resolves credentials
// from the environment. An empty path loads the defaults only.
func Load(path string) (Loaded, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	if err := LoadEnvFiles(EnvFiles...); err != nil {
		return Loaded{}, err
	}
	return Resolve(cfg, os.LookupEnv)
}

// LoadFile reads the YAML file at path over Default.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(exception.ErrConfigInvalid, "decode %s: %v", path, err)
	}
	return cfg, nil
}

// LoadEnvFiles loads the dotenv files that exist. Variables already set in
// the environment win.
func LoadEnvFiles(files ...string) error {
	for _, f := range files {
		err := godotenv.Load(f)
		if err == nil || stderrors.Is(err, fs.ErrNotExist) {
			continue
		}
		return errors.Wrapf(err, "load %s", f)
	}
	return nil
}

// Resolve validates cfg, builds the registry and reads endpoints and
// credentials through lookup.
func Resolve(cfg Config, lookup func(string) (string, bool)) (Loaded, error) {
	loaded, err := ResolveLocal(cfg)
	if err != nil {
		return Loaded{}, err
	}
	env := envReader{lookup: lookup}

	loaded.Trading.Host = env.str("TRADING_HOST", cfg.Trading.Host)
	loaded.Positions.Host = env.str("POSITIONS_HOST", cfg.Positions.Host)
	if loaded.Trading.Port, err = env.port("TRADING_PORT", cfg.Trading.Port); err != nil {
		return Loaded{}, err
	}
	if loaded.Positions.Port, err = env.port("POSITIONS_PORT", cfg.Positions.Port); err != nil {
		return Loaded{}, err
	}

	for _, key := range []string{"TRADING_USER", "TRADING_PASSWORD", "TRADING_ACCESS_TOKEN"} {
		if env.str(key, "") == "" {
			return Loaded{}, errors.Wrap(exception.ErrConfigMissing, EnvPrefix+key)
		}
	}
	loaded.TradingAuth = client.Credentials{
		User:        env.str("TRADING_USER", ""),
		Password:    env.str("TRADING_PASSWORD", ""),
		AccessToken: env.str("TRADING_ACCESS_TOKEN", ""),
	}
	// the positions login reuses the trading user
	loaded.PositionsAuth = client.Credentials{
		User:        loaded.TradingAuth.User,
		Password:    loaded.TradingAuth.Password,
		AccessToken: env.str("POSITIONS_ACCESS_TOKEN", ""),
	}
	return loaded, nil
}

// ResolveLocal validates cfg and builds the registry without reading
// endpoints or credentials, for offline tools.
func ResolveLocal(cfg Config) (Loaded, error) {
	loaded := Loaded{Config: cfg}

	var err error
	if loaded.Location, err = time.LoadLocation(cfg.Timezone); err != nil {
		return Loaded{}, errors.Wrapf(exception.ErrConfigInvalid, "timezone %q: %v", cfg.Timezone, err)
	}
	if loaded.Registry, err = buildRegistry(cfg.Products); err != nil {
		return Loaded{}, err
	}
	if len(cfg.Accounts) == 0 {
		return Loaded{}, errors.Wrap(exception.ErrConfigMissing, "accounts")
	}
	for _, name := range cfg.Strategies {
		switch name {
		case StrategyMomentum, StrategyBreakout, StrategyTrail:
		default:
			return Loaded{}, errors.Wrapf(exception.ErrConfigInvalid, "unknown strategy %q", name)
		}
	}

	if loaded.Client.Accounts == nil {
		loaded.Client.Accounts = slices.Clone(cfg.Accounts)
	}
	if loaded.Client.Products == nil {
		for _, p := range cfg.Products {
			loaded.Client.Products = append(loaded.Client.Products, p.Name)
		}
	}
	if loaded.TradeLog.Location == nil {
		loaded.TradeLog.Location = loaded.Location
	}
	return loaded, nil
}

func buildRegistry(products []ProductConfig) (*schema.Registry, error) {
	if len(products) == 0 {
		return nil, errors.Wrap(exception.ErrConfigMissing, "products")
	}
	reg := schema.NewRegistry()
	for _, p := range products {
		exchange, err := parseExchange(p.Exchange)
		if err != nil {
			return nil, err
		}
		if _, err := reg.AddProduct(p.Name, exchange, p.TickSize, p.Divisor); err != nil {
			return nil, errors.Wrapf(err, "product %s", p.Name)
		}
	}
	return reg, nil
}

func parseExchange(s string) (schema.Exchange, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "CME":
		return schema.ExchangeCME, nil
	default:
		return schema.ExchangeUnknown, errors.Wrapf(exception.ErrConfigInvalid, "exchange %q", s)
	}
}

type envReader struct {
	lookup func(string) (string, bool)
}

func (e envReader) str(key, fallback string) string {
	if e.lookup == nil {
		return fallback
	}
	if v, ok := e.lookup(EnvPrefix + key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func (e envReader) port(key string, fallback int) (int, error) {
	v := e.str(key, "")
	if v == "" {
		return fallback, nil
	}
	port, err := strconv.Atoi(v)
	if err != nil || port <= 0 || port > 65535 {
		return 0, errors.Wrapf(exception.ErrConfigInvalid, "%s%s %q", EnvPrefix, key, v)
	}
	return port, nil
}

// Routes returns the order entry of one account and product.
type Routes func(account, product string) strategy.Orders

// BuildStrategies creates the enabled strategies reading book and sending
// through routes. src may be nil.
func (l Loaded) BuildStrategies(book strategy.Book, routes Routes, src history.Source) ([]strategy.Strategy, error) {
	var out []strategy.Strategy

	if l.StrategyEnabled(StrategyMomentum) {
		cfg := l.Momentum
		inst, err := cfg.Instrument.Bind(l.Registry)
		if err != nil {
			return nil, errors.Wrap(err, "momentum")
		}
		cfg.Instrument = inst
		s, err := strategy.NewMomentum(cfg, l.Location, book, routes(cfg.Account, cfg.Product), src)
		if err != nil {
			return nil, errors.Wrap(err, "momentum")
		}
		out = append(out, s)
	}

	if l.StrategyEnabled(StrategyBreakout) {
		cfg := l.Breakout
		inst, err := cfg.Instrument.Bind(l.Registry)
		if err != nil {
			return nil, errors.Wrap(err, "breakout")
		}
		cfg.Instrument = inst
		s, err := strategy.NewBreakout(cfg, l.Location, book, routes(cfg.Account, cfg.Product), src)
		if err != nil {
			return nil, errors.Wrap(err, "breakout")
		}
		out = append(out, s)
	}

	if l.StrategyEnabled(StrategyTrail) {
		cfg := l.Trail
		inst, err := cfg.Instrument.Bind(l.Registry)
		if err != nil {
			return nil, errors.Wrap(err, "trail")
		}
		cfg.Instrument = inst
		s, err := strategy.NewTrail(cfg, book, routes(cfg.Account, cfg.Product), src)
		if err != nil {
			return nil, errors.Wrap(err, "trail")
		}
		out = append(out, s)
	}
	return out, nil
}
