// Package config exposes strongly typed application configuration structs
// loaded from YAML, including the per-instrument trading policy table.
package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/gamboaalejandro/trading-bot/internal/risk"
	"github.com/gamboaalejandro/trading-bot/internal/strategy"
)

// App captures process-wide runtime settings such as name, environment,
// metrics, and logging levels.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Feed describes the market-data source the engine consumes.
type Feed struct {
	Provider      string `yaml:"provider"`       // stub | binance
	Interval      string `yaml:"interval"`       // kline interval, e.g. 1m
	HeartbeatSecs int    `yaml:"heartbeat_secs"` // main-loop idle warning threshold
	MaxReconnects int    `yaml:"max_reconnects"` // feed gives up after this many attempts
}

// Profile selects how per-instrument strategy signals are combined.
type Profile struct {
	CombinationMethod string  `yaml:"combination_method"`
	MinConfidence     float64 `yaml:"min_confidence"`
}

// Engine tunes the orchestration loop.
type Engine struct {
	MonitorIntervalSecs int     `yaml:"monitor_interval_secs"` // position monitor cadence
	CloseOnShutdown     bool    `yaml:"close_on_shutdown"`     // close open positions when stopping
	WinRate             float64 `yaml:"win_rate"`              // expected win rate fed to Kelly sizing
	RewardRatio         float64 `yaml:"reward_ratio"`          // reward/risk ratio for sizing and targets
}

// StrategyParams groups the numeric knobs a symbol's strategy runs with.
type StrategyParams struct {
	RSIPeriod     int     `yaml:"rsi_period"`
	FastMA        int     `yaml:"ma_fast"`
	SlowMA        int     `yaml:"ma_slow"`
	BBPeriod      int     `yaml:"bb_period"`
	BBStdDev      float64 `yaml:"bb_std"`
	Oversold      float64 `yaml:"oversold"`
	Overbought    float64 `yaml:"overbought"`
	StopLossPct   float64 `yaml:"stop_loss_pct"`
	TakeProfitPct float64 `yaml:"take_profit_pct"`
}

// SymbolPolicy is one entry of the per-instrument policy table.
type SymbolPolicy struct {
	Enabled             bool           `yaml:"enabled"`
	Tier                string         `yaml:"tier"` // STABLE | VOLATILE | MEME
	Strategy            string         `yaml:"strategy"`
	MaxPositionNotional float64        `yaml:"max_position_notional"`
	MaxDailyTrades      int            `yaml:"max_daily_trades"`
	Params              StrategyParams `yaml:"params"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App       App                     `yaml:"app"`
	Feed      Feed                    `yaml:"feed"`
	Risk      risk.Config             `yaml:"risk"`
	Portfolio risk.PortfolioConfig    `yaml:"portfolio"`
	Profile   Profile                 `yaml:"profile"`
	Engine    Engine                  `yaml:"engine"`
	Symbols   map[string]SymbolPolicy `yaml:"symbols"`
}

// Strategy type names accepted by the policy table.
const (
	StrategyMomentum      = "momentum"
	StrategyMeanReversion = "mean_reversion"
)

// Load reads a YAML file from disk, hydrates a Config struct, applies
// defaults, and validates it. Fatal configuration faults are rejected here
// rather than silently defaulted at runtime.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := yaml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.MetricsAddr == "" {
		c.App.MetricsAddr = ":9100"
	}
	if c.Feed.Provider == "" {
		c.Feed.Provider = "stub"
	}
	if c.Feed.Interval == "" {
		c.Feed.Interval = "1m"
	}
	if c.Feed.HeartbeatSecs <= 0 {
		c.Feed.HeartbeatSecs = 60
	}
	if c.Feed.MaxReconnects <= 0 {
		c.Feed.MaxReconnects = 10
	}
	if c.Profile.CombinationMethod == "" {
		c.Profile.CombinationMethod = "consensus"
	}
	if c.Profile.MinConfidence <= 0 {
		c.Profile.MinConfidence = 0.6
	}
	if c.Engine.MonitorIntervalSecs <= 0 {
		c.Engine.MonitorIntervalSecs = 2
	}
	if c.Engine.WinRate <= 0 {
		c.Engine.WinRate = 0.55
	}
	if c.Engine.RewardRatio <= 0 {
		c.Engine.RewardRatio = 2.0
	}
	c.Risk.ApplyDefaults()
	c.Portfolio.ApplyDefaults()
}

// Validate rejects configurations the engine must refuse to run with.
func (c *Config) Validate() error {
	if _, err := strategy.ParseMethod(c.Profile.CombinationMethod); err != nil {
		return fmt.Errorf("profile: %w", err)
	}
	if c.Profile.MinConfidence < 0 || c.Profile.MinConfidence > 1 {
		return fmt.Errorf("profile: min_confidence %.2f outside [0,1]", c.Profile.MinConfidence)
	}
	if len(c.ActiveSymbols()) == 0 {
		return fmt.Errorf("no enabled symbols in policy table")
	}
	for symbol, policy := range c.Symbols {
		if !policy.Enabled {
			continue
		}
		switch policy.Strategy {
		case StrategyMomentum, StrategyMeanReversion:
		case "":
			return fmt.Errorf("symbol %s: enabled without a strategy", symbol)
		default:
			return fmt.Errorf("symbol %s: unknown strategy %q", symbol, policy.Strategy)
		}
		if policy.MaxPositionNotional < 0 {
			return fmt.Errorf("symbol %s: negative max_position_notional", symbol)
		}
	}
	return nil
}

// ActiveSymbols returns the enabled instruments, sorted for determinism.
func (c *Config) ActiveSymbols() []string {
	out := make([]string, 0, len(c.Symbols))
	for symbol, policy := range c.Symbols {
		if policy.Enabled {
			out = append(out, symbol)
		}
	}
	sort.Strings(out)
	return out
}
