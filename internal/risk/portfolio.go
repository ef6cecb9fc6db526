package risk

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// PortfolioConfig extends the per-trade policy with portfolio-wide limits.
type PortfolioConfig struct {
	MaxTotalExposure       float64             `yaml:"max_total_exposure"`       // fraction of balance, e.g. 0.10
	MaxCorrelatedPositions int                 `yaml:"max_correlated_positions"` // open positions in correlated symbols
	Correlated             map[string][]string `yaml:"correlated"`               // adjacency map between instruments
}

// ApplyDefaults fills unset fields with conservative values.
func (c *PortfolioConfig) ApplyDefaults() {
	if c.MaxTotalExposure <= 0 {
		c.MaxTotalExposure = 0.10
	}
	if c.MaxCorrelatedPositions <= 0 {
		c.MaxCorrelatedPositions = 2
	}
}

// PortfolioGuard tracks aggregate open exposure across instruments and
// approves or rejects proposed positions before they are opened. Its exposure
// map is the single source of truth: the engine registers and deregisters
// notional in the same critical path as ledger mutations.
type PortfolioGuard struct {
	cfg PortfolioConfig
	log zerolog.Logger

	mu       sync.Mutex
	exposure map[string]float64 // open notional per symbol
}

// NewPortfolioGuard builds a guard with defaults applied to the config.
func NewPortfolioGuard(cfg PortfolioConfig, log zerolog.Logger) *PortfolioGuard {
	cfg.ApplyDefaults()
	return &PortfolioGuard{
		cfg:      cfg,
		log:      log,
		exposure: make(map[string]float64),
	}
}

// CanOpen checks a proposed position against the total exposure cap and the
// correlated-position limit. The returned reason is human readable and meant
// for logs, not error handling.
func (g *PortfolioGuard) CanOpen(symbol string, notional, balance float64) (bool, string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var total float64
	for _, n := range g.exposure {
		total += n
	}
	limit := balance * g.cfg.MaxTotalExposure
	if total+notional > limit {
		reason := fmt.Sprintf("total exposure %.2f + %.2f exceeds limit %.2f", total, notional, limit)
		g.log.Warn().Str("symbol", symbol).Msg(reason)
		return false, reason
	}

	correlated := 0
	for _, other := range g.cfg.Correlated[symbol] {
		if g.exposure[other] > 0 {
			correlated++
		}
	}
	if correlated >= g.cfg.MaxCorrelatedPositions {
		reason := fmt.Sprintf("%d correlated positions already open (max %d)", correlated, g.cfg.MaxCorrelatedPositions)
		g.log.Warn().Str("symbol", symbol).Msg(reason)
		return false, reason
	}

	return true, ""
}

// Register records the notional of a newly opened position.
func (g *PortfolioGuard) Register(symbol string, notional float64) {
	g.mu.Lock()
	g.exposure[symbol] = notional
	g.mu.Unlock()
}

// Deregister removes a closed position's notional from the exposure map.
func (g *PortfolioGuard) Deregister(symbol string) {
	g.mu.Lock()
	delete(g.exposure, symbol)
	g.mu.Unlock()
}

// TotalExposure returns the sum of open notional across all instruments.
func (g *PortfolioGuard) TotalExposure() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	var total float64
	for _, n := range g.exposure {
		total += n
	}
	return total
}
