package risk

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestPortfolioExposureCap(t *testing.T) {
	g := NewPortfolioGuard(PortfolioConfig{MaxTotalExposure: 0.10}, zerolog.Nop())
	g.Register("BTCUSDT", 900)

	// Balance 10000 caps total exposure at 1000.
	if ok, reason := g.CanOpen("ETHUSDT", 200, 10000); ok {
		t.Fatalf("expected exposure rejection, got approval (%s)", reason)
	}
	if ok, reason := g.CanOpen("ETHUSDT", 50, 10000); !ok {
		t.Fatalf("expected approval under the cap, got %s", reason)
	}
}

func TestPortfolioCorrelatedLimit(t *testing.T) {
	cfg := PortfolioConfig{
		MaxTotalExposure:       1.0,
		MaxCorrelatedPositions: 1,
		Correlated: map[string][]string{
			"SOLUSDT": {"BTCUSDT", "ETHUSDT"},
		},
	}
	g := NewPortfolioGuard(cfg, zerolog.Nop())
	g.Register("BTCUSDT", 100)

	if ok, reason := g.CanOpen("SOLUSDT", 100, 10000); ok {
		t.Fatalf("expected correlated rejection, got approval (%s)", reason)
	}

	// An uncorrelated instrument is unaffected.
	if ok, reason := g.CanOpen("DOGEUSDT", 100, 10000); !ok {
		t.Fatalf("expected approval for uncorrelated symbol, got %s", reason)
	}
}

func TestPortfolioDeregisterFreesExposure(t *testing.T) {
	g := NewPortfolioGuard(PortfolioConfig{MaxTotalExposure: 0.10}, zerolog.Nop())
	g.Register("BTCUSDT", 1000)
	if ok, _ := g.CanOpen("ETHUSDT", 100, 10000); ok {
		t.Fatalf("expected rejection while exposure is held")
	}

	g.Deregister("BTCUSDT")
	if total := g.TotalExposure(); total != 0 {
		t.Fatalf("total exposure = %v after deregister, want 0", total)
	}
	if ok, reason := g.CanOpen("ETHUSDT", 100, 10000); !ok {
		t.Fatalf("expected approval after deregister, got %s", reason)
	}
}
