package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gamboaalejandro/trading-bot/internal/market"
	"github.com/gamboaalejandro/trading-bot/internal/metrics"
)

type binanceEnvelope struct {
	Stream string      `json:"stream"`
	Data   binanceData `json:"data"`
}

type binanceData struct {
	Kline binanceKline `json:"k"`
}

type binanceKline struct {
	OpenTime int64  `json:"t"`
	Open     string `json:"o"`
	High     string `json:"h"`
	Low      string `json:"l"`
	Close    string `json:"c"`
	Volume   string `json:"v"`
	Final    bool   `json:"x"`
}

func (f *Feed) runBinance(ctx context.Context, out chan<- market.Update) error {
	if len(f.symbols) == 0 {
		return fmt.Errorf("binance feed requires at least one symbol")
	}

	streams := make([]string, len(f.symbols))
	for i, sym := range f.symbols {
		streams[i] = strings.ToLower(sym) + "@kline_" + f.interval
	}

	url := fmt.Sprintf("wss://stream.binance.com:9443/stream?streams=%s", strings.Join(streams, "/"))
	backoff := time.Second
	const maxBackoff = 30 * time.Second
	attempts := 0

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		connected, err := f.consumeBinanceStream(ctx, url, out)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			// A session that got through the handshake resets the retry budget.
			attempts = 0
			backoff = time.Second
		}
		attempts++
		if attempts >= f.maxReconnects {
			return fmt.Errorf("binance feed gave up after %d attempts: %w", attempts, err)
		}
		f.log.Warn().Err(err).Int("attempt", attempts).Msg("binance feed disconnected, retrying")
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff = time.Duration(math.Min(float64(maxBackoff), float64(backoff)*1.8))
	}
}

func (f *Feed) consumeBinanceStream(ctx context.Context, url string, out chan<- market.Update) (connected bool, err error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	f.log.Info().Str("provider", ProviderBinance).Strs("symbols", f.symbols).Str("interval", f.interval).Msg("connected market data feed")

	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	conn.SetPongHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		return nil
	})

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					f.log.Warn().Err(err).Msg("binance ping failed")
					return
				}
			case <-pingCtx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return true, ctx.Err()
		default:
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}

		var env binanceEnvelope
		if err := json.Unmarshal(message, &env); err != nil {
			f.log.Warn().Err(err).Msg("failed to decode binance message")
			continue
		}

		symbol := parseBinanceSymbol(env.Stream)
		bar, err := env.Data.Kline.toBar()
		if err != nil {
			f.log.Warn().Err(err).Str("sym", symbol).Msg("invalid kline from binance")
			continue
		}

		select {
		case out <- market.Update{Symbol: symbol, Bar: bar}:
			metrics.BarsTotal.WithLabelValues(symbol).Inc()
		case <-ctx.Done():
			return true, ctx.Err()
		}
	}
}

// toBar converts Binance's string-encoded kline payload to a numeric bar.
// In-progress klines are forwarded too: the buffer layer overwrites a bar
// whose open time repeats, so the last update for a timestamp wins.
func (k binanceKline) toBar() (market.Bar, error) {
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return market.Bar{}, fmt.Errorf("open: %w", err)
	}
	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return market.Bar{}, fmt.Errorf("high: %w", err)
	}
	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return market.Bar{}, fmt.Errorf("low: %w", err)
	}
	clos, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return market.Bar{}, fmt.Errorf("close: %w", err)
	}
	vol, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return market.Bar{}, fmt.Errorf("volume: %w", err)
	}
	return market.Bar{
		Time:   time.UnixMilli(k.OpenTime),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  clos,
		Volume: vol,
	}, nil
}

func parseBinanceSymbol(stream string) string {
	parts := strings.Split(stream, "@")
	if len(parts) == 0 || parts[0] == "" {
		return strings.ToUpper(stream)
	}
	return strings.ToUpper(parts[0])
}
