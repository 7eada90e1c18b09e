package price

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"farmScope/internal/fixedpoint"
)

var (
	tokenA = common.HexToAddress("0xAAAAaaaaAAAAaaaaAAAAaaaaAAAAaaaaAAAAaaaa")
	tokenB = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

func TestPricesParsesResponse(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"0xAAAAaaaaAAAAaaaaAAAAaaaaAAAAaaaaAAAAaaaa":{"usd":2.5},"0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb":{"usd":0.000123}}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL}, zap.NewNop())
	prices := client.Prices(context.Background(), "matic", []common.Address{tokenA, tokenB})

	if gotPath != "/simple/token_price/polygon-pos" {
		t.Fatalf("path = %s", gotPath)
	}
	wantAddrs := "contract_addresses=" + strings.ToLower(tokenA.Hex()) + "%2C" + strings.ToLower(tokenB.Hex())
	if !strings.Contains(gotQuery, wantAddrs) || !strings.Contains(gotQuery, "vs_currencies=usd") {
		t.Fatalf("query = %s", gotQuery)
	}

	if got := prices.Price(tokenA); got.Cmp(fixedpoint.FromFloat(2.5)) != 0 {
		t.Fatalf("tokenA price = %s", got)
	}
	if got := prices.Price(tokenB); got.Int64() != 123_000 {
		t.Fatalf("tokenB price = %s", got)
	}
}

func TestPricesFallbackOnServerError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, MaxRetries: 1, RetryBackoff: time.Millisecond}, zap.NewNop())
	prices := client.Prices(context.Background(), "bsc", []common.Address{tokenA})

	if len(prices) != 0 {
		t.Fatalf("expected empty map, got %v", prices)
	}
	if got := prices.Price(tokenA); got.Cmp(fixedpoint.One()) != 0 {
		t.Fatalf("fallback price = %s", got)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestPricesClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "invalid contract address", http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, MaxRetries: 3, RetryBackoff: time.Millisecond}, zap.NewNop())
	prices := client.Prices(context.Background(), "matic", []common.Address{tokenA})

	if len(prices) != 0 {
		t.Fatalf("expected empty map, got %v", prices)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestPricesFallbackOnMalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"0xabc": 12}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL}, zap.NewNop())
	prices := client.Prices(context.Background(), "bsc", []common.Address{tokenA})
	if len(prices) != 0 {
		t.Fatalf("expected empty map, got %v", prices)
	}
}

func TestPricesUnknownNetwork(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:0"}, zap.NewNop())
	if prices := client.Prices(context.Background(), "solana", []common.Address{tokenA}); len(prices) != 0 {
		t.Fatalf("expected empty map, got %v", prices)
	}
}

func TestPricesSendsAPIKey(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get(apiKeyHeader)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, APIKey: "secret"}, zap.NewNop())
	client.Prices(context.Background(), "matic", []common.Address{tokenA})
	if gotKey != "secret" {
		t.Fatalf("api key header = %q", gotKey)
	}
}

func TestMapPriceIsCopy(t *testing.T) {
	m := Map{Key(tokenA): fixedpoint.FromFloat(3)}
	p := m.Price(tokenA)
	p.SetInt64(0)
	if m.Price(tokenA).Cmp(fixedpoint.FromFloat(3)) != 0 {
		t.Fatalf("map value mutated through lookup")
	}
}
