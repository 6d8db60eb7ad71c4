package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collectorvault/appraise/internal/model"
)

func fastConfig(baseURL string) AdapterConfig {
	return AdapterConfig{
		BaseURL:        baseURL,
		InitialBackoff: time.Millisecond,
	}
}

func testClient() *Client {
	return NewClient(ClientOptions{PerHostRate: 1000, PerHostBurst: 1000})
}

func TestScryVaultParsesListings(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC().Format(time.RFC3339)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/listings/search", r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("q"), "Charizard")
		assert.Equal(t, "NM", r.URL.Query().Get("condition"))
		fmt.Fprintf(w, `{"status":"ok","listings":[
			{"price":"129.99","currency":"USD","condition":"Near Mint","listed_at":%q,"url":"https://sv/1"},
			{"price":"not-a-number","currency":"USD","condition":"NM","listed_at":%q},
			{"price":"140.00","currency":"EUR","condition":"NM","listed_at":"garbage"},
			{"price":"135.50","currency":"USD","condition":"Mint","listed_at":%q}
		]}`, now, now, now)
	}))
	defer srv.Close()

	p := NewScryVault(fastConfig(srv.URL), testClient(), nil)
	obs := p.FetchComparables(context.Background(), model.PriceQuery{
		ItemName: "Charizard", Set: "Base Set", Condition: "Near Mint",
	})

	// Malformed price and unparseable timestamp are skipped, not fatal.
	require.Len(t, obs, 2)
	assert.Equal(t, "scryvault", obs[0].Source)
	assert.Equal(t, 129.99, obs[0].Price)
	assert.Equal(t, "https://sv/1", obs[0].ListingURL)
}

func TestScryVaultFiltersStaleListings(t *testing.T) {
	t.Parallel()

	old := time.Now().UTC().AddDate(0, 0, -120).Format(time.RFC3339)
	recent := time.Now().UTC().Format(time.RFC3339)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"status":"ok","listings":[
			{"price":"10","currency":"USD","listed_at":%q},
			{"price":"20","currency":"USD","listed_at":%q}
		]}`, old, recent)
	}))
	defer srv.Close()

	p := NewScryVault(fastConfig(srv.URL), testClient(), nil)
	obs := p.FetchComparables(context.Background(), model.PriceQuery{ItemName: "x", WindowDays: 30})

	require.Len(t, obs, 1)
	assert.Equal(t, 20.0, obs[0].Price)
}

func TestScryVaultFailsSoftOnServerError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewScryVault(fastConfig(srv.URL), testClient(), nil)
	obs := p.FetchComparables(context.Background(), model.PriceQuery{ItemName: "x"})

	assert.Empty(t, obs)
	assert.Equal(t, int32(3), calls.Load(), "503 is transient and retried to exhaustion")
}

func TestCardLedgerShortWindowSkipsHistory(t *testing.T) {
	t.Parallel()

	var historyCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/sales":
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
			fmt.Fprintf(w, `{"sales":[{"amount":55.5,"currency":"USD","grade":"9","sold_at":"2026-08-10","permalink":"https://cl/1"}]}`)
		case "/v2/history":
			historyCalls.Add(1)
			fmt.Fprint(w, `{"points":[]}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	cfg := fastConfig(srv.URL)
	cfg.APIKey = "test-key"
	p := NewCardLedger(cfg, testClient(), nil)
	obs := p.FetchComparables(context.Background(), model.PriceQuery{ItemName: "x", WindowDays: 14})

	require.Len(t, obs, 1)
	assert.Equal(t, 55.5, obs[0].Price)
	assert.Equal(t, int32(0), historyCalls.Load(), "short windows must not hit the history endpoint")
}

func TestCardLedgerLongWindowMergesHistory(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/sales":
			fmt.Fprint(w, `{"sales":[{"amount":60,"currency":"USD","grade":"9","sold_at":"2026-08-10"}]}`)
		case "/v2/history":
			assert.Equal(t, "6", r.URL.Query().Get("months"))
			fmt.Fprint(w, `{"points":[
				{"month":"2026-03","median":48.5,"currency":"USD"},
				{"month":"not-a-month","median":50,"currency":"USD"},
				{"month":"2026-04","median":52.0,"currency":"USD"}
			]}`)
		}
	}))
	defer srv.Close()

	p := NewCardLedger(fastConfig(srv.URL), testClient(), nil)
	obs := p.FetchComparables(context.Background(), model.PriceQuery{ItemName: "x", WindowDays: 180})

	require.Len(t, obs, 3, "current sale plus two valid history points")
	assert.Equal(t, 60.0, obs[0].Price)
	assert.Equal(t, 48.5, obs[1].Price)
}

func TestCardLedgerHistoryFailureKeepsCurrentSales(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/sales":
			fmt.Fprint(w, `{"sales":[{"amount":60,"currency":"USD","grade":"9","sold_at":"2026-08-10"}]}`)
		case "/v2/history":
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	p := NewCardLedger(fastConfig(srv.URL), testClient(), nil)
	obs := p.FetchComparables(context.Background(), model.PriceQuery{ItemName: "x", WindowDays: 180})

	require.Len(t, obs, 1)
	assert.Equal(t, 60.0, obs[0].Price)
}

func TestGavelBidConvertsCents(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auctions/closed", r.URL.Path)
		assert.NotEmpty(t, r.URL.Query().Get("since"))
		fmt.Fprint(w, `{"results":[
			{"hammer_price_cents":12999,"currency":"USD","condition_note":"lightly played","closed_at":"2026-08-15T12:00:00Z","lot_url":"https://gb/1"},
			{"hammer_price_cents":5000,"currency":"GBP","condition_note":"graded PSA 9","closed_at":"bogus"}
		]}`)
	}))
	defer srv.Close()

	p := NewGavelBid(fastConfig(srv.URL), testClient(), nil)
	obs := p.FetchComparables(context.Background(), model.PriceQuery{ItemName: "x"})

	require.Len(t, obs, 1)
	assert.Equal(t, 129.99, obs[0].Price)
	assert.Equal(t, "lightly played", obs[0].Condition)
}

func TestAdapterBreakerOpensAndExcludes(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewGavelBid(fastConfig(srv.URL), testClient(), nil)
	require.True(t, p.Available())

	// Five exhausted runs open the breaker.
	for i := 0; i < 5; i++ {
		_ = p.FetchComparables(context.Background(), model.PriceQuery{ItemName: "x"})
	}
	assert.False(t, p.Available())
	assert.Equal(t, "open", p.Status().State)
}
