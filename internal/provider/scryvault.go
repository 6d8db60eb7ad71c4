package provider

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/collectorvault/appraise/internal/model"
	"github.com/collectorvault/appraise/internal/resilience"
)

// ScryVaultDefaultRateLimit is the source's published per-minute ceiling.
const ScryVaultDefaultRateLimit = 30

// ScryVault fetches active marketplace listings from the ScryVault API.
type ScryVault struct {
	cfg    AdapterConfig
	client *Client
	guard  *resilience.Guard
}

var _ Provider = (*ScryVault)(nil)

// scryVaultConditions maps the standard query condition keywords into
// ScryVault's condition codes.
var scryVaultConditions = map[string]string{
	"mint":      "M",
	"near mint": "NM",
	"excellent": "EX",
	"good":      "GD",
	"poor":      "PR",
}

// NewScryVault creates the ScryVault adapter with its own guard.
func NewScryVault(cfg AdapterConfig, client *Client, events resilience.Events) *ScryVault {
	return &ScryVault{
		cfg:    cfg,
		client: client,
		guard:  cfg.newGuard("scryvault", ScryVaultDefaultRateLimit, events),
	}
}

func (p *ScryVault) Name() string                   { return "scryvault" }
func (p *ScryVault) Available() bool                { return p.guard.Available() }
func (p *ScryVault) Status() resilience.GuardStatus { return p.guard.Status() }

// FetchComparables searches active listings. Fails soft: throttling, open
// circuit, or exhausted retries yield an empty slice.
func (p *ScryVault) FetchComparables(ctx context.Context, q model.PriceQuery) []model.RawObservation {
	obs, _ := resilience.Execute(ctx, p.guard, func(ctx context.Context) ([]model.RawObservation, error) {
		return p.search(ctx, q)
	})
	return obs
}

// scryVaultListing is one marketplace listing as the API returns it. Prices
// arrive as strings.
type scryVaultListing struct {
	Price     string `json:"price"`
	Currency  string `json:"currency"`
	Condition string `json:"condition"`
	ListedAt  string `json:"listed_at"`
	URL       string `json:"url"`
}

type scryVaultSearchResponse struct {
	Status   string             `json:"status"`
	Message  string             `json:"message,omitempty"`
	Listings []scryVaultListing `json:"listings"`
}

func (p *ScryVault) search(ctx context.Context, q model.PriceQuery) ([]model.RawObservation, error) {
	vals := url.Values{}
	vals.Set("q", q.Keywords())
	vals.Set("days", strconv.Itoa(q.Window()))
	if code, ok := scryVaultConditions[normalizeKey(q.Condition)]; ok {
		vals.Set("condition", code)
	}
	if p.cfg.APIKey != "" {
		vals.Set("key", p.cfg.APIKey)
	}
	u := fmt.Sprintf("%s/v1/listings/search?%s", p.cfg.BaseURL, vals.Encode())

	var resp scryVaultSearchResponse
	if err := p.client.GetJSON(ctx, u, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Status == "error" {
		return nil, fmt.Errorf("scryvault: %s", resp.Message)
	}

	cutoff := time.Now().AddDate(0, 0, -q.Window())
	out := make([]model.RawObservation, 0, len(resp.Listings))
	skipped := 0
	for _, l := range resp.Listings {
		price, err := strconv.ParseFloat(l.Price, 64)
		if err != nil {
			skipped++
			continue
		}
		listed, err := parseObservedAt(l.ListedAt)
		if err != nil {
			skipped++
			continue
		}
		if listed.Before(cutoff) {
			continue
		}
		out = append(out, model.RawObservation{
			Source:     p.Name(),
			Price:      price,
			Currency:   l.Currency,
			Condition:  l.Condition,
			ObservedAt: listed,
			ListingURL: l.URL,
		})
	}
	if skipped > 0 {
		zap.L().Debug("skipped malformed listings",
			zap.String("provider", p.Name()),
			zap.Int("skipped", skipped),
			zap.Int("kept", len(out)),
		)
	}
	return out, nil
}
