package provider

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/collectorvault/appraise/internal/model"
	"github.com/collectorvault/appraise/internal/resilience"
)

// GavelBidDefaultRateLimit is the source's published per-minute ceiling.
const GavelBidDefaultRateLimit = 15

// GavelBid fetches closed auction results from the GavelBid API. The source
// has no condition filter; condition arrives as a free-text lot note.
type GavelBid struct {
	cfg    AdapterConfig
	client *Client
	guard  *resilience.Guard
}

var _ Provider = (*GavelBid)(nil)

// NewGavelBid creates the GavelBid adapter with its own guard.
func NewGavelBid(cfg AdapterConfig, client *Client, events resilience.Events) *GavelBid {
	return &GavelBid{
		cfg:    cfg,
		client: client,
		guard:  cfg.newGuard("gavelbid", GavelBidDefaultRateLimit, events),
	}
}

func (p *GavelBid) Name() string                   { return "gavelbid" }
func (p *GavelBid) Available() bool                { return p.guard.Available() }
func (p *GavelBid) Status() resilience.GuardStatus { return p.guard.Status() }

// FetchComparables returns closed auction hammer prices. Fails soft.
func (p *GavelBid) FetchComparables(ctx context.Context, q model.PriceQuery) []model.RawObservation {
	obs, _ := resilience.Execute(ctx, p.guard, func(ctx context.Context) ([]model.RawObservation, error) {
		return p.closedAuctions(ctx, q)
	})
	return obs
}

type gavelBidResult struct {
	HammerPriceCents int64  `json:"hammer_price_cents"`
	Currency         string `json:"currency"`
	ConditionNote    string `json:"condition_note"`
	ClosedAt         string `json:"closed_at"`
	LotURL           string `json:"lot_url"`
}

type gavelBidResponse struct {
	Results []gavelBidResult `json:"results"`
}

func (p *GavelBid) closedAuctions(ctx context.Context, q model.PriceQuery) ([]model.RawObservation, error) {
	since := time.Now().AddDate(0, 0, -q.Window()).Format("2006-01-02")
	vals := url.Values{}
	vals.Set("search", q.Keywords())
	vals.Set("since", since)
	if p.cfg.APIKey != "" {
		vals.Set("api_key", p.cfg.APIKey)
	}
	u := fmt.Sprintf("%s/api/auctions/closed?%s", p.cfg.BaseURL, vals.Encode())

	var resp gavelBidResponse
	if err := p.client.GetJSON(ctx, u, nil, &resp); err != nil {
		return nil, err
	}

	out := make([]model.RawObservation, 0, len(resp.Results))
	skipped := 0
	for _, r := range resp.Results {
		closedAt, err := parseObservedAt(r.ClosedAt)
		if err != nil {
			skipped++
			continue
		}
		out = append(out, model.RawObservation{
			Source:     p.Name(),
			Price:      float64(r.HammerPriceCents) / 100,
			Currency:   r.Currency,
			Condition:  r.ConditionNote,
			ObservedAt: closedAt,
			ListingURL: r.LotURL,
		})
	}
	if skipped > 0 {
		zap.L().Debug("skipped malformed auction results",
			zap.String("provider", p.Name()),
			zap.Int("skipped", skipped),
		)
	}
	return out, nil
}
