package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/collectorvault/appraise/internal/model"
	"github.com/collectorvault/appraise/internal/resilience"
)

// CardLedgerDefaultRateLimit is the source's published per-minute ceiling.
const CardLedgerDefaultRateLimit = 10

// CardLedger fetches completed sales from the CardLedger API. For query
// windows longer than the history threshold it additionally pulls the
// monthly median time-series and merges those points in, the way the
// source's own charting does.
type CardLedger struct {
	cfg    AdapterConfig
	client *Client
	guard  *resilience.Guard
}

var _ Provider = (*CardLedger)(nil)

var cardLedgerGrades = map[string]string{
	"mint":      "10",
	"near mint": "9",
	"excellent": "7",
	"good":      "5",
	"poor":      "2",
}

// NewCardLedger creates the CardLedger adapter with its own guard.
func NewCardLedger(cfg AdapterConfig, client *Client, events resilience.Events) *CardLedger {
	return &CardLedger{
		cfg:    cfg,
		client: client,
		guard:  cfg.newGuard("cardledger", CardLedgerDefaultRateLimit, events),
	}
}

func (p *CardLedger) Name() string                   { return "cardledger" }
func (p *CardLedger) Available() bool                { return p.guard.Available() }
func (p *CardLedger) Status() resilience.GuardStatus { return p.guard.Status() }

// FetchComparables returns recent sales, merged with historical medians for
// long windows. Fails soft.
func (p *CardLedger) FetchComparables(ctx context.Context, q model.PriceQuery) []model.RawObservation {
	obs, _ := resilience.Execute(ctx, p.guard, func(ctx context.Context) ([]model.RawObservation, error) {
		current, err := p.sales(ctx, q)
		if err != nil {
			return nil, err
		}
		if q.Window() <= p.cfg.historyThreshold() {
			return current, nil
		}
		// Historical failure must not discard the current points we
		// already have.
		hist, err := p.history(ctx, q)
		if err != nil {
			zap.L().Warn("historical series unavailable, using current sales only",
				zap.String("provider", p.Name()),
				zap.Error(err),
			)
			return current, nil
		}
		return append(current, hist...), nil
	})
	return obs
}

type cardLedgerSale struct {
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Grade     string  `json:"grade"`
	SoldAt    string  `json:"sold_at"`
	Permalink string  `json:"permalink"`
}

type cardLedgerSalesResponse struct {
	Sales []cardLedgerSale `json:"sales"`
}

func (p *CardLedger) sales(ctx context.Context, q model.PriceQuery) ([]model.RawObservation, error) {
	vals := url.Values{}
	vals.Set("query", q.Keywords())
	vals.Set("window_days", strconv.Itoa(q.Window()))
	if g, ok := cardLedgerGrades[normalizeKey(q.Condition)]; ok {
		vals.Set("min_grade", g)
	}
	u := fmt.Sprintf("%s/v2/sales?%s", p.cfg.BaseURL, vals.Encode())

	var resp cardLedgerSalesResponse
	if err := p.client.GetJSON(ctx, u, p.authHeader(), &resp); err != nil {
		return nil, err
	}

	out := make([]model.RawObservation, 0, len(resp.Sales))
	skipped := 0
	for _, s := range resp.Sales {
		soldAt, err := parseObservedAt(s.SoldAt)
		if err != nil {
			skipped++
			continue
		}
		out = append(out, model.RawObservation{
			Source:     p.Name(),
			Price:      s.Amount,
			Currency:   s.Currency,
			Condition:  s.Grade,
			ObservedAt: soldAt,
			ListingURL: s.Permalink,
		})
	}
	if skipped > 0 {
		zap.L().Debug("skipped malformed sales",
			zap.String("provider", p.Name()),
			zap.Int("skipped", skipped),
		)
	}
	return out, nil
}

type cardLedgerHistoryPoint struct {
	Month    string  `json:"month"`
	Median   float64 `json:"median"`
	Currency string  `json:"currency"`
}

type cardLedgerHistoryResponse struct {
	Points []cardLedgerHistoryPoint `json:"points"`
}

func (p *CardLedger) history(ctx context.Context, q model.PriceQuery) ([]model.RawObservation, error) {
	months := q.Window() / 30
	vals := url.Values{}
	vals.Set("query", q.Keywords())
	vals.Set("months", strconv.Itoa(months))
	u := fmt.Sprintf("%s/v2/history?%s", p.cfg.BaseURL, vals.Encode())

	var resp cardLedgerHistoryResponse
	if err := p.client.GetJSON(ctx, u, p.authHeader(), &resp); err != nil {
		return nil, err
	}

	out := make([]model.RawObservation, 0, len(resp.Points))
	for _, pt := range resp.Points {
		// Month markers land on the first of the month.
		observed, err := time.Parse("2006-01", pt.Month)
		if err != nil {
			continue
		}
		out = append(out, model.RawObservation{
			Source:     p.Name(),
			Price:      pt.Median,
			Currency:   pt.Currency,
			ObservedAt: observed,
		})
	}
	return out, nil
}

func (p *CardLedger) authHeader() http.Header {
	if p.cfg.APIKey == "" {
		return nil
	}
	h := http.Header{}
	h.Set("Authorization", "Bearer "+p.cfg.APIKey)
	return h
}
