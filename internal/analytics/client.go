// Package analytics fetches precomputed market analytics snapshots and
// derives a trading signal from them.
package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/paddockhq/marketsync/internal/domain"
)

// Client is the REST client for the analytics query collaborator.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an analytics client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// apiSnapshot is the analytics service wire shape. Monetary fields arrive in
// integer cents; optional metrics are nullable.
type apiSnapshot struct {
	ListingID string `json:"listing_id"`
	Timeframe string `json:"timeframe"`
	Price     struct {
		Current   *int64   `json:"current"`
		VWAP      *int64   `json:"vwap"`
		TWAP      *int64   `json:"twap"`
		High      *int64   `json:"high"`
		Low       *int64   `json:"low"`
		ChangePct *float64 `json:"change_pct"`
	} `json:"price"`
	Volume struct {
		TotalQuantity int64 `json:"total_quantity"`
		TradeCount    int   `json:"trade_count"`
	} `json:"volume"`
	Risk struct {
		Volatility *float64 `json:"volatility"`
	} `json:"risk"`
	Momentum struct {
		MomentumPct *float64 `json:"momentum_pct"`
		RSI         *float64 `json:"rsi"`
	} `json:"momentum"`
	Liquidity struct {
		Spread *int64 `json:"spread"`
		Depth  int64  `json:"depth"`
		Impact []struct {
			Quantity  int64   `json:"quantity"`
			ImpactBps float64 `json:"impact_bps"`
		} `json:"impact"`
	} `json:"liquidity"`
	AsOf time.Time `json:"as_of"`
}

// GetAnalytics fetches the snapshot for (listing, timeframe). Not-found and
// transport failures are distinguishable via errors.Is/As.
func (c *Client) GetAnalytics(ctx context.Context, listingID string, tf domain.Timeframe) (domain.AnalyticsSnapshot, error) {
	if !tf.Valid() {
		return domain.AnalyticsSnapshot{}, fmt.Errorf("analytics: unsupported timeframe %q", tf)
	}

	params := url.Values{}
	params.Set("timeframe", string(tf))
	path := fmt.Sprintf("%s/analytics/%s?%s", c.baseURL, url.PathEscape(listingID), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return domain.AnalyticsSnapshot{}, fmt.Errorf("analytics: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.AnalyticsSnapshot{}, &domain.TimeoutError{Op: "analytics " + listingID, Budget: c.httpClient.Timeout}
		}
		return domain.AnalyticsSnapshot{}, &domain.TransportError{Op: "analytics " + listingID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.AnalyticsSnapshot{}, fmt.Errorf("analytics: listing %s: %w", listingID, domain.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.AnalyticsSnapshot{}, &domain.TransportError{
			Op:  "analytics " + listingID,
			Err: fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.AnalyticsSnapshot{}, &domain.TransportError{Op: "read analytics body", Err: err}
	}

	var api apiSnapshot
	if err := json.Unmarshal(body, &api); err != nil {
		return domain.AnalyticsSnapshot{}, &domain.DataError{Table: "analytics", Err: err}
	}

	return api.toDomain(), nil
}

func (a apiSnapshot) toDomain() domain.AnalyticsSnapshot {
	snap := domain.AnalyticsSnapshot{
		ListingID: a.ListingID,
		Timeframe: domain.Timeframe(a.Timeframe),
		Price: domain.PriceMetrics{
			CurrentCents: a.Price.Current,
			VWAPCents:    a.Price.VWAP,
			TWAPCents:    a.Price.TWAP,
			HighCents:    a.Price.High,
			LowCents:     a.Price.Low,
			ChangePct:    a.Price.ChangePct,
		},
		Volume: domain.VolumeMetrics{
			TotalQuantity: a.Volume.TotalQuantity,
			TradeCount:    a.Volume.TradeCount,
		},
		Risk: domain.RiskMetrics{
			Volatility: a.Risk.Volatility,
		},
		Momentum: domain.MomentumMetrics{
			MomentumPct: a.Momentum.MomentumPct,
			RSI:         a.Momentum.RSI,
		},
		Liquidity: domain.LiquidityMetrics{
			SpreadCents: a.Liquidity.Spread,
			Depth:       a.Liquidity.Depth,
		},
		AsOf: a.AsOf,
	}
	for i, tier := range a.Liquidity.Impact {
		if i >= len(snap.Liquidity.Impact) {
			break
		}
		snap.Liquidity.Impact[i] = domain.ImpactTier{Quantity: tier.Quantity, ImpactBps: tier.ImpactBps}
	}
	return snap
}
