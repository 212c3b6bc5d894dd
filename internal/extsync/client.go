package extsync

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

// ProxyClient is the REST client for the external auction-source proxy. The
// proxy wraps the third-party site and exposes a one-shot snapshot fetch per
// listing.
type ProxyClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewProxyClient creates a proxy client.
//
// baseURL is the proxy root, e.g. "https://auction-proxy.internal".
func NewProxyClient(baseURL string, timeout time.Duration) *ProxyClient {
	if timeout <= 0 {
		timeout = DefaultSyncBudget
	}
	return &ProxyClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// apiSyncResult is the proxy's wire shape. The source still reports the
// current bid in fractional major units; it is converted to integer cents
// before leaving this package.
type apiSyncResult struct {
	ListingID    string  `json:"listing_id"`
	CurrentBid   float64 `json:"current_bid"`
	BidCount     int     `json:"bid_count"`
	WatcherCount int     `json:"watcher_count"`
	ViewCount    int     `json:"view_count"`
	Status       string  `json:"status"`
}

// Sync fetches a fresh snapshot for the external listing. Timeouts map to
// TimeoutError, other network failures to TransportError; both are retryable
// by the poll cycle.
func (c *ProxyClient) Sync(ctx context.Context, externalID string) (domain.ExternalSyncResult, error) {
	path := fmt.Sprintf("%s/listings/%s/sync", c.baseURL, url.PathEscape(externalID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return domain.ExternalSyncResult{}, fmt.Errorf("extsync: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.ExternalSyncResult{}, &domain.TimeoutError{Op: "sync " + externalID, Budget: c.httpClient.Timeout}
		}
		return domain.ExternalSyncResult{}, &domain.TransportError{Op: "sync " + externalID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.ExternalSyncResult{}, fmt.Errorf("extsync: listing %s: %w", externalID, domain.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.ExternalSyncResult{}, &domain.TransportError{
			Op:  "sync " + externalID,
			Err: fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.ExternalSyncResult{}, &domain.TransportError{Op: "read sync body", Err: err}
	}

	var api apiSyncResult
	if err := json.Unmarshal(body, &api); err != nil {
		return domain.ExternalSyncResult{}, &domain.DataError{Table: "external_sync", Err: err}
	}

	return domain.ExternalSyncResult{
		ListingID:       api.ListingID,
		CurrentBidCents: domain.ToMinorUnits(api.CurrentBid),
		BidCount:        api.BidCount,
		WatcherCount:    api.WatcherCount,
		ViewCount:       api.ViewCount,
		Status:          api.Status,
		SyncedAt:        time.Now().UTC(),
	}, nil
}
