package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gambler/settlement/domain/entities"
	"gambler/settlement/domain/errs"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// OddsFeedClient reads bookmaker prices from the odds provider over HTTP
type OddsFeedClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewOddsFeedClient creates a client for the provider at baseURL
func NewOddsFeedClient(baseURL string, timeout time.Duration) *OddsFeedClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &OddsFeedClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type oddsFeedResponse struct {
	Bookmakers []struct {
		Key        string    `json:"key"`
		LastUpdate time.Time `json:"last_update"`
		Outcomes   []struct {
			Name  string          `json:"name"`
			Price decimal.Decimal `json:"price"`
		} `json:"outcomes"`
	} `json:"bookmakers"`
}

// FetchQuotes returns one raw quote per bookmaker and outcome
func (c *OddsFeedClient) FetchQuotes(ctx context.Context, eventID string) ([]entities.RawQuote, error) {
	endpoint := fmt.Sprintf("%s/events/%s/odds", c.baseURL, url.PathEscape(eventID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build odds request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.CodeUpstreamTimeout, err, "odds feed unreachable")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errs.NotFound("no odds for event %s", eventID)
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, errs.Newf(errs.CodeUpstreamTimeout, "odds feed returned %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("odds feed returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload oddsFeedResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode odds feed response: %w", err)
	}

	var quotes []entities.RawQuote
	for _, bookmaker := range payload.Bookmakers {
		ts := bookmaker.LastUpdate
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		for _, outcome := range bookmaker.Outcomes {
			quotes = append(quotes, entities.RawQuote{
				Source:      bookmaker.Key,
				OutcomeName: outcome.Name,
				Price:       outcome.Price,
				Timestamp:   ts,
			})
		}
	}

	log.WithFields(log.Fields{
		"eventId":    eventID,
		"bookmakers": len(payload.Bookmakers),
		"quotes":     len(quotes),
	}).Debug("Fetched odds from feed")

	return quotes, nil
}
