package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gambler/settlement/domain/entities"
	"gambler/settlement/domain/errs"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// WalletClient talks to the wallet gateway that fronts the player's wallet and the chain.
// Requests go over HTTP; notifications arrive on a WebSocket at /events.
type WalletClient struct {
	baseURL        string
	httpClient     *http.Client
	dialer         *websocket.Dialer
	reconnectDelay time.Duration
}

// NewWalletClient creates a gateway client for baseURL
func NewWalletClient(baseURL string, timeout time.Duration) *WalletClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WalletClient{
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     &http.Client{Timeout: timeout},
		dialer:         websocket.DefaultDialer,
		reconnectDelay: 3 * time.Second,
	}
}

type accountsResponse struct {
	Accounts []string `json:"accounts"`
}

type sendFundsRequest struct {
	Destination string `json:"destination"`
	Amount      int64  `json:"amount"`
}

type sendFundsResponse struct {
	TxReference string `json:"txReference"`
}

type balanceResponse struct {
	Balance int64 `json:"balance"`
}

type transactionResponse struct {
	Status entities.TxStatus `json:"status"`
}

// GetAccounts returns the accounts already authorized
func (c *WalletClient) GetAccounts(ctx context.Context) ([]string, error) {
	var resp accountsResponse
	if err := c.do(ctx, http.MethodGet, "/accounts", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Accounts, nil
}

// RequestAccounts asks the wallet to authorize accounts
func (c *WalletClient) RequestAccounts(ctx context.Context) ([]string, error) {
	var resp accountsResponse
	if err := c.do(ctx, http.MethodPost, "/accounts/request", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Accounts, nil
}

// SendFunds transfers amount minor units to destination
func (c *WalletClient) SendFunds(ctx context.Context, destination string, amount int64) (string, error) {
	var resp sendFundsResponse
	req := sendFundsRequest{Destination: destination, Amount: amount}
	if err := c.do(ctx, http.MethodPost, "/transfers", req, &resp); err != nil {
		return "", err
	}
	if resp.TxReference == "" {
		return "", fmt.Errorf("wallet gateway returned no transaction reference")
	}
	return resp.TxReference, nil
}

// GetBalance returns the balance of account in minor units
func (c *WalletClient) GetBalance(ctx context.Context, account string) (int64, error) {
	var resp balanceResponse
	if err := c.do(ctx, http.MethodGet, "/balances/"+url.PathEscape(account), nil, &resp); err != nil {
		return 0, err
	}
	return resp.Balance, nil
}

// ConfirmTransaction reports the chain status of txReference. Unknown transactions are pending.
func (c *WalletClient) ConfirmTransaction(ctx context.Context, txReference string) (entities.TxStatus, error) {
	var resp transactionResponse
	err := c.do(ctx, http.MethodGet, "/transactions/"+url.PathEscape(txReference), nil, &resp)
	if errs.Is(err, errs.CodeNotFound) {
		return entities.TxStatusPending, nil
	}
	if err != nil {
		return "", err
	}

	switch resp.Status {
	case entities.TxStatusConfirmed, entities.TxStatusPending, entities.TxStatusFailed:
		return resp.Status, nil
	default:
		return "", fmt.Errorf("wallet gateway returned unknown transaction status %q", resp.Status)
	}
}

// SubscribeToEvents streams gateway notifications until ctx is done, reconnecting on failure
func (c *WalletClient) SubscribeToEvents(ctx context.Context) (<-chan entities.WalletEvent, error) {
	wsURL, err := c.eventsURL()
	if err != nil {
		return nil, err
	}

	out := make(chan entities.WalletEvent, 64)
	go func() {
		defer close(out)
		for {
			if err := c.listen(ctx, wsURL, out); err != nil {
				log.WithError(err).Warn("Wallet event stream closed")
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.reconnectDelay):
			}
		}
	}()
	return out, nil
}

func (c *WalletClient) eventsURL() (string, error) {
	u, err := url.Parse(c.baseURL + "/events")
	if err != nil {
		return "", fmt.Errorf("invalid wallet gateway URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String(), nil
}

func (c *WalletClient) listen(ctx context.Context, wsURL string, out chan<- entities.WalletEvent) error {
	conn, _, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// unblock ReadMessage when ctx ends
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	log.WithField("url", wsURL).Info("Connected to wallet event stream")
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		var event entities.WalletEvent
		if err := json.Unmarshal(message, &event); err != nil {
			log.WithError(err).Warn("Ignoring malformed wallet event")
			continue
		}

		select {
		case out <- event:
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *WalletClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode wallet request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build wallet request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return errs.Wrap(errs.CodeUpstreamTimeout, err, "wallet gateway unreachable")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errs.NotFound("wallet gateway has no %s", path)
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return errs.Newf(errs.CodeUpstreamTimeout, "wallet gateway returned %d for %s", resp.StatusCode, path)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("wallet gateway returned %d for %s: %s", resp.StatusCode, path, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode wallet response: %w", err)
	}
	return nil
}
