package infrastructure

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gambler/settlement/domain/entities"
	"gambler/settlement/domain/errs"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWalletGateway(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	mux := http.NewServeMux()
	mux.HandleFunc("/accounts", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"accounts": []string{"0xplayer"}})
	})
	mux.HandleFunc("/transfers", func(w http.ResponseWriter, r *http.Request) {
		var req sendFundsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Amount > 1_000_000 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"txReference": "0xtransfer-" + req.Destination})
	})
	mux.HandleFunc("/balances/0xplayer", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"balance": 4200})
	})
	mux.HandleFunc("/transactions/0xconfirmed", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "confirmed"})
	})
	mux.HandleFunc("/transactions/0xweird", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "reorged"})
	})
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(entities.WalletEvent{Type: entities.WalletEventTransaction, TxReference: "0xabc", Status: entities.TxStatusConfirmed})
		_ = conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		_ = conn.WriteJSON(entities.WalletEvent{Type: entities.WalletEventAccountsChanged, Account: "0xnew"})
		// hold the connection until the client leaves
		_, _, _ = conn.ReadMessage()
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestWalletClient_Requests(t *testing.T) {
	server := newWalletGateway(t)
	client := NewWalletClient(server.URL, time.Second)
	ctx := context.Background()

	accounts, err := client.GetAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"0xplayer"}, accounts)

	ref, err := client.SendFunds(ctx, "0xdest", 500)
	require.NoError(t, err)
	assert.Equal(t, "0xtransfer-0xdest", ref)

	_, err = client.SendFunds(ctx, "0xdest", 2_000_000)
	assert.True(t, errs.Is(err, errs.CodeUpstreamTimeout))

	balance, err := client.GetBalance(ctx, "0xplayer")
	require.NoError(t, err)
	assert.Equal(t, int64(4200), balance)

	status, err := client.ConfirmTransaction(ctx, "0xconfirmed")
	require.NoError(t, err)
	assert.Equal(t, entities.TxStatusConfirmed, status)

	status, err = client.ConfirmTransaction(ctx, "0xunknown")
	require.NoError(t, err)
	assert.Equal(t, entities.TxStatusPending, status)

	_, err = client.ConfirmTransaction(ctx, "0xweird")
	assert.Error(t, err)
}

func TestWalletClient_SubscribeToEvents(t *testing.T) {
	server := newWalletGateway(t)
	client := NewWalletClient(server.URL, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := client.SubscribeToEvents(ctx)
	require.NoError(t, err)

	var received []entities.WalletEvent
	timeout := time.After(2 * time.Second)
	for len(received) < 2 {
		select {
		case event := <-stream:
			received = append(received, event)
		case <-timeout:
			t.Fatal("timed out waiting for wallet events")
		}
	}

	assert.Equal(t, "0xabc", received[0].TxReference)
	assert.Equal(t, entities.TxStatusConfirmed, received[0].Status)
	assert.Equal(t, "0xnew", received[1].Account)

	cancel()
	for range stream {
	}
}
