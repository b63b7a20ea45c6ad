package entities

// TxStatus is the chain-side state of a transaction
type TxStatus string

const (
	TxStatusConfirmed TxStatus = "confirmed"
	TxStatusPending   TxStatus = "pending"
	TxStatusFailed    TxStatus = "failed"
)

// WalletEvent is a notification pushed by the wallet gateway
type WalletEvent struct {
	Type        string   `json:"type"`
	Account     string   `json:"account,omitempty"`
	TxReference string   `json:"txReference,omitempty"`
	Status      TxStatus `json:"status,omitempty"`
}

// Wallet event types
const (
	WalletEventAccountsChanged = "accountsChanged"
	WalletEventChainChanged    = "chainChanged"
	WalletEventTransaction     = "transaction"
)
