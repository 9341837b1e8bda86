/*
dto.go - Data Transfer Objects for the wallet ledger API.

NAMING CONVENTION:
  - *Request: request body types from clients
  - *DTO / *Response: response types returned to clients

VALIDATION:
  Validation happens in handlers, not in DTOs. DTOs are pure data
  carriers.

SEE ALSO:
  - handlers.go: uses these types
  - ledger/types.go: the domain types these wrap
*/
package api

import (
	"time"

	"github.com/warp/wallet-ledger/ledger"
)

// =============================================================================
// REQUESTS
// =============================================================================

// MovementRequest is the body of POST /transactions/{topup,bonus,spend}.
type MovementRequest struct {
	UserID         int64             `json:"user_id"`
	AssetType      string            `json:"asset_type"`
	Amount         string            `json:"amount"`
	IdempotencyKey string            `json:"idempotency_key"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// =============================================================================
// RESPONSES
// =============================================================================

// TransactionDTO represents a transaction in API responses.
type TransactionDTO struct {
	TransactionID   string            `json:"transaction_id"`
	IdempotencyKey  string            `json:"idempotency_key"`
	TransactionType string            `json:"transaction_type"`
	UserID          int64             `json:"user_id"`
	AssetTypeID     int64             `json:"asset_type_id"`
	Amount          string            `json:"amount"`
	Status          string            `json:"status"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	ErrorMessage    string            `json:"error_message,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
}

// LedgerEntryDTO represents one posted ledger entry.
type LedgerEntryDTO struct {
	WalletID      int64     `json:"wallet_id"`
	EntryType     string    `json:"entry_type"`
	Amount        string    `json:"amount"`
	BalanceBefore string    `json:"balance_before"`
	BalanceAfter  string    `json:"balance_after"`
	CreatedAt     time.Time `json:"created_at"`
}

// MovementResponse is returned by every movement endpoint.
type MovementResponse struct {
	Transaction TransactionDTO   `json:"transaction"`
	Entries     []LedgerEntryDTO `json:"ledger_entries"`
}

// BalanceDTO is returned by GET /wallets/{user_id}/balance.
type BalanceDTO struct {
	UserID        int64  `json:"user_id"`
	AssetTypeID   int64  `json:"asset_type_id"`
	AssetTypeCode string `json:"asset_type_code"`
	Balance       string `json:"balance"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Details any    `json:"details,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Project string `json:"project"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toTransactionDTO(t ledger.Transaction) TransactionDTO {
	return TransactionDTO{
		TransactionID:   t.TransactionID,
		IdempotencyKey:  t.IdempotencyKey,
		TransactionType: string(t.Kind),
		UserID:          int64(t.OwnerID),
		AssetTypeID:     int64(t.AssetTypeID),
		Amount:          t.Amount.String(),
		Status:          string(t.Status),
		Metadata:        t.Metadata,
		ErrorMessage:    t.ErrorMessage,
		CreatedAt:       t.CreatedAt,
		CompletedAt:     t.CompletedAt,
	}
}

func toLedgerEntryDTOs(entries []ledger.LedgerEntry) []LedgerEntryDTO {
	out := make([]LedgerEntryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, LedgerEntryDTO{
			WalletID:      int64(e.WalletID),
			EntryType:     string(e.EntryType),
			Amount:        e.SignedAmount.String(),
			BalanceBefore: e.BalanceBefore.String(),
			BalanceAfter:  e.BalanceAfter.String(),
			CreatedAt:     e.CreatedAt,
		})
	}
	return out
}
