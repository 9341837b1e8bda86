/*
types.go - Core entity types of the wallet ledger.

DESIGN PRINCIPLES:
  1. Immutability of history: Transaction and LedgerEntry rows, once
     COMPLETED/appended, are never edited — only Wallet.Balance mutates,
     and only under a held row lock.
  2. Precision: every monetary field is a Money (see money.go).
  3. Type safety: AssetTypeID, WalletID, and OwnerID are distinct
     integer types so they cannot be mixed up at call sites.

SEE ALSO:
  - money.go: Money, the fixed-point decimal type
  - errors.go: error kinds raised when these invariants are violated
  - store.go: persistence interfaces over these types
*/
package ledger

import "time"

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AssetTypeID int64
type WalletID int64
type OwnerID int64

// Reserved negative owner ids for system wallets (spec §6).
const (
	OwnerTreasury OwnerID = -1
	OwnerMarketing OwnerID = -2
	OwnerRevenue   OwnerID = -3
)

// =============================================================================
// ASSET TYPE
// =============================================================================

type AssetType struct {
	ID          AssetTypeID
	Code        string // unique, <=50 chars, e.g. "COINS"
	DisplayName string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// =============================================================================
// WALLET
// =============================================================================

type SystemWalletKind string

const (
	SystemWalletNone      SystemWalletKind = ""
	SystemWalletTreasury  SystemWalletKind = "TREASURY"
	SystemWalletMarketing SystemWalletKind = "MARKETING"
	SystemWalletRevenue   SystemWalletKind = "REVENUE"
)

type Wallet struct {
	ID          WalletID
	OwnerID     OwnerID
	AssetTypeID AssetTypeID
	Balance     Money
	IsSystem    bool
	SystemKind  SystemWalletKind
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// =============================================================================
// TRANSACTION
// =============================================================================

type TransactionKind string

const (
	TxTopUp TransactionKind = "TOPUP"
	TxSpend TransactionKind = "SPEND"
	TxBonus TransactionKind = "BONUS"
)

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "PENDING"
	StatusCompleted TransactionStatus = "COMPLETED"
	StatusFailed    TransactionStatus = "FAILED"
)

type Transaction struct {
	ID             int64 // opaque internal id
	TransactionID  string // externally visible UUID
	IdempotencyKey string
	Kind           TransactionKind
	OwnerID        OwnerID
	AssetTypeID    AssetTypeID
	Amount         Money
	Status         TransactionStatus
	Metadata       map[string]string
	ErrorMessage   string
	CreatedAt      time.Time
	CompletedAt    *time.Time
}

// =============================================================================
// LEDGER ENTRY
// =============================================================================

type EntryType string

const (
	EntryDebit  EntryType = "DEBIT"
	EntryCredit EntryType = "CREDIT"
)

type LedgerEntry struct {
	ID             int64
	TransactionID  string
	WalletID       WalletID
	EntryType      EntryType
	SignedAmount   Money
	BalanceBefore  Money
	BalanceAfter   Money
	Description    string
	CreatedAt      time.Time
}
