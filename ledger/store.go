/*
store.go - Persistence interfaces for the wallet ledger.

PURPOSE:
  Defines the boundary between the transaction engine and the database.
  store/sqlite (and store/memory, for tests) backs all four interfaces
  and adds WithTx so the engine can run the whole eight-step protocol inside
  one store-level transactional scope.

APPEND-ONLY CONTRACT (Transaction, LedgerEntry):
  - LedgerRepository has no Update/Delete — entries are immutable once
    appended.
  - TransactionRepository's only post-create mutation is SetStatus,
    which the state machine allows exactly once (PENDING -> terminal).

LOCKING CONTRACT (Wallet):
  - GetWithLock acquires an exclusive row lock held until the enclosing
    scope commits or rolls back. It must block a concurrent locker of
    the same row rather than skip it (no NOWAIT/SKIP LOCKED).

SEE ALSO:
  - engine (package): the only caller that should use GetWithLock
  - store/sqlite: the concrete implementation
*/
package ledger

import "context"

// =============================================================================
// ASSET REPOSITORY
// =============================================================================

type AssetRepository interface {
	GetByID(ctx context.Context, id AssetTypeID) (*AssetType, error)
	GetByCode(ctx context.Context, code string) (*AssetType, error)
	Create(ctx context.Context, code, displayName string) (*AssetType, error)
}

// =============================================================================
// WALLET REPOSITORY
// =============================================================================

type WalletRepository interface {
	GetByID(ctx context.Context, id WalletID) (*Wallet, error)
	GetByOwnerAsset(ctx context.Context, owner OwnerID, asset AssetTypeID) (*Wallet, error)

	// GetWithLock acquires an exclusive lock on the wallet row held
	// until the enclosing scope ends. Returns (nil, nil) if the row
	// does not exist — no lock is taken in that case.
	GetWithLock(ctx context.Context, owner OwnerID, asset AssetTypeID) (*Wallet, error)

	// Create inserts a wallet at balance zero. The caller must re-fetch
	// with GetWithLock in the same scope to obtain a locked handle.
	Create(ctx context.Context, owner OwnerID, asset AssetTypeID, isSystem bool, kind SystemWalletKind) (*Wallet, error)

	// ProvisionSystemWallet creates a system wallet (is_system=true) for
	// owner/asset ahead of any movement. Movements never lazily create
	// system wallets — §4.E requires the system wallet to already
	// exist, so this is an admin/bootstrap-time operation only.
	ProvisionSystemWallet(ctx context.Context, owner OwnerID, asset AssetTypeID, kind SystemWalletKind) (*Wallet, error)

	// SetBalance mutates the balance of a wallet already locked in this
	// scope. Undefined outside a scope holding the lock.
	SetBalance(ctx context.Context, id WalletID, newBalance Money) error

	ListByOwner(ctx context.Context, owner OwnerID) ([]Wallet, error)
}

// =============================================================================
// TRANSACTION REPOSITORY
// =============================================================================

type TransactionRepository interface {
	Create(ctx context.Context, transactionID, idempotencyKey string, kind TransactionKind, owner OwnerID, asset AssetTypeID, amount Money, metadata map[string]string) (*Transaction, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*Transaction, error)
	GetByTransactionID(ctx context.Context, txID string) (*Transaction, error)
	SetStatus(ctx context.Context, txID string, status TransactionStatus, errMessage string) error
}

// =============================================================================
// LEDGER REPOSITORY
// =============================================================================

type LedgerRepository interface {
	Append(ctx context.Context, transactionID string, walletID WalletID, entryType EntryType, signedAmount, balanceBefore, balanceAfter Money, description string) (*LedgerEntry, error)
	ListByTransaction(ctx context.Context, transactionID string) ([]LedgerEntry, error)
}

// =============================================================================
// SCOPE - one store-level transaction, exposing all four repositories
// =============================================================================

// Scope is the set of repositories valid for the lifetime of one
// store-level transaction (one "enclosing transactional scope" in
// spec terms).
type Scope interface {
	Assets() AssetRepository
	Wallets() WalletRepository
	Transactions() TransactionRepository
	Ledger() LedgerRepository
}

// Store is the top-level handle the boundary adapter holds. WithTx runs
// fn inside one new scope: if fn returns nil the scope commits, any
// other return rolls it back. WithTx itself never raises
// ErrIntegrityViolation; that can only come from operations performed
// through the Scope passed to fn.
type Store interface {
	// Non-transactional reads, used outside the movement protocol
	// (e.g. the balance boundary operation).
	Scope

	WithTx(ctx context.Context, fn func(Scope) error) error

	// Ping verifies the store is reachable, for the health endpoint.
	Ping(ctx context.Context) error
}
