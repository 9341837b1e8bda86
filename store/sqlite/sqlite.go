/*
Package sqlite provides a SQLite-backed implementation of ledger.Store.

PURPOSE:
  Implements AssetRepository, WalletRepository, TransactionRepository,
  and LedgerRepository, plus WithTx, using SQLite.

KEY TABLES:
  asset_types:     Reference table of asset codes (COINS, GEMS, ...)
  wallets:         One row per (owner_id, asset_type_id), balance as a TEXT decimal with 8 fractional digits
  transactions:    Append-only transaction log, idempotency_key UNIQUE
  ledger_entries:  Append-only double-entry postings, two rows per transaction

ROW LOCKING:
  SQLite has no SELECT ... FOR UPDATE. This store realizes the "lock and
  hold for the scope" contract with a single process-wide sync.Mutex:
  WithTx takes it for the whole scope, so GetWithLock needs no separate
  locking of its own - by the time any code is running inside a scope,
  it already holds exclusive access to every wallet row. This mirrors
  the teacher's own choice for the same reason (single SQLite writer);
  a PostgreSQL port would drop the mutex and use a real
  "SELECT ... FOR UPDATE" in GetWithLock instead.

WAL MODE:
  Opened with WAL for reader concurrency; writes still serialize behind
  the mutex above since SQLite itself allows only one writer.

IDEMPOTENCY / INTEGRITY:
  The transactions table has a UNIQUE constraint on both transaction_id
  and idempotency_key. A conflict on either surfaces to the engine as
  ledger.ErrIntegrityViolation, never a raw SQLite error.

SEE ALSO:
  - ledger/store.go: interface definitions
  - ledger/errors.go: ErrIntegrityViolation, ErrNotFound
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/wallet-ledger/ledger"
)

// Store implements ledger.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New opens (and migrates) a SQLite-backed store. Use ":memory:" for a
// fully in-memory database, typically in tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" opens its own private database, so
	// the pool is held to one connection to keep all callers on the
	// migrated one.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database is reachable, for the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS asset_types (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		code          TEXT NOT NULL UNIQUE,
		display_name  TEXT NOT NULL,
		is_active     INTEGER NOT NULL DEFAULT 1,
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS wallets (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id        INTEGER NOT NULL,
		asset_type_id   INTEGER NOT NULL REFERENCES asset_types(id),
		balance         TEXT NOT NULL DEFAULT '0.00000000',
		is_system       INTEGER NOT NULL DEFAULT 0,
		system_kind     TEXT NOT NULL DEFAULT '',
		created_at      TEXT NOT NULL,
		updated_at      TEXT NOT NULL,
		UNIQUE(owner_id, asset_type_id),
		CHECK (balance >= '0' OR is_system = 1)
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		transaction_id   TEXT NOT NULL UNIQUE,
		idempotency_key  TEXT NOT NULL UNIQUE,
		kind             TEXT NOT NULL CHECK (kind IN ('TOPUP','SPEND','BONUS')),
		owner_id         INTEGER NOT NULL,
		asset_type_id    INTEGER NOT NULL REFERENCES asset_types(id),
		amount           TEXT NOT NULL,
		status           TEXT NOT NULL CHECK (status IN ('PENDING','COMPLETED','FAILED')),
		metadata_json    TEXT NOT NULL DEFAULT '{}',
		error_message    TEXT NOT NULL DEFAULT '',
		created_at       TEXT NOT NULL,
		completed_at     TEXT
	);

	CREATE TABLE IF NOT EXISTS ledger_entries (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		transaction_id  TEXT NOT NULL REFERENCES transactions(transaction_id),
		wallet_id       INTEGER NOT NULL REFERENCES wallets(id),
		entry_type      TEXT NOT NULL CHECK (entry_type IN ('DEBIT','CREDIT')),
		signed_amount   TEXT NOT NULL,
		balance_before  TEXT NOT NULL,
		balance_after   TEXT NOT NULL,
		description     TEXT NOT NULL DEFAULT '',
		created_at      TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ledger_entries_transaction ON ledger_entries(transaction_id, wallet_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_wallets_owner ON wallets(owner_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SCOPE IMPLEMENTATIONS (shared between the top-level Store reads and
// the transactional scope; both drive a *sql.DB/*sql.Tx via execer)
// =============================================================================

// execer is the subset of *sql.DB / *sql.Tx this store needs.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) Assets() ledger.AssetRepository             { return &assetRepo{db: s.db} }
func (s *Store) Wallets() ledger.WalletRepository            { return &walletRepo{db: s.db} }
func (s *Store) Transactions() ledger.TransactionRepository { return &transactionRepo{db: s.db} }
func (s *Store) Ledger() ledger.LedgerRepository             { return &ledgerRepo{db: s.db} }

// WithTx holds the store-wide mutex for the duration of the scope: see
// the package doc comment for why a single mutex stands in for
// SELECT ... FOR UPDATE on SQLite.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Scope) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	scope := &txScope{tx: sqlTx}
	if err := fn(scope); err != nil {
		return err
	}
	return sqlTx.Commit()
}

type txScope struct {
	tx *sql.Tx
}

func (t *txScope) Assets() ledger.AssetRepository             { return &assetRepo{db: t.tx} }
func (t *txScope) Wallets() ledger.WalletRepository            { return &walletRepo{db: t.tx} }
func (t *txScope) Transactions() ledger.TransactionRepository { return &transactionRepo{db: t.tx} }
func (t *txScope) Ledger() ledger.LedgerRepository             { return &ledgerRepo{db: t.tx} }

// =============================================================================
// ASSET REPOSITORY
// =============================================================================

type assetRepo struct{ db execer }

const assetColumns = `id, code, display_name, is_active, created_at, updated_at`

func (r *assetRepo) GetByID(ctx context.Context, id ledger.AssetTypeID) (*ledger.AssetType, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM asset_types WHERE id = ?`, int64(id))
	return scanAssetType(row)
}

func (r *assetRepo) GetByCode(ctx context.Context, code string) (*ledger.AssetType, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM asset_types WHERE code = ?`, code)
	return scanAssetType(row)
}

func (r *assetRepo) Create(ctx context.Context, code, displayName string) (*ledger.AssetType, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `INSERT INTO asset_types (code, display_name, is_active, created_at, updated_at) VALUES (?, ?, 1, ?, ?)`,
		code, displayName, formatTime(now), formatTime(now))
	if err != nil {
		return nil, classifyError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading asset type id: %w", err)
	}
	return &ledger.AssetType{ID: ledger.AssetTypeID(id), Code: code, DisplayName: displayName, Active: true, CreatedAt: now, UpdatedAt: now}, nil
}

func scanAssetType(row *sql.Row) (*ledger.AssetType, error) {
	var a ledger.AssetType
	var createdAt, updatedAt string
	var active int
	if err := row.Scan(&a.ID, &a.Code, &a.DisplayName, &active, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ledger.ErrNotFound
		}
		return nil, fmt.Errorf("scanning asset type: %w", err)
	}
	a.Active = active != 0
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return &a, nil
}

// =============================================================================
// WALLET REPOSITORY
// =============================================================================

type walletRepo struct{ db execer }

const walletColumns = `id, owner_id, asset_type_id, balance, is_system, system_kind, created_at, updated_at`

func (r *walletRepo) GetByID(ctx context.Context, id ledger.WalletID) (*ledger.Wallet, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = ?`, int64(id))
	return scanWallet(row)
}

func (r *walletRepo) GetByOwnerAsset(ctx context.Context, owner ledger.OwnerID, asset ledger.AssetTypeID) (*ledger.Wallet, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+walletColumns+` FROM wallets WHERE owner_id = ? AND asset_type_id = ?`, int64(owner), int64(asset))
	return scanWallet(row)
}

// GetWithLock performs the same read as GetByOwnerAsset. The exclusive
// access guarantee comes from WithTx holding the store-wide mutex for
// the whole scope, not from anything done here - see the package doc
// comment.
func (r *walletRepo) GetWithLock(ctx context.Context, owner ledger.OwnerID, asset ledger.AssetTypeID) (*ledger.Wallet, error) {
	w, err := r.GetByOwnerAsset(ctx, owner, asset)
	if err == ledger.ErrNotFound {
		return nil, nil
	}
	return w, err
}

func (r *walletRepo) Create(ctx context.Context, owner ledger.OwnerID, asset ledger.AssetTypeID, isSystem bool, kind ledger.SystemWalletKind) (*ledger.Wallet, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO wallets (owner_id, asset_type_id, balance, is_system, system_kind, created_at, updated_at) VALUES (?, ?, '0.00000000', ?, ?, ?, ?)`,
		int64(owner), int64(asset), boolToInt(isSystem), string(kind), formatTime(now), formatTime(now))
	if err != nil {
		return nil, classifyError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading wallet id: %w", err)
	}
	return &ledger.Wallet{
		ID: ledger.WalletID(id), OwnerID: owner, AssetTypeID: asset,
		Balance: ledger.Zero, IsSystem: isSystem, SystemKind: kind,
		CreatedAt: now, UpdatedAt: now,
	}, nil
}

func (r *walletRepo) ProvisionSystemWallet(ctx context.Context, owner ledger.OwnerID, asset ledger.AssetTypeID, kind ledger.SystemWalletKind) (*ledger.Wallet, error) {
	return r.Create(ctx, owner, asset, true, kind)
}

func (r *walletRepo) SetBalance(ctx context.Context, id ledger.WalletID, newBalance ledger.Money) error {
	_, err := r.db.ExecContext(ctx, `UPDATE wallets SET balance = ?, updated_at = ? WHERE id = ?`,
		newBalance.String(), formatTime(time.Now().UTC()), int64(id))
	if err != nil {
		return classifyError(err)
	}
	return nil
}

func (r *walletRepo) ListByOwner(ctx context.Context, owner ledger.OwnerID) ([]ledger.Wallet, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+walletColumns+` FROM wallets WHERE owner_id = ? ORDER BY asset_type_id`, int64(owner))
	if err != nil {
		return nil, fmt.Errorf("listing wallets: %w", err)
	}
	defer rows.Close()

	var out []ledger.Wallet
	for rows.Next() {
		w, err := scanWalletRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

func scanWallet(row *sql.Row) (*ledger.Wallet, error) {
	var createdAt, updatedAt, kind, balance string
	var isSystem, id, ownerID, assetID int64
	if err := row.Scan(&id, &ownerID, &assetID, &balance, &isSystem, &kind, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ledger.ErrNotFound
		}
		return nil, fmt.Errorf("scanning wallet: %w", err)
	}
	return fillWallet(id, ownerID, assetID, balance, isSystem, kind, createdAt, updatedAt)
}

func scanWalletRows(rows *sql.Rows) (*ledger.Wallet, error) {
	var createdAt, updatedAt, kind, balance string
	var isSystem, id, ownerID, assetID int64
	if err := rows.Scan(&id, &ownerID, &assetID, &balance, &isSystem, &kind, &createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("scanning wallet: %w", err)
	}
	return fillWallet(id, ownerID, assetID, balance, isSystem, kind, createdAt, updatedAt)
}

func fillWallet(id, ownerID, assetID int64, balance string, isSystem int64, kind, createdAt, updatedAt string) (*ledger.Wallet, error) {
	m, err := ledger.ParseMoney(balance)
	if err != nil {
		return nil, fmt.Errorf("parsing wallet balance: %w", err)
	}
	return &ledger.Wallet{
		ID:          ledger.WalletID(id),
		OwnerID:     ledger.OwnerID(ownerID),
		AssetTypeID: ledger.AssetTypeID(assetID),
		Balance:     m,
		IsSystem:    isSystem != 0,
		SystemKind:  ledger.SystemWalletKind(kind),
		CreatedAt:   parseTime(createdAt),
		UpdatedAt:   parseTime(updatedAt),
	}, nil
}

// =============================================================================
// TRANSACTION REPOSITORY
// =============================================================================

type transactionRepo struct{ db execer }

const transactionColumns = `transaction_id, idempotency_key, kind, owner_id, asset_type_id, amount, status, metadata_json, error_message, created_at, completed_at`

func (r *transactionRepo) Create(ctx context.Context, transactionID, idempotencyKey string, kind ledger.TransactionKind, owner ledger.OwnerID, asset ledger.AssetTypeID, amount ledger.Money, metadata map[string]string) (*ledger.Transaction, error) {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marshaling metadata: %w", err)
	}
	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO transactions (transaction_id, idempotency_key, kind, owner_id, asset_type_id, amount, status, metadata_json, error_message, created_at) VALUES (?, ?, ?, ?, ?, ?, 'PENDING', ?, '', ?)`,
		transactionID, idempotencyKey, string(kind), int64(owner), int64(asset), amount.String(), string(metaJSON), formatTime(now))
	if err != nil {
		return nil, classifyError(err)
	}
	return &ledger.Transaction{
		TransactionID: transactionID, IdempotencyKey: idempotencyKey, Kind: kind,
		OwnerID: owner, AssetTypeID: asset, Amount: amount, Status: ledger.StatusPending,
		Metadata: metadata, CreatedAt: now,
	}, nil
}

func (r *transactionRepo) GetByIdempotencyKey(ctx context.Context, key string) (*ledger.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE idempotency_key = ?`, key)
	return scanTransaction(row)
}

func (r *transactionRepo) GetByTransactionID(ctx context.Context, txID string) (*ledger.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE transaction_id = ?`, txID)
	return scanTransaction(row)
}

func (r *transactionRepo) SetStatus(ctx context.Context, txID string, status ledger.TransactionStatus, errMessage string) error {
	var completedAt any
	if status == ledger.StatusCompleted || status == ledger.StatusFailed {
		completedAt = formatTime(time.Now().UTC())
	}
	res, err := r.db.ExecContext(ctx, `UPDATE transactions SET status = ?, error_message = ?, completed_at = ? WHERE transaction_id = ?`,
		string(status), errMessage, completedAt, txID)
	if err != nil {
		return classifyError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func scanTransaction(row *sql.Row) (*ledger.Transaction, error) {
	var t ledger.Transaction
	var amount, createdAt, metaJSON string
	var completedAt sql.NullString
	var ownerID, assetID int64
	if err := row.Scan(&t.TransactionID, &t.IdempotencyKey, &t.Kind, &ownerID, &assetID, &amount, &t.Status, &metaJSON, &t.ErrorMessage, &createdAt, &completedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ledger.ErrNotFound
		}
		return nil, fmt.Errorf("scanning transaction: %w", err)
	}
	m, err := ledger.ParseMoney(amount)
	if err != nil {
		return nil, fmt.Errorf("parsing transaction amount: %w", err)
	}
	t.OwnerID = ledger.OwnerID(ownerID)
	t.AssetTypeID = ledger.AssetTypeID(assetID)
	t.Amount = m
	t.CreatedAt = parseTime(createdAt)
	if completedAt.Valid {
		ts := parseTime(completedAt.String)
		t.CompletedAt = &ts
	}
	if err := json.Unmarshal([]byte(metaJSON), &t.Metadata); err != nil {
		return nil, fmt.Errorf("parsing transaction metadata: %w", err)
	}
	return &t, nil
}

// =============================================================================
// LEDGER REPOSITORY
// =============================================================================

type ledgerRepo struct{ db execer }

const ledgerColumns = `id, transaction_id, wallet_id, entry_type, signed_amount, balance_before, balance_after, description, created_at`

func (r *ledgerRepo) Append(ctx context.Context, transactionID string, walletID ledger.WalletID, entryType ledger.EntryType, signedAmount, balanceBefore, balanceAfter ledger.Money, description string) (*ledger.LedgerEntry, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO ledger_entries (transaction_id, wallet_id, entry_type, signed_amount, balance_before, balance_after, description, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		transactionID, int64(walletID), string(entryType), signedAmount.String(), balanceBefore.String(), balanceAfter.String(), description, formatTime(now))
	if err != nil {
		return nil, classifyError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading ledger entry id: %w", err)
	}
	return &ledger.LedgerEntry{
		ID: id, TransactionID: transactionID, WalletID: walletID, EntryType: entryType,
		SignedAmount: signedAmount, BalanceBefore: balanceBefore, BalanceAfter: balanceAfter,
		Description: description, CreatedAt: now,
	}, nil
}

func (r *ledgerRepo) ListByTransaction(ctx context.Context, transactionID string) ([]ledger.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+ledgerColumns+` FROM ledger_entries WHERE transaction_id = ? ORDER BY id`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("listing ledger entries: %w", err)
	}
	defer rows.Close()

	var out []ledger.LedgerEntry
	for rows.Next() {
		var e ledger.LedgerEntry
		var signed, before, after, createdAt string
		var walletID int64
		if err := rows.Scan(&e.ID, &e.TransactionID, &walletID, &e.EntryType, &signed, &before, &after, &e.Description, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning ledger entry: %w", err)
		}
		e.WalletID = ledger.WalletID(walletID)
		sm, err := ledger.ParseMoney(signed)
		if err != nil {
			return nil, err
		}
		bm, err := ledger.ParseMoney(before)
		if err != nil {
			return nil, err
		}
		am, err := ledger.ParseMoney(after)
		if err != nil {
			return nil, err
		}
		e.SignedAmount, e.BalanceBefore, e.BalanceAfter = sm, bm, am
		e.CreatedAt = parseTime(createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string { return t.Format(timeLayout) }

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// classifyError maps a raw SQLite error to ledger.ErrIntegrityViolation
// when it looks like a unique or check constraint failure, wrapping it
// so errors.Is(err, ledger.ErrIntegrityViolation) still works.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "CHECK constraint failed") {
		return fmt.Errorf("%w: %v", ledger.ErrIntegrityViolation, err)
	}
	return fmt.Errorf("store error: %w", err)
}
