/*
Package memory provides an in-memory ledger.Store, for tests that do
not need a real database.

PURPOSE:
  Same snapshot/restore-on-error transaction simulation as the
  teacher's generic/store/memory.go TxMemory: WithTx holds the
  store-wide mutex, snapshots every map, runs fn, and restores the
  snapshot on any error instead of applying partial writes.

NOT FOR PRODUCTION:
  No persistence, no real row locking beyond the whole-store mutex
  (the same stand-in store/sqlite uses), and reads made outside WithTx
  take no lock at all. Exists purely to let ledger/engine tests run
  fast and without a SQLite file.
*/
package memory

import (
	"context"
	"sync"

	"github.com/warp/wallet-ledger/ledger"
)

// Store is an in-memory ledger.Store.
type Store struct {
	mu sync.Mutex

	assets       map[string]*ledger.AssetType
	assetsByID   map[ledger.AssetTypeID]*ledger.AssetType
	wallets      map[walletKey]*ledger.Wallet
	walletsByID  map[ledger.WalletID]*ledger.Wallet
	transactions map[string]*ledger.Transaction // by transaction_id
	byIdemKey    map[string]*ledger.Transaction
	entries      map[string][]ledger.LedgerEntry // by transaction_id

	nextAssetID  int64
	nextWalletID int64
}

type walletKey struct {
	owner ledger.OwnerID
	asset ledger.AssetTypeID
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		assets:       make(map[string]*ledger.AssetType),
		assetsByID:   make(map[ledger.AssetTypeID]*ledger.AssetType),
		wallets:      make(map[walletKey]*ledger.Wallet),
		walletsByID:  make(map[ledger.WalletID]*ledger.Wallet),
		transactions: make(map[string]*ledger.Transaction),
		byIdemKey:    make(map[string]*ledger.Transaction),
		entries:      make(map[string][]ledger.LedgerEntry),
	}
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Assets() ledger.AssetRepository             { return &assetRepo{s: s} }
func (s *Store) Wallets() ledger.WalletRepository            { return &walletRepo{s: s} }
func (s *Store) Transactions() ledger.TransactionRepository { return &transactionRepo{s: s} }
func (s *Store) Ledger() ledger.LedgerRepository             { return &ledgerRepo{s: s} }

// snapshot is a deep-enough copy of every map to restore on rollback.
type snapshot struct {
	assets       map[string]*ledger.AssetType
	assetsByID   map[ledger.AssetTypeID]*ledger.AssetType
	wallets      map[walletKey]*ledger.Wallet
	walletsByID  map[ledger.WalletID]*ledger.Wallet
	transactions map[string]*ledger.Transaction
	byIdemKey    map[string]*ledger.Transaction
	entries      map[string][]ledger.LedgerEntry
}

func (s *Store) snapshotLocked() snapshot {
	cp := func(w *ledger.Wallet) *ledger.Wallet { c := *w; return &c }
	cpTx := func(t *ledger.Transaction) *ledger.Transaction { c := *t; return &c }

	sn := snapshot{
		assets:       make(map[string]*ledger.AssetType, len(s.assets)),
		assetsByID:   make(map[ledger.AssetTypeID]*ledger.AssetType, len(s.assetsByID)),
		wallets:      make(map[walletKey]*ledger.Wallet, len(s.wallets)),
		walletsByID:  make(map[ledger.WalletID]*ledger.Wallet, len(s.walletsByID)),
		transactions: make(map[string]*ledger.Transaction, len(s.transactions)),
		byIdemKey:    make(map[string]*ledger.Transaction, len(s.byIdemKey)),
		entries:      make(map[string][]ledger.LedgerEntry, len(s.entries)),
	}
	// Each copy is shared by both of its indexes, as in the live maps, so
	// writes after a restore stay visible through either index.
	for k, v := range s.assets {
		a := *v
		sn.assets[k] = &a
		sn.assetsByID[a.ID] = &a
	}
	for k, v := range s.wallets {
		c := cp(v)
		sn.wallets[k] = c
		sn.walletsByID[c.ID] = c
	}
	for k, v := range s.transactions {
		c := cpTx(v)
		sn.transactions[k] = c
		sn.byIdemKey[c.IdempotencyKey] = c
	}
	for k, v := range s.entries {
		sn.entries[k] = append([]ledger.LedgerEntry{}, v...)
	}
	return sn
}

func (s *Store) restoreLocked(sn snapshot) {
	s.assets = sn.assets
	s.assetsByID = sn.assetsByID
	s.wallets = sn.wallets
	s.walletsByID = sn.walletsByID
	s.transactions = sn.transactions
	s.byIdemKey = sn.byIdemKey
	s.entries = sn.entries
}

// WithTx snapshots the whole store, runs fn, and restores the
// snapshot if fn returns an error (simulating rollback) - identical in
// spirit to the teacher's TxMemory.WithTx.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Scope) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.snapshotLocked()
	scope := &scope{s: s}
	if err := fn(scope); err != nil {
		s.restoreLocked(before)
		return err
	}
	return nil
}

type scope struct{ s *Store }

func (sc *scope) Assets() ledger.AssetRepository             { return &assetRepo{s: sc.s} }
func (sc *scope) Wallets() ledger.WalletRepository            { return &walletRepo{s: sc.s} }
func (sc *scope) Transactions() ledger.TransactionRepository { return &transactionRepo{s: sc.s} }
func (sc *scope) Ledger() ledger.LedgerRepository             { return &ledgerRepo{s: sc.s} }
