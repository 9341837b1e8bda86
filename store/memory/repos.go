package memory

import (
	"context"
	"time"

	"github.com/warp/wallet-ledger/ledger"
)

// =============================================================================
// ASSET REPOSITORY
// =============================================================================

type assetRepo struct{ s *Store }

func (r *assetRepo) GetByID(_ context.Context, id ledger.AssetTypeID) (*ledger.AssetType, error) {
	a, ok := r.s.assetsByID[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *assetRepo) GetByCode(_ context.Context, code string) (*ledger.AssetType, error) {
	a, ok := r.s.assets[code]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *assetRepo) Create(_ context.Context, code, displayName string) (*ledger.AssetType, error) {
	if _, exists := r.s.assets[code]; exists {
		return nil, ledger.ErrIntegrityViolation
	}
	r.s.nextAssetID++
	now := time.Now().UTC()
	a := &ledger.AssetType{
		ID: ledger.AssetTypeID(r.s.nextAssetID), Code: code, DisplayName: displayName,
		Active: true, CreatedAt: now, UpdatedAt: now,
	}
	r.s.assets[code] = a
	r.s.assetsByID[a.ID] = a
	cp := *a
	return &cp, nil
}

// =============================================================================
// WALLET REPOSITORY
// =============================================================================

type walletRepo struct{ s *Store }

func (r *walletRepo) GetByID(_ context.Context, id ledger.WalletID) (*ledger.Wallet, error) {
	w, ok := r.s.walletsByID[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (r *walletRepo) GetByOwnerAsset(_ context.Context, owner ledger.OwnerID, asset ledger.AssetTypeID) (*ledger.Wallet, error) {
	w, ok := r.s.wallets[walletKey{owner: owner, asset: asset}]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

// GetWithLock returns (nil, nil) when absent, matching the contract in
// ledger/store.go; the whole-store mutex held by WithTx is this
// store's stand-in for row locking.
func (r *walletRepo) GetWithLock(ctx context.Context, owner ledger.OwnerID, asset ledger.AssetTypeID) (*ledger.Wallet, error) {
	w, err := r.GetByOwnerAsset(ctx, owner, asset)
	if err == ledger.ErrNotFound {
		return nil, nil
	}
	return w, err
}

func (r *walletRepo) Create(_ context.Context, owner ledger.OwnerID, asset ledger.AssetTypeID, isSystem bool, kind ledger.SystemWalletKind) (*ledger.Wallet, error) {
	k := walletKey{owner: owner, asset: asset}
	if _, exists := r.s.wallets[k]; exists {
		return nil, ledger.ErrIntegrityViolation
	}
	r.s.nextWalletID++
	now := time.Now().UTC()
	w := &ledger.Wallet{
		ID: ledger.WalletID(r.s.nextWalletID), OwnerID: owner, AssetTypeID: asset,
		Balance: ledger.Zero, IsSystem: isSystem, SystemKind: kind, CreatedAt: now, UpdatedAt: now,
	}
	r.s.wallets[k] = w
	r.s.walletsByID[w.ID] = w
	cp := *w
	return &cp, nil
}

func (r *walletRepo) ProvisionSystemWallet(ctx context.Context, owner ledger.OwnerID, asset ledger.AssetTypeID, kind ledger.SystemWalletKind) (*ledger.Wallet, error) {
	return r.Create(ctx, owner, asset, true, kind)
}

func (r *walletRepo) SetBalance(_ context.Context, id ledger.WalletID, newBalance ledger.Money) error {
	w, ok := r.s.walletsByID[id]
	if !ok {
		return ledger.ErrNotFound
	}
	w.Balance = newBalance
	w.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *walletRepo) ListByOwner(_ context.Context, owner ledger.OwnerID) ([]ledger.Wallet, error) {
	var out []ledger.Wallet
	for k, w := range r.s.wallets {
		if k.owner == owner {
			out = append(out, *w)
		}
	}
	return out, nil
}

// =============================================================================
// TRANSACTION REPOSITORY
// =============================================================================

type transactionRepo struct{ s *Store }

func (r *transactionRepo) Create(_ context.Context, transactionID, idempotencyKey string, kind ledger.TransactionKind, owner ledger.OwnerID, asset ledger.AssetTypeID, amount ledger.Money, metadata map[string]string) (*ledger.Transaction, error) {
	if _, exists := r.s.transactions[transactionID]; exists {
		return nil, ledger.ErrIntegrityViolation
	}
	if _, exists := r.s.byIdemKey[idempotencyKey]; exists {
		return nil, ledger.ErrIntegrityViolation
	}
	t := &ledger.Transaction{
		TransactionID: transactionID, IdempotencyKey: idempotencyKey, Kind: kind,
		OwnerID: owner, AssetTypeID: asset, Amount: amount, Status: ledger.StatusPending,
		Metadata: metadata, CreatedAt: time.Now().UTC(),
	}
	r.s.transactions[transactionID] = t
	r.s.byIdemKey[idempotencyKey] = t
	cp := *t
	return &cp, nil
}

func (r *transactionRepo) GetByIdempotencyKey(_ context.Context, key string) (*ledger.Transaction, error) {
	t, ok := r.s.byIdemKey[key]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *transactionRepo) GetByTransactionID(_ context.Context, txID string) (*ledger.Transaction, error) {
	t, ok := r.s.transactions[txID]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *transactionRepo) SetStatus(_ context.Context, txID string, status ledger.TransactionStatus, errMessage string) error {
	t, ok := r.s.transactions[txID]
	if !ok {
		return ledger.ErrNotFound
	}
	t.Status = status
	t.ErrorMessage = errMessage
	now := time.Now().UTC()
	t.CompletedAt = &now
	return nil
}

// =============================================================================
// LEDGER REPOSITORY
// =============================================================================

type ledgerRepo struct{ s *Store }

func (r *ledgerRepo) Append(_ context.Context, transactionID string, walletID ledger.WalletID, entryType ledger.EntryType, signedAmount, balanceBefore, balanceAfter ledger.Money, description string) (*ledger.LedgerEntry, error) {
	e := ledger.LedgerEntry{
		ID: int64(len(r.s.entries[transactionID]) + 1), TransactionID: transactionID, WalletID: walletID,
		EntryType: entryType, SignedAmount: signedAmount, BalanceBefore: balanceBefore, BalanceAfter: balanceAfter,
		Description: description, CreatedAt: time.Now().UTC(),
	}
	r.s.entries[transactionID] = append(r.s.entries[transactionID], e)
	return &e, nil
}

func (r *ledgerRepo) ListByTransaction(_ context.Context, transactionID string) ([]ledger.LedgerEntry, error) {
	return append([]ledger.LedgerEntry{}, r.s.entries[transactionID]...), nil
}
