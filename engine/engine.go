/*
Package engine implements the wallet movement protocol: TopUp, Bonus,
and Spend. It is the only place that sequences wallet locking,
idempotency handling, and double-entry posting.

PROTOCOL (spec §4.E), each movement follows the same eight steps:
  1. Idempotency pre-check: if a transaction with this key already
     exists, return it (whatever its status) without doing any work.
  2. Resolve the asset type by code.
  3. Lock the two wallets involved, in ascending WalletID order, inside
     one store transaction. System wallets must already exist; a
     missing user wallet is lazily created at zero balance and then
     locked.
  4. For BONUS/SPEND, check the paying wallet (MARKETING or the user
     wallet) has sufficient balance. TOPUP skips the check, so TREASURY
     may go negative.
  5. Create the transaction row at status PENDING.
  6. Compute before/after balances for both wallets and persist them.
  7. Append one DEBIT and one CREDIT ledger entry, summing to zero.
  8. Mark the transaction COMPLETED and return it.

FAILURE HANDLING:
  - A unique-constraint violation surfacing mid-protocol (another
    caller raced us on the same idempotency key) rolls back steps 2-8
    and re-runs step 1: the now-committed row from the winner is
    returned as a duplicate.
  - Any other error rolls back the movement's scope, then — in a
    second, independent store scope — makes a best-effort attempt to
    mark the transaction FAILED. The PENDING row was created in the
    rolled-back scope, so that update finds no row and only a warning
    is logged; no FAILED row is left behind. The original error is
    what gets returned to the caller.

SEE ALSO:
  - ledger (package): Money, entity types, error Kinds, Store interface
  - store/sqlite: the concrete Store this engine is built against
*/
package engine

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/warp/wallet-ledger/ledger"
)

// Engine sequences wallet movements against a ledger.Store.
type Engine struct {
	store  ledger.Store
	logger *log.Logger
}

func New(store ledger.Store, logger *log.Logger) *Engine {
	return &Engine{store: store, logger: logger}
}

// MovementRequest is the input common to TopUp, Bonus, and Spend.
type MovementRequest struct {
	IdempotencyKey string
	Owner          ledger.OwnerID
	AssetCode      string
	Amount         ledger.Money
	Metadata       map[string]string
}

// Result bundles the completed (or pre-existing, if idempotent) tx
// with the ledger entries posted for it.
type Result struct {
	Transaction ledger.Transaction
	Entries     []ledger.LedgerEntry
}

func (e *Engine) TopUp(ctx context.Context, req MovementRequest) (*Result, error) {
	return e.movement(ctx, ledger.TxTopUp, ledger.OwnerTreasury, req)
}

func (e *Engine) Bonus(ctx context.Context, req MovementRequest) (*Result, error) {
	return e.movement(ctx, ledger.TxBonus, ledger.OwnerMarketing, req)
}

func (e *Engine) Spend(ctx context.Context, req MovementRequest) (*Result, error) {
	return e.movement(ctx, ledger.TxSpend, ledger.OwnerRevenue, req)
}

// movement runs the eight-step protocol. systemOwner is the
// counterparty system wallet: TOPUP credits the user from TREASURY,
// BONUS credits the user from MARKETING, SPEND debits the user into
// REVENUE. Which side is debited/credited is decided by kind, not by
// systemOwner's sign.
func (e *Engine) movement(ctx context.Context, kind ledger.TransactionKind, systemOwner ledger.OwnerID, req MovementRequest) (*Result, error) {
	if req.IdempotencyKey == "" {
		return nil, ledger.NewError(ledger.KindValidation, "idempotency_key is required")
	}
	if !req.Amount.IsPositive() {
		return nil, ledger.NewError(ledger.KindValidation, "amount must be positive")
	}

	// Step 1: idempotency pre-check, outside any write scope.
	if existing, entries, err := e.lookupExisting(ctx, req.IdempotencyKey); err != nil {
		return nil, err
	} else if existing != nil {
		e.logger.Debug("movement short-circuited by idempotency key", "idempotency_key", req.IdempotencyKey, "transaction_id", existing.TransactionID)
		return &Result{Transaction: *existing, Entries: entries}, nil
	}

	result, err := e.run(ctx, kind, systemOwner, req)
	if err == nil {
		return result, nil
	}

	if ledger.IsIntegrityViolation(err) {
		// Step 8 recovery: someone else committed first under the same
		// idempotency key (or the same transaction id collided, which
		// practically cannot happen with a uuid but is handled alike).
		existing, entries, lookupErr := e.lookupExisting(ctx, req.IdempotencyKey)
		if lookupErr == nil && existing != nil {
			e.logger.Debug("movement lost idempotency race, returning winner", "idempotency_key", req.IdempotencyKey, "transaction_id", existing.TransactionID)
			return &Result{Transaction: *existing, Entries: entries}, nil
		}
		return nil, ledger.WrapError(ledger.KindDuplicateTransaction, "duplicate transaction", err)
	}

	return nil, err
}

func (e *Engine) lookupExisting(ctx context.Context, key string) (*ledger.Transaction, []ledger.LedgerEntry, error) {
	tx, err := e.store.Transactions().GetByIdempotencyKey(ctx, key)
	if err != nil {
		if err == ledger.ErrNotFound {
			return nil, nil, nil
		}
		return nil, nil, ledger.WrapError(ledger.KindStoreError, "looking up idempotency key", err)
	}
	entries, err := e.store.Ledger().ListByTransaction(ctx, tx.TransactionID)
	if err != nil {
		return nil, nil, ledger.WrapError(ledger.KindStoreError, "loading ledger entries", err)
	}
	return tx, entries, nil
}

// run performs steps 2-8 inside one store transaction, with a
// best-effort FAILED marking on any non-integrity error.
func (e *Engine) run(ctx context.Context, kind ledger.TransactionKind, systemOwner ledger.OwnerID, req MovementRequest) (*Result, error) {
	txID := uuid.NewString()
	var result *Result

	err := e.store.WithTx(ctx, func(scope ledger.Scope) error {
		// Step 2: resolve asset.
		asset, err := scope.Assets().GetByCode(ctx, req.AssetCode)
		if err != nil {
			if err == ledger.ErrNotFound {
				return ledger.NewError(ledger.KindAssetUnknown, fmt.Sprintf("unknown asset type %q", req.AssetCode))
			}
			return ledger.WrapError(ledger.KindStoreError, "resolving asset type", err)
		}

		systemWallet, err := scope.Wallets().GetByOwnerAsset(ctx, systemOwner, asset.ID)
		if err != nil {
			if err == ledger.ErrNotFound {
				return ledger.NewError(ledger.KindSystemWalletMissing, fmt.Sprintf("system wallet for owner %d not provisioned for asset %q", systemOwner, asset.Code))
			}
			return ledger.WrapError(ledger.KindStoreError, "resolving system wallet", err)
		}

		userWallet, err := scope.Wallets().GetByOwnerAsset(ctx, req.Owner, asset.ID)
		if err != nil && err != ledger.ErrNotFound {
			return ledger.WrapError(ledger.KindStoreError, "resolving user wallet", err)
		}
		if userWallet == nil {
			created, err := scope.Wallets().Create(ctx, req.Owner, asset.ID, false, ledger.SystemWalletNone)
			if err != nil {
				return ledger.WrapError(ledger.KindStoreError, "lazily creating user wallet", err)
			}
			userWallet = created
		}

		// Step 3: lock both wallets, ascending WalletID order.
		firstOwner, secondOwner := systemOwner, req.Owner
		if userWallet.ID < systemWallet.ID {
			firstOwner, secondOwner = req.Owner, systemOwner
		}
		lockedFirst, err := lockWallet(ctx, scope, firstOwner, asset.ID)
		if err != nil {
			return err
		}
		lockedSecond, err := lockWallet(ctx, scope, secondOwner, asset.ID)
		if err != nil {
			return err
		}
		lockedSystem, lockedUser := lockedFirst, lockedSecond
		if lockedFirst.OwnerID != systemOwner {
			lockedSystem, lockedUser = lockedSecond, lockedFirst
		}

		debitWallet, creditWallet := walletsForKind(kind, lockedSystem, lockedUser)

		// Step 4: sufficient-funds check on the debited side. TOPUP skips
		// it: the treasury may go negative.
		if kind != ledger.TxTopUp && debitWallet.Balance.LessThan(req.Amount) {
			return ledger.NewError(ledger.KindInsufficientFunds, "insufficient balance")
		}

		// Step 5: create the PENDING transaction.
		txn, err := scope.Transactions().Create(ctx, txID, req.IdempotencyKey, kind, req.Owner, asset.ID, req.Amount, req.Metadata)
		if err != nil {
			return err // may be ErrIntegrityViolation, left unwrapped for the caller to detect
		}

		// Step 6 + 7: compute balances and post entries.
		debitBefore := debitWallet.Balance
		debitAfter := debitBefore.Sub(req.Amount)
		creditBefore := creditWallet.Balance
		creditAfter := creditBefore.Add(req.Amount)

		if err := scope.Wallets().SetBalance(ctx, debitWallet.ID, debitAfter); err != nil {
			return ledger.WrapError(ledger.KindStoreError, "updating debited wallet balance", err)
		}
		if err := scope.Wallets().SetBalance(ctx, creditWallet.ID, creditAfter); err != nil {
			return ledger.WrapError(ledger.KindStoreError, "updating credited wallet balance", err)
		}

		debitEntry, err := scope.Ledger().Append(ctx, txID, debitWallet.ID, ledger.EntryDebit, req.Amount.Neg(), debitBefore, debitAfter, string(kind))
		if err != nil {
			return ledger.WrapError(ledger.KindStoreError, "appending debit entry", err)
		}
		creditEntry, err := scope.Ledger().Append(ctx, txID, creditWallet.ID, ledger.EntryCredit, req.Amount, creditBefore, creditAfter, string(kind))
		if err != nil {
			return ledger.WrapError(ledger.KindStoreError, "appending credit entry", err)
		}

		// Step 8: mark COMPLETED.
		if err := scope.Transactions().SetStatus(ctx, txID, ledger.StatusCompleted, ""); err != nil {
			return ledger.WrapError(ledger.KindStoreError, "marking transaction completed", err)
		}
		txn.Status = ledger.StatusCompleted

		result = &Result{Transaction: *txn, Entries: []ledger.LedgerEntry{*debitEntry, *creditEntry}}
		return nil
	})

	if err != nil {
		if ledger.IsIntegrityViolation(err) {
			return nil, err
		}
		e.markFailed(ctx, txID, err)
		return nil, err
	}
	return result, nil
}

func lockWallet(ctx context.Context, scope ledger.Scope, owner ledger.OwnerID, asset ledger.AssetTypeID) (*ledger.Wallet, error) {
	w, err := scope.Wallets().GetWithLock(ctx, owner, asset)
	if err != nil {
		return nil, ledger.WrapError(ledger.KindStoreError, "locking wallet", err)
	}
	if w == nil {
		return nil, ledger.NewError(ledger.KindWalletNotFound, fmt.Sprintf("wallet for owner %d not found", owner))
	}
	return w, nil
}

// walletsForKind decides which of the two locked wallets is debited
// and which is credited. TOPUP and BONUS credit the user from a
// system source; SPEND debits the user into the system sink.
func walletsForKind(kind ledger.TransactionKind, system, user *ledger.Wallet) (debit, credit *ledger.Wallet) {
	if kind == ledger.TxSpend {
		return user, system
	}
	return system, user
}

// markFailed records a best-effort FAILED status in a fresh scope. Its
// own failure is logged, never returned — the caller already has the
// real error to propagate.
func (e *Engine) markFailed(ctx context.Context, txID string, cause error) {
	err := e.store.WithTx(ctx, func(scope ledger.Scope) error {
		return scope.Transactions().SetStatus(ctx, txID, ledger.StatusFailed, cause.Error())
	})
	if err != nil {
		e.logger.Warn("failed to record FAILED status for transaction", "transaction_id", txID, "cause", cause, "mark_failed_error", err)
	}
}
