package sqlite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/wallet-ledger/ledger"
	"github.com/warp/wallet-ledger/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestPingOnOpenStoreSucceeds(t *testing.T) {
	st := newStore(t)
	assert.NoError(t, st.Ping(context.Background()))
}

func TestAssetCreateAndGetByCode(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	created, err := st.Assets().Create(ctx, "COINS", "Coins")
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.True(t, created.Active)

	got, err := st.Assets().GetByCode(ctx, "COINS")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "Coins", got.DisplayName)
}

func TestAssetGetByCodeUnknownReturnsErrNotFound(t *testing.T) {
	st := newStore(t)
	_, err := st.Assets().GetByCode(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestAssetGetByID(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	created, err := st.Assets().Create(ctx, "GEMS", "Gems")
	require.NoError(t, err)

	got, err := st.Assets().GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "GEMS", got.Code)
}

func TestAssetGetByIDUnknownReturnsErrNotFound(t *testing.T) {
	st := newStore(t)
	_, err := st.Assets().GetByID(context.Background(), ledger.AssetTypeID(999999))
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

// SPEC: the asset_types table has UNIQUE(code). Creating the same code
// twice must surface as ledger.ErrIntegrityViolation, not a raw driver
// error, so the engine's race-recovery path can detect it generically.
func TestAssetCreateDuplicateCodeIsIntegrityViolation(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	_, err := st.Assets().Create(ctx, "COINS", "Coins")
	require.NoError(t, err)

	_, err = st.Assets().Create(ctx, "COINS", "Coins Again")
	assert.True(t, ledger.IsIntegrityViolation(err))
}

func TestWalletLazyLookupMissingReturnsErrNotFound(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	asset, err := st.Assets().Create(ctx, "COINS", "Coins")
	require.NoError(t, err)

	_, err = st.Wallets().GetByOwnerAsset(ctx, ledger.OwnerID(42), asset.ID)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

// GetWithLock has a different absence contract than GetByOwnerAsset:
// (nil, nil), not ledger.ErrNotFound - the engine uses this to decide
// whether to lazily create a user wallet.
func TestWalletGetWithLockMissingReturnsNilNil(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	asset, err := st.Assets().Create(ctx, "COINS", "Coins")
	require.NoError(t, err)

	w, err := st.Wallets().GetWithLock(ctx, ledger.OwnerID(42), asset.ID)
	require.NoError(t, err)
	assert.Nil(t, w)
}

func TestProvisionSystemWalletCreatesSystemWallet(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	asset, err := st.Assets().Create(ctx, "COINS", "Coins")
	require.NoError(t, err)

	w, err := st.Wallets().ProvisionSystemWallet(ctx, ledger.OwnerTreasury, asset.ID, ledger.SystemWalletTreasury)
	require.NoError(t, err)
	assert.True(t, w.IsSystem)
	assert.Equal(t, ledger.SystemWalletTreasury, w.SystemKind)
	assert.True(t, w.Balance.IsZero())
}

// SPEC: wallets.UNIQUE(owner_id, asset_type_id) - one wallet per
// (owner, asset) pair, system or not.
func TestWalletCreateDuplicateOwnerAssetIsIntegrityViolation(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	asset, err := st.Assets().Create(ctx, "COINS", "Coins")
	require.NoError(t, err)

	_, err = st.Wallets().Create(ctx, ledger.OwnerID(7), asset.ID, false, ledger.SystemWalletNone)
	require.NoError(t, err)

	_, err = st.Wallets().Create(ctx, ledger.OwnerID(7), asset.ID, false, ledger.SystemWalletNone)
	assert.True(t, ledger.IsIntegrityViolation(err))
}

// SPEC: CHECK(is_system OR balance >= 0) - a non-system wallet cannot
// be driven negative at the storage layer even if a caller bypasses
// the engine's own insufficient-funds check.
func TestNonSystemWalletCannotGoNegative(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	asset, err := st.Assets().Create(ctx, "COINS", "Coins")
	require.NoError(t, err)

	w, err := st.Wallets().Create(ctx, ledger.OwnerID(7), asset.ID, false, ledger.SystemWalletNone)
	require.NoError(t, err)

	err = st.Wallets().SetBalance(ctx, w.ID, ledger.MustMoney("-1.00000000"))
	assert.Error(t, err)
}

// A system wallet is explicitly exempt from the non-negative check.
func TestSystemWalletMayGoNegative(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	asset, err := st.Assets().Create(ctx, "COINS", "Coins")
	require.NoError(t, err)

	w, err := st.Wallets().ProvisionSystemWallet(ctx, ledger.OwnerTreasury, asset.ID, ledger.SystemWalletTreasury)
	require.NoError(t, err)

	err = st.Wallets().SetBalance(ctx, w.ID, ledger.MustMoney("-50.00000000"))
	assert.NoError(t, err)

	got, err := st.Wallets().GetByID(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, "-50.00000000", got.Balance.String())
}

func TestListByOwnerReturnsAllAssetsForOwner(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	coins, err := st.Assets().Create(ctx, "COINS", "Coins")
	require.NoError(t, err)
	gems, err := st.Assets().Create(ctx, "GEMS", "Gems")
	require.NoError(t, err)

	_, err = st.Wallets().Create(ctx, ledger.OwnerID(7), coins.ID, false, ledger.SystemWalletNone)
	require.NoError(t, err)
	_, err = st.Wallets().Create(ctx, ledger.OwnerID(7), gems.ID, false, ledger.SystemWalletNone)
	require.NoError(t, err)

	wallets, err := st.Wallets().ListByOwner(ctx, ledger.OwnerID(7))
	require.NoError(t, err)
	assert.Len(t, wallets, 2)
}

// SPEC: transactions.UNIQUE(idempotency_key) and UNIQUE(transaction_id)
// are the storage-level backstop behind the engine's idempotency
// protocol - a raced duplicate insert under either column must
// classify as ledger.ErrIntegrityViolation.
func TestTransactionDuplicateIdempotencyKeyIsIntegrityViolation(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	asset, err := st.Assets().Create(ctx, "COINS", "Coins")
	require.NoError(t, err)

	_, err = st.Transactions().Create(ctx, "tx-1", "idem-1", ledger.TxTopUp, ledger.OwnerID(7), asset.ID, ledger.MustMoney("1.00000000"), nil)
	require.NoError(t, err)

	_, err = st.Transactions().Create(ctx, "tx-2", "idem-1", ledger.TxTopUp, ledger.OwnerID(7), asset.ID, ledger.MustMoney("1.00000000"), nil)
	assert.True(t, ledger.IsIntegrityViolation(err))
}

func TestTransactionDuplicateTransactionIDIsIntegrityViolation(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	asset, err := st.Assets().Create(ctx, "COINS", "Coins")
	require.NoError(t, err)

	_, err = st.Transactions().Create(ctx, "tx-1", "idem-1", ledger.TxTopUp, ledger.OwnerID(7), asset.ID, ledger.MustMoney("1.00000000"), nil)
	require.NoError(t, err)

	_, err = st.Transactions().Create(ctx, "tx-1", "idem-2", ledger.TxTopUp, ledger.OwnerID(7), asset.ID, ledger.MustMoney("1.00000000"), nil)
	assert.True(t, ledger.IsIntegrityViolation(err))
}

func TestTransactionSetStatusUnknownIDReturnsErrNotFound(t *testing.T) {
	st := newStore(t)
	err := st.Transactions().SetStatus(context.Background(), "does-not-exist", ledger.StatusCompleted, "")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestLedgerAppendAndListByTransaction(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	asset, err := st.Assets().Create(ctx, "COINS", "Coins")
	require.NoError(t, err)
	w, err := st.Wallets().Create(ctx, ledger.OwnerID(7), asset.ID, false, ledger.SystemWalletNone)
	require.NoError(t, err)

	_, err = st.Transactions().Create(ctx, "tx-1", "idem-1", ledger.TxTopUp, ledger.OwnerID(7), asset.ID, ledger.MustMoney("5.00000000"), nil)
	require.NoError(t, err)

	_, err = st.Ledger().Append(ctx, "tx-1", w.ID, ledger.EntryCredit, ledger.MustMoney("5.00000000"), ledger.Zero, ledger.MustMoney("5.00000000"), "TOPUP")
	require.NoError(t, err)

	entries, err := st.Ledger().ListByTransaction(ctx, "tx-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ledger.EntryCredit, entries[0].EntryType)
	assert.Equal(t, "5.00000000", entries[0].BalanceAfter.String())
}

// WithTx rolls back every write inside fn when fn returns an error -
// an error returned after an asset insert must not leave that asset
// row behind.
func TestWithTxRollsBackOnError(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	sentinel := assert.AnError
	err := st.WithTx(ctx, func(scope ledger.Scope) error {
		if _, err := scope.Assets().Create(ctx, "ROLLBACK-ME", "x"); err != nil {
			return err
		}
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	_, err = st.Assets().GetByCode(ctx, "ROLLBACK-ME")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestWithTxCommitsOnSuccess(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	err := st.WithTx(ctx, func(scope ledger.Scope) error {
		_, err := scope.Assets().Create(ctx, "COMMITTED", "x")
		return err
	})
	require.NoError(t, err)

	got, err := st.Assets().GetByCode(ctx, "COMMITTED")
	require.NoError(t, err)
	assert.Equal(t, "COMMITTED", got.Code)
}
