package ledger_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/warp/wallet-ledger/ledger"
)

// SPEC: the boundary status mapping in ledger.Kind.HTTPStatus must
// match the taxonomy exactly.
func TestKindHTTPStatusMapping(t *testing.T) {
	cases := map[ledger.Kind]int{
		ledger.KindValidation:         http.StatusUnprocessableEntity,
		ledger.KindAssetUnknown:        http.StatusBadRequest,
		ledger.KindSystemWalletMissing: http.StatusBadRequest,
		ledger.KindInsufficientFunds:   http.StatusBadRequest,
		ledger.KindWalletNotFound:      http.StatusNotFound,
		ledger.KindDuplicateTransaction: http.StatusConflict,
		ledger.KindStoreError:          http.StatusInternalServerError,
		ledger.KindInternal:            http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.HTTPStatus(), "kind=%s", kind)
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("underlying failure")
	err := ledger.WrapError(ledger.KindStoreError, "writing row", cause)
	assert.ErrorIs(t, err, cause)
}

func TestIsIntegrityViolation(t *testing.T) {
	plain := errors.New("wrapped: " + ledger.ErrIntegrityViolation.Error())
	assert.False(t, ledger.IsIntegrityViolation(plain)) // plain string wrap doesn't chain

	// exercises the same %w wrapping store/sqlite uses when classifying
	// a UNIQUE constraint failure.
	chained := fmt.Errorf("%w: UNIQUE constraint failed", ledger.ErrIntegrityViolation)
	assert.True(t, ledger.IsIntegrityViolation(chained))
}
