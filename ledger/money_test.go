package ledger_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/wallet-ledger/ledger"
)

func TestParseMoneyRoundTrip(t *testing.T) {
	m, err := ledger.ParseMoney("100.00")
	require.NoError(t, err)
	assert.Equal(t, "100.00000000", m.String())
}

func TestParseMoneyRejectsGarbage(t *testing.T) {
	_, err := ledger.ParseMoney("not-a-number")
	assert.Error(t, err)
}

// SPEC: amounts are fixed-point decimal, scale 8 - the smallest unit
// must survive a round trip without being rounded away.
func TestMoneyScaleEightExactness(t *testing.T) {
	m, err := ledger.ParseMoney("0.00000001")
	require.NoError(t, err)
	assert.Equal(t, "0.00000001", m.String())
	assert.False(t, m.IsZero())
}

func TestMoneyArithmetic(t *testing.T) {
	a := ledger.MustMoney("10.50000000")
	b := ledger.MustMoney("3.25000000")

	assert.Equal(t, "13.75000000", a.Add(b).String())
	assert.Equal(t, "7.25000000", a.Sub(b).String())
	assert.True(t, a.GreaterThanOrEqual(b))
	assert.True(t, b.LessThan(a))
	assert.True(t, a.Neg().IsNegative())
}

func TestMoneyJSONIsQuotedDecimalString(t *testing.T) {
	m := ledger.MustMoney("42.50000000")
	b, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `"42.50000000"`, string(b))

	var round ledger.Money
	require.NoError(t, json.Unmarshal(b, &round))
	assert.True(t, m.Equal(round))
}

func TestMoneyUnmarshalAcceptsBareNumber(t *testing.T) {
	var m ledger.Money
	require.NoError(t, json.Unmarshal([]byte(`12.5`), &m))
	assert.Equal(t, "12.50000000", m.String())
}
