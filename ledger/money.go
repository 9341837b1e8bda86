/*
Package ledger provides the domain-agnostic core of the wallet ledger:
money representation, entity types, error taxonomy, and the persistence
interfaces the transaction engine is built against.

PURPOSE:
  Mirrors the separation the engine needs from any specific store or
  transport: this package knows about wallets, assets, transactions and
  ledger entries, and nothing about HTTP or SQL.

KEY CONCEPTS IN THIS FILE (money.go):
  - Money: a fixed-point decimal amount, precision 20, scale 8.
    Never backed by float64 — shopspring/decimal throughout.

SEE ALSO:
  - types.go: AssetType, Wallet, Transaction, LedgerEntry
  - errors.go: typed error kinds surfaced to the boundary
  - store.go: repository interfaces implemented by store/sqlite
*/
package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the fixed number of fractional digits every amount is
// normalized to. Precision is bounded by decimal.Decimal itself (20+
// significant digits comfortably fit in its big.Int backing).
const Scale = 8

// Money is a fixed-point decimal amount. Zero value is zero.
type Money struct {
	d decimal.Decimal
}

// Zero is the additive identity.
var Zero = Money{d: decimal.Zero}

// NewMoney constructs a Money from a decimal.Decimal, rounding to Scale.
func NewMoney(d decimal.Decimal) Money {
	return Money{d: d.Round(Scale)}
}

// ParseMoney parses a decimal string (e.g. "100.00") into a Money.
// Returns an error if the string is not a valid decimal.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return NewMoney(d), nil
}

// MustMoney is ParseMoney but panics on error. Intended for constants
// and tests, never for request-path parsing.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Decimal() decimal.Decimal { return m.d }

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }
func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }
func (m Money) Neg() Money        { return Money{d: m.d.Neg()} }

func (m Money) IsZero() bool     { return m.d.IsZero() }
func (m Money) IsPositive() bool { return m.d.IsPositive() }
func (m Money) IsNegative() bool { return m.d.IsNegative() }

func (m Money) GreaterThanOrEqual(o Money) bool { return m.d.GreaterThanOrEqual(o.d) }
func (m Money) LessThan(o Money) bool           { return m.d.LessThan(o.d) }
func (m Money) Equal(o Money) bool              { return m.d.Equal(o.d) }

func (m Money) String() string { return m.d.StringFixed(Scale) }

// MarshalJSON renders the amount as a decimal string, per the response
// contract in the spec ("Amounts are serialized as decimal strings").
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.d.StringFixed(Scale) + `"`), nil
}

// UnmarshalJSON accepts both a quoted decimal string and a bare JSON
// number, since some clients will send amounts unquoted.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", s, err)
	}
	m.d = d.Round(Scale)
	return nil
}
