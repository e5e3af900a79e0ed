package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrMalformedAmount is returned when a monetary field is neither a number nor
// a numeric string.
var ErrMalformedAmount = errors.New("malformed amount")

// Amount is a monetary or reward-point value as sent by the API.
//
// The backend serializes decimals either as JSON numbers or as strings
// ("150.50"). UnmarshalJSON is the single place where both forms are
// normalized; callers only ever see a decimal.
type Amount struct {
	Value decimal.Decimal
	// Valid is false when the field was absent or null.
	Valid bool
}

// NewAmount builds a valid Amount from an integer.
func NewAmount(v int64) Amount {
	return Amount{Value: decimal.NewFromInt(v), Valid: true}
}

// AmountFromDecimal builds a valid Amount.
func AmountFromDecimal(d decimal.Decimal) Amount {
	return Amount{Value: d, Valid: true}
}

// ParseAmount parses a decimal string such as "150.50".
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrMalformedAmount, s)
	}
	return Amount{Value: d, Valid: true}, nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = Amount{}
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedAmount, err)
		}
		if s == "" {
			*a = Amount{}
			return nil
		}
		parsed, err := ParseAmount(s)
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		d, err := decimal.NewFromString(string(data))
		if err != nil {
			return fmt.Errorf("%w: %s", ErrMalformedAmount, data)
		}
		*a = Amount{Value: d, Valid: true}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrMalformedAmount, data)
	}
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.Valid {
		return []byte("null"), nil
	}
	return []byte(a.Value.String()), nil
}

func (a Amount) String() string {
	if !a.Valid {
		return "0"
	}
	return a.Value.StringFixed(2)
}

// Or returns a when valid and fallback otherwise.
func (a Amount) Or(fallback Amount) Amount {
	if a.Valid {
		return a
	}
	return fallback
}

// Decimal returns the value, zero when absent.
func (a Amount) Decimal() decimal.Decimal {
	if !a.Valid {
		return decimal.Zero
	}
	return a.Value
}

func (a Amount) Equal(b Amount) bool {
	return a.Decimal().Equal(b.Decimal())
}
