package domain

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// MoteDecimals is the number of decimal places in one CSPR.
const MoteDecimals = 9

// ParseAmount parses a non-negative decimal count of motes.
func ParseAmount(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(uint256.Int), nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return v, nil
}

// ParseCSPR converts a CSPR decimal such as "1.5" into motes. Fractions
// finer than one mote are rejected.
func ParseCSPR(s string) (*uint256.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid cspr amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("invalid cspr amount %q: negative", s)
	}
	motes := d.Shift(MoteDecimals)
	if !motes.Equal(motes.Truncate(0)) {
		return nil, fmt.Errorf("invalid cspr amount %q: finer than one mote", s)
	}
	v, overflow := uint256.FromBig(motes.BigInt())
	if overflow {
		return nil, fmt.Errorf("invalid cspr amount %q: overflow", s)
	}
	return v, nil
}

// FormatCSPR renders motes as a CSPR decimal string.
func FormatCSPR(motes *uint256.Int) string {
	if motes == nil {
		return "0"
	}
	d, err := decimal.NewFromString(motes.Dec())
	if err != nil {
		return motes.Dec()
	}
	return d.Shift(-MoteDecimals).String()
}
