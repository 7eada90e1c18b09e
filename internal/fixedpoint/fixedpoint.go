package fixedpoint

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// ResolutionDigits is the number of decimal places kept for off-chain prices.
const ResolutionDigits = 9

var (
	// Resolution is R_PRICE: prices are stored as round(p * 1e9).
	Resolution = big.NewInt(1_000_000_000)

	// SecondsPerYear is a Julian year (365.25 days) in whole seconds.
	SecondsPerYear = new(big.Int).Div(big.NewInt(60*60*24*36525), big.NewInt(100))

	// PercentResolution scales ratios to an integer with 2 implied decimals.
	PercentResolution = big.NewInt(10_000)
)

// FromFloat scales a float price into fixed-point units, rounding to nearest.
func FromFloat(p float64) *big.Int {
	return decimal.NewFromFloat(p).Shift(ResolutionDigits).Round(0).BigInt()
}

// ToFloat converts a fixed-point value back into a float.
func ToFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := decimal.NewFromBigInt(v, -ResolutionDigits).Float64()
	return f
}

// One returns 1.0 in fixed-point units.
func One() *big.Int {
	return new(big.Int).Set(Resolution)
}

// Pow10 returns 10^n.
func Pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// MulDiv returns a*b/d truncated toward zero, or 0 when d is zero.
func MulDiv(a, b, d *big.Int) *big.Int {
	if a == nil || b == nil || d == nil || d.Sign() == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(a, b)
	return out.Quo(out, d)
}

// Div returns a/d truncated toward zero, or 0 when d is zero.
func Div(a, d *big.Int) *big.Int {
	if a == nil || d == nil || d.Sign() == 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Quo(a, d)
}
