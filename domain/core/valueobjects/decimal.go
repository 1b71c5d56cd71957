package valueobjects

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// DecimalPrecision is the number of significant digits kept by arithmetic.
const DecimalPrecision = 34

var arithmetic = func() *apd.Context {
	c := apd.BaseContext.WithPrecision(DecimalPrecision)
	c.Rounding = apd.RoundHalfUp
	return c
}()

// Decimal is an immutable arbitrary-precision decimal. The zero value is 0.
// Values are always finite: non-finite input is coerced to zero on entry.
type Decimal struct {
	d *apd.Decimal
}

// Zero is the decimal 0.
var Zero = Decimal{}

// NewDecimalFromString parses s. NaN and Infinity parse to zero.
func NewDecimalFromString(s string) (Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Decimal{}, fmt.Errorf("decimal value cannot be empty")
	}
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return Decimal{}, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	if d.Form != apd.Finite {
		return Decimal{}, nil
	}
	return Decimal{d: d}, nil
}

// MustDecimal is NewDecimalFromString for literals known to be valid.
func MustDecimal(s string) Decimal {
	d, err := NewDecimalFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// NewDecimalFromFloat converts f through its shortest decimal representation,
// so 0.1 becomes exactly 0.1. NaN and ±Inf become zero.
func NewDecimalFromFloat(f float64) Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Decimal{}
	}
	d, err := new(apd.Decimal).SetFloat64(f)
	if err != nil || d.Form != apd.Finite {
		return Decimal{}
	}
	return Decimal{d: d}
}

// NewDecimalFromInt returns the decimal for i.
func NewDecimalFromInt(i int64) Decimal {
	return Decimal{d: apd.New(i, 0)}
}

func (x Decimal) raw() *apd.Decimal {
	if x.d == nil {
		return apd.New(0, 0)
	}
	return x.d
}

type binaryOp func(d, x, y *apd.Decimal) (apd.Condition, error)

func (x Decimal) apply(op binaryOp, name string, y Decimal) (Decimal, error) {
	res := new(apd.Decimal)
	if _, err := op(res, x.raw(), y.raw()); err != nil {
		return Decimal{}, fmt.Errorf("decimal %s %s %s: %w", x, name, y, err)
	}
	if res.Form != apd.Finite {
		return Decimal{}, fmt.Errorf("decimal %s %s %s: non-finite result", x, name, y)
	}
	return Decimal{d: res}, nil
}

// Add returns x + y.
func (x Decimal) Add(y Decimal) (Decimal, error) {
	return x.apply(arithmetic.Add, "+", y)
}

// Sub returns x - y.
func (x Decimal) Sub(y Decimal) (Decimal, error) {
	return x.apply(arithmetic.Sub, "-", y)
}

// Mul returns x * y.
func (x Decimal) Mul(y Decimal) (Decimal, error) {
	return x.apply(arithmetic.Mul, "*", y)
}

// Quo returns x / y rounded to DecimalPrecision digits. Callers must check
// y.IsZero first; a zero divisor is reported as a plain error.
func (x Decimal) Quo(y Decimal) (Decimal, error) {
	if y.IsZero() {
		return Decimal{}, fmt.Errorf("decimal %s / 0: division by zero", x)
	}
	return x.apply(arithmetic.Quo, "/", y)
}

// IsZero is an exact zero test.
func (x Decimal) IsZero() bool {
	return x.d == nil || x.d.IsZero()
}

// Cmp compares x and y numerically.
func (x Decimal) Cmp(y Decimal) int {
	return x.raw().Cmp(y.raw())
}

// Equal reports numeric equality, so 1.50 equals 1.5.
func (x Decimal) Equal(y Decimal) bool {
	return x.Cmp(y) == 0
}

// Abs returns |x|.
func (x Decimal) Abs() Decimal {
	return Decimal{d: new(apd.Decimal).Abs(x.raw())}
}

// String renders the canonical form: plain notation, no trailing zeros.
func (x Decimal) String() string {
	if x.IsZero() {
		return "0"
	}
	reduced, _ := new(apd.Decimal).Reduce(x.d)
	return reduced.Text('f')
}

// Fixed renders x rounded half-up to places fractional digits.
func (x Decimal) Fixed(places int) string {
	if places < 0 {
		places = 0
	}
	v := x.raw()
	intDigits := v.NumDigits() + int64(v.Exponent)
	if intDigits < 1 {
		intDigits = 1
	}
	res := new(apd.Decimal)
	ctx := *arithmetic
	// quantize needs room for every integer digit plus the requested places
	ctx.Precision = uint32(intDigits) + uint32(places) + 1
	if _, err := ctx.Quantize(res, v, -int32(places)); err != nil {
		return x.String()
	}
	if res.IsZero() {
		res.Negative = false
	}
	return res.Text('f')
}

// MarshalJSON encodes the canonical string so no binary float round-trip
// happens across the wire.
func (x Decimal) MarshalJSON() ([]byte, error) {
	return json.Marshal(x.String())
}

// UnmarshalJSON accepts a JSON string or number.
func (x *Decimal) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*x = Decimal{}
		return nil
	}
	var s string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	} else {
		s = string(data)
	}
	d, err := NewDecimalFromString(s)
	if err != nil {
		return err
	}
	*x = d
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (x Decimal) MarshalText() ([]byte, error) {
	return []byte(x.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (x *Decimal) UnmarshalText(text []byte) error {
	d, err := NewDecimalFromString(string(text))
	if err != nil {
		return err
	}
	*x = d
	return nil
}
