package domain

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DataType is the SQL type family of a column. It decides how literals are rendered.
type DataType int

const (
	TypeString DataType = iota
	TypeNumeric
)

func (t DataType) String() string {
	if t == TypeNumeric {
		return "numeric"
	}
	return "string"
}

// ParseDataType maps a schema type name to a DataType.
func ParseDataType(s string) (DataType, error) {
	switch strings.ToLower(s) {
	case "", "string", "text", "varchar":
		return TypeString, nil
	case "numeric", "integer", "int", "decimal", "number":
		return TypeNumeric, nil
	default:
		return TypeString, ErrValidation("unknown column type %q", s)
	}
}

// Literal is a constraint value. Numeric literals hold their canonical decimal text so
// that 1997, "1997" and 1997.0 compare and hash the same way.
type Literal struct {
	Numeric bool
	Null    bool
	Text    string
}

// Null is the literal for a missing column value.
var Null = Literal{Null: true}

// String returns a string literal.
func String(s string) Literal { return Literal{Text: s} }

// Int returns a numeric literal.
func Int(n int64) Literal { return Literal{Numeric: true, Text: strconv.FormatInt(n, 10)} }

// Decimal returns a numeric literal.
func Decimal(d decimal.Decimal) Literal { return Literal{Numeric: true, Text: d.String()} }

// ParseLiteral converts user supplied text to a literal of the given type.
func ParseLiteral(t DataType, s string) (Literal, error) {
	if t != TypeNumeric {
		return String(s), nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Literal{}, ErrValidation("invalid numeric value %q", s)
	}
	return Decimal(d), nil
}

// LiteralFromDB converts a value scanned from a driver into a literal of the given type.
func LiteralFromDB(t DataType, v any) (Literal, error) {
	if v == nil {
		return Null, nil
	}
	if t == TypeNumeric {
		d, err := ToDecimal(v)
		if err != nil {
			return Literal{}, err
		}
		return Decimal(d), nil
	}
	switch x := v.(type) {
	case string:
		return String(x), nil
	case []byte:
		return String(string(x)), nil
	case time.Time:
		return String(x.Format(time.DateOnly)), nil
	default:
		return String(fmt.Sprint(x)), nil
	}
}

// ToDecimal converts a scanned numeric value to a decimal.
func ToDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, nil
	case int64:
		return decimal.NewFromInt(x), nil
	case int32:
		return decimal.NewFromInt32(x), nil
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case uint64:
		return decimal.NewFromString(strconv.FormatUint(x, 10))
	case *big.Int:
		return decimal.NewFromBigInt(x, 0), nil
	case float64:
		return decimal.NewFromFloat(x), nil
	case float32:
		return decimal.NewFromFloat32(x), nil
	case []byte:
		return decimal.NewFromString(string(x))
	case string:
		return decimal.NewFromString(x)
	case fmt.Stringer:
		return decimal.NewFromString(x.String())
	default:
		return decimal.Zero, fmt.Errorf("cannot convert %T to a number", v)
	}
}

// Compare orders literals: nulls last, numbers numerically, strings lexically.
func (l Literal) Compare(o Literal) int {
	switch {
	case l.Null && o.Null:
		return 0
	case l.Null:
		return 1
	case o.Null:
		return -1
	}
	if l.Numeric && o.Numeric {
		a, errA := decimal.NewFromString(l.Text)
		b, errB := decimal.NewFromString(o.Text)
		if errA == nil && errB == nil {
			return a.Cmp(b)
		}
	}
	return strings.Compare(l.Text, o.Text)
}

// Key is a stable string form used in cache keys.
func (l Literal) Key() string {
	switch {
	case l.Null:
		return "\x00"
	case l.Numeric:
		return "#" + l.Text
	default:
		return "'" + l.Text
	}
}

func (l Literal) String() string {
	switch {
	case l.Null:
		return "null"
	case l.Numeric:
		return l.Text
	default:
		return "'" + l.Text + "'"
	}
}

// Cell is a loaded value. Null marks a cell whose constraints matched no rows.
type Cell struct {
	Value decimal.Decimal
	Null  bool
}

// NullCell is the "no value" result.
var NullCell = Cell{Null: true}

func (c Cell) String() string {
	if c.Null {
		return "null"
	}
	return c.Value.String()
}
