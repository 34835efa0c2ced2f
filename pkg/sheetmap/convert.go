package sheetmap

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/locvowork/sheetmap/pkg/workbook"
)

var errEmpty = errors.New("empty value")

// converter holds the settings of built-in coercion.
type converter struct {
	layout   string
	location *time.Location
}

func (r *Registry) converter() converter {
	return converter{layout: r.timeLayout, location: r.location}
}

// =============================================================================
// Export direction
// =============================================================================

// cellContent is what one field value becomes in a sheet: a value or a picture.
type cellContent struct {
	value   workbook.CellValue
	picture []byte
}

// toCell coerces a field value, or a formatter result, to cell content.
// Nil, nil pointers and zero times give a blank cell; "" stays a present
// empty string.
func (c converter) toCell(v any) cellContent {
	switch x := deref(v).(type) {
	case nil:
		return cellContent{}
	case workbook.CellValue:
		return cellContent{value: x}
	case workbook.Picture:
		return cellContent{picture: x.Data}
	case []byte:
		if len(x) == 0 {
			return cellContent{}
		}
		return cellContent{picture: x}
	case string:
		return cellContent{value: workbook.StringValue(x)}
	case bool:
		return cellContent{value: workbook.BoolValue(x)}
	case int:
		return number(float64(x))
	case int8:
		return number(float64(x))
	case int16:
		return number(float64(x))
	case int32:
		return number(float64(x))
	case int64:
		return number(float64(x))
	case uint:
		return number(float64(x))
	case uint8:
		return number(float64(x))
	case uint16:
		return number(float64(x))
	case uint32:
		return number(float64(x))
	case uint64:
		return number(float64(x))
	case float32:
		return number(float64(x))
	case float64:
		return number(x)
	case time.Time:
		if x.IsZero() {
			return cellContent{}
		}
		return cellContent{value: workbook.StringValue(x.Format(c.layout))}
	case fmt.Stringer:
		return cellContent{value: workbook.StringValue(x.String())}
	default:
		return cellContent{value: workbook.StringValue(fmt.Sprint(x))}
	}
}

func number(f float64) cellContent {
	return cellContent{value: workbook.NumberValue(f)}
}

// deref unwraps pointers to supported scalar types; nil pointers become nil.
func deref(v any) any {
	switch x := v.(type) {
	case *string:
		return ptrValue(x)
	case *bool:
		return ptrValue(x)
	case *int:
		return ptrValue(x)
	case *int8:
		return ptrValue(x)
	case *int16:
		return ptrValue(x)
	case *int32:
		return ptrValue(x)
	case *int64:
		return ptrValue(x)
	case *uint:
		return ptrValue(x)
	case *uint8:
		return ptrValue(x)
	case *uint16:
		return ptrValue(x)
	case *uint32:
		return ptrValue(x)
	case *uint64:
		return ptrValue(x)
	case *float32:
		return ptrValue(x)
	case *float64:
		return ptrValue(x)
	case *time.Time:
		return ptrValue(x)
	default:
		return v
	}
}

func ptrValue[V any](p *V) any {
	if p == nil {
		return nil
	}
	return *p
}

func pictureExtension(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/bmp":
		return ".bmp"
	default:
		return ".png"
	}
}

// =============================================================================
// Import direction
// =============================================================================

// coerce converts a raw cell value or formatter result to the canonical Go
// value of kind: string, int64, uint64, float64, bool, time.Time or []byte.
// A nil result means the field keeps its zero value.
func (c converter) coerce(kind DataKind, v any) (any, error) {
	v = deref(v)
	if v == nil {
		return nil, nil
	}
	var (
		out any
		err error
	)
	switch kind {
	case KindString:
		out = c.asString(v)
	case KindInt:
		out, err = asInt64(v)
	case KindUint:
		out, err = asUint64(v)
	case KindFloat:
		out, err = asFloat64(v)
	case KindBool:
		out, err = asBool(v)
	case KindTime:
		out, err = c.asTime(v)
	case KindBinary:
		out, err = asBytes(v)
	default:
		return v, nil
	}
	if errors.Is(err, errEmpty) {
		return nil, nil
	}
	return out, err
}

func (c converter) asString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(c.layout)
	case []byte:
		return string(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func asInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint, uint8, uint16, uint32, uint64:
		u, _ := asUint64(x)
		if u > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", u)
		}
		return int64(u), nil
	case float32:
		return floatToInt(float64(x))
	case float64:
		return floatToInt(x)
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, errEmpty
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not an integer", x)
		}
		return floatToInt(f)
	default:
		return 0, fmt.Errorf("%T is not an integer", v)
	}
}

func floatToInt(f float64) (int64, error) {
	if f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("%v is not an integer", f)
	}
	return int64(f), nil
}

func asUint64(v any) (uint64, error) {
	switch x := v.(type) {
	case uint:
		return uint64(x), nil
	case uint8:
		return uint64(x), nil
	case uint16:
		return uint64(x), nil
	case uint32:
		return uint64(x), nil
	case uint64:
		return x, nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, errEmpty
		}
		if n, err := strconv.ParseUint(s, 10, 64); err == nil {
			return n, nil
		}
	}
	n, err := asInt64(v)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%d is negative", n)
	}
	return uint64(n), nil
}

func asFloat64(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, errEmpty
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", x)
		}
		return f, nil
	case bool:
		return 0, fmt.Errorf("boolean is not a number")
	}
	if n, err := asInt64(v); err == nil {
		return float64(n), nil
	}
	return 0, fmt.Errorf("%T is not a number", v)
}

func asBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case float64:
		return x != 0, nil
	case string:
		s := strings.ToLower(strings.TrimSpace(x))
		switch s {
		case "":
			return false, errEmpty
		case "yes", "y":
			return true, nil
		case "no", "n":
			return false, nil
		}
		b, err := strconv.ParseBool(s)
		if err != nil {
			return false, fmt.Errorf("%q is not a boolean", x)
		}
		return b, nil
	}
	if n, err := asInt64(v); err == nil {
		return n != 0, nil
	}
	return false, fmt.Errorf("%T is not a boolean", v)
}

var fallbackTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
}

func (c converter) asTime(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case float64:
		return workbook.SerialToTime(x)
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return time.Time{}, errEmpty
		}
		if t, err := time.ParseInLocation(c.layout, s, c.location); err == nil {
			return t, nil
		}
		for _, layout := range fallbackTimeLayouts {
			if t, err := time.ParseInLocation(layout, s, c.location); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("%q does not match time layout %q", x, c.layout)
	default:
		return time.Time{}, fmt.Errorf("%T is not a time", v)
	}
}

func asBytes(v any) ([]byte, error) {
	switch x := v.(type) {
	case []byte:
		return x, nil
	case workbook.Picture:
		return x.Data, nil
	case string:
		if x == "" {
			return nil, errEmpty
		}
		return []byte(x), nil
	default:
		return nil, fmt.Errorf("%T is not binary", v)
	}
}

// assign stores a canonical value into the field pointer p.
func assign(p any, v any) error {
	switch dst := p.(type) {
	case *string:
		*dst = converter{layout: DefaultTimeLayout}.asString(v)
	case **string:
		s := converter{layout: DefaultTimeLayout}.asString(v)
		*dst = &s
	case *int:
		return setInt(dst, v)
	case *int8:
		return setInt(dst, v)
	case *int16:
		return setInt(dst, v)
	case *int32:
		return setInt(dst, v)
	case *int64:
		return setInt(dst, v)
	case **int:
		return setPtr(dst, v, setInt[int])
	case **int8:
		return setPtr(dst, v, setInt[int8])
	case **int16:
		return setPtr(dst, v, setInt[int16])
	case **int32:
		return setPtr(dst, v, setInt[int32])
	case **int64:
		return setPtr(dst, v, setInt[int64])
	case *uint:
		return setUint(dst, v)
	case *uint8:
		return setUint(dst, v)
	case *uint16:
		return setUint(dst, v)
	case *uint32:
		return setUint(dst, v)
	case *uint64:
		return setUint(dst, v)
	case **uint:
		return setPtr(dst, v, setUint[uint])
	case **uint8:
		return setPtr(dst, v, setUint[uint8])
	case **uint16:
		return setPtr(dst, v, setUint[uint16])
	case **uint32:
		return setPtr(dst, v, setUint[uint32])
	case **uint64:
		return setPtr(dst, v, setUint[uint64])
	case *float32:
		return setFloat(dst, v)
	case *float64:
		return setFloat(dst, v)
	case **float32:
		return setPtr(dst, v, setFloat[float32])
	case **float64:
		return setPtr(dst, v, setFloat[float64])
	case *bool:
		b, err := asBool(v)
		if err != nil {
			return err
		}
		*dst = b
	case **bool:
		b, err := asBool(v)
		if err != nil {
			return err
		}
		*dst = &b
	case *time.Time:
		t, ok := v.(time.Time)
		if !ok {
			return fmt.Errorf("%T is not a time", v)
		}
		*dst = t
	case **time.Time:
		t, ok := v.(time.Time)
		if !ok {
			return fmt.Errorf("%T is not a time", v)
		}
		*dst = &t
	case *[]byte:
		b, err := asBytes(v)
		if err != nil {
			return err
		}
		*dst = b
	case *any:
		*dst = v
	default:
		return fmt.Errorf("cannot assign %T to %T", v, p)
	}
	return nil
}

func setInt[N int | int8 | int16 | int32 | int64](dst *N, v any) error {
	n, err := asInt64(v)
	if err != nil {
		return err
	}
	if int64(N(n)) != n {
		return fmt.Errorf("%d overflows %T", n, *dst)
	}
	*dst = N(n)
	return nil
}

func setUint[N uint | uint8 | uint16 | uint32 | uint64](dst *N, v any) error {
	n, err := asUint64(v)
	if err != nil {
		return err
	}
	if uint64(N(n)) != n {
		return fmt.Errorf("%d overflows %T", n, *dst)
	}
	*dst = N(n)
	return nil
}

func setFloat[N float32 | float64](dst *N, v any) error {
	f, err := asFloat64(v)
	if err != nil {
		return err
	}
	*dst = N(f)
	return nil
}

func setPtr[N any](dst **N, v any, set func(*N, any) error) error {
	var x N
	if err := set(&x, v); err != nil {
		return err
	}
	*dst = &x
	return nil
}
