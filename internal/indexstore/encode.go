package indexstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	lperrors "github.com/Adithya-Monish-Kumar-K/lexiprep/pkg/errors"
)

// The encoder produces the exact byte layout existing readers of the index
// files expect. Compact output separates items with ", " and keys with
// ": "; indented output separates items with "," plus a newline. Non-ASCII
// text is written verbatim and only '"', '\\' and control characters are
// escaped, the latter as lower-case \u00XX. Floats always carry a fraction
// or an exponent.

type encoder struct {
	buf    *bytes.Buffer
	indent string
}

func encode(buf *bytes.Buffer, v any, indent string) error {
	e := &encoder{buf: buf, indent: indent}
	return e.value(v, 0)
}

func (e *encoder) value(v any, depth int) error {
	switch x := v.(type) {
	case nil:
		e.buf.WriteString("null")
	case bool:
		e.buf.WriteString(strconv.FormatBool(x))
	case string:
		e.string(x)
	case json.Number:
		if !json.Valid([]byte(x)) {
			return fmt.Errorf("%w: invalid number literal %q", lperrors.ErrInvalidInput, string(x))
		}
		e.buf.WriteString(string(x))
	case int:
		e.buf.WriteString(strconv.Itoa(x))
	case int64:
		e.buf.WriteString(strconv.FormatInt(x, 10))
	case float64:
		e.buf.WriteString(formatFloat(x))
	case Fields:
		return e.object(len(x), depth, func(i int) (string, any) { return x[i].Key, x[i].Value })
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return e.object(len(keys), depth, func(i int) (string, any) { return keys[i], x[keys[i]] })
	case []any:
		return e.array(len(x), depth, func(i int) any { return x[i] })
	case []string:
		return e.array(len(x), depth, func(i int) any { return x[i] })
	case []int:
		return e.array(len(x), depth, func(i int) any { return x[i] })
	case []Fields:
		return e.array(len(x), depth, func(i int) any { return x[i] })
	case json.Marshaler:
		return e.marshaled(x, depth)
	default:
		return e.reflectValue(reflect.ValueOf(v), depth)
	}
	return nil
}

// reflectValue covers the remaining scalar kinds, slices and string-keyed
// maps. Structs go through encoding/json so their tags are honored.
func (e *encoder) reflectValue(rv reflect.Value, depth int) error {
	switch rv.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32:
		e.buf.WriteString(strconv.FormatInt(rv.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		e.buf.WriteString(strconv.FormatUint(rv.Uint(), 10))
	case reflect.Float32:
		e.buf.WriteString(formatFloat(rv.Float()))
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			e.buf.WriteString("null")
			return nil
		}
		return e.value(rv.Elem().Interface(), depth)
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			e.buf.WriteString("[]")
			return nil
		}
		return e.array(rv.Len(), depth, func(i int) any { return rv.Index(i).Interface() })
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("%w: map key type %s", lperrors.ErrInvalidInput, rv.Type().Key())
		}
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return e.object(len(keys), depth, func(i int) (string, any) {
			return keys[i], rv.MapIndex(reflect.ValueOf(keys[i]).Convert(rv.Type().Key())).Interface()
		})
	case reflect.Struct:
		return e.marshaled(rv.Interface(), depth)
	case reflect.String:
		e.string(rv.String())
	case reflect.Bool:
		e.buf.WriteString(strconv.FormatBool(rv.Bool()))
	case reflect.Int, reflect.Int64:
		e.buf.WriteString(strconv.FormatInt(rv.Int(), 10))
	case reflect.Float64:
		e.buf.WriteString(formatFloat(rv.Float()))
	default:
		return fmt.Errorf("%w: cannot encode %s", lperrors.ErrInvalidInput, rv.Type())
	}
	return nil
}

// marshaled encodes v with encoding/json, decodes the result keeping key
// order and re-encodes it in this package's layout.
func (e *encoder) marshaled(v any, depth int) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %v", lperrors.ErrInvalidInput, err)
	}
	decoded, err := decodeDocument(data)
	if err != nil {
		return err
	}
	return e.value(decoded, depth)
}

func (e *encoder) object(n, depth int, at func(int) (string, any)) error {
	if n == 0 {
		e.buf.WriteString("{}")
		return nil
	}
	e.buf.WriteByte('{')
	for i := 0; i < n; i++ {
		e.separator(i, depth+1)
		k, v := at(i)
		e.string(k)
		e.buf.WriteString(": ")
		if err := e.value(v, depth+1); err != nil {
			return err
		}
	}
	e.closing(depth)
	e.buf.WriteByte('}')
	return nil
}

func (e *encoder) array(n, depth int, at func(int) any) error {
	if n == 0 {
		e.buf.WriteString("[]")
		return nil
	}
	e.buf.WriteByte('[')
	for i := 0; i < n; i++ {
		e.separator(i, depth+1)
		if err := e.value(at(i), depth+1); err != nil {
			return err
		}
	}
	e.closing(depth)
	e.buf.WriteByte(']')
	return nil
}

func (e *encoder) separator(i, depth int) {
	if e.indent == "" {
		if i > 0 {
			e.buf.WriteString(", ")
		}
		return
	}
	if i > 0 {
		e.buf.WriteByte(',')
	}
	e.buf.WriteByte('\n')
	e.buf.WriteString(strings.Repeat(e.indent, depth))
}

func (e *encoder) closing(depth int) {
	if e.indent == "" {
		return
	}
	e.buf.WriteByte('\n')
	e.buf.WriteString(strings.Repeat(e.indent, depth))
}

const hex = "0123456789abcdef"

func (e *encoder) string(s string) {
	e.buf.WriteByte('"')
	for i := 0; i < len(s); {
		c := s[i]
		if c < utf8.RuneSelf {
			switch c {
			case '"':
				e.buf.WriteString(`\"`)
			case '\\':
				e.buf.WriteString(`\\`)
			case '\n':
				e.buf.WriteString(`\n`)
			case '\r':
				e.buf.WriteString(`\r`)
			case '\t':
				e.buf.WriteString(`\t`)
			case '\b':
				e.buf.WriteString(`\b`)
			case '\f':
				e.buf.WriteString(`\f`)
			default:
				if c < 0x20 {
					e.buf.WriteString(`\u00`)
					e.buf.WriteByte(hex[c>>4])
					e.buf.WriteByte(hex[c&0xf])
				} else {
					e.buf.WriteByte(c)
				}
			}
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			e.buf.WriteString("\ufffd")
		} else {
			e.buf.WriteString(s[i : i+size])
		}
		i += size
	}
	e.buf.WriteByte('"')
}

// formatFloat renders shortest round-trip digits, a trailing ".0" for
// integral values and exponent notation below 1e-4 or from 1e16 upwards.
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	if abs := math.Abs(f); abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
