// Package protocol provides the wire model and value codec for the Hrana v3
// pipeline protocol
package protocol

import (
	"encoding/base64"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// IntegerMode selects the Go representation of decoded integer values.
// Integers travel as decimal strings on the wire, so the full 64-bit range is
// always preserved in transit and the mode only decides what the caller gets
// back.
type IntegerMode int

const (
	// ModeNumber decodes integers to float64. Values beyond 2^53 lose
	// precision.
	ModeNumber IntegerMode = iota

	// ModeBigInt decodes integers to *big.Int.
	ModeBigInt

	// ModeString passes the decimal payload through unchanged.
	ModeString
)

// String returns the mode's configuration name.
func (m IntegerMode) String() string {
	switch m {
	case ModeBigInt:
		return "bigint"
	case ModeString:
		return "string"
	default:
		return "number"
	}
}

// Valid reports whether the mode is one of the known constants.
func (m IntegerMode) Valid() bool {
	return m >= ModeNumber && m <= ModeString
}

// ParseIntegerMode maps a configuration name to its mode.
func ParseIntegerMode(s string) (IntegerMode, error) {
	switch s {
	case "number", "":
		return ModeNumber, nil
	case "bigint":
		return ModeBigInt, nil
	case "string":
		return ModeString, nil
	default:
		return ModeNumber, NewCodedError(ErrorCodeIntegerMode, "unknown integer mode "+strconv.Quote(s), nil)
	}
}

// DecodeValue converts a wire value into its Go representation: nil for null,
// string for text, float64 for float, []byte for blob, and for integer
// whatever mode selects. A mode outside the known set falls back to number so
// callers that validated their configuration elsewhere never fail here.
func DecodeValue(v Value, mode IntegerMode) (any, error) {
	switch v.Type {
	case TypeNull:
		return nil, nil
	case TypeText:
		return v.Text, nil
	case TypeFloat:
		return v.Float, nil
	case TypeInteger:
		return decodeInteger(v.Text, mode)
	case TypeBlob:
		b, err := DecodeBase64(v.Base64)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, UnknownValueTypeError(v.Type)
	}
}

// decodeInteger converts a decimal payload per the requested mode
func decodeInteger(literal string, mode IntegerMode) (any, error) {
	switch mode {
	case ModeBigInt:
		n, ok := new(big.Int).SetString(literal, 10)
		if !ok {
			return nil, IntegerFormatError(literal, nil)
		}
		return n, nil
	case ModeString:
		return literal, nil
	default:
		f, err := strconv.ParseFloat(literal, 64)
		if err != nil {
			return nil, IntegerFormatError(literal, err)
		}
		return f, nil
	}
}

// EncodeValue converts a Go value into wire form. Signed and unsigned
// integers and *big.Int become integer values, float32/float64 become float
// values even when integral, bool becomes the integer 1 or 0, []byte becomes
// a blob (nil slices bind NULL), and time.Time is rendered as RFC 3339 text.
// A Value passes through unchanged.
func EncodeValue(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case string:
		return Text(x), nil
	case bool:
		if x {
			return Integer(1), nil
		}
		return Integer(0), nil
	case int:
		return Integer(int64(x)), nil
	case int8:
		return Integer(int64(x)), nil
	case int16:
		return Integer(int64(x)), nil
	case int32:
		return Integer(int64(x)), nil
	case int64:
		return Integer(x), nil
	case uint:
		return Value{Type: TypeInteger, Text: strconv.FormatUint(uint64(x), 10)}, nil
	case uint8:
		return Integer(int64(x)), nil
	case uint16:
		return Integer(int64(x)), nil
	case uint32:
		return Integer(int64(x)), nil
	case uint64:
		return Value{Type: TypeInteger, Text: strconv.FormatUint(x, 10)}, nil
	case *big.Int:
		if x == nil {
			return Null(), nil
		}
		return Value{Type: TypeInteger, Text: x.String()}, nil
	case float32:
		return Float(float64(x)), nil
	case float64:
		return Float(x), nil
	case []byte:
		if x == nil {
			return Null(), nil
		}
		return Blob(x), nil
	case time.Time:
		return Text(x.Format(time.RFC3339Nano)), nil
	default:
		return Value{}, UnsupportedBindError(v)
	}
}

// EncodeBase64 renders blob bytes with the standard padded alphabet.
func EncodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeBase64 accepts both the standard and URL-safe alphabets, padded or
// not. Servers differ on which variant they emit, so the payload is
// normalized to unpadded standard form before decoding.
func DecodeBase64(s string) ([]byte, error) {
	s = strings.TrimRight(s, "=")
	s = strings.ReplaceAll(s, "-", "+")
	s = strings.ReplaceAll(s, "_", "/")
	b, err := base64.RawStdEncoding.DecodeString(s)
	if err != nil {
		return nil, Base64Error(err)
	}
	return b, nil
}
