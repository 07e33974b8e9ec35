package driver

import (
	"database/sql/driver"
	"fmt"
	"strconv"

	"github.com/lukeed/hrana/protocol"
)

// toDriverValue converts a wire value to a driver.Value. Integers come back
// as int64 regardless of magnitude, blobs as raw bytes.
func toDriverValue(v protocol.Value) (driver.Value, error) {
	switch v.Type {
	case protocol.TypeNull:
		return nil, nil
	case protocol.TypeText:
		return v.Text, nil
	case protocol.TypeInteger:
		n, err := strconv.ParseInt(v.Text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("hrana: malformed integer %q: %w", v.Text, err)
		}
		return n, nil
	case protocol.TypeFloat:
		return v.Float, nil
	case protocol.TypeBlob:
		b, err := protocol.DecodeBase64(v.Base64)
		if err != nil {
			return nil, fmt.Errorf("hrana: malformed blob: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("hrana: unknown value type %q", v.Type)
	}
}
