package client

import (
	"strconv"

	"github.com/cespare/xxhash"
)

// Fingerprint returns a short stable hash of a SQL text. Logs and hooks use
// it to correlate repeated statements without echoing the full SQL, which may
// embed literals worth keeping out of log sinks.
func Fingerprint(sql string) string {
	return strconv.FormatUint(xxhash.Sum64String(sql), 16)
}
