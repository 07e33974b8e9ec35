// Package hrana is a SQL-over-HTTP client for servers speaking the Hrana v3
// pipeline protocol (sqld, libsql-server, Turso). Every operation runs as a
// single HTTP exchange: the statement or batch and a trailing stream close
// travel in one POST, so no server-side state outlives the call.
//
// The root package is a thin facade. The client package carries the full
// API, protocol the wire codec and condition-graph batches, mapper the row
// projection, and migration and schema the operational tooling. A
// database/sql driver registers under the name "hrana" when the driver
// package is imported.
package hrana

import (
	"context"

	"github.com/lukeed/hrana/client"
	"github.com/lukeed/hrana/mapper"
	"github.com/lukeed/hrana/protocol"
)

// Client executes statements, batches and transactions against one server.
type Client = client.Client

// Row is a projected result row keyed by column name.
type Row = mapper.Row

// Option configures a client during Open or Connect.
type Option = client.Option

// TransactionResult aligns per-statement outcomes of a transactional batch.
type TransactionResult = client.TransactionResult

// Integer decoding modes for query projection.
const (
	ModeNumber = protocol.ModeNumber
	ModeBigInt = protocol.ModeBigInt
	ModeString = protocol.ModeString
)

// Transaction locking modes.
const (
	TxDeferred  = client.TxDeferred
	TxImmediate = client.TxImmediate
	TxReadOnly  = client.TxReadOnly
)

// Client options, re-exported from the client package.
var (
	WithAuthToken   = client.WithAuthToken
	WithHTTPClient  = client.WithHTTPClient
	WithTimeout     = client.WithTimeout
	WithIntegerMode = client.WithIntegerMode
	WithLogger      = client.WithLogger
	WithLogLevel    = client.WithLogLevel
	WithDebugMode   = client.WithDebugMode
	WithTransport   = client.WithTransport
	WithHook        = client.WithHook
)

// Open creates a client for the server at url without any network traffic.
// The URL accepts the http, https and libsql schemes; libsql is rewritten
// to https.
func Open(url string, opts ...Option) (*Client, error) {
	return client.New(url, opts...)
}

// Connect creates a client and probes the server for v3 pipeline support.
// A server that answers the probe without speaking the protocol fails with
// client.ErrUnsupported.
func Connect(ctx context.Context, url string, opts ...Option) (*Client, error) {
	c, err := client.New(url, opts...)
	if err != nil {
		return nil, err
	}
	if err := c.Ping(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}
