// Package driver registers the hrana client as a database/sql driver under
// the name "hrana".
//
// Import this package for its side effects and open a database with the
// server's base URL as the DSN:
//
//	import _ "github.com/lukeed/hrana/driver"
//
//	db, err := sql.Open("hrana", "https://db.example.com?authToken=...")
//
// The DSN is the base URL of a server speaking the v3 pipeline protocol.
// Two query parameters are consumed by the driver: authToken (bearer token)
// and timeout (Go duration, e.g. "30s"). Any other parameter is rejected.
package driver

import (
	"context"
	"database/sql"
	gosqldriver "database/sql/driver"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/lukeed/hrana/client"
)

// DriverName is the name used to register this driver with database/sql.
const DriverName = "hrana"

func init() {
	sql.Register(DriverName, &Driver{})
}

// Driver implements database/sql/driver.Driver and driver.DriverContext.
type Driver struct{}

// Open builds a new connection from a DSN. The connection owns its client
// and closes it when the pool retires the connection.
func (d *Driver) Open(name string) (gosqldriver.Conn, error) {
	c, err := clientFromDSN(name)
	if err != nil {
		return nil, err
	}
	return &Conn{client: c, ownsClient: true}, nil
}

// OpenConnector parses the DSN once and returns a connector whose
// connections share a single client. database/sql prefers this path; the
// shared client is released when the sql.DB is closed.
func (d *Driver) OpenConnector(name string) (gosqldriver.Connector, error) {
	c, err := clientFromDSN(name)
	if err != nil {
		return nil, err
	}
	return &Connector{driver: d, client: c}, nil
}

// clientFromDSN builds a client from a DSN of the form
//
//	https://host[:port][/path]?authToken=TOKEN&timeout=30s
func clientFromDSN(dsn string) (*client.Client, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("hrana: invalid DSN: %w", err)
	}

	q := u.Query()
	var opts []client.Option

	if token := q.Get("authToken"); token != "" {
		opts = append(opts, client.WithAuthToken(token))
	}
	q.Del("authToken")

	if timeout := q.Get("timeout"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return nil, fmt.Errorf("hrana: invalid timeout in DSN: %w", err)
		}
		opts = append(opts, client.WithTimeout(d))
	}
	q.Del("timeout")

	for param := range q {
		return nil, fmt.Errorf("hrana: unknown DSN parameter %q", param)
	}
	u.RawQuery = ""

	return client.New(u.String(), opts...)
}

// Connector hands out connections backed by one shared client.
type Connector struct {
	driver *Driver
	client *client.Client
}

// Connect returns a new connection. The connection does not own the shared
// client.
func (c *Connector) Connect(ctx context.Context) (gosqldriver.Conn, error) {
	return &Conn{client: c.client}, nil
}

// Driver returns the parent driver.
func (c *Connector) Driver() gosqldriver.Driver {
	return c.driver
}

// Close releases the shared client. database/sql calls this when the
// sql.DB is closed.
func (c *Connector) Close() error {
	return c.client.Close()
}

// Ensure the driver implements the interfaces database/sql looks for.
var _ gosqldriver.Driver = &Driver{}
var _ gosqldriver.DriverContext = &Driver{}
var _ gosqldriver.Connector = &Connector{}
var _ io.Closer = &Connector{}
