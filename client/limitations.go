package client

// Server Protocol Limitations
//
// Tracks behavior differences across Hrana v3 pipeline servers (sqld,
// libsql-server, Turso) that shape this client's API.
// Protocol reference:
// https://github.com/tursodatabase/libsql/blob/main/docs/HRANA_3_SPEC.md

// Single-exchange streams
//
// Every exchange sends its requests in one POST and appends a close, so the
// server never holds stream state between calls. Interactive transactions
// (BEGIN in one call, COMMIT in a later one) would need baton continuation;
// Transaction instead gates a full statement list on step conditions inside
// one batch.

// Unconditional COMMIT
//
// The generated transaction batch runs COMMIT without a condition. After a
// failed BEGIN the stream is back in autocommit and the stray COMMIT itself
// errors; that outcome surfaces as TransactionResult.CommitError rather than
// being filtered out.

// Optional result fields
//
// last_insert_rowid arrives as a decimal string and is omitted for
// statements that did not insert. replication_index is absent on servers
// without replication. Both decode to optional fields on StmtResult.

// Mixed argument styles
//
// sqld rejects statements carrying positional and named arguments at the
// same time. StmtBuilder does not pre-validate this; the rejection surfaces
// as a ProtocolError from the server.
