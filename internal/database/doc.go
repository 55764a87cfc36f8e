// Package database stores the conversion history in SQLite.
//
// Each finished conversion session is one row in the conversions table:
// the sanitised input and output names, whether a decryption key was
// supplied (never the key), the final status, attempt and round counts,
// and the diagnostic log with the key redacted.
//
// The database uses WAL mode and is optional: when the database directory
// is not writable the service runs without history.
package database
