// Command hashpw prints a bcrypt hash for the converter's access password.
//
// The web interface has no user accounts. When ACCESS_PASSWORD_HASH is set,
// every request outside the health endpoints must present the password via
// HTTP basic auth (any user name). hashpw produces the value for that
// variable.
//
// Usage:
//
//	hashpw
//
// On a terminal the password is prompted for twice without echo. When stdin
// is not a terminal, the first line is read as the password, which allows
//
//	echo "$PASSWORD" | hashpw
//
// Environment:
//
//	BCRYPT_COST - bcrypt work factor (default: 12)
package main
