package transcoder

import (
	"path/filepath"
	"strings"
)

// Mode is a strategy for reading the input: which decryption flags are passed
// and how the input is referenced.
type Mode string

const (
	// ModePlain reads the input path directly without decryption flags.
	ModePlain Mode = "plain"
	// ModeCENC passes -decryption_key and reads the plain path (encrypted MP4).
	ModeCENC Mode = "cenc"
	// ModeTSCrypto passes -decryption_key and reads the input through the
	// crypto: protocol (encrypted transport stream).
	ModeTSCrypto Mode = "ts_crypto"
)

// cryptoScheme prefixes the input path in TS crypto mode.
const cryptoScheme = "crypto:"

// transportStreamExts are tried in TS crypto mode first.
var transportStreamExts = map[string]bool{
	".ts":   true,
	".m2ts": true,
	".mts":  true,
	".m4t":  true,
}

// SelectModes returns the ordered modes to try for an input. Without a key
// the only mode is plain; with a key both decrypting modes are tried, the
// order decided by the input's extension.
func SelectModes(inputPath string, hasKey bool) []Mode {
	if !hasKey {
		return []Mode{ModePlain}
	}
	if IsTransportStream(inputPath) {
		return []Mode{ModeTSCrypto, ModeCENC}
	}
	return []Mode{ModeCENC, ModeTSCrypto}
}

// IsTransportStream reports whether the path has a transport-stream
// extension (case-insensitive).
func IsTransportStream(path string) bool {
	return transportStreamExts[strings.ToLower(filepath.Ext(path))]
}

// Label is the human-readable name used in the attempt log.
func (m Mode) Label() string {
	switch m {
	case ModeCENC:
		return "CENC mode (encrypted MP4)"
	case ModeTSCrypto:
		return "TS + crypto mode (encrypted TS)"
	case ModePlain:
		return "plain mode"
	default:
		return string(m)
	}
}

// InputRef returns how the input path is passed to -i in this mode.
func (m Mode) InputRef(inputPath string) string {
	if m == ModeTSCrypto {
		return cryptoScheme + inputPath
	}
	return inputPath
}

// decrypts reports whether the mode passes the decryption key.
func (m Mode) decrypts() bool {
	return m == ModeCENC || m == ModeTSCrypto
}
