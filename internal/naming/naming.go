// Package naming sanitises user supplied file names and hands out unique
// output paths for conversions.
package naming

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// IncomingDir is the subdirectory of the upload directory that holds raw
// uploads while they are being converted.
const IncomingDir = ".incoming"

// OutputSuffix is appended to the input stem to form the output name.
const OutputSuffix = "_converted"

// maxProbe bounds the collision search in Reserve.
const maxProbe = 10000

// ErrInvalidName is returned when a name has nothing usable left after
// sanitising.
var ErrInvalidName = errors.New("invalid file name")

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

var windowsDeviceNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// SecureFilename reduces name to a flat ASCII file name that is safe to join
// onto a directory. It returns "" when nothing usable remains.
func SecureFilename(name string) string {
	decomposed := norm.NFKD.String(name)

	var b strings.Builder
	for _, r := range decomposed {
		if r < 0x80 {
			b.WriteRune(r)
		}
	}
	s := b.String()

	s = strings.NewReplacer("/", " ", `\`, " ").Replace(s)
	s = strings.Join(strings.Fields(s), "_")
	s = unsafeChars.ReplaceAllString(s, "")
	s = strings.Trim(s, "._")

	if s != "" && windowsDeviceNames[strings.ToUpper(strings.SplitN(s, ".", 2)[0])] {
		s = "_" + s
	}
	return s
}

// SplitName sanitises the stem and extension of an uploaded file name
// separately, so that a name made only of non-ASCII characters keeps its
// extension. The extension is lower-cased and includes the leading dot.
func SplitName(original string) (stem, ext string, err error) {
	base := original
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}

	rawExt := filepath.Ext(base)
	if e := SecureFilename(rawExt); e != "" && !strings.Contains(e, ".") {
		ext = "." + strings.ToLower(e)
	}
	stem = SecureFilename(strings.TrimSuffix(base, rawExt))

	switch {
	case stem == "" && ext == "":
		return "", "", ErrInvalidName
	case stem == "":
		stem = "upload"
	}
	return stem, ext, nil
}

// UploadPath returns a fresh path under dir's incoming directory for an
// upload named original. The uuid prefix keeps concurrent uploads of the same
// name apart.
func UploadPath(dir, original string) (path, stem string, err error) {
	stem, ext, err := SplitName(original)
	if err != nil {
		return "", "", err
	}
	name := uuid.NewString() + "-" + stem + ext
	return filepath.Join(dir, IncomingDir, name), stem, nil
}

// Reserver hands out output paths that neither exist on disk nor have been
// handed to another session that is still running.
type Reserver struct {
	mu      sync.Mutex
	claimed map[string]struct{}
}

// NewReserver creates an empty Reserver.
func NewReserver() *Reserver {
	return &Reserver{claimed: make(map[string]struct{})}
}

// Reserve probes <stem>_converted<ext>, then <stem>_converted_1<ext>,
// <stem>_converted_2<ext> and so on, and claims the first free one.
func (r *Reserver) Reserve(dir, stem, ext string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	base := stem + OutputSuffix
	for n := 0; n < maxProbe; n++ {
		name := base + ext
		if n > 0 {
			name = fmt.Sprintf("%s_%d%s", base, n, ext)
		}
		path := filepath.Join(dir, name)

		if _, ok := r.claimed[path]; ok {
			continue
		}
		_, err := os.Lstat(path)
		if err == nil {
			continue
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("failed to probe %s: %w", path, err)
		}

		r.claimed[path] = struct{}{}
		return path, nil
	}
	return "", fmt.Errorf("no free output name for %s after %d candidates", base, maxProbe)
}

// Release drops the claim on path. The file itself is left alone.
func (r *Reserver) Release(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.claimed, path)
}

// Claimed reports how many paths are currently reserved.
func (r *Reserver) Claimed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.claimed)
}
