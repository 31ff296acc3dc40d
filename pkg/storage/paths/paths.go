// Package paths canonicalizes storage paths and classifies them by backend.
//
// A canonical path has no leading or trailing separator, no empty, "." or
// ".." segments, and "" denotes the storage root. Paths under the public root
// marker are served by the local backend; all others by the bucket.
package paths

import (
	"strings"
	"unicode"

	"github.com/certforge/certstore/pkg/storage"
)

const (
	// PublicRoot is the first segment of every publicly served path.
	PublicRoot = "public"

	// Separator separates path segments on every backend.
	Separator = "/"

	maxSegmentLen = 255
	maxPathLen    = 1024
)

// Location names the backend that owns a path.
type Location int

const (
	Local Location = iota
	Bucket
)

func (l Location) String() string {
	if l == Local {
		return "local"
	}
	return "bucket"
}

// IsPublicRoot reports whether p is empty, equals the public root marker or
// lies beneath it.
func IsPublicRoot(p string) bool {
	p = strings.TrimLeft(p, Separator)
	return p == "" || p == PublicRoot || strings.HasPrefix(p, PublicRoot+Separator)
}

// Classify returns the backend that owns p.
func Classify(p string) Location {
	if IsPublicRoot(p) {
		return Local
	}
	return Bucket
}

// ToDisplayPath strips the public root prefix for presentation. Both "" and
// the public root itself display as "". The result never starts with the
// public root, so applying it twice changes nothing.
func ToDisplayPath(p string) string {
	p = strings.Trim(p, Separator)
	for {
		switch {
		case p == PublicRoot:
			return ""
		case strings.HasPrefix(p, PublicRoot+Separator):
			p = strings.TrimLeft(p[len(PublicRoot)+1:], Separator)
		default:
			return p
		}
	}
}

// PublicKey strips exactly one public root prefix from p, giving the key of
// a public path inside the local tree. Unlike ToDisplayPath it keeps nested
// "public" segments, so distinct public paths map to distinct keys.
func PublicKey(p string) string {
	p = strings.Trim(p, Separator)
	if p == PublicRoot {
		return ""
	}
	return strings.TrimPrefix(p, PublicRoot+Separator)
}

// ToStoragePath maps a display path back to a storage path. It is the
// identity for now; backends that prefix keys hook in here.
func ToStoragePath(displayPath string) string {
	return displayPath
}

// Clean canonicalizes p. It returns an InvalidInput error for traversal
// segments, illegal characters and overlong paths.
func Clean(p string) (string, error) {
	raw := p
	p = strings.TrimSpace(p)
	if len(p) > maxPathLen {
		return "", storage.NewInvalidInputError(raw, "path is too long")
	}

	segs := strings.Split(p, Separator)
	out := segs[:0]
	for _, s := range segs {
		if s == "" {
			continue
		}
		if err := checkSegment(s); err != nil {
			return "", storage.NewInvalidInputError(raw, err.Error())
		}
		out = append(out, s)
	}
	return strings.Join(out, Separator), nil
}

// MustClean is Clean for literals known to be valid.
func MustClean(p string) string {
	c, err := Clean(p)
	if err != nil {
		panic(err)
	}
	return c
}

// ValidateName checks a single file or folder name supplied by a caller.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return storage.NewInvalidInputError(name, "name must not be empty")
	}
	if strings.Contains(name, Separator) {
		return storage.NewInvalidInputError(name, "name must not contain \"/\"")
	}
	if name != strings.TrimSpace(name) {
		return storage.NewInvalidInputError(name, "name must not start or end with whitespace")
	}
	if err := checkSegment(name); err != nil {
		return storage.NewInvalidInputError(name, err.Error())
	}
	return nil
}

type segmentError string

func (e segmentError) Error() string { return string(e) }

func checkSegment(s string) error {
	if s == "." || s == ".." {
		return segmentError("path must not contain \".\" or \"..\" segments")
	}
	if len(s) > maxSegmentLen {
		return segmentError("path segment is too long")
	}
	for _, r := range s {
		if unicode.IsControl(r) || strings.ContainsRune(`\<>:"|?*`, r) {
			return segmentError("path contains illegal character " + quoteRune(r))
		}
	}
	return nil
}

func quoteRune(r rune) string {
	if unicode.IsPrint(r) {
		return "'" + string(r) + "'"
	}
	return "control character"
}

// Join appends name to dir.
func Join(dir, name string) string {
	if dir == "" {
		return name
	}
	if name == "" {
		return dir
	}
	return dir + Separator + name
}

// Parent returns the directory containing p; the parent of a top-level path
// is the root "".
func Parent(p string) string {
	if i := strings.LastIndex(p, Separator); i >= 0 {
		return p[:i]
	}
	return ""
}

// Base returns the last segment of p.
func Base(p string) string {
	if i := strings.LastIndex(p, Separator); i >= 0 {
		return p[i+1:]
	}
	return p
}

// Ancestors returns every ancestor of p from the root "" down to, but not
// including, p. The root has no ancestors.
func Ancestors(p string) []string {
	if p == "" {
		return nil
	}
	out := []string{""}
	for i := 0; i < len(p); i++ {
		if p[i] == Separator[0] {
			out = append(out, p[:i])
		}
	}
	return out
}

// Chain returns Ancestors(p) followed by p itself.
func Chain(p string) []string {
	return append(Ancestors(p), p)
}

// IsWithin reports whether p equals dir or lies beneath it.
func IsWithin(p, dir string) bool {
	if dir == "" {
		return true
	}
	return p == dir || strings.HasPrefix(p, dir+Separator)
}

// Overlaps reports whether either path contains the other.
func Overlaps(a, b string) bool {
	return IsWithin(a, b) || IsWithin(b, a)
}

// Rebase moves p from under oldDir to under newDir. p must be within oldDir.
func Rebase(p, oldDir, newDir string) string {
	if p == oldDir {
		return newDir
	}
	rel := strings.TrimPrefix(p, oldDir+Separator)
	if oldDir == "" {
		rel = p
	}
	return Join(newDir, rel)
}
