// Package storage holds the domain types shared by the certstore storage
// subsystem: storage items, directory permissions, operation results and the
// error taxonomy.
//
// Paths are canonical storage paths ("public/certs/2024/a.png"). Anything under
// the public root is served by the local filesystem backend; everything else
// lives in the bucket. See package paths for the rules.
package storage
