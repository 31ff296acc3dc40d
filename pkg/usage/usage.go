// Package usage is the registry of references from application entities to
// stored files.
//
// Callers that attach a file to an entity (a template background, an element
// image) register a usage; callers that detach it deregister. A file with at
// least one live usage cannot be deleted or moved. The registry never scans
// other tables to discover references.
package usage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrDuplicate is returned by stores when the record's tuple already exists.
var ErrDuplicate = errors.New("usage record already exists")

// Record is one reference from an entity to a file.
type Record struct {
	ID             string    `json:"id"`
	FilePath       string    `json:"filePath"`
	ReferenceID    string    `json:"referenceId"`
	ReferenceTable string    `json:"referenceTable"`
	UsageType      string    `json:"usageType"`
	Created        time.Time `json:"created"`
}

// Tuple is the identity of a record. Registering the same tuple twice yields
// one record.
type Tuple struct {
	FilePath       string
	ReferenceID    string
	ReferenceTable string
	UsageType      string
}

// Tuple returns the identity of r.
func (r Record) Tuple() Tuple {
	return Tuple{FilePath: r.FilePath, ReferenceID: r.ReferenceID, ReferenceTable: r.ReferenceTable, UsageType: r.UsageType}
}

// Store persists usage records.
//
// Implementations must be safe for concurrent use and make Insert atomic: two
// concurrent inserts of the same tuple leave exactly one record.
type Store interface {
	// Insert stores rec unless its tuple exists. It returns the stored record
	// and whether it was created by this call.
	Insert(ctx context.Context, rec Record) (Record, bool, error)

	// Delete removes every record of filePath held by the reference, whatever
	// its usage type, and returns how many were removed.
	Delete(ctx context.Context, filePath, referenceID, referenceTable string) (int, error)

	// DeleteReference removes every record held by the reference.
	DeleteReference(ctx context.Context, referenceTable, referenceID string) (int, error)

	// ListByPath returns the records of one file.
	ListByPath(ctx context.Context, filePath string) ([]Record, error)

	// ListUnder returns the records of dir and every path beneath it. An empty
	// dir lists everything.
	ListUnder(ctx context.Context, dir string) ([]Record, error)

	// ListByReference returns the records held by one entity.
	ListByReference(ctx context.Context, referenceTable, referenceID string) ([]Record, error)

	// Healthcheck verifies the store is reachable.
	Healthcheck(ctx context.Context) error

	Close() error
}

// CheckResult answers "is this file in use and may it be deleted".
type CheckResult struct {
	FilePath          string   `json:"filePath"`
	IsInUse           bool     `json:"isInUse"`
	Usages            []Record `json:"usages"`
	CanDelete         bool     `json:"canDelete"`
	DeleteBlockReason string   `json:"deleteBlockReason,omitempty"`
}

// NewCheckResult builds the result for the usages of filePath.
func NewCheckResult(filePath string, usages []Record) *CheckResult {
	if usages == nil {
		usages = []Record{}
	}
	res := &CheckResult{
		FilePath:  filePath,
		IsInUse:   len(usages) > 0,
		Usages:    usages,
		CanDelete: len(usages) == 0,
	}
	if res.IsInUse {
		res.DeleteBlockReason = BlockReason(usages)
	}
	return res
}

// BlockReason summarizes the distinct (referenceTable, usageType) pairs of
// records, e.g. "File is in use by: element (element-image), template
// (template-background)". It returns "" for no records.
func BlockReason(records []Record) string {
	if len(records) == 0 {
		return ""
	}
	seen := make(map[string]struct{}, len(records))
	var pairs []string
	for _, r := range records {
		p := fmt.Sprintf("%s (%s)", r.ReferenceTable, r.UsageType)
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		pairs = append(pairs, p)
	}
	sort.Strings(pairs)
	return "File is in use by: " + strings.Join(pairs, ", ")
}

// SortRecords orders records by creation time, then by tuple, so listings are
// stable across stores.
func SortRecords(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.Created.Equal(b.Created) {
			return a.Created.Before(b.Created)
		}
		if a.FilePath != b.FilePath {
			return a.FilePath < b.FilePath
		}
		if a.ReferenceTable != b.ReferenceTable {
			return a.ReferenceTable < b.ReferenceTable
		}
		if a.ReferenceID != b.ReferenceID {
			return a.ReferenceID < b.ReferenceID
		}
		return a.UsageType < b.UsageType
	})
}
