package store

import (
	"context"
	"unicode/utf8"

	"gorm.io/gorm"
)

// getByField retrieves a single record of type T by matching field=value and
// converts gorm.ErrRecordNotFound to notFoundErr.
func getByField[T any](db *gorm.DB, ctx context.Context, field string, value any, notFoundErr error) (*T, error) {
	var result T
	if err := db.WithContext(ctx).Where(field+" = ?", value).First(&result).Error; err != nil {
		return nil, convertNotFoundError(err, notFoundErr)
	}
	return &result, nil
}

// Path scoping compares prefixes with substr rather than LIKE: SQLite's LIKE
// is case-insensitive and both dialects count substr in characters.

// underPath scopes q to rows whose column lies strictly below dir. The root
// ("") covers every non-root row.
func underPath(q *gorm.DB, column, dir string) *gorm.DB {
	if dir == "" {
		return q.Where(column + " <> ''")
	}
	prefix := dir + "/"
	return q.Where("substr("+column+", 1, ?) = ?", utf8.RuneCountInString(prefix), prefix)
}

// withinPath scopes q to dir and its descendants.
func withinPath(q *gorm.DB, column, dir string) *gorm.DB {
	if dir == "" {
		return q.Where("1 = 1")
	}
	prefix := dir + "/"
	return q.Where("("+column+" = ? OR substr("+column+", 1, ?) = ?)", dir, utf8.RuneCountInString(prefix), prefix)
}
