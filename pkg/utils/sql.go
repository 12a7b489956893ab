package utils

import (
	"fmt"

	"gorm.io/gorm"
)

type DBOption func(*gorm.DB) *gorm.DB

func ApplyOptions(db *gorm.DB, opts ...DBOption) *gorm.DB {
	for _, opt := range opts {
		db = opt(db)
	}
	return db
}

// WithTx swaps the session for tx, keeping the caller's context.
func WithTx(tx *gorm.DB) DBOption {
	return func(db *gorm.DB) *gorm.DB {
		if db != nil && db.Statement != nil && db.Statement.Context != nil {
			return tx.WithContext(db.Statement.Context)
		}
		return tx
	}
}

func WithWhere(query interface{}, args ...interface{}) DBOption {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(query, args...)
	}
}

// WithPage applies skip/limit. A non-positive limit is replaced by max, and a
// limit above max is clamped.
func WithPage(skip, limit, max int) DBOption {
	return func(db *gorm.DB) *gorm.DB {
		if limit <= 0 || (max > 0 && limit > max) {
			limit = max
		}
		if limit > 0 {
			db = db.Limit(limit)
		}
		if skip > 0 {
			db = db.Offset(skip)
		}
		return db
	}
}

// WithOrder sorts by column when it is one of allowed, falling back to fallback.
func WithOrder(column string, desc bool, allowed []string, fallback string) DBOption {
	return func(db *gorm.DB) *gorm.DB {
		if !ContainsString(allowed, column) {
			column = fallback
		}
		dir := "ASC"
		if desc {
			dir = "DESC"
		}
		return db.Order(fmt.Sprintf("%s %s", column, dir))
	}
}
