package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Error kinds reported by Classify.
const (
	KindDuplicateKey = "duplicate_key"
	KindUnavailable  = "unavailable"
	KindTimeout      = "timeout"
	KindSchema       = "schema"
	KindUnknown      = "unknown"
)

// IsDuplicateKeyErr reports a unique constraint violation on any backend.
func IsDuplicateKeyErr(err error) bool {
	return Classify(err) == KindDuplicateKey
}

// Classify maps a driver error to a low-cardinality kind for logs and metrics.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return KindDuplicateKey
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}
	if errors.Is(err, driver.ErrBadConn) {
		return KindUnavailable
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return KindDuplicateKey
		case pgErr.Code == "42P01" || pgErr.Code == "42703":
			return KindSchema
		case strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P"):
			return KindUnavailable
		}
		return KindUnknown
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindUnavailable
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return KindDuplicateKey
	case strings.Contains(msg, "no such table"), strings.Contains(msg, "no such column"):
		return KindSchema
	case strings.Contains(msg, "database is locked"), strings.Contains(msg, "database is closed"):
		return KindUnavailable
	}
	return KindUnknown
}
