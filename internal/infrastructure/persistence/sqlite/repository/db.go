package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"driftline/internal/ports"
)

// dbFrom prefers the transaction bound to ctx by the unit of work and falls
// back to the repository's own handle.
func dbFrom(ctx context.Context, fallback *gorm.DB) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return fallback.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}
