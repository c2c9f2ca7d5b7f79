package repository

import (
	"context"
	"database/sql"

	"gorm.io/gorm"
)

type txKey struct{}

// TxManager runs functions inside a serializable database transaction.
// The transaction handle travels in the context so every repository method
// invoked within fn joins the same transaction.
type TxManager struct {
	db *gorm.DB
}

// NewTxManager creates a new TxManager.
func NewTxManager(db *gorm.DB) *TxManager {
	return &TxManager{db: db}
}

// WithTx executes fn inside a serializable transaction. Reservation flows
// depend on this level so two claims for the last capacity slot cannot
// both commit.
func (m *TxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
}

// conn returns the transaction bound to ctx when present, otherwise the
// repository's own connection.
func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return db.WithContext(ctx)
}
