package ports

import "context"

// Tx is an opaque transaction handle; infrastructure owns the concrete type
// (here, *gorm.DB).
type Tx interface{}

// UnitOfWork is a callback-style transaction boundary: an error from fn
// rolls back, nil commits.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

// WithTxContext binds a transaction handle to the context.
func WithTxContext(ctx context.Context, tx Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext reads the bound transaction handle, if any.
func TxFromContext(ctx context.Context) Tx {
	return ctx.Value(txKey{})
}
