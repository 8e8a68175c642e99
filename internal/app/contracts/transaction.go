package contracts

import "context"

// TransactionManager runs a function inside a storage transaction. The Mongo
// implementation uses sessions with bounded retry on transient labels; the
// sequential implementation is the best-effort fallback for deployments
// without replica-set transactions.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(sessCtx context.Context) (interface{}, error)) (interface{}, error)
}
