package output

import "context"

// TransactionManager runs a function inside a database transaction. The
// transaction travels in the context; repositories pick it up and fall
// back to the plain connection when none is present.
type TransactionManager interface {
	// InTransaction begins a transaction, runs fn with a context that
	// carries it, and commits. Any error from fn rolls the transaction
	// back and is returned unchanged.
	InTransaction(ctx context.Context, fn func(txCtx context.Context) error) error
}
