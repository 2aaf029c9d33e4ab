package contracts

import "context"

// Transactor runs fn inside one storage transaction. The transaction rides
// on the context handed to fn; repository calls made with that context join
// it. fn returning an error rolls the transaction back.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
