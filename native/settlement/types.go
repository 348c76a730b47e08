package settlement

import "math/big"

// Order is the solver-supplied settlement terms for a fill. Every field
// except ReceiveAmount must match the stored intent exactly; ReceiveAmount
// is what the solver actually delivers and must clear both the intent's
// minimum and the price locked at claim time.
type Order struct {
	User          [20]byte
	InputAsset    string
	OutputAsset   string
	InputAmount   *big.Int
	MinReceive    *big.Int
	ReceiveAmount *big.Int
}

// Clone returns a deep copy of the order.
func (o Order) Clone() Order {
	clone := o
	if o.InputAmount != nil {
		clone.InputAmount = new(big.Int).Set(o.InputAmount)
	}
	if o.MinReceive != nil {
		clone.MinReceive = new(big.Int).Set(o.MinReceive)
	}
	if o.ReceiveAmount != nil {
		clone.ReceiveAmount = new(big.Int).Set(o.ReceiveAmount)
	}
	return clone
}
