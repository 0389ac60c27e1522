package domain

import "time"

// Trade is one half-record of an execution: a single execution always
// produces exactly two half-records, one per counterparty side, sharing
// size, price and timestamp (I5).
type Trade struct {
	OrderID   uint64
	Owner     string
	Side      Side
	Kind      Kind
	Size      int64
	Price     int64
	Timestamp time.Time
}

// Execution is the pair of half-records produced by a single match, plus
// the counterparty usernames needed to build fill notifications. It is
// the payload matching.OnTrade delivers to its caller.
type Execution struct {
	BidHalf       Trade
	AskHalf       Trade
	BidOwner      string
	AskOwner      string
	ExecutionTime time.Time
}
