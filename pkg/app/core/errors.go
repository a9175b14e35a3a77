package core

import "errors"

var (
	// ErrInsufficientInventory rejects a sell larger than the seller's holding.
	ErrInsufficientInventory = errors.New("insufficient inventory")
	// ErrNonPositiveQuantity rejects zero, negative or NaN quantities.
	ErrNonPositiveQuantity = errors.New("quantity must be positive")
	ErrInvalidPrice        = errors.New("price must be positive")
	ErrUnknownAsset        = errors.New("unknown asset")
	ErrUnknownParticipant  = errors.New("unknown participant")
	ErrUnknownOrder        = errors.New("unknown order")
	// ErrNotUnbounded rejects quoting without escrow by a bounded participant.
	ErrNotUnbounded = errors.New("participant is not unbounded")
)
