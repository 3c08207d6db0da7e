package models

import (
	"context"
	"math/big"
)

// Transfer is a decoded Transfer(address,address,uint256) event.
type Transfer struct {
	Token       string
	From        string
	To          string
	Amount      *big.Int
	TxHash      string
	BlockNumber uint64
}

// TransferHandler receives the single event of a one-shot watch, or the
// error that ended the watch before any event arrived.
type TransferHandler func(transfer *Transfer, err error)

// WatchSubscription is an active upstream log subscription.
type WatchSubscription interface {
	Unsubscribe()
}

// BlockchainService represents a service that interacts with a blockchain.
type BlockchainService interface {
	// Symbol calls symbol() on the token contract. It fails when the address
	// is not a deployed token.
	Symbol(ctx context.Context, token string) (string, error)
	// WatchTransferOnce subscribes to the token's Transfer event and calls
	// handler exactly once.
	WatchTransferOnce(ctx context.Context, token string, handler TransferHandler) (WatchSubscription, error)
	Close() error
}
