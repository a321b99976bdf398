package ledger

import (
	"context"
	"math/big"
)

// TxRequest is one contract call ready to be signed and sent.
type TxRequest struct {
	Data     []byte
	GasPrice *big.Int
	Gas      uint64
}

// Receipt identifies a mined transaction.
type Receipt struct {
	TxHash      string
	BlockNumber uint64
}

// ChainBackend is the chain RPC surface the anchor needs. All calls target
// the booking contract.
type ChainBackend interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, data []byte) (uint64, error)
	// Send signs, submits and waits for the transaction to be mined.
	Send(ctx context.Context, req TxRequest) (*Receipt, error)
	// SendBatch submits several transactions in one RPC round-trip and
	// reports each one individually.
	SendBatch(ctx context.Context, reqs []TxRequest) ([]*Receipt, []error, error)
	// Call runs a read-only call. It returns ErrReverted when the contract
	// reverts.
	Call(ctx context.Context, data []byte) ([]byte, error)
	Ping(ctx context.Context) error
}
