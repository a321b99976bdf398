package ledger

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/rpc"
)

// EthBackend implements ChainBackend over JSON-RPC with a local signing key.
type EthBackend struct {
	client   *ethclient.Client
	contract common.Address
	key      *ecdsa.PrivateKey
	from     common.Address
	chainID  *big.Int
	signer   types.Signer

	// nonces are handed out under mu so concurrent anchors do not collide.
	mu sync.Mutex
}

// DialEth connects to rpcURL and loads the hex encoded signing key.
func DialEth(ctx context.Context, rpcURL, contractAddress, privateKeyHex string) (*EthBackend, error) {
	if !common.IsHexAddress(contractAddress) {
		return nil, fmt.Errorf("invalid contract address %q", contractAddress)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse ledger private key: %w", err)
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("read chain id: %w", err)
	}
	return &EthBackend{
		client:   client,
		contract: common.HexToAddress(contractAddress),
		key:      key,
		from:     crypto.PubkeyToAddress(key.PublicKey),
		chainID:  chainID,
		signer:   types.LatestSignerForChainID(chainID),
	}, nil
}

func (b *EthBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return b.client.SuggestGasPrice(ctx)
}

func (b *EthBackend) EstimateGas(ctx context.Context, data []byte) (uint64, error) {
	return b.client.EstimateGas(ctx, ethereum.CallMsg{From: b.from, To: &b.contract, Data: data})
}

func (b *EthBackend) sign(nonce uint64, req TxRequest) (*types.Transaction, error) {
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: req.GasPrice,
		Gas:      req.Gas,
		To:       &b.contract,
		Value:    big.NewInt(0),
		Data:     req.Data,
	})
	return types.SignTx(tx, b.signer, b.key)
}

func (b *EthBackend) Send(ctx context.Context, req TxRequest) (*Receipt, error) {
	b.mu.Lock()
	nonce, err := b.client.PendingNonceAt(ctx, b.from)
	if err != nil {
		b.mu.Unlock()
		return nil, fmt.Errorf("read nonce: %w", err)
	}
	tx, err := b.sign(nonce, req)
	if err != nil {
		b.mu.Unlock()
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	err = b.client.SendTransaction(ctx, tx)
	b.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("send transaction: %w", err)
	}
	return b.waitMined(ctx, tx)
}

func (b *EthBackend) SendBatch(ctx context.Context, reqs []TxRequest) ([]*Receipt, []error, error) {
	b.mu.Lock()
	nonce, err := b.client.PendingNonceAt(ctx, b.from)
	if err != nil {
		b.mu.Unlock()
		return nil, nil, fmt.Errorf("read nonce: %w", err)
	}

	txs := make([]*types.Transaction, len(reqs))
	errs := make([]error, len(reqs))
	elems := make([]rpc.BatchElem, 0, len(reqs))
	index := make([]int, 0, len(reqs))
	hashes := make([]common.Hash, len(reqs))
	for i, req := range reqs {
		tx, err := b.sign(nonce, req)
		if err != nil {
			errs[i] = fmt.Errorf("sign transaction: %w", err)
			continue
		}
		raw, err := tx.MarshalBinary()
		if err != nil {
			errs[i] = fmt.Errorf("encode transaction: %w", err)
			continue
		}
		nonce++
		txs[i] = tx
		elems = append(elems, rpc.BatchElem{
			Method: "eth_sendRawTransaction",
			Args:   []interface{}{hexutil.Encode(raw)},
			Result: &hashes[i],
		})
		index = append(index, i)
	}

	receipts := make([]*Receipt, len(reqs))
	if len(elems) == 0 {
		b.mu.Unlock()
		return receipts, errs, nil
	}
	if err := b.client.Client().BatchCallContext(ctx, elems); err != nil {
		b.mu.Unlock()
		return nil, nil, fmt.Errorf("batch send: %w", err)
	}
	gap, stuck := b.fillGaps(ctx, elems, index, txs)
	b.mu.Unlock()

	for j, elem := range elems {
		i := index[j]
		switch {
		case elem.Error != nil:
			errs[i] = fmt.Errorf("send transaction: %w", elem.Error)
		case stuck && txs[i].Nonce() > gap:
			errs[i] = fmt.Errorf("transaction %s: %w %d", txs[i].Hash().Hex(), ErrNonceGap, gap)
		default:
			receipts[i], errs[i] = b.waitMined(ctx, txs[i])
		}
	}
	return receipts, errs, nil
}

// fillGaps takes the nonce of every rejected batch element that has an
// accepted element above it, using a zero value transfer to our own address.
// Without this the accepted transactions would never be mined. It returns the
// lowest nonce it could not fill.
func (b *EthBackend) fillGaps(ctx context.Context, elems []rpc.BatchElem, index []int, txs []*types.Transaction) (uint64, bool) {
	var top uint64
	accepted := false
	for j, elem := range elems {
		if elem.Error == nil {
			top = txs[index[j]].Nonce()
			accepted = true
		}
	}
	if !accepted {
		return 0, false
	}

	for j, elem := range elems {
		tx := txs[index[j]]
		if elem.Error == nil || tx.Nonce() > top {
			continue
		}
		if err := b.fillNonce(ctx, tx.Nonce(), tx.GasPrice()); err != nil {
			return tx.Nonce(), true
		}
	}
	return 0, false
}

func (b *EthBackend) fillNonce(ctx context.Context, nonce uint64, gasPrice *big.Int) error {
	tx, err := types.SignTx(types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      params.TxGas,
		To:       &b.from,
		Value:    big.NewInt(0),
	}), b.signer, b.key)
	if err != nil {
		return err
	}
	err = b.client.SendTransaction(ctx, tx)
	if err != nil && (strings.Contains(err.Error(), "nonce too low") || strings.Contains(err.Error(), "already known")) {
		// The nonce is already taken, so there is no gap.
		return nil
	}
	return err
}

func (b *EthBackend) waitMined(ctx context.Context, tx *types.Transaction) (*Receipt, error) {
	receipt, err := bind.WaitMined(ctx, b.client, tx)
	if err != nil {
		return nil, fmt.Errorf("wait for %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("transaction %s: %w", tx.Hash().Hex(), ErrReverted)
	}
	return &Receipt{TxHash: receipt.TxHash.Hex(), BlockNumber: receipt.BlockNumber.Uint64()}, nil
}

func (b *EthBackend) Call(ctx context.Context, data []byte) ([]byte, error) {
	out, err := b.client.CallContract(ctx, ethereum.CallMsg{From: b.from, To: &b.contract, Data: data}, nil)
	if err != nil {
		if strings.Contains(err.Error(), "execution reverted") {
			return nil, fmt.Errorf("%w: %v", ErrReverted, err)
		}
		return nil, err
	}
	return out, nil
}

func (b *EthBackend) Ping(ctx context.Context) error {
	_, err := b.client.BlockNumber(ctx)
	return err
}

func (b *EthBackend) Close() {
	b.client.Close()
}
