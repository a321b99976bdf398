package ledger

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Version string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error,omitempty"`
}

// fakeNode is a JSON-RPC node that mines a transaction only once every lower
// nonce from base has been accepted, like a real mempool.
type fakeNode struct {
	base        uint64
	rejectFirst bool
	rejectFill  bool

	mu       sync.Mutex
	accepted map[uint64]*types.Transaction
	fills    []*types.Transaction
}

func newFakeNode(base uint64) *fakeNode {
	return &fakeNode{base: base, accepted: map[uint64]*types.Transaction{}}
}

func (n *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	w.Header().Set("Content-Type", "application/json")

	if strings.HasPrefix(strings.TrimSpace(string(body)), "[") {
		var reqs []rpcRequest
		_ = json.Unmarshal(body, &reqs)
		out := make([]rpcResponse, len(reqs))
		for i, req := range reqs {
			out[i] = n.handle(req, true, i)
		}
		_ = json.NewEncoder(w).Encode(out)
		return
	}
	var req rpcRequest
	_ = json.Unmarshal(body, &req)
	_ = json.NewEncoder(w).Encode(n.handle(req, false, 0))
}

func (n *fakeNode) handle(req rpcRequest, batched bool, pos int) rpcResponse {
	resp := rpcResponse{Version: "2.0", ID: req.ID}
	result := func(v any) rpcResponse {
		resp.Result, _ = json.Marshal(v)
		return resp
	}
	fail := func(msg string) rpcResponse {
		resp.Error = &rpcError{Code: -32000, Message: msg}
		return resp
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	switch req.Method {
	case "eth_chainId":
		return result("0x539")
	case "eth_getTransactionCount":
		return result(hexutil.EncodeUint64(n.base))
	case "eth_sendRawTransaction":
		var rawHex string
		_ = json.Unmarshal(req.Params[0], &rawHex)
		raw, _ := hexutil.Decode(rawHex)
		tx := new(types.Transaction)
		if err := tx.UnmarshalBinary(raw); err != nil {
			return fail(err.Error())
		}
		if batched && pos == 0 && n.rejectFirst {
			return fail("replacement transaction underpriced")
		}
		if !batched {
			if n.rejectFill {
				return fail("txpool is full")
			}
			n.fills = append(n.fills, tx)
		}
		n.accepted[tx.Nonce()] = tx
		return result(tx.Hash())
	case "eth_getTransactionReceipt":
		var hash common.Hash
		_ = json.Unmarshal(req.Params[0], &hash)
		for nonce, tx := range n.accepted {
			if tx.Hash() == hash && n.minable(nonce) {
				return result(map[string]any{
					"status":            "0x1",
					"cumulativeGasUsed": "0x5208",
					"gasUsed":           "0x5208",
					"logsBloom":         "0x" + strings.Repeat("0", 512),
					"logs":              []any{},
					"transactionHash":   hash,
					"blockNumber":       hexutil.EncodeUint64(100 + nonce),
					"transactionIndex":  "0x0",
				})
			}
		}
		return result(nil)
	default:
		return fail("method not supported: " + req.Method)
	}
}

func (n *fakeNode) minable(nonce uint64) bool {
	for k := n.base; k <= nonce; k++ {
		if _, ok := n.accepted[k]; !ok {
			return false
		}
	}
	return true
}

func dialFakeNode(t *testing.T, node *fakeNode) *EthBackend {
	t.Helper()
	srv := httptest.NewServer(node)
	t.Cleanup(srv.Close)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	backend, err := DialEth(context.Background(), srv.URL, "0x000000000000000000000000000000000000b00c", hex.EncodeToString(crypto.FromECDSA(key)))
	require.NoError(t, err)
	t.Cleanup(backend.Close)
	return backend
}

func batchRequests(n int) []TxRequest {
	reqs := make([]TxRequest, n)
	for i := range reqs {
		reqs[i] = TxRequest{Data: []byte{byte(i + 1)}, GasPrice: big.NewInt(1_000_000_000), Gas: 100_000}
	}
	return reqs
}

func TestSendBatchFillsRejectedNonce(t *testing.T) {
	node := newFakeNode(7)
	node.rejectFirst = true
	backend := dialFakeNode(t, node)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	receipts, errs, err := backend.SendBatch(ctx, batchRequests(3))
	require.NoError(t, err)
	require.Len(t, errs, 3)

	assert.Error(t, errs[0])
	assert.Nil(t, receipts[0])
	for i := 1; i < 3; i++ {
		require.NoError(t, errs[i], "transaction %d", i)
		require.NotNil(t, receipts[i])
	}
	assert.Equal(t, uint64(108), receipts[1].BlockNumber)

	require.Len(t, node.fills, 1)
	fill := node.fills[0]
	assert.Equal(t, uint64(7), fill.Nonce())
	assert.Equal(t, backend.from, *fill.To())
	assert.Zero(t, fill.Value().Sign())
	assert.Equal(t, int64(1_000_000_000), fill.GasPrice().Int64())
}

func TestSendBatchReportsUnfilledGap(t *testing.T) {
	node := newFakeNode(7)
	node.rejectFirst = true
	node.rejectFill = true
	backend := dialFakeNode(t, node)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	receipts, errs, err := backend.SendBatch(ctx, batchRequests(3))
	require.NoError(t, err)

	assert.Error(t, errs[0])
	for i := 1; i < 3; i++ {
		assert.ErrorIs(t, errs[i], ErrNonceGap)
		assert.Nil(t, receipts[i])
	}
	assert.NoError(t, ctx.Err(), "stuck transactions are reported without waiting for them")
}

func TestSendBatchWithoutRejectionsSendsNoFill(t *testing.T) {
	node := newFakeNode(3)
	backend := dialFakeNode(t, node)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	receipts, errs, err := backend.SendBatch(ctx, batchRequests(2))
	require.NoError(t, err)
	for i := range errs {
		require.NoError(t, errs[i])
		require.NotNil(t, receipts[i])
	}
	assert.Empty(t, node.fills)
}
