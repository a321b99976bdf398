package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"villagestay/database/repository/store"
	"villagestay/models"
	"villagestay/services/batch"
	"villagestay/utils"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/params"
	"go.uber.org/zap"
)

// Ledger record types.
const (
	RecordBooking = "booking"
	RecordRating  = "rating"
)

const maxRating = 5

// Options tune the anchor's gas policy and deadlines.
type Options struct {
	Timeout         time.Duration
	FallbackGasGwei int64
}

// Anchor commits booking and rating references to the booking log contract.
type Anchor struct {
	chain       ChainBackend
	contract    abi.ABI
	refs        store.BookingStore
	logger      *zap.Logger
	metrics     *utils.Metrics
	timeout     time.Duration
	fallbackGas *big.Int
	now         func() time.Time
}

// BookingEntry is what the contract holds for a booking id.
type BookingEntry struct {
	Address string `json:"address"`
	Amount  int64  `json:"amount"`
	Exists  bool   `json:"exists"`
}

// Operation is one queued anchor call.
type Operation struct {
	Type      string
	BookingID string
	Address   string
	Amount    int64
	Rating    int
}

func NewAnchor(chain ChainBackend, refs store.BookingStore, logger *zap.Logger, metrics *utils.Metrics, opts Options) (*Anchor, error) {
	parsed, err := abi.JSON(strings.NewReader(bookingLogABI))
	if err != nil {
		return nil, fmt.Errorf("parse contract abi: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 90 * time.Second
	}
	if opts.FallbackGasGwei <= 0 {
		opts.FallbackGasGwei = 20
	}
	return &Anchor{
		chain:       chain,
		contract:    parsed,
		refs:        refs,
		logger:      logger,
		metrics:     metrics,
		timeout:     opts.Timeout,
		fallbackGas: new(big.Int).Mul(big.NewInt(opts.FallbackGasGwei), big.NewInt(params.GWei)),
		now:         time.Now,
	}, nil
}

// GasPrice returns 90% of the network's suggested price, or the fallback
// price when the network cannot be asked.
func (a *Anchor) GasPrice(ctx context.Context) *big.Int {
	observed, err := a.chain.SuggestGasPrice(ctx)
	if err != nil || observed == nil || observed.Sign() <= 0 {
		a.logger.Warn("Using fallback gas price", zap.String("fallbackWei", a.fallbackGas.String()), zap.Error(err))
		return new(big.Int).Set(a.fallbackGas)
	}
	price := new(big.Int).Mul(observed, big.NewInt(9))
	return price.Div(price, big.NewInt(10))
}

// bufferGas adds a 10% margin to an estimate, rounding down.
func bufferGas(estimate uint64) uint64 {
	return estimate * 11 / 10
}

func (a *Anchor) pack(op Operation) ([]byte, error) {
	switch op.Type {
	case RecordBooking:
		if op.Amount < 0 {
			return nil, fmt.Errorf("negative amount %d", op.Amount)
		}
		return a.contract.Pack(methodLogBooking, op.BookingID, op.Address, big.NewInt(op.Amount))
	case RecordRating:
		if op.Rating < 0 || op.Rating > maxRating {
			return nil, fmt.Errorf("rating %d out of range", op.Rating)
		}
		return a.contract.Pack(methodLogRating, op.BookingID, uint8(op.Rating), op.Address)
	default:
		return nil, fmt.Errorf("unknown operation %q", op.Type)
	}
}

// prepare packs op and estimates its gas at the given price.
func (a *Anchor) prepare(ctx context.Context, op Operation, gasPrice *big.Int) (TxRequest, error) {
	data, err := a.pack(op)
	if err != nil {
		return TxRequest{}, err
	}
	estimate, err := a.chain.EstimateGas(ctx, data)
	if err != nil {
		return TxRequest{}, fmt.Errorf("estimate gas: %w", err)
	}
	return TxRequest{Data: data, GasPrice: gasPrice, Gas: bufferGas(estimate)}, nil
}

func (a *Anchor) commit(ctx context.Context, op Operation) (ref *models.LedgerReference, err error) {
	defer func() { a.metrics.ObserveLedger(op.Type, err) }()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req, err := a.prepare(ctx, op, a.GasPrice(ctx))
	if err != nil {
		return nil, commitFailed(op.Type, err)
	}
	receipt, err := a.chain.Send(ctx, req)
	if err != nil {
		return nil, commitFailed(op.Type, err)
	}
	ref = a.reference(op, receipt)
	a.record(ctx, op, ref)
	return ref, nil
}

func (a *Anchor) reference(op Operation, r *Receipt) *models.LedgerReference {
	ref := &models.LedgerReference{TxHash: r.TxHash, BlockNumber: r.BlockNumber, Address: op.Address}
	if op.Type == RecordBooking {
		ref.Amount = op.Amount
	} else {
		ref.Rating = op.Rating
	}
	return ref
}

// record keeps a copy of the anchoring transaction in the booking store. The
// transaction is already mined, so a store failure is only logged.
func (a *Anchor) record(ctx context.Context, op Operation, ref *models.LedgerReference) {
	id := op.BookingID
	if op.Type == RecordRating {
		id = op.BookingID + "_rating"
	}
	rec := models.LedgerRecord{
		ID:          id,
		BookingID:   op.BookingID,
		Type:        op.Type,
		TxHash:      ref.TxHash,
		BlockNumber: ref.BlockNumber,
		Address:     ref.Address,
		Amount:      ref.Amount,
		Rating:      ref.Rating,
		CreatedAt:   a.now().UTC(),
	}
	if err := a.refs.Put(ctx, store.CollectionTransactions, id, rec); err != nil {
		a.logger.Error("Failed to record ledger transaction", zap.String("bookingId", op.BookingID), zap.String("txHash", ref.TxHash), zap.Error(err))
	}
}

// AnchorBooking logs the booking's archive address and amount on-chain.
func (a *Anchor) AnchorBooking(ctx context.Context, bookingID, contentAddress string, amount int64) (*models.LedgerReference, error) {
	return a.commit(ctx, Operation{Type: RecordBooking, BookingID: bookingID, Address: contentAddress, Amount: amount})
}

// AnchorRating logs a rating and its review's archive address on-chain.
func (a *Anchor) AnchorRating(ctx context.Context, bookingID string, rating int, reviewAddress string) (*models.LedgerReference, error) {
	return a.commit(ctx, Operation{Type: RecordRating, BookingID: bookingID, Address: reviewAddress, Rating: rating})
}

// QueryBooking reads the anchored entry for bookingID. An absent entry is
// reported with Exists false.
func (a *Anchor) QueryBooking(ctx context.Context, bookingID string) (entry *BookingEntry, err error) {
	defer func() { a.metrics.ObserveLedger("query", err) }()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	data, err := a.contract.Pack(methodGetBooking, bookingID)
	if err != nil {
		return nil, queryFailed("query", err)
	}
	out, err := a.chain.Call(ctx, data)
	if err != nil {
		if errors.Is(err, ErrReverted) {
			return &BookingEntry{}, nil
		}
		return nil, queryFailed("query", err)
	}
	if len(out) == 0 {
		return &BookingEntry{}, nil
	}

	values, err := a.contract.Unpack(methodGetBooking, out)
	if err != nil {
		return nil, queryFailed("query", fmt.Errorf("decode getBooking: %w", err))
	}
	if len(values) != 3 {
		return nil, queryFailed("query", fmt.Errorf("getBooking returned %d values", len(values)))
	}
	address, _ := values[0].(string)
	amount, _ := values[1].(*big.Int)
	exists, _ := values[2].(bool)
	if !exists {
		return &BookingEntry{}, nil
	}
	entry = &BookingEntry{Address: address, Exists: true}
	if amount != nil {
		if !amount.IsInt64() {
			return nil, queryFailed("query", fmt.Errorf("amount %s overflows int64", amount))
		}
		entry.Amount = amount.Int64()
	}
	return entry, nil
}

// AnchorBatch submits several anchor calls in one round-trip at a single gas
// price. Outcomes are reported per operation.
func (a *Anchor) AnchorBatch(ctx context.Context, ops []Operation) []batch.Outcome[Operation, *models.LedgerReference] {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	b := batch.New(func(ctx context.Context, ops []Operation) ([]*models.LedgerReference, []error, error) {
		gasPrice := a.GasPrice(ctx)
		refs := make([]*models.LedgerReference, len(ops))
		errs := make([]error, len(ops))

		reqs := make([]TxRequest, 0, len(ops))
		index := make([]int, 0, len(ops))
		for i, op := range ops {
			req, err := a.prepare(ctx, op, gasPrice)
			if err != nil {
				errs[i] = commitFailed(op.Type, err)
				continue
			}
			reqs = append(reqs, req)
			index = append(index, i)
		}
		if len(reqs) == 0 {
			return refs, errs, nil
		}

		receipts, sendErrs, err := a.chain.SendBatch(ctx, reqs)
		if err != nil {
			return nil, nil, commitFailed("batch", err)
		}
		for j, i := range index {
			switch {
			case j < len(sendErrs) && sendErrs[j] != nil:
				errs[i] = commitFailed(ops[i].Type, sendErrs[j])
			case j >= len(receipts) || receipts[j] == nil:
				errs[i] = commitFailed(ops[i].Type, errors.New("no receipt"))
			default:
				refs[i] = a.reference(ops[i], receipts[j])
				a.record(ctx, ops[i], refs[i])
			}
		}
		return refs, errs, nil
	})

	for _, op := range ops {
		b.Add(op)
	}
	outcomes := b.Flush(ctx)
	for _, o := range outcomes {
		a.metrics.ObserveLedger("batch_"+o.Op.Type, o.Err)
	}
	return outcomes
}

// Ping checks the chain backend.
func (a *Anchor) Ping(ctx context.Context) error {
	return a.chain.Ping(ctx)
}
