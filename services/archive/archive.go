package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"villagestay/database/repository/store"
	"villagestay/models"
	"villagestay/services/batch"
	"villagestay/utils"

	"go.uber.org/zap"
)

// Archive stores immutable booking and review records in a content-addressed
// blob store and remembers which address belongs to which record.
type Archive struct {
	blobs   BlobStore
	refs    store.BookingStore
	logger  *zap.Logger
	metrics *utils.Metrics
	timeout time.Duration
	now     func() time.Time
}

func New(blobs BlobStore, refs store.BookingStore, logger *zap.Logger, metrics *utils.Metrics, timeout time.Duration) *Archive {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Archive{blobs: blobs, refs: refs, logger: logger, metrics: metrics, timeout: timeout, now: time.Now}
}

// VerifyResult reports whether an archived booking still matches its hash.
type VerifyResult struct {
	Verified     bool            `json:"verified"`
	Address      string          `json:"address"`
	ComputedHash string          `json:"computedHash"`
	StoredHash   string          `json:"storedHash"`
	Booking      *models.Booking `json:"data,omitempty"`
}

// BatchItem is one payload for StoreBatch. Bookings and reviews are recorded
// under their own data type so VerifyIntegrity can find them.
type BatchItem struct {
	ID   string
	Data any
}

// Store serializes payload and adds it to the blob store. The address is pinned
// on a best effort basis.
func (a *Archive) Store(ctx context.Context, payload any) (rec *models.ContentRecord, err error) {
	defer func() { a.metrics.ObserveArchive("store", err) }()

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode archive payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	address, err := a.blobs.Add(ctx, data)
	if err != nil {
		return nil, unavailable("", err)
	}
	if err := a.blobs.Pin(ctx, address); err != nil {
		a.logger.Warn("Failed to pin archive record", zap.String("address", address), zap.Error(err))
	}
	return &models.ContentRecord{Address: address, Size: int64(len(data))}, nil
}

// RetrieveRaw returns the stored bytes at address.
func (a *Archive) RetrieveRaw(ctx context.Context, address string) (data json.RawMessage, err error) {
	defer func() { a.metrics.ObserveArchive("retrieve", err) }()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, err := a.blobs.Cat(ctx, address)
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return nil, notFound(address, err)
		}
		return nil, unavailable(address, err)
	}
	if !json.Valid(raw) {
		return nil, unavailable(address, errors.New("stored record is not JSON"))
	}
	return raw, nil
}

// Retrieve decodes the record at address into out.
func (a *Archive) Retrieve(ctx context.Context, address string, out any) error {
	raw, err := a.RetrieveRaw(ctx, address)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return unavailable(address, fmt.Errorf("decode archive record: %w", err))
	}
	return nil
}

// StoreBooking archives b and records its address under the booking id.
func (a *Archive) StoreBooking(ctx context.Context, b models.Booking) (*models.ContentRecord, error) {
	rec, err := a.Store(ctx, b)
	if err != nil {
		return nil, err
	}
	ref := models.ArchiveRecord{
		ID:        b.ID,
		BookingID: b.ID,
		Address:   rec.Address,
		DataType:  models.DataTypeBooking,
		Size:      rec.Size,
		CreatedAt: a.now().UTC(),
	}
	if err := a.refs.Put(ctx, store.CollectionArchiveRecords, ref.ID, ref); err != nil {
		return nil, unavailable(rec.Address, fmt.Errorf("record archive reference: %w", err))
	}
	return rec, nil
}

// StoreReview archives r and records its address under the review id.
func (a *Archive) StoreReview(ctx context.Context, r models.Review) (*models.ContentRecord, error) {
	rec, err := a.Store(ctx, r)
	if err != nil {
		return nil, err
	}
	ref := models.ArchiveRecord{
		ID:        r.ID,
		BookingID: r.BookingID,
		ReviewID:  r.ID,
		Address:   rec.Address,
		DataType:  models.DataTypeReview,
		Size:      rec.Size,
		CreatedAt: a.now().UTC(),
	}
	if err := a.refs.Put(ctx, store.CollectionArchiveRecords, ref.ID, ref); err != nil {
		return nil, unavailable(rec.Address, fmt.Errorf("record archive reference: %w", err))
	}
	return rec, nil
}

// VerifyIntegrity looks up the archived booking, recomputes its hash and
// compares it with the hash stored inside the record. A mismatch is reported
// in the result, not as an error.
func (a *Archive) VerifyIntegrity(ctx context.Context, bookingID string) (*VerifyResult, error) {
	var ref models.ArchiveRecord
	if err := a.refs.Get(ctx, store.CollectionArchiveRecords, bookingID, &ref); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("", fmt.Errorf("no archive record for booking %s", bookingID))
		}
		return nil, unavailable("", err)
	}

	var b models.Booking
	if err := a.Retrieve(ctx, ref.Address, &b); err != nil {
		return nil, err
	}

	computed := b.ComputeHash()
	res := &VerifyResult{
		Verified:     computed == b.IntegrityHash && b.ID == bookingID,
		Address:      ref.Address,
		ComputedHash: computed,
		StoredHash:   b.IntegrityHash,
		Booking:      &b,
	}
	if !res.Verified {
		a.logger.Warn("Archived booking failed integrity check",
			zap.String("bookingId", bookingID),
			zap.String("address", ref.Address),
			zap.String("computedHash", computed),
			zap.String("storedHash", b.IntegrityHash))
	}
	return res, nil
}

// StoreBatch archives several payloads and records their references. Each
// item succeeds or fails on its own.
func (a *Archive) StoreBatch(ctx context.Context, items []BatchItem) []batch.Outcome[BatchItem, *models.ContentRecord] {
	b := batch.New(func(ctx context.Context, ops []BatchItem) ([]*models.ContentRecord, []error, error) {
		results := make([]*models.ContentRecord, len(ops))
		errs := make([]error, len(ops))
		for i, op := range ops {
			rec, err := a.Store(ctx, op.Data)
			if err != nil {
				errs[i] = err
				continue
			}
			ref := a.reference(op, rec)
			if err := a.refs.Put(ctx, store.CollectionArchiveRecords, op.ID, ref); err != nil {
				errs[i] = unavailable(rec.Address, fmt.Errorf("record archive reference: %w", err))
				continue
			}
			results[i] = rec
		}
		return results, errs, nil
	})
	for _, it := range items {
		b.Add(it)
	}
	return b.Flush(ctx)
}

func (a *Archive) reference(item BatchItem, rec *models.ContentRecord) models.ArchiveRecord {
	ref := models.ArchiveRecord{
		ID:        item.ID,
		Address:   rec.Address,
		DataType:  models.DataTypeBatch,
		Size:      rec.Size,
		CreatedAt: a.now().UTC(),
	}
	switch v := item.Data.(type) {
	case models.Booking:
		ref.BookingID = v.ID
		ref.DataType = models.DataTypeBooking
	case models.Review:
		ref.BookingID = v.BookingID
		ref.ReviewID = v.ID
		ref.DataType = models.DataTypeReview
	}
	return ref
}

// Ping checks the blob store backend.
func (a *Archive) Ping(ctx context.Context) error {
	return a.blobs.Ping(ctx)
}
