package archive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"villagestay/database/repository/store"
	"villagestay/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memBlobs struct {
	mu      sync.Mutex
	data    map[string][]byte
	pinned  map[string]bool
	addErr  error
	failIDs map[string]bool
}

func newMemBlobs() *memBlobs {
	return &memBlobs{data: map[string][]byte{}, pinned: map[string]bool{}, failIDs: map[string]bool{}}
}

func (m *memBlobs) Add(_ context.Context, data []byte) (string, error) {
	if m.addErr != nil {
		return "", m.addErr
	}
	var head struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(data, &head)
	if m.failIDs[head.ID] {
		return "", fmt.Errorf("refused %s", head.ID)
	}
	sum := sha256.Sum256(data)
	addr := "bafy" + hex.EncodeToString(sum[:8])
	m.mu.Lock()
	m.data[addr] = append([]byte(nil), data...)
	m.mu.Unlock()
	return addr, nil
}

func (m *memBlobs) Cat(_ context.Context, address string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.data[address]
	if !ok {
		return nil, ErrBlobNotFound
	}
	return d, nil
}

func (m *memBlobs) Pin(_ context.Context, address string) error {
	m.mu.Lock()
	m.pinned[address] = true
	m.mu.Unlock()
	return nil
}

func (m *memBlobs) Ping(context.Context) error { return nil }

func (m *memBlobs) overwrite(address string, data []byte) {
	m.mu.Lock()
	m.data[address] = data
	m.mu.Unlock()
}

func sampleBooking() models.Booking {
	b := models.Booking{
		ID:            "B1",
		UserID:        "U1",
		DestinationID: "stay-1",
		CheckIn:       "2026-11-01",
		CheckOut:      "2026-11-03",
		GuestCount:    2,
		TotalAmount:   5000,
		Status:        models.BookingStatusConfirmed,
		Timestamp:     models.FormatTimestamp(time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC)),
	}
	b.IntegrityHash = b.ComputeHash()
	return b
}

func newTestArchive() (*Archive, *memBlobs, store.BookingStore) {
	blobs := newMemBlobs()
	refs := store.NewMemoryStore()
	return New(blobs, refs, zap.NewNop(), nil, time.Second), blobs, refs
}

func TestStoreRetrieveRoundTrip(t *testing.T) {
	a, blobs, _ := newTestArchive()
	ctx := context.Background()

	payloads := []any{
		sampleBooking(),
		map[string]any{"nested": map[string]any{"a": 1.5, "b": []any{"x", true}}},
		[]any{1.0, "two", nil},
		"plain string",
	}
	for _, p := range payloads {
		rec, err := a.Store(ctx, p)
		require.NoError(t, err)
		assert.NotEmpty(t, rec.Address)
		assert.True(t, blobs.pinned[rec.Address])

		want, _ := json.Marshal(p)
		assert.Equal(t, int64(len(want)), rec.Size)

		raw, err := a.RetrieveRaw(ctx, rec.Address)
		require.NoError(t, err)
		assert.JSONEq(t, string(want), string(raw))
	}

	b := sampleBooking()
	rec, err := a.Store(ctx, b)
	require.NoError(t, err)
	var got models.Booking
	require.NoError(t, a.Retrieve(ctx, rec.Address, &got))
	assert.Equal(t, b, got)
}

func TestRetrieveUnknownAddressIsNotFound(t *testing.T) {
	a, _, _ := newTestArchive()
	_, err := a.RetrieveRaw(context.Background(), "bafynothing")
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestStoreFailureIsUnavailable(t *testing.T) {
	a, blobs, _ := newTestArchive()
	blobs.addErr = errors.New("connection refused")
	_, err := a.Store(context.Background(), sampleBooking())
	assert.Equal(t, KindUnavailable, KindOf(err))
}

func TestStoreBookingRecordsReference(t *testing.T) {
	a, _, refs := newTestArchive()
	ctx := context.Background()

	rec, err := a.StoreBooking(ctx, sampleBooking())
	require.NoError(t, err)

	var ref models.ArchiveRecord
	require.NoError(t, refs.Get(ctx, store.CollectionArchiveRecords, "B1", &ref))
	assert.Equal(t, rec.Address, ref.Address)
	assert.Equal(t, models.DataTypeBooking, ref.DataType)
	assert.Equal(t, "B1", ref.BookingID)
}

func TestStoreReviewRecordsReference(t *testing.T) {
	a, _, refs := newTestArchive()
	ctx := context.Background()

	r := models.Review{ID: "R1", BookingID: "B1", UserID: "U1", Rating: 4, Comment: "lovely", Timestamp: "2026-11-04T10:00:00.000Z", Verified: true}
	r.IntegrityHash = r.ComputeHash()
	rec, err := a.StoreReview(ctx, r)
	require.NoError(t, err)

	var ref models.ArchiveRecord
	require.NoError(t, refs.Get(ctx, store.CollectionArchiveRecords, "R1", &ref))
	assert.Equal(t, rec.Address, ref.Address)
	assert.Equal(t, "R1", ref.ReviewID)
	assert.Equal(t, models.DataTypeReview, ref.DataType)
}

func TestVerifyIntegrityIsIdempotent(t *testing.T) {
	a, _, _ := newTestArchive()
	ctx := context.Background()
	_, err := a.StoreBooking(ctx, sampleBooking())
	require.NoError(t, err)

	first, err := a.VerifyIntegrity(ctx, "B1")
	require.NoError(t, err)
	second, err := a.VerifyIntegrity(ctx, "B1")
	require.NoError(t, err)

	assert.True(t, first.Verified)
	assert.Equal(t, first.Verified, second.Verified)
	assert.Equal(t, first.ComputedHash, first.StoredHash)
}

func TestVerifyIntegrityDetectsTampering(t *testing.T) {
	a, blobs, _ := newTestArchive()
	ctx := context.Background()
	rec, err := a.StoreBooking(ctx, sampleBooking())
	require.NoError(t, err)

	tampered := sampleBooking()
	tampered.TotalAmount = 50
	data, _ := json.Marshal(tampered)
	blobs.overwrite(rec.Address, data)

	res, err := a.VerifyIntegrity(ctx, "B1")
	require.NoError(t, err)
	assert.False(t, res.Verified)
	assert.NotEqual(t, res.ComputedHash, res.StoredHash)
}

func TestVerifyIntegrityWithoutReference(t *testing.T) {
	a, _, _ := newTestArchive()
	_, err := a.VerifyIntegrity(context.Background(), "missing")
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestStoreBatchReportsEachItem(t *testing.T) {
	a, blobs, refs := newTestArchive()
	blobs.failIDs["bad"] = true
	ctx := context.Background()

	out := a.StoreBatch(ctx, []BatchItem{
		{ID: "x1", Data: map[string]string{"id": "x1"}},
		{ID: "bad", Data: map[string]string{"id": "bad"}},
		{ID: "x2", Data: map[string]string{"id": "x2"}},
	})
	require.Len(t, out, 3)
	assert.NoError(t, out[0].Err)
	assert.Equal(t, KindUnavailable, KindOf(out[1].Err))
	assert.NoError(t, out[2].Err)

	var ref models.ArchiveRecord
	require.NoError(t, refs.Get(ctx, store.CollectionArchiveRecords, "x2", &ref))
	assert.Equal(t, models.DataTypeBatch, ref.DataType)
	assert.ErrorIs(t, refs.Get(ctx, store.CollectionArchiveRecords, "bad", &ref), store.ErrNotFound)
}

func TestStoreBatchBookingsRemainVerifiable(t *testing.T) {
	a, _, refs := newTestArchive()
	ctx := context.Background()
	b := sampleBooking()

	out := a.StoreBatch(ctx, []BatchItem{{ID: b.ID, Data: b}})
	require.Len(t, out, 1)
	require.NoError(t, out[0].Err)

	var ref models.ArchiveRecord
	require.NoError(t, refs.Get(ctx, store.CollectionArchiveRecords, b.ID, &ref))
	assert.Equal(t, models.DataTypeBooking, ref.DataType)
	assert.Equal(t, b.ID, ref.BookingID)

	res, err := a.VerifyIntegrity(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.Equal(t, out[0].Result.Address, res.Address)
}
