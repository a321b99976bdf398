package beckn

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenProviderReusesTokenUntilNearExpiry(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	p := NewTokenProvider("sub", testKey(t))
	p.now = func() time.Time { return now }

	first, err := p.Token(context.Background())
	require.NoError(t, err)

	now = now.Add(30 * time.Minute)
	second, err := p.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	now = now.Add(26 * time.Minute)
	third, err := p.Token(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
}

func TestTokenProviderWithoutKey(t *testing.T) {
	_, err := NewTokenProvider("sub", nil).Token(context.Background())
	assert.Error(t, err)
}

func TestAmountAcceptsStringsAndNumbers(t *testing.T) {
	var p wirePrice
	require.NoError(t, jsonUnmarshal(`{"value":"2500.50"}`, &p))
	assert.Equal(t, Amount(2500.5), p.Value)

	require.NoError(t, jsonUnmarshal(`{"value":300}`, &p))
	assert.Equal(t, Amount(300), p.Value)

	assert.Error(t, jsonUnmarshal(`{"value":"abc"}`, &p))
}

func TestTransactionTransitions(t *testing.T) {
	txn := NewTransaction()
	assert.Error(t, txn.advance(StateConfirmed))
	require.NoError(t, txn.advance(StateQuoted))
	require.NoError(t, txn.advance(StateInitiated))
	require.NoError(t, txn.advance(StateConfirmed))
	assert.True(t, txn.Terminal())

	txn.Fail(assert.AnError)
	assert.Equal(t, StateConfirmed, txn.State)
}

func jsonUnmarshal(s string, v any) error {
	return json.Unmarshal([]byte(s), v)
}
