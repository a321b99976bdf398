package batch

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlushReportsPerOperationOutcomes(t *testing.T) {
	var submitted []string
	b := New(func(_ context.Context, ops []string) ([]int, []error, error) {
		submitted = append(submitted, ops...)
		results := make([]int, len(ops))
		errs := make([]error, len(ops))
		for i, op := range ops {
			if op == "bad" {
				errs[i] = fmt.Errorf("rejected %s", op)
				continue
			}
			results[i] = len(op)
		}
		return results, errs, nil
	})

	b.Add("one")
	b.Add("bad")
	b.Add("three")
	require.Equal(t, 3, b.Len())

	out := b.Flush(context.Background())
	require.Len(t, out, 3)
	assert.Equal(t, []string{"one", "bad", "three"}, submitted)

	assert.NoError(t, out[0].Err)
	assert.Equal(t, 3, out[0].Result)
	assert.EqualError(t, out[1].Err, "rejected bad")
	assert.NoError(t, out[2].Err)
	assert.Equal(t, 5, out[2].Result)
	assert.Equal(t, 0, b.Len())
}

func TestFlushAppliesSubmissionErrorToEveryOperation(t *testing.T) {
	boom := errors.New("rpc down")
	b := New(func(_ context.Context, ops []int) ([]int, []error, error) {
		return nil, nil, boom
	})
	b.Add(1)
	b.Add(2)

	for _, o := range b.Flush(context.Background()) {
		assert.ErrorIs(t, o.Err, boom)
	}
}

func TestFlushMissingResult(t *testing.T) {
	b := New(func(_ context.Context, ops []int) ([]int, []error, error) {
		return []int{10}, nil, nil
	})
	b.Add(1)
	b.Add(2)

	out := b.Flush(context.Background())
	assert.NoError(t, out[0].Err)
	assert.ErrorIs(t, out[1].Err, ErrMissingResult)
}

func TestFlushEmpty(t *testing.T) {
	called := false
	b := New(func(_ context.Context, ops []int) ([]int, []error, error) {
		called = true
		return nil, nil, nil
	})
	assert.Nil(t, b.Flush(context.Background()))
	assert.False(t, called)
}
