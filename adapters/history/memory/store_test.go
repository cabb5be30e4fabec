package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"warpmine/domain/history"
	"warpmine/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_AppendAndList(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, history.Entry{Key: "1", Kind: history.KindExtraction}))
	require.NoError(t, s.Append(ctx, history.Entry{Key: "2", Kind: history.KindOptimization}))

	all, err := s.List(ctx, history.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "2", all[0].Key)
	assert.Equal(t, "1", all[1].Key)

	opt, err := s.List(ctx, history.Filter{Kind: history.KindOptimization})
	require.NoError(t, err)
	require.Len(t, opt, 1)
	assert.Equal(t, "2", opt[0].Key)
}

func TestStore_SnapshotIsolation(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, history.Entry{Key: "1"}))

	before, err := s.List(ctx, history.Filter{})
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, history.Entry{Key: "2"}))

	assert.Len(t, before, 1)
	assert.Equal(t, 2, s.Len())
}

func TestStore_EarlierListsSurviveGrowth(t *testing.T) {
	s := New()
	ctx := context.Background()

	var lists [][]history.Entry
	for i := 0; i < 200; i++ {
		require.NoError(t, s.Append(ctx, history.Entry{Key: fmt.Sprint(i)}))
		got, err := s.List(ctx, history.Filter{})
		require.NoError(t, err)
		lists = append(lists, got)
	}
	for i, got := range lists {
		require.Len(t, got, i+1)
		assert.Equal(t, fmt.Sprint(i), got[0].Key)
		assert.Equal(t, "0", got[i].Key)
	}
	latest, err := s.List(ctx, history.Filter{Limit: 3, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"198", "197", "196"}, []string{latest[0].Key, latest[1].Key, latest[2].Key})
}

func TestStore_ConcurrentWriters(t *testing.T) {
	s := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Append(ctx, history.Entry{Key: fmt.Sprint(i)}))
			_, err := s.List(ctx, history.Filter{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, s.Len())
}

func TestStore_Closed(t *testing.T) {
	s := New()
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Append(context.Background(), history.Entry{Key: "x"}), ports.ErrHistoryClosed)
}
