package vcftiles

import (
	"context"
	"testing"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelPoolOrder(t *testing.T) {
	pool := newLevelPool(3, func(ctx context.Context, level uint32) (LevelResult, error) {
		// Later levels finish first
		time.Sleep(time.Duration(10-level) * time.Millisecond)
		return LevelResult{Level: level}, nil
	})
	results, err := pool.run(context.Background(), []uint32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9})
	require.NoError(t, err)
	for i, r := range results {
		assert.Equal(t, uint32(i), r.Level)
	}
}

func TestLevelPoolErrorCancelsRunningLevels(t *testing.T) {
	started, stopped := make(chan struct{}), make(chan struct{})
	pool := newLevelPool(2, func(ctx context.Context, level uint32) (LevelResult, error) {
		if level == 0 {
			<-started
			return LevelResult{}, errors.E(errors.Integrity, "level 0 failed")
		}
		// Runs until the pool gives up on it
		close(started)
		<-ctx.Done()
		close(stopped)
		return LevelResult{}, ctx.Err()
	})

	done := make(chan error, 1)
	go func() {
		_, err := pool.run(context.Background(), []uint32{0, 1})
		done <- err
	}()
	select {
	case err := <-done:
		assert.True(t, IsInvariant(err), "%v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("pool did not cancel the running level")
	}
	select {
	case <-stopped:
	case <-time.After(10 * time.Second):
		t.Fatal("running level never saw cancellation")
	}
}
