package conveyor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestOperateConcurrently tests the parallel fan-out over matching slots
func TestOperateConcurrently(t *testing.T) {
	const n = 64
	mech := Factory.NewMechanism()
	for i := 0; i < n; i++ {
		h, out := mech.Spawn(testPos, testVel)
		require.Equal(t, Success, out)
		pos, _ := testPos.GetFromSubject(mech, h)
		pos.X = float64(i)
	}
	// A decoy population the filter must not touch.
	for i := 0; i < 5; i++ {
		mech.Spawn(testPos)
	}

	filter := Factory.NewFilter().Require(testPos, testVel)
	var touched atomic.Int64
	err := mech.OperateConcurrently(context.Background(), filter, 8,
		func(_ context.Context, ch *Chunk, slot int) error {
			pos := testPos.GetFromChunk(ch, slot)
			pos.X *= 2
			touched.Add(1)
			return nil
		})
	require.NoError(t, err)
	require.Equal(t, int64(n), touched.Load())

	sum := 0.0
	cur := Factory.NewCursor(filter, mech)
	for cur.Next() {
		sum += testPos.GetFromCursor(cur).X
	}
	// Sum of 2*i for i in [0, n) = n*(n-1).
	require.Equal(t, float64(n*(n-1)), sum)
	require.False(t, mech.Locked(), "fan-out should release the mechanism")
}

// TestOperateConcurrentlyMultipleChunks tests the fan-out across chunks
func TestOperateConcurrentlyMultipleChunks(t *testing.T) {
	mech := Factory.NewMechanism()
	for i := 0; i < 4; i++ {
		mech.Spawn(testPos)
	}
	for i := 0; i < 4; i++ {
		mech.Spawn(testPos, testVel)
	}

	filter := Factory.NewFilter().Require(testPos)
	var touched atomic.Int64
	err := mech.OperateConcurrently(context.Background(), filter, 2,
		func(ctx context.Context, _ *Chunk, _ int) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			touched.Add(1)
			return nil
		})
	require.NoError(t, err, "a healthy context must survive every chunk barrier")
	require.Equal(t, int64(8), touched.Load(), "both chunks fanned out")
	require.False(t, mech.Locked())
}

// TestOperateConcurrentlyError tests error propagation and cleanup
func TestOperateConcurrentlyError(t *testing.T) {
	mech := Factory.NewMechanism()
	for i := 0; i < 10; i++ {
		mech.Spawn(testPos)
	}

	boom := errors.New("boom")
	filter := Factory.NewFilter().Require(testPos)
	err := mech.OperateConcurrently(context.Background(), filter, 4,
		func(_ context.Context, _ *Chunk, slot int) error {
			if slot == 5 {
				return boom
			}
			return nil
		})
	require.ErrorIs(t, err, boom)
	require.False(t, mech.Locked())
	for _, ch := range mech.matchingChunks(filter) {
		require.False(t, ch.IsLocked(), "failed fan-out must still unlock")
	}
}

// TestOperateConcurrentlyDefersStructuralOps tests that despawns requested by
// workers land after the fan-out completes
func TestOperateConcurrentlyDefersStructuralOps(t *testing.T) {
	const n = 16
	mech := Factory.NewMechanism()
	for i := 0; i < n; i++ {
		mech.Spawn(testPos, testHP)
	}

	filter := Factory.NewFilter().Require(testHP)
	err := mech.OperateConcurrently(context.Background(), filter, 4,
		func(_ context.Context, ch *Chunk, slot int) error {
			hp := testHP.GetFromChunk(ch, slot)
			if hp.HP <= 0 {
				mech.EnqueueDespawn(ch.SubjectAt(slot))
			}
			return nil
		})
	require.NoError(t, err)
	require.Equal(t, 0, mech.SubjectCount(), "zero-HP subjects reaped after the fan-out")
}
