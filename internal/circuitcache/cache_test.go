package circuitcache

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/near-zk/finality-prover/internal/types"
	"github.com/stretchr/testify/require"
)

func TestGetOrBuildBuildsOncePerShape(t *testing.T) {
	c := New()
	var builds int32

	build := func(shape types.Shape) (any, error) {
		atomic.AddInt32(&builds, 1)
		time.Sleep(10 * time.Millisecond)
		return shape.MsgLenBits, nil
	}

	shape := types.Shape{Kind: types.ShapeEd25519, MsgLenBits: 328}

	var wg sync.WaitGroup
	results := make([]any, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.GetOrBuild(shape, build)
			require.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	require.EqualValues(t, 1, atomic.LoadInt32(&builds))
	require.Equal(t, 1, c.Len())
	for _, r := range results {
		require.Equal(t, 328, r)
	}
}

func TestGetOrBuildDifferentShapesBuildInParallel(t *testing.T) {
	c := New()
	release := make(chan struct{})
	started := make(chan types.Shape, 2)

	build := func(shape types.Shape) (any, error) {
		started <- shape
		<-release
		return shape, nil
	}

	shapeA := types.Shape{Kind: types.ShapeEd25519, MsgLenBits: 100}
	shapeB := types.Shape{Kind: types.ShapeEd25519, MsgLenBits: 200}

	go c.GetOrBuild(shapeA, build)
	go c.GetOrBuild(shapeB, build)

	seen := map[types.Shape]bool{}
	for i := 0; i < 2; i++ {
		select {
		case s := <-started:
			seen[s] = true
		case <-time.After(time.Second):
			t.Fatal("both distinct-shape builds should have started without waiting on each other")
		}
	}
	close(release)
	require.Len(t, seen, 2)
}

func TestLenCountsDistinctShapesOnly(t *testing.T) {
	c := New()
	build := func(shape types.Shape) (any, error) { return nil, nil }

	shapes := []types.Shape{
		{Kind: types.ShapeEd25519, MsgLenBits: 328},
		{Kind: types.ShapeEd25519, MsgLenBits: 328},
		{Kind: types.ShapeSha256, ByteLen: 4096},
	}
	for _, s := range shapes {
		_, _ = c.GetOrBuild(s, build)
	}
	require.Equal(t, 2, c.Len())
}
