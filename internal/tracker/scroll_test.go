package tracker

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SoarinFerret/FocusWarden/internal/eval"
)

var t0 = time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC)

func TestScrollTracker_DistanceIsSumOfPositiveDeltas(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	tr := NewScrollTracker(1, eval.DefaultScrollPolicy(), nil)
	tr.Reset(t0)

	offsets := make([]float64, 500)
	for i := range offsets {
		offsets[i] = float64(r.IntN(20000))
	}

	expected := 0.0
	prevDistance := 0.0
	for i, off := range offsets {
		tr.OnFrame(off, 900, t0.Add(time.Duration(i)*16*time.Millisecond))
		if i > 0 && off > offsets[i-1] {
			expected += off - offsets[i-1]
		}
		d := tr.State().Distance
		require.GreaterOrEqual(t, d, prevDistance, "distance never decreases")
		prevDistance = d
	}
	assert.InDelta(t, expected, tr.State().Distance, 1e-6)
	assert.Equal(t, offsets[len(offsets)-1], tr.State().LastOffset)
}

func TestScrollTracker_FirstFrameOnlyPrimes(t *testing.T) {
	tr := NewScrollTracker(1, eval.DefaultScrollPolicy(), nil)
	tr.Reset(t0)

	tr.OnFrame(3000, 800, t0)
	assert.Equal(t, 0.0, tr.State().Distance, "a page opened mid-scroll does not count the initial offset")

	tr.OnFrame(3100, 800, t0.Add(time.Second))
	assert.Equal(t, 100.0, tr.State().Distance)
}

func TestScrollTracker_ZeroElapsedDoesNotFire(t *testing.T) {
	var fired int
	tr := NewScrollTracker(1, eval.DefaultScrollPolicy(), func(Signal) { fired++ })
	tr.Reset(t0)

	tr.OnFrame(0, 800, t0)
	tr.OnFrame(100000, 800, t0)

	m := tr.Metrics(t0)
	assert.Equal(t, 0.0, eval.MindfulnessRatio(m.Distance, m.Elapsed))
	assert.Zero(t, fired)
}

func TestScrollTracker_NoViewportStaysQuiet(t *testing.T) {
	var fired int
	tr := NewScrollTracker(3, eval.DefaultScrollPolicy(), func(Signal) { fired++ })

	fed := tr.Feed([]ScrollSample{
		{Kind: SampleFrame, Offset: 0, At: t0},
		{Kind: SampleFrame, Offset: 120, At: t0.Add(time.Second)},
		{Kind: SampleMutation, Height: 1000},
		{Kind: SampleMutation, Height: 2000},
		{Kind: SampleMutation, Height: 4000},
		{Kind: SampleMutation, Height: 8000},
		{Kind: SampleFrame, Offset: 50000, At: t0.Add(2 * time.Second)},
	})
	assert.Zero(t, fed)
	assert.Zero(t, fired)
	assert.Equal(t, 50000.0, tr.State().Distance, "distance still accumulates")

	// the first frame that reports a viewport arms the signature again
	assert.True(t, tr.OnFrame(50100, 800, t0.Add(3*time.Second)))
	assert.Equal(t, 1, fired)
}

func TestScrollTracker_FastScrollFires(t *testing.T) {
	var signals []Signal
	tr := NewScrollTracker(7, eval.DefaultScrollPolicy(), func(s Signal) { signals = append(signals, s) })
	tr.Reset(t0)

	// 800px viewport, 100px every 100ms = 1000px/s, crosses 4000px after 4s.
	fired := false
	for i := 0; i <= 50 && !fired; i++ {
		fired = tr.OnFrame(float64(i*100), 800, t0.Add(time.Duration(i)*100*time.Millisecond))
	}
	require.True(t, fired)
	require.Len(t, signals, 1)
	assert.Equal(t, DoomScroll, signals[0].Kind)
	assert.Equal(t, 7, signals[0].TabID)
	assert.Greater(t, tr.State().Distance, 4000.0)
}

func TestScrollTracker_NudgeVisibleGuard(t *testing.T) {
	var fired int
	var tr *ScrollTracker
	tr = NewScrollTracker(1, eval.DefaultScrollPolicy(), func(Signal) {
		fired++
		tr.SetNudgeVisible(true)
	})
	tr.Reset(t0)

	tr.OnFrame(0, 800, t0)
	tr.OnFrame(5000, 800, t0.Add(10*time.Second))
	require.Equal(t, 1, fired)

	// Same (D, E, T) point evaluated again: no second signal.
	tr.OnFrame(5000, 800, t0.Add(10*time.Second))
	tr.OnFrame(5000, 800, t0.Add(10*time.Second))
	assert.Equal(t, 1, fired)
	assert.Equal(t, 5000.0, tr.State().Distance, "firing does not reset counters")

	tr.Reset(t0.Add(11 * time.Second))
	assert.False(t, tr.NudgeVisible())
	assert.Equal(t, 0.0, tr.State().Distance)
}

func TestScrollTracker_FiresEveryFrameWithoutGuard(t *testing.T) {
	var fired int
	tr := NewScrollTracker(1, eval.DefaultScrollPolicy(), func(Signal) { fired++ })
	tr.Reset(t0)

	tr.OnFrame(0, 800, t0)
	tr.OnFrame(5000, 800, t0.Add(10*time.Second))
	tr.OnFrame(5000, 800, t0.Add(10*time.Second))
	assert.Equal(t, 2, fired)
}

func TestScrollTracker_Expansions(t *testing.T) {
	tr := NewScrollTracker(1, eval.DefaultScrollPolicy(), nil)
	tr.Reset(t0)

	tr.OnDOMMutation(1000)
	assert.Equal(t, 0, tr.State().Expansions, "first height is the baseline")

	tr.OnDOMMutation(1500)
	assert.Equal(t, 0, tr.State().Expansions)

	tr.OnDOMMutation(2000)
	assert.Equal(t, 1, tr.State().Expansions, "exactly double counts")
	assert.Equal(t, 2000.0, tr.State().LastHeight)

	tr.OnDOMMutation(4000)
	tr.OnDOMMutation(8000)
	assert.Equal(t, 3, tr.State().Expansions)
	assert.Equal(t, 1, tr.State().DistractionScore)

	tr.OnDOMMutation(16000)
	assert.Equal(t, 2, tr.State().DistractionScore)
}

func TestScrollTracker_FeedExpansionSignature(t *testing.T) {
	var fired int
	tr := NewScrollTracker(1, eval.DefaultScrollPolicy(), func(Signal) { fired++ })
	tr.Reset(t0)

	samples := []ScrollSample{
		{Kind: SampleFrame, Offset: 0, Viewport: 800, Height: 1000, At: t0},
		{Kind: SampleMutation, Height: 2000, At: t0.Add(time.Minute)},
		{Kind: SampleMutation, Height: 4000, At: t0.Add(2 * time.Minute)},
		{Kind: SampleMutation, Height: 8000, At: t0.Add(3 * time.Minute)},
		// slow: 2100px over 10 minutes, well under 50px/s
		{Kind: SampleFrame, Offset: 2100, Viewport: 800, At: t0.Add(10 * time.Minute)},
	}

	n := tr.Feed(samples)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, fired)
	assert.Equal(t, 3, tr.State().Expansions)
}
