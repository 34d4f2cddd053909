package rq

import (
	"testing"

	"github.com/raleighsl/fs/vtask"
	"github.com/stretchr/testify/require"
)

func TestFIFOOrdersByArrivalAndDrainsPendingFirst(t *testing.T) {
	q := NewFIFO()
	a := vtask.NewTask(1, nil, nil)
	b := vtask.NewTask(1, nil, nil)
	c := vtask.NewTask(1, nil, nil)
	q.Push(a)
	q.Push(b)
	q.Push(c)

	require.Equal(t, a, q.Fetch())
	require.Equal(t, b, q.Fetch())

	// b was popped out for a blocking wait and is now ready again:
	// Requeue puts it ahead of ordinary deque arrivals.
	q.Requeue(b)
	d := vtask.NewTask(1, nil, nil)
	q.Push(d)

	require.Equal(t, b, q.Fetch())
	require.Equal(t, c, q.Fetch())
	require.Equal(t, d, q.Fetch())
	require.Nil(t, q.Fetch())
}

func TestFIFORemoveAndCancel(t *testing.T) {
	q := NewFIFO()
	a := vtask.NewTask(1, nil, nil)
	b := vtask.NewTask(1, nil, nil)
	q.Push(a)
	q.Push(b)
	require.True(t, q.Remove(a))
	require.False(t, q.Remove(a))

	q.Cancel()
	require.True(t, b.Cancel)
}

// Property 9: with priorities p1..pk over a long horizon, each
// child's execution count approaches pi/sum(p) within a bounded error.
func TestRoundRobinApproachesPriorityShare(t *testing.T) {
	q := NewRoundRobin(FairnessShift)
	weights := []uint8{1, 2, 5}
	tasks := make([]*vtask.VTask, len(weights))
	counts := make([]int, len(weights))
	for i, w := range weights {
		tasks[i] = vtask.NewTask(w, nil, nil)
		q.Push(tasks[i])
	}

	const iterations = 20000
	for i := 0; i < iterations; i++ {
		picked := q.Fetch()
		for j, tk := range tasks {
			if tk == picked {
				counts[j]++
			}
		}
	}

	var sumW int
	for _, w := range weights {
		sumW += int(w)
	}
	for i, w := range weights {
		want := float64(w) / float64(sumW)
		got := float64(counts[i]) / float64(iterations)
		require.InDelta(t, want, got, 0.05, "weight %d", w)
	}
}

func TestFairPromotesLowerVTimeFirst(t *testing.T) {
	q := NewFair()
	a := vtask.NewTask(1, nil, nil)
	b := vtask.NewTask(1, nil, nil)
	q.Push(a)
	q.Push(b)

	first := q.Fetch()
	require.Equal(t, a, first) // equal vtime, a arrived first (lower seqid)
	require.EqualValues(t, 1, a.VTime)

	second := q.Fetch()
	require.Equal(t, b, second) // b now has the lower vtime
}

func TestFairHigherPriorityAccruesVTimeMoreSlowly(t *testing.T) {
	q := NewFair()
	// Fair advances vtime by the Priority value, so the smaller value is
	// the higher scheduling priority.
	lowPrio := vtask.NewTask(10, nil, nil)
	highPrio := vtask.NewTask(1, nil, nil)
	q.Push(lowPrio)
	q.Push(highPrio)

	var lowPicks, highPicks int
	for i := 0; i < 100; i++ {
		picked := q.Fetch()
		if picked == lowPrio {
			lowPicks++
		} else {
			highPicks++
		}
	}
	require.Greater(t, highPicks, lowPicks)
}
