package fixed

import (
	"context"
	"testing"
	"time"

	"ember/kernel"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKernel() *kernel.Kernel {
	return kernel.New(kernel.Config{Idle: func(k *kernel.Kernel) { k.TickIncrement() }})
}

func run(t *testing.T, k *kernel.Kernel) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := k.Run(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded)
	return err
}

func spawn(t *testing.T, k *kernel.Kernel, fn func(c *kernel.Context)) {
	t.Helper()
	_, err := k.CreateTask(0, nil, func(c *kernel.Context, _ any) { fn(c) }, false)
	require.NoError(t, err)
}

func TestQueueFIFO(t *testing.T) {
	var store [3]string
	q := NewQueue(store[:])

	for _, v := range []string{"A", "B", "C"} {
		require.Equal(t, OK, q.TryPush(v))
	}
	assert.Equal(t, Full, q.TryPush("D"))
	assert.Equal(t, 3, q.Len())
	assert.Zero(t, q.Free())

	var got []string
	for i := 0; i < 3; i++ {
		v, st := q.TryPop()
		require.Equal(t, OK, st)
		got = append(got, v)
	}
	assert.Equal(t, []string{"A", "B", "C"}, got)

	_, st := q.TryPop()
	assert.Equal(t, Empty, st)
	assert.Equal(t, [3]string{}, store, "popped slots are cleared")
}

func TestQueueBlockingPushWaitsForPop(t *testing.T) {
	k := newKernel()
	var store [3]string
	q := NewQueue(store[:])
	var trace []string

	spawn(t, k, func(c *kernel.Context) {
		for _, v := range []string{"A", "B", "C"} {
			require.Equal(t, kernel.Satisfied, q.Push(c, v, kernel.Forever))
		}
		trace = append(trace, "push D")
		require.Equal(t, kernel.Satisfied, q.Push(c, "D", kernel.Forever))
		trace = append(trace, "pushed D")
	})
	spawn(t, k, func(c *kernel.Context) {
		v, res := q.Pop(c, kernel.Forever)
		require.Equal(t, kernel.Satisfied, res)
		trace = append(trace, "pop "+v)
		c.Yield()
		for i := 0; i < 3; i++ {
			v, res := q.Pop(c, kernel.Forever)
			require.Equal(t, kernel.Satisfied, res)
			trace = append(trace, "pop "+v)
		}
	})
	require.NoError(t, run(t, k))
	assert.Equal(t, []string{"push D", "pop A", "pushed D", "pop B", "pop C", "pop D"}, trace)
}

func TestQueuePopTimesOut(t *testing.T) {
	k := newKernel()
	var store [2]int
	q := NewQueue(store[:])
	var res kernel.WaitResult
	var elapsed kernel.Tick

	spawn(t, k, func(c *kernel.Context) {
		start := c.Now()
		_, res = q.Pop(c, 7)
		elapsed = c.Now() - start
	})
	require.NoError(t, run(t, k))
	assert.Equal(t, kernel.TimedOut, res)
	assert.Equal(t, kernel.Tick(7), elapsed)
}

func TestQueueWrapsAndDiscards(t *testing.T) {
	var store [4]int
	q := NewQueue(store[:])
	for i := 1; i <= 3; i++ {
		q.TryPush(i)
	}
	q.Discard(2)
	for i := 4; i <= 6; i++ {
		require.Equal(t, OK, q.TryPush(i))
	}

	assert.Equal(t, 4, q.Len())
	assert.Equal(t, []int{3, 4}, q.Contiguous())
	assert.Equal(t, 5, q.At(2))
	q.Discard(len(q.Contiguous()))
	assert.Equal(t, []int{5, 6}, q.Contiguous())

	head, ok := q.Peek()
	assert.True(t, ok)
	assert.Equal(t, 5, head)

	q.Clear()
	_, ok = q.Peek()
	assert.False(t, ok)
	assert.Equal(t, [4]int{}, store)
}

func TestQueueAtOutOfRangeTraps(t *testing.T) {
	var store [2]int
	q := NewQueue(store[:])
	q.TryPush(1)
	assert.Panics(t, func() { q.At(1) })
	assert.Panics(t, func() { q.Discard(2) })
	assert.Panics(t, func() { NewQueue[int](nil) })
}

func TestStackLIFO(t *testing.T) {
	k := newKernel()
	var store [3]rune
	s := NewStack(store[:])
	var got []rune

	spawn(t, k, func(c *kernel.Context) {
		for _, r := range "ABC" {
			require.Equal(t, kernel.Satisfied, s.Push(c, r, 0))
		}
		assert.Equal(t, kernel.TimedOut, s.Push(c, 'D', 0))
		top, _ := s.Top()
		assert.Equal(t, 'C', top)
		assert.Equal(t, 'A', s.At(2))
		for i := 0; i < 3; i++ {
			r, res := s.Pop(c, 0)
			require.Equal(t, kernel.Satisfied, res)
			got = append(got, r)
		}
		_, res := s.Pop(c, 0)
		assert.Equal(t, kernel.TimedOut, res)
	})
	require.NoError(t, run(t, k))
	assert.Equal(t, []rune("CBA"), got)
}

func TestStackTryOps(t *testing.T) {
	var store [1]int
	s := NewStack(store[:])
	assert.Equal(t, OK, s.TryPush(1))
	assert.Equal(t, Full, s.TryPush(2))
	v, st := s.TryPop()
	assert.Equal(t, OK, st)
	assert.Equal(t, 1, v)
	_, st = s.TryPop()
	assert.Equal(t, Empty, st)
}

func TestBufferEdits(t *testing.T) {
	k := newKernel()
	var store [6]byte
	b := NewBuffer(store[:])

	spawn(t, k, func(c *kernel.Context) {
		require.Equal(t, kernel.Satisfied, b.AppendSlice(c, []byte("ace"), 0))
		require.Equal(t, kernel.Satisfied, b.Insert(c, 1, 'b', 0))
		require.Equal(t, kernel.Satisfied, b.InsertSlice(c, 3, []byte("d"), 0))
		assert.Equal(t, "abcde", string(b.Items()))

		require.Equal(t, kernel.Satisfied, b.Remove(c, 0, 0))
		require.Equal(t, kernel.Satisfied, b.RemoveN(c, 1, 2, 0))
		assert.Equal(t, "be", string(b.Items()))

		assert.Equal(t, kernel.TimedOut, b.AppendSlice(c, []byte("12345"), 0))
		assert.Equal(t, kernel.TimedOut, b.RemoveN(c, 1, 2, 0))
		assert.Equal(t, 2, b.Len())
	})
	require.NoError(t, run(t, k))
	assert.Equal(t, byte(0), store[2], "removed places are cleared")
}

func TestBufferIndexedAccess(t *testing.T) {
	var store [4]int
	b := NewBuffer(store[:])
	b.Set(3, 9)
	assert.Equal(t, 9, b.At(3))
	assert.Zero(t, b.Len())
	assert.Equal(t, OK, b.TryAppend(1))
	assert.Panics(t, func() { b.At(4) })
	assert.Panics(t, func() { b.Set(-1, 0) })
}

func TestBufferInsertPastEndTraps(t *testing.T) {
	k := newKernel()
	var store [4]int
	b := NewBuffer(store[:])
	spawn(t, k, func(c *kernel.Context) {
		b.Insert(c, 2, 1, kernel.Forever)
	})
	var tr *kernel.Trap
	require.ErrorAs(t, run(t, k), &tr)
	assert.Equal(t, kernel.TrapIndexRange, tr.Kind)
}

func TestBufferInsertOutsideCapacityTrapsWhenFull(t *testing.T) {
	inserts := map[string]func(c *kernel.Context, b *Buffer[byte]) kernel.WaitResult{
		"insert": func(c *kernel.Context, b *Buffer[byte]) kernel.WaitResult {
			return b.Insert(c, 7, 'x', 5)
		},
		"insert slice": func(c *kernel.Context, b *Buffer[byte]) kernel.WaitResult {
			return b.InsertSlice(c, 1, []byte("xy"), kernel.Forever)
		},
	}
	for name, insert := range inserts {
		t.Run(name, func(t *testing.T) {
			k := newKernel()
			var store [2]byte
			b := NewBuffer(store[:])
			require.Equal(t, OK, b.TryAppend('a'))
			require.Equal(t, OK, b.TryAppend('b'))

			returned := false
			spawn(t, k, func(c *kernel.Context) {
				insert(c, &b)
				returned = true
			})
			var tr *kernel.Trap
			require.ErrorAs(t, run(t, k), &tr)
			assert.Equal(t, kernel.TrapIndexRange, tr.Kind)
			assert.False(t, returned)
			assert.Equal(t, []byte("ab"), b.Items())
		})
	}
}

func TestWaitItemCountAcrossTasks(t *testing.T) {
	k := newKernel()
	var store [4]int
	q := NewQueue(store[:])
	var sum int

	spawn(t, k, func(c *kernel.Context) {
		require.Equal(t, kernel.Satisfied, WaitItemCount(c, &q, 3, kernel.Forever))
		assert.Equal(t, 3, q.Len())
		for q.Len() > 0 {
			v, _ := q.TryPop()
			sum += v
		}
		assert.Equal(t, kernel.Satisfied, WaitSpaceCount(c, &q, 4, 0))
	})
	spawn(t, k, func(c *kernel.Context) {
		for i := 1; i <= 3; i++ {
			q.Push(c, i, kernel.Forever)
			c.Yield()
		}
	})
	require.NoError(t, run(t, k))
	assert.Equal(t, 6, sum)
}

func TestLevelAboveCapacityTraps(t *testing.T) {
	var store [2]int
	q := NewQueue(store[:])
	assert.Panics(t, func() { Items(&q, 3) })
	assert.Panics(t, func() { Space(&q, -1) })
	assert.True(t, Space(&q, 2).Ready())
	assert.False(t, Items(&q, 1).Ready())
}

func TestDelimiterWaiterAssemblesLine(t *testing.T) {
	k := newKernel()
	var store [16]byte
	rx := NewBuffer(store[:])
	var lines []string

	spawn(t, k, func(c *kernel.Context) {
		w := NewDelimiterWaiter[byte](&rx, '\n', rx.Cap())
		for i := 0; i < 2; i++ {
			require.Equal(t, kernel.Satisfied, w.Wait(c, kernel.Forever))
			require.True(t, w.Found())
			lines = append(lines, string(rx.Items()[:w.Count()]))
			rx.RemoveN(c, 0, w.CountWithDelimiter(), 0)
			w.Reset()
		}
	})
	spawn(t, k, func(c *kernel.Context) {
		for _, ch := range []byte("hi\nthere\n") {
			rx.Append(c, ch, kernel.Forever)
			c.Yield()
		}
	})
	require.NoError(t, run(t, k))
	assert.Equal(t, []string{"hi", "there"}, lines)
}

func TestDelimiterWaiterStopsAtMax(t *testing.T) {
	var store [8]byte
	rx := NewBuffer(store[:])
	w := NewDelimiterWaiter[byte](&rx, '\n', 3)

	rx.TryAppend('a')
	rx.TryAppend('b')
	assert.False(t, w.Ready())
	rx.TryAppend('c')
	rx.TryAppend('d')
	assert.True(t, w.Ready())
	assert.True(t, w.MaxReached())
	assert.Equal(t, 3, w.Count())
	assert.Equal(t, 3, w.CountWithDelimiter())
}

type sensor struct{ name string }

func TestQueueOfPointerAndValue(t *testing.T) {
	var store [2]PointerAndValue[sensor, int32]
	q := NewQueue(store[:])
	temp, hum := &sensor{"temp"}, &sensor{"hum"}

	q.TryPush(PointerAndValue[sensor, int32]{Pointer: temp, Value: 21})
	q.TryPush(PointerAndValue[sensor, int32]{Pointer: hum, Value: 40})

	first, _ := q.TryPop()
	assert.Same(t, temp, first.Pointer)
	assert.Equal(t, int32(21), first.Value)
	second, _ := q.TryPop()
	assert.Same(t, hum, second.Pointer)
	assert.Equal(t, "hum", second.Pointer.name)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "container full", Full.String())
	assert.Equal(t, "container empty", Empty.String())
	assert.Equal(t, "ok", OK.String())
}
