package ksync

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

func spawn(t *testing.T, k *kernel.Kernel, fn func(c *kernel.Context)) kernel.TaskID {
	t.Helper()
	id, err := k.CreateTask(0, nil, func(c *kernel.Context, _ any) { fn(c) }, false)
	require.NoError(t, err)
	return id
}

func TestMutexMutualExclusion(t *testing.T) {
	const (
		workers = 4
		rounds  = 5
	)
	k := newKernel()
	var mu Mutex
	inside, maxInside, total := 0, 0, 0

	for i := 0; i < workers; i++ {
		spawn(t, k, func(c *kernel.Context) {
			for r := 0; r < rounds; r++ {
				mu.Lock(c)
				inside++
				if inside > maxInside {
					maxInside = inside
				}
				owner, ok := mu.Owner()
				assert.True(t, ok)
				assert.Equal(t, c.TaskID(), owner)
				c.Yield()
				c.Yield()
				total++
				inside--
				mu.Unlock(c)
				c.Yield()
			}
		})
	}
	require.NoError(t, run(t, k))
	assert.Equal(t, 1, maxInside)
	assert.Equal(t, workers*rounds, total)
	assert.False(t, mu.Locked())
}

func TestMutexReleasedToOneWaiter(t *testing.T) {
	k := newKernel()
	var mu Mutex
	var acquired []kernel.TaskID

	spawn(t, k, func(c *kernel.Context) {
		mu.Lock(c)
		c.Yield() // both waiters block here
		mu.Unlock(c)
		c.Yield()
		owner, ok := mu.Owner()
		assert.True(t, ok)
		assert.Equal(t, kernel.TaskID(1), owner)
		assert.Equal(t, []kernel.TaskID{1}, acquired)
	})
	for i := 0; i < 2; i++ {
		spawn(t, k, func(c *kernel.Context) {
			mu.Lock(c)
			acquired = append(acquired, c.TaskID())
			c.Yield()
			c.Yield()
			mu.Unlock(c)
		})
	}
	require.NoError(t, run(t, k))
	assert.Equal(t, []kernel.TaskID{1, 2}, acquired)
}

func TestMutexLockTimeout(t *testing.T) {
	k := newKernel()
	var mu Mutex
	var res kernel.WaitResult
	done := false

	spawn(t, k, func(c *kernel.Context) {
		mu.Lock(c)
		c.WaitBoolTrue(&done, kernel.Forever)
		mu.Unlock(c)
	})
	spawn(t, k, func(c *kernel.Context) {
		res = mu.LockTimeout(c, 5)
		assert.False(t, mu.TryLock(c))
		done = true
	})
	require.NoError(t, run(t, k))
	assert.Equal(t, kernel.TimedOut, res)
}

func TestMutexUnlockByOtherTaskTraps(t *testing.T) {
	k := newKernel()
	var mu Mutex
	spawn(t, k, func(c *kernel.Context) {
		mu.Lock(c)
		c.Yield()
		c.Yield()
	})
	spawn(t, k, func(c *kernel.Context) {
		mu.Unlock(c)
	})

	var tr *kernel.Trap
	require.ErrorAs(t, run(t, k), &tr)
	assert.Equal(t, kernel.TrapMutexNotOwner, tr.Kind)
	assert.Equal(t, kernel.TaskID(1), tr.Task)
}

func TestMutexRelockTraps(t *testing.T) {
	k := newKernel()
	var mu Mutex
	spawn(t, k, func(c *kernel.Context) {
		mu.Lock(c)
		mu.Lock(c)
	})
	var tr *kernel.Trap
	require.ErrorAs(t, run(t, k), &tr)
	assert.Equal(t, kernel.TrapMutexRelock, tr.Kind)
}

func TestMutexLockerReleasesOnEarlyReturn(t *testing.T) {
	k := newKernel()
	var mu Mutex
	guarded := func(c *kernel.Context, bail bool) int {
		defer LockMutex(c, &mu).Unlock()
		if bail {
			return 1
		}
		c.Yield()
		return 2
	}
	var got []int
	spawn(t, k, func(c *kernel.Context) {
		got = append(got, guarded(c, true), guarded(c, false))
		assert.False(t, mu.Locked())
	})
	require.NoError(t, run(t, k))
	assert.Equal(t, []int{1, 2}, got)
}

func TestSemaphoreCountStaysInRange(t *testing.T) {
	const workers = 5
	k := newKernel()
	sem := NewSemaphore(2, 2)
	holders, maxHolders := 0, 0

	for i := 0; i < workers; i++ {
		spawn(t, k, func(c *kernel.Context) {
			for r := 0; r < 3; r++ {
				l := AcquireSemaphore(c, &sem)
				holders++
				if holders > maxHolders {
					maxHolders = holders
				}
				assert.GreaterOrEqual(t, sem.Count(), 0)
				assert.LessOrEqual(t, sem.Count(), sem.Max())
				c.Sleep(2)
				holders--
				l.Release()
				c.Yield()
			}
		})
	}
	require.NoError(t, run(t, k))
	assert.Equal(t, 2, maxHolders)
	assert.Equal(t, 2, sem.Count())
}

func TestSemaphoreAcquireBlocksAtZero(t *testing.T) {
	k := newKernel()
	sem := NewSemaphore(0, 1)
	var trace []string

	spawn(t, k, func(c *kernel.Context) {
		trace = append(trace, "wait")
		assert.Equal(t, kernel.TimedOut, sem.AcquireTimeout(c, 3))
		assert.False(t, sem.TryAcquire())
		sem.Acquire(c)
		trace = append(trace, "acquired")
	})
	spawn(t, k, func(c *kernel.Context) {
		c.Sleep(10)
		trace = append(trace, "release")
		sem.Release()
	})
	require.NoError(t, run(t, k))
	assert.Equal(t, []string{"wait", "release", "acquired"}, trace)
	assert.True(t, sem.Locked())
}

func TestSemaphoreOverflowTraps(t *testing.T) {
	k := newKernel()
	sem := NewSemaphore(1, 1)
	spawn(t, k, func(c *kernel.Context) {
		sem.Release()
	})
	var tr *kernel.Trap
	require.ErrorAs(t, run(t, k), &tr)
	assert.Equal(t, kernel.TrapSemaphoreOverflow, tr.Kind)
	assert.Equal(t, 1, sem.Count())
}

func TestNewSemaphoreRejectsInvalidBounds(t *testing.T) {
	for _, tc := range []struct{ initial, max int }{{0, 0}, {-1, 1}, {3, 2}} {
		assert.Panics(t, func() { NewSemaphore(tc.initial, tc.max) }, "initial=%d max=%d", tc.initial, tc.max)
	}
	assert.NotPanics(t, func() { NewSemaphore(0, 1) })
}
