package expiry

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/expiredrop/internal/uploadid"
)

func TestQueue_PopExpired(t *testing.T) {
	q := NewQueue()

	id1 := uploadid.New(10)
	id2 := uploadid.New(15)
	q.Push(id1)
	q.Push(id2)

	assert.Equal(t, []uploadid.ID{id1}, q.PopExpired(12))
	assert.Equal(t, []uploadid.ID{id2}, q.PopExpired(20))

	id3 := uploadid.New(10)
	id4 := uploadid.New(15)
	id5 := uploadid.New(20)
	q.Push(id3)
	q.Push(id4)
	q.Push(id5)

	assert.Equal(t, []uploadid.ID{id3, id4, id5}, q.PopExpired(20))
	assert.Equal(t, 0, q.Len())
}

func TestQueue_PopExpiredEmpty(t *testing.T) {
	q := NewQueue()
	assert.Empty(t, q.PopExpired(1<<40))

	q.Push(uploadid.New(100))
	assert.Empty(t, q.PopExpired(99))
	assert.Equal(t, 1, q.Len())
}

func TestQueue_BoundaryIsInclusive(t *testing.T) {
	q := NewQueue()
	id := uploadid.New(50)
	q.Push(id)
	assert.Empty(t, q.PopExpired(49))
	assert.Equal(t, []uploadid.ID{id}, q.PopExpired(50))
}

func TestQueue_LenTracksPops(t *testing.T) {
	q := NewQueue()
	for i := 1; i <= 10; i++ {
		q.Push(uploadid.New(uint64(i * 10)))
	}
	require.Equal(t, 10, q.Len())

	got := q.PopExpired(35)
	assert.Len(t, got, 3)
	assert.Equal(t, 7, q.Len())
}

func TestQueue_Duplicates(t *testing.T) {
	q := NewQueue()
	id := uploadid.New(5)
	q.Push(id)
	q.Push(id)
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, []uploadid.ID{id, id}, q.PopExpired(5))
}

func TestQueue_OrderIndependentOfInsertion(t *testing.T) {
	q := NewQueue()
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		q.Push(uploadid.New(uint64(rng.Intn(1000))))
	}
	got := q.PopExpired(1000)
	require.Len(t, got, 500)
	for i := 1; i < len(got); i++ {
		require.LessOrEqual(t, got[i-1].Expires(), got[i].Expires())
	}
}

func TestQueue_PushAll(t *testing.T) {
	q := NewQueue()
	q.Push(uploadid.New(30))
	a, b, c := uploadid.New(20), uploadid.New(10), uploadid.New(40)
	q.PushAll(a, b, c)
	q.PushAll()

	assert.Equal(t, 4, q.Len())
	got := q.PopExpired(25)
	assert.Equal(t, []uploadid.ID{b, a}, got)
}

func TestQueue_Next(t *testing.T) {
	q := NewQueue()
	_, ok := q.Next()
	assert.False(t, ok)

	later, sooner := uploadid.New(90), uploadid.New(30)
	q.Push(later)
	q.Push(sooner)

	next, ok := q.Next()
	require.True(t, ok)
	assert.Equal(t, sooner, next)
	assert.Equal(t, 2, q.Len())
}

func TestQueue_ConcurrentPush(t *testing.T) {
	const workers, per = 16, 250
	q := NewQueue()
	pushed := make(chan uploadid.ID, workers*per)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < per; i++ {
				id := uploadid.New(uint64(w*per + i))
				q.Push(id)
				pushed <- id
			}
		}(w)
	}
	wg.Wait()
	close(pushed)

	want := make(map[uploadid.ID]int)
	for id := range pushed {
		want[id]++
	}

	got := q.PopExpired(1 << 40)
	require.Len(t, got, workers*per)
	have := make(map[uploadid.ID]int)
	for i, id := range got {
		have[id]++
		if i > 0 {
			require.LessOrEqual(t, got[i-1].Expires(), id.Expires())
		}
	}
	assert.Equal(t, want, have)
	assert.Equal(t, 0, q.Len())
}

func TestQueue_ConcurrentPushAndPop(t *testing.T) {
	q := NewQueue()
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		popped int
	)
	for w := 0; w < 4; w++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				q.Push(uploadid.New(uint64(i)))
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				n := len(q.PopExpired(100))
				mu.Lock()
				popped += n
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	popped += len(q.PopExpired(1 << 40))
	assert.Equal(t, 800, popped)
}
