package workday

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/geoclock/timekeeper/internal/errors"
	"github.com/geoclock/timekeeper/internal/localday"
)

func TestKeySet_DeduplicatesByRow(t *testing.T) {
	ny, _ := time.LoadLocation("America/New_York")
	a := Key{UserID: "u", LocationID: "l", Date: localday.MustParseDate("2024-01-01"), Timezone: ny}
	b := a
	b.Timezone = time.UTC
	c := a
	c.Date = c.Date.AddDays(1)

	set := NewKeySet(a, b, c)
	assert.Equal(t, 2, set.Len())
	assert.Same(t, ny, set.Keys()[0].Timezone, "first key for a row wins")
	assert.True(t, set.Contains(c.Row()))

	var other KeySet
	other.Add(c)
	other.Merge(set)
	assert.Equal(t, []Key{c, a}, other.Keys())
}

func TestKey_Validate(t *testing.T) {
	ok := Key{UserID: "u", LocationID: "l", Date: localday.MustParseDate("2024-01-01")}
	assert.NoError(t, ok.Validate())

	missing := ok
	missing.UserID = ""
	err := missing.Validate()
	assert.True(t, errors.IsValidation(err))
	assert.Contains(t, err.Error(), "userId")

	missing = ok
	missing.Date = localday.Date{}
	assert.Contains(t, missing.Validate().Error(), "date")
}

func TestLocker_SerializesSameRow(t *testing.T) {
	l := NewLocker()
	row := RowKey{UserID: "u", LocationID: "l", Date: localday.MustParseDate("2024-01-01")}

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Go(func() {
			unlock := l.Lock(row)
			n := inside.Add(1)
			for {
				m := maxInside.Load()
				if n <= m || maxInside.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			unlock()
		})
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside.Load())
	assert.Equal(t, 0, l.held())
}

func TestLocker_DistinctRowsDoNotBlock(t *testing.T) {
	l := NewLocker()
	a := RowKey{UserID: "a"}
	b := RowKey{UserID: "b"}

	unlockA := l.Lock(a)
	done := make(chan struct{})
	go func() {
		unlock := l.Lock(b)
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different row blocked")
	}
	unlockA()
	assert.Equal(t, 0, l.held())
}
