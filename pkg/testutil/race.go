// Package testutil carries helpers shared by store and service tests.
package testutil

import (
	"errors"
	"sync"

	"vigil/internal/sentinel"
)

// Tally summarizes the outcomes of a batch of racing operations. Missing
// counts sentinel.ErrNotFound results separately because reads racing
// against deletes produce them legitimately; anything else lands in Failed.
type Tally struct {
	OK      int
	Missing int
	Failed  int
}

// Race runs op from n goroutines at once and tallies the outcomes after
// all of them return. Each goroutine writes only its own error slot, so
// the tally itself adds no synchronization beyond the final join.
func Race(n int, op func(i int) error) Tally {
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = op(i)
		}(i)
	}
	wg.Wait()

	var t Tally
	for _, err := range errs {
		switch {
		case err == nil:
			t.OK++
		case errors.Is(err, sentinel.ErrNotFound):
			t.Missing++
		default:
			t.Failed++
		}
	}
	return t
}
