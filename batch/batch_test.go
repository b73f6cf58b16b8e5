// Copyright (C) 2024 NodeDB, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package batch

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/nodedb/nodedb-go/policy"
)

func TestDispatchSequentialRunsEveryTask(t *testing.T) {
	p := policy.BatchPolicy{Concurrency: policy.ConcurrencyPolicy{Mode: policy.ConcurrencySequential}}
	var count int32
	err := dispatch(p, func(do func(fn func() error)) {
		for i := 0; i < 5; i++ {
			do(func() error {
				atomic.AddInt32(&count, 1)
				return nil
			})
		}
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 5 {
		t.Fatalf("expected 5 tasks to run, got %d", count)
	}
}

func TestDispatchSequentialReturnsFirstError(t *testing.T) {
	p := policy.BatchPolicy{Concurrency: policy.ConcurrencyPolicy{Mode: policy.ConcurrencySequential}}
	errA := errors.New("first")
	errB := errors.New("second")
	err := dispatch(p, func(do func(fn func() error)) {
		do(func() error { return errA })
		do(func() error { return errB })
	})
	if !errors.Is(err, errA) {
		t.Fatalf("expected the first error to win, got %v", err)
	}
}

func TestDispatchParallelRunsEveryTaskAndCollectsError(t *testing.T) {
	p := policy.BatchPolicy{Concurrency: policy.ConcurrencyPolicy{Mode: policy.ConcurrencyParallel}}
	var count int32
	wantErr := errors.New("node failed")
	err := dispatch(p, func(do func(fn func() error)) {
		for i := 0; i < 10; i++ {
			i := i
			do(func() error {
				atomic.AddInt32(&count, 1)
				if i == 3 {
					return wantErr
				}
				return nil
			})
		}
	})
	if count != 10 {
		t.Fatalf("expected all 10 tasks to run even though one fails, got %d", count)
	}
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected the failing task's error to surface, got %v", err)
	}
}

func TestDispatchMaxThreadsBoundsConcurrency(t *testing.T) {
	p := policy.BatchPolicy{Concurrency: policy.ConcurrencyPolicy{Mode: policy.ConcurrencyMaxThreads, MaxThreads: 2}}
	var inFlight, maxSeen int32
	err := dispatch(p, func(do func(fn func() error)) {
		for i := 0; i < 8; i++ {
			do(func() error {
				n := atomic.AddInt32(&inFlight, 1)
				for {
					seen := atomic.LoadInt32(&maxSeen)
					if n <= seen || atomic.CompareAndSwapInt32(&maxSeen, seen, n) {
						break
					}
				}
				atomic.AddInt32(&inFlight, -1)
				return nil
			})
		}
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if maxSeen > 2 {
		t.Fatalf("expected concurrency bounded to 2, observed %d in flight at once", maxSeen)
	}
}

func TestMaxInt(t *testing.T) {
	if maxInt(1, 2) != 2 {
		t.Fatal("expected maxInt(1, 2) == 2")
	}
	if maxInt(3, 2) != 3 {
		t.Fatal("expected maxInt(3, 2) == 3")
	}
}
