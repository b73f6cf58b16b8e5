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

package stream

import (
	"testing"
	"time"

	"github.com/nodedb/nodedb-go/types"
)

func TestRecordsetClosesAfterLastProducerDone(t *testing.T) {
	rs := NewRecordset(4, 2)
	rs.Push(Result{Record: &types.Record{}})
	rs.Done()

	select {
	case _, ok := <-rs.Results():
		if !ok {
			t.Fatal("recordset closed before second producer finished")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for buffered result")
	}

	rs.Done()

	drained := false
	for i := 0; i < 10; i++ {
		select {
		case _, ok := <-rs.Results():
			if !ok {
				drained = true
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for channel close")
		}
		if drained {
			break
		}
	}
	if !drained {
		t.Fatal("recordset never closed after every producer finished")
	}
}

func TestRecordsetZeroProducersClosesImmediately(t *testing.T) {
	rs := NewRecordset(4, 0)
	_, ok := <-rs.Results()
	if ok {
		t.Fatal("expected an immediately-closed channel for zero producers")
	}
}

func TestRecordsetPushBlocksWhenFull(t *testing.T) {
	rs := NewRecordset(1, 1)
	if !rs.Push(Result{Record: &types.Record{}}) {
		t.Fatal("first push should succeed")
	}

	pushed := make(chan bool, 1)
	go func() {
		pushed <- rs.Push(Result{Record: &types.Record{}})
	}()

	select {
	case <-pushed:
		t.Fatal("second push returned while queue was still full")
	case <-time.After(50 * time.Millisecond):
	}

	<-rs.Results()
	select {
	case ok := <-pushed:
		if !ok {
			t.Fatal("blocked push should have succeeded once the queue drained")
		}
	case <-time.After(time.Second):
		t.Fatal("push never unblocked after the queue drained")
	}
}

func TestRecordsetCancelUnblocksPush(t *testing.T) {
	rs := NewRecordset(1, 1)
	rs.Push(Result{Record: &types.Record{}})

	pushed := make(chan bool, 1)
	go func() {
		pushed <- rs.Push(Result{Record: &types.Record{}})
	}()

	time.Sleep(20 * time.Millisecond)
	rs.Cancel()

	select {
	case ok := <-pushed:
		if ok {
			t.Fatal("push should report failure once the recordset is cancelled")
		}
	case <-time.After(time.Second):
		t.Fatal("cancel did not unblock a parked push")
	}
	if !rs.IsCancelled() {
		t.Fatal("IsCancelled should be true after Cancel")
	}
}
