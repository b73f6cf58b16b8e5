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

package types

import "testing"

func TestKeepConnectionClosedSet(t *testing.T) {
	keep := []ResultCode{KeyNotFound, GenerationError, KeyExists, BinExists, ElementExists, ElementNotFound, FilterExp}
	for _, rc := range keep {
		if !rc.KeepConnection() {
			t.Errorf("%v: expected KeepConnection() == true", rc)
		}
	}
	dontKeep := []ResultCode{Ok, ServerError, Timeout, ServerNotAvailable, DeviceOverload}
	for _, rc := range dontKeep {
		if rc.KeepConnection() {
			t.Errorf("%v: expected KeepConnection() == false", rc)
		}
	}
}

func TestRetryableSet(t *testing.T) {
	retryable := []ResultCode{Timeout, ServerNotAvailable, DeviceOverload, KeyBusy}
	for _, rc := range retryable {
		if !rc.Retryable() {
			t.Errorf("%v: expected Retryable() == true", rc)
		}
	}
	notRetryable := []ResultCode{Ok, KeyNotFound, GenerationError}
	for _, rc := range notRetryable {
		if rc.Retryable() {
			t.Errorf("%v: expected Retryable() == false", rc)
		}
	}
}

func TestResultCodeStringFallback(t *testing.T) {
	s := ResultCode(255).String()
	if s == "" {
		t.Fatal("expected non-empty fallback string")
	}
}
