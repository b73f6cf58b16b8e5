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

package command

import (
	"errors"
	"testing"

	"github.com/nodedb/nodedb-go/wire"
)

func TestConnErrMarksWritesInDoubt(t *testing.T) {
	ce := connErr(errors.New("broken pipe"), messageOpts{Info2: wire.Info2Write})
	if !ce.InDoubt {
		t.Fatal("a transport failure on a write must be reported InDoubt")
	}
}

func TestConnErrLeavesReadsNotInDoubt(t *testing.T) {
	ce := connErr(errors.New("broken pipe"), messageOpts{Info1: wire.Info1Read})
	if ce.InDoubt {
		t.Fatal("a transport failure on a read must never be reported InDoubt")
	}
}
