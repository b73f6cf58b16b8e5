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

package filter

import "github.com/nodedb/nodedb-go/wire"

// ContainerOp names one container (list/map/hll/bit) accessor, mirroring
// the subset of operate-op verbs exposed for use inside a filter
// expression.
type ContainerOp int

const (
	ListSizeOp ContainerOp = iota
	ListGetByIndexOp
	ListGetByRankOp
	MapSizeOp
	MapGetByKeyOp
	MapGetByRankOp
	HLLGetCountOp
	HLLGetUnionCountOp
	BitCountOp
	BitGetOp
)

// containerExpr applies op to bin, with zero or more operand
// subexpressions (an index, a key, a bit offset and size, …).
type containerExpr struct {
	op   ContainerOp
	bin  Expr
	args []Expr
}

func ListSize(bin Expr) Expr                    { return containerExpr{ListSizeOp, bin, nil} }
func ListGetByIndex(bin, index Expr) Expr       { return containerExpr{ListGetByIndexOp, bin, []Expr{index}} }
func ListGetByRank(bin, rank Expr) Expr         { return containerExpr{ListGetByRankOp, bin, []Expr{rank}} }
func MapSize(bin Expr) Expr                     { return containerExpr{MapSizeOp, bin, nil} }
func MapGetByKey(bin, key Expr) Expr            { return containerExpr{MapGetByKeyOp, bin, []Expr{key}} }
func MapGetByRank(bin, rank Expr) Expr          { return containerExpr{MapGetByRankOp, bin, []Expr{rank}} }
func HLLGetCount(bin Expr) Expr                 { return containerExpr{HLLGetCountOp, bin, nil} }
func HLLGetUnionCount(bin, other Expr) Expr     { return containerExpr{HLLGetUnionCountOp, bin, []Expr{other}} }
func BitCount(bin, bitOffset, bitSize Expr) Expr {
	return containerExpr{BitCountOp, bin, []Expr{bitOffset, bitSize}}
}
func BitGet(bin, bitOffset, bitSize Expr) Expr {
	return containerExpr{BitGetOp, bin, []Expr{bitOffset, bitSize}}
}

func (e containerExpr) encode(b *wire.Buffer) {
	wire.PackArrayHeader(b, 3+len(e.args))
	wire.PackInt(b, opContainer)
	wire.PackInt(b, int64(e.op))
	e.bin.encode(b)
	for _, a := range e.args {
		a.encode(b)
	}
}
