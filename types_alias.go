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

package nodedb

import (
	"github.com/nodedb/nodedb-go/policy"
	"github.com/nodedb/nodedb-go/types"
)

// These aliases let callers depend on the nodedb import path alone for
// every type a command signature mentions, without reaching into the
// internal packages that actually define them.
type (
	Value          = types.Value
	NullValue      = types.NullValue
	BoolValue      = types.BoolValue
	IntegerValue   = types.IntegerValue
	UintValue      = types.UintValue
	FloatValue     = types.FloatValue
	StringValue    = types.StringValue
	BlobValue      = types.BlobValue
	HLLValue       = types.HLLValue
	GeoJSONValue   = types.GeoJSONValue
	ListValue      = types.ListValue
	MapValue       = types.MapValue
	OrderedMapValue = types.OrderedMapValue

	Key    = types.Key
	Bin    = types.Bin
	Record = types.Record
	Host   = types.Host

	ClientError = types.ClientError
	ResultCode  = types.ResultCode
	Kind        = types.Kind

	ClientPolicy = policy.ClientPolicy
	ReadPolicy   = policy.ReadPolicy
	WritePolicy  = policy.WritePolicy
	ScanPolicy   = policy.ScanPolicy
	QueryPolicy  = policy.QueryPolicy
	BatchPolicy  = policy.BatchPolicy
)

var (
	NewValue   = types.NewValue
	NewBin     = types.NewBin
	NewKey     = types.NewKey
	ParseSeeds = types.ParseSeeds

	DefaultClientPolicy = policy.DefaultClientPolicy
	DefaultReadPolicy   = policy.DefaultReadPolicy
	DefaultWritePolicy  = policy.DefaultWritePolicy
	DefaultScanPolicy   = policy.DefaultScanPolicy
	DefaultQueryPolicy  = policy.DefaultQueryPolicy
	DefaultBatchPolicy  = policy.DefaultBatchPolicy
)
