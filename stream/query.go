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
	"github.com/nodedb/nodedb-go/policy"
	"github.com/nodedb/nodedb-go/types"
)

// IndexFilter narrows a Statement to records whose BinName value falls
// in [Begin, End]; an equality filter sets Begin == End.
type IndexFilter struct {
	IndexName string
	BinName   string
	Begin     types.Value
	End       types.Value
}

// Statement describes a secondary-index query: the namespace/set it
// targets, the bins to return (nil means every bin), and an optional
// index filter.
type Statement struct {
	Namespace string
	SetName   string
	BinNames  []string
	Filter    *IndexFilter
}

// Query runs a secondary-index query across every node that owns a
// targeted partition, returning a Recordset the caller drains as results
// arrive.
func Query(c clusterView, stmt Statement, p policy.QueryPolicy, filter PartitionFilter) (*Recordset, error) {
	t, err := AssignPartitions(c.Partitions(), stmt.Namespace, filter)
	if err != nil {
		return nil, err
	}

	groups := t.NodeGroups()
	rs := NewRecordset(0, len(groups))
	if len(groups) == 0 {
		return rs, nil
	}

	perNode := assignMaxRecords(p.MaxRecords, len(groups))
	for i, np := range groups {
		req := streamRequest{
			Namespace:        stmt.Namespace,
			SetName:          stmt.SetName,
			BinNames:         stmt.BinNames,
			IncludeBinData:   true,
			TaskID:           rs.TaskID(),
			FilterExpression: p.FilterExpression,
			RecordsPerSecond: p.RecordsPerSecond,
			MaxRecords:       perNode[i],
			Duration:         p.QueryDuration,
			Index:            stmt.Filter,
			Full:             np.Full,
			Partial:          np.Partial,
		}
		go runWorker(np, t, rs, "query-abort", req, p.SocketTimeout)
	}
	return rs, nil
}
