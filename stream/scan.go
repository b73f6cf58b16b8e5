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
	"github.com/nodedb/nodedb-go/partition"
	"github.com/nodedb/nodedb-go/policy"
)

// clusterView is the slice of *cluster.Cluster a scan/query needs: the
// current partition map to assign against. Taking the narrow interface
// instead of *cluster.Cluster keeps this package free of an import cycle
// and testable against a hand-built map.
type clusterView interface {
	Partitions() partition.Map
}

// Scan starts a full namespace/set scan across every node that owns a
// targeted partition, returning a Recordset the caller drains as results
// arrive. The scan runs across the nodes concurrently; per-node record
// counts are the policy's MaxRecords divided across live nodes, with the
// remainder distributed to the first nodes so the total is exact.
func Scan(c clusterView, namespace, setName string, binNames []string, p policy.ScanPolicy, filter PartitionFilter) (*Recordset, error) {
	t, err := AssignPartitions(c.Partitions(), namespace, filter)
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
			Namespace:        namespace,
			SetName:          setName,
			BinNames:         binNames,
			IncludeBinData:   p.IncludeBinData,
			TaskID:           rs.TaskID(),
			FilterExpression: p.FilterExpression,
			RecordsPerSecond: p.RecordsPerSecond,
			MaxRecords:       perNode[i],
			Full:             np.Full,
			Partial:          np.Partial,
		}
		go runWorker(np, t, rs, "scan-abort", req, p.SocketTimeout)
	}
	return rs, nil
}

// assignMaxRecords divides total across n workers as evenly as
// possible, handing the remainder to the first nodes so the sum across
// every worker is exactly total (0 means unbounded, handled by the
// caller treating 0 as "no MaxRecords field").
func assignMaxRecords(total int64, n int) []int64 {
	out := make([]int64, n)
	if total <= 0 || n == 0 {
		return out
	}
	per := total / int64(n)
	rem := total % int64(n)
	for i := range out {
		out[i] = per
		if int64(i) < rem {
			out[i]++
		}
	}
	return out
}
