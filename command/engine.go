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
	"time"

	"github.com/cenkalti/backoff"

	"github.com/nodedb/nodedb-go/cluster"
	"github.com/nodedb/nodedb-go/partition"
	"github.com/nodedb/nodedb-go/policy"
	"github.com/nodedb/nodedb-go/pool"
	"github.com/nodedb/nodedb-go/types"
	"github.com/nodedb/nodedb-go/wire"
)

// connProvider is the slice of cluster.Node the engine actually needs;
// partition.Node alone (Name/Active/RackID) doesn't expose connections,
// by design, so the router stays independent of the pool package.
type connProvider interface {
	partition.Node
	GetConnection(timeout time.Duration) (*pool.Pooled, error)
}

// prepareFunc serializes a request's fields and ops. info1/2/3 and the
// generation/expiration/ttl triple are filled in by the caller's
// messageOpts, independent of prepare.
type prepareFunc func(rq *request)

// parseFunc consumes a successful (result code Ok) response body and
// builds the command's result. It never sees a non-Ok response — the
// engine handles those itself per the keep-connection/retryable
// contract.
type parseFunc func(hdr wire.MessageHeader, r *wire.Reader) (any, error)

// connErr wraps a transport failure as a ClientError, marking it
// InDoubt when opts describes a write: once WriteMessage returns, the
// request may already have reached the server, so a subsequent I/O
// failure (send or response read) can't tell a dropped write from one
// the server applied before the connection broke.
func connErr(err error, opts messageOpts) *types.ClientError {
	ce := types.ErrConnection(err)
	if opts.Info2&wire.Info2Write != 0 {
		ce.InDoubt = true
	}
	return ce
}

// Engine runs the shared single-key retry/deadline loop described for
// every command: route, checkout, write, read, decide whether to keep
// the connection, retry, or return.
type Engine struct {
	Cluster *cluster.Cluster
}

// Execute runs one command to completion, retrying per base's policy.
func (e *Engine) Execute(base policy.BasePolicy, namespace string, key *types.Key, opts messageOpts, prepare prepareFunc, parse parseFunc) (any, error) {
	var deadline time.Time
	hasDeadline := base.TotalTimeout > 0
	if hasDeadline {
		deadline = time.Now().Add(base.TotalTimeout)
	}

	// A constant, policy-driven delay rather than the library's default
	// exponential curve — sleep_between_retries names a fixed interval,
	// not a backoff schedule.
	var retryDelay backoff.BackOff = &backoff.ConstantBackOff{Interval: base.SleepBetweenRetries}
	if base.SleepBetweenRetries <= 0 {
		retryDelay = &backoff.ZeroBackOff{}
	}

	var lastErr error
	for attempt := 0; attempt <= base.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(retryDelay.NextBackOff())
		}
		if hasDeadline && time.Now().After(deadline) {
			return nil, types.ErrTimeout(false, "total timeout exceeded on attempt %d", attempt)
		}

		result, retry, err := e.attempt(base, namespace, key, opts, prepare, parse, attempt)
		if !retry {
			return result, err
		}
		lastErr = err
	}

	if lastErr != nil {
		return nil, types.ErrTimeout(false, "exceeded %d retries: %v", base.MaxRetries, lastErr)
	}
	return nil, types.ErrTimeout(false, "exceeded %d retries", base.MaxRetries)
}

// attempt runs a single pass of the loop. retry=true means the caller
// should advance to the next attempt without treating err as final.
func (e *Engine) attempt(base policy.BasePolicy, namespace string, key *types.Key, opts messageOpts, prepare prepareFunc, parse parseFunc, attemptNum int) (result any, retry bool, err error) {
	node, err := e.Cluster.Router().Route(e.Cluster.Partitions(), namespace, key, base.Replica, attemptNum)
	if err != nil {
		return nil, true, err
	}
	cp, ok := node.(connProvider)
	if !ok {
		return nil, true, types.ErrInvalidNode("node %q cannot provide a connection", node.Name())
	}

	pooled, err := cp.GetConnection(base.SocketTimeout)
	if err != nil {
		return nil, true, err
	}

	var rq request
	prepare(&rq)
	body := rq.build(opts)

	if err := pooled.Conn.SetIOTimeout(base.SocketTimeout); err != nil {
		pooled.Invalidate()
		return nil, true, err
	}
	if err := pooled.Conn.WriteMessage(body); err != nil {
		pooled.Invalidate()
		return nil, true, connErr(err, opts)
	}

	respBody, err := pooled.Conn.ReadMessage()
	if err != nil {
		pooled.Invalidate()
		return nil, true, connErr(err, opts)
	}

	r := wire.NewReader(respBody)
	hdr, err := wire.ReadMessageHeader(r)
	if err != nil {
		pooled.Invalidate()
		return nil, true, err
	}

	rc := types.ResultCode(hdr.ResultCode)
	if rc == types.Ok {
		result, perr := parse(hdr, r)
		if perr != nil {
			pooled.Invalidate()
			return nil, true, perr
		}
		pooled.Release()
		return result, false, nil
	}

	serverErr := types.ErrServer(rc, node.Name(), false)
	if rc.Retryable() {
		pooled.Invalidate()
		return nil, true, serverErr
	}
	pooled.Release()
	return nil, false, serverErr
}
