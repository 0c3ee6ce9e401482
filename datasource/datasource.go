// Package datasource presents a portal dataset as a bounded, re-clippable
// block source: given an outer range and a query, it drives the portal
// client's stream for exactly that range regardless of how the query's own
// per-filter ranges were constructed, and exposes the dataset's current and
// finalized heights.
package datasource

import (
	"context"
	"io"

	"github.com/slowdrip-network/portal-sdk/internal/rangeset"
	"github.com/slowdrip-network/portal-sdk/portal"
	"github.com/slowdrip-network/portal-sdk/query"
)

// DataSource is a thin façade over a portal.Client scoped to one dataset.
type DataSource struct {
	client *portal.Client
}

// New wraps an already-configured portal.Client.
func New(client *portal.Client) *DataSource {
	return &DataSource{client: client}
}

// GetHeight returns the dataset's current finalized height, equivalent to
// GetFinalizedHeight on the underlying client.
func (d *DataSource) GetHeight(ctx context.Context) (uint64, error) {
	return d.client.GetFinalizedHeight(ctx)
}

// GetFinalizedHeight is an alias for GetHeight kept for callers that
// distinguish "current tip" from "finalized tip" in richer portal
// deployments; against this protocol version the two coincide.
func (d *DataSource) GetFinalizedHeight(ctx context.Context) (uint64, error) {
	return d.GetHeight(ctx)
}

// GetBlockStream clips q's per-range requests to outer and streams exactly
// that window, in ascending block order, regardless of the ranges q was
// originally built against. Ranges in q entirely outside outer contribute
// nothing; ranges partially overlapping outer are truncated to the
// overlap.
func (d *DataSource) GetBlockStream(ctx context.Context, outer query.Range, q query.Query, opts portal.StreamOptions) (*BlockStream, error) {
	clipped := rangeset.Clip(toEntries(q), outer)
	scoped := query.Query{Range: outer, PerRangeRequests: fromEntries(clipped)}

	s, err := d.client.GetFinalizedStream(ctx, scoped, opts)
	if err != nil {
		return nil, err
	}
	return &BlockStream{inner: s}, nil
}

// BlockStream flattens portal.Batch handoffs into a plain block iterator,
// since a façade consumer usually doesn't care about batch boundaries, only
// about the finalized head last observed.
type BlockStream struct {
	inner    *portal.Stream
	lastHead portal.FinalizedHead
	cur      []portal.Block
	curIdx   int
}

// Next returns the next block in ascending order, io.EOF at the end of the
// stream, or a fatal error.
func (b *BlockStream) Next(ctx context.Context) (portal.Block, error) {
	for b.curIdx >= len(b.cur) {
		batch, err := b.inner.Next(ctx)
		if err != nil {
			if err == io.EOF {
				return portal.Block{}, io.EOF
			}
			return portal.Block{}, err
		}
		b.lastHead = batch.FinalizedHead
		b.cur = batch.Blocks
		b.curIdx = 0
	}
	blk := b.cur[b.curIdx]
	b.curIdx++
	return blk, nil
}

// FinalizedHead reports the head stamped on the most recently delivered
// batch.
func (b *BlockStream) FinalizedHead() portal.FinalizedHead { return b.lastHead }

// Cancel stops the underlying stream.
func (b *BlockStream) Cancel() { b.inner.Cancel() }

func toEntries(q query.Query) []rangeset.Entry[query.WireRequest] {
	out := make([]rangeset.Entry[query.WireRequest], 0, len(q.PerRangeRequests))
	for _, rr := range q.PerRangeRequests {
		out = append(out, rangeset.Entry[query.WireRequest]{Range: rr.Range, Payload: rr.Request})
	}
	return out
}

func fromEntries(es []rangeset.Entry[query.WireRequest]) []query.RangeRequest {
	out := make([]query.RangeRequest, 0, len(es))
	for _, e := range es {
		req := e.Payload
		req.FromBlock = e.Range.From
		req.ToBlock = e.Range.To
		out = append(out, query.RangeRequest{Range: e.Range, Request: req})
	}
	return out
}
