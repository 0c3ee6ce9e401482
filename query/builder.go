package query

import "github.com/slowdrip-network/portal-sdk/internal/rangeset"

// Builder is a stateful accumulator for per-range filters and field
// projections. Each mutator returns the Builder so calls can be chained;
// this is purely cosmetic, callers are free to hold the Builder in a
// variable and call methods one at a time.
type Builder struct {
	entries  []rangeset.Entry[filterPayload]
	fields   Fields
	outer    Range
	hasOuter bool
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// SetRange sets the outer bound that Build() clips the accumulated
// per-range requests by. If never called, Build() is unbounded.
func (b *Builder) SetRange(outer Range) *Builder {
	b.outer = outer
	b.hasOuter = true
	return b
}

// SetFields sets the user field projection. It is unioned with
// AlwaysSelected() at Build() time, not here, so repeated calls replace
// rather than accumulate.
func (b *Builder) SetFields(f Fields) *Builder {
	b.fields = f
	return b
}

// AddLog adds a log filter over r, lowercasing its hex fields immediately
// so later merges compare normalized strings as equal.
func (b *Builder) AddLog(f LogFilter, r Range) *Builder {
	b.add(r, filterPayload{Logs: []LogFilter{f.normalized()}})
	return b
}

// AddTransaction adds a transaction filter over r.
func (b *Builder) AddTransaction(f TransactionFilter, r Range) *Builder {
	b.add(r, filterPayload{Transactions: []TransactionFilter{f.normalized()}})
	return b
}

// AddTrace adds a trace filter over r.
func (b *Builder) AddTrace(f TraceFilter, r Range) *Builder {
	b.add(r, filterPayload{Traces: []TraceFilter{f.normalized()}})
	return b
}

// AddStateDiff adds a state-diff filter over r.
func (b *Builder) AddStateDiff(f StateDiffFilter, r Range) *Builder {
	b.add(r, filterPayload{StateDiffs: []StateDiffFilter{f.normalized()}})
	return b
}

// IncludeAllBlocks marks r as requiring every block to be returned even
// without a matching filter hit (e.g. for gapless block-header streaming).
func (b *Builder) IncludeAllBlocks(r Range) *Builder {
	b.add(r, filterPayload{IncludeAllBlocks: true})
	return b
}

func (b *Builder) add(r Range, p filterPayload) {
	b.entries = append(b.entries, rangeset.Entry[filterPayload]{Range: r, Payload: p})
}

// Build merges the accumulated per-range filters (concatenating per-kind
// lists in input order, OR-ing includeAllBlocks), clips the result by the
// outer range if one was set, and returns the canonical Query: disjoint
// ranges sorted ascending by From, each carrying one wire request with the
// effective field selection (user selection ∪ AlwaysSelected()).
func (b *Builder) Build() Query {
	merged := rangeset.Merge(b.entries, mergePayload)
	if b.hasOuter {
		merged = rangeset.Clip(merged, b.outer)
	}

	effectiveFields := b.fields.Union(AlwaysSelected())

	outer := b.outer
	if !b.hasOuter {
		outer = Range{From: 0}
		if len(merged) > 0 {
			outer.From = merged[0].Range.From
		}
	}

	reqs := make([]RangeRequest, 0, len(merged))
	for _, e := range merged {
		reqs = append(reqs, RangeRequest{
			Range: e.Range,
			Request: WireRequest{
				Type:             "evm",
				FromBlock:        e.Range.From,
				ToBlock:          e.Range.To,
				Fields:           effectiveFields,
				Logs:             e.Payload.Logs,
				Transactions:     e.Payload.Transactions,
				Traces:           e.Payload.Traces,
				StateDiffs:       e.Payload.StateDiffs,
				IncludeAllBlocks: e.Payload.IncludeAllBlocks,
			},
		})
	}

	return Query{Range: outer, PerRangeRequests: reqs}
}
