// Package query builds the declarative, per-range request a consumer sends
// to the portal: a block range plus filters over logs, transactions,
// traces, and state diffs, normalized and merged into the canonical wire
// shape the finalized-stream endpoint expects.
package query

import "github.com/slowdrip-network/portal-sdk/internal/rangeset"

// Range re-exports the range algebra's Range so callers of this package
// never need to import internal/rangeset directly.
type Range = rangeset.Range

// WireRequest is the JSON body POSTed to the portal's finalized-stream
// endpoint for one contiguous range segment.
type WireRequest struct {
	Type             string              `json:"type"`
	FromBlock        uint64              `json:"fromBlock"`
	ToBlock          *uint64             `json:"toBlock,omitempty"`
	Fields           Fields              `json:"fields"`
	Logs             []LogFilter         `json:"logs,omitempty"`
	Transactions     []TransactionFilter `json:"transactions,omitempty"`
	Traces           []TraceFilter       `json:"traces,omitempty"`
	StateDiffs       []StateDiffFilter   `json:"stateDiffs,omitempty"`
	IncludeAllBlocks bool                `json:"includeAllBlocks,omitempty"`
}

// RangeRequest pairs a disjoint output range with the wire request that
// covers it.
type RangeRequest struct {
	Range   Range
	Request WireRequest
}

// Query is the result of Builder.Build(): an outer range plus an ordered,
// disjoint list of per-range wire requests.
type Query struct {
	Range            Range
	PerRangeRequests []RangeRequest
}

// filterPayload is the per-range accumulator merged by the range sweep:
// optional filter lists (nil means "none contributed", distinct from an
// empty-but-present slice only insofar as both serialize identically —
// omitempty drops both) plus the include-all-blocks OR.
type filterPayload struct {
	Logs             []LogFilter
	Transactions     []TransactionFilter
	Traces           []TraceFilter
	StateDiffs       []StateDiffFilter
	IncludeAllBlocks bool
}

func mergePayload(a, b filterPayload) filterPayload {
	return filterPayload{
		Logs:             concatLog(a.Logs, b.Logs),
		Transactions:     concatTx(a.Transactions, b.Transactions),
		Traces:           concatTrace(a.Traces, b.Traces),
		StateDiffs:       concatStateDiff(a.StateDiffs, b.StateDiffs),
		IncludeAllBlocks: a.IncludeAllBlocks || b.IncludeAllBlocks,
	}
}

func concatLog(a, b []LogFilter) []LogFilter {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make([]LogFilter, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

func concatTx(a, b []TransactionFilter) []TransactionFilter {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make([]TransactionFilter, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

func concatTrace(a, b []TraceFilter) []TraceFilter {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make([]TraceFilter, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

func concatStateDiff(a, b []StateDiffFilter) []StateDiffFilter {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make([]StateDiffFilter, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}
