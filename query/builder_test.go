package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u64(v uint64) *uint64 { return &v }

func TestAddLogLowercasesHex(t *testing.T) {
	b := NewBuilder()
	b.AddLog(LogFilter{Address: []string{"0xABCDEF0123456789ABCDEF0123456789ABCDEF01"}}, Range{From: 0, To: u64(10)})
	q := b.Build()
	require.Len(t, q.PerRangeRequests, 1)
	addr := q.PerRangeRequests[0].Request.Logs[0].Address[0]
	assert.Equal(t, "0xabcdef0123456789abcdef0123456789abcdef01", addr)
}

func TestBuildAlwaysSelectedUnionedIn(t *testing.T) {
	b := NewBuilder()
	b.SetFields(Fields{Log: map[string]bool{"data": true}})
	b.AddLog(LogFilter{}, Range{From: 0, To: u64(10)})
	q := b.Build()
	require.Len(t, q.PerRangeRequests, 1)
	f := q.PerRangeRequests[0].Request.Fields
	assert.True(t, f.Log["data"])
	assert.True(t, f.Log["logIndex"])
	assert.True(t, f.Log["transactionIndex"])
	assert.True(t, f.Block["number"])
}

func TestBuildClipsByOuterRange(t *testing.T) {
	b := NewBuilder()
	b.SetRange(Range{From: 10, To: u64(19)})
	b.AddLog(LogFilter{}, Range{From: 0, To: u64(100)})
	q := b.Build()
	require.Len(t, q.PerRangeRequests, 1)
	assert.Equal(t, uint64(10), q.PerRangeRequests[0].Request.FromBlock)
	require.NotNil(t, q.PerRangeRequests[0].Request.ToBlock)
	assert.Equal(t, uint64(19), *q.PerRangeRequests[0].Request.ToBlock)
}

func TestBuildMergesOverlappingRangesConcatenatingInOrder(t *testing.T) {
	b := NewBuilder()
	b.AddLog(LogFilter{Address: []string{"0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"}}, Range{From: 0, To: u64(19)})
	b.AddLog(LogFilter{Address: []string{"0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"}}, Range{From: 10, To: u64(29)})

	q := b.Build()
	require.Len(t, q.PerRangeRequests, 3)

	mid := q.PerRangeRequests[1]
	assert.Equal(t, uint64(10), mid.Range.From)
	assert.Equal(t, uint64(19), *mid.Range.To)
	require.Len(t, mid.Request.Logs, 2)
	assert.Equal(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", mid.Request.Logs[0].Address[0])
	assert.Equal(t, "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", mid.Request.Logs[1].Address[0])
}

// Build's output must not depend on the order in which filters over
// non-overlapping ranges were added.
func TestBuildOrderIndependentForNonOverlappingRanges(t *testing.T) {
	build := func(first bool) Query {
		b := NewBuilder()
		log1 := LogFilter{Address: []string{"0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"}}
		log2 := LogFilter{Address: []string{"0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"}}
		if first {
			b.AddLog(log1, Range{From: 0, To: u64(9)})
			b.AddLog(log2, Range{From: 10, To: u64(19)})
		} else {
			b.AddLog(log2, Range{From: 10, To: u64(19)})
			b.AddLog(log1, Range{From: 0, To: u64(9)})
		}
		return b.Build()
	}

	a := build(true)
	bq := build(false)
	require.Equal(t, len(a.PerRangeRequests), len(bq.PerRangeRequests))
	for i := range a.PerRangeRequests {
		assert.Equal(t, a.PerRangeRequests[i].Range, bq.PerRangeRequests[i].Range)
		assert.Equal(t, a.PerRangeRequests[i].Request.Logs, bq.PerRangeRequests[i].Request.Logs)
	}
}

func TestIncludeAllBlocksIsLogicalOr(t *testing.T) {
	b := NewBuilder()
	b.IncludeAllBlocks(Range{From: 0, To: u64(19)})
	b.AddLog(LogFilter{}, Range{From: 10, To: u64(29)})
	q := b.Build()
	require.Len(t, q.PerRangeRequests, 3)
	assert.True(t, q.PerRangeRequests[0].Request.IncludeAllBlocks)
	assert.True(t, q.PerRangeRequests[1].Request.IncludeAllBlocks)
}
