package rangeset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u64(v uint64) *uint64 { return &v }

func TestClipDropsNonOverlapping(t *testing.T) {
	entries := []Entry[string]{
		{Range: Range{From: 0, To: u64(9)}, Payload: "a"},
		{Range: Range{From: 25, To: u64(29)}, Payload: "b"},
		{Range: Range{From: 5, To: u64(25)}, Payload: "c"},
	}
	out := Clip(entries, Range{From: 10, To: u64(24)})
	require.Len(t, out, 1)
	assert.Equal(t, Range{From: 10, To: u64(24)}, out[0].Range)
	assert.Equal(t, "c", out[0].Payload)
}

func TestClipIsIdempotentUnderIntersection(t *testing.T) {
	entries := []Entry[string]{
		{Range: Range{From: 0, To: u64(100)}, Payload: "a"},
	}
	a := Range{From: 10, To: u64(80)}
	b := Range{From: 20, To: u64(50)}

	once := Clip(Clip(entries, a), b)
	ab, ok := Intersect(a, b)
	require.True(t, ok)
	twice := Clip(entries, ab)

	assert.Equal(t, twice, once)
}

func TestMergeDisjointRangesPreserved(t *testing.T) {
	entries := []Entry[[]string]{
		{Range: Range{From: 0, To: u64(9)}, Payload: []string{"a"}},
		{Range: Range{From: 10, To: u64(19)}, Payload: []string{"b"}},
	}
	merge := func(a, b []string) []string { return append(append([]string{}, a...), b...) }

	out := Merge(entries, merge)
	require.Len(t, out, 2)
	assert.Equal(t, Range{From: 0, To: u64(9)}, out[0].Range)
	assert.Equal(t, []string{"a"}, out[0].Payload)
	assert.Equal(t, Range{From: 10, To: u64(19)}, out[1].Range)
	assert.Equal(t, []string{"b"}, out[1].Payload)
}

func TestMergeOverlappingFoldsCoveringInputs(t *testing.T) {
	entries := []Entry[[]string]{
		{Range: Range{From: 0, To: u64(19)}, Payload: []string{"a"}},
		{Range: Range{From: 10, To: u64(29)}, Payload: []string{"b"}},
	}
	merge := func(a, b []string) []string { return append(append([]string{}, a...), b...) }

	out := Merge(entries, merge)
	require.Len(t, out, 3)
	assert.Equal(t, Range{From: 0, To: u64(9)}, out[0].Range)
	assert.Equal(t, []string{"a"}, out[0].Payload)
	assert.Equal(t, Range{From: 10, To: u64(19)}, out[1].Range)
	assert.Equal(t, []string{"a", "b"}, out[1].Payload)
	assert.Equal(t, Range{From: 20, To: u64(29)}, out[2].Range)
	assert.Equal(t, []string{"b"}, out[2].Payload)
}

func TestMergeUnboundedTail(t *testing.T) {
	entries := []Entry[[]string]{
		{Range: Range{From: 0, To: u64(9)}, Payload: []string{"a"}},
		{Range: Range{From: 5, To: nil}, Payload: []string{"b"}},
	}
	merge := func(a, b []string) []string { return append(append([]string{}, a...), b...) }

	out := Merge(entries, merge)
	require.Len(t, out, 3)
	assert.Equal(t, Range{From: 0, To: u64(4)}, out[0].Range)
	assert.Equal(t, Range{From: 5, To: u64(9)}, out[1].Range)
	assert.Equal(t, []string{"a", "b"}, out[1].Payload)
	assert.Nil(t, out[2].Range.To)
	assert.Equal(t, []string{"b"}, out[2].Payload)
}

func TestMergeOrderIndependentForNonOverlapping(t *testing.T) {
	a := []Entry[[]string]{
		{Range: Range{From: 0, To: u64(9)}, Payload: []string{"x"}},
		{Range: Range{From: 10, To: u64(19)}, Payload: []string{"y"}},
	}
	b := []Entry[[]string]{a[1], a[0]}
	merge := func(x, y []string) []string { return append(append([]string{}, x...), y...) }

	assert.Equal(t, Merge(a, merge), Merge(b, merge))
}
