package datasource

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowdrip-network/portal-sdk/portal"
	"github.com/slowdrip-network/portal-sdk/query"
)

func blockLine(n uint64) string {
	b, _ := json.Marshal(portal.Block{Header: portal.BlockHeader{Number: portal.FlexUint64(n)}})
	return string(b) + "\n"
}

func TestGetBlockStreamClipsToOuterRange(t *testing.T) {
	mux := http.NewServeMux()
	var done bool
	mux.HandleFunc("/finalized-stream", func(w http.ResponseWriter, r *http.Request) {
		if done {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		done = true
		var req query.WireRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.WriteHeader(http.StatusOK)
		to := req.FromBlock
		if req.ToBlock != nil {
			to = *req.ToBlock
		}
		for i := req.FromBlock; i <= to; i++ {
			io.WriteString(w, blockLine(i))
		}
	})
	mux.HandleFunc("/finalized-stream/height", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "100")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := portal.NewClient(portal.Config{
		URL:            srv.URL,
		MinBytes:       1,
		MaxBytes:       1 << 20,
		MaxIdleTime:    50 * time.Millisecond,
		MaxWaitTime:    time.Hour,
		RequestTimeout: 2 * time.Second,
	})
	ds := New(client)

	b := query.NewBuilder()
	full := uint64(100)
	b.SetRange(query.Range{From: 0, To: &full})
	b.IncludeAllBlocks(query.Range{From: 0, To: &full})
	q := b.Build()

	outerTo := uint64(20)
	stream, err := ds.GetBlockStream(context.Background(), query.Range{From: 10, To: &outerTo}, q, portal.StreamOptions{StopOnHead: true})
	require.NoError(t, err)
	defer stream.Cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var got []uint64
	for {
		blk, err := stream.Next(ctx)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, uint64(blk.Header.Number))
	}

	want := make([]uint64, 0, 11)
	for i := uint64(10); i <= 20; i++ {
		want = append(want, i)
	}
	assert.Equal(t, want, got)
}
