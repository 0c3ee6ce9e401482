// Package portal implements the finalized-streaming client: it drives HTTP
// requests against a portal's finalized-stream endpoint, resumes across
// server-side truncations, polls at the head, decodes newline-delimited
// JSON blocks, and exposes a pull-based, backpressure-aware batch stream.
package portal

import (
	"encoding/json"
	"strconv"
	"strings"
)

// FlexUint64 decodes a JSON number or a decimal string into a uint64,
// tolerating the portal's occasional use of string-encoded integers to
// preserve precision beyond float64.
type FlexUint64 uint64

// UnmarshalJSON implements json.Unmarshaler.
func (n *FlexUint64) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return err
	}
	*n = FlexUint64(v)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (n FlexUint64) MarshalJSON() ([]byte, error) {
	return json.Marshal(uint64(n))
}

// FinalizedHead is the current finalized chain tip stamped onto each
// delivered batch. Hash is always empty against this protocol version; the
// field is kept for forward source-compatibility.
type FinalizedHead struct {
	Number uint64 `json:"number"`
	Hash   string `json:"hash,omitempty"`
}

func (h FinalizedHead) isZero() bool { return h.Number == 0 && h.Hash == "" }

// BlockHeader carries the always-selected header fields plus whatever
// additional header fields the field selection requested, preserved as
// raw JSON since the core never decodes into a domain object model.
type BlockHeader struct {
	Number     FlexUint64                 `json:"number"`
	Hash       string                     `json:"hash"`
	ParentHash string                     `json:"parentHash"`
	Extra      map[string]json.RawMessage `json:"-"`
}

// UnmarshalJSON captures the always-selected fields into typed members and
// everything else into Extra, so additional selected header fields survive
// round-tripping without the core needing to know their names in advance.
func (h *BlockHeader) UnmarshalJSON(data []byte) error {
	type known struct {
		Number     FlexUint64 `json:"number"`
		Hash       string     `json:"hash"`
		ParentHash string     `json:"parentHash"`
	}
	var k known
	if err := json.Unmarshal(data, &k); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	delete(raw, "number")
	delete(raw, "hash")
	delete(raw, "parentHash")

	h.Number = k.Number
	h.Hash = k.Hash
	h.ParentHash = k.ParentHash
	if len(raw) > 0 {
		h.Extra = raw
	} else {
		h.Extra = nil
	}
	return nil
}

// MarshalJSON re-flattens Extra alongside the known fields.
func (h BlockHeader) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(h.Extra)+3)
	for k, v := range h.Extra {
		out[k] = v
	}
	numBytes, _ := json.Marshal(h.Number)
	out["number"] = numBytes
	hashBytes, _ := json.Marshal(h.Hash)
	out["hash"] = hashBytes
	parentBytes, _ := json.Marshal(h.ParentHash)
	out["parentHash"] = parentBytes
	return json.Marshal(out)
}

// Block is one line of the portal's newline-delimited JSON stream.
// Transactions/Logs/Traces/StateDiffs are kept as raw JSON: decoding them
// into a richer object model is a concern of the caller, not the core.
type Block struct {
	Header       BlockHeader       `json:"header"`
	Transactions []json.RawMessage `json:"transactions,omitempty"`
	Logs         []json.RawMessage `json:"logs,omitempty"`
	Traces       []json.RawMessage `json:"traces,omitempty"`
	StateDiffs   []json.RawMessage `json:"stateDiffs,omitempty"`
}

// Batch is one handoff from the streaming client to the consumer.
type Batch struct {
	FinalizedHead FinalizedHead
	Blocks        []Block
}
