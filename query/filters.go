package query

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// LogFilter selects log records, plus which related records the server
// must co-return with each match.
type LogFilter struct {
	Address []string `json:"address,omitempty"`
	Topic0  []string `json:"topic0,omitempty"`
	Topic1  []string `json:"topic1,omitempty"`
	Topic2  []string `json:"topic2,omitempty"`
	Topic3  []string `json:"topic3,omitempty"`

	Transaction           bool `json:"transaction,omitempty"`
	TransactionTraces     bool `json:"transactionTraces,omitempty"`
	TransactionLogs       bool `json:"transactionLogs,omitempty"`
	TransactionStateDiffs bool `json:"transactionStateDiffs,omitempty"`
}

func (f LogFilter) normalized() LogFilter {
	f.Address = normalizeAddresses(f.Address)
	f.Topic0 = normalizeHashes(f.Topic0)
	f.Topic1 = normalizeHashes(f.Topic1)
	f.Topic2 = normalizeHashes(f.Topic2)
	f.Topic3 = normalizeHashes(f.Topic3)
	return f
}

// TransactionFilter selects transaction records.
type TransactionFilter struct {
	To      []string `json:"to,omitempty"`
	From    []string `json:"from,omitempty"`
	Sighash []string `json:"sighash,omitempty"`
	Type    []int    `json:"type,omitempty"`

	Logs       bool `json:"logs,omitempty"`
	Traces     bool `json:"traces,omitempty"`
	StateDiffs bool `json:"stateDiffs,omitempty"`
}

func (f TransactionFilter) normalized() TransactionFilter {
	f.To = normalizeAddresses(f.To)
	f.From = normalizeAddresses(f.From)
	f.Sighash = normalizeHexList(f.Sighash)
	return f
}

// TraceFilter selects EVM call-trace records.
type TraceFilter struct {
	Type                 []string `json:"type,omitempty"`
	CreateFrom           []string `json:"createFrom,omitempty"`
	CallTo               []string `json:"callTo,omitempty"`
	CallFrom             []string `json:"callFrom,omitempty"`
	CallSighash          []string `json:"callSighash,omitempty"`
	SuicideRefundAddress []string `json:"suicideRefundAddress,omitempty"`
	RewardAuthor         []string `json:"rewardAuthor,omitempty"`

	Transaction     bool `json:"transaction,omitempty"`
	TransactionLogs bool `json:"transactionLogs,omitempty"`
	Subtraces       bool `json:"subtraces,omitempty"`
	Parents         bool `json:"parents,omitempty"`
}

func (f TraceFilter) normalized() TraceFilter {
	f.Type = lowercaseAll(f.Type)
	f.CreateFrom = normalizeAddresses(f.CreateFrom)
	f.CallTo = normalizeAddresses(f.CallTo)
	f.CallFrom = normalizeAddresses(f.CallFrom)
	f.CallSighash = normalizeHexList(f.CallSighash)
	f.SuicideRefundAddress = normalizeAddresses(f.SuicideRefundAddress)
	f.RewardAuthor = normalizeAddresses(f.RewardAuthor)
	return f
}

// StateDiffFilter selects state-diff records.
type StateDiffFilter struct {
	Address []string `json:"address,omitempty"`
	Key     []string `json:"key,omitempty"`
	Kind    []string `json:"kind,omitempty"`

	Transaction bool `json:"transaction,omitempty"`
}

func (f StateDiffFilter) normalized() StateDiffFilter {
	f.Address = normalizeAddresses(f.Address)
	f.Key = normalizeHexList(f.Key)
	f.Kind = lowercaseAll(f.Kind)
	return f
}

// normalizeAddresses lowercases a list of hex address strings. Valid
// addresses, with or without the 0x prefix, are canonicalized through
// go-ethereum's address parser to 0x-prefixed lowercase; strings that are
// not valid addresses are only trimmed and lowercased.
func normalizeAddresses(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		if common.IsHexAddress(s) {
			out[i] = strings.ToLower(common.HexToAddress(s).Hex())
		} else {
			out[i] = strings.ToLower(strings.TrimSpace(s))
		}
	}
	return out
}

// normalizeHashes lowercases a list of 32-byte hex strings (topics),
// canonicalizing through go-ethereum's hash parser.
func normalizeHashes(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		trimmed := strings.TrimSpace(s)
		if len(strings.TrimPrefix(trimmed, "0x")) == 64 {
			out[i] = strings.ToLower(common.HexToHash(trimmed).Hex())
		} else {
			out[i] = strings.ToLower(trimmed)
		}
	}
	return out
}

// normalizeHexList lowercases hex strings of variable length (sighashes,
// storage keys) without enforcing a fixed byte width.
func normalizeHexList(in []string) []string {
	if in == nil {
		return nil
	}
	return lowercaseAll(in)
}

func lowercaseAll(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}
