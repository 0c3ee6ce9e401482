package query

// Fields is a runtime field-selection tree: which columns the server must
// include per block-header / transaction / log / trace / state-diff
// record. Static type-level projection machinery that narrows return types
// at compile time is out of scope here; callers only need this value-level
// shape to build the wire request.
type Fields struct {
	Block      map[string]bool `json:"block,omitempty"`
	Transaction map[string]bool `json:"transaction,omitempty"`
	Log        map[string]bool `json:"log,omitempty"`
	Trace      map[string]bool `json:"trace,omitempty"`
	StateDiff  map[string]bool `json:"stateDiff,omitempty"`
}

// AlwaysSelected returns the fields the server must include regardless of
// user input.
func AlwaysSelected() Fields {
	return Fields{
		Block:       boolMap("number", "hash", "parentHash"),
		Transaction: boolMap("transactionIndex"),
		Log:         boolMap("logIndex", "transactionIndex"),
		Trace:       boolMap("transactionIndex", "traceAddress", "type"),
		StateDiff:   boolMap("transactionIndex", "address", "key", "kind"),
	}
}

// Union returns the field-wise OR of f and other: the effective selection
// is always the union of what the user asked for and the always-selected
// set.
func (f Fields) Union(other Fields) Fields {
	return Fields{
		Block:       unionMap(f.Block, other.Block),
		Transaction: unionMap(f.Transaction, other.Transaction),
		Log:         unionMap(f.Log, other.Log),
		Trace:       unionMap(f.Trace, other.Trace),
		StateDiff:   unionMap(f.StateDiff, other.StateDiff),
	}
}

func boolMap(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

func unionMap(a, b map[string]bool) map[string]bool {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make(map[string]bool, len(a)+len(b))
	for k, v := range a {
		if v {
			out[k] = true
		}
	}
	for k, v := range b {
		if v {
			out[k] = true
		}
	}
	return out
}
