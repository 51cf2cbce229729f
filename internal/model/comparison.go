package model

// ComparisonEntry is the outcome of one variant in a comparison batch.
type ComparisonEntry struct {
	Index    int               `json:"index"`
	Label    string            `json:"label"`
	Scenario Scenario          `json:"scenario"`
	Status   string            `json:"status"` // "ok" | "error"
	Result   *ProjectionResult `json:"result,omitempty"`
	Kind     string            `json:"kind,omitempty"`
	Reason   string            `json:"reason,omitempty"`
}

// OK reports whether the variant evaluated successfully.
func (e ComparisonEntry) OK() bool { return e.Status == "ok" && e.Result != nil }

// ComparisonBatchResult holds one entry per submitted variant, in submission
// order.
type ComparisonBatchResult struct {
	Entries []ComparisonEntry `json:"entries"`
}

// Successful returns the entries that evaluated successfully, keeping
// submission order.
func (b ComparisonBatchResult) Successful() []ComparisonEntry {
	out := make([]ComparisonEntry, 0, len(b.Entries))
	for _, e := range b.Entries {
		if e.OK() {
			out = append(out, e)
		}
	}
	return out
}

// Failed returns the entries that did not evaluate.
func (b ComparisonBatchResult) Failed() []ComparisonEntry {
	var out []ComparisonEntry
	for _, e := range b.Entries {
		if !e.OK() {
			out = append(out, e)
		}
	}
	return out
}

// Partial reports whether some, but not all, variants succeeded.
func (b ComparisonBatchResult) Partial() bool {
	n := len(b.Successful())
	return n > 0 && n < len(b.Entries)
}

// ErrorPayload describes an error in API responses.
type ErrorPayload struct {
	Kind    string   `json:"kind"`
	Message string   `json:"message,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}
