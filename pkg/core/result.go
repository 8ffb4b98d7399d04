package core

// Row is one generated record: dimension names map to member strings,
// measure names map to float64 values or nil when missing.
type Row = map[string]any

// Result is the batch output of a generation request.
type Result struct {
	// Rows are the final formatted records.
	Rows []Row `json:"rows"`
	// Columns is the output column order (dimensions in declared order,
	// then measures lexicographically).
	Columns []string `json:"columns"`
	// Issues collects human-readable warnings and validation findings.
	// An empty list means a clean run. Issues never replace data.
	Issues []string `json:"issues"`
}

// Batch is one chunk of a streaming generation. Each batch is
// independently serializable as a JSON array of rows.
type Batch struct {
	Rows    []Row    `json:"rows"`
	Columns []string `json:"columns"`
}

// StatusFunc receives plain-text progress messages at generation
// checkpoints. Delivery is fire-and-forget: failures inside the sink
// are swallowed by the caller and must never abort generation. A nil
// StatusFunc is valid.
type StatusFunc func(message string)
