package output

// CheckOutput is the JSON form of a check run.
type CheckOutput struct {
	Files   []FileOutput `json:"files"`
	Cycles  [][]string   `json:"cycles,omitempty"`
	Summary CheckSummary `json:"summary"`
	RunID   string       `json:"run_id,omitempty"`
}

// FileOutput is one analyzed model file.
type FileOutput struct {
	Path        string             `json:"path"`
	Model       string             `json:"model"`
	Status      string             `json:"status"`
	Refs        []string           `json:"refs,omitempty"`
	Columns     []string           `json:"columns,omitempty"`
	Diagnostics []DiagnosticOutput `json:"diagnostics"`
}

// DiagnosticOutput is one diagnostic with 1-based positions.
type DiagnosticOutput struct {
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	EndLine   int    `json:"end_line"`
	EndColumn int    `json:"end_column"`
	Severity  string `json:"severity"`
	Code      string `json:"code"`
	Source    string `json:"source"`
	Message   string `json:"message"`
}

// CheckSummary counts files and diagnostics.
type CheckSummary struct {
	Files    int   `json:"files"`
	Errors   int   `json:"errors"`
	Warnings int   `json:"warnings"`
	Millis   int64 `json:"duration_ms"`
}

// RenderOutput is the JSON form of a rendered model.
type RenderOutput struct {
	File     string          `json:"file"`
	SQL      string          `json:"sql"`
	Refs     []string        `json:"refs,omitempty"`
	Segments []SegmentOutput `json:"segments,omitempty"`
}

// SegmentOutput is one entry of a position map. Offsets are bytes.
type SegmentOutput struct {
	Kind        string `json:"kind"`
	SourceStart int    `json:"source_start"`
	SourceEnd   int    `json:"source_end"`
	OutputStart int    `json:"output_start"`
	OutputEnd   int    `json:"output_end"`
	Ref         string `json:"ref,omitempty"`
}

// LineageOutput is the JSON form of a model's column lineage.
type LineageOutput struct {
	Model       string             `json:"model"`
	File        string             `json:"file"`
	Columns     []ColumnLineage    `json:"columns"`
	Diagnostics []DiagnosticOutput `json:"diagnostics,omitempty"`
}

// ColumnLineage is one output column and where it comes from.
type ColumnLineage struct {
	Name   string   `json:"name"`
	Source string   `json:"source"`
	Kind   string   `json:"kind"`
	Hops   []string `json:"hops,omitempty"`
	End    string   `json:"end"`
}
