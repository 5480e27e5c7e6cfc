package models

// LabelCount is one row of a label distribution.
type LabelCount struct {
	Label   string  `json:"label"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// CrossTab counts rows per (category, facility) pair.
// Counts[i][j] is the number of rows with category Rows[i] and facility Columns[j].
type CrossTab struct {
	Rows    []string `json:"rows"`
	Columns []string `json:"columns"`
	Counts  [][]int  `json:"counts"`
}

// StageStats describes one completed stage pass.
type StageStats struct {
	Stage       string  `json:"stage"`
	Processed   int     `json:"processed"`
	Skipped     int     `json:"skipped"`
	KeywordHits int     `json:"keyword_hits"`
	ModelCalls  int     `json:"model_calls"`
	Sentinels   int     `json:"sentinels"`
	Seconds     float64 `json:"seconds"`
}

// DescriptionSample pairs an original description with its generated one.
type DescriptionSample struct {
	Original string `json:"original"`
	Simple   string `json:"simple"`
}

// UsageStats summarizes completion-service consumption.
type UsageStats struct {
	Requests      int64   `json:"requests"`
	Tokens        int64   `json:"tokens"`
	EstimatedCost float64 `json:"estimated_cost"`
}

// JobResults is attached to JobProgress once a job completes successfully.
type JobResults struct {
	TotalItems     int                 `json:"total_items"`
	Categories     []LabelCount        `json:"categories"`
	Facilities     []LabelCount        `json:"facilities,omitempty"`
	CrossTab       *CrossTab           `json:"cross_tab,omitempty"`
	Stages         []StageStats        `json:"stages"`
	Samples        []DescriptionSample `json:"samples,omitempty"`
	Usage          UsageStats          `json:"usage"`
	OutputFile     string              `json:"output_file"`
	SummaryFile    string              `json:"summary_file"`
	ElapsedSeconds float64             `json:"elapsed_seconds"`
}
