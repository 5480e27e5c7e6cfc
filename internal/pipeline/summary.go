package pipeline

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"github.com/kiranshivaraju/medinventory/internal/ai"
	"github.com/kiranshivaraju/medinventory/internal/dataset"
	"github.com/kiranshivaraju/medinventory/internal/stage"
	"github.com/kiranshivaraju/medinventory/pkg/models"
)

const maxSamples = 10

// Summary describes a finished run.
type Summary struct {
	InputName   string
	OutputName  string
	SummaryName string
	TotalItems  int
	Categories  []models.LabelCount
	Facilities  []models.LabelCount
	CrossTab    *models.CrossTab
	Stages      []models.StageStats
	Samples     []models.DescriptionSample
	Usage       models.UsageStats
	Elapsed     time.Duration
}

// Results converts the summary into the payload attached to a finished job.
func (s *Summary) Results() *models.JobResults {
	return &models.JobResults{
		TotalItems:     s.TotalItems,
		Categories:     s.Categories,
		Facilities:     s.Facilities,
		CrossTab:       s.CrossTab,
		Stages:         s.Stages,
		Samples:        s.Samples,
		Usage:          s.Usage,
		OutputFile:     s.OutputName,
		SummaryFile:    s.SummaryName,
		ElapsedSeconds: s.Elapsed.Seconds(),
	}
}

func buildSummary(ds *dataset.Dataset, opts Options, stats []models.StageStats, usage models.UsageStats, seed uint64) *Summary {
	s := &Summary{
		InputName:  opts.InputName,
		TotalItems: ds.Len(),
		Stages:     stats,
		Usage:      usage,
		Categories: Distribution(ds.Column(models.ColumnProductCategory)),
	}
	if !opts.SkipFacility {
		s.Facilities = Distribution(ds.Column(models.ColumnFacility))
		s.CrossTab = CrossTabulate(ds.Column(models.ColumnProductCategory), ds.Column(models.ColumnFacility))
	}
	if !opts.SkipDescriptions {
		s.Samples = sampleDescriptions(ds, seed)
	}
	return s
}

// Distribution counts values, most frequent first, ties by label. Empty
// values are not counted; percentages are relative to len(values).
func Distribution(values []string) []models.LabelCount {
	counts := make(map[string]int)
	for _, v := range values {
		if v != "" {
			counts[v]++
		}
	}
	out := make([]models.LabelCount, 0, len(counts))
	for label, n := range counts {
		out = append(out, models.LabelCount{
			Label:   label,
			Count:   n,
			Percent: float64(n) / float64(len(values)) * 100,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// CrossTabulate counts (row, column) pairs. Labels are sorted; pairs with an
// empty side are skipped.
func CrossTabulate(rows, cols []string) *models.CrossTab {
	rowIdx := map[string]int{}
	colIdx := map[string]int{}
	for i := range rows {
		if rows[i] == "" || i >= len(cols) || cols[i] == "" {
			continue
		}
		rowIdx[rows[i]] = 0
		colIdx[cols[i]] = 0
	}
	ct := &models.CrossTab{Rows: sortedKeys(rowIdx), Columns: sortedKeys(colIdx)}
	for i, r := range ct.Rows {
		rowIdx[r] = i
	}
	for j, c := range ct.Columns {
		colIdx[c] = j
	}
	ct.Counts = make([][]int, len(ct.Rows))
	for i := range ct.Counts {
		ct.Counts[i] = make([]int, len(ct.Columns))
	}
	for i := range rows {
		if rows[i] == "" || i >= len(cols) || cols[i] == "" {
			continue
		}
		ct.Counts[rowIdx[rows[i]]][colIdx[cols[i]]]++
	}
	return ct
}

// sampleDescriptions picks up to maxSamples rows with a generated
// description. Placeholders never count as generated.
func sampleDescriptions(ds *dataset.Dataset, seed uint64) []models.DescriptionSample {
	var candidates []int
	for i := 0; i < ds.Len(); i++ {
		if isGenerated(ds.Get(i, models.ColumnSimpleDescription)) {
			candidates = append(candidates, i)
		}
	}
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	if len(candidates) > maxSamples {
		candidates = candidates[:maxSamples]
	}
	sort.Ints(candidates)

	out := make([]models.DescriptionSample, len(candidates))
	for k, i := range candidates {
		out[k] = models.DescriptionSample{
			Original: ds.Get(i, models.ColumnDescription),
			Simple:   ds.Get(i, models.ColumnSimpleDescription),
		}
	}
	return out
}

func isGenerated(simple string) bool {
	return simple != "" &&
		simple != stage.NoDescription &&
		!strings.HasPrefix(simple, ai.DescriptionFailedPrefix)
}

func sortedKeys(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// RenderReport formats the plain-text summary report.
func RenderReport(s Summary) string {
	var b strings.Builder
	b.WriteString("Medical Inventory Processing Summary\n")
	b.WriteString("==================================\n\n")

	fmt.Fprintf(&b, "Input file: %s\n", s.InputName)
	fmt.Fprintf(&b, "Output file: %s\n", s.OutputName)
	fmt.Fprintf(&b, "Processing time: %.2f seconds\n\n", s.Elapsed.Seconds())
	fmt.Fprintf(&b, "Total items processed: %d\n\n", s.TotalItems)

	writeDistribution(&b, "Product Category Distribution:", s.Categories)

	if s.Facilities != nil {
		b.WriteString("\n")
		writeDistribution(&b, "Facility Suitability Distribution:", s.Facilities)
	}

	if s.CrossTab != nil && len(s.CrossTab.Rows) > 0 {
		b.WriteString("\nCategory by Facility Cross-tabulation:\n")
		b.WriteString("---------------------------------\n")
		writeCrossTab(&b, s.CrossTab)
	}

	if len(s.Stages) > 0 {
		b.WriteString("\nStage Statistics:\n")
		b.WriteString("-----------------\n")
		for _, st := range s.Stages {
			fmt.Fprintf(&b, "%s: %d processed, %d skipped, %d by keyword, %d model calls, %d sentinel (%.2fs)\n",
				st.Stage, st.Processed, st.Skipped, st.KeywordHits, st.ModelCalls, st.Sentinels, st.Seconds)
		}
	}

	if len(s.Samples) > 0 {
		b.WriteString("\nSample of Simple Descriptions:\n")
		b.WriteString("----------------------------\n")
		for _, sm := range s.Samples {
			fmt.Fprintf(&b, "Original: %s\n", sm.Original)
			fmt.Fprintf(&b, "Simple  : %s\n\n", sm.Simple)
		}
	}

	b.WriteString("\nAPI Usage:\n")
	b.WriteString("----------\n")
	fmt.Fprintf(&b, "Requests: %d\n", s.Usage.Requests)
	fmt.Fprintf(&b, "Tokens: %d\n", s.Usage.Tokens)
	fmt.Fprintf(&b, "Estimated cost: $%.4f\n", s.Usage.EstimatedCost)
	return b.String()
}

func writeDistribution(b *strings.Builder, title string, counts []models.LabelCount) {
	b.WriteString(title + "\n")
	b.WriteString(strings.Repeat("-", len(title)-1) + "\n")
	for _, c := range counts {
		fmt.Fprintf(b, "%s: %d (%.1f%%)\n", c.Label, c.Count, c.Percent)
	}
}

func writeCrossTab(b *strings.Builder, ct *models.CrossTab) {
	width := len("Product Category")
	for _, r := range ct.Rows {
		width = max(width, len(r))
	}
	colWidths := make([]int, len(ct.Columns))
	for j, c := range ct.Columns {
		colWidths[j] = max(len(c), 5)
	}

	fmt.Fprintf(b, "%-*s", width, "Product Category")
	for j, c := range ct.Columns {
		fmt.Fprintf(b, "  %*s", colWidths[j], c)
	}
	b.WriteString("\n")
	for i, r := range ct.Rows {
		fmt.Fprintf(b, "%-*s", width, r)
		for j, n := range ct.Counts[i] {
			fmt.Fprintf(b, "  %*d", colWidths[j], n)
		}
		b.WriteString("\n")
	}
}
