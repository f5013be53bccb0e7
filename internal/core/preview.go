package core

// DefaultPreviewSamples is the number of sample records in a preview.
const DefaultPreviewSamples = 20

// PreviewSummary contains the counters of an import preview.
type PreviewSummary struct {
	TotalRows     int `json:"totalRows"`
	NewRows       int `json:"newRows"`
	DuplicateRows int `json:"duplicateRows"`
	BlankRows     int `json:"blankRows"`
}

// ImportPreview shows what an import would add without merging anything.
type ImportPreview struct {
	BatchID          string         `json:"batchId"`
	Summary          PreviewSummary `json:"summary"`
	Files            []FileResult   `json:"files"`
	NewRowSamples    []Record       `json:"newRowSamples"`
	SkippedSamples   []SkippedRow   `json:"skippedSamples"`
	ProcessingTimeMs int64          `json:"processingTimeMs"`
}

// Preview summarizes result, keeping at most samples new records.
func Preview(result *ImportResult, samples int) ImportPreview {
	if samples <= 0 {
		samples = DefaultPreviewSamples
	}
	p := ImportPreview{
		BatchID: result.BatchID,
		Summary: PreviewSummary{
			TotalRows:     result.TotalRows,
			NewRows:       result.Accepted(),
			DuplicateRows: result.Duplicates,
			BlankRows:     result.Blank,
		},
		Files:            result.Files,
		NewRowSamples:    result.Records[:min(samples, len(result.Records))],
		SkippedSamples:   result.Skipped,
		ProcessingTimeMs: result.Duration.Milliseconds(),
	}
	if p.NewRowSamples == nil {
		p.NewRowSamples = []Record{}
	}
	if p.SkippedSamples == nil {
		p.SkippedSamples = []SkippedRow{}
	}
	return p
}
