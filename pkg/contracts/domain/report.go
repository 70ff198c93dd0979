package domain

import "time"

// Source kinds for a Report
const (
	SourceUpload = "upload"
	SourceSheets = "sheets"
	SourceFile   = "file"
)

// Report is a stored analysis: where the data came from, what it looked
// like and what the pipeline produced.
type Report struct {
	ID        string          `json:"id"`
	Format    string          `json:"format,omitempty"`
	Source    string          `json:"source"`
	Name      string          `json:"name"`
	Digest    string          `json:"digest,omitempty"`
	SizeBytes int64           `json:"size_bytes,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	Profile   DatasetProfile  `json:"profile"`
	Preview   Preview         `json:"preview"`
	Analysis  *AnalysisResult `json:"analysis"`
}

// ReportSummary is the list form of a Report
type ReportSummary struct {
	ID        string     `json:"id"`
	Source    string     `json:"source"`
	Name      string     `json:"name"`
	Rows      int        `json:"rows"`
	Columns   int        `json:"columns"`
	Views     []ViewName `json:"views"`
	CreatedAt time.Time  `json:"created_at"`
}

// Summary returns the list form of r. Views are in presentation order.
func (r *Report) Summary() ReportSummary {
	s := ReportSummary{
		ID:        r.ID,
		Source:    r.Source,
		Name:      r.Name,
		Rows:      r.Profile.Rows,
		Columns:   r.Profile.Columns,
		Views:     []ViewName{},
		CreatedAt: r.CreatedAt,
	}
	if r.Analysis != nil {
		for _, name := range AllViews {
			if _, ok := r.Analysis.Views[name]; ok {
				s.Views = append(s.Views, name)
			}
		}
	}
	return s
}
