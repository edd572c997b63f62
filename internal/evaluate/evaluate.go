// Package evaluate scores an answer file against ground-truth positions and
// reports Recall@1.
package evaluate

import (
	"fmt"

	"github.com/kozaktomas/placematch/internal/answer"
	"github.com/kozaktomas/placematch/internal/gallery"
	"github.com/kozaktomas/placematch/internal/groundtruth"
)

// DefaultRadius is the largest query-to-answer distance counted as correct.
const DefaultRadius = 10.0

// Evaluator checks retrieved positions against a sheet.
type Evaluator struct {
	Sheet  *groundtruth.Sheet
	Radius float64
}

// Entry is the verdict for one answer line.
type Entry struct {
	Line       int     `json:"line"`
	Query      string  `json:"query"`
	Database   string  `json:"database,omitempty"`
	QueryID    string  `json:"query_id"`
	DatabaseID string  `json:"database_id,omitempty"`
	Distance   float64 `json:"distance"`
	Matched    bool    `json:"matched"`
	Correct    bool    `json:"correct"`
}

// Report summarises an evaluation.
type Report struct {
	Total   int     `json:"total"`
	Correct int     `json:"correct"`
	Recall  float64 `json:"recall_at_1"`
	Radius  float64 `json:"radius"`
	Entries []Entry `json:"entries,omitempty"`
}

// Evaluate judges every line. A line without a database image counts as
// incorrect. Any id missing from the sheet aborts the evaluation with
// groundtruth.ErrLookupMiss. An empty answer yields a recall of zero.
func (e Evaluator) Evaluate(lines []answer.Line) (*Report, error) {
	report := &Report{Total: len(lines), Radius: e.Radius, Entries: make([]Entry, 0, len(lines))}

	for i, l := range lines {
		entry := Entry{Line: i + 1, Query: l.Query, QueryID: gallery.ImageID(l.Query)}

		qpos, err := e.Sheet.Lookup(entry.QueryID, groundtruth.RoleQuery)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", entry.Line, err)
		}

		if l.Matched() {
			entry.Matched = true
			entry.Database = l.Database
			entry.DatabaseID = gallery.ImageID(l.Database)

			dpos, err := e.Sheet.Lookup(entry.DatabaseID, groundtruth.RoleDatabase)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", entry.Line, err)
			}
			dist, err := groundtruth.Distance(qpos, dpos)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", entry.Line, err)
			}
			entry.Distance = dist
			entry.Correct = dist <= e.Radius
		}

		if entry.Correct {
			report.Correct++
		}
		report.Entries = append(report.Entries, entry)
	}

	if report.Total > 0 {
		report.Recall = float64(report.Correct) / float64(report.Total)
	}
	return report, nil
}
