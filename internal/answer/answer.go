// Package answer reads and writes the retrieval result file: one line per
// query of the form "query/<name> database/<name>", with None for no match.
package answer

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kozaktomas/placematch/internal/constants"
	"github.com/kozaktomas/placematch/internal/retrieval"
)

// NoMatch is written in place of a database name when a query has no answer.
const NoMatch = "None"

const (
	queryPrefix    = "query/"
	databasePrefix = " database/"
)

// ErrMalformedLine is returned for lines that do not follow the answer format.
var ErrMalformedLine = errors.New("malformed answer line")

// Line is one query and its retrieved database image. An empty Database
// means no match.
type Line struct {
	Query    string `json:"query"`
	Database string `json:"database,omitempty"`
}

// Matched reports whether the line names a database image.
func (l Line) Matched() bool { return l.Database != "" }

// String formats the line without a trailing newline.
func (l Line) String() string {
	db := l.Database
	if db == "" {
		db = NoMatch
	}
	return queryPrefix + l.Query + databasePrefix + db
}

// FromResults converts retrieval results into answer lines, keeping order.
func FromResults(results []retrieval.Result) []Line {
	lines := make([]Line, len(results))
	for i, r := range results {
		lines[i] = Line{Query: r.QueryName}
		if r.Found {
			lines[i].Database = r.DatabaseName
		}
	}
	return lines
}

// Write writes one line per entry, each terminated by a newline.
func Write(w io.Writer, lines []Line) error {
	bw := bufio.NewWriter(w)
	for _, l := range lines {
		if _, err := bw.WriteString(l.String() + "\n"); err != nil {
			return fmt.Errorf("failed to write answer: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write answer: %w", err)
	}
	return nil
}

// WriteFile creates or truncates path and writes lines to it.
func WriteFile(path string, lines []Line) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, constants.FileMode) //nolint:gosec // output path is user supplied
	if err != nil {
		return fmt.Errorf("failed to create answer file: %w", err)
	}
	if err := Write(f, lines); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close answer file: %w", err)
	}
	return nil
}

// Read parses answer lines. Blank lines are ignored; anything else that does
// not match the format fails with ErrMalformedLine and its line number.
func Read(r io.Reader) ([]Line, error) {
	var lines []Line
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		text := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		l, err := parseLine(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		lines = append(lines, l)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read answer: %w", err)
	}
	return lines, nil
}

// ReadFile parses the answer file at path.
func ReadFile(path string) ([]Line, error) {
	f, err := os.Open(path) //nolint:gosec // answer path is user supplied
	if err != nil {
		return nil, fmt.Errorf("failed to open answer file: %w", err)
	}
	defer f.Close()
	return Read(f)
}

func parseLine(text string) (Line, error) {
	if !strings.HasPrefix(text, queryPrefix) {
		return Line{}, fmt.Errorf("%w: missing %q prefix: %q", ErrMalformedLine, queryPrefix, text)
	}
	idx := strings.LastIndex(text, databasePrefix)
	if idx < len(queryPrefix) {
		return Line{}, fmt.Errorf("%w: missing %q field: %q", ErrMalformedLine, strings.TrimSpace(databasePrefix), text)
	}
	l := Line{
		Query:    text[len(queryPrefix):idx],
		Database: text[idx+len(databasePrefix):],
	}
	if l.Query == "" || l.Database == "" {
		return Line{}, fmt.Errorf("%w: empty file name: %q", ErrMalformedLine, text)
	}
	if l.Database == NoMatch {
		l.Database = ""
	}
	return l, nil
}
