package evaluate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/placematch/internal/answer"
	"github.com/kozaktomas/placematch/internal/groundtruth"
)

func testSheet(t *testing.T) *groundtruth.Sheet {
	t.Helper()
	sheet, err := groundtruth.New(map[string]groundtruth.Position{
		"000001_query":    {0, 0},
		"000002_query":    {100, 100},
		"000003_query":    {5, 5},
		"000010_database": {3, 4},
		"000020_database": {0, 50},
		"000030_database": {5, 15},
	})
	require.NoError(t, err)
	return sheet
}

func TestEvaluateHalfCorrect(t *testing.T) {
	lines := []answer.Line{
		{Query: "q_000001.jpg", Database: "d_000010.jpg"}, // 5 m
		{Query: "q_000002.jpg", Database: "d_000020.jpg"}, // ~111 m
	}

	report, err := Evaluator{Sheet: testSheet(t), Radius: DefaultRadius}.Evaluate(lines)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 1, report.Correct)
	assert.InDelta(t, 0.5, report.Recall, 1e-12)
	require.Len(t, report.Entries, 2)
	assert.True(t, report.Entries[0].Correct)
	assert.InDelta(t, 5.0, report.Entries[0].Distance, 1e-12)
	assert.Equal(t, "000010", report.Entries[0].DatabaseID)
	assert.False(t, report.Entries[1].Correct)
}

func TestEvaluateRadiusBoundary(t *testing.T) {
	lines := []answer.Line{{Query: "q_000003.jpg", Database: "d_000030.jpg"}} // exactly 10 m

	report, err := Evaluator{Sheet: testSheet(t), Radius: 10}.Evaluate(lines)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Correct, "distance equal to the radius is correct")

	report, err = Evaluator{Sheet: testSheet(t), Radius: 1}.Evaluate(lines)
	require.NoError(t, err)
	assert.Zero(t, report.Correct)
}

func TestEvaluateNoMatchIsIncorrect(t *testing.T) {
	lines := []answer.Line{
		{Query: "q_000001.jpg"},
		{Query: "q_000003.jpg", Database: "d_000030.jpg"},
	}

	report, err := Evaluator{Sheet: testSheet(t), Radius: DefaultRadius}.Evaluate(lines)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Correct)
	assert.InDelta(t, 0.5, report.Recall, 1e-12)
	assert.False(t, report.Entries[0].Matched)
}

func TestEvaluateLookupMiss(t *testing.T) {
	tests := []struct {
		name string
		line answer.Line
	}{
		{"unknown query", answer.Line{Query: "q_999999.jpg", Database: "d_000010.jpg"}},
		{"unknown database", answer.Line{Query: "q_000001.jpg", Database: "d_999999.jpg"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Evaluator{Sheet: testSheet(t), Radius: DefaultRadius}.Evaluate([]answer.Line{tc.line})
			require.ErrorIs(t, err, groundtruth.ErrLookupMiss)
			assert.Contains(t, err.Error(), "999999")
		})
	}
}

func TestEvaluateEmpty(t *testing.T) {
	report, err := Evaluator{Sheet: testSheet(t), Radius: DefaultRadius}.Evaluate(nil)
	require.NoError(t, err)
	assert.Zero(t, report.Total)
	assert.Zero(t, report.Recall)
}
