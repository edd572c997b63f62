package cmd

import (
	"os"

	"github.com/schollz/progressbar/v3"
)

// newProgressBar creates a progress bar on stderr, or nil when output must
// stay machine readable.
func newProgressBar(count int, description, unit string, quiet bool) *progressbar.ProgressBar {
	if quiet || count == 0 {
		return nil
	}
	return progressbar.NewOptions(count,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString(unit),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)
}

// progressFunc adapts a bar to the done/total callbacks used by the gallery
// and retrieval packages. A nil bar yields a nil callback.
func progressFunc(bar *progressbar.ProgressBar) func(done, total int) {
	if bar == nil {
		return nil
	}
	return func(_, _ int) {
		_ = bar.Add(1)
	}
}

func finishProgress(bar *progressbar.ProgressBar) {
	if bar != nil {
		_ = bar.Finish()
		_, _ = os.Stderr.WriteString("\n")
	}
}
