package main

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
)

// newProgressBar returns a bar over total items writing to w, or nil when
// progress is hidden.
func newProgressBar(deps *Dependencies, total int, description string) *progressbar.ProgressBar {
	if deps.Quiet || total <= 0 {
		return nil
	}
	w := deps.Stderr
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription(description),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(w)
		}),
	)
}

// progressTo returns a callback setting bar to the done count.
func progressTo(bar *progressbar.ProgressBar) func(done, total int) {
	return func(done, _ int) {
		if bar != nil {
			_ = bar.Set(done)
		}
	}
}
