package schedule

import (
	"iter"

	"webinarsched/internal/model"
)

// OpenOccurrences yields every occurrence still open for registration,
// that is now < start + leway. Days are walked in ascending date order and
// times in their stored order. Each call starts from the beginning; no
// position is kept between calls.
func OpenOccurrences(c Canonical, env Env) iter.Seq[model.Occurrence] {
	return func(yield func(model.Occurrence) bool) {
		now := env.now()
		for _, day := range c.Sorted() {
			for _, tod := range day.Times {
				start := day.Date.At(tod, env.location())
				closes := env.Leway.AddTo(start)
				if !now.Before(closes) {
					continue
				}
				occ := model.Occurrence{Date: day.Date, Time: tod, Start: start, Closes: closes}
				if !yield(occ) {
					return
				}
			}
		}
	}
}

// IsOver reports whether every occurrence has passed its grace window.
// An empty schedule is over.
func IsOver(c Canonical, env Env) bool {
	for range OpenOccurrences(c, env) {
		return false
	}
	return true
}
