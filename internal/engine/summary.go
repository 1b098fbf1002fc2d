package engine

import (
	"math"

	"github.com/okozyrev/extraction-review/internal/domain"
)

// Summarize folds the comparison list into display counts. It is stateless
// and always re-derivable; callers must never persist the result.
func Summarize(comparisons []*domain.Comparison) domain.Summary {
	var s domain.Summary
	for _, c := range comparisons {
		s.Total++
		switch c.Status {
		case domain.StatusMatch:
			s.Matches++
		case domain.StatusDifferent:
			s.Different++
		case domain.StatusOnlyA:
			s.OnlyA++
		case domain.StatusOnlyB:
			s.OnlyB++
		}

		if c.Winner.Kind == domain.WinnerExclude {
			s.Excluded++
		}
		if c.Status == domain.StatusMatch {
			continue
		}
		if !c.Winner.IsNone() && c.Winner.Kind != domain.WinnerExclude {
			s.WinnersDesignated++
		}
	}

	denom := s.Matches + s.Different + s.OnlyA + s.OnlyB
	if denom > 0 {
		s.AgreementRate = int(math.Round(100 * float64(s.Matches) / float64(denom)))
	}
	return s
}
