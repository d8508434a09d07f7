// Package language post-processes a week's slots so the primary/secondary
// language mix tracks the configured split instead of drifting wherever the
// idea stream happens to lean.
package language

import (
	"time"

	types "github.com/mkovtun/contentpulse-backend/internal/domain"
	"github.com/mkovtun/contentpulse-backend/internal/platform/strategyfile"
)

const (
	// Mix bands over the trailing window. Above the upper band the primary
	// language is over-represented, below the lower band under-represented.
	primaryOverShare  = 0.65
	primaryUnderShare = 0.45

	// secondaryWeekTarget caps how much of the week the secondary language
	// may claim when biasing toward it.
	secondaryWeekTarget = 0.40

	// HistoryWindowDays is the trailing window the mix ratio is read from.
	HistoryWindowDays = 14

	// professionalPlatform is softly pinned to the primary language.
	professionalPlatform = "linkedin"
)

// HistoricalPost is the minimal shape the balancer needs from past posts.
type HistoricalPost struct {
	Language    string
	PublishedAt time.Time
}

// SuggestLanguages fills in the Language field of every slot and returns the
// same slice. Series slots that already carry a language keep it.
func SuggestLanguages(slots []types.PlanSlot, strategy *strategyfile.Strategy, history []HistoricalPost) []types.PlanSlot {
	if strategy == nil {
		return slots
	}
	primary := strategy.PrimaryLanguage
	if primary == "" {
		primary = "en"
	}
	secondary := strategy.SecondaryLanguage
	if secondary == "" {
		for i := range slots {
			slots[i].Language = primary
		}
		return slots
	}

	primaryShare := historicalPrimaryShare(history, primary)

	secondaryBudget := int(float64(len(slots)) * secondaryWeekTarget)
	secondaryUsed := 0
	assignable := 0

	for i := range slots {
		slot := &slots[i]
		if slot.SeriesID != nil && slot.Language != "" && slot.Language != primary {
			secondaryUsed++
			continue
		}
		if slot.SeriesID != nil && slot.Language != "" {
			continue
		}

		assignable++
		want := primary
		switch {
		case primaryShare > primaryOverShare:
			if secondaryUsed < secondaryBudget {
				want = secondary
			}
		case primaryShare < primaryUnderShare:
			want = primary
		default:
			if assignable%3 == 0 && secondaryUsed < secondaryBudget {
				want = secondary
			}
		}
		if want == secondary && slot.Platform == professionalPlatform {
			want = primary
		}
		if want == secondary {
			secondaryUsed++
		}
		slot.Language = want
	}
	return slots
}

// historicalPrimaryShare returns the primary language's share of the trailing
// window. With no history the mix is treated as balanced.
func historicalPrimaryShare(history []HistoricalPost, primary string) float64 {
	total := 0
	primaryCount := 0
	for _, post := range history {
		if post.Language == "" {
			continue
		}
		total++
		if post.Language == primary {
			primaryCount++
		}
	}
	if total == 0 {
		return 0.5
	}
	return float64(primaryCount) / float64(total)
}
