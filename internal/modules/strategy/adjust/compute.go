// Package adjust converts the preference model into bounded changes to the
// strategy document. Auto-tier changes stay inside per-cycle speed limits;
// anything larger or strategically irreversible queues for human approval.
package adjust

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	types "github.com/mkovtun/contentpulse-backend/internal/domain"
	"github.com/mkovtun/contentpulse-backend/internal/modules/strategy/locks"
	"github.com/mkovtun/contentpulse-backend/internal/platform/strategyfile"
)

const (
	// minTotalPosts gates the whole engine: below this there is not enough
	// evidence to touch anything.
	minTotalPosts = 5

	// minWeeksForPillarWeight gates pillar-weight changes specifically.
	minWeeksForPillarWeight = 3

	// pillarWeightStep is the per-cycle speed limit on a pillar weight.
	pillarWeightStep = 0.05

	// overperformRatio / underperformRatio bound the neutral band around the
	// cross-pillar mean.
	overperformRatio  = 1.2
	underperformRatio = 0.8

	// maxAutoHourShift is the largest posting-time move that may auto-apply.
	maxAutoHourShift = 2

	// minPostsForFrequency gates frequency bumps.
	minPostsForFrequency = 10
)

// Proposal is a computed adjustment before persistence.
type Proposal struct {
	Type     types.AdjustmentType
	Field    string
	OldValue interface{}
	NewValue interface{}
	Reason   string
	Evidence []string
	Tier     types.AdjustmentTier
	Target   Target
}

// Target identifies what a proposal mutates, so apply never re-parses the
// dotted field path.
type Target struct {
	Pillar   string
	Platform string
	Format   string
}

// ModelView is the decoded slice of the preference model the engine reads.
type ModelView struct {
	TopFormats       []types.FormatScore
	TopPillars       []types.PillarScore
	BestPostingTimes []types.PostingTimeScore
	Locked           []types.LockedSetting
}

// DecodeModel pulls the engine-relevant payloads out of a preference model
// row. Broken payloads decode to empty slices.
func DecodeModel(row *types.PreferenceModel) ModelView {
	view := ModelView{}
	if row == nil {
		return view
	}
	_ = json.Unmarshal(row.TopFormats, &view.TopFormats)
	_ = json.Unmarshal(row.TopPillars, &view.TopPillars)
	_ = json.Unmarshal(row.BestPostingTimes, &view.BestPostingTimes)
	view.Locked = locks.Decode(row.LockedSettings)
	return view
}

// ComputeAdjustments derives this cycle's proposals. Every rule checks the
// lock registry before proposing; a locked field is skipped no matter the
// evidence.
func ComputeAdjustments(model ModelView, strategy *strategyfile.Strategy, totalPosts, weeksOfData int) []Proposal {
	if strategy == nil || totalPosts < minTotalPosts {
		return nil
	}
	proposals := []Proposal{}
	proposals = append(proposals, pillarWeightProposals(model, strategy, weeksOfData)...)
	proposals = append(proposals, postingTimeProposals(model, strategy)...)
	proposals = append(proposals, formatPreferenceProposals(model, strategy)...)
	proposals = append(proposals, frequencyProposals(model, strategy, totalPosts)...)
	return proposals
}

func pillarFieldPath(pillar string) string      { return "pillars." + pillar + ".weight" }
func timesFieldPath(platform string) string     { return "platforms." + platform + ".preferred_times" }
func formatsFieldPath(platform string) string   { return "platforms." + platform + ".format_preference" }
func frequencyFieldPath(platform string) string { return "platforms." + platform + ".frequency" }

func pillarWeightProposals(model ModelView, strategy *strategyfile.Strategy, weeksOfData int) []Proposal {
	if weeksOfData < minWeeksForPillarWeight || len(model.TopPillars) == 0 {
		return nil
	}
	mean := 0.0
	for _, p := range model.TopPillars {
		mean += p.AvgScore
	}
	mean /= float64(len(model.TopPillars))
	if mean <= 0 {
		return nil
	}

	out := []Proposal{}
	for _, ranked := range model.TopPillars {
		current, configured := strategy.Pillars[ranked.Pillar]
		if !configured {
			continue
		}
		field := pillarFieldPath(ranked.Pillar)
		if locks.IsSettingLocked(model.Locked, field) {
			continue
		}
		ratio := ranked.AvgScore / mean
		delta := 0.0
		switch {
		case ratio > overperformRatio:
			delta = pillarWeightStep
		case ratio < underperformRatio:
			delta = -pillarWeightStep
		default:
			continue
		}
		next := clamp01(current + delta)
		if next == current {
			continue
		}
		tier := types.TierApproval
		if abs(next-current) <= pillarWeightStep {
			tier = types.TierAuto
		}
		out = append(out, Proposal{
			Type:     types.AdjustmentPillarWeight,
			Field:    field,
			OldValue: current,
			NewValue: next,
			Reason:   fmt.Sprintf("pillar %q performs at %.0f%% of the cross-pillar mean", ranked.Pillar, ratio*100),
			Evidence: []string{fmt.Sprintf("avg score %.1f over %d posts vs mean %.1f", ranked.AvgScore, ranked.Samples, mean)},
			Tier:     tier,
			Target:   Target{Pillar: ranked.Pillar},
		})
	}
	return out
}

func postingTimeProposals(model ModelView, strategy *strategyfile.Strategy) []Proposal {
	if len(model.BestPostingTimes) == 0 {
		return nil
	}
	topHours := []int{}
	seen := map[int]bool{}
	for _, t := range model.BestPostingTimes {
		if seen[t.Hour] {
			continue
		}
		seen[t.Hour] = true
		topHours = append(topHours, t.Hour)
		if len(topHours) == 3 {
			break
		}
	}
	newTimes := make([]string, 0, len(topHours))
	for _, h := range topHours {
		newTimes = append(newTimes, fmt.Sprintf("%02d:00", h))
	}

	out := []Proposal{}
	for _, platform := range platformNames(strategy) {
		cfg := strategy.Platforms[platform]
		if equalStrings(cfg.PreferredTimes, newTimes) {
			continue
		}
		field := timesFieldPath(platform)
		if locks.IsSettingLocked(model.Locked, field) {
			continue
		}
		shift := maxHourShift(newTimes, cfg.PreferredTimes)
		tier := types.TierApproval
		if shift <= maxAutoHourShift {
			tier = types.TierAuto
		}
		out = append(out, Proposal{
			Type:     types.AdjustmentPostingTime,
			Field:    field,
			OldValue: cfg.PreferredTimes,
			NewValue: newTimes,
			Reason:   fmt.Sprintf("top engagement hours moved to %s", strings.Join(newTimes, ", ")),
			Evidence: timeEvidence(model.BestPostingTimes),
			Tier:     tier,
			Target:   Target{Platform: platform},
		})
	}
	return out
}

// maxHourShift is the largest distance from any proposed hour to its nearest
// current hour. With no current times there is nothing to shift away from.
func maxHourShift(next, current []string) int {
	if len(current) == 0 {
		return 0
	}
	max := 0
	for _, n := range next {
		nh, ok := parseHour(n)
		if !ok {
			continue
		}
		nearest := -1
		for _, c := range current {
			ch, ok := parseHour(c)
			if !ok {
				continue
			}
			d := abs(float64(nh - ch))
			if nearest < 0 || int(d) < nearest {
				nearest = int(d)
			}
		}
		if nearest > max {
			max = nearest
		}
	}
	return max
}

func parseHour(s string) (int, bool) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) == 0 {
		return 0, false
	}
	var h int
	if _, err := fmt.Sscanf(parts[0], "%d", &h); err != nil {
		return 0, false
	}
	if h < 0 || h > 23 {
		return 0, false
	}
	return h, true
}

func timeEvidence(times []types.PostingTimeScore) []string {
	out := []string{}
	for i, t := range times {
		if i == 3 {
			break
		}
		out = append(out, fmt.Sprintf("%02d:00 (%s) avg %.1f over %d posts", t.Hour, weekdayName(t.DayOfWeek), t.AvgScore, t.Samples))
	}
	return out
}

func weekdayName(d int) string {
	names := []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}
	if d >= 0 && d < len(names) {
		return names[d]
	}
	return "unknown"
}

func formatPreferenceProposals(model ModelView, strategy *strategyfile.Strategy) []Proposal {
	if len(model.TopFormats) == 0 {
		return nil
	}
	rank := map[string]int{}
	for i, f := range model.TopFormats {
		rank[f.Format] = i
	}

	out := []Proposal{}
	for _, platform := range platformNames(strategy) {
		cfg := strategy.Platforms[platform]
		if len(cfg.FormatPreference) < 2 {
			continue
		}
		reordered := reorderByRank(cfg.FormatPreference, rank)
		if equalStrings(cfg.FormatPreference, reordered) {
			continue
		}
		field := formatsFieldPath(platform)
		if locks.IsSettingLocked(model.Locked, field) {
			continue
		}
		out = append(out, Proposal{
			Type:     types.AdjustmentFormatPreference,
			Field:    field,
			OldValue: cfg.FormatPreference,
			NewValue: reordered,
			Reason:   "format preference order no longer matches observed engagement ranking",
			Evidence: formatEvidence(model.TopFormats),
			Tier:     types.TierAuto,
			Target:   Target{Platform: platform},
		})
	}
	return out
}

// reorderByRank sorts the known formats by the model's ranking; formats the
// model has no opinion on keep their relative order at the tail.
func reorderByRank(formats []string, rank map[string]int) []string {
	ranked := []string{}
	unranked := []string{}
	for _, f := range formats {
		if _, ok := rank[f]; ok {
			ranked = append(ranked, f)
		} else {
			unranked = append(unranked, f)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return rank[ranked[i]] < rank[ranked[j]] })
	return append(ranked, unranked...)
}

func formatEvidence(formats []types.FormatScore) []string {
	out := []string{}
	for i, f := range formats {
		if i == 3 {
			break
		}
		out = append(out, fmt.Sprintf("%s avg %.1f over %d posts", f.Format, f.AvgScore, f.Samples))
	}
	return out
}

func frequencyProposals(model ModelView, strategy *strategyfile.Strategy, totalPosts int) []Proposal {
	if totalPosts < minPostsForFrequency {
		return nil
	}
	out := []Proposal{}
	for _, platform := range platformNames(strategy) {
		cfg := strategy.Platforms[platform]
		ceiling := platformFrequencyCap(platform)
		if cfg.FrequencyPerWeek >= ceiling {
			continue
		}
		field := frequencyFieldPath(platform)
		if locks.IsSettingLocked(model.Locked, field) {
			continue
		}
		out = append(out, Proposal{
			Type:     types.AdjustmentFrequency,
			Field:    field,
			OldValue: cfg.FrequencyPerWeek,
			NewValue: cfg.FrequencyPerWeek + 1,
			Reason:   fmt.Sprintf("%d published posts support one more slot per week on %s", totalPosts, platform),
			Evidence: []string{fmt.Sprintf("total posts %d >= %d", totalPosts, minPostsForFrequency)},
			Tier:     types.TierAuto,
			Target:   Target{Platform: platform},
		})
	}
	return out
}

// platformFrequencyCap bounds the weekly posting frequency; the short-form
// high-cadence platform tolerates daily-double, everything else one per day.
func platformFrequencyCap(platform string) int {
	switch strings.ToLower(platform) {
	case "twitter", "x":
		return 14
	default:
		return 7
	}
}

func platformNames(strategy *strategyfile.Strategy) []string {
	names := make([]string, 0, len(strategy.Platforms))
	for name := range strategy.Platforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
