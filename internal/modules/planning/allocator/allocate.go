// Package allocator turns a week of open calendar days plus candidate ideas
// and due series episodes into concrete plan slots. Recurring series always
// win days first; the rest of the week is filled by pillar deficit under an
// angle diversity cap. Days the cap cannot fill stay empty.
package allocator

import (
	"sort"
	"time"

	"github.com/google/uuid"

	types "github.com/mkovtun/contentpulse-backend/internal/domain"
	"github.com/mkovtun/contentpulse-backend/internal/platform/strategyfile"
)

const DefaultMaxAngleRepeat = 2

// CalendarState is the week window the allocator works inside.
type CalendarState struct {
	TenantID  uuid.UUID
	WeekStart time.Time
	OpenDays  []time.Time
	Scheduled []*types.PlanSlot
	Capacity  int
}

type Options struct {
	Strategy       *strategyfile.Strategy
	MaxAngleRepeat int
	Now            time.Time
}

// BuildCalendarState derives the open days and capacity for the seven days
// starting at weekStart. A day already holding a non-skipped slot is taken.
func BuildCalendarState(tenantID uuid.UUID, weekStart time.Time, scheduled []*types.PlanSlot, strategy *strategyfile.Strategy) CalendarState {
	weekStart = weekStart.UTC().Truncate(24 * time.Hour)
	taken := map[string]bool{}
	for _, slot := range scheduled {
		if slot == nil || slot.Status == types.SlotSkipped {
			continue
		}
		taken[dayKey(slot.Day)] = true
	}
	open := []time.Time{}
	for i := 0; i < 7; i++ {
		day := weekStart.AddDate(0, 0, i)
		if !taken[dayKey(day)] {
			open = append(open, day)
		}
	}
	capacity := 0
	if strategy != nil {
		capacity = strategy.WeeklyCapacity()
	}
	return CalendarState{
		TenantID:  tenantID,
		WeekStart: weekStart,
		OpenDays:  open,
		Scheduled: scheduled,
		Capacity:  capacity,
	}
}

// Allocate runs the three phase fill and returns new slots sorted by day.
// Already scheduled slots are never touched; they only seed the counters.
func Allocate(state CalendarState, ideas []*types.PlanIdea, series []*types.ContentSeries, opts Options) []types.PlanSlot {
	if opts.MaxAngleRepeat <= 0 {
		opts.MaxAngleRepeat = DefaultMaxAngleRepeat
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	openDays := append([]time.Time{}, state.OpenDays...)
	sort.Slice(openDays, func(i, j int) bool { return openDays[i].Before(openDays[j]) })

	pillarCounts := map[string]int{}
	angleCounts := map[string]int{}
	for _, slot := range state.Scheduled {
		if slot == nil || slot.Status == types.SlotSkipped {
			continue
		}
		pillarCounts[slot.Pillar]++
		if slot.Angle != "" {
			angleCounts[slot.Angle]++
		}
	}

	out := []types.PlanSlot{}

	// Phase 1: due series episodes consume days in due date order.
	weekEnd := state.WeekStart.AddDate(0, 0, 7)
	due := []*types.ContentSeries{}
	for _, s := range series {
		if s == nil {
			continue
		}
		if s.NextDue(now).Before(weekEnd) {
			due = append(due, s)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		di, dj := due[i].NextDue(now), due[j].NextDue(now)
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return due[i].Name < due[j].Name
	})
	for _, s := range due {
		if len(openDays) == 0 {
			break
		}
		day := openDays[0]
		openDays = openDays[1:]
		seriesID := s.ID
		out = append(out, types.PlanSlot{
			TenantID: state.TenantID,
			Day:      day,
			Platform: s.Platform,
			Topic:    s.Topic,
			Format:   s.Format,
			Pillar:   s.Pillar,
			Language: s.Language,
			SeriesID: &seriesID,
			Status:   types.SlotOutlined,
		})
		pillarCounts[s.Pillar]++
	}

	// Phase 2: rank remaining ideas by pillar deficit, then score.
	deficits := pillarDeficits(opts.Strategy, state.Capacity, pillarCounts)
	ranked := append([]*types.PlanIdea{}, ideas...)
	sort.Slice(ranked, func(i, j int) bool {
		di, dj := deficits[ranked[i].Pillar], deficits[ranked[j].Pillar]
		if di != dj {
			return di > dj
		}
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Topic < ranked[j].Topic
	})

	// Phase 3: fill under the angle cap. Capped candidates are skipped and
	// leftover days stay open.
	for _, idea := range ranked {
		if len(openDays) == 0 {
			break
		}
		if idea == nil {
			continue
		}
		if idea.Angle != "" && angleCounts[idea.Angle] >= opts.MaxAngleRepeat {
			continue
		}
		day := openDays[0]
		openDays = openDays[1:]
		ideaID := idea.ID
		out = append(out, types.PlanSlot{
			TenantID: state.TenantID,
			Day:      day,
			Platform: pickPlatform(opts.Strategy, out, state.Scheduled),
			Topic:    idea.Topic,
			Format:   idea.Format,
			Pillar:   idea.Pillar,
			Angle:    idea.Angle,
			IdeaID:   &ideaID,
			Status:   types.SlotOutlined,
		})
		pillarCounts[idea.Pillar]++
		if idea.Angle != "" {
			angleCounts[idea.Angle]++
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out
}

// pillarDeficits measures how far each pillar sits below its weighted share
// of the week's capacity.
func pillarDeficits(strategy *strategyfile.Strategy, capacity int, counts map[string]int) map[string]float64 {
	out := map[string]float64{}
	if strategy == nil || len(strategy.Pillars) == 0 || capacity <= 0 {
		return out
	}
	weightSum := 0.0
	for _, w := range strategy.Pillars {
		weightSum += w
	}
	if weightSum <= 0 {
		return out
	}
	for pillar, weight := range strategy.Pillars {
		target := weight / weightSum * float64(capacity)
		out[pillar] = target - float64(counts[pillar])
	}
	return out
}

// pickPlatform assigns an idea slot to the platform with the most remaining
// weekly frequency, counting both pre-existing and newly created slots.
func pickPlatform(strategy *strategyfile.Strategy, created []types.PlanSlot, scheduled []*types.PlanSlot) string {
	if strategy == nil || len(strategy.Platforms) == 0 {
		return ""
	}
	used := map[string]int{}
	for _, slot := range scheduled {
		if slot != nil && slot.Status != types.SlotSkipped {
			used[slot.Platform]++
		}
	}
	for i := range created {
		used[created[i].Platform]++
	}
	names := make([]string, 0, len(strategy.Platforms))
	for name := range strategy.Platforms {
		names = append(names, name)
	}
	sort.Strings(names)
	best := names[0]
	bestRemaining := strategy.Platforms[best].FrequencyPerWeek - used[best]
	for _, name := range names[1:] {
		remaining := strategy.Platforms[name].FrequencyPerWeek - used[name]
		if remaining > bestRemaining {
			best, bestRemaining = name, remaining
		}
	}
	return best
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
