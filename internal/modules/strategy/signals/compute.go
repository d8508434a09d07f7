// Package signals turns raw engagement and edit history into the rolling
// per-tenant preference model.
package signals

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/mkovtun/contentpulse-backend/internal/domain"
	"github.com/mkovtun/contentpulse-backend/internal/platform/logger"
)

type ComputeDeps struct {
	Log *logger.Logger
	Prefs interface {
		EnsureForTenant(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID) (*types.PreferenceModel, error)
		UpdateFields(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, updates map[string]interface{}) error
	}
	Metrics interface {
		ListInWindow(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, from, to time.Time) ([]*types.EngagementMetric, error)
	}
	Edits interface {
		ListInWindow(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, from, to time.Time) ([]*types.EditEvent, error)
	}
	Killed interface {
		ListTouchedInWindow(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, from, to time.Time) ([]*types.KilledIdea, error)
	}
}

type ComputeInput struct {
	TenantID   uuid.UUID
	WindowDays int
	MinSamples int
	Now        time.Time
}

// Summary counts how many entries each dimension produced. A dimension that
// degraded or lacked data reports zero; it never blocks the others.
type Summary struct {
	FormatsUpdated       int
	PillarsUpdated       int
	TimesUpdated         int
	EditPatternsUpdated  int
	KilledIdeasProcessed int
}

// Compute runs the weekly signal aggregation pass and persists the results
// into the tenant's preference model, creating the row with empty defaults
// when it does not exist yet.
func Compute(ctx context.Context, deps ComputeDeps, input ComputeInput) (Summary, error) {
	out := Summary{}
	if deps.Prefs == nil || deps.Metrics == nil {
		return out, fmt.Errorf("signals: missing deps")
	}
	if input.TenantID == uuid.Nil {
		return out, fmt.Errorf("signals: missing tenant_id")
	}
	if input.WindowDays <= 0 {
		input.WindowDays = 7
	}
	if input.MinSamples <= 0 {
		input.MinSamples = 3
	}
	now := input.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	from := now.AddDate(0, 0, -input.WindowDays)

	if _, err := deps.Prefs.EnsureForTenant(ctx, nil, input.TenantID); err != nil {
		return out, fmt.Errorf("signals: ensure preference model: %w", err)
	}

	updates := map[string]interface{}{}

	metrics, err := deps.Metrics.ListInWindow(ctx, nil, input.TenantID, from, now)
	if err != nil {
		warn(deps.Log, "signals: engagement window read failed, skipping ranked dimensions", err)
		metrics = nil
	}

	if formats := rankFormats(metrics, input.MinSamples); formats != nil {
		updates["top_formats"] = mustJSON(formats)
		out.FormatsUpdated = len(formats)
	}
	if pillars := rankPillars(metrics, input.MinSamples); pillars != nil {
		updates["top_pillars"] = mustJSON(pillars)
		out.PillarsUpdated = len(pillars)
	}
	if times := rankPostingTimes(metrics, input.MinSamples); times != nil {
		updates["best_posting_times"] = mustJSON(times)
		out.TimesUpdated = len(times)
	}

	if deps.Edits != nil {
		edits, err := deps.Edits.ListInWindow(ctx, nil, input.TenantID, from, now)
		if err != nil {
			warn(deps.Log, "signals: edit history read failed, skipping edit dimensions", err)
		} else if len(edits) > 0 {
			patterns, avgRatio := aggregateEdits(edits)
			updates["common_edit_patterns"] = mustJSON(patterns)
			updates["avg_edit_ratio"] = avgRatio
			out.EditPatternsUpdated = len(patterns)
		}
	}

	if deps.Killed != nil {
		killed, err := deps.Killed.ListTouchedInWindow(ctx, nil, input.TenantID, from, now)
		if err != nil {
			warn(deps.Log, "signals: killed idea read failed, skipping kill dimension", err)
		} else if len(killed) > 0 {
			updates["killed_idea_patterns"] = mustJSON(aggregateKills(killed))
			out.KilledIdeasProcessed = len(killed)
		}
	}

	if len(updates) == 0 {
		return out, nil
	}
	if err := deps.Prefs.UpdateFields(ctx, nil, input.TenantID, updates); err != nil {
		return out, fmt.Errorf("signals: persist preference model: %w", err)
	}
	return out, nil
}

type scoreBucket struct {
	sum   float64
	count int
}

func (b scoreBucket) mean() float64 {
	if b.count == 0 {
		return 0
	}
	return b.sum / float64(b.count)
}

func rankFormats(metrics []*types.EngagementMetric, minSamples int) []types.FormatScore {
	buckets := map[string]scoreBucket{}
	for _, m := range metrics {
		if m == nil || m.PostFormat == "" {
			continue
		}
		b := buckets[m.PostFormat]
		b.sum += m.EngagementScore
		b.count++
		buckets[m.PostFormat] = b
	}
	out := []types.FormatScore{}
	for format, b := range buckets {
		if b.count < minSamples {
			continue
		}
		out = append(out, types.FormatScore{Format: format, AvgScore: b.mean(), Samples: b.count})
	}
	if len(out) == 0 {
		return nil
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AvgScore != out[j].AvgScore {
			return out[i].AvgScore > out[j].AvgScore
		}
		return out[i].Format < out[j].Format
	})
	return out
}

func rankPillars(metrics []*types.EngagementMetric, minSamples int) []types.PillarScore {
	buckets := map[string]scoreBucket{}
	for _, m := range metrics {
		if m == nil || m.PostPillar == "" {
			continue
		}
		b := buckets[m.PostPillar]
		b.sum += m.EngagementScore
		b.count++
		buckets[m.PostPillar] = b
	}
	out := []types.PillarScore{}
	for pillar, b := range buckets {
		if b.count < minSamples {
			continue
		}
		out = append(out, types.PillarScore{Pillar: pillar, AvgScore: b.mean(), Samples: b.count})
	}
	if len(out) == 0 {
		return nil
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AvgScore != out[j].AvgScore {
			return out[i].AvgScore > out[j].AvgScore
		}
		return out[i].Pillar < out[j].Pillar
	})
	return out
}

func rankPostingTimes(metrics []*types.EngagementMetric, minSamples int) []types.PostingTimeScore {
	type key struct {
		hour int
		day  int
	}
	buckets := map[key]scoreBucket{}
	for _, m := range metrics {
		if m == nil || m.PublishedAt.IsZero() {
			continue
		}
		published := m.PublishedAt.UTC()
		k := key{hour: published.Hour(), day: int(published.Weekday())}
		b := buckets[k]
		b.sum += m.EngagementScore
		b.count++
		buckets[k] = b
	}
	out := []types.PostingTimeScore{}
	for k, b := range buckets {
		if b.count < minSamples {
			continue
		}
		out = append(out, types.PostingTimeScore{Hour: k.hour, DayOfWeek: k.day, AvgScore: b.mean(), Samples: b.count})
	}
	if len(out) == 0 {
		return nil
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AvgScore != out[j].AvgScore {
			return out[i].AvgScore > out[j].AvgScore
		}
		if out[i].DayOfWeek != out[j].DayOfWeek {
			return out[i].DayOfWeek < out[j].DayOfWeek
		}
		return out[i].Hour < out[j].Hour
	})
	return out
}

func aggregateEdits(edits []*types.EditEvent) ([]types.EditPatternCount, float64) {
	counts := map[string]int{}
	ratioSum := 0.0
	ratioCount := 0
	for _, e := range edits {
		if e == nil {
			continue
		}
		ratioSum += e.EditRatio
		ratioCount++
		var patterns []string
		if len(e.EditPatterns) > 0 {
			_ = json.Unmarshal(e.EditPatterns, &patterns)
		}
		for _, p := range patterns {
			if p != "" {
				counts[p]++
			}
		}
	}
	out := make([]types.EditPatternCount, 0, len(counts))
	for pattern, n := range counts {
		out = append(out, types.EditPatternCount{Type: pattern, Frequency: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Frequency != out[j].Frequency {
			return out[i].Frequency > out[j].Frequency
		}
		return out[i].Type < out[j].Type
	})
	avg := 0.0
	if ratioCount > 0 {
		avg = ratioSum / float64(ratioCount)
	}
	return out, avg
}

func aggregateKills(killed []*types.KilledIdea) types.KilledIdeaPatterns {
	pillars := map[string]int{}
	reasons := map[string]int{}
	for _, k := range killed {
		if k == nil {
			continue
		}
		if k.Pillar != "" {
			pillars[k.Pillar]++
		}
		if k.KillReason != "" {
			reasons[k.KillReason]++
		}
	}
	ranked := make([]types.ReasonCount, 0, len(reasons))
	for reason, n := range reasons {
		ranked = append(ranked, types.ReasonCount{Reason: reason, Count: n})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Reason < ranked[j].Reason
	})
	return types.KilledIdeaPatterns{
		RejectedPillars: pillars,
		CommonReasons:   ranked,
		RecentKills:     len(killed),
	}
}

func warn(log *logger.Logger, msg string, err error) {
	if log != nil {
		log.Warn(msg, "error", err.Error())
	}
}

func mustJSON(v any) datatypes.JSON {
	b, _ := json.Marshal(v)
	return datatypes.JSON(b)
}
