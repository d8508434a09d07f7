// Package fatigue flags topics whose engagement is strictly declining and
// tracks their cooldowns. The strict monotonic test is deliberate: flat or
// oscillating sequences are not fatigue.
package fatigue

import (
	"fmt"
	"sort"
	"time"

	types "github.com/mkovtun/contentpulse-backend/internal/domain"
)

const (
	// minPostsPerTopic is the floor below which a topic has too little data
	// to judge.
	minPostsPerTopic = 3

	// DefaultCooldownDays is how long a freshly detected topic rests.
	DefaultCooldownDays = 14
)

// Post is one published post's engagement observation, as seen by the
// detector.
type Post struct {
	Topic       string
	Score       float64
	PublishedAt time.Time
}

// Result is one fatigued topic with its trailing scores and a rotation
// suggestion for the planner.
type Result struct {
	Topic      string
	LastScores []float64
	Suggestion string
}

// DetectTopicFatigue groups posts by topic and flags any topic whose last
// three scores (by publish time) are strictly monotonically decreasing.
// Topics with fewer than three posts are skipped.
func DetectTopicFatigue(posts []Post) []Result {
	byTopic := map[string][]Post{}
	order := []string{}
	for _, p := range posts {
		if p.Topic == "" {
			continue
		}
		if _, seen := byTopic[p.Topic]; !seen {
			order = append(order, p.Topic)
		}
		byTopic[p.Topic] = append(byTopic[p.Topic], p)
	}

	results := []Result{}
	for _, topic := range order {
		group := byTopic[topic]
		if len(group) < minPostsPerTopic {
			continue
		}
		sort.Slice(group, func(i, j int) bool {
			return group[i].PublishedAt.Before(group[j].PublishedAt)
		})
		last := group[len(group)-minPostsPerTopic:]
		scores := make([]float64, 0, minPostsPerTopic)
		for _, p := range last {
			scores = append(scores, p.Score)
		}
		if !strictlyDecreasing(scores) {
			continue
		}
		results = append(results, Result{
			Topic:      topic,
			LastScores: scores,
			Suggestion: fmt.Sprintf("engagement on %q fell across the last %d posts (%.0f -> %.0f); rotate to an adjacent topic and revisit after the cooldown", topic, len(scores), scores[0], scores[len(scores)-1]),
		})
	}
	return results
}

func strictlyDecreasing(scores []float64) bool {
	if len(scores) < 2 {
		return false
	}
	for i := 1; i < len(scores); i++ {
		if scores[i] >= scores[i-1] {
			return false
		}
	}
	return true
}

// UpdateFatiguedTopics merges new detections into the current list. Expired
// entries are pruned; re-detection always resets the cooldown forward, never
// shortens it.
func UpdateFatiguedTopics(current []types.FatiguedTopic, detections []Result, cooldownDays int, now time.Time) []types.FatiguedTopic {
	if cooldownDays <= 0 {
		cooldownDays = DefaultCooldownDays
	}
	now = now.UTC()

	merged := []types.FatiguedTopic{}
	index := map[string]int{}
	for _, entry := range current {
		if !entry.CooldownUntil.After(now) {
			continue
		}
		index[entry.Topic] = len(merged)
		merged = append(merged, entry)
	}

	until := now.AddDate(0, 0, cooldownDays)
	for _, det := range detections {
		entry := types.FatiguedTopic{
			Topic:         det.Topic,
			CooldownUntil: until,
			LastScores:    det.LastScores,
		}
		if i, ok := index[det.Topic]; ok {
			if merged[i].CooldownUntil.After(entry.CooldownUntil) {
				entry.CooldownUntil = merged[i].CooldownUntil
			}
			merged[i] = entry
			continue
		}
		index[det.Topic] = len(merged)
		merged = append(merged, entry)
	}
	return merged
}

// IsTopicFatigued is the single source of truth for "currently fatigued":
// the topic must be listed and its cooldown must be strictly in the future.
func IsTopicFatigued(topic string, list []types.FatiguedTopic, now time.Time) bool {
	now = now.UTC()
	for _, entry := range list {
		if entry.Topic == topic {
			return entry.CooldownUntil.After(now)
		}
	}
	return false
}
