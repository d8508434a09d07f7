package adjust

import (
	"testing"

	types "github.com/mkovtun/contentpulse-backend/internal/domain"
	"github.com/mkovtun/contentpulse-backend/internal/platform/strategyfile"
)

func baseStrategy() *strategyfile.Strategy {
	return &strategyfile.Strategy{
		Pillars: map[string]float64{
			"ai":     0.5,
			"devops": 0.3,
			"career": 0.2,
		},
		Platforms: map[string]strategyfile.Platform{
			"twitter": {
				FrequencyPerWeek: 5,
				PreferredTimes:   []string{"09:00", "12:00", "18:00"},
				FormatPreference: []string{"thread", "single", "poll"},
			},
			"linkedin": {
				FrequencyPerWeek: 3,
				PreferredTimes:   []string{"08:00"},
				FormatPreference: []string{"article", "post"},
			},
		},
		PrimaryLanguage: "en",
	}
}

func pillarModel(scores map[string]float64) ModelView {
	view := ModelView{}
	for pillar, score := range scores {
		view.TopPillars = append(view.TopPillars, types.PillarScore{Pillar: pillar, AvgScore: score, Samples: 5})
	}
	return view
}

func findByType(proposals []Proposal, kind types.AdjustmentType) []Proposal {
	out := []Proposal{}
	for _, p := range proposals {
		if p.Type == kind {
			out = append(out, p)
		}
	}
	return out
}

func TestGlobalGateTooFewPosts(t *testing.T) {
	model := pillarModel(map[string]float64{"ai": 100, "devops": 10})
	if got := ComputeAdjustments(model, baseStrategy(), 4, 10); got != nil {
		t.Fatalf("fewer than 5 posts must produce nothing, got %v", got)
	}
}

func TestPillarWeightOverperformAutoStep(t *testing.T) {
	// ai at 100 against mean 55 is ratio ~1.82; 0.5 -> 0.55 is within the
	// auto speed limit.
	model := pillarModel(map[string]float64{"ai": 100, "devops": 10})
	proposals := findByType(ComputeAdjustments(model, baseStrategy(), 20, 4), types.AdjustmentPillarWeight)

	var ai *Proposal
	for i := range proposals {
		if proposals[i].Target.Pillar == "ai" {
			ai = &proposals[i]
		}
	}
	if ai == nil {
		t.Fatalf("expected a pillar weight proposal for ai, got %v", proposals)
	}
	if ai.Field != "pillars.ai.weight" {
		t.Fatalf("unexpected field %q", ai.Field)
	}
	if ai.OldValue.(float64) != 0.5 || ai.NewValue.(float64) != 0.55 {
		t.Fatalf("expected 0.5 -> 0.55, got %v -> %v", ai.OldValue, ai.NewValue)
	}
	if ai.Tier != types.TierAuto {
		t.Fatalf("single step must be auto tier, got %s", ai.Tier)
	}
}

func TestPillarWeightUnderperformDecrement(t *testing.T) {
	model := pillarModel(map[string]float64{"ai": 100, "devops": 10})
	proposals := findByType(ComputeAdjustments(model, baseStrategy(), 20, 4), types.AdjustmentPillarWeight)

	var devops *Proposal
	for i := range proposals {
		if proposals[i].Target.Pillar == "devops" {
			devops = &proposals[i]
		}
	}
	if devops == nil {
		t.Fatalf("expected a proposal for devops")
	}
	if devops.NewValue.(float64) != 0.25 {
		t.Fatalf("expected 0.3 -> 0.25, got %v", devops.NewValue)
	}
}

func TestPillarWeightNeedsThreeWeeks(t *testing.T) {
	model := pillarModel(map[string]float64{"ai": 100, "devops": 10})
	got := findByType(ComputeAdjustments(model, baseStrategy(), 20, 2), types.AdjustmentPillarWeight)
	if len(got) != 0 {
		t.Fatalf("under 3 weeks of data must not touch pillar weights, got %v", got)
	}
}

func TestPillarWeightNeutralRatioUntouched(t *testing.T) {
	// Both pillars sit inside the 0.8..1.2 band around the mean.
	model := pillarModel(map[string]float64{"ai": 52, "devops": 48})
	got := findByType(ComputeAdjustments(model, baseStrategy(), 20, 4), types.AdjustmentPillarWeight)
	if len(got) != 0 {
		t.Fatalf("neutral performance must not move weights, got %v", got)
	}
}

func TestPillarWeightClampAtZero(t *testing.T) {
	strategy := baseStrategy()
	strategy.Pillars["devops"] = 0.0
	model := pillarModel(map[string]float64{"ai": 100, "devops": 10})
	for _, p := range findByType(ComputeAdjustments(model, strategy, 20, 4), types.AdjustmentPillarWeight) {
		if p.Target.Pillar == "devops" {
			t.Fatalf("weight already at 0 must not propose below the clamp, got %v", p)
		}
	}
}

func TestLockedPillarSkipped(t *testing.T) {
	model := pillarModel(map[string]float64{"ai": 100, "devops": 10})
	model.Locked = []types.LockedSetting{{Field: "pillars.ai.weight"}}
	for _, p := range findByType(ComputeAdjustments(model, baseStrategy(), 20, 4), types.AdjustmentPillarWeight) {
		if p.Target.Pillar == "ai" {
			t.Fatalf("locked field must never be proposed, got %v", p)
		}
	}
}

func TestPostingTimeSmallShiftIsAuto(t *testing.T) {
	model := ModelView{BestPostingTimes: []types.PostingTimeScore{
		{Hour: 10, DayOfWeek: 1, AvgScore: 90, Samples: 5},
		{Hour: 13, DayOfWeek: 2, AvgScore: 80, Samples: 4},
		{Hour: 19, DayOfWeek: 3, AvgScore: 70, Samples: 3},
	}}
	proposals := findByType(ComputeAdjustments(model, baseStrategy(), 20, 4), types.AdjustmentPostingTime)

	var twitter *Proposal
	for i := range proposals {
		if proposals[i].Target.Platform == "twitter" {
			twitter = &proposals[i]
		}
	}
	if twitter == nil {
		t.Fatalf("expected posting time proposal for twitter")
	}
	// Nearest shifts from 09/12/18 are 1, 1 and 1 hour.
	if twitter.Tier != types.TierAuto {
		t.Fatalf("max shift of 1 hour must be auto, got %s", twitter.Tier)
	}
	want := []string{"10:00", "13:00", "19:00"}
	got := twitter.NewValue.([]string)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestPostingTimeLargeShiftNeedsApproval(t *testing.T) {
	model := ModelView{BestPostingTimes: []types.PostingTimeScore{
		{Hour: 22, DayOfWeek: 5, AvgScore: 90, Samples: 5},
	}}
	proposals := findByType(ComputeAdjustments(model, baseStrategy(), 20, 4), types.AdjustmentPostingTime)
	for _, p := range proposals {
		if p.Target.Platform == "linkedin" {
			// 22:00 against a current 08:00 is a 14 hour shift.
			if p.Tier != types.TierApproval {
				t.Fatalf("14 hour shift must need approval, got %s", p.Tier)
			}
			return
		}
	}
	t.Fatalf("expected a linkedin posting time proposal, got %v", proposals)
}

func TestFormatReorderAlwaysAuto(t *testing.T) {
	model := ModelView{TopFormats: []types.FormatScore{
		{Format: "poll", AvgScore: 95, Samples: 6},
		{Format: "thread", AvgScore: 60, Samples: 8},
	}}
	proposals := findByType(ComputeAdjustments(model, baseStrategy(), 20, 4), types.AdjustmentFormatPreference)

	var twitter *Proposal
	for i := range proposals {
		if proposals[i].Target.Platform == "twitter" {
			twitter = &proposals[i]
		}
	}
	if twitter == nil {
		t.Fatalf("expected reorder proposal for twitter")
	}
	if twitter.Tier != types.TierAuto {
		t.Fatalf("format reorder is always auto, got %s", twitter.Tier)
	}
	// Unranked "single" keeps its relative place at the tail.
	want := []string{"poll", "thread", "single"}
	got := twitter.NewValue.([]string)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestFrequencyGateAndCap(t *testing.T) {
	model := ModelView{}

	// Below 10 posts: no frequency proposals at all.
	if got := findByType(ComputeAdjustments(model, baseStrategy(), 9, 4), types.AdjustmentFrequency); len(got) != 0 {
		t.Fatalf("9 posts must not bump frequency, got %v", got)
	}

	proposals := findByType(ComputeAdjustments(model, baseStrategy(), 20, 4), types.AdjustmentFrequency)
	if len(proposals) != 2 {
		t.Fatalf("expected proposals for both platforms, got %v", proposals)
	}
	for _, p := range proposals {
		if p.NewValue.(int) != p.OldValue.(int)+1 {
			t.Fatalf("frequency moves by exactly one, got %v -> %v", p.OldValue, p.NewValue)
		}
	}

	// At the platform ceiling nothing is proposed.
	capped := baseStrategy()
	capped.Platforms["twitter"] = strategyfile.Platform{FrequencyPerWeek: 14}
	capped.Platforms["linkedin"] = strategyfile.Platform{FrequencyPerWeek: 7}
	if got := findByType(ComputeAdjustments(model, capped, 20, 4), types.AdjustmentFrequency); len(got) != 0 {
		t.Fatalf("capped platforms must not grow, got %v", got)
	}
}
