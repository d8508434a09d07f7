package adjust

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/mkovtun/contentpulse-backend/internal/domain"
	"github.com/mkovtun/contentpulse-backend/internal/platform/logger"
	"github.com/mkovtun/contentpulse-backend/internal/platform/strategyfile"
)

type ApplyDeps struct {
	Log         *logger.Logger
	Store       *strategyfile.Store
	Adjustments interface {
		Create(ctx context.Context, tx *gorm.DB, rows []*types.StrategyAdjustment) ([]*types.StrategyAdjustment, error)
		GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.StrategyAdjustment, error)
		SetStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status types.AdjustmentStatus) error
	}
}

// ApplyResult partitions the cycle's proposals into what auto-applied and
// what queued for approval. On a write failure the full proposal list is
// preserved so the cycle can retry without recomputation.
type ApplyResult struct {
	Applied []*types.StrategyAdjustment
	Queued  []*types.StrategyAdjustment
}

// ApplyAutoAdjustments applies the auto partition to the live strategy
// document in one atomic replace and durably records every adjustment with
// its resulting status. A proposal that fails validation against the current
// document is dropped; the others still apply.
func ApplyAutoAdjustments(ctx context.Context, deps ApplyDeps, tenantID uuid.UUID, proposals []Proposal) (ApplyResult, error) {
	result := ApplyResult{}
	if deps.Store == nil || deps.Adjustments == nil {
		return result, fmt.Errorf("adjust: missing deps")
	}
	if tenantID == uuid.Nil {
		return result, fmt.Errorf("adjust: missing tenant_id")
	}
	if len(proposals) == 0 {
		return result, nil
	}

	auto := []Proposal{}
	queued := []Proposal{}
	for _, p := range proposals {
		if p.Tier == types.TierAuto {
			auto = append(auto, p)
		} else {
			queued = append(queued, p)
		}
	}

	applied := []Proposal{}
	if len(auto) > 0 {
		err := deps.Store.Mutate(tenantID, func(s *strategyfile.Strategy) error {
			for _, p := range auto {
				if err := applyProposal(s, p); err != nil {
					warn(deps.Log, "adjust: dropping invalid proposal", p.Field, err)
					continue
				}
				applied = append(applied, p)
			}
			return nil
		})
		if err != nil {
			return result, fmt.Errorf("adjust: strategy write failed: %w", err)
		}
	}

	rows := make([]*types.StrategyAdjustment, 0, len(applied)+len(queued))
	for _, p := range applied {
		rows = append(rows, toRow(tenantID, p, types.AdjustmentApplied))
	}
	for _, p := range queued {
		rows = append(rows, toRow(tenantID, p, types.AdjustmentPending))
	}
	created, err := deps.Adjustments.Create(ctx, nil, rows)
	if err != nil {
		return result, fmt.Errorf("adjust: record adjustments: %w", err)
	}
	for _, row := range created {
		if row.Status == types.AdjustmentApplied {
			result.Applied = append(result.Applied, row)
		} else {
			result.Queued = append(result.Queued, row)
		}
	}
	return result, nil
}

// Approve applies a pending approval-tier adjustment through the same
// atomic mutate path and marks it approved. Illegal on any non-pending
// record.
func Approve(ctx context.Context, deps ApplyDeps, id uuid.UUID) error {
	row, err := pendingRecord(ctx, deps, id)
	if err != nil {
		return err
	}
	proposal, err := fromRow(row)
	if err != nil {
		return fmt.Errorf("adjust: decode adjustment %s: %w", id, err)
	}
	if err := deps.Store.Mutate(row.TenantID, func(s *strategyfile.Strategy) error {
		return applyProposal(s, proposal)
	}); err != nil {
		return fmt.Errorf("adjust: apply approved adjustment: %w", err)
	}
	return deps.Adjustments.SetStatus(ctx, nil, id, types.AdjustmentApproved)
}

// Reject discards a pending adjustment. Illegal on any non-pending record.
func Reject(ctx context.Context, deps ApplyDeps, id uuid.UUID) error {
	if _, err := pendingRecord(ctx, deps, id); err != nil {
		return err
	}
	return deps.Adjustments.SetStatus(ctx, nil, id, types.AdjustmentRejected)
}

func pendingRecord(ctx context.Context, deps ApplyDeps, id uuid.UUID) (*types.StrategyAdjustment, error) {
	if deps.Store == nil || deps.Adjustments == nil {
		return nil, fmt.Errorf("adjust: missing deps")
	}
	row, err := deps.Adjustments.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("adjust: adjustment %s not found", id)
	}
	if row.Status != types.AdjustmentPending {
		return nil, fmt.Errorf("adjust: adjustment %s is %s, not pending", id, row.Status)
	}
	return row, nil
}

// applyProposal mutates the in-memory strategy for one proposal, validating
// the target against the current document.
func applyProposal(s *strategyfile.Strategy, p Proposal) error {
	switch p.Type {
	case types.AdjustmentPillarWeight:
		weight, err := asFloat(p.NewValue)
		if err != nil {
			return err
		}
		if _, ok := s.Pillars[p.Target.Pillar]; !ok {
			return fmt.Errorf("unknown pillar %q", p.Target.Pillar)
		}
		s.Pillars[p.Target.Pillar] = clamp01(weight)
		return nil

	case types.AdjustmentPostingTime:
		times, err := asStrings(p.NewValue)
		if err != nil {
			return err
		}
		cfg, ok := s.Platforms[p.Target.Platform]
		if !ok {
			return fmt.Errorf("unknown platform %q", p.Target.Platform)
		}
		cfg.PreferredTimes = times
		s.Platforms[p.Target.Platform] = cfg
		return nil

	case types.AdjustmentFormatPreference:
		formats, err := asStrings(p.NewValue)
		if err != nil {
			return err
		}
		cfg, ok := s.Platforms[p.Target.Platform]
		if !ok {
			return fmt.Errorf("unknown platform %q", p.Target.Platform)
		}
		cfg.FormatPreference = formats
		s.Platforms[p.Target.Platform] = cfg
		return nil

	case types.AdjustmentFrequency:
		freq, err := asFloat(p.NewValue)
		if err != nil {
			return err
		}
		cfg, ok := s.Platforms[p.Target.Platform]
		if !ok {
			return fmt.Errorf("unknown platform %q", p.Target.Platform)
		}
		next := int(freq)
		if next < 0 || next > platformFrequencyCap(p.Target.Platform) {
			return fmt.Errorf("frequency %d out of range for %q", next, p.Target.Platform)
		}
		cfg.FrequencyPerWeek = next
		s.Platforms[p.Target.Platform] = cfg
		return nil

	case types.AdjustmentNewPillar:
		weight, err := asFloat(p.NewValue)
		if err != nil {
			return err
		}
		if p.Target.Pillar == "" {
			return fmt.Errorf("new pillar without a name")
		}
		if _, exists := s.Pillars[p.Target.Pillar]; exists {
			return fmt.Errorf("pillar %q already exists", p.Target.Pillar)
		}
		s.Pillars[p.Target.Pillar] = clamp01(weight)
		return nil

	case types.AdjustmentDropFormat:
		cfg, ok := s.Platforms[p.Target.Platform]
		if !ok {
			return fmt.Errorf("unknown platform %q", p.Target.Platform)
		}
		kept := make([]string, 0, len(cfg.FormatPreference))
		found := false
		for _, f := range cfg.FormatPreference {
			if f == p.Target.Format {
				found = true
				continue
			}
			kept = append(kept, f)
		}
		if !found {
			return fmt.Errorf("format %q not configured on %q", p.Target.Format, p.Target.Platform)
		}
		cfg.FormatPreference = kept
		s.Platforms[p.Target.Platform] = cfg
		return nil

	default:
		return fmt.Errorf("unknown adjustment type %q", p.Type)
	}
}

func toRow(tenantID uuid.UUID, p Proposal, status types.AdjustmentStatus) *types.StrategyAdjustment {
	return &types.StrategyAdjustment{
		ID:             uuid.New(),
		TenantID:       tenantID,
		AdjustmentType: p.Type,
		Field:          p.Field,
		OldValue:       mustJSON(p.OldValue),
		NewValue:       mustJSON(p.NewValue),
		Reason:         p.Reason,
		Evidence:       mustJSON(p.Evidence),
		Tier:           p.Tier,
		Status:         status,
	}
}

// fromRow reconstructs an applyable proposal from a persisted record. The
// target is rebuilt from the typed adjustment kind plus the field path tail,
// which is safe because toRow derived the path from the target.
func fromRow(row *types.StrategyAdjustment) (Proposal, error) {
	p := Proposal{
		Type:   row.AdjustmentType,
		Field:  row.Field,
		Reason: row.Reason,
		Tier:   row.Tier,
	}
	if len(row.NewValue) > 0 {
		var v interface{}
		if err := json.Unmarshal(row.NewValue, &v); err != nil {
			return p, err
		}
		p.NewValue = v
	}
	target, err := targetFromField(row.AdjustmentType, row.Field)
	if err != nil {
		return p, err
	}
	p.Target = target
	return p, nil
}

func targetFromField(kind types.AdjustmentType, field string) (Target, error) {
	segments := splitField(field)
	switch kind {
	case types.AdjustmentPillarWeight, types.AdjustmentNewPillar:
		if len(segments) < 2 || segments[0] != "pillars" {
			return Target{}, fmt.Errorf("malformed pillar field %q", field)
		}
		return Target{Pillar: segments[1]}, nil
	case types.AdjustmentPostingTime, types.AdjustmentFormatPreference, types.AdjustmentFrequency:
		if len(segments) < 2 || segments[0] != "platforms" {
			return Target{}, fmt.Errorf("malformed platform field %q", field)
		}
		return Target{Platform: segments[1]}, nil
	case types.AdjustmentDropFormat:
		if len(segments) < 4 || segments[0] != "platforms" {
			return Target{}, fmt.Errorf("malformed drop-format field %q", field)
		}
		return Target{Platform: segments[1], Format: segments[3]}, nil
	default:
		return Target{}, fmt.Errorf("unknown adjustment type %q", kind)
	}
}

func splitField(field string) []string {
	out := []string{}
	start := 0
	for i := 0; i < len(field); i++ {
		if field[i] == '.' {
			out = append(out, field[start:i])
			start = i + 1
		}
	}
	return append(out, field[start:])
}

func asFloat(v interface{}) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case json.Number:
		return t.Float64()
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}

func asStrings(v interface{}) ([]string, error) {
	switch t := v.(type) {
	case []string:
		return t, nil
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string element, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected string list, got %T", v)
	}
}

func mustJSON(v interface{}) datatypes.JSON {
	if v == nil {
		return nil
	}
	b, _ := json.Marshal(v)
	return datatypes.JSON(b)
}

func warn(log *logger.Logger, msg, field string, err error) {
	if log != nil {
		log.Warn(msg, "field", field, "error", err.Error())
	}
}
