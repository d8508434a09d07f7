package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/mkovtun/contentpulse-backend/internal/domain"
	"github.com/mkovtun/contentpulse-backend/internal/pkg/ctxutil"
	"github.com/mkovtun/contentpulse-backend/internal/platform/logger"
	"github.com/mkovtun/contentpulse-backend/internal/platform/strategyfile"
)

type fakeAdjustmentRepo struct {
	rows map[uuid.UUID]*types.StrategyAdjustment
}

func (f *fakeAdjustmentRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.StrategyAdjustment) ([]*types.StrategyAdjustment, error) {
	for _, r := range rows {
		f.rows[r.ID] = r
	}
	return rows, nil
}

func (f *fakeAdjustmentRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.StrategyAdjustment, error) {
	return f.rows[id], nil
}

func (f *fakeAdjustmentRepo) ListByTenant(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, status types.AdjustmentStatus, limit int) ([]*types.StrategyAdjustment, error) {
	out := []*types.StrategyAdjustment{}
	for _, r := range f.rows {
		if r.TenantID == tenantID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeAdjustmentRepo) ListAppliedSince(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, since time.Time) ([]*types.StrategyAdjustment, error) {
	return nil, nil
}

func (f *fakeAdjustmentRepo) SetStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status types.AdjustmentStatus) error {
	if row, ok := f.rows[id]; ok {
		row.Status = status
	}
	return nil
}

func decideContext(t *testing.T, tenantID uuid.UUID, adjustmentID string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	req := httptest.NewRequest(http.MethodPost, "/api/adjustments/"+adjustmentID+"/approve", nil)
	c.Request = req.WithContext(ctxutil.WithTenantID(req.Context(), tenantID))
	c.Params = gin.Params{{Key: "id", Value: adjustmentID}}
	return c, rec
}

func adjustmentHandler(t *testing.T, repo *fakeAdjustmentRepo) *AdjustmentHandler {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	store, err := strategyfile.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	return NewAdjustmentHandler(log, store, repo)
}

func TestApproveUnknownAdjustmentReturnsNotFound(t *testing.T) {
	h := adjustmentHandler(t, &fakeAdjustmentRepo{rows: map[uuid.UUID]*types.StrategyAdjustment{}})
	c, rec := decideContext(t, uuid.New(), uuid.New().String())

	h.ApproveAdjustment(c)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown id must 404, got %d", rec.Code)
	}
}

func TestApproveForeignTenantAdjustmentIsForbidden(t *testing.T) {
	row := &types.StrategyAdjustment{
		ID:       uuid.New(),
		TenantID: uuid.New(),
		Status:   types.AdjustmentPending,
	}
	h := adjustmentHandler(t, &fakeAdjustmentRepo{rows: map[uuid.UUID]*types.StrategyAdjustment{row.ID: row}})
	c, rec := decideContext(t, uuid.New(), row.ID.String())

	h.ApproveAdjustment(c)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign tenant must 403, got %d", rec.Code)
	}
}

func TestApproveMalformedAdjustmentIDIsBadRequest(t *testing.T) {
	h := adjustmentHandler(t, &fakeAdjustmentRepo{rows: map[uuid.UUID]*types.StrategyAdjustment{}})
	c, rec := decideContext(t, uuid.New(), "not-a-uuid")

	h.ApproveAdjustment(c)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed id must 400, got %d", rec.Code)
	}
}
