package observability

import (
	"github.com/mkovtun/contentpulse-backend/internal/platform/logger"
)

// FatigueAlert is one freshly detected fatigued topic.
type FatigueAlert struct {
	Topic      string    `json:"topic"`
	LastScores []float64 `json:"last_scores"`
	Suggestion string    `json:"suggestion,omitempty"`
}

// ReportFatigueAlerts logs newly fatigued topics at warn level so operators
// see rotation pressure building without digging into the preference model.
func ReportFatigueAlerts(log *logger.Logger, tenantID string, alerts []FatigueAlert) {
	if log == nil || len(alerts) == 0 {
		return
	}
	for _, a := range alerts {
		log.Warn("topic fatigue detected",
			"tenant_id", tenantID,
			"topic", a.Topic,
			"last_scores", a.LastScores,
			"suggestion", a.Suggestion)
	}
}
