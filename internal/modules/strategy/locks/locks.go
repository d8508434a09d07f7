// Package locks is the registry of permanently pinned strategy fields.
// A lock is a deliberate operator override; the adjustment engine must skip
// a locked field no matter how strong the statistical evidence is.
package locks

import (
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"

	types "github.com/mkovtun/contentpulse-backend/internal/domain"
)

// IsSettingLocked reports whether the exact dotted field path is locked.
// Matching is whole-path only; a lock on "pillars.ai.weight" does not cover
// "pillars.ai".
func IsSettingLocked(locked []types.LockedSetting, field string) bool {
	field = strings.TrimSpace(field)
	if field == "" {
		return false
	}
	for _, l := range locked {
		if l.Field == field {
			return true
		}
	}
	return false
}

// Lock upserts a lock on the field, replacing any prior lock and refreshing
// its timestamp. Locks never expire.
func Lock(locked []types.LockedSetting, field string, value interface{}, now time.Time) []types.LockedSetting {
	field = strings.TrimSpace(field)
	if field == "" {
		return locked
	}
	entry := types.LockedSetting{Field: field, Value: value, LockedAt: now.UTC()}
	for i, l := range locked {
		if l.Field == field {
			out := make([]types.LockedSetting, len(locked))
			copy(out, locked)
			out[i] = entry
			return out
		}
	}
	return append(append([]types.LockedSetting{}, locked...), entry)
}

// Unlock removes the lock on the field, if any.
func Unlock(locked []types.LockedSetting, field string) []types.LockedSetting {
	field = strings.TrimSpace(field)
	out := make([]types.LockedSetting, 0, len(locked))
	for _, l := range locked {
		if l.Field != field {
			out = append(out, l)
		}
	}
	return out
}

// Decode parses the preference model's locked_settings payload. A broken
// payload degrades to no locks rather than failing the caller.
func Decode(raw datatypes.JSON) []types.LockedSetting {
	if len(raw) == 0 {
		return nil
	}
	var out []types.LockedSetting
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func Encode(locked []types.LockedSetting) datatypes.JSON {
	if locked == nil {
		locked = []types.LockedSetting{}
	}
	b, err := json.Marshal(locked)
	if err != nil {
		return datatypes.JSON([]byte("[]"))
	}
	return datatypes.JSON(b)
}
