package locks

import (
	"testing"
	"time"

	"gorm.io/datatypes"

	types "github.com/mkovtun/contentpulse-backend/internal/domain"
)

func TestIsSettingLockedExactMatch(t *testing.T) {
	locked := []types.LockedSetting{{Field: "pillars.ai.weight"}}

	if !IsSettingLocked(locked, "pillars.ai.weight") {
		t.Fatalf("expected exact path to match")
	}
	if IsSettingLocked(locked, "pillars.ai") {
		t.Fatalf("parent path must not match")
	}
	if IsSettingLocked(locked, "pillars.ai.weight.extra") {
		t.Fatalf("child path must not match")
	}
	if IsSettingLocked(locked, "") {
		t.Fatalf("empty field is never locked")
	}
}

func TestLockUpsertRefreshesTimestamp(t *testing.T) {
	t0 := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.AddDate(0, 0, 5)

	locked := Lock(nil, "platforms.twitter.frequency", 5, t0)
	locked = Lock(locked, "platforms.twitter.frequency", 7, t1)

	if len(locked) != 1 {
		t.Fatalf("upsert must replace, got %d entries", len(locked))
	}
	if locked[0].Value != 7 {
		t.Fatalf("expected value 7, got %v", locked[0].Value)
	}
	if !locked[0].LockedAt.Equal(t1) {
		t.Fatalf("expected refreshed timestamp %v, got %v", t1, locked[0].LockedAt)
	}
}

func TestUnlock(t *testing.T) {
	now := time.Now()
	locked := Lock(nil, "pillars.ai.weight", 0.4, now)
	locked = Lock(locked, "pillars.devops.weight", 0.3, now)

	locked = Unlock(locked, "pillars.ai.weight")
	if len(locked) != 1 || locked[0].Field != "pillars.devops.weight" {
		t.Fatalf("unexpected remaining locks %v", locked)
	}

	// Unlocking an absent field is a no-op.
	if got := Unlock(locked, "absent"); len(got) != 1 {
		t.Fatalf("expected no-op, got %v", got)
	}
}

func TestDecodeBrokenPayload(t *testing.T) {
	if got := Decode(datatypes.JSON([]byte("{not json"))); got != nil {
		t.Fatalf("broken payload must decode to nil, got %v", got)
	}
	if got := Decode(nil); got != nil {
		t.Fatalf("empty payload must decode to nil, got %v", got)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	locked := Lock(nil, "pillars.ai.weight", 0.4, now)
	decoded := Decode(Encode(locked))
	if len(decoded) != 1 || decoded[0].Field != "pillars.ai.weight" {
		t.Fatalf("round trip lost data: %v", decoded)
	}
}
