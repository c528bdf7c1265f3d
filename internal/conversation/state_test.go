package conversation

import (
	"context"
	"testing"
	"time"
)

func TestIsCancel(t *testing.T) {
	labels := []string{"🚶 Propose a walk", "📋 My proposals"}
	tests := []struct {
		text string
		want bool
	}{
		{"/start", true},
		{" /propose 18:30", true},
		{"🚶 Propose a walk", true},
		{"📋 My proposals", true},
		{"18:30", false},
		{"Park", false},
		{"-", false},
	}
	for _, tt := range tests {
		if got := IsCancel(tt.text, labels...); got != tt.want {
			t.Errorf("IsCancel(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, time.May, 10, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore(30 * time.Minute)
	store.now = func() time.Time { return now }

	if st, err := store.Get(ctx, 1); err != nil || st != nil {
		t.Fatalf("Get of missing = %+v, %v", st, err)
	}

	in := &State{Step: StepComment, Location: "Park"}
	if err := store.Save(ctx, 1, in); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	in.Location = "changed"

	st, _ := store.Get(ctx, 1)
	if st == nil || st.Location != "Park" {
		t.Fatalf("stored state aliases caller: %+v", st)
	}

	now = now.Add(31 * time.Minute)
	if st, _ := store.Get(ctx, 1); st != nil {
		t.Errorf("state survived ttl: %+v", st)
	}

	_ = store.Save(ctx, 2, &State{Step: StepTime})
	_ = store.Clear(ctx, 2)
	if st, _ := store.Get(ctx, 2); st != nil {
		t.Errorf("state survived Clear: %+v", st)
	}
}
