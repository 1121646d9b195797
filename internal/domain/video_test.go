package domain

import (
	"testing"
	"time"
)

func TestProjected(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		state   VideoState
		at      time.Time
		want    float64
		epsilon float64
	}{
		{
			name:    "playing advances with wall clock",
			state:   VideoState{URL: "http://v", Timestamp: 10, LastUpdated: base, Playing: true},
			at:      base.Add(5 * time.Second),
			want:    15,
			epsilon: 0.001,
		},
		{
			name:    "paused stays put",
			state:   VideoState{URL: "http://v", Timestamp: 10, LastUpdated: base, Playing: false},
			at:      base.Add(1 * time.Hour),
			want:    10,
			epsilon: 0,
		},
		{
			name:    "playing at the update instant",
			state:   VideoState{Timestamp: 42, LastUpdated: base, Playing: true},
			at:      base,
			want:    42,
			epsilon: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.state.Projected(tt.at)
			if diff := got - tt.want; diff > tt.epsilon || diff < -tt.epsilon {
				t.Errorf("Projected() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestApplyPartialPatch(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	later := base.Add(time.Minute)

	url := "http://example.com/v"
	zero := 0.0
	empty := ""
	playing := true

	t.Run("only playing leaves url and timestamp alone", func(t *testing.T) {
		v := VideoState{URL: url, Timestamp: 33, LastUpdated: base, Playing: false}
		v.Apply(VideoUpdate{Playing: &playing}, later)
		if v.URL != url || v.Timestamp != 33 {
			t.Errorf("patch touched omitted fields: %+v", v)
		}
		if !v.Playing {
			t.Error("playing not applied")
		}
		if !v.LastUpdated.Equal(later) {
			t.Errorf("LastUpdated = %v, want %v", v.LastUpdated, later)
		}
	})

	t.Run("present zero timestamp is applied", func(t *testing.T) {
		v := VideoState{URL: url, Timestamp: 33, LastUpdated: base}
		v.Apply(VideoUpdate{Timestamp: &zero}, later)
		if v.Timestamp != 0 {
			t.Errorf("Timestamp = %v, want 0", v.Timestamp)
		}
	})

	t.Run("present empty url clears it", func(t *testing.T) {
		v := VideoState{URL: url, Timestamp: 33, LastUpdated: base}
		v.Apply(VideoUpdate{URL: &empty}, later)
		if v.URL != "" {
			t.Errorf("URL = %q, want empty", v.URL)
		}
	})

	t.Run("empty patch only bumps LastUpdated", func(t *testing.T) {
		v := VideoState{URL: url, Timestamp: 33, LastUpdated: base, Playing: true}
		v.Apply(VideoUpdate{}, later)
		if v.URL != url || v.Timestamp != 33 || !v.Playing {
			t.Errorf("empty patch mutated state: %+v", v)
		}
		if !v.LastUpdated.Equal(later) {
			t.Errorf("LastUpdated = %v, want %v", v.LastUpdated, later)
		}
	})
}
