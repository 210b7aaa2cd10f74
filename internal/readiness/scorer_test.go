package readiness_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/myrjola/fitcoach/internal/readiness"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name  string
		check readiness.Check
		want  readiness.Score
	}{
		{
			name:  "great sleep no soreness",
			check: readiness.Check{SleepQuality: readiness.SleepGreat, SorenessLevel: 1},
			want: readiness.Score{
				Value:          100,
				FatigueState:   readiness.FatigueNormal,
				Recommendation: readiness.PushRecommendation,
			},
		},
		{
			name:  "high soreness overrides great sleep",
			check: readiness.Check{SleepQuality: readiness.SleepGreat, SorenessLevel: 8},
			want: readiness.Score{
				Value:          69,
				FatigueState:   readiness.FatigueHigh,
				Recommendation: readiness.RecoveryRecommendation,
			},
		},
		{
			name:  "average day",
			check: readiness.Check{SleepQuality: readiness.SleepAverage, SorenessLevel: 5},
			want: readiness.Score{
				Value:          52,
				FatigueState:   readiness.FatigueNormal,
				Recommendation: readiness.ModerateRecommendation,
			},
		},
		{
			name:  "poor sleep is always high fatigue",
			check: readiness.Check{SleepQuality: readiness.SleepPoor, SorenessLevel: 1},
			want: readiness.Score{
				Value:          40,
				FatigueState:   readiness.FatigueHigh,
				Recommendation: readiness.RecoveryRecommendation,
			},
		},
		{
			name:  "push threshold is inclusive",
			check: readiness.Check{SleepQuality: readiness.SleepAverage, SorenessLevel: 1},
			want: readiness.Score{
				Value:          70,
				FatigueState:   readiness.FatigueNormal,
				Recommendation: readiness.PushRecommendation,
			},
		},
		{
			name:  "just below push threshold",
			check: readiness.Check{SleepQuality: readiness.SleepAverage, SorenessLevel: 2},
			want: readiness.Score{
				Value:          66,
				FatigueState:   readiness.FatigueNormal,
				Recommendation: readiness.ModerateRecommendation,
			},
		},
		{
			name:  "soreness seven is not high fatigue",
			check: readiness.Check{SleepQuality: readiness.SleepGreat, SorenessLevel: 7},
			want: readiness.Score{
				Value:          73,
				FatigueState:   readiness.FatigueNormal,
				Recommendation: readiness.PushRecommendation,
			},
		},
		{
			name:  "worst case",
			check: readiness.Check{SleepQuality: readiness.SleepPoor, SorenessLevel: 10},
			want: readiness.Score{
				Value:          0,
				FatigueState:   readiness.FatigueHigh,
				Recommendation: readiness.RecoveryRecommendation,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := readiness.Compute(tt.check)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Compute() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCompute_Properties(t *testing.T) {
	qualities := []readiness.SleepQuality{readiness.SleepPoor, readiness.SleepAverage, readiness.SleepGreat}
	for qi, q := range qualities {
		for s := readiness.MinSoreness; s <= readiness.MaxSoreness; s++ {
			got := readiness.Compute(readiness.Check{SleepQuality: q, SorenessLevel: s})
			if got.Value < 0 || got.Value > 100 {
				t.Errorf("Compute(%s, %d) = %d, want within [0, 100]", q, s, got.Value)
			}
			wantHigh := s > 7 || q == readiness.SleepPoor
			if (got.FatigueState == readiness.FatigueHigh) != wantHigh {
				t.Errorf("Compute(%s, %d) fatigue = %s, want high %t", q, s, got.FatigueState, wantHigh)
			}
			if s > readiness.MinSoreness {
				less := readiness.Compute(readiness.Check{SleepQuality: q, SorenessLevel: s - 1})
				if less.Value < got.Value {
					t.Errorf("lower soreness %d scored %d < %d", s-1, less.Value, got.Value)
				}
			}
			if qi > 0 {
				worse := readiness.Compute(readiness.Check{SleepQuality: qualities[qi-1], SorenessLevel: s})
				if worse.Value > got.Value {
					t.Errorf("worse sleep %s scored %d > %d", qualities[qi-1], worse.Value, got.Value)
				}
			}
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		check   readiness.Check
		wantErr bool
	}{
		{name: "valid lower bound", check: readiness.Check{SleepQuality: readiness.SleepPoor, SorenessLevel: 1}},
		{name: "valid upper bound", check: readiness.Check{SleepQuality: readiness.SleepGreat, SorenessLevel: 10}},
		{name: "soreness zero", check: readiness.Check{SleepQuality: readiness.SleepGreat, SorenessLevel: 0}, wantErr: true},
		{name: "soreness eleven", check: readiness.Check{SleepQuality: readiness.SleepAverage, SorenessLevel: 11}, wantErr: true},
		{name: "unknown sleep", check: readiness.Check{SleepQuality: "excellent", SorenessLevel: 3}, wantErr: true},
		{name: "empty sleep", check: readiness.Check{SleepQuality: "", SorenessLevel: 3}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := readiness.Validate(tt.check)
			if tt.wantErr != errors.Is(err, readiness.ErrInvalidCheck) {
				t.Errorf("Validate() error = %v, wantErr %t", err, tt.wantErr)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() unexpected error = %v", err)
			}
		})
	}
}
