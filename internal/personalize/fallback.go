package personalize

import "github.com/myrjola/fitcoach/internal/readiness"

const (
	lowReadiness      = 40
	moderateReadiness = 70
)

// Fallback is the conservative prescription used whenever the AI recommendation is unavailable. It
// depends only on the day's readiness.
func Fallback(r readiness.DailyReadiness) Recommendation {
	switch {
	case r.FatigueState == readiness.FatigueHigh || r.Score < lowReadiness:
		return Recommendation{
			AdjustedSets:      2,
			AdjustedReps:      8,
			IntensityModifier: 0.7,
			SafetyCues: []string{
				"Use lighter weights than usual and stop well short of failure.",
				"Rest at least two minutes between sets.",
				"Stop immediately if you feel sharp pain or dizziness.",
			},
			Expectations: "A light recovery session. Expect to finish feeling better than when you started.",
			Reasoning:    "Readiness is low or fatigue is high, so volume and intensity are reduced to support recovery.",
			Source:       SourceFallback,
		}
	case r.Score < moderateReadiness:
		return Recommendation{
			AdjustedSets:      3,
			AdjustedReps:      10,
			IntensityModifier: 0.85,
			SafetyCues: []string{
				"Keep two to three reps in reserve on every set.",
				"Prioritise controlled form over load.",
			},
			Expectations: "A solid, moderate session without pushing to your limits.",
			Reasoning:    "Readiness is moderate, so intensity is slightly reduced.",
			Source:       SourceFallback,
		}
	default:
		return Recommendation{
			AdjustedSets:      3,
			AdjustedReps:      12,
			IntensityModifier: 1.0,
			SafetyCues: []string{
				"Warm up thoroughly before your working sets.",
			},
			Expectations: "A full-intensity session. A good day to aim for progress.",
			Reasoning:    "Readiness is high, so the full prescription applies.",
			Source:       SourceFallback,
		}
	}
}
