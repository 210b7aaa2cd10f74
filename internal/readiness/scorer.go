package readiness

import (
	"fmt"
	"math"
)

const (
	sleepWeight    = 0.6
	sorenessWeight = 0.4
	pushThreshold  = 70
	highSoreness   = 7
)

const (
	RecoveryRecommendation = "Your body needs recovery today. Focus on mobility work, light cardio, or rest."
	PushRecommendation     = "You are well recovered. Go for a full-intensity session today!"
	ModerateRecommendation = "Moderate readiness. Train, but keep the intensity in check and listen to your body."
)

func sleepSubScore(q SleepQuality) float64 {
	switch q {
	case SleepGreat:
		return 100
	case SleepAverage:
		return 50
	case SleepPoor:
		return 0
	}
	return 0
}

// sorenessSubScore maps soreness 1 to 100 and soreness 10 to 0.
func sorenessSubScore(soreness int) float64 {
	return float64(MaxSoreness-soreness) / float64(MaxSoreness-MinSoreness) * 100
}

// Compute scores a check-in. It does not validate the input; see [Validate].
//
// The fatigue state depends only on the raw inputs and not on the score, so a great night with heavy
// soreness is still HIGH fatigue.
func Compute(check Check) Score {
	value := int(math.Round(sleepSubScore(check.SleepQuality)*sleepWeight +
		sorenessSubScore(check.SorenessLevel)*sorenessWeight))

	fatigue := FatigueNormal
	if check.SorenessLevel > highSoreness || check.SleepQuality == SleepPoor {
		fatigue = FatigueHigh
	}

	var recommendation string
	switch {
	case fatigue == FatigueHigh:
		recommendation = RecoveryRecommendation
	case value >= pushThreshold:
		recommendation = PushRecommendation
	default:
		recommendation = ModerateRecommendation
	}

	return Score{
		Value:          value,
		FatigueState:   fatigue,
		Recommendation: recommendation,
	}
}

// Validate reports ErrInvalidCheck for an unknown sleep quality or soreness outside [1, 10].
func Validate(check Check) error {
	switch check.SleepQuality {
	case SleepPoor, SleepAverage, SleepGreat:
	default:
		return fmt.Errorf("%w: unknown sleep quality %q", ErrInvalidCheck, check.SleepQuality)
	}
	if check.SorenessLevel < MinSoreness || check.SorenessLevel > MaxSoreness {
		return fmt.Errorf("%w: soreness level %d outside [%d, %d]",
			ErrInvalidCheck, check.SorenessLevel, MinSoreness, MaxSoreness)
	}
	return nil
}
