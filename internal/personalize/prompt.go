package personalize

import (
	"fmt"
	"strings"
	"time"
)

const systemPrompt = `You are a certified strength and conditioning coach. You adjust a single exercise prescription
to the athlete's readiness, fitness level, injuries, and recent training load. Safety comes first: when
fatigue is high or an injury affects the exercise, reduce volume and intensity.

Respond with a single JSON object and nothing else:
{
  "adjustedSets": integer between 1 and 10,
  "adjustedReps": integer between 1 and 50,
  "intensityModifier": number between 0.5 and 1.0,
  "safetyCues": array of at least one short instruction,
  "expectations": string describing how the session should feel,
  "reasoning": string explaining the adjustment
}`

// userPrompt renders c as the user message of the chat completion.
func userPrompt(c Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Exercise: %s (category: %s, difficulty: %s)\n",
		c.Exercise.Name, orUnknown(c.Exercise.Category), orUnknown(c.Exercise.DifficultyLevel))
	fmt.Fprintf(&b, "Fitness level: %s\n", orUnknown(string(c.FitnessLevel)))

	fmt.Fprintf(&b, "\nToday's readiness:\n")
	fmt.Fprintf(&b, "- Readiness score: %d/100\n", c.Readiness.Score)
	fmt.Fprintf(&b, "- Fatigue state: %s\n", c.Readiness.FatigueState)
	fmt.Fprintf(&b, "- Sleep quality: %s\n", orUnknown(string(c.Readiness.SleepQuality)))
	fmt.Fprintf(&b, "- Soreness level: %d/10\n", c.Readiness.SorenessLevel)

	fmt.Fprintf(&b, "\nInjuries:\n")
	if len(c.Injuries) == 0 {
		b.WriteString("- none reported\n")
	}
	for _, injury := range c.Injuries {
		fmt.Fprintf(&b, "- %s: severity %s, %s\n",
			injury.BodyPart, orUnknown(injury.Severity), orUnknown(injury.RecoveryStatus))
	}

	fmt.Fprintf(&b, "\nRecent training:\n")
	fmt.Fprintf(&b, "- Weekly volume: %.0f minutes\n", c.History.WeeklyVolumeLoad)
	if c.History.LastWorkoutDate != nil {
		fmt.Fprintf(&b, "- Last workout: %s\n", c.History.LastWorkoutDate.Format(time.DateOnly))
	} else {
		b.WriteString("- Last workout: never\n")
	}
	fmt.Fprintf(&b, "- Fatigue index: %.2f\n", c.History.CurrentFatigueIndex)
	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
