package resonance

import "math"

const (
	LabelOrigin          = "ORIGIN_POINT"
	LabelSynchronicity   = "SYNCHRONICITY"
	LabelTwinConnection  = "TWIN_CONNECTION"
	LabelCollectiveEcho  = "COLLECTIVE_ECHO"
	LabelSharedArchetype = "SHARED_ARCHETYPE"
	LabelVagueResonance  = "VAGUE_RESONANCE"
	LabelUniqueVision    = "UNIQUE_VISION"

	LabelAPILimit  = "API_LIMIT"
	LabelCalcSkip  = "CALC_SKIP"
	LabelDimError  = "DIM_ERROR"
	LabelCalcError = "CALC_ERROR"
)

var failureLabels = map[string]bool{
	LabelAPILimit:  true,
	LabelCalcSkip:  true,
	LabelDimError:  true,
	LabelCalcError: true,
}

func IsFailureLabel(label string) bool {
	return failureLabels[label]
}

// Calibrate maps a raw cosine score onto 0..100, treating everything below
// floor as noise.
func Calibrate(raw, floor float64) int {
	if math.IsNaN(raw) || raw < floor {
		return 0
	}
	if floor >= 1 {
		return 100
	}
	pct := math.Round(100 * (raw - floor) / (1 - floor))
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return int(pct)
}

// SelectLabel applies the label rules in priority order; the first rule that
// matches wins.
func SelectLabel(percentage, strictCount, daysDiff, temporalWindow int) string {
	switch {
	case percentage >= 95 && strictCount >= 2:
		return LabelSynchronicity
	case percentage >= 95:
		return LabelTwinConnection
	case percentage > 85 && daysDiff <= temporalWindow:
		return LabelSynchronicity
	case percentage > 80:
		return LabelCollectiveEcho
	case percentage > 45:
		return LabelSharedArchetype
	case percentage > 15:
		return LabelVagueResonance
	default:
		return LabelUniqueVision
	}
}
