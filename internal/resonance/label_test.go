package resonance

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSelectLabel(t *testing.T) {
	tests := []struct {
		name   string
		pct    int
		strict int
		days   int
		want   string
	}{
		{name: "twin echo with several strict matches", pct: 96, strict: 2, days: 30, want: LabelSynchronicity},
		{name: "twin without strict matches", pct: 96, strict: 0, days: 30, want: LabelTwinConnection},
		{name: "exact edge 95", pct: 95, strict: 1, days: 0, want: LabelTwinConnection},
		{name: "close in time", pct: 90, strict: 0, days: 1, want: LabelSynchronicity},
		{name: "close in time at window edge", pct: 86, strict: 0, days: 2, want: LabelSynchronicity},
		{name: "strong but far apart", pct: 90, strict: 0, days: 3, want: LabelCollectiveEcho},
		{name: "85 is not above 85", pct: 85, strict: 0, days: 0, want: LabelCollectiveEcho},
		{name: "80 is not above 80", pct: 80, strict: 0, days: 0, want: LabelSharedArchetype},
		{name: "archetype", pct: 70, strict: 0, days: 10, want: LabelSharedArchetype},
		{name: "45 is vague", pct: 45, strict: 0, days: 10, want: LabelVagueResonance},
		{name: "vague", pct: 16, strict: 0, days: 10, want: LabelVagueResonance},
		{name: "15 is unique", pct: 15, strict: 0, days: 10, want: LabelUniqueVision},
		{name: "unique", pct: 10, strict: 0, days: 10, want: LabelUniqueVision},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, SelectLabel(tt.pct, tt.strict, tt.days, DefaultTemporalWindowDays))
		})
	}
}

func TestCalibrate(t *testing.T) {
	require.Equal(t, 78, Calibrate(0.91, 0.60))
	require.Equal(t, 0, Calibrate(0.59, 0.60))
	require.Equal(t, 0, Calibrate(0.60, 0.60))
	require.Equal(t, 100, Calibrate(1.0, 0.60))
	require.Equal(t, 100, Calibrate(1.2, 0.60))
	require.Equal(t, 0, Calibrate(-1, 0.60))

	prev := 0
	for raw := -1.0; raw <= 1.0; raw += 0.001 {
		pct := Calibrate(raw, 0.60)
		require.GreaterOrEqual(t, pct, prev)
		require.GreaterOrEqual(t, pct, 0)
		require.LessOrEqual(t, pct, 100)
		if raw < 0.60 {
			require.Equal(t, 0, pct)
		}
		prev = pct
	}
}

func TestCosineSimilarity(t *testing.T) {
	s, err := CosineSimilarity([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	require.InDelta(t, 0, s, 1e-9)

	s, err = CosineSimilarity([]float32{1, 2, 3}, []float32{2, 4, 6})
	require.NoError(t, err)
	require.InDelta(t, 1, s, 1e-9)

	_, err = CosineSimilarity([]float32{1}, []float32{1, 2})
	require.ErrorIs(t, err, errDimension)

	_, err = CosineSimilarity([]float32{0, 0}, []float32{1, 2})
	require.ErrorIs(t, err, errZeroVector)
}

func TestConfig(t *testing.T) {
	cfg := Config{}.WithDefaults()
	require.Equal(t, DefaultConfig(), cfg)
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.StrictThreshold = 0.3
	require.Error(t, bad.Validate())

	bad = cfg
	bad.NoiseFloor = 1
	require.Error(t, bad.Validate())

	bad = cfg
	bad.HistoryWindow = -1
	require.Error(t, bad.Validate())
}

func TestConfigDecodeKeepsExplicitZero(t *testing.T) {
	var cfg Config
	require.NoError(t, json.Unmarshal([]byte(`{"noise_floor": 0, "temporal_window_days": 0}`), &cfg))
	cfg = cfg.WithDefaults()
	require.Equal(t, 0.0, cfg.NoiseFloor)
	require.Equal(t, 0, cfg.TemporalWindowDays)
	require.Equal(t, DefaultBroadThreshold, cfg.BroadThreshold)
	require.Equal(t, DefaultStrictThreshold, cfg.StrictThreshold)
	require.Equal(t, DefaultHistoryWindow, cfg.HistoryWindow)
	require.Equal(t, DefaultNoMatchDays, cfg.NoMatchDays)
	require.NoError(t, cfg.Validate())

	cfg = Config{}
	require.NoError(t, json.Unmarshal([]byte(`{"strict_threshold": 0.9}`), &cfg))
	want := DefaultConfig()
	want.StrictThreshold = 0.9
	require.Equal(t, want, cfg)
}
