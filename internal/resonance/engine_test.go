package resonance

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	vectors    map[string][]float32
	embedErr   error
	batchErr   error
	shortBatch bool
	panicOn    string
	embeds     int
	batches    [][]string
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.embeds++
	if text == f.panicOn {
		panic("boom")
	}
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return f.vectors[text], nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.batches = append(f.batches, texts)
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		out = append(out, f.vectors[text])
	}
	if f.shortBatch {
		out = out[:len(out)-1]
	}
	return out, nil
}

var ref = time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)

// unit vector whose cosine with (1,0) is s
func withCosine(s float64) []float32 {
	return []float32{float32(s), float32(math.Sqrt(1 - s*s))}
}

func newTestEngine(f *fakeEmbedder) *Engine {
	e := NewEngine(f, Config{})
	e.now = func() time.Time { return ref }
	return e
}

func TestScoreEmptyHistoryIsOrigin(t *testing.T) {
	f := &fakeEmbedder{}
	res := newTestEngine(f).Score(context.Background(), "anything", nil, ref)
	require.Equal(t, LabelOrigin, res.Label)
	require.Equal(t, 0, res.Percentage)
	require.Equal(t, 0, res.BroadCount)
	require.Equal(t, 0, res.StrictCount)
	require.Equal(t, 0, res.TemporalMatches)
	require.Equal(t, DefaultNoMatchDays, res.DaysDiffBestMatch)
	require.Equal(t, 0, f.embeds)
	require.Empty(t, f.batches)
}

func TestScoreFlyingOverCity(t *testing.T) {
	f := &fakeEmbedder{vectors: map[string][]float32{
		"I was flying over a city": {1, 0},
		"soaring above rooftops":   withCosine(0.91),
		"a quiet forest":           withCosine(0.2),
		"lost keys":                withCosine(-0.5),
	}}
	history := []HistoryEntry{
		{Text: "a quiet forest", RawDate: "2024-05-01"},
		{Text: "soaring above rooftops", RawDate: "2024-05-10"},
		{Text: "lost keys", Date: time.Date(2024, 5, 19, 0, 0, 0, 0, time.UTC)},
	}
	res := newTestEngine(f).Score(context.Background(), "I was flying over a city", history, ref)
	require.Equal(t, 78, res.Percentage)
	require.Equal(t, LabelSharedArchetype, res.Label)
	require.Equal(t, 0, res.StrictCount)
	require.Equal(t, 1, res.BroadCount)
	require.Equal(t, 10, res.DaysDiffBestMatch)
	require.Equal(t, 0, res.TemporalMatches)
	require.False(t, res.IsSync(DefaultTemporalWindowDays))
	require.False(t, res.Failed())
	require.Equal(t, []float32{1, 0}, res.Vector)
	require.Len(t, f.batches, 1)
	require.Len(t, f.batches[0], 3)
}

func TestScoreSynchronicity(t *testing.T) {
	f := &fakeEmbedder{vectors: map[string][]float32{
		"new": {1, 0},
		"a":   withCosine(0.999),
		"b":   withCosine(0.99),
		"c":   withCosine(0.1),
	}}
	history := []HistoryEntry{
		{Text: "a", RawDate: "2024-05-19"},
		{Text: "b", RawDate: "2024-01-01"},
		{Text: "c", RawDate: "2024-05-20"},
	}
	res := newTestEngine(f).Score(context.Background(), "new", history, ref)
	require.Equal(t, LabelSynchronicity, res.Label)
	require.GreaterOrEqual(t, res.Percentage, 95)
	require.Equal(t, 2, res.StrictCount)
	require.Equal(t, 2, res.BroadCount)
	require.Equal(t, 1, res.TemporalMatches)
	require.Equal(t, 1, res.DaysDiffBestMatch)
	require.True(t, res.IsSync(DefaultTemporalWindowDays))
}

func TestScoreUniqueVisionHidesEchoes(t *testing.T) {
	f := &fakeEmbedder{vectors: map[string][]float32{
		"new": {1, 0},
		"a":   withCosine(0.55),
		"b":   withCosine(0.5),
	}}
	history := []HistoryEntry{{Text: "a"}, {Text: "b"}}
	res := newTestEngine(f).Score(context.Background(), "new", history, ref)
	require.Equal(t, LabelUniqueVision, res.Label)
	require.Equal(t, 0, res.Percentage)
	require.Equal(t, 0, res.BroadCount)
	require.Equal(t, 0, res.DaysDiffBestMatch, "unparseable dates fall back to now")
}

func TestScoreFailureLabels(t *testing.T) {
	history := []HistoryEntry{{Text: "old", RawDate: "2024-05-01"}}
	tests := []struct {
		name  string
		f     *fakeEmbedder
		label string
	}{
		{
			name:  "new entry embedding fails",
			f:     &fakeEmbedder{embedErr: errors.New("429")},
			label: LabelAPILimit,
		},
		{
			name:  "new entry embedding empty",
			f:     &fakeEmbedder{vectors: map[string][]float32{}},
			label: LabelAPILimit,
		},
		{
			name:  "history batch fails",
			f:     &fakeEmbedder{vectors: map[string][]float32{"new": {1, 0}}, batchErr: errors.New("timeout")},
			label: LabelCalcSkip,
		},
		{
			name:  "history batch short",
			f:     &fakeEmbedder{vectors: map[string][]float32{"new": {1, 0}, "old": {1, 0}}, shortBatch: true},
			label: LabelCalcSkip,
		},
		{
			name:  "dimension mismatch",
			f:     &fakeEmbedder{vectors: map[string][]float32{"new": {1, 0}, "old": {1, 0, 0}}},
			label: LabelDimError,
		},
		{
			name:  "zero vector",
			f:     &fakeEmbedder{vectors: map[string][]float32{"new": {1, 0}, "old": {0, 0}}},
			label: LabelCalcError,
		},
		{
			name:  "panic recovered",
			f:     &fakeEmbedder{panicOn: "new"},
			label: LabelCalcError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newTestEngine(tt.f).Score(context.Background(), "new", history, ref)
			require.Equal(t, tt.label, res.Label)
			require.Equal(t, 0, res.Percentage)
			require.Equal(t, 0, res.BroadCount)
			require.True(t, res.Failed())
			require.False(t, res.IsSync(DefaultTemporalWindowDays))
		})
	}
}

func TestScoreReusesCachedVectors(t *testing.T) {
	f := &fakeEmbedder{vectors: map[string][]float32{
		"new":   {1, 0},
		"fresh": withCosine(0.3),
	}}
	history := []HistoryEntry{
		{Text: "cached", Embedding: withCosine(0.9)},
		{Text: "stale", Embedding: []float32{1, 0, 0}},
		{Text: "fresh"},
	}
	f.vectors["stale"] = withCosine(0.1)
	res := newTestEngine(f).Score(context.Background(), "new", history, ref)
	require.False(t, res.Failed())
	require.Equal(t, [][]string{{"stale", "fresh"}}, f.batches)
	require.Equal(t, 75, res.Percentage)

	f.batches = nil
	newTestEngine(f).Score(context.Background(), "new", history[:1], ref)
	require.Empty(t, f.batches)
}

func TestScoreHistoryWindow(t *testing.T) {
	f := &fakeEmbedder{vectors: map[string][]float32{"new": {1, 0}}}
	history := make([]HistoryEntry, 0, 8)
	for _, text := range []string{"e1", "e2", "e3", "e4", "e5", "e6", "e7", "e8"} {
		f.vectors[text] = withCosine(0.5)
		history = append(history, HistoryEntry{Text: text})
	}
	cfg := DefaultConfig()
	cfg.HistoryWindow = 3
	e := NewEngine(f, cfg)
	e.now = func() time.Time { return ref }
	e.Score(context.Background(), "new", history, ref)
	require.Equal(t, [][]string{{"e6", "e7", "e8"}}, f.batches)
}

func TestEvaluateRejectsBadInput(t *testing.T) {
	e := newTestEngine(&fakeEmbedder{})
	_, err := e.evaluate(nil, nil, ref)
	require.Error(t, err)
	_, err = e.evaluate([]float64{math.NaN()}, []time.Time{ref}, ref)
	require.Error(t, err)
}

func TestStrictNeverExceedsBroad(t *testing.T) {
	e := newTestEngine(&fakeEmbedder{})
	for raw := -1.0; raw <= 1.0; raw += 0.01 {
		scores := []float64{raw, raw / 2, 0.83, 0.46}
		dates := []time.Time{ref, ref, ref, ref}
		res, err := e.evaluate(scores, dates, ref)
		require.NoError(t, err)
		require.LessOrEqual(t, res.StrictCount, res.BroadCount)
	}
}

func TestScoreWithoutEmbedder(t *testing.T) {
	e := NewEngine(nil, Config{})
	res := e.Score(context.Background(), "new", []HistoryEntry{{Text: "old", Date: ref}}, ref)
	require.Equal(t, LabelAPILimit, res.Label)
	require.True(t, res.Failed())
	require.Empty(t, res.Vector)
}

func TestScoreHonorsZeroFloorAndWindow(t *testing.T) {
	f := &fakeEmbedder{vectors: map[string][]float32{"new": {1, 0}, "old": withCosine(0.3)}}
	cfg := DefaultConfig()
	cfg.NoiseFloor = 0
	cfg.TemporalWindowDays = 0
	e := NewEngine(f, cfg)
	e.now = func() time.Time { return ref }
	require.Equal(t, cfg, e.Config())

	res := e.Score(context.Background(), "new", []HistoryEntry{{Text: "old", Date: ref.AddDate(0, 0, -1)}}, ref)
	require.False(t, res.Failed())
	require.Equal(t, 30, res.Percentage)
	require.Equal(t, 1, res.DaysDiffBestMatch)
	require.False(t, res.IsSync(e.Config().TemporalWindowDays))
	require.Equal(t, LabelVagueResonance, res.Label)
}
