// Package resonance scores how strongly a new journal entry echoes the
// entries recorded before it.
package resonance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/dreamlog/internal/pkg/dateutil"
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// HistoryEntry is a previously recorded entry. Date wins over RawDate when
// set. A non-empty Embedding is reused instead of embedding Text again.
type HistoryEntry struct {
	Text      string
	Date      time.Time
	RawDate   string
	Embedding []float32
}

func (h HistoryEntry) resolveDate(now time.Time) time.Time {
	if !h.Date.IsZero() {
		return h.Date
	}
	if t, ok := dateutil.Parse(h.RawDate); ok {
		return t
	}
	return now
}

type Result struct {
	Percentage        int     `json:"percentage"`
	Label             string  `json:"label"`
	BroadCount        int     `json:"broad_count"`
	StrictCount       int     `json:"strict_count"`
	DaysDiffBestMatch int     `json:"days_diff_best_match"`
	TemporalMatches   int     `json:"temporal_matches"`
	RawScore          float64 `json:"raw_score"`
	// Vector is the embedding of the scored text when one was computed.
	Vector []float32 `json:"-"`
}

func (r Result) IsSync(temporalWindow int) bool {
	return r.DaysDiffBestMatch <= temporalWindow
}

func (r Result) Failed() bool {
	return IsFailureLabel(r.Label)
}

type Engine struct {
	emb Embedder
	cfg Config
	now func() time.Time
}

func NewEngine(emb Embedder, cfg Config) *Engine {
	return &Engine{emb: emb, cfg: cfg.WithDefaults(), now: time.Now}
}

func (e *Engine) Config() Config {
	return e.cfg
}

// Score never fails: every problem is reported through a failure label with
// a zero percentage.
func (e *Engine) Score(ctx context.Context, text string, history []HistoryEntry, ref time.Time) (res Result) {
	logger := logutil.GetLogger(ctx)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("resonance scoring panicked", zap.Any("panic", r))
			res = e.failure(LabelCalcError, nil)
		}
	}()
	if len(history) == 0 {
		return e.origin()
	}
	now := e.now()
	if ref.IsZero() {
		ref = now
	}
	if e.emb == nil {
		logger.Warn("no embedder configured", zap.String("label", LabelAPILimit))
		return e.failure(LabelAPILimit, nil)
	}
	vec, err := e.emb.Embed(ctx, text)
	if err != nil || len(vec) == 0 {
		logger.Warn("embed new entry failed", zap.String("label", LabelAPILimit), zap.Error(err))
		return e.failure(LabelAPILimit, nil)
	}

	window := history
	if len(window) > e.cfg.HistoryWindow {
		window = window[len(window)-e.cfg.HistoryWindow:]
	}
	vectors, err := e.historyVectors(ctx, window, len(vec))
	if err != nil {
		logger.Warn("embed history failed", zap.String("label", LabelCalcSkip), zap.Int("history", len(window)), zap.Error(err))
		return e.failure(LabelCalcSkip, vec)
	}

	scores := make([]float64, len(window))
	dates := make([]time.Time, len(window))
	for i, entry := range window {
		score, err := CosineSimilarity(vec, vectors[i])
		if errors.Is(err, errDimension) {
			logger.Warn("history vector dimension mismatch", zap.String("label", LabelDimError), zap.Int("index", i), zap.Error(err))
			return e.failure(LabelDimError, vec)
		}
		if err != nil {
			logger.Warn("similarity failed", zap.String("label", LabelCalcError), zap.Int("index", i), zap.Error(err))
			return e.failure(LabelCalcError, vec)
		}
		scores[i] = score
		dates[i] = entry.resolveDate(now)
	}
	res, err = e.evaluate(scores, dates, ref)
	if err != nil {
		logger.Warn("evaluate scores failed", zap.String("label", LabelCalcError), zap.Error(err))
		return e.failure(LabelCalcError, vec)
	}
	res.Vector = vec
	return res
}

// historyVectors reuses cached vectors of the expected dimension and embeds
// the rest in one batch call.
func (e *Engine) historyVectors(ctx context.Context, window []HistoryEntry, dim int) ([][]float32, error) {
	out := make([][]float32, len(window))
	missIdx := make([]int, 0, len(window))
	missTexts := make([]string, 0, len(window))
	for i, entry := range window {
		if len(entry.Embedding) == dim {
			out[i] = entry.Embedding
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, entry.Text)
	}
	if len(missTexts) == 0 {
		return out, nil
	}
	batch, err := e.emb.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(batch) != len(missTexts) {
		return nil, fmt.Errorf("batch returned %d vectors for %d texts", len(batch), len(missTexts))
	}
	for j, idx := range missIdx {
		out[idx] = batch[j]
	}
	return out, nil
}

func (e *Engine) evaluate(scores []float64, dates []time.Time, ref time.Time) (Result, error) {
	if len(scores) == 0 || len(scores) != len(dates) {
		return Result{}, fmt.Errorf("got %d scores for %d dates", len(scores), len(dates))
	}
	best := 0
	for i, s := range scores {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return Result{}, fmt.Errorf("score %d is not a number", i)
		}
		if s > scores[best] {
			best = i
		}
	}
	res := Result{
		RawScore:          scores[best],
		Percentage:        Calibrate(scores[best], e.cfg.NoiseFloor),
		DaysDiffBestMatch: dateutil.DaysBetween(ref, dates[best]),
	}
	for i, s := range scores {
		if s > e.cfg.BroadThreshold {
			res.BroadCount++
		}
		if s > e.cfg.StrictThreshold {
			res.StrictCount++
			if dateutil.DaysBetween(ref, dates[i]) <= e.cfg.TemporalWindowDays {
				res.TemporalMatches++
			}
		}
	}
	res.Label = SelectLabel(res.Percentage, res.StrictCount, res.DaysDiffBestMatch, e.cfg.TemporalWindowDays)
	if res.Label == LabelUniqueVision {
		res.BroadCount = 0
	}
	if res.StrictCount > res.BroadCount {
		res.StrictCount = res.BroadCount
		res.TemporalMatches = 0
	}
	return res, nil
}

func (e *Engine) origin() Result {
	return Result{Label: LabelOrigin, DaysDiffBestMatch: e.cfg.NoMatchDays}
}

func (e *Engine) failure(label string, vec []float32) Result {
	return Result{Label: label, DaysDiffBestMatch: e.cfg.NoMatchDays, Vector: vec}
}
