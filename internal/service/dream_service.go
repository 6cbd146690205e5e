package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xxxsen/dreamlog/internal/ai"
	"github.com/xxxsen/dreamlog/internal/model"
	"github.com/xxxsen/dreamlog/internal/pkg/dateutil"
	appErr "github.com/xxxsen/dreamlog/internal/pkg/errors"
	"github.com/xxxsen/dreamlog/internal/resonance"
	"github.com/xxxsen/dreamlog/internal/sanitize"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxKeywords      = 8
	unknownTopic     = "UNKNOWN"
)

type DreamStore interface {
	Create(ctx context.Context, dream *model.Dream) error
	GetByID(ctx context.Context, id int64) (*model.Dream, error)
	List(ctx context.Context, limit, offset uint) ([]*model.Dream, error)
	ListRecent(ctx context.Context, limit uint) ([]*model.Dream, error)
	ListByDate(ctx context.Context, day time.Time) ([]*model.Dream, error)
	ListMissingEmbedding(ctx context.Context, modelName string, limit uint) ([]*model.Dream, error)
	UpdateEmbedding(ctx context.Context, id int64, embedding []float32, modelName string) error
}

type Interpreter interface {
	Interpret(ctx context.Context, text string) (*model.Interpretation, error)
}

type Scorer interface {
	Score(ctx context.Context, text string, history []resonance.HistoryEntry, ref time.Time) resonance.Result
	Config() resonance.Config
}

type DreamServiceConfig struct {
	MinChars int
	MaxChars int
}

type DreamService struct {
	dreams      DreamStore
	interpreter Interpreter
	scorer      Scorer
	embedder    ai.IEmbedder
	cfg         DreamServiceConfig
	now         func() time.Time
}

func NewDreamService(dreams DreamStore, interpreter Interpreter, scorer Scorer, embedder ai.IEmbedder, cfg DreamServiceConfig) *DreamService {
	return &DreamService{
		dreams:      dreams,
		interpreter: interpreter,
		scorer:      scorer,
		embedder:    embedder,
		cfg:         cfg,
		now:         time.Now,
	}
}

type DreamCreateInput struct {
	Content      string `json:"content"`
	DateOccurred string `json:"date_occurred"`
}

func (s *DreamService) Create(ctx context.Context, in DreamCreateInput) (*model.DreamView, error) {
	clean := sanitize.Text(in.Content)
	length := sanitize.Length(clean)
	if length < s.cfg.MinChars {
		return nil, fmt.Errorf("%w: minimum is %d characters", appErr.ErrContentTooShort, s.cfg.MinChars)
	}
	if length > s.cfg.MaxChars {
		return nil, fmt.Errorf("%w: maximum is %d characters", appErr.ErrContentTooLong, s.cfg.MaxChars)
	}
	occurred, err := s.parseOccurred(in.DateOccurred)
	if err != nil {
		return nil, err
	}
	modelName := s.embedModelName()
	recent, err := s.dreams.ListRecent(ctx, uint(s.scorer.Config().HistoryWindow))
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	history := make([]resonance.HistoryEntry, 0, len(recent))
	for _, d := range recent {
		entry := resonance.HistoryEntry{Text: d.Content, Date: d.DateOccurred}
		if modelName != "" && d.EmbeddingModel == modelName {
			entry.Embedding = d.Embedding
		}
		history = append(history, entry)
	}

	var (
		interp *model.Interpretation
		score  resonance.Result
	)
	var g errgroup.Group
	g.Go(func() error {
		interp = s.interpret(ctx, clean)
		return nil
	})
	g.Go(func() error {
		score = s.scorer.Score(ctx, clean, history, occurred)
		return nil
	})
	_ = g.Wait()

	analysis := model.Analysis{
		Interpretation: interp,
		Resonance: model.ResonanceInfo{
			Label:      score.Label,
			Percentage: score.Percentage,
			IsSync:     score.IsSync(s.scorer.Config().TemporalWindowDays),
		},
		Similarity: model.SimilarityInfo{
			SimilarCount:    score.BroadCount,
			TemporalMatches: score.TemporalMatches,
		},
	}
	blob, err := json.Marshal(interp)
	if err != nil {
		return nil, fmt.Errorf("encode interpretation: %w", err)
	}
	dream := &model.Dream{
		Content:              clean,
		DateOccurred:         occurred,
		ClusterLabel:         analysis.Resonance.Label,
		SimilarityPercentage: analysis.Resonance.Percentage,
		SimilarCount:         analysis.Similarity.SimilarCount,
		TemporalMatches:      analysis.Similarity.TemporalMatches,
		IsSync:               analysis.Resonance.IsSync,
		Interpretation:       interp.Interpretation,
		AnalysisJSON:         string(blob),
		Ctime:                s.now().Unix(),
	}
	if len(score.Vector) > 0 && modelName != "" {
		dream.Embedding = score.Vector
		dream.EmbeddingModel = modelName
	}
	if err := s.dreams.Create(ctx, dream); err != nil {
		return nil, fmt.Errorf("save dream: %w", err)
	}
	logutil.GetLogger(ctx).Info("dream recorded",
		zap.Int64("id", dream.ID),
		zap.String("label", score.Label),
		zap.Int("percentage", score.Percentage),
		zap.Int("similar_count", score.BroadCount),
		zap.Int("history", len(history)),
	)
	view := buildView(ctx, dream)
	view.Analysis = analysis
	return view, nil
}

func (s *DreamService) interpret(ctx context.Context, text string) *model.Interpretation {
	if s.interpreter == nil {
		return ai.FallbackInterpretation()
	}
	res, err := s.interpreter.Interpret(ctx, text)
	if err != nil {
		logutil.GetLogger(ctx).Warn("interpretation failed, using fallback",
			zap.String("kind", string(ai.KindOf(err))), zap.Error(err))
		return ai.FallbackInterpretation()
	}
	if err := res.Validate(); err != nil {
		logutil.GetLogger(ctx).Warn("interpretation invalid, using fallback", zap.Error(err))
		return ai.FallbackInterpretation()
	}
	return res
}

func (s *DreamService) parseOccurred(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return dateutil.Day(s.now()), nil
	}
	t, ok := dateutil.Parse(raw)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %q is not a date", appErr.ErrInvalidDate, raw)
	}
	return dateutil.Day(t), nil
}

func (s *DreamService) embedModelName() string {
	if s.embedder == nil {
		return ""
	}
	return s.embedder.ModelName()
}

func (s *DreamService) Get(ctx context.Context, id int64) (*model.DreamView, error) {
	dream, err := s.dreams.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return buildView(ctx, dream), nil
}

func (s *DreamService) List(ctx context.Context, limit, offset int) ([]*model.DreamView, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	dreams, err := s.dreams.List(ctx, uint(limit), uint(offset))
	if err != nil {
		return nil, err
	}
	views := make([]*model.DreamView, 0, len(dreams))
	for _, d := range dreams {
		views = append(views, buildView(ctx, d))
	}
	return views, nil
}

// DailyStats summarizes the entries recorded for one calendar day.
func (s *DreamService) DailyStats(ctx context.Context, day string) (*model.DailyStats, error) {
	t, err := time.Parse(dateutil.DayLayout, strings.TrimSpace(day))
	if err != nil {
		return nil, fmt.Errorf("%w: %q must be YYYY-MM-DD", appErr.ErrInvalidDate, day)
	}
	dreams, err := s.dreams.ListByDate(ctx, t)
	if err != nil {
		return nil, err
	}
	if len(dreams) == 0 {
		return nil, appErr.ErrNotFound
	}
	themes := newCounter()
	motifs := newCounter()
	labels := make(map[string]int)
	for _, d := range dreams {
		labels[d.ClusterLabel]++
		interp := decodeInterpretation(ctx, d)
		if interp == nil || ai.IsFallbackInterpretation(interp) {
			continue
		}
		for _, theme := range interp.Themes {
			themes.add(theme)
		}
		for _, motif := range interp.Motifs {
			motifs.add(motif)
		}
	}
	topic := unknownTopic
	if top := themes.top(1); len(top) > 0 {
		topic = top[0]
	} else if top := motifs.top(1); len(top) > 0 {
		topic = top[0]
	}
	return &model.DailyStats{
		Date:          dateutil.FormatDay(t),
		Count:         len(dreams),
		DominantTopic: topic,
		Keywords:      motifs.top(maxKeywords),
		Labels:        labels,
	}, nil
}

// BackfillEmbeddings stores vectors for up to batch entries that have none
// for the current embedding model, and reports how many were updated.
func (s *DreamService) BackfillEmbeddings(ctx context.Context, batch int) (int, error) {
	if s.embedder == nil {
		return 0, fmt.Errorf("embedder not configured")
	}
	if batch <= 0 {
		batch = 32
	}
	modelName := s.embedder.ModelName()
	dreams, err := s.dreams.ListMissingEmbedding(ctx, modelName, uint(batch))
	if err != nil {
		return 0, err
	}
	if len(dreams) == 0 {
		return 0, nil
	}
	texts := make([]string, 0, len(dreams))
	for _, d := range dreams {
		texts = append(texts, d.Content)
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed batch: %w", err)
	}
	if len(vectors) != len(dreams) {
		return 0, fmt.Errorf("embed batch returned %d vectors for %d dreams", len(vectors), len(dreams))
	}
	updated := 0
	for i, d := range dreams {
		if err := s.dreams.UpdateEmbedding(ctx, d.ID, vectors[i], modelName); err != nil {
			return updated, fmt.Errorf("update embedding of dream %d: %w", d.ID, err)
		}
		updated++
	}
	return updated, nil
}

func buildView(ctx context.Context, d *model.Dream) *model.DreamView {
	return &model.DreamView{
		ID:           d.ID,
		Content:      d.Content,
		DateOccurred: dateutil.FormatDay(d.DateOccurred),
		Ctime:        d.Ctime,
		Analysis: model.Analysis{
			Interpretation: decodeInterpretation(ctx, d),
			Resonance: model.ResonanceInfo{
				Label:      d.ClusterLabel,
				Percentage: d.SimilarityPercentage,
				IsSync:     d.IsSync,
			},
			Similarity: model.SimilarityInfo{
				SimilarCount:    d.SimilarCount,
				TemporalMatches: d.TemporalMatches,
			},
		},
	}
}

func decodeInterpretation(ctx context.Context, d *model.Dream) *model.Interpretation {
	if strings.TrimSpace(d.AnalysisJSON) == "" {
		return nil
	}
	var res model.Interpretation
	if err := json.Unmarshal([]byte(d.AnalysisJSON), &res); err != nil {
		logutil.GetLogger(ctx).Warn("decode stored analysis failed", zap.Int64("id", d.ID), zap.Error(err))
		return nil
	}
	return &res
}

// counter tallies case-insensitively and keeps the first spelling seen.
type counter struct {
	display map[string]string
	counts  map[string]int
	order   []string
}

func newCounter() *counter {
	return &counter{display: map[string]string{}, counts: map[string]int{}}
}

func (c *counter) add(item string) {
	item = strings.TrimSpace(item)
	if item == "" {
		return
	}
	key := strings.ToLower(item)
	if _, ok := c.counts[key]; !ok {
		c.display[key] = item
		c.order = append(c.order, key)
	}
	c.counts[key]++
}

// top returns up to n items by descending count; ties keep first-seen order.
func (c *counter) top(n int) []string {
	keys := append([]string(nil), c.order...)
	sort.SliceStable(keys, func(i, j int) bool {
		return c.counts[keys[i]] > c.counts[keys[j]]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, c.display[k])
	}
	return out
}
