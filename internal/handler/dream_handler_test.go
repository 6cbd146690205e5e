package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/xxxsen/dreamlog/internal/handler"
	"github.com/xxxsen/dreamlog/internal/middleware"
	"github.com/xxxsen/dreamlog/internal/model"
	"github.com/xxxsen/dreamlog/internal/pkg/dateutil"
	"github.com/xxxsen/dreamlog/internal/pkg/errcode"
	appErr "github.com/xxxsen/dreamlog/internal/pkg/errors"
	"github.com/xxxsen/dreamlog/internal/resonance"
	"github.com/xxxsen/dreamlog/internal/service"
)

type memStore struct {
	mu    sync.Mutex
	items []*model.Dream
}

func (m *memStore) Create(ctx context.Context, dream *model.Dream) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	dream.ID = int64(len(m.items) + 1)
	cp := *dream
	m.items = append(m.items, &cp)
	return nil
}

func (m *memStore) GetByID(ctx context.Context, id int64) (*model.Dream, error) {
	for _, d := range m.items {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, appErr.ErrNotFound
}

func (m *memStore) List(ctx context.Context, limit, offset uint) ([]*model.Dream, error) {
	out := make([]*model.Dream, 0)
	for i := len(m.items) - 1 - int(offset); i >= 0 && uint(len(out)) < limit; i-- {
		out = append(out, m.items[i])
	}
	return out, nil
}

func (m *memStore) ListRecent(ctx context.Context, limit uint) ([]*model.Dream, error) {
	start := len(m.items) - int(limit)
	if start < 0 {
		start = 0
	}
	return append([]*model.Dream(nil), m.items[start:]...), nil
}

func (m *memStore) ListByDate(ctx context.Context, day time.Time) ([]*model.Dream, error) {
	out := make([]*model.Dream, 0)
	for _, d := range m.items {
		if dateutil.FormatDay(d.DateOccurred) == dateutil.FormatDay(day) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memStore) ListMissingEmbedding(ctx context.Context, modelName string, limit uint) ([]*model.Dream, error) {
	return nil, nil
}

func (m *memStore) UpdateEmbedding(ctx context.Context, id int64, embedding []float32, modelName string) error {
	return nil
}

type axisEmbedder struct{}

func (axisEmbedder) vector(text string) []float32 {
	if strings.Contains(strings.ToLower(text), "ocean") {
		return []float32{0.1, 1}
	}
	return []float32{1, 0.1}
}

func (a axisEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return a.vector(text), nil
}

func (a axisEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		out = append(out, a.vector(text))
	}
	return out, nil
}

func (axisEmbedder) ModelName() string { return "axis" }

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func setupRouter(t *testing.T, rateLimit time.Duration) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	emb := axisEmbedder{}
	svc := service.NewDreamService(&memStore{}, nil, resonance.NewEngine(emb, resonance.DefaultConfig()), emb,
		service.DreamServiceConfig{MinChars: 10, MaxChars: 200})
	deps := handler.RouterDeps{
		Dreams:          handler.NewDreamHandler(svc),
		CreateRateLimit: rateLimit,
	}
	engine, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
		),
	)
	require.NoError(t, err)
	return engine
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) envelope {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	var out envelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	return out
}

func TestDreamHandlersFlow(t *testing.T) {
	router := setupRouter(t, 0)

	res := doJSON(t, router, http.MethodPost, "/api/v1/dreams", `{"content":"I was walking through a forest","date_occurred":"2024-05-19"}`)
	require.Equal(t, 0, res.Code)
	var first model.DreamView
	require.NoError(t, json.Unmarshal(res.Data, &first))
	require.Equal(t, int64(1), first.ID)
	require.Equal(t, "2024-05-19", first.DateOccurred)
	require.Equal(t, resonance.LabelOrigin, first.Resonance.Label)
	require.Equal(t, "Analysis unavailable.", first.Interpretation.Summary)

	res = doJSON(t, router, http.MethodPost, "/api/v1/dreams", `{"content":"Another walk through the forest","date_occurred":"2024-05-20"}`)
	require.Equal(t, 0, res.Code)
	var second model.DreamView
	require.NoError(t, json.Unmarshal(res.Data, &second))
	require.Equal(t, 100, second.Resonance.Percentage)
	require.True(t, second.Resonance.IsSync)
	require.Equal(t, 1, second.Similarity.SimilarCount)

	res = doJSON(t, router, http.MethodGet, "/api/v1/dreams?limit=1", "")
	require.Equal(t, 0, res.Code)
	var listed []model.DreamView
	require.NoError(t, json.Unmarshal(res.Data, &listed))
	require.Len(t, listed, 1)
	require.Equal(t, int64(2), listed[0].ID)

	res = doJSON(t, router, http.MethodGet, "/api/v1/dreams/1", "")
	require.Equal(t, 0, res.Code)
	var got model.DreamView
	require.NoError(t, json.Unmarshal(res.Data, &got))
	require.Equal(t, "I was walking through a forest", got.Content)

	res = doJSON(t, router, http.MethodGet, "/api/v1/dreams/stats/2024-05-20", "")
	require.Equal(t, 0, res.Code)
	var stats model.DailyStats
	require.NoError(t, json.Unmarshal(res.Data, &stats))
	require.Equal(t, 1, stats.Count)
}

func TestDreamHandlersErrors(t *testing.T) {
	router := setupRouter(t, 0)

	res := doJSON(t, router, http.MethodPost, "/api/v1/dreams", `{"content":"short"}`)
	require.Equal(t, errcode.ErrContentTooShort, res.Code)

	res = doJSON(t, router, http.MethodPost, "/api/v1/dreams", `{"content":"`+strings.Repeat("a", 201)+`"}`)
	require.Equal(t, errcode.ErrContentTooLong, res.Code)

	res = doJSON(t, router, http.MethodPost, "/api/v1/dreams", `{"content":"a long enough dream","date_occurred":"yesterday"}`)
	require.Equal(t, errcode.ErrInvalidDate, res.Code)

	res = doJSON(t, router, http.MethodPost, "/api/v1/dreams", `{"content":`)
	require.Equal(t, errcode.ErrInvalid, res.Code)

	res = doJSON(t, router, http.MethodGet, "/api/v1/dreams/abc", "")
	require.Equal(t, errcode.ErrInvalid, res.Code)

	res = doJSON(t, router, http.MethodGet, "/api/v1/dreams/42", "")
	require.Equal(t, errcode.ErrNotFound, res.Code)

	res = doJSON(t, router, http.MethodGet, "/api/v1/dreams/stats/2024-01-01", "")
	require.Equal(t, errcode.ErrNotFound, res.Code)

	res = doJSON(t, router, http.MethodGet, "/api/v1/healthz", "")
	require.Equal(t, 0, res.Code)
}

func TestCreateDreamRateLimited(t *testing.T) {
	router := setupRouter(t, time.Minute)

	res := doJSON(t, router, http.MethodPost, "/api/v1/dreams", `{"content":"I was swimming in the ocean"}`)
	require.Equal(t, 0, res.Code)

	res = doJSON(t, router, http.MethodPost, "/api/v1/dreams", `{"content":"I was swimming in the ocean again"}`)
	require.Equal(t, errcode.ErrTooMany, res.Code)
}
