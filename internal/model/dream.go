package model

import "time"

type Dream struct {
	ID                   int64     `json:"id"`
	Content              string    `json:"content"`
	DateOccurred         time.Time `json:"date_occurred"`
	ClusterLabel         string    `json:"cluster_label"`
	SimilarityPercentage int       `json:"similarity_percentage"`
	SimilarCount         int       `json:"similar_count"`
	TemporalMatches      int       `json:"temporal_matches"`
	IsSync               bool      `json:"is_sync"`
	Interpretation       string    `json:"interpretation"`
	AnalysisJSON         string    `json:"-"`
	Embedding            []float32 `json:"-"`
	EmbeddingModel       string    `json:"-"`
	Ctime                int64     `json:"ctime"`
}

type ResonanceInfo struct {
	Label      string `json:"label"`
	Percentage int    `json:"percentage"`
	IsSync     bool   `json:"is_sync"`
}

type SimilarityInfo struct {
	SimilarCount    int `json:"similar_count"`
	TemporalMatches int `json:"temporal_matches"`
}

// Analysis is the merged result of interpretation and resonance scoring for
// one entry. It is the only shape handed to storage and to API clients.
type Analysis struct {
	Interpretation *Interpretation `json:"interpretation"`
	Resonance      ResonanceInfo   `json:"resonance"`
	Similarity     SimilarityInfo  `json:"similarity"`
}

type DreamView struct {
	ID           int64  `json:"id"`
	Content      string `json:"content"`
	DateOccurred string `json:"date_occurred"`
	Ctime        int64  `json:"ctime"`
	Analysis
}

type DailyStats struct {
	Date          string         `json:"date"`
	Count         int            `json:"count"`
	DominantTopic string         `json:"dominant_topic"`
	Keywords      []string       `json:"keywords"`
	Labels        map[string]int `json:"labels"`
}
