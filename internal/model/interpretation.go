package model

import "fmt"

const (
	MaxMotifs   = 10
	MaxEmotions = 6
	MaxThemes   = 6
)

type Interpretation struct {
	Summary        string   `json:"summary"`
	Motifs         []string `json:"motifs"`
	Emotions       []string `json:"emotions"`
	Themes         []string `json:"themes"`
	Interpretation string   `json:"interpretation"`
	Advice         string   `json:"advice"`
}

// Validate checks the structural contract every stored interpretation must
// satisfy, whether it came from the model or from the offline fallback.
func (i *Interpretation) Validate() error {
	if i == nil {
		return fmt.Errorf("interpretation is nil")
	}
	if i.Summary == "" {
		return fmt.Errorf("summary is required")
	}
	if i.Interpretation == "" {
		return fmt.Errorf("interpretation is required")
	}
	if i.Motifs == nil || i.Emotions == nil || i.Themes == nil {
		return fmt.Errorf("motifs, emotions and themes must be lists")
	}
	if len(i.Motifs) > MaxMotifs {
		return fmt.Errorf("too many motifs: %d", len(i.Motifs))
	}
	if len(i.Emotions) > MaxEmotions {
		return fmt.Errorf("too many emotions: %d", len(i.Emotions))
	}
	if len(i.Themes) > MaxThemes {
		return fmt.Errorf("too many themes: %d", len(i.Themes))
	}
	return nil
}
