package forecast

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"pfolio-api/pkg/fault"
)

// LinearModel is a trained per-ticker regression artifact. It maps the
// FeatureColumns vector to an expected log return over the model horizon.
type LinearModel struct {
	Ticker       string    `json:"ticker"`
	HorizonDays  int       `json:"horizon_days"`
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
	Features     []string  `json:"features"`
}

// Validate checks the artifact against the canonical feature order.
func (m *LinearModel) Validate() error {
	if len(m.Coefficients) != len(FeatureColumns) {
		return fmt.Errorf("forecast: model %s has %d coefficients, want %d", m.Ticker, len(m.Coefficients), len(FeatureColumns))
	}
	if len(m.Features) != 0 {
		for i, name := range m.Features {
			if name != FeatureColumns[i] {
				return fmt.Errorf("forecast: model %s feature %d is %q, want %q", m.Ticker, i, name, FeatureColumns[i])
			}
		}
	}
	return nil
}

// Predict evaluates the model on a feature vector.
func (m *LinearModel) Predict(features []float64) float64 {
	out := m.Intercept
	for i, c := range m.Coefficients {
		out += c * features[i]
	}
	return out
}

// ModelSource loads trained model artifacts.
type ModelSource interface {
	Load(ticker string) (*LinearModel, error)
}

// DirModelSource reads linear_<TICKER>.json artifacts from a directory, the
// same layout the availability gate scans.
type DirModelSource struct {
	Dir string
}

func (s *DirModelSource) Load(ticker string) (*LinearModel, error) {
	path := filepath.Join(s.Dir, fmt.Sprintf("linear_%s.json", ticker))
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &fault.NotFoundError{Kind: "model", ID: ticker}
		}
		return nil, fmt.Errorf("forecast: read model %s: %w", path, err)
	}
	var model LinearModel
	if err := json.Unmarshal(raw, &model); err != nil {
		return nil, fmt.Errorf("forecast: parse model %s: %w", path, err)
	}
	if model.Ticker == "" {
		model.Ticker = ticker
	}
	if err := model.Validate(); err != nil {
		return nil, err
	}
	return &model, nil
}

// StaticModelSource serves fixed models; used by tests and the synthetic
// environment.
type StaticModelSource struct {
	Models map[string]*LinearModel
}

func (s *StaticModelSource) Load(ticker string) (*LinearModel, error) {
	m, ok := s.Models[ticker]
	if !ok {
		return nil, &fault.NotFoundError{Kind: "model", ID: ticker}
	}
	return m, nil
}
