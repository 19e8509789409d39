package docparse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	_ "embed"
)

//go:embed scoring.yaml
var defaultScoringYAML []byte

//go:embed scoring_schema.json
var scoringSchemaJSON string

// CDLScoring weights commercial driver's license fields.
type CDLScoring struct {
	Weights           map[string]float32 `yaml:"weights"`
	Overrides         map[string]float32 `yaml:"overrides"`
	MinExpirationDays int                `yaml:"min_expiration_days"`
}

// COIScoring weights certificate-of-insurance fields.
type COIScoring struct {
	Weights         map[string]float32 `yaml:"weights"`
	Overrides       map[string]float32 `yaml:"overrides"`
	MinCoverageDays int                `yaml:"min_coverage_days"`
}

// PODScoring weights proof-of-delivery fields plus quality bonuses.
type PODScoring struct {
	Weights            map[string]float32 `yaml:"weights"`
	Bonuses            map[string]float32 `yaml:"bonuses"`
	CompletedThreshold float32            `yaml:"completed_threshold"`
}

// RateConScoring weights rate confirmation fields.
type RateConScoring struct {
	Weights           map[string]float32 `yaml:"weights"`
	Overrides         map[string]float32 `yaml:"overrides"`
	VerifiedThreshold float32            `yaml:"verified_threshold"`
}

// SignalBoost adds to agreement confidence once enough independent signature
// indicators are found. Boosts are exclusive: only the highest matching tier
// applies.
type SignalBoost struct {
	MinSignals int     `yaml:"min_signals"`
	Boost      float32 `yaml:"boost"`
}

// AgreementScoring holds the agreement confidence ladder and boosts.
type AgreementScoring struct {
	Ladder          map[string]float32 `yaml:"ladder"`
	SignalBoosts    []SignalBoost      `yaml:"signal_boosts"`
	SignedThreshold float32            `yaml:"signed_threshold"`
}

// InvoiceScoring weights freight invoice fields plus line-item bonuses.
type InvoiceScoring struct {
	Weights           map[string]float32 `yaml:"weights"`
	Bonuses           map[string]float32 `yaml:"bonuses"`
	VerifiedThreshold float32            `yaml:"verified_threshold"`
}

// ScoringConfig is the full per-document-type scoring table set. Loaded once,
// treated as immutable afterwards.
type ScoringConfig struct {
	CDL       CDLScoring       `yaml:"cdl"`
	COI       COIScoring       `yaml:"coi"`
	POD       PODScoring       `yaml:"pod"`
	RateCon   RateConScoring   `yaml:"rate_confirmation"`
	Agreement AgreementScoring `yaml:"agreement"`
	Invoice   InvoiceScoring   `yaml:"invoice"`
}

var scoringSchema = sync.OnceValue(func() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("scoring_schema.json", bytes.NewReader([]byte(scoringSchemaJSON))); err != nil {
		panic(fmt.Sprintf("docparse: add scoring schema: %v", err))
	}
	return c.MustCompile("scoring_schema.json")
})

// LoadScoring decodes and schema-validates a YAML scoring table set.
func LoadScoring(data []byte) (*ScoringConfig, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode scoring config: %w", err)
	}

	// round-trip through JSON so the validator sees canonical types
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode scoring config for validation: %w", err)
	}
	var jsonDoc any
	if err := json.Unmarshal(raw, &jsonDoc); err != nil {
		return nil, fmt.Errorf("encode scoring config for validation: %w", err)
	}
	if err := scoringSchema().Validate(jsonDoc); err != nil {
		return nil, fmt.Errorf("invalid scoring config: %w", err)
	}

	var cfg ScoringConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode scoring config: %w", err)
	}
	return &cfg, nil
}

var defaultScoring = sync.OnceValue(func() *ScoringConfig {
	cfg, err := LoadScoring(defaultScoringYAML)
	if err != nil {
		// embedded table is part of the build; failing to load it is a bug
		panic(fmt.Sprintf("docparse: embedded scoring config: %v", err))
	}
	return cfg
})

// DefaultScoring returns the embedded scoring table set.
func DefaultScoring() *ScoringConfig {
	return defaultScoring()
}
