package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Experiment kinds understood by a plan.
const (
	KindParallel = "parallel"
	KindConflict = "conflict"
)

// Plan is a list of experiments run one after another by `txlab plan`.
type Plan struct {
	Experiments []Experiment `yaml:"experiments"`
}

// Experiment describes a single harness run. Omitted fields fall back to
// the HarnessConfig defaults; an explicit zero such as `delay: 0s` is kept.
type Experiment struct {
	Name             string         `yaml:"name"`
	Kind             string         `yaml:"kind"`
	Isolation        string         `yaml:"isolation,omitempty"`
	Workers          *int           `yaml:"workers,omitempty"`
	RecordsPerWorker *int           `yaml:"records_per_worker,omitempty"`
	Delay            *time.Duration `yaml:"delay,omitempty"`
	HashIndex        *bool          `yaml:"hash_index,omitempty"`
}

// ExperimentSettings is an Experiment with every field resolved.
type ExperimentSettings struct {
	Name             string
	Kind             string
	Isolation        string
	Workers          int
	RecordsPerWorker int
	Delay            time.Duration
	HashIndex        bool
}

// LoadPlan reads and validates a YAML experiment plan.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}
	return ParsePlan(data)
}

func ParsePlan(data []byte) (*Plan, error) {
	var plan Plan
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&plan); err != nil {
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}

	if len(plan.Experiments) == 0 {
		return nil, fmt.Errorf("plan has no experiments")
	}
	for i, exp := range plan.Experiments {
		if exp.Kind != KindParallel && exp.Kind != KindConflict {
			return nil, fmt.Errorf("experiment %d (%q): unknown kind %q", i, exp.Name, exp.Kind)
		}
		if exp.Name == "" {
			plan.Experiments[i].Name = fmt.Sprintf("%s-%d", exp.Kind, i+1)
		}
	}

	return &plan, nil
}

// WithDefaults fills the fields that were not set from the harness defaults.
func (e Experiment) WithDefaults(defaults HarnessConfig) ExperimentSettings {
	settings := ExperimentSettings{
		Name:             e.Name,
		Kind:             e.Kind,
		Isolation:        e.Isolation,
		Workers:          defaults.Workers,
		RecordsPerWorker: defaults.RecordsPerWorker,
		Delay:            defaults.RecordDelay,
		HashIndex:        defaults.HashIndex,
	}
	if settings.Isolation == "" {
		settings.Isolation = defaults.Isolation
	}
	if e.Workers != nil {
		settings.Workers = *e.Workers
	}
	if e.RecordsPerWorker != nil {
		settings.RecordsPerWorker = *e.RecordsPerWorker
	}
	if e.Delay != nil {
		settings.Delay = *e.Delay
	}
	if e.HashIndex != nil {
		settings.HashIndex = *e.HashIndex
	}
	return settings
}
