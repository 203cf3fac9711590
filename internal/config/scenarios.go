package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/aristath/foresight/internal/modules/backtesting"
	"gopkg.in/yaml.v3"
)

// ScenarioFile is the YAML layout of a backtest definition
type ScenarioFile struct {
	Start     string      `yaml:"start"`
	End       string      `yaml:"end"`
	Scenarios []yaml.Node `yaml:"scenarios"`
}

// BacktestPlan is a decoded scenario file
type BacktestPlan struct {
	Start     string
	End       string
	Scenarios []backtesting.Scenario
}

// LoadScenarios reads a scenario file from disk
func LoadScenarios(path string) (*BacktestPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}
	plan, err := ParseScenarios(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return plan, nil
}

// ParseScenarios decodes every scenario on top of backtesting.DefaultScenario
// so a file only lists what it changes. Unknown keys are rejected.
func ParseScenarios(data []byte) (*BacktestPlan, error) {
	var file ScenarioFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode scenario file: %w", err)
	}
	if len(file.Scenarios) == 0 {
		return nil, fmt.Errorf("no scenarios defined")
	}

	plan := &BacktestPlan{Start: file.Start, End: file.End}
	names := make(map[string]bool, len(file.Scenarios))
	for i := range file.Scenarios {
		sc := backtesting.DefaultScenario()
		if err := decodeStrict(&file.Scenarios[i], &sc); err != nil {
			return nil, fmt.Errorf("scenario %d: %w", i+1, err)
		}
		if err := sc.Validate(); err != nil {
			return nil, fmt.Errorf("scenario %d: %w", i+1, err)
		}
		if names[sc.Name] {
			return nil, fmt.Errorf("duplicate scenario name %q", sc.Name)
		}
		names[sc.Name] = true
		plan.Scenarios = append(plan.Scenarios, sc)
	}
	return plan, nil
}

// decodeStrict re-encodes node so KnownFields applies to nested scenarios
func decodeStrict(node *yaml.Node, dst *backtesting.Scenario) error {
	raw, err := yaml.Marshal(node)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	return dec.Decode(dst)
}
