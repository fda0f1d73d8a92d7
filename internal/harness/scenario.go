package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tanudai/Nuclear-SCADA/internal/config"
	"github.com/tanudai/Nuclear-SCADA/internal/engine"
	"github.com/tanudai/Nuclear-SCADA/internal/plant"
)

// Scenario is a scripted run of the simulator.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Ticks is the number of ticks to run. Steps may use at: 0..Ticks.
	Ticks int64 `yaml:"ticks"`

	// Simulation overrides the default simulator configuration.
	Simulation config.Simulation `yaml:"simulation,omitempty"`

	// Noise is the constant value returned by the random source. Default 0.5,
	// which cancels every random term.
	Noise *float64 `yaml:"noise,omitempty"`

	// Steps are the operator commands, applied in tick order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the finished run.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one operator command applied after tick At.
type Step struct {
	At             int64 `yaml:"at"`
	engine.Command `yaml:",inline"`

	// Expect is the required outcome; empty accepts any.
	Expect string `yaml:"expect,omitempty"`
}

// Assertion validates a finished run.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Message is the alert text (alert_emitted, alert_count).
	Message string `yaml:"message,omitempty"`

	// Messages is the expected first-occurrence order (alert_order).
	Messages []string `yaml:"messages,omitempty"`

	// Tick pins alert_emitted to a tick, and status_reached to the first
	// tick with the status.
	Tick *int64 `yaml:"tick,omitempty"`

	// Count is the expected number of alerts (alert_count).
	Count int `yaml:"count,omitempty"`

	// Status is the overall status (status_reached, status_never).
	Status string `yaml:"status,omitempty"`

	// Expect is a subset of the final state (final_state). Keys are the JSON
	// field names of plant.State plus control_mode and tick.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertAlertEmitted  = "alert_emitted"
	AssertAlertCount    = "alert_count"
	AssertAlertOrder    = "alert_order"
	AssertStatusReached = "status_reached"
	AssertStatusNever   = "status_never"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML on top of the default simulation
// configuration.
func ParseScenario(data []byte) (*Scenario, error) {
	scenario := Scenario{Simulation: config.Default().Simulation}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	// Stable sort keeps file order within a tick.
	sort.SliceStable(scenario.Steps, func(i, j int) bool {
		return scenario.Steps[i].At < scenario.Steps[j].At
	})
	return &scenario, nil
}

// FindScenarios lists the .yaml/.yml files under dir whose base name
// (without extension) matches filter. An empty filter matches all.
func FindScenarios(dir, filter string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && d.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			matched, err := filepath.Match(filter, strings.TrimSuffix(d.Name(), ext))
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Ticks < 0 {
		return fmt.Errorf("ticks must be non-negative")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if s.Noise != nil && (*s.Noise < 0 || *s.Noise >= 1) {
		return fmt.Errorf("noise must be in [0, 1)")
	}

	cfg := config.Default()
	cfg.Simulation = s.Simulation
	if err := cfg.Validate(); err != nil {
		return err
	}

	for i, step := range s.Steps {
		if step.At < 0 || step.At > s.Ticks {
			return fmt.Errorf("steps[%d]: at must be in [0, %d]", i, s.Ticks)
		}
		if step.Kind == 0 {
			return fmt.Errorf("steps[%d]: kind is required", i)
		}
		if step.Kind == engine.CommandTogglePump && step.Pump == 0 {
			return fmt.Errorf("steps[%d]: pump is required for toggle_pump", i)
		}
		if step.Expect != "" {
			var out engine.Outcome
			if err := out.UnmarshalText([]byte(step.Expect)); err != nil {
				return fmt.Errorf("steps[%d].expect: %w", i, err)
			}
		}
	}

	var errs []error
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertAlertEmitted:
		if a.Message == "" {
			return fmt.Errorf("assertions[%d]: message is required for alert_emitted", index)
		}
	case AssertAlertCount:
		if a.Message == "" {
			return fmt.Errorf("assertions[%d]: message is required for alert_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for alert_count", index)
		}
	case AssertAlertOrder:
		if len(a.Messages) == 0 {
			return fmt.Errorf("assertions[%d]: messages list is required for alert_order", index)
		}
	case AssertStatusReached, AssertStatusNever:
		var st plant.Status
		if err := st.UnmarshalText([]byte(a.Status)); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
