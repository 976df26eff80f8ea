package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted sequence of edits, seals, undos and redos run
// against a fresh database, followed by assertions on the final state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Setup is SQL run before any table is tracked. It is not recorded.
	Setup []string `yaml:"setup,omitempty"`

	// Track lists the tables that get history triggers after setup.
	Track []string `yaml:"track"`

	// GroupLimit overrides the default group limit when set.
	GroupLimit *int64 `yaml:"group_limit,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one scenario action. Exactly one action field must be set.
type Step struct {
	// Exec runs one SQL statement through the database handle. Its row
	// changes land in the current undo group.
	Exec string `yaml:"exec,omitempty"`

	// Edit runs the statements in one transaction and seals the group.
	Edit []string `yaml:"edit,omitempty"`

	// Seal closes the current undo group.
	Seal bool `yaml:"seal,omitempty"`

	// Undo and Redo replay that many groups.
	Undo int `yaml:"undo,omitempty"`
	Redo int `yaml:"redo,omitempty"`

	// Flatten merges every undo group above the given group into it.
	Flatten *int64 `yaml:"flatten,omitempty"`

	// Decrement abandons the current undo group.
	Decrement bool `yaml:"decrement,omitempty"`

	// Limit sets the group limit.
	Limit *int64 `yaml:"limit,omitempty"`

	// ClearRedo drops the newest redo group.
	ClearRedo bool `yaml:"clear_redo,omitempty"`

	// Clear empties both logs.
	Clear bool `yaml:"clear,omitempty"`

	// ExpectError marks an exec, undo or redo that must fail. A failing
	// undo or redo must leave the database unchanged.
	ExpectError bool `yaml:"expect_error,omitempty"`
}

// Step kinds, as reported by Step.Kind.
const (
	StepExec      = "exec"
	StepEdit      = "edit"
	StepSeal      = "seal"
	StepUndo      = "undo"
	StepRedo      = "redo"
	StepFlatten   = "flatten"
	StepDecrement = "decrement"
	StepLimit     = "limit"
	StepClearRedo = "clear_redo"
	StepClear     = "clear"
)

// Kind returns the action of the step, or "" when none or several are set.
func (s Step) Kind() string {
	var kinds []string
	if s.Exec != "" {
		kinds = append(kinds, StepExec)
	}
	if len(s.Edit) > 0 {
		kinds = append(kinds, StepEdit)
	}
	if s.Seal {
		kinds = append(kinds, StepSeal)
	}
	if s.Undo > 0 {
		kinds = append(kinds, StepUndo)
	}
	if s.Redo > 0 {
		kinds = append(kinds, StepRedo)
	}
	if s.Flatten != nil {
		kinds = append(kinds, StepFlatten)
	}
	if s.Decrement {
		kinds = append(kinds, StepDecrement)
	}
	if s.Limit != nil {
		kinds = append(kinds, StepLimit)
	}
	if s.ClearRedo {
		kinds = append(kinds, StepClearRedo)
	}
	if s.Clear {
		kinds = append(kinds, StepClear)
	}
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

// Assertion validates the final database state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "rows": Table holds exactly Rows, ordered by rowid
	// - "row_count": Table holds Count rows
	// - "group_count": Log holds Count distinct groups
	// - "current_group": the current group of Log equals Group
	Type string `yaml:"type"`

	// Table is the table name (used by rows, row_count).
	Table string `yaml:"table,omitempty"`

	// Rows are the expected rows, each listing every column in table order
	// (used by rows). Use ~ for NULL.
	Rows [][]any `yaml:"rows,omitempty"`

	// Log is "undo" or "redo" (used by group_count, current_group).
	Log string `yaml:"log,omitempty"`

	// Count is the expected number (used by row_count, group_count).
	Count int64 `yaml:"count,omitempty"`

	// Group is the expected current group (used by current_group).
	Group *int64 `yaml:"group,omitempty"`
}

// Assertion type constants.
const (
	AssertRows         = "rows"
	AssertRowCount     = "row_count"
	AssertGroupCount   = "group_count"
	AssertCurrentGroup = "current_group"
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

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Track) == 0 {
		return fmt.Errorf("track list is required and must be non-empty")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		kind := step.Kind()
		if kind == "" {
			return fmt.Errorf("steps[%d]: exactly one action is required", i)
		}
		if step.ExpectError && kind != StepExec && kind != StepUndo && kind != StepRedo {
			return fmt.Errorf("steps[%d]: expect_error is only valid for exec, undo and redo", i)
		}
		if step.Undo < 0 || step.Redo < 0 {
			return fmt.Errorf("steps[%d]: undo and redo counts must be positive", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertRows, AssertRowCount:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for %s", index, a.Type)
		}
		if a.Type == AssertRowCount && a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for row_count", index)
		}
	case AssertGroupCount, AssertCurrentGroup:
		if a.Log != "undo" && a.Log != "redo" {
			return fmt.Errorf("assertions[%d]: log must be undo or redo for %s", index, a.Type)
		}
		if a.Type == AssertCurrentGroup && a.Group == nil {
			return fmt.Errorf("assertions[%d]: group is required for current_group", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
