package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_Valid(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "insert_undo_redo.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "insert_undo_redo", s.Name)
	assert.Equal(t, []string{"items"}, s.Track)
	require.Len(t, s.Steps, 6)
	assert.Equal(t, StepExec, s.Steps[0].Kind())
	assert.Equal(t, StepSeal, s.Steps[1].Kind())
	assert.Equal(t, StepUndo, s.Steps[4].Kind())
	assert.Equal(t, 2, s.Steps[4].Undo)
	assert.Equal(t, StepRedo, s.Steps[5].Kind())
	require.Len(t, s.Assertions, 3)
	assert.Equal(t, [][]any{{1, "a"}}, s.Assertions[0].Rows)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_FromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: disk
description: loaded from disk
track: [t]
steps:
  - flatten: -2
  - limit: 0
`), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	require.NotNil(t, s.Steps[0].Flatten)
	assert.Equal(t, int64(-2), *s.Steps[0].Flatten)
	assert.Equal(t, StepFlatten, s.Steps[0].Kind())
	require.NotNil(t, s.Steps[1].Limit)
	assert.Equal(t, int64(0), *s.Steps[1].Limit)
	assert.Equal(t, StepLimit, s.Steps[1].Kind())
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		yaml   string
		errMsg string
	}{
		{
			name:   "unknown field",
			yaml:   "name: x\ndescription: y\ntrack: [t]\nsteps: [{seal: true}]\nassertion: []\n",
			errMsg: "failed to parse YAML",
		},
		{
			name:   "missing name",
			yaml:   "description: y\ntrack: [t]\nsteps: [{seal: true}]\n",
			errMsg: "name is required",
		},
		{
			name:   "missing description",
			yaml:   "name: x\ntrack: [t]\nsteps: [{seal: true}]\n",
			errMsg: "description is required",
		},
		{
			name:   "missing track",
			yaml:   "name: x\ndescription: y\nsteps: [{seal: true}]\n",
			errMsg: "track list is required",
		},
		{
			name:   "missing steps",
			yaml:   "name: x\ndescription: y\ntrack: [t]\n",
			errMsg: "steps list is required",
		},
		{
			name:   "empty step",
			yaml:   "name: x\ndescription: y\ntrack: [t]\nsteps: [{}]\n",
			errMsg: "steps[0]: exactly one action is required",
		},
		{
			name:   "two actions",
			yaml:   "name: x\ndescription: y\ntrack: [t]\nsteps: [{seal: true, undo: 1}]\n",
			errMsg: "exactly one action",
		},
		{
			name:   "expect_error on seal",
			yaml:   "name: x\ndescription: y\ntrack: [t]\nsteps: [{seal: true, expect_error: true}]\n",
			errMsg: "expect_error is only valid",
		},
		{
			name:   "unknown assertion",
			yaml:   "name: x\ndescription: y\ntrack: [t]\nsteps: [{seal: true}]\nassertions: [{type: vibes}]\n",
			errMsg: `unknown assertion type "vibes"`,
		},
		{
			name:   "rows without table",
			yaml:   "name: x\ndescription: y\ntrack: [t]\nsteps: [{seal: true}]\nassertions: [{type: rows}]\n",
			errMsg: "table is required for rows",
		},
		{
			name:   "group_count bad log",
			yaml:   "name: x\ndescription: y\ntrack: [t]\nsteps: [{seal: true}]\nassertions: [{type: group_count, log: sideways}]\n",
			errMsg: "log must be undo or redo",
		},
		{
			name:   "current_group without group",
			yaml:   "name: x\ndescription: y\ntrack: [t]\nsteps: [{seal: true}]\nassertions: [{type: current_group, log: undo}]\n",
			errMsg: "group is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestStepKind(t *testing.T) {
	zero := int64(0)
	tests := []struct {
		step Step
		want string
	}{
		{Step{Exec: "SELECT 1"}, StepExec},
		{Step{Edit: []string{"SELECT 1"}}, StepEdit},
		{Step{Seal: true}, StepSeal},
		{Step{Undo: 3}, StepUndo},
		{Step{Redo: 1}, StepRedo},
		{Step{Flatten: &zero}, StepFlatten},
		{Step{Decrement: true}, StepDecrement},
		{Step{Limit: &zero}, StepLimit},
		{Step{ClearRedo: true}, StepClearRedo},
		{Step{Clear: true}, StepClear},
		{Step{}, ""},
		{Step{Seal: true, Clear: true}, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.step.Kind(), "%+v", tt.step)
	}
}
