package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/unclutter/internal/rules"
)

func TestRulesCmd(t *testing.T) {
	cmd := rulesCmd()

	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	assert.True(t, names["list"], "list subcommand should exist")
	assert.True(t, names["export"], "export subcommand should exist")
	assert.True(t, names["validate"], "validate subcommand should exist")
}

func TestRulesExportAndValidate(t *testing.T) {
	tests := []struct {
		name       string
		preset     string
		wantOutput string
	}{
		{name: "default", preset: rules.PresetDefault, wantOutput: "4 rule sets, 3 labels, 3 categories"},
		{name: "extended", preset: rules.PresetExtended, wantOutput: "6 rule sets, 5 labels, 5 categories"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			export := rulesExportCmd()
			var exported bytes.Buffer
			export.SetOut(&exported)
			export.SetArgs([]string{"--preset", tt.preset})
			require.NoError(t, export.Execute())
			assert.Contains(t, exported.String(), "rule_sets:")

			path := filepath.Join(t.TempDir(), "rules.yaml")
			require.NoError(t, os.WriteFile(path, exported.Bytes(), 0o600))

			validate := rulesValidateCmd()
			var out bytes.Buffer
			validate.SetOut(&out)
			validate.SetArgs([]string{path})
			require.NoError(t, validate.Execute())
			assert.Contains(t, out.String(), tt.wantOutput)
		})
	}
}

func TestRulesExport_UnknownPreset(t *testing.T) {
	cmd := rulesExportCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--preset", "nope"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.ErrorIs(t, err, rules.ErrUnknownPreset)
}

func TestRulesValidate_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rule_sets: []\n"), 0o600))

	cmd := rulesValidateCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.ErrorIs(t, err, rules.ErrNoRuleSets)
}
