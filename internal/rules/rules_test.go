package rules

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/Veraticus/unclutter/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresetsValidate(t *testing.T) {
	t.Parallel()

	for _, name := range []string{PresetDefault, PresetExtended, ""} {
		cfg, err := Preset(name)
		require.NoError(t, err, name)
		assert.NoError(t, cfg.Validate(), name)
	}

	_, err := Preset("nope")
	assert.ErrorIs(t, err, ErrUnknownPreset)
}

func TestDefault_Shape(t *testing.T) {
	t.Parallel()

	cfg := Default()

	assert.Equal(t,
		[]model.Signal{model.SignalAcademic, model.SignalAction, model.SignalPromotion},
		cfg.Signals())
	assert.Equal(t,
		[]model.Category{model.CategoryAction, model.CategoryUniversity, model.CategoryPromotions, model.CategoryUnsorted},
		cfg.CategoryOrder())
	assert.Equal(t, model.LabelUnsorted, cfg.Fallback.Label)
}

func TestExtended_KeepsDefaultPriorities(t *testing.T) {
	t.Parallel()

	def := Default()
	ext := Extended()

	require.Greater(t, len(ext.Categories), len(def.Categories))
	assert.Equal(t, def.Categories, ext.Categories[:len(def.Categories)])
	assert.Len(t, Default().RuleSets, len(def.RuleSets), "Extended must not mutate Default")
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mutate  func(*Config)
		wantErr error
		name    string
	}{
		{
			name:    "no rule sets",
			mutate:  func(c *Config) { c.RuleSets = nil },
			wantErr: ErrNoRuleSets,
		},
		{
			name:    "duplicate rule set name",
			mutate:  func(c *Config) { c.RuleSets[1].Name = c.RuleSets[0].Name },
			wantErr: ErrInvalidRuleSet,
		},
		{
			name:    "missing signal",
			mutate:  func(c *Config) { c.RuleSets[0].Signal = "" },
			wantErr: ErrInvalidRuleSet,
		},
		{
			name: "empty rule set",
			mutate: func(c *Config) {
				c.RuleSets[0].Terms = nil
				c.RuleSets[0].Patterns = nil
			},
			wantErr: ErrInvalidRuleSet,
		},
		{
			name:    "empty term",
			mutate:  func(c *Config) { c.RuleSets[0].Terms = append(c.RuleSets[0].Terms, "") },
			wantErr: ErrInvalidRuleSet,
		},
		{
			name:    "bad pattern",
			mutate:  func(c *Config) { c.RuleSets[2].Patterns = []string{`(unclosed`} },
			wantErr: ErrInvalidRuleSet,
		},
		{
			name: "label requires unknown signal",
			mutate: func(c *Config) {
				c.Labels[0].Requires = []model.Signal{"weather"}
			},
			wantErr: ErrInvalidLabel,
		},
		{
			name:    "category for unknown label",
			mutate:  func(c *Config) { c.Categories[0].Label = "Nothing" },
			wantErr: ErrInvalidCategory,
		},
		{
			name:    "missing fallback label",
			mutate:  func(c *Config) { c.Fallback.Label = "" },
			wantErr: ErrInvalidFallback,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestExportThenLoadFile(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, Extended()))

	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0600))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Extended(), loaded)
}

func TestLoadFile_Custom(t *testing.T) {
	t.Parallel()

	const doc = `
rule_sets:
  - name: travel
    signal: travel
    terms: [itinerary, boarding pass]
labels:
  - label: Travel
    requires: [travel]
categories:
  - label: Travel
    category: travel
fallback:
  category: unsorted
  label: Unsorted
`
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0600))

	cfg, err := Load(PresetDefault, path)
	require.NoError(t, err)
	require.Len(t, cfg.RuleSets, 1)
	assert.Equal(t, model.Signal("travel"), cfg.RuleSets[0].Signal)
	assert.Equal(t, []string{"itinerary", "boarding pass"}, cfg.RuleSets[0].Terms)
	assert.Equal(t, model.Category("travel"), cfg.Categories[0].Category)
}

func TestLoadFile_Errors(t *testing.T) {
	t.Parallel()

	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "invalid.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rule_sets: []\n"), 0600))
	_, err = LoadFile(path)
	assert.ErrorIs(t, err, ErrNoRuleSets)
}
