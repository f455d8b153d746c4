package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/unclutter/internal/cli"
	"github.com/Veraticus/unclutter/internal/rules"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect, export and validate classification rules",
	}

	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesExportCmd())
	cmd.AddCommand(rulesValidateCmd())

	return cmd
}

func rulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the active rule sets, label rules and category priorities",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ruleCfg, err := cfg.LoadRules()
			if err != nil {
				return err
			}

			var b strings.Builder
			b.WriteString(cli.BoldStyle.Render("Rule sets") + "\n")
			for _, rs := range ruleCfg.RuleSets {
				fmt.Fprintf(&b, "  %-10s → %-10s %d terms, %d patterns\n", rs.Name, rs.Signal, len(rs.Terms), len(rs.Patterns))
			}
			b.WriteString("\n" + cli.BoldStyle.Render("Labels") + "\n")
			for _, l := range ruleCfg.Labels {
				fmt.Fprintf(&b, "  %-14s requires %v\n", l.Label, l.Requires)
			}
			b.WriteString("\n" + cli.BoldStyle.Render("Categories (first match wins)") + "\n")
			for i, c := range ruleCfg.Categories {
				fmt.Fprintf(&b, "  %d. %-14s → %s\n", i+1, c.Label, c.Category)
			}
			fmt.Fprintf(&b, "  fallback: %s / %s", ruleCfg.Fallback.Category, ruleCfg.Fallback.Label)

			source := "preset " + cfg.Rules.Preset
			if cfg.Rules.File != "" {
				source = cfg.Rules.File
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), cli.RenderBox("Rules ("+source+")", b.String()))
			return err
		},
	}
}

func rulesExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print rules as YAML, ready to edit and use as rules.file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			preset, _ := cmd.Flags().GetString("preset")
			if preset != "" {
				ruleCfg, err := rules.Preset(preset)
				if err != nil {
					return err
				}
				return rules.Export(cmd.OutOrStdout(), ruleCfg)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ruleCfg, err := cfg.LoadRules()
			if err != nil {
				return err
			}
			return rules.Export(cmd.OutOrStdout(), ruleCfg)
		},
	}

	cmd.Flags().String("preset", "", "export a built-in preset (default, extended) instead of the active rules")

	return cmd
}

func rulesValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a rules file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ruleCfg, err := rules.LoadFile(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf(
				"%s is valid: %d rule sets, %d labels, %d categories",
				args[0], len(ruleCfg.RuleSets), len(ruleCfg.Labels), len(ruleCfg.Categories),
			)))
			return err
		},
	}
}
