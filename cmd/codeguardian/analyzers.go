// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package main

import (
	"slices"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/codeguardian-bot/codeguardian/pkg/analyzer"
)

// analyzersCmd lists registered analyzers and how the configuration uses them.
var analyzersCmd = &cobra.Command{
	Use:   "analyzers",
	Short: "List available analyzers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		order := cfg.AnalyzerOrder()
		tw := table.NewWriter()
		tw.SetOutputMirror(cmd.OutOrStdout())
		tw.SetStyle(table.StyleLight)
		tw.AppendHeader(table.Row{"Analyzer", "Enabled", "Scheduled", "Required"})
		for _, id := range analyzer.DefaultRegistry().IDs() {
			name := string(id)
			tw.AppendRow(table.Row{
				name,
				yesNo(cfg.Enabled(name)),
				yesNo(slices.Contains(order, name)),
				yesNo(len(cfg.Run.Required) == 0 || slices.Contains(cfg.Run.Required, name)),
			})
		}
		tw.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzersCmd)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
