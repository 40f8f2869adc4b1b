// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codeguardian-bot/codeguardian/pkg/version"
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  `Display detailed version information including build date, git commit, and Go version.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		info := version.Info()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "codeguardian version: %s\n", info["version"])
		fmt.Fprintf(out, "  build date: %s\n", info["buildDate"])
		fmt.Fprintf(out, "  git commit: %s\n", info["gitCommit"])
		fmt.Fprintf(out, "  go version: %s\n", info["goVersion"])
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
