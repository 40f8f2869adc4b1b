// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Command codeguardian reviews GitHub pull requests for documentation,
// test coverage, code quality and PR description quality.
package main

import (
	"errors"
	"fmt"
	"os"

	gerrors "github.com/codeguardian-bot/codeguardian/pkg/errors"
)

// Exit codes.
const (
	exitOK     = 0
	exitFailed = 1 // review verdict failed
	exitError  = 2 // the run itself could not complete
	exitConfig = 3
)

// errReviewFailed is returned by run when the verdict is negative.
var errReviewFailed = errors.New("review failed")

func main() {
	err := Execute()
	if err != nil && !errors.Is(err, errReviewFailed) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errReviewFailed):
		return exitFailed
	case gerrors.IsType(err, gerrors.ErrConfig):
		return exitConfig
	default:
		return exitError
	}
}
