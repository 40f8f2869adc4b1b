// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package review

import (
	"strconv"
	"strings"
)

// AddedLines returns the head-side line numbers added by the patch, in
// ascending order. Files without a patch (binary, too large) return nil.
func (f ChangedFile) AddedLines() []int {
	if f.Patch == "" {
		return nil
	}

	var (
		added   []int
		newLine int
		inHunk  bool
	)
	for _, line := range strings.Split(f.Patch, "\n") {
		if strings.HasPrefix(line, "@@") {
			start, ok := parseHunkStart(line)
			inHunk = ok
			newLine = start
			continue
		}
		if !inHunk || line == "" {
			continue
		}

		switch line[0] {
		case '+':
			added = append(added, newLine)
			newLine++
		case ' ':
			newLine++
		case '-', '\\':
			// removed line or "\ No newline at end of file"
		}
	}
	return added
}

// parseHunkStart extracts c from "@@ -a,b +c,d @@ ...".
func parseHunkStart(header string) (int, bool) {
	plus := strings.Index(header, "+")
	if plus < 0 {
		return 0, false
	}
	rest := header[plus+1:]
	end := strings.IndexAny(rest, ", ")
	if end < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(rest[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
