// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package analyzer

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
)

// Coverage report formats.
const (
	FormatCobertura = "cobertura"
	FormatGoCover   = "gocover"
	FormatAuto      = "auto"
)

// FileCoverage is the line coverage of one source file. Lines maps each
// instrumented line to whether it was executed.
type FileCoverage struct {
	Name  string
	Lines map[int]bool
}

// Rate returns the executed share of instrumented lines as a percentage.
func (f *FileCoverage) Rate() float64 {
	if len(f.Lines) == 0 {
		return 100
	}
	covered := 0
	for _, hit := range f.Lines {
		if hit {
			covered++
		}
	}
	return float64(covered) / float64(len(f.Lines)) * 100
}

// Missing returns the instrumented but unexecuted lines, ascending.
func (f *FileCoverage) Missing() []int {
	var out []int
	for n, hit := range f.Lines {
		if !hit {
			out = append(out, n)
		}
	}
	sort.Ints(out)
	return out
}

// CoverageData is a parsed coverage report.
type CoverageData struct {
	// Total is the overall line rate as a percentage.
	Total float64
	Files map[string]*FileCoverage
}

// Lookup finds the entry for a repository path. Report file names may be
// relative to a source root or prefixed with a module path, so suffix
// matches on a path boundary count.
func (c *CoverageData) Lookup(repoPath string) (*FileCoverage, bool) {
	if f, ok := c.Files[repoPath]; ok {
		return f, true
	}
	for name, f := range c.Files {
		if strings.HasSuffix(name, "/"+repoPath) || strings.HasSuffix(repoPath, "/"+name) {
			return f, true
		}
	}
	return nil, false
}

// ParseCoverage parses a report in the given format. FormatAuto sniffs the
// content.
func ParseCoverage(format string, data []byte) (*CoverageData, error) {
	if format == FormatAuto || format == "" {
		format = sniffFormat(data)
	}
	switch format {
	case FormatCobertura:
		return parseCobertura(data)
	case FormatGoCover:
		return parseGoCover(data)
	default:
		return nil, fmt.Errorf("unsupported coverage format %q", format)
	}
}

func sniffFormat(data []byte) string {
	trimmed := bytes.TrimSpace(data)
	if bytes.HasPrefix(trimmed, []byte("mode:")) {
		return FormatGoCover
	}
	return FormatCobertura
}

type coberturaReport struct {
	XMLName    xml.Name `xml:"coverage"`
	LineRate   float64  `xml:"line-rate,attr"`
	LinesValid int      `xml:"lines-valid,attr"`
	Packages   []struct {
		Classes []struct {
			Filename string `xml:"filename,attr"`
			Lines    []struct {
				Number int `xml:"number,attr"`
				Hits   int `xml:"hits,attr"`
			} `xml:"lines>line"`
		} `xml:"classes>class"`
	} `xml:"packages>package"`
}

func parseCobertura(data []byte) (*CoverageData, error) {
	var rep coberturaReport
	if err := xml.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("parse cobertura report: %w", err)
	}

	out := &CoverageData{Files: make(map[string]*FileCoverage)}
	var instrumented, covered int
	for _, pkg := range rep.Packages {
		for _, class := range pkg.Classes {
			name := path.Clean(class.Filename)
			fc, ok := out.Files[name]
			if !ok {
				fc = &FileCoverage{Name: name, Lines: make(map[int]bool)}
				out.Files[name] = fc
			}
			for _, l := range class.Lines {
				fc.Lines[l.Number] = fc.Lines[l.Number] || l.Hits > 0
			}
		}
	}
	for _, fc := range out.Files {
		for _, hit := range fc.Lines {
			instrumented++
			if hit {
				covered++
			}
		}
	}

	switch {
	case instrumented > 0:
		out.Total = float64(covered) / float64(instrumented) * 100
	default:
		out.Total = rep.LineRate * 100
	}
	return out, nil
}

// parseGoCover reads a Go coverprofile. Each block line is
// "file:startLine.startCol,endLine.endCol numStmts count".
func parseGoCover(data []byte) (*CoverageData, error) {
	out := &CoverageData{Files: make(map[string]*FileCoverage)}
	var stmts, coveredStmts int

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64<<10), 1<<20)
	first := true
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if first {
			first = false
			if !strings.HasPrefix(line, "mode:") {
				return nil, errors.New("parse coverprofile: missing mode line")
			}
			continue
		}

		b, err := parseBlock(line)
		if err != nil {
			return nil, fmt.Errorf("parse coverprofile: %w", err)
		}
		fc, ok := out.Files[b.file]
		if !ok {
			fc = &FileCoverage{Name: b.file, Lines: make(map[int]bool)}
			out.Files[b.file] = fc
		}
		for n := b.start; n <= b.end; n++ {
			fc.Lines[n] = fc.Lines[n] || b.count > 0
		}
		stmts += b.stmts
		if b.count > 0 {
			coveredStmts += b.stmts
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read coverprofile: %w", err)
	}
	if first {
		return nil, errors.New("parse coverprofile: empty report")
	}

	out.Total = 100
	if stmts > 0 {
		out.Total = float64(coveredStmts) / float64(stmts) * 100
	}
	return out, nil
}

type coverBlock struct {
	file       string
	start, end int
	stmts      int
	count      int
}

func parseBlock(line string) (coverBlock, error) {
	colon := strings.LastIndexByte(line, ':')
	if colon < 0 {
		return coverBlock{}, fmt.Errorf("malformed block %q", line)
	}
	fields := strings.Fields(line[colon+1:])
	if len(fields) != 3 {
		return coverBlock{}, fmt.Errorf("malformed block %q", line)
	}

	span := strings.SplitN(fields[0], ",", 2)
	if len(span) != 2 {
		return coverBlock{}, fmt.Errorf("malformed span %q", fields[0])
	}
	start, err1 := lineOf(span[0])
	end, err2 := lineOf(span[1])
	stmts, err3 := strconv.Atoi(fields[1])
	count, err4 := strconv.Atoi(fields[2])
	if err := errors.Join(err1, err2, err3, err4); err != nil {
		return coverBlock{}, fmt.Errorf("malformed block %q: %w", line, err)
	}
	return coverBlock{file: line[:colon], start: start, end: end, stmts: stmts, count: count}, nil
}

// lineOf extracts the line from "line.col".
func lineOf(pos string) (int, error) {
	if dot := strings.IndexByte(pos, '.'); dot >= 0 {
		pos = pos[:dot]
	}
	return strconv.Atoi(pos)
}
