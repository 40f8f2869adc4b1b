// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package syntax extracts documentation and complexity facts from source
// files with tree-sitter.
package syntax

import (
	"path"

	"github.com/src-d/enry/v2"
)

// Language is a source language the analyzers understand.
type Language string

const (
	Python     Language = "python"
	Go         Language = "go"
	JavaScript Language = "javascript"
)

var enryNames = map[string]Language{
	"Python":     Python,
	"Go":         Go,
	"JavaScript": JavaScript,
}

// Detect identifies the language of a file. Vendored and unsupported files
// report false. content may be nil, in which case only the name is used.
func Detect(name string, content []byte) (Language, bool) {
	if enry.IsVendor(name) {
		return "", false
	}

	lang, ok := enryNames[enry.GetLanguage(path.Base(name), content)]
	return lang, ok
}

// Supported reports whether a file name looks like a source file Parse can
// handle, without reading its content.
func Supported(name string) bool {
	_, ok := Detect(name, nil)
	return ok
}
