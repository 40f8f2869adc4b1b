// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package syntax

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
)

// SymbolKind classifies a documentable symbol.
type SymbolKind string

const (
	KindModule   SymbolKind = "module"
	KindClass    SymbolKind = "class"
	KindType     SymbolKind = "type"
	KindFunction SymbolKind = "function"
	KindMethod   SymbolKind = "method"
)

// Symbol is a public, documentable declaration.
type Symbol struct {
	Name       string
	Kind       SymbolKind
	Line       int // 1-based
	Documented bool
}

// Function holds per-function metrics.
type Function struct {
	Name       string
	StartLine  int // 1-based
	EndLine    int
	Length     int // lines, inclusive
	MaxNesting int
	Complexity int // cyclomatic
}

// File is the parsed summary of one source file.
type File struct {
	Language  Language
	Lines     int
	Symbols   []Symbol
	Functions []Function
}

// DocCoverage returns documented/total public symbols as a percentage, or
// 100 when there are none.
func (f *File) DocCoverage() float64 {
	if len(f.Symbols) == 0 {
		return 100
	}
	documented := 0
	for _, s := range f.Symbols {
		if s.Documented {
			documented++
		}
	}
	return float64(documented) / float64(len(f.Symbols)) * 100
}

// grammar describes how one language's syntax tree maps onto the metrics.
type grammar struct {
	language  func() *sitter.Language
	functions map[string]bool
	nesting   map[string]bool
	decisions map[string]bool
	logical   map[string]bool // operators of binary nodes that add a path
	symbols   func(root *sitter.Node, src []byte) []Symbol
}

func set(items ...string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, it := range items {
		m[it] = true
	}
	return m
}

var grammars = map[Language]*grammar{
	Python: {
		language:  python.GetLanguage,
		functions: set("function_definition"),
		nesting:   set("if_statement", "for_statement", "while_statement", "try_statement", "with_statement", "match_statement"),
		decisions: set("if_statement", "elif_clause", "for_statement", "while_statement", "except_clause",
			"conditional_expression", "boolean_operator", "case_clause"),
		symbols: pythonSymbols,
	},
	Go: {
		language:  golang.GetLanguage,
		functions: set("function_declaration", "method_declaration"),
		nesting: set("if_statement", "for_statement", "expression_switch_statement", "type_switch_statement",
			"select_statement"),
		decisions: set("if_statement", "for_statement", "expression_case", "type_case", "communication_case"),
		logical:   set("&&", "||"),
		symbols:   goSymbols,
	},
	JavaScript: {
		language: javascript.GetLanguage,
		functions: set("function_declaration", "generator_function_declaration", "method_definition",
			"function", "function_expression", "arrow_function"),
		nesting: set("if_statement", "for_statement", "for_in_statement", "while_statement", "do_statement",
			"switch_statement", "try_statement"),
		decisions: set("if_statement", "for_statement", "for_in_statement", "while_statement", "do_statement",
			"switch_case", "catch_clause", "ternary_expression"),
		logical: set("&&", "||", "??"),
		symbols: jsSymbols,
	},
}

// Parse parses src and extracts symbols and function metrics.
func Parse(ctx context.Context, lang Language, src []byte) (*File, error) {
	g, ok := grammars[lang]
	if !ok {
		return nil, fmt.Errorf("unsupported language %q", lang)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(g.language())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s source: %w", lang, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	file := &File{
		Language: lang,
		Lines:    countLines(src),
		Symbols:  g.symbols(root, src),
	}
	g.collectFunctions(root, src, &file.Functions)
	return file, nil
}

// collectFunctions walks the whole tree, measuring every function node.
func (g *grammar) collectFunctions(n *sitter.Node, src []byte, out *[]Function) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if g.functions[child.Type()] {
			*out = append(*out, g.measure(child, src))
		}
		g.collectFunctions(child, src, out)
	}
}

func (g *grammar) measure(fn *sitter.Node, src []byte) Function {
	start := int(fn.StartPoint().Row) + 1
	end := int(fn.EndPoint().Row) + 1
	name := "<anonymous>"
	if id := fn.ChildByFieldName("name"); id != nil {
		name = id.Content(src)
	}

	body := fn.ChildByFieldName("body")
	if body == nil {
		body = fn
	}
	return Function{
		Name:       name,
		StartLine:  start,
		EndLine:    end,
		Length:     end - start + 1,
		MaxNesting: g.depth(body, nil, 0),
		Complexity: 1 + g.decisionCount(body, src),
	}
}

// depth returns the deepest control-flow nesting below n. Nested functions
// are measured on their own and not descended into. An if that is the else
// branch of another if stays at its parent's depth.
func (g *grammar) depth(n, parent *sitter.Node, current int) int {
	deepest := current
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if g.functions[child.Type()] {
			continue
		}
		d := current
		if g.nesting[child.Type()] && !isElseIf(n, child) {
			d++
		}
		if got := g.depth(child, n, d); got > deepest {
			deepest = got
		}
	}
	return deepest
}

func isElseIf(parent, child *sitter.Node) bool {
	if child.Type() != "if_statement" {
		return false
	}
	switch parent.Type() {
	case "if_statement", "else_clause":
		return true
	}
	return false
}

func (g *grammar) decisionCount(n *sitter.Node, src []byte) int {
	count := 0
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		t := child.Type()
		if g.functions[t] {
			continue
		}
		if g.decisions[t] {
			count++
		}
		if t == "binary_expression" && g.logical != nil {
			if op := child.ChildByFieldName("operator"); op != nil && g.logical[op.Type()] {
				count++
			}
		}
		count += g.decisionCount(child, src)
	}
	return count
}

func countLines(src []byte) int {
	if len(src) == 0 {
		return 0
	}
	n := bytes.Count(src, []byte{'\n'})
	if src[len(src)-1] != '\n' {
		n++
	}
	return n
}

func line(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

// precededByComment reports whether the node directly before n is a comment
// ending on the line above it.
func precededByComment(n *sitter.Node) bool {
	prev := n.PrevNamedSibling()
	if prev == nil || prev.Type() != "comment" {
		return false
	}
	return prev.EndPoint().Row+1 >= n.StartPoint().Row
}

// Python

func pythonSymbols(root *sitter.Node, src []byte) []Symbol {
	if root.NamedChildCount() == 0 {
		return nil
	}
	symbols := []Symbol{{Name: "<module>", Kind: KindModule, Line: 1, Documented: pyHasDocstring(root)}}
	pythonBlock(root, src, false, &symbols)
	return symbols
}

func pythonBlock(block *sitter.Node, src []byte, inClass bool, out *[]Symbol) {
	for i := 0; i < int(block.NamedChildCount()); i++ {
		node := block.NamedChild(i)
		if node.Type() == "decorated_definition" {
			if def := node.ChildByFieldName("definition"); def != nil {
				node = def
			}
		}

		switch node.Type() {
		case "class_definition":
			name := nodeName(node, src)
			body := node.ChildByFieldName("body")
			if isPublicPy(name) {
				*out = append(*out, Symbol{Name: name, Kind: KindClass, Line: line(node), Documented: pyHasDocstring(body)})
			}
			if body != nil {
				pythonBlock(body, src, true, out)
			}
		case "function_definition":
			name := nodeName(node, src)
			if !isPublicPy(name) {
				continue
			}
			kind := KindFunction
			if inClass {
				kind = KindMethod
			}
			*out = append(*out, Symbol{Name: name, Kind: kind, Line: line(node), Documented: pyHasDocstring(node.ChildByFieldName("body"))})
		}
	}
}

// pyHasDocstring reports whether the first statement of block is a string.
func pyHasDocstring(block *sitter.Node) bool {
	if block == nil || block.NamedChildCount() == 0 {
		return false
	}
	first := block.NamedChild(0)
	for first != nil && first.Type() == "comment" {
		first = first.NextNamedSibling()
	}
	if first == nil || first.Type() != "expression_statement" || first.NamedChildCount() == 0 {
		return false
	}
	return first.NamedChild(0).Type() == "string"
}

func isPublicPy(name string) bool {
	return name != "" && !strings.HasPrefix(name, "_")
}

// Go

func goSymbols(root *sitter.Node, src []byte) []Symbol {
	var symbols []Symbol
	for i := 0; i < int(root.NamedChildCount()); i++ {
		node := root.NamedChild(i)
		switch node.Type() {
		case "function_declaration", "method_declaration":
			name := nodeName(node, src)
			if !isExported(name) {
				continue
			}
			kind := KindFunction
			if node.Type() == "method_declaration" {
				kind = KindMethod
			}
			symbols = append(symbols, Symbol{Name: name, Kind: kind, Line: line(node), Documented: precededByComment(node)})
		case "type_declaration":
			documented := precededByComment(node)
			for j := 0; j < int(node.NamedChildCount()); j++ {
				spec := node.NamedChild(j)
				if spec.Type() != "type_spec" && spec.Type() != "type_alias" {
					continue
				}
				name := nodeName(spec, src)
				if !isExported(name) {
					continue
				}
				symbols = append(symbols, Symbol{Name: name, Kind: KindType, Line: line(spec), Documented: documented || precededByComment(spec)})
			}
		}
	}
	return symbols
}

func isExported(name string) bool {
	for _, r := range name {
		return unicode.IsUpper(r)
	}
	return false
}

// JavaScript

func jsSymbols(root *sitter.Node, src []byte) []Symbol {
	var symbols []Symbol
	for i := 0; i < int(root.NamedChildCount()); i++ {
		stmt := root.NamedChild(i)
		node := stmt
		if stmt.Type() == "export_statement" {
			if decl := stmt.ChildByFieldName("declaration"); decl != nil {
				node = decl
			}
		}
		documented := precededByComment(stmt)

		switch node.Type() {
		case "function_declaration", "generator_function_declaration":
			name := nodeName(node, src)
			if isPublicJS(name) {
				symbols = append(symbols, Symbol{Name: name, Kind: KindFunction, Line: line(node), Documented: documented})
			}
		case "class_declaration":
			name := nodeName(node, src)
			if isPublicJS(name) {
				symbols = append(symbols, Symbol{Name: name, Kind: KindClass, Line: line(node), Documented: documented})
			}
			if body := node.ChildByFieldName("body"); body != nil {
				symbols = append(symbols, jsMethods(body, src)...)
			}
		}
	}
	return symbols
}

func jsMethods(body *sitter.Node, src []byte) []Symbol {
	var symbols []Symbol
	for i := 0; i < int(body.NamedChildCount()); i++ {
		m := body.NamedChild(i)
		if m.Type() != "method_definition" {
			continue
		}
		name := nodeName(m, src)
		if !isPublicJS(name) || name == "constructor" {
			continue
		}
		symbols = append(symbols, Symbol{Name: name, Kind: KindMethod, Line: line(m), Documented: precededByComment(m)})
	}
	return symbols
}

func isPublicJS(name string) bool {
	return name != "" && !strings.HasPrefix(name, "_") && !strings.HasPrefix(name, "#")
}

func nodeName(n *sitter.Node, src []byte) string {
	if id := n.ChildByFieldName("name"); id != nil {
		return id.Content(src)
	}
	return ""
}
