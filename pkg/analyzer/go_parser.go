// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

// GoParser extracts entities and relations from Go source using
// Tree-sitter. It walks the tree in two passes: functions (with their AST
// nodes) are collected first so that a local name->id index exists before
// call expressions are walked.
type GoParser struct {
	logger *slog.Logger
	parser *sitter.Parser
}

// NewGoParser builds a Tree-sitter-backed Go parser.
func NewGoParser(logger *slog.Logger) *GoParser {
	if logger == nil {
		logger = slog.Default()
	}
	p := sitter.NewParser()
	p.SetLanguage(golang.GetLanguage())
	return &GoParser{logger: logger, parser: p}
}

type goFuncCtx struct {
	relPath      string
	content      []byte
	disambig     *Disambiguator
	funcNameToID map[string]string // bare name -> resolved id, same-file calls
	seenRefs     map[string]bool
}

func (p *GoParser) Parse(absPath, relPath string, content []byte) FileResult {
	file := newFileNode(absPath, relPath, "go", content)
	result := FileResult{File: file}

	tree, err := p.parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		result.ParseError = fmt.Errorf("go: tree-sitter parse: %w", err)
		return result
	}
	defer tree.Close()

	root := tree.RootNode()
	ctx := &goFuncCtx{
		relPath:      relPath,
		content:      content,
		disambig:     &Disambiguator{},
		funcNameToID: map[string]string{},
		seenRefs:     map[string]bool{},
	}

	result.PackageName = p.packageName(root, content)

	// Pass 1: type declarations (struct/interface) -> ClassNode + IMPLEMENTS.
	p.walkTypes(root, ctx, &result)

	// Pass 2: function/method declarations -> FunctionNode + CONTAINS,
	// populating funcNameToID for local call resolution.
	type funcNode struct {
		node *sitter.Node
		fn   FunctionNode
	}
	var funcs []funcNode
	p.walkFuncDecls(root, ctx, func(node *sitter.Node, fn FunctionNode) {
		funcs = append(funcs, funcNode{node: node, fn: fn})
		ctx.funcNameToID[fn.Name] = fn.ID
	})
	for _, f := range funcs {
		result.Functions = append(result.Functions, f.fn)
		src := file.ID
		if f.fn.IsMethod {
			src = ClassID(relPath, f.fn.ClassName)
		}
		result.Relations = append(result.Relations, Relation{
			Kind: RelContains, Src: src, Dst: f.fn.ID, FilePath: relPath,
		})
	}

	// Pass 3: imports.
	p.walkImports(root, ctx, &result)

	// Pass 4: calls + references, scoped to each function body (fallback
	// to the FileNode for code outside any named function, e.g. var
	// initializers with anonymous closures).
	for _, f := range funcs {
		p.walkCallsAndRefs(f.node, ctx, f.fn.ID, &result)
	}
	for i := 0; i < int(root.ChildCount()); i++ {
		if c := root.Child(i); c.Type() == "var_declaration" || c.Type() == "const_declaration" {
			p.walkCallsAndRefs(c, ctx, file.ID, &result)
		}
	}

	return result
}

func (p *GoParser) packageName(root *sitter.Node, content []byte) string {
	for i := 0; i < int(root.ChildCount()); i++ {
		c := root.Child(i)
		if c.Type() == "package_clause" {
			for j := 0; j < int(c.ChildCount()); j++ {
				id := c.Child(j)
				if id.Type() == "package_identifier" {
					return id.Content(content)
				}
			}
		}
	}
	return ""
}

func isExportedGoName(name string) bool {
	for _, r := range name {
		return unicode.IsUpper(r)
	}
	return false
}

func (p *GoParser) walkTypes(node *sitter.Node, ctx *goFuncCtx, result *FileResult) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "type_declaration" {
			p.extractTypeDeclaration(child, ctx, result)
		}
		p.walkTypes(child, ctx, result)
	}
}

func (p *GoParser) extractTypeDeclaration(node *sitter.Node, ctx *goFuncCtx, result *FileResult) {
	for i := 0; i < int(node.ChildCount()); i++ {
		spec := node.Child(i)
		if spec.Type() != "type_spec" {
			continue
		}
		var name string
		var body *sitter.Node
		for j := 0; j < int(spec.ChildCount()); j++ {
			c := spec.Child(j)
			switch c.Type() {
			case "type_identifier":
				if name == "" {
					name = c.Content(ctx.content)
				}
			case "struct_type", "interface_type":
				body = c
			}
		}
		if name == "" {
			continue
		}
		id := ctx.disambig.Resolve(ClassID(ctx.relPath, name))
		class := ClassNode{
			ID:        id,
			Name:      name,
			FilePath:  ctx.relPath,
			StartLine: int(spec.StartPoint().Row) + 1,
			EndLine:   int(spec.EndPoint().Row) + 1,
			Exported:  isExportedGoName(name),
		}
		if body != nil && body.Type() == "interface_type" {
			for j := 0; j < int(body.ChildCount()); j++ {
				member := body.Child(j)
				var embedded string
				switch member.Type() {
				case "type_identifier", "qualified_type":
					embedded = member.Content(ctx.content)
				case "type_elem", "constraint_elem", "interface_type_name":
					// Embedded interfaces sit under a wrapper element in
					// newer grammar revisions.
					if inner := firstTypeIdentifier(member, ctx.content); inner != "" {
						embedded = inner
					}
				}
				if embedded == "" {
					continue
				}
				class.Interfaces = append(class.Interfaces, embedded)
				result.Relations = append(result.Relations, Relation{
					Kind: RelImplements, Src: id, Dst: embedded, FilePath: ctx.relPath,
				})
			}
		}
		result.Classes = append(result.Classes, class)
		result.Relations = append(result.Relations, Relation{
			Kind: RelContains, Src: result.File.ID, Dst: id, FilePath: ctx.relPath,
		})
	}
}

// firstTypeIdentifier returns the content of the first type_identifier
// or qualified_type found in a subtree.
func firstTypeIdentifier(n *sitter.Node, content []byte) string {
	if n.Type() == "type_identifier" || n.Type() == "qualified_type" {
		return n.Content(content)
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if found := firstTypeIdentifier(n.Child(i), content); found != "" {
			return found
		}
	}
	return ""
}

type funcVisitor func(node *sitter.Node, fn FunctionNode)

func (p *GoParser) walkFuncDecls(node *sitter.Node, ctx *goFuncCtx, visit funcVisitor) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "function_declaration":
			if fn := p.extractFunctionDecl(child, ctx); fn != nil {
				visit(child, *fn)
			}
		case "method_declaration":
			if fn := p.extractMethodDecl(child, ctx); fn != nil {
				visit(child, *fn)
			}
		}
		p.walkFuncDecls(child, ctx, visit)
	}
}

func (p *GoParser) extractFunctionDecl(node *sitter.Node, ctx *goFuncCtx) *FunctionNode {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := nameNode.Content(ctx.content)
	id := ctx.disambig.Resolve(FunctionID(ctx.relPath, name))
	return &FunctionNode{
		ID:        id,
		Name:      name,
		FilePath:  ctx.relPath,
		Params:    paramNames(node.ChildByFieldName("parameters"), ctx.content),
		StartLine: int(node.StartPoint().Row) + 1,
		EndLine:   int(node.EndPoint().Row) + 1,
		Exported:  isExportedGoName(name),
	}
}

func (p *GoParser) extractMethodDecl(node *sitter.Node, ctx *goFuncCtx) *FunctionNode {
	nameNode := node.ChildByFieldName("name")
	recvNode := node.ChildByFieldName("receiver")
	if nameNode == nil || recvNode == nil {
		return nil
	}
	name := nameNode.Content(ctx.content)
	className := receiverTypeName(recvNode, ctx.content)
	if className == "" {
		return nil
	}
	id := ctx.disambig.Resolve(MethodID(ctx.relPath, className, name))
	return &FunctionNode{
		ID:        id,
		Name:      name,
		FilePath:  ctx.relPath,
		ClassName: className,
		IsMethod:  true,
		Params:    paramNames(node.ChildByFieldName("parameters"), ctx.content),
		StartLine: int(node.StartPoint().Row) + 1,
		EndLine:   int(node.EndPoint().Row) + 1,
		Exported:  isExportedGoName(name),
	}
}

// receiverTypeName extracts "Foo" from receivers shaped "(f *Foo)",
// "(f Foo)", or the generic form "(f *Foo[T])".
func receiverTypeName(recv *sitter.Node, content []byte) string {
	for i := 0; i < int(recv.ChildCount()); i++ {
		param := recv.Child(i)
		if param.Type() != "parameter_declaration" {
			continue
		}
		typeNode := param.ChildByFieldName("type")
		if typeNode == nil {
			continue
		}
		return baseTypeName(typeNode, content)
	}
	return ""
}

func baseTypeName(node *sitter.Node, content []byte) string {
	switch node.Type() {
	case "pointer_type":
		return baseTypeName(node.Child(1), content)
	case "generic_type":
		if n := node.ChildByFieldName("type"); n != nil {
			return baseTypeName(n, content)
		}
	case "type_identifier":
		return node.Content(content)
	}
	return strings.TrimPrefix(node.Content(content), "*")
}

func paramNames(params *sitter.Node, content []byte) []string {
	if params == nil {
		return nil
	}
	var names []string
	for i := 0; i < int(params.ChildCount()); i++ {
		decl := params.Child(i)
		if decl.Type() != "parameter_declaration" && decl.Type() != "variadic_parameter_declaration" {
			continue
		}
		for j := 0; j < int(decl.ChildCount()); j++ {
			c := decl.Child(j)
			if c.Type() == "identifier" {
				names = append(names, c.Content(content))
			}
		}
	}
	return names
}

func (p *GoParser) walkImports(node *sitter.Node, ctx *goFuncCtx, result *FileResult) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "import_declaration" {
			p.extractImportDecl(child, ctx, result)
		}
		p.walkImports(child, ctx, result)
	}
}

func (p *GoParser) extractImportDecl(node *sitter.Node, ctx *goFuncCtx, result *FileResult) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "import_spec":
			p.extractImportSpec(child, ctx, result)
		case "import_spec_list":
			for j := 0; j < int(child.ChildCount()); j++ {
				if spec := child.Child(j); spec.Type() == "import_spec" {
					p.extractImportSpec(spec, ctx, result)
				}
			}
		}
	}
}

func (p *GoParser) extractImportSpec(node *sitter.Node, ctx *goFuncCtx, result *FileResult) {
	var pathNode, nameNode *sitter.Node
	for i := 0; i < int(node.ChildCount()); i++ {
		c := node.Child(i)
		switch c.Type() {
		case "interpreted_string_literal":
			pathNode = c
		case "package_identifier", "blank_identifier", "dot":
			nameNode = c
		}
	}
	if pathNode == nil {
		return
	}
	specifier := strings.Trim(pathNode.Content(ctx.content), `"`)
	rel := Relation{
		Kind:        RelImports,
		Src:         result.File.ID,
		Dst:         ModuleID(specifier),
		DstResolved: true,
		FilePath:    ctx.relPath,
		Line:        int(node.StartPoint().Row) + 1,
	}
	if nameNode != nil {
		alias := nameNode.Content(ctx.content)
		if alias != "_" {
			rel.ImportedNames = []string{alias}
		}
	}
	result.Relations = append(result.Relations, rel)
}

func (p *GoParser) walkCallsAndRefs(fnNode *sitter.Node, ctx *goFuncCtx, callerID string, result *FileResult) {
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		switch n.Type() {
		case "call_expression":
			p.extractCall(n, ctx, callerID, result)
		case "composite_literal":
			p.extractComposite(n, ctx, callerID, result)
		case "func_literal":
			// Anonymous functions host their own calls but attach to the
			// nearest named ancestor; continue walking under the same
			// callerID rather than recursing with a new id.
		case "identifier":
			p.extractReference(n, ctx, callerID, ReferenceIdentifier, result)
		case "field_identifier":
			p.extractReference(n, ctx, callerID, ReferenceProperty, result)
		case "type_identifier":
			p.extractReference(n, ctx, callerID, ReferenceType, result)
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			visit(n.Child(i))
		}
	}
	visit(fnNode)
}

// extractReference emits a REFERENCES edge for an identifier use inside a
// function body, skipping declaration names, call callees and the field
// name of a method-call selector.
func (p *GoParser) extractReference(n *sitter.Node, ctx *goFuncCtx, callerID string, kind ReferenceKind, result *FileResult) {
	parent := n.Parent()
	if parent == nil {
		return
	}
	switch parent.Type() {
	case "function_declaration", "method_declaration", "parameter_declaration",
		"variadic_parameter_declaration", "var_spec", "const_spec", "type_spec",
		"field_declaration", "import_spec", "package_clause", "label_name",
		"keyed_element", "method_elem":
		return
	case "call_expression":
		if sameGoNode(parent.ChildByFieldName("function"), n) {
			return
		}
	case "selector_expression":
		if gp := parent.Parent(); gp != nil && gp.Type() == "call_expression" &&
			sameGoNode(gp.ChildByFieldName("function"), parent) &&
			sameGoNode(parent.ChildByFieldName("field"), n) {
			return
		}
	case "expression_list":
		if gp := parent.Parent(); gp != nil && gp.Type() == "short_var_declaration" &&
			sameGoNode(gp.ChildByFieldName("left"), parent) {
			return
		}
	}
	name := n.Content(ctx.content)
	if name == "" || name == "_" || isGoBuiltin(name) {
		return
	}
	key := callerID + "\x00" + string(kind) + "\x00" + name
	if ctx.seenRefs[key] {
		return
	}
	ctx.seenRefs[key] = true
	result.Relations = append(result.Relations, Relation{
		Kind: RelReferences, Src: callerID, Dst: name, ReferenceKind: kind,
		FilePath: ctx.relPath, Line: int(n.StartPoint().Row) + 1,
	})
}

// sameGoNode compares Tree-sitter nodes by byte span; the cursor API hands
// out distinct wrapper values for the same underlying node.
func sameGoNode(a, b *sitter.Node) bool {
	return a != nil && b != nil && a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte()
}

func (p *GoParser) extractCall(n *sitter.Node, ctx *goFuncCtx, callerID string, result *FileResult) {
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return
	}
	line := int(n.StartPoint().Row) + 1
	switch fn.Type() {
	case "identifier":
		name := fn.Content(ctx.content)
		if isGoBuiltin(name) {
			return
		}
		if id, ok := ctx.funcNameToID[name]; ok {
			result.Relations = append(result.Relations, Relation{
				Kind: RelCalls, Src: callerID, Dst: id, DstResolved: true,
				CallKind: CallDirect, FilePath: ctx.relPath, Line: line,
			})
			return
		}
		result.UnresolvedCalls = append(result.UnresolvedCalls, UnresolvedCall{
			CallerID: callerID, CalleeName: name, FilePath: ctx.relPath,
			Line: line, Kind: CallDirect,
		})
	case "selector_expression":
		operand := fn.ChildByFieldName("operand")
		field := fn.ChildByFieldName("field")
		if field == nil {
			return
		}
		name := field.Content(ctx.content)
		qualifier := ""
		if operand != nil && operand.Type() == "identifier" {
			qualifier = operand.Content(ctx.content)
		}
		result.UnresolvedCalls = append(result.UnresolvedCalls, UnresolvedCall{
			CallerID: callerID, CalleeName: name, Qualifier: qualifier,
			FilePath: ctx.relPath, Line: line, Kind: CallMethod,
		})
	}
}

// extractComposite models Go's idiomatic construction site (T{...} /
// &T{...}) as an INSTANTIATES edge.
func (p *GoParser) extractComposite(n *sitter.Node, ctx *goFuncCtx, callerID string, result *FileResult) {
	typeNode := n.ChildByFieldName("type")
	if typeNode == nil {
		return
	}
	name := baseTypeName(typeNode, ctx.content)
	if name == "" {
		return
	}
	result.Relations = append(result.Relations, Relation{
		Kind: RelInstantiates, Src: callerID, Dst: name,
		FilePath: ctx.relPath, Line: int(n.StartPoint().Row) + 1,
	})
}

var goBuiltins = map[string]bool{
	"append": true, "cap": true, "close": true, "complex": true, "copy": true,
	"delete": true, "imag": true, "len": true, "make": true, "new": true,
	"panic": true, "print": true, "println": true, "real": true, "recover": true,
	"min": true, "max": true, "clear": true,
}

func isGoBuiltin(name string) bool { return goBuiltins[name] }
