// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// TSParser extracts entities and relations from TypeScript/JavaScript
// source using Tree-sitter. It walks function_declaration,
// variable_declarator (arrow/function-expression values), method_definition
// and class_declaration nodes in two passes so same-file calls resolve to
// function ids.
type TSParser struct {
	logger  *slog.Logger
	parsers map[string]*sitter.Parser // extension -> configured parser
}

// NewTSParser builds a Tree-sitter-backed TypeScript/JavaScript parser
// covering .ts, .tsx, .js, .jsx, .mjs, .cjs.
func NewTSParser(logger *slog.Logger) *TSParser {
	if logger == nil {
		logger = slog.Default()
	}
	ts := sitter.NewParser()
	ts.SetLanguage(typescript.GetLanguage())
	tsxP := sitter.NewParser()
	tsxP.SetLanguage(tsx.GetLanguage())
	js := sitter.NewParser()
	js.SetLanguage(javascript.GetLanguage())

	return &TSParser{
		logger: logger,
		parsers: map[string]*sitter.Parser{
			".ts":  ts,
			".tsx": tsxP,
			".js":  js,
			".jsx": js,
			".mjs": js,
			".cjs": js,
		},
	}
}

type tsCtx struct {
	relPath      string
	content      []byte
	disambig     *Disambiguator
	funcNameToID map[string]string
	seenRefs     map[string]bool
}

func (p *TSParser) Parse(absPath, relPath string, content []byte) FileResult {
	ext := strings.ToLower(filepath.Ext(relPath))
	language := "typescript"
	if ext == ".js" || ext == ".jsx" || ext == ".mjs" || ext == ".cjs" {
		language = "javascript"
	}
	file := newFileNode(absPath, relPath, language, content)
	result := FileResult{File: file}

	parser, ok := p.parsers[ext]
	if !ok {
		parser = p.parsers[".ts"]
	}
	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		result.ParseError = fmt.Errorf("%s: tree-sitter parse: %w", language, err)
		return result
	}
	defer tree.Close()

	root := tree.RootNode()
	ctx := &tsCtx{relPath: relPath, content: content, disambig: &Disambiguator{}, funcNameToID: map[string]string{}, seenRefs: map[string]bool{}}

	type namedFunc struct {
		node *sitter.Node
		fn   FunctionNode
	}
	var funcs []namedFunc
	var classes []*sitter.Node

	var collect func(n *sitter.Node)
	collect = func(n *sitter.Node) {
		switch n.Type() {
		case "function_declaration", "generator_function_declaration":
			if fn := p.extractFunctionDecl(n, ctx); fn != nil {
				funcs = append(funcs, namedFunc{n, *fn})
			}
		case "variable_declarator":
			if fn := p.extractVariableFunc(n, ctx); fn != nil {
				funcs = append(funcs, namedFunc{n, *fn})
			}
		case "class_declaration":
			classes = append(classes, n)
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			collect(n.Child(i))
		}
	}
	collect(root)

	for _, f := range funcs {
		ctx.funcNameToID[f.fn.Name] = f.fn.ID
	}
	for _, f := range funcs {
		result.Functions = append(result.Functions, f.fn)
		result.Relations = append(result.Relations, Relation{
			Kind: RelContains, Src: file.ID, Dst: f.fn.ID, FilePath: relPath,
		})
	}

	for _, cls := range classes {
		p.extractClass(cls, ctx, &result)
	}

	p.walkImports(root, ctx, &result)

	for _, f := range funcs {
		p.walkCallsAndRefs(f.node, ctx, f.fn.ID, &result)
	}
	// Top-level calls outside any named function attach to the FileNode.
	// Ownership is keyed by byte span: the cursor API hands out distinct
	// wrapper values for the same underlying node on every traversal.
	owned := make(map[uint64]bool, len(funcs))
	for _, f := range funcs {
		owned[nodeSpan(f.node)] = true
	}
	p.walkTopLevelCalls(root, ctx, file.ID, &result, owned)

	return result
}

func isExportedTS(node *sitter.Node) bool {
	p := node.Parent()
	for p != nil {
		if p.Type() == "export_statement" {
			return true
		}
		p = p.Parent()
	}
	return false
}

func isAsyncFunc(node *sitter.Node, content []byte) bool {
	for i := 0; i < int(node.ChildCount()); i++ {
		if node.Child(i).Type() == "async" {
			return true
		}
	}
	return false
}

func (p *TSParser) extractFunctionDecl(node *sitter.Node, ctx *tsCtx) *FunctionNode {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := nameNode.Content(ctx.content)
	id := ctx.disambig.Resolve(FunctionID(ctx.relPath, name))
	return &FunctionNode{
		ID: id, Name: name, FilePath: ctx.relPath,
		Params:    paramNamesTS(node.ChildByFieldName("parameters"), ctx.content),
		StartLine: int(node.StartPoint().Row) + 1,
		EndLine:   int(node.EndPoint().Row) + 1,
		Exported:  isExportedTS(node),
		Async:     isAsyncFunc(node, ctx.content),
	}
}

// extractVariableFunc covers `const foo = () => {}` / `function(){}`
// bindings, the dominant function-expression idiom in this ecosystem.
func (p *TSParser) extractVariableFunc(node *sitter.Node, ctx *tsCtx) *FunctionNode {
	nameNode := node.ChildByFieldName("name")
	valueNode := node.ChildByFieldName("value")
	if nameNode == nil || valueNode == nil {
		return nil
	}
	switch valueNode.Type() {
	case "arrow_function", "function_expression", "function":
	default:
		return nil
	}
	name := nameNode.Content(ctx.content)
	id := ctx.disambig.Resolve(FunctionID(ctx.relPath, name))
	exported := false
	if decl := node.Parent(); decl != nil {
		if stmt := decl.Parent(); stmt != nil {
			exported = isExportedTS(stmt)
		}
	}
	return &FunctionNode{
		ID: id, Name: name, FilePath: ctx.relPath,
		Params:    paramNamesTS(valueNode.ChildByFieldName("parameters"), ctx.content),
		StartLine: int(node.StartPoint().Row) + 1,
		EndLine:   int(node.EndPoint().Row) + 1,
		Exported:  exported,
		Async:     isAsyncFunc(valueNode, ctx.content),
	}
}

func paramNamesTS(params *sitter.Node, content []byte) []string {
	if params == nil {
		return nil
	}
	var names []string
	for i := 0; i < int(params.ChildCount()); i++ {
		pnode := params.Child(i)
		switch pnode.Type() {
		case "identifier":
			names = append(names, pnode.Content(content))
		case "required_parameter", "optional_parameter":
			if pat := pnode.ChildByFieldName("pattern"); pat != nil && pat.Type() == "identifier" {
				names = append(names, pat.Content(content))
			}
		}
	}
	return names
}

func (p *TSParser) extractClass(node *sitter.Node, ctx *tsCtx, result *FileResult) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nameNode.Content(ctx.content)
	id := ctx.disambig.Resolve(ClassID(ctx.relPath, name))
	class := ClassNode{
		ID: id, Name: name, FilePath: ctx.relPath,
		StartLine: int(node.StartPoint().Row) + 1,
		EndLine:   int(node.EndPoint().Row) + 1,
		Exported:  isExportedTS(node),
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		if c := node.Child(i); c.Type() == "class_heritage" {
			p.extractHeritage(c, ctx, id, &class, result)
		}
	}

	result.Classes = append(result.Classes, class)
	result.Relations = append(result.Relations, Relation{
		Kind: RelContains, Src: result.File.ID, Dst: id, FilePath: ctx.relPath,
	})

	body := node.ChildByFieldName("body")
	if body == nil {
		return
	}
	for i := 0; i < int(body.ChildCount()); i++ {
		member := body.Child(i)
		if member.Type() != "method_definition" {
			continue
		}
		p.extractMethod(member, ctx, name, id, result)
	}
}

func (p *TSParser) extractHeritage(heritage *sitter.Node, ctx *tsCtx, classID string, class *ClassNode, result *FileResult) {
	for i := 0; i < int(heritage.ChildCount()); i++ {
		clause := heritage.Child(i)
		isExtends := clause.Type() == "extends_clause"
		isImplements := clause.Type() == "implements_clause"
		if !isExtends && !isImplements {
			continue
		}
		for j := 0; j < int(clause.ChildCount()); j++ {
			id := clause.Child(j)
			if id.Type() != "identifier" && id.Type() != "type_identifier" {
				continue
			}
			name := id.Content(ctx.content)
			if isExtends {
				class.Parent = name
			} else {
				class.Interfaces = append(class.Interfaces, name)
				result.Relations = append(result.Relations, Relation{
					Kind: RelImplements, Src: classID, Dst: name, FilePath: ctx.relPath,
				})
			}
		}
	}
}

func (p *TSParser) extractMethod(node *sitter.Node, ctx *tsCtx, className, classID string, result *FileResult) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nameNode.Content(ctx.content)
	id := ctx.disambig.Resolve(MethodID(ctx.relPath, className, name))
	fn := FunctionNode{
		ID: id, Name: name, FilePath: ctx.relPath, ClassName: className, IsMethod: true,
		Params:    paramNamesTS(node.ChildByFieldName("parameters"), ctx.content),
		StartLine: int(node.StartPoint().Row) + 1,
		EndLine:   int(node.EndPoint().Row) + 1,
		Async:     isAsyncFunc(node, ctx.content),
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if node.Child(i).Type() == "accessibility_modifier" {
			switch node.Child(i).Content(ctx.content) {
			case "private":
				fn.Visibility = VisibilityPrivate
			case "protected":
				fn.Visibility = VisibilityProtected
			default:
				fn.Visibility = VisibilityPublic
			}
		}
	}
	if fn.Visibility == "" {
		fn.Visibility = VisibilityPublic
	}
	ctx.funcNameToID[name] = id
	result.Functions = append(result.Functions, fn)
	result.Relations = append(result.Relations, Relation{
		Kind: RelContains, Src: classID, Dst: id, FilePath: ctx.relPath,
	})
	body := node.ChildByFieldName("body")
	if body != nil {
		p.walkCallsAndRefs(body, ctx, id, result)
	}
}

func (p *TSParser) walkImports(root *sitter.Node, ctx *tsCtx, result *FileResult) {
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		if n.Type() == "import_statement" {
			p.extractImport(n, ctx, result)
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			visit(n.Child(i))
		}
	}
	visit(root)
}

func (p *TSParser) extractImport(node *sitter.Node, ctx *tsCtx, result *FileResult) {
	var source *sitter.Node
	var clause *sitter.Node
	for i := 0; i < int(node.ChildCount()); i++ {
		c := node.Child(i)
		switch c.Type() {
		case "string":
			source = c
		case "import_clause":
			clause = c
		}
	}
	if source == nil {
		return
	}
	specifier := strings.Trim(source.Content(ctx.content), `"'`)
	rel := Relation{
		Kind: RelImports, Src: result.File.ID, Dst: ModuleID(specifier), DstResolved: true,
		FilePath: ctx.relPath, Line: int(node.StartPoint().Row) + 1,
		ImportedNames: nil, Default: false,
	}
	if clause == nil {
		// Side-effect import: `import './foo';`
		result.Relations = append(result.Relations, rel)
		return
	}
	var names []string
	hasDefault := false
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "identifier":
			if n.Parent() == clause {
				hasDefault = true
				names = append(names, n.Content(ctx.content))
				return
			}
		case "import_specifier":
			nameNode := n.ChildByFieldName("name")
			if nameNode != nil {
				names = append(names, nameNode.Content(ctx.content))
			}
		case "namespace_import":
			names = append(names, n.Content(ctx.content))
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(clause)
	rel.ImportedNames = names
	rel.Default = hasDefault
	result.Relations = append(result.Relations, rel)
}

func (p *TSParser) walkCallsAndRefs(node *sitter.Node, ctx *tsCtx, callerID string, result *FileResult) {
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		switch n.Type() {
		case "call_expression":
			p.extractCall(n, ctx, callerID, result)
		case "new_expression":
			p.extractNew(n, ctx, callerID, result)
		case "identifier":
			p.extractReference(n, ctx, callerID, ReferenceIdentifier, result)
		case "type_identifier":
			p.extractReference(n, ctx, callerID, ReferenceType, result)
		case "property_identifier":
			p.extractReference(n, ctx, callerID, ReferenceProperty, result)
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			visit(n.Child(i))
		}
	}
	visit(node)
}

// sameNode compares two Tree-sitter nodes by their byte span; the cursor
// API hands out distinct wrapper values for the same underlying node.
func sameNode(a, b *sitter.Node) bool {
	return a != nil && b != nil && a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte()
}

// nodeSpan packs a node's byte span into a map key.
func nodeSpan(n *sitter.Node) uint64 {
	return uint64(n.StartByte())<<32 | uint64(n.EndByte())
}

// extractReference emits a REFERENCES edge for an identifier use, skipping
// declaration sites, call callees and property names of a call target.
func (p *TSParser) extractReference(n *sitter.Node, ctx *tsCtx, callerID string, kind ReferenceKind, result *FileResult) {
	parent := n.Parent()
	if parent == nil {
		return
	}
	switch parent.Type() {
	case "variable_declarator", "function_declaration", "generator_function_declaration",
		"class_declaration", "method_definition", "required_parameter",
		"optional_parameter", "formal_parameters", "import_specifier",
		"import_clause", "namespace_import", "property_signature",
		"pair", "shorthand_property_identifier":
		return
	case "call_expression":
		if sameNode(parent.ChildByFieldName("function"), n) {
			return
		}
	case "new_expression":
		if sameNode(parent.ChildByFieldName("constructor"), n) {
			return
		}
	case "member_expression":
		if gp := parent.Parent(); gp != nil && gp.Type() == "call_expression" &&
			sameNode(gp.ChildByFieldName("function"), parent) &&
			sameNode(parent.ChildByFieldName("property"), n) {
			return
		}
	}
	name := n.Content(ctx.content)
	if name == "" {
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

// walkTopLevelCalls attaches calls made outside any named function (e.g.
// module-level side-effect calls) to the FileNode, skipping subtrees
// already walked as part of a named function/method body.
func (p *TSParser) walkTopLevelCalls(root *sitter.Node, ctx *tsCtx, fileID string, result *FileResult, owned map[uint64]bool) {
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		if owned[nodeSpan(n)] || n.Type() == "method_definition" {
			return
		}
		switch n.Type() {
		case "call_expression":
			p.extractCall(n, ctx, fileID, result)
		case "new_expression":
			p.extractNew(n, ctx, fileID, result)
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			visit(n.Child(i))
		}
	}
	visit(root)
}

func (p *TSParser) extractCall(n *sitter.Node, ctx *tsCtx, callerID string, result *FileResult) {
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return
	}
	line := int(n.StartPoint().Row) + 1
	switch fn.Type() {
	case "identifier":
		name := fn.Content(ctx.content)
		if id, ok := ctx.funcNameToID[name]; ok && id != callerID {
			result.Relations = append(result.Relations, Relation{
				Kind: RelCalls, Src: callerID, Dst: id, DstResolved: true,
				CallKind: CallDirect, FilePath: ctx.relPath, Line: line,
			})
			return
		}
		result.Relations = append(result.Relations, Relation{
			Kind: RelCalls, Src: callerID, Dst: name, DstResolved: false,
			CallKind: CallDirect, FilePath: ctx.relPath, Line: line,
		})
	case "member_expression":
		property := fn.ChildByFieldName("property")
		if property == nil {
			return
		}
		name := property.Content(ctx.content)
		result.Relations = append(result.Relations, Relation{
			Kind: RelCalls, Src: callerID, Dst: name, DstResolved: false,
			CallKind: CallMethod, FilePath: ctx.relPath, Line: line,
		})
	}
}

func (p *TSParser) extractNew(n *sitter.Node, ctx *tsCtx, callerID string, result *FileResult) {
	ctor := n.ChildByFieldName("constructor")
	if ctor == nil {
		return
	}
	var name string
	switch ctor.Type() {
	case "identifier", "type_identifier":
		name = ctor.Content(ctx.content)
	default:
		name = ctor.Content(ctx.content)
	}
	result.Relations = append(result.Relations, Relation{
		Kind: RelInstantiates, Src: callerID, Dst: name,
		FilePath: ctx.relPath, Line: int(n.StartPoint().Row) + 1,
	})
}
