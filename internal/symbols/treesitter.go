//go:build cgo

// Package symbols provides tree-sitter based symbol extraction, the
// contract.SymbolExtractor implementation backing internal/symidx's
// rebuild path when the on-disk index is missing or stale.
package symbols

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"corectx/internal/complexity"
	"corectx/internal/contract"
)

// Extractor extracts symbols from source files using tree-sitter.
type Extractor struct {
	parser *complexity.Parser
}

// NewExtractor creates a new symbol extractor.
func NewExtractor() *Extractor {
	return &Extractor{
		parser: complexity.NewParser(),
	}
}

// Extract implements contract.SymbolExtractor for a single file.
func (e *Extractor) Extract(ctx context.Context, path string) ([]contract.Symbol, error) {
	return e.ExtractFile(ctx, path)
}

// ExtractFile extracts all symbols from a single file.
func (e *Extractor) ExtractFile(ctx context.Context, path string) ([]contract.Symbol, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(path))
	lang, ok := complexity.LanguageFromExtension(ext)
	if !ok {
		return nil, nil // Unsupported language, return empty
	}

	return e.ExtractSource(ctx, path, source, lang)
}

// ExtractSource extracts symbols from source bytes.
func (e *Extractor) ExtractSource(ctx context.Context, path string, source []byte, lang complexity.Language) ([]contract.Symbol, error) {
	root, err := e.parser.Parse(ctx, source, lang)
	if err != nil {
		return nil, err
	}

	var syms []contract.Symbol

	// Extract functions
	functionTypes := getFunctionNodeTypes(lang)
	functions := findNodes(root, functionTypes)
	for _, fn := range functions {
		sym := e.extractFunction(fn, source, lang, path, "")
		if sym != nil {
			syms = append(syms, *sym)
		}
	}

	// Extract classes/types/interfaces
	classTypes := getClassNodeTypes(lang)
	classes := findNodes(root, classTypes)
	for _, cls := range classes {
		name := getClassName(cls, source, lang)
		sym := e.extractClass(cls, source, lang, path)
		if sym != nil {
			syms = append(syms, *sym)
			// Extract methods inside the class
			methods := e.extractMethods(cls, source, lang, path, name)
			syms = append(syms, methods...)
		}
	}

	return syms, nil
}

// ExtractDirectory walks a directory and extracts all symbols.
func (e *Extractor) ExtractDirectory(ctx context.Context, root string, filter func(string) bool) ([]contract.Symbol, error) {
	var allSymbols []contract.Symbol

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if info.IsDir() {
			// Skip hidden directories and common non-source directories
			name := info.Name()
			if strings.HasPrefix(name, ".") || name == "node_modules" || name == "vendor" || name == "__pycache__" {
				return filepath.SkipDir
			}
			return nil
		}

		// Check if file matches filter
		if filter != nil && !filter(path) {
			return nil
		}

		// Check if it's a supported file type
		ext := strings.ToLower(filepath.Ext(path))
		if _, ok := complexity.LanguageFromExtension(ext); !ok {
			return nil
		}

		syms, err := e.ExtractFile(ctx, path)
		if err != nil {
			return nil // Skip files with errors
		}

		allSymbols = append(allSymbols, syms...)
		return nil
	})

	if err != nil {
		return nil, err
	}

	return allSymbols, nil
}

// symbolID derives a stable ID from location: no two symbols share a file
// and start line, so "path:line:name" is unique without a separate
// counter or hash.
func symbolID(path string, line int, name string) string {
	return fmt.Sprintf("%s:%d:%s", path, line, name)
}

// extractFunction extracts a symbol from a function node.
func (e *Extractor) extractFunction(node *sitter.Node, source []byte, lang complexity.Language, path, container string) *contract.Symbol {
	name := getFunctionName(node, source, lang)
	if name == "" || name == "<unknown>" {
		return nil
	}

	kind := "function"
	if node.Type() == "method_declaration" || node.Type() == "method_definition" {
		kind = "method"
	}
	// Detect if it's a method based on container
	if container != "" {
		kind = "method"
	}

	fqn := name
	if container != "" {
		fqn = container + "." + name
	}

	startLine := int(node.StartPoint().Row) + 1
	return &contract.Symbol{
		ID:         symbolID(path, startLine, name),
		Name:       name,
		FQN:        fqn,
		Kind:       kind,
		Language:   string(lang),
		Visibility: string(inferVisibility(name, lang, node, source)),
		Doc:        precedingDocComment(node, source, lang),
		File:       path,
		StartLine:  startLine,
		EndLine:    int(node.EndPoint().Row) + 1,
		StartByte:  int(node.StartByte()),
		EndByte:    int(node.EndByte()),
	}
}

// extractClass extracts a symbol from a class/type node.
func (e *Extractor) extractClass(node *sitter.Node, source []byte, lang complexity.Language, path string) *contract.Symbol {
	name := getClassName(node, source, lang)
	if name == "" {
		return nil
	}

	kind := getClassKind(node, lang)

	startLine := int(node.StartPoint().Row) + 1
	return &contract.Symbol{
		ID:         symbolID(path, startLine, name),
		Name:       name,
		FQN:        name,
		Kind:       kind,
		Language:   string(lang),
		Visibility: string(inferVisibility(name, lang, node, source)),
		Doc:        precedingDocComment(node, source, lang),
		File:       path,
		StartLine:  startLine,
		EndLine:    int(node.EndPoint().Row) + 1,
		StartByte:  int(node.StartByte()),
		EndByte:    int(node.EndByte()),
	}
}

// extractMethods extracts method symbols from inside a class/type.
func (e *Extractor) extractMethods(classNode *sitter.Node, source []byte, lang complexity.Language, path, className string) []contract.Symbol {
	var methods []contract.Symbol

	methodTypes := getMethodNodeTypes(lang)
	methodNodes := findNodes(classNode, methodTypes)

	for _, m := range methodNodes {
		sym := e.extractFunction(m, source, lang, path, className)
		if sym != nil {
			methods = append(methods, *sym)
		}
	}

	return methods
}

// getFunctionNodeTypes returns node types for functions (not methods inside classes).
func getFunctionNodeTypes(lang complexity.Language) []string {
	switch lang {
	case complexity.LangGo:
		return []string{"function_declaration", "method_declaration"}
	case complexity.LangJavaScript, complexity.LangTypeScript, complexity.LangTSX:
		return []string{"function_declaration", "arrow_function", "generator_function_declaration"}
	case complexity.LangPython:
		return []string{"function_definition"}
	case complexity.LangRust:
		return []string{"function_item"}
	case complexity.LangJava:
		// Top-level methods are inside class bodies, handled separately
		return []string{}
	case complexity.LangKotlin:
		return []string{"function_declaration"}
	default:
		return nil
	}
}

// getClassNodeTypes returns node types for classes/types/interfaces.
func getClassNodeTypes(lang complexity.Language) []string {
	switch lang {
	case complexity.LangGo:
		return []string{"type_declaration"}
	case complexity.LangJavaScript, complexity.LangTypeScript, complexity.LangTSX:
		return []string{"class_declaration", "interface_declaration"}
	case complexity.LangPython:
		return []string{"class_definition"}
	case complexity.LangRust:
		return []string{"struct_item", "enum_item", "trait_item", "impl_item"}
	case complexity.LangJava:
		return []string{"class_declaration", "interface_declaration", "enum_declaration"}
	case complexity.LangKotlin:
		return []string{"class_declaration", "interface_declaration", "object_declaration"}
	default:
		return nil
	}
}

// getMethodNodeTypes returns node types for methods inside classes.
func getMethodNodeTypes(lang complexity.Language) []string {
	switch lang {
	case complexity.LangGo:
		return nil // Go methods are at top level with receivers
	case complexity.LangJavaScript, complexity.LangTypeScript, complexity.LangTSX:
		return []string{"method_definition"}
	case complexity.LangPython:
		return []string{"function_definition"}
	case complexity.LangRust:
		return []string{"function_item"} // Inside impl blocks
	case complexity.LangJava:
		return []string{"method_declaration", "constructor_declaration"}
	case complexity.LangKotlin:
		return []string{"function_declaration"}
	default:
		return nil
	}
}

// getFunctionName extracts the function name from a node.
func getFunctionName(node *sitter.Node, source []byte, lang complexity.Language) string {
	var nameNode *sitter.Node

	switch lang {
	case complexity.LangGo:
		nameNode = node.ChildByFieldName("name")
		if nameNode == nil {
			for i := uint32(0); i < node.ChildCount(); i++ {
				child := node.Child(int(i))
				if child != nil && child.Type() == "identifier" {
					nameNode = child
					break
				}
			}
		}

	case complexity.LangJavaScript, complexity.LangTypeScript, complexity.LangTSX:
		nameNode = node.ChildByFieldName("name")

	case complexity.LangPython:
		nameNode = node.ChildByFieldName("name")

	case complexity.LangRust:
		nameNode = node.ChildByFieldName("name")

	case complexity.LangJava:
		nameNode = node.ChildByFieldName("name")

	case complexity.LangKotlin:
		for i := uint32(0); i < node.ChildCount(); i++ {
			child := node.Child(int(i))
			if child != nil && child.Type() == "simple_identifier" {
				nameNode = child
				break
			}
		}
	}

	if nameNode != nil {
		return string(source[nameNode.StartByte():nameNode.EndByte()])
	}

	// Check for anonymous functions
	switch node.Type() {
	case "arrow_function", "func_literal", "lambda", "lambda_expression",
		"closure_expression", "lambda_literal", "anonymous_function":
		return "<anonymous>"
	}

	return ""
}

// getClassName extracts the class/type name from a node.
func getClassName(node *sitter.Node, source []byte, lang complexity.Language) string {
	var nameNode *sitter.Node

	switch lang {
	case complexity.LangGo:
		// type_declaration has type_spec child which has the name
		for i := uint32(0); i < node.ChildCount(); i++ {
			child := node.Child(int(i))
			if child != nil && child.Type() == "type_spec" {
				nameNode = child.ChildByFieldName("name")
				break
			}
		}

	case complexity.LangJavaScript, complexity.LangTypeScript, complexity.LangTSX:
		nameNode = node.ChildByFieldName("name")

	case complexity.LangPython:
		nameNode = node.ChildByFieldName("name")

	case complexity.LangRust:
		nameNode = node.ChildByFieldName("name")
		// For impl blocks, try to get the type being implemented
		if nameNode == nil && node.Type() == "impl_item" {
			// impl_item has type child
			for i := uint32(0); i < node.ChildCount(); i++ {
				child := node.Child(int(i))
				if child != nil && child.Type() == "type_identifier" {
					nameNode = child
					break
				}
			}
		}

	case complexity.LangJava, complexity.LangKotlin:
		nameNode = node.ChildByFieldName("name")
		if nameNode == nil {
			// Try identifier
			for i := uint32(0); i < node.ChildCount(); i++ {
				child := node.Child(int(i))
				if child != nil && (child.Type() == "identifier" || child.Type() == "simple_identifier") {
					nameNode = child
					break
				}
			}
		}
	}

	if nameNode != nil {
		return string(source[nameNode.StartByte():nameNode.EndByte()])
	}

	return ""
}

// getClassKind determines the kind of class/type node.
func getClassKind(node *sitter.Node, lang complexity.Language) string {
	nodeType := node.Type()

	switch lang {
	case complexity.LangGo:
		return "type" // Go has type declarations (struct, interface, etc.)

	case complexity.LangJavaScript, complexity.LangTypeScript, complexity.LangTSX:
		if nodeType == "interface_declaration" {
			return "interface"
		}
		return "class"

	case complexity.LangPython:
		return "class"

	case complexity.LangRust:
		switch nodeType {
		case "struct_item":
			return "type"
		case "enum_item":
			return "type"
		case "trait_item":
			return "interface"
		case "impl_item":
			return "type" // impl blocks extend types
		}
		return "type"

	case complexity.LangJava, complexity.LangKotlin:
		switch nodeType {
		case "interface_declaration":
			return "interface"
		case "enum_declaration":
			return "type"
		case "object_declaration": // Kotlin object
			return "class"
		}
		return "class"
	}

	return "type"
}

// findNodes finds all nodes of the given types in the AST.
func findNodes(root *sitter.Node, types []string) []*sitter.Node {
	if len(types) == 0 {
		return nil
	}

	var result []*sitter.Node

	var walk func(*sitter.Node)
	walk = func(node *sitter.Node) {
		if node == nil {
			return
		}

		if contains(types, node.Type()) {
			result = append(result, node)
		}

		for i := uint32(0); i < node.ChildCount(); i++ {
			walk(node.Child(int(i)))
		}
	}

	walk(root)
	return result
}

// contains checks if a slice contains a string.
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// inferVisibility classifies a symbol's access scope from its name and,
// where the grammar exposes one, a leading visibility modifier node
// (spec.md §3 Symbol). Best-effort: a language whose convention this
// doesn't recognize falls back to VisUnknown rather than guessing.
func inferVisibility(name string, lang complexity.Language, node *sitter.Node, source []byte) Visibility {
	switch lang {
	case complexity.LangGo:
		if name == "" {
			return VisUnknown
		}
		r := []rune(name)[0]
		if r >= 'A' && r <= 'Z' {
			return VisPublic
		}
		return VisPrivate

	case complexity.LangRust:
		mod := modifierText(node, source)
		switch {
		case strings.Contains(mod, "pub(crate)"):
			return VisCrate
		case strings.Contains(mod, "pub"):
			return VisPublic
		default:
			return VisPrivate
		}

	case complexity.LangJava, complexity.LangKotlin:
		mod := modifierText(node, source)
		switch {
		case strings.Contains(mod, "private"):
			return VisPrivate
		case strings.Contains(mod, "public"):
			return VisPublic
		case strings.Contains(mod, "protected"):
			return VisCrate
		default:
			// Package-private default in both languages: visible within
			// the module but not a public API surface.
			return VisCrate
		}

	case complexity.LangPython:
		switch {
		case strings.HasPrefix(name, "__") && !strings.HasSuffix(name, "__"):
			return VisPrivate
		case strings.HasPrefix(name, "_"):
			return VisCrate
		default:
			return VisPublic
		}

	case complexity.LangJavaScript, complexity.LangTypeScript, complexity.LangTSX:
		if strings.HasPrefix(name, "_") {
			return VisPrivate
		}
		return VisPublic

	default:
		return VisUnknown
	}
}

// modifierText finds a leading modifiers/visibility_modifier child of
// node, if the grammar has one, and returns its source text.
func modifierText(node *sitter.Node, source []byte) string {
	for i := uint32(0); i < node.ChildCount(); i++ {
		child := node.Child(int(i))
		if child == nil {
			continue
		}
		if child.Type() == "visibility_modifier" || child.Type() == "modifiers" {
			return string(source[child.StartByte():child.EndByte()])
		}
	}
	return ""
}

// precedingDocComment returns the text of a comment node immediately
// preceding node (no intervening blank line), treated as node's doc
// string. Empty when no such comment exists.
func precedingDocComment(node *sitter.Node, source []byte, lang complexity.Language) string {
	parent := node.Parent()
	if parent == nil {
		return ""
	}

	var prev *sitter.Node
	for i := uint32(0); i < parent.ChildCount(); i++ {
		child := parent.Child(int(i))
		if child == node {
			break
		}
		prev = child
	}
	if prev == nil || !strings.Contains(prev.Type(), "comment") {
		return ""
	}
	if int(prev.EndPoint().Row)+1 != int(node.StartPoint().Row) {
		return ""
	}

	text := string(source[prev.StartByte():prev.EndByte()])
	return strings.TrimSpace(stripCommentMarkers(text))
}

func stripCommentMarkers(text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		l = strings.TrimSpace(l)
		l = strings.TrimPrefix(l, "///")
		l = strings.TrimPrefix(l, "//!")
		l = strings.TrimPrefix(l, "//")
		l = strings.TrimPrefix(l, "/**")
		l = strings.TrimPrefix(l, "/*")
		l = strings.TrimSuffix(l, "*/")
		l = strings.TrimPrefix(strings.TrimSpace(l), "*")
		l = strings.TrimPrefix(l, "#")
		lines[i] = strings.TrimSpace(l)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// IsAvailable returns whether symbol extraction is available.
func IsAvailable() bool {
	return complexity.IsAvailable()
}
