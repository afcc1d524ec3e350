// Package outline reads the structure of Jest-style test files from their
// syntax tree, without executing them, and predicts the order in which their
// hooks and tests would run.
package outline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Language names a supported grammar.
type Language string

const (
	LanguageJavaScript Language = "javascript"
	LanguageTypeScript Language = "typescript"
	LanguageTSX        Language = "tsx"
)

var (
	jsLang  *sitter.Language
	tsLang  *sitter.Language
	tsxLang *sitter.Language

	langOnce sync.Once
)

func initLanguages() {
	langOnce.Do(func() {
		jsLang = javascript.GetLanguage()
		tsLang = typescript.GetLanguage()
		tsxLang = tsx.GetLanguage()
	})
}

// DetectLanguage picks the grammar from the file extension.
func DetectLanguage(filename string) Language {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".js", ".jsx", ".mjs", ".cjs":
		return LanguageJavaScript
	case ".tsx":
		return LanguageTSX
	default:
		return LanguageTypeScript
	}
}

func grammar(lang Language) *sitter.Language {
	initLanguages()
	switch lang {
	case LanguageJavaScript:
		return jsLang
	case LanguageTSX:
		return tsxLang
	default:
		return tsLang
	}
}

// parseTree parses source with a fresh parser.
// Parsers are not reused: a cancelled parse leaves the parser unusable.
// Caller must Close the returned tree.
func parseTree(ctx context.Context, lang Language, source []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar(lang))

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse %s failed: %w", lang, err)
	}
	return tree, nil
}
