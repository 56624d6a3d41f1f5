// Package pattern compiles and evaluates the regex rules driving file
// validation, renaming, and output-folder organization.
//
// All patterns are compiled once at startup; a pattern that does not
// compile is a fatal configuration error, never a per-file error.
package pattern

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/hlsforge/hlsforge/internal/models"
)

// Pattern is a compiled rule. It keeps the expression as supplied for
// first-match evaluation, plus an anchored form so validation can demand
// that the match spans the entire input even when the caller supplied an
// unanchored expression.
type Pattern struct {
	expr string
	re   *regexp.Regexp
	full *regexp.Regexp
}

// Compile compiles expr. caseInsensitive prepends (?i); the default is
// case-sensitive matching.
func Compile(expr string, caseInsensitive bool) (*Pattern, error) {
	src := expr
	if caseInsensitive {
		src = "(?i)" + src
	}

	re, err := regexp.Compile(src)
	if err != nil {
		return nil, models.NewConfigError("pattern", "invalid regular expression "+quote(expr), err)
	}
	full, err := regexp.Compile("^(?:" + src + ")$")
	if err != nil {
		return nil, models.NewConfigError("pattern", "invalid regular expression "+quote(expr), err)
	}

	return &Pattern{expr: expr, re: re, full: full}, nil
}

func quote(s string) string { return "\"" + s + "\"" }

// Expr returns the expression the pattern was compiled from.
func (p *Pattern) Expr() string { return p.expr }

// MatchFull reports whether the entire input matches the pattern.
// The empty string only matches a pattern that accepts emptiness.
func (p *Pattern) MatchFull(s string) bool {
	return p.full.MatchString(s)
}

// ExtractFirst returns the capture groups of the leftmost match, in
// order. ok is false when the pattern does not match at all. A pattern
// without capture groups yields an empty slice on match.
func (p *Pattern) ExtractFirst(s string) (groups []string, ok bool) {
	m := p.re.FindStringSubmatch(s)
	if m == nil {
		return nil, false
	}
	return m[1:], true
}

// Engine bundles the three independently configured rules.
type Engine struct {
	validation   *Pattern
	rename       *Pattern
	organization *Pattern
}

// Rules holds the three pattern expressions plus shared options.
type Rules struct {
	Validation      string
	Rename          string
	Organization    string
	CaseInsensitive bool
}

// NewEngine compiles all three rules. Any compile failure aborts with a
// ConfigError naming the offending rule.
func NewEngine(rules Rules) (*Engine, error) {
	validation, err := Compile(rules.Validation, rules.CaseInsensitive)
	if err != nil {
		return nil, models.NewConfigError("file_validation_pattern", "does not compile", err)
	}
	rename, err := Compile(rules.Rename, rules.CaseInsensitive)
	if err != nil {
		return nil, models.NewConfigError("file_rename_pattern", "does not compile", err)
	}
	organization, err := Compile(rules.Organization, rules.CaseInsensitive)
	if err != nil {
		return nil, models.NewConfigError("folder_organization_pattern", "does not compile", err)
	}
	return &Engine{validation: validation, rename: rename, organization: organization}, nil
}

// Validate reports whether the entire filename matches the validation
// rule. Partial matches are rejected.
func (e *Engine) Validate(filename string) bool {
	return e.validation.MatchFull(filename)
}

// Rename rebuilds filename as `<identifier>.<original extension>` from
// the first capture group of the leftmost rename-rule match. Files the
// rule does not match flow through unchanged (changed == false, no
// error). Renaming an already-canonical name returns it unchanged.
func (e *Engine) Rename(filename string) (newName string, changed bool) {
	groups, ok := e.rename.ExtractFirst(filename)
	if !ok {
		return filename, false
	}

	identifier := firstNonEmpty(groups)
	if identifier == "" {
		return filename, false
	}

	newName = identifier + filepath.Ext(filename)
	return newName, newName != filename
}

// Identifier extracts the canonical identifier from a filename: the
// first capture group of the rename rule when it matches, otherwise the
// filename without its extension.
func (e *Engine) Identifier(filename string) string {
	if groups, ok := e.rename.ExtractFirst(filename); ok {
		if id := firstNonEmpty(groups); id != "" {
			return id
		}
	}
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}

// OrganizeParent returns the parent folder name a completed output
// folder should be relocated under. The rule is evaluated against the
// terminal folder name only. ok is false when the folder should stay at
// the top level.
func (e *Engine) OrganizeParent(folderName string) (parent string, ok bool) {
	groups, found := e.organization.ExtractFirst(folderName)
	if !found {
		return "", false
	}
	parent = firstNonEmpty(groups)
	return parent, parent != ""
}

func firstNonEmpty(groups []string) string {
	for _, g := range groups {
		if g != "" {
			return g
		}
	}
	return ""
}
