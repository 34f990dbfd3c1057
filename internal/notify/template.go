// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

package notify

import (
	_ "embed"
	"fmt"
	"html"
	"os"
	"regexp"
)

//go:embed alert_email.html
var defaultTemplate string

// placeholderPattern matches [key] placeholders.
var placeholderPattern = regexp.MustCompile(`\[([A-Za-z0-9_]+)\]`)

// Template is an HTML body with [key] placeholders. Unknown keys are left
// as they are so a typo stays visible in the delivered mail.
type Template struct {
	body string
}

// DefaultTemplate returns the built-in alert email.
func DefaultTemplate() *Template {
	return &Template{body: defaultTemplate}
}

// NewTemplate wraps body.
func NewTemplate(body string) *Template {
	return &Template{body: body}
}

// LoadTemplate reads a template from path, or returns the built-in one
// when path is empty.
func LoadTemplate(path string) (*Template, error) {
	if path == "" {
		return DefaultTemplate(), nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // operator-provided path
	if err != nil {
		return nil, fmt.Errorf("read mail template: %w", err)
	}
	return NewTemplate(string(data)), nil
}

// Render substitutes vars. Values are HTML-escaped.
func (t *Template) Render(vars map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(t.body, func(m string) string {
		key := m[1 : len(m)-1]
		if v, ok := vars[key]; ok {
			return html.EscapeString(v)
		}
		return m
	})
}
