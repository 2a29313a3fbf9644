package util

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"
)

// templateFuncs are available to every instruction template.
var templateFuncs = template.FuncMap{
	"default": func(fallback, v any) any {
		if v == nil || v == "" {
			return fallback
		}
		return v
	},
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"join": func(sep string, v any) string {
		switch items := v.(type) {
		case []string:
			return strings.Join(items, sep)
		case []any:
			parts := make([]string, 0, len(items))
			for _, item := range items {
				parts = append(parts, fmt.Sprint(item))
			}
			return strings.Join(parts, sep)
		}
		return fmt.Sprint(v)
	},
	"today": func() string { return time.Now().Format(time.DateOnly) },
	"now":   func() string { return time.Now().Format(time.RFC3339) },
}

// RenderTemplate renders an instruction against run variables. Missing keys
// render as the zero value. Text without "{{" is returned as is.
func RenderTemplate(text string, vars map[string]any) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}

	tmpl, err := template.New("instruction").Funcs(templateFuncs).Option("missingkey=zero").Parse(text)
	if err != nil {
		return "", fmt.Errorf("instruction template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("instruction template: %w", err)
	}
	return buf.String(), nil
}
