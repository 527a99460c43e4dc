package notify

import (
	"context"
	"html"
	"regexp"
	"strings"
	"unicode"

	"github.com/UrbanUnderflow/QuickLifts-Web-sub010/internal/domain"
	"github.com/UrbanUnderflow/QuickLifts-Web-sub010/internal/store"
)

// Vars is the variable bag substituted into stored or override templates.
// Compiled-in fallback HTML has its variables inlined as code and is never
// run through substitution.
type Vars map[string]string

var tokenRe = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// TemplateResolver produces final (subject, html) text through the override
// chain: caller override, stored template, compiled-in default.
type TemplateResolver struct {
	store store.Store
}

func NewTemplateResolver(s store.Store) *TemplateResolver {
	return &TemplateResolver{store: s}
}

// Resolve applies the three-tier chain. A full override pair wins outright;
// otherwise stored template fields are used where present; any field still
// empty falls back to the compiled-in default. Substitution runs only on
// stored or override text.
func (r *TemplateResolver) Resolve(ctx context.Context, sequenceID, fallbackSubject, fallbackHTML string, vars Vars, subjectOverride, htmlOverride string) (string, string) {
	if subjectOverride != "" && htmlOverride != "" {
		return renderTokens(subjectOverride, vars), renderTokens(htmlOverride, vars)
	}

	// Template fetch trouble never fails a send; the compiled-in default
	// still goes out.
	var stored domain.Template
	if doc, err := r.store.Get(ctx, domain.CollectionTemplates, sequenceID); err == nil {
		_ = doc.DataTo(&stored)
	}

	subject := fallbackSubject
	if stored.Subject != "" {
		subject = renderTokens(stored.Subject, vars)
	}
	body := fallbackHTML
	if stored.HTML != "" {
		body = renderTokens(stored.HTML, vars)
	}
	return subject, body
}

// renderTokens replaces {{token}} placeholders. Lookup is tolerant of case
// and snake_case spellings; unknown tokens render as empty string; values are
// HTML-escaped.
func renderTokens(text string, vars Vars) string {
	table := lookupTable(vars)
	return tokenRe.ReplaceAllStringFunc(text, func(tok string) string {
		name := tokenRe.FindStringSubmatch(tok)[1]
		if v, ok := table[name]; ok {
			return v
		}
		return table[strings.ToLower(name)]
	})
}

// lookupTable indexes every variable under its original key, its lowercase
// form, and its snake_case form, pre-escaped.
func lookupTable(vars Vars) map[string]string {
	table := make(map[string]string, len(vars)*3)
	for k, v := range vars {
		escaped := html.EscapeString(v)
		table[k] = escaped
		table[strings.ToLower(k)] = escaped
		table[snakeCase(k)] = escaped
	}
	return table
}

func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
