package grub2

import "strings"

// Env is a grub2 variable environment with a handful of built-in
// variables petitboot's evaluator maintains directly (spec.md §4.5).
type Env struct {
	vars map[string]string
}

// NewEnv returns an empty environment.
func NewEnv() *Env {
	return &Env{vars: map[string]string{}}
}

// Get returns a variable's value, or "" if unset.
func (e *Env) Get(name string) string {
	return e.vars[name]
}

// Set assigns a variable.
func (e *Env) Set(name, value string) {
	e.vars[name] = value
}

// Unset removes a variable.
func (e *Env) Unset(name string) {
	delete(e.vars, name)
}

// expandWords resolves scanned words against the environment: a wordVar
// expands to the variable's value (split into fields here unless noSplit),
// and a wordText containing embedded placeholders (from
// double-quoted "$var" references) has them substituted in place.
func expandWords(env *Env, words []word) []string {
	var out []string

	for _, w := range words {
		switch w.kind {
		case wordVar:
			val := env.Get(w.text)
			if w.noSplit || val == "" {
				out = append(out, val)
				continue
			}
			out = append(out, strings.Fields(val)...)
		case wordText:
			out = append(out, substitutePlaceholders(env, w.text))
		}
	}

	return out
}

// substitutePlaceholders replaces the \x00VAR:name\x00 markers left by
// the scanner for variable references found inside double-quoted text.
func substitutePlaceholders(env *Env, s string) string {
	if !strings.Contains(s, placeholderPrefix) {
		return s
	}

	var out strings.Builder
	for {
		idx := strings.Index(s, placeholderPrefix)
		if idx < 0 {
			out.WriteString(s)
			break
		}
		out.WriteString(s[:idx])
		rest := s[idx+len(placeholderPrefix):]
		end := strings.IndexByte(rest, 0)
		if end < 0 {
			out.WriteString(rest)
			break
		}
		name := rest[:end]
		out.WriteString(env.Get(name))
		s = rest[end+1:]
	}

	return out.String()
}
