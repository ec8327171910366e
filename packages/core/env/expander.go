package env

import (
	"os"
	"regexp"
	"strings"
	"sync"
)

var variablePattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// WarnFunc is a function type for handling warnings
type WarnFunc func(format string, args ...any)

// Expander replaces ${VAR} references. Variables set on the expander take
// precedence over the process environment. ${VAR:-default} yields default
// when VAR is unset or empty. Unresolved references are left as written.
type Expander struct {
	mu        sync.RWMutex
	variables map[string]string
	lookup    func(string) (string, bool)
	warnFunc  WarnFunc
}

func NewExpander() *Expander {
	return &Expander{
		variables: make(map[string]string),
		lookup:    os.LookupEnv,
	}
}

// SetWarnFunc sets a function to be called for unresolved references.
func (e *Expander) SetWarnFunc(fn WarnFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.warnFunc = fn
}

func (e *Expander) warn(format string, args ...any) {
	e.mu.RLock()
	fn := e.warnFunc
	e.mu.RUnlock()
	if fn != nil {
		fn(format, args...)
	}
}

func (e *Expander) SetVariables(vars map[string]string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for k, v := range vars {
		e.variables[k] = v
	}
}

func (e *Expander) SetVariable(name, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.variables[name] = value
}

func (e *Expander) value(name string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if v, ok := e.variables[name]; ok {
		return v, true
	}
	return e.lookup(name)
}

func (e *Expander) Expand(input string) string {
	if !strings.Contains(input, "${") {
		return input
	}
	return variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		m := variablePattern.FindStringSubmatch(match)
		name, hasDefault, def := m[1], m[2] != "", m[3]

		if v, ok := e.value(name); ok && (v != "" || !hasDefault) {
			return v
		}
		if hasDefault {
			return def
		}
		e.warn("unresolved variable: ${%s}", name)
		return match
	})
}

// ExpandAll expands every value of the map into a new map.
func (e *Expander) ExpandAll(values map[string]string) map[string]string {
	if values == nil {
		return nil
	}
	result := make(map[string]string, len(values))
	for k, v := range values {
		result[k] = e.Expand(v)
	}
	return result
}

// Unresolved lists the variable names in input that would be left as
// written, in order of appearance.
func (e *Expander) Unresolved(input string) []string {
	var names []string
	for _, m := range variablePattern.FindAllStringSubmatch(input, -1) {
		if m[2] != "" {
			continue
		}
		if _, ok := e.value(m[1]); !ok {
			names = append(names, m[1])
		}
	}
	return names
}
