// Package rules evaluates declarative action rules against clipboard
// entries, applying TTL and external-command transformations.
package rules

import (
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"clio/internal/config"
)

// Rule is a validated, compiled action rule. Invalid definitions never
// become a Rule; they are rejected by Compile.
type Rule struct {
	Name string

	// Conditions. A zero value means the condition is absent.
	SourceApp        string
	ContentRegex     *regexp.Regexp
	SourceTitleRegex *regexp.Regexp

	// Actions.
	TTL            time.Duration
	Command        []string
	CommandTimeout time.Duration
}

// Compile validates a rule definition and compiles its regexes.
// defaultTimeout applies when the definition sets a command but no
// timeout of its own.
func Compile(def config.RuleDefinition, defaultTimeout time.Duration) (Rule, error) {
	c := def.Conditions
	if c.SourceApp == "" && c.ContentRegex == "" && c.SourceTitleRegex == "" {
		return Rule{}, fmt.Errorf("rule %q: at least one condition is required", def.Name)
	}
	if def.Actions.Command != nil && len(def.Actions.Command) == 0 {
		return Rule{}, fmt.Errorf("rule %q: command must not be empty", def.Name)
	}

	r := Rule{
		Name:           def.Name,
		SourceApp:      c.SourceApp,
		TTL:            def.Actions.TTL.Std(),
		Command:        def.Actions.Command,
		CommandTimeout: def.Actions.CommandTimeout.Std(),
	}
	if r.CommandTimeout <= 0 {
		r.CommandTimeout = defaultTimeout
	}

	var err error
	if c.ContentRegex != "" {
		if r.ContentRegex, err = regexp.Compile(c.ContentRegex); err != nil {
			return Rule{}, fmt.Errorf("rule %q: content_regex: %w", def.Name, err)
		}
	}
	if c.SourceTitleRegex != "" {
		if r.SourceTitleRegex, err = regexp.Compile(c.SourceTitleRegex); err != nil {
			return Rule{}, fmt.Errorf("rule %q: source_title_regex: %w", def.Name, err)
		}
	}
	return r, nil
}

// CompileAll compiles every definition, dropping invalid rules with a
// warning so they never reach evaluation.
func CompileAll(defs []config.RuleDefinition, defaultTimeout time.Duration, log *slog.Logger) []Rule {
	if log == nil {
		log = slog.Default()
	}
	rules := make([]Rule, 0, len(defs))
	for _, def := range defs {
		r, err := Compile(def, defaultTimeout)
		if err != nil {
			log.Warn("dropping invalid action rule", "error", err)
			continue
		}
		rules = append(rules, r)
	}
	return rules
}

// HasTTL reports whether any rule carries a TTL action.
func HasTTL(rules []Rule) bool {
	for _, r := range rules {
		if r.TTL > 0 {
			return true
		}
	}
	return false
}
