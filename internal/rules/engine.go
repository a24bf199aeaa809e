package rules

import (
	"log/slog"
	"time"

	"clio/internal/entry"
)

// Result carries the outcome of one evaluation pass.
type Result struct {
	// Transformed holds the new text when command rules changed it;
	// nil when unchanged or for image entries.
	Transformed *string
	// ExpiresAt is the absolute expiry derived from the winning TTL.
	ExpiresAt *time.Time
	// TTL is the winning duration, kept separately so the watch loop
	// can track wall-clock expiry.
	TTL time.Duration
}

// Evaluate applies all matching rules to e in definition order. The
// last matching TTL wins; commands chain, and a failing command step
// keeps the running text and continues with the next rule.
func Evaluate(rules []Rule, e *entry.Entry) Result {
	log := slog.Default()

	var (
		ttl         time.Duration
		currentText string
		hasText     = e.IsText()
	)
	if hasText {
		currentText = e.TextContent
	}

	for i := range rules {
		r := &rules[i]
		if !r.matches(e, currentText, hasText) {
			continue
		}

		if r.TTL > 0 {
			ttl = r.TTL
		}

		if len(r.Command) > 0 && hasText {
			out, err := RunCommand(r.Command, currentText, r.CommandTimeout)
			if err != nil {
				log.Warn("command failed, keeping original text", "rule", r.Name, "error", err)
				continue
			}
			currentText = out
		}
	}

	res := Result{TTL: ttl}
	if hasText && currentText != e.TextContent {
		res.Transformed = &currentText
	}
	if ttl > 0 {
		now := time.Now().UTC()
		expires := now.Add(ttl)
		if expires.Before(now) {
			// Overflowed time arithmetic: degrade to "never expires".
			log.Warn("TTL too large, entry will not expire", "ttl", ttl)
		} else {
			res.ExpiresAt = &expires
		}
	}
	return res
}

// matches reports whether every condition the rule specifies holds.
// The content regex is matched against the running (possibly already
// transformed) text and never matches image entries.
func (r *Rule) matches(e *entry.Entry, currentText string, hasText bool) bool {
	if r.SourceApp != "" {
		if e.SourceApp == nil || *e.SourceApp != r.SourceApp {
			return false
		}
	}
	if r.ContentRegex != nil {
		if !hasText || !r.ContentRegex.MatchString(currentText) {
			return false
		}
	}
	if r.SourceTitleRegex != nil {
		if e.SourceTitle == nil || !r.SourceTitleRegex.MatchString(*e.SourceTitle) {
			return false
		}
	}
	return true
}
