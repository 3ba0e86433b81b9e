// Package htmlsanitize cleans user-generated text before it is stored.
// Doubt threads and material descriptions come straight from the SPA, so
// anything resembling markup is run through bluemonday first.
package htmlsanitize

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	ugcPolicy    *bluemonday.Policy
	strictPolicy *bluemonday.Policy
	policyOnce   sync.Once
)

func initPolicies() {
	policyOnce.Do(func() {
		// UGC policy keeps safe formatting (bold, lists, links) for
		// doubt/reply content written in the rich-text box.
		ugcPolicy = bluemonday.UGCPolicy()

		// Strict policy strips all markup. Used for titles and names.
		strictPolicy = bluemonday.StrictPolicy()
	})
}

// Sanitize cleans rich-text input, removing dangerous elements and attributes
// while preserving safe formatting.
func Sanitize(html string) string {
	if html == "" {
		return ""
	}
	initPolicies()
	return ugcPolicy.Sanitize(html)
}

// Strip removes all markup, returning plain text. Use for single-line fields
// like folder names and material titles.
func Strip(s string) string {
	if s == "" {
		return ""
	}
	initPolicies()
	return strings.TrimSpace(strictPolicy.Sanitize(s))
}
