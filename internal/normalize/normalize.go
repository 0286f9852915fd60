// Package normalize rewrites parsed transactions with user-configured rules,
// typically to collapse messy merchant strings into stable payee names.
package normalize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ncastellanos/transmail/internal/domain"
)

// RuleSpec is the configuration shape of one rewrite rule.
type RuleSpec struct {
	Match string `mapstructure:"match"`
	Payee string `mapstructure:"payee"`
	Memo  string `mapstructure:"memo"`
}

// Rule rewrites the payee and/or appends to the memo of transactions whose
// current payee matches its pattern.
type Rule struct {
	match *regexp.Regexp
	payee string
	memo  string
}

// Rules is an ordered rewrite chain. Later rules test against the payee as
// rewritten by earlier ones, and may overwrite it again.
type Rules []Rule

// Compile validates and compiles rule specs in their configured order.
// Patterns match case-insensitively. A malformed pattern fails the whole
// compilation so bad configuration surfaces at startup, not mid-run.
func Compile(specs []RuleSpec) (Rules, error) {
	rules := make(Rules, 0, len(specs))
	for i, spec := range specs {
		if spec.Match == "" {
			return nil, fmt.Errorf("normalize: rule %d: empty match pattern", i)
		}
		re, err := regexp.Compile("(?i)" + spec.Match)
		if err != nil {
			return nil, fmt.Errorf("normalize: rule %d: %w", i, err)
		}
		rules = append(rules, Rule{match: re, payee: spec.Payee, memo: spec.Memo})
	}
	return rules, nil
}

// Apply runs the chain left to right and returns the rewritten transaction.
// Payee replacements overwrite; memo additions append space-joined. The
// input value is never mutated.
func (rs Rules) Apply(tx domain.Transaction) domain.Transaction {
	for _, r := range rs {
		if !r.match.MatchString(tx.Payee) {
			continue
		}
		if r.payee != "" {
			tx.Payee = r.payee
		}
		if r.memo != "" {
			tx.Memo = strings.TrimSpace(tx.Memo + " " + r.memo)
		}
	}
	return tx
}
