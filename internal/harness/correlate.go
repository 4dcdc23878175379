package harness

import (
	"regexp"
	"strings"

	"github.com/robotomize/go-todorun/internal/result"
)

const (
	markerPass = "[PASS]"
	markerFail = "[FAIL]"
)

// Tier tells which rule attributed a line to a test.
type Tier int

const (
	TierNone Tier = iota
	TierPinned
	TierShortName
	TierQualifiedName
	TierContains
)

func (t Tier) String() string {
	switch t {
	case TierPinned:
		return "pinned"
	case TierShortName:
		return "short_name"
	case TierQualifiedName:
		return "qualified_name"
	case TierContains:
		return "contains"
	default:
		return "none"
	}
}

var shortNameRe = regexp.MustCompile(`(\w+)\s*\[(?:PASS|FAIL)\]`)

// Correlator attributes free-form result lines to known tests. Rules are
// tried in tier order and the first test found wins.
type Correlator struct {
	tests       []*result.Test
	pinned      []string
	qualifiedRe *regexp.Regexp
}

// NewCorrelator builds a correlator over tests. pinned names are matched first
// on failure lines. A non-empty namespace prefix restricts the qualified-name
// rule to tokens under that namespace.
func NewCorrelator(tests []*result.Test, pinned []string, namespacePrefix string) *Correlator {
	qualified := `([A-Za-z_]\w*(?:\.\w+)+)\s*\[(?:PASS|FAIL)\]`
	if namespacePrefix != "" {
		qualified = `(` + regexp.QuoteMeta(namespacePrefix) + `[\w.]+)\s*\[(?:PASS|FAIL)\]`
	}

	return &Correlator{
		tests:       tests,
		pinned:      pinned,
		qualifiedRe: regexp.MustCompile(qualified),
	}
}

func (c *Correlator) Match(line string, failed bool) (*result.Test, Tier) {
	if failed {
		if tr := c.matchPinned(line); tr != nil {
			return tr, TierPinned
		}
	}

	if tr := c.matchShortName(line); tr != nil {
		return tr, TierShortName
	}

	if tr := c.matchQualifiedName(line); tr != nil {
		return tr, TierQualifiedName
	}

	for _, tr := range c.tests {
		if strings.Contains(line, tr.Name) {
			return tr, TierContains
		}
	}

	return nil, TierNone
}

// TODO: drop pinned names once the listed tests report stable identities.
func (c *Correlator) matchPinned(line string) *result.Test {
	for _, name := range c.pinned {
		if name == "" || !strings.Contains(line, name) {
			continue
		}

		for _, tr := range c.tests {
			if tr.Name == name {
				return tr
			}
		}
	}

	return nil
}

// matchShortName tries exact equality over every test before containment, so
// Test1 never claims a Test10 line.
func (c *Correlator) matchShortName(line string) *result.Test {
	m := shortNameRe.FindStringSubmatch(line)
	if m == nil {
		return nil
	}

	token := m[1]
	for _, tr := range c.tests {
		if strings.EqualFold(tr.Name, token) {
			return tr
		}
	}

	lowerToken := strings.ToLower(token)
	for _, tr := range c.tests {
		name := strings.ToLower(tr.Name)
		if strings.Contains(name, lowerToken) || strings.Contains(lowerToken, name) {
			return tr
		}
	}

	return nil
}

func (c *Correlator) matchQualifiedName(line string) *result.Test {
	m := c.qualifiedRe.FindStringSubmatch(line)
	if m == nil {
		return nil
	}

	token := m[1]
	for _, tr := range c.tests {
		if strings.HasSuffix(token, tr.Class+"."+tr.Name) || strings.Contains(token, tr.Name) {
			return tr
		}
	}

	return nil
}
