package harness

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/robotomize/go-todorun/internal/result"
	"github.com/robotomize/go-todorun/internal/slice"
)

// testLineRe splits Ns.Class.Method(params) at the last dot before the
// optional parameter list.
var testLineRe = regexp.MustCompile(`^([A-Za-z_]\w*(?:\.[A-Za-z_]\w*)*)\.([A-Za-z_]\w*)(\(.*\))?$`)

// Filter selects which listing lines are test identities.
type Filter struct {
	NamespacePrefix string
	ArtifactMarkers []string
}

func (f Filter) accept(line string) bool {
	if !strings.HasPrefix(line, f.NamespacePrefix) || len(line) <= len(f.NamespacePrefix) {
		return false
	}

	_, isArtifact := slice.Find(
		f.ArtifactMarkers, func(marker string) bool {
			return marker != "" && strings.Contains(line, marker)
		},
	)

	return !isArtifact
}

// ParseTestList reads a test listing and returns one pending test per
// recognized line, in listing order. Repeated identities are dropped.
func ParseTestList(r io.Reader, f Filter) ([]*result.Test, error) {
	tests := make([]*result.Test, 0)
	seen := make(map[string]struct{})

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !f.accept(line) {
			continue
		}

		m := testLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		name := m[2] + m[3]
		tr := result.NewTest(m[1], name, name)

		if _, ok := seen[tr.FullName()]; ok {
			continue
		}
		seen[tr.FullName()] = struct{}{}

		tests = append(tests, tr)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("bufio.Scanner.Err: %w", err)
	}

	return tests, nil
}

// GroupByClass groups tests into classes in first-seen order.
func GroupByClass(tests []*result.Test) []*result.Class {
	classes := make([]*result.Class, 0)
	byName := make(map[string]*result.Class)

	for _, tr := range tests {
		c, ok := byName[tr.Class]
		if !ok {
			c = result.NewClass(tr.Class, "")
			byName[tr.Class] = c
			classes = append(classes, c)
		}

		c.Add(tr)
	}

	return classes
}
