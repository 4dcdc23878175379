package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/robotomize/go-todorun/internal/result"
)

var _ Capturer = (*FileCapturer)(nil)

// FileCapturer writes a plain text failure note per failed test into Dir.
type FileCapturer struct {
	Dir string
	Now func() time.Time
}

func NewFileCapturer(dir string) *FileCapturer {
	return &FileCapturer{Dir: dir, Now: time.Now}
}

func (c *FileCapturer) Capture(ctx context.Context, t *result.Test) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir, err := filepath.Abs(c.Dir)
	if err != nil {
		return "", fmt.Errorf("filepath.Abs: %w", err)
	}

	if err = os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", fmt.Errorf("os.MkdirAll: %w", err)
	}

	now := c.Now()
	name := fmt.Sprintf(
		"%s_%s_%s.txt", sanitize(t.Name), now.Format("20060102_150405"), uuid.New().String()[:8],
	)
	pth := filepath.Join(dir, name)

	var b strings.Builder
	fmt.Fprintf(&b, "test: %s\n", t.FullName())
	fmt.Fprintf(&b, "status: %s\n", t.Status())
	fmt.Fprintf(&b, "captured: %s\n", now.Format(time.RFC3339))
	fmt.Fprintf(&b, "error: %s\n", t.ErrorMessage())

	if err = os.WriteFile(pth, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("os.WriteFile: %w", err)
	}

	return pth, nil
}

func sanitize(name string) string {
	return strings.Map(
		func(r rune) rune {
			switch r {
			case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ', '(', ')', ',':
				return '_'
			}
			return r
		}, name,
	)
}
