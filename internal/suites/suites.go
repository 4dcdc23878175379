package suites

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/stretchr/testify/assert"

	"github.com/robotomize/go-todorun/internal/catalog"
	"github.com/robotomize/go-todorun/internal/todo"
)

// ServiceFactory builds a fresh collaborator. Classes call it from Initialize
// and from bodies that need an isolated store.
type ServiceFactory func() todo.Service

func memoryFactory() todo.Service {
	return todo.NewMemory()
}

// Default returns the built-in catalog backed by the in-memory service.
func Default() (*catalog.Catalog, error) {
	return New(memoryFactory)
}

// New builds the built-in catalog against the given collaborator.
func New(factory ServiceFactory) (*catalog.Catalog, error) {
	if factory == nil {
		return nil, errors.New("suites New: nil service factory")
	}

	cat, err := catalog.New(todoServiceClass(factory), integrationClass(factory))
	if err != nil {
		return nil, fmt.Errorf("suites New: %w", err)
	}

	return cat, nil
}

// recorder collects testify failures so a body can report them as one error.
type recorder struct {
	mu       sync.Mutex
	failures []string
}

func (r *recorder) Errorf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.failures = append(r.failures, strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (r *recorder) err() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.failures) == 0 {
		return nil
	}

	return errors.New(strings.Join(r.failures, "\n"))
}

// checked adapts an assertion-style body to catalog.Body. A returned error
// wins over recorded assertion failures.
func checked(fn func(ctx context.Context, a *assert.Assertions) error) catalog.Body {
	return func(ctx context.Context) error {
		rec := &recorder{}
		if err := fn(ctx, assert.New(rec)); err != nil {
			return err
		}

		return rec.err()
	}
}
