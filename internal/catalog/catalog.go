package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	defaultExpectedDuration  = time.Second
	disabledExpectedDuration = 100 * time.Millisecond
)

// Body is the executable part of a test method.
type Body func(ctx context.Context) error

type MethodSpec struct {
	Name             string
	DisplayName      string
	Description      string
	Category         string
	Enabled          bool
	SkipReason       string
	ExpectedDuration time.Duration
	Body             Body
}

type MethodOption func(m *MethodSpec)

func WithDisplayName(name string) MethodOption {
	return func(m *MethodSpec) {
		m.DisplayName = name
	}
}

func WithDescription(description string) MethodOption {
	return func(m *MethodSpec) {
		m.Description = description
	}
}

func WithCategory(category string) MethodOption {
	return func(m *MethodSpec) {
		m.Category = category
	}
}

// WithExpectedDuration is descriptive only, nothing enforces it.
func WithExpectedDuration(d time.Duration) MethodOption {
	return func(m *MethodSpec) {
		m.ExpectedDuration = d
	}
}

// Disabled marks the method as skipped. Its body is never invoked.
func Disabled(reason string) MethodOption {
	return func(m *MethodSpec) {
		m.Enabled = false
		m.SkipReason = reason
		if m.ExpectedDuration == defaultExpectedDuration {
			m.ExpectedDuration = disabledExpectedDuration
		}
	}
}

func NewMethod(name string, body Body, opts ...MethodOption) MethodSpec {
	m := MethodSpec{
		Name:             name,
		DisplayName:      name,
		Enabled:          true,
		ExpectedDuration: defaultExpectedDuration,
		Body:             body,
	}

	for _, o := range opts {
		o(&m)
	}

	return m
}

type ClassSpec struct {
	Name        string
	DisplayName string
	Description string

	// Initialize and Cleanup run once per class per run. Both are optional.
	Initialize func(ctx context.Context) error
	Cleanup    func(ctx context.Context)

	Methods []MethodSpec
}

// ValidationError reports a malformed registration.
type ValidationError struct {
	Class  string
	Method string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("catalog: class %q: %s", e.Class, e.Reason)
	}

	return fmt.Sprintf("catalog: %s.%s: %s", e.Class, e.Method, e.Reason)
}

// Catalog is an immutable, validated set of test classes.
type Catalog struct {
	classes []ClassSpec
}

func New(classes ...ClassSpec) (*Catalog, error) {
	seenClasses := make(map[string]struct{}, len(classes))
	frozen := make([]ClassSpec, 0, len(classes))

	for _, c := range classes {
		if strings.TrimSpace(c.Name) == "" {
			return nil, &ValidationError{Class: c.Name, Reason: "empty class name"}
		}

		if _, ok := seenClasses[c.Name]; ok {
			return nil, &ValidationError{Class: c.Name, Reason: "duplicate class"}
		}
		seenClasses[c.Name] = struct{}{}

		seenMethods := make(map[string]struct{}, len(c.Methods))
		for _, m := range c.Methods {
			if err := validateMethod(c.Name, m); err != nil {
				return nil, err
			}

			if _, ok := seenMethods[m.Name]; ok {
				return nil, &ValidationError{Class: c.Name, Method: m.Name, Reason: "duplicate method"}
			}
			seenMethods[m.Name] = struct{}{}
		}

		if c.DisplayName == "" {
			c.DisplayName = c.Name
		}

		methods := make([]MethodSpec, len(c.Methods))
		copy(methods, c.Methods)
		c.Methods = methods

		frozen = append(frozen, c)
	}

	return &Catalog{classes: frozen}, nil
}

func validateMethod(class string, m MethodSpec) error {
	switch {
	case strings.TrimSpace(m.Name) == "":
		return &ValidationError{Class: class, Method: m.Name, Reason: "empty method name"}
	case m.Enabled && m.Body == nil:
		return &ValidationError{Class: class, Method: m.Name, Reason: "enabled method without body"}
	case !m.Enabled && strings.TrimSpace(m.SkipReason) == "":
		return &ValidationError{Class: class, Method: m.Name, Reason: "disabled method without skip reason"}
	}

	return nil
}

// Classes returns a copy of the registered classes in registration order.
func (c *Catalog) Classes() []ClassSpec {
	classes := make([]ClassSpec, len(c.classes))
	for idx, cls := range c.classes {
		methods := make([]MethodSpec, len(cls.Methods))
		copy(methods, cls.Methods)
		cls.Methods = methods
		classes[idx] = cls
	}

	return classes
}

// Total is the number of registered methods, enabled or not.
func (c *Catalog) Total() int {
	var n int
	for _, cls := range c.classes {
		n += len(cls.Methods)
	}

	return n
}
