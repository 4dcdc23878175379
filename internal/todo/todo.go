package todo

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

const MaxTitleLength = 200

var (
	ErrEmptyTitle     = errors.New("title must not be empty")
	ErrTitleTooLong   = errors.New("title must not exceed 200 characters")
	ErrDuplicateTitle = errors.New("an item with the same title already exists")
)

type Item struct {
	ID          int
	Title       string
	IsCompleted bool
	CreatedAt   time.Time
}

// Service is the to-do boundary the built-in suites exercise.
type Service interface {
	Add(ctx context.Context, title string) (Item, error)
	GetAll(ctx context.Context) ([]Item, error)
	GetByID(ctx context.Context, id int) (Item, bool, error)
	ToggleComplete(ctx context.Context, id int) (bool, error)
	Delete(ctx context.Context, id int) (bool, error)
}

var _ Service = (*Memory)(nil)

type Option func(m *Memory)

func WithClock(now func() time.Time) Option {
	return func(m *Memory) {
		m.now = now
	}
}

// Memory keeps items in process memory. It is safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	items  map[int]Item
	nextID int
	now    func() time.Time
}

func NewMemory(opts ...Option) *Memory {
	m := Memory{
		items:  make(map[int]Item),
		nextID: 1,
		now:    time.Now,
	}

	for _, o := range opts {
		o(&m)
	}

	return &m
}

func (m *Memory) Add(ctx context.Context, title string) (Item, error) {
	if err := ctx.Err(); err != nil {
		return Item{}, err
	}

	title = strings.TrimSpace(title)
	if title == "" {
		return Item{}, ErrEmptyTitle
	}

	if utf8.RuneCountInString(title) > MaxTitleLength {
		return Item{}, ErrTitleTooLong
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, it := range m.items {
		if strings.EqualFold(it.Title, title) {
			return Item{}, ErrDuplicateTitle
		}
	}

	item := Item{ID: m.nextID, Title: title, CreatedAt: m.now()}
	m.items[item.ID] = item
	m.nextID++

	return item, nil
}

// GetAll returns a snapshot ordered by id.
func (m *Memory) GetAll(ctx context.Context) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	items := make([]Item, 0, len(m.items))
	for _, it := range m.items {
		items = append(items, it)
	}
	m.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })

	return items, nil
}

func (m *Memory) GetByID(ctx context.Context, id int) (Item, bool, error) {
	if err := ctx.Err(); err != nil {
		return Item{}, false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	it, ok := m.items[id]

	return it, ok, nil
}

// ToggleComplete flips the completion flag. It reports false for an unknown id.
func (m *Memory) ToggleComplete(ctx context.Context, id int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[id]
	if !ok {
		return false, nil
	}

	it.IsCompleted = !it.IsCompleted
	m.items[id] = it

	return true, nil
}

func (m *Memory) Delete(ctx context.Context, id int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[id]; !ok {
		return false, nil
	}

	delete(m.items, id)

	return true, nil
}
