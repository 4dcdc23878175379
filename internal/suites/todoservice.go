package suites

import (
	"context"
	"strings"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/robotomize/go-todorun/internal/catalog"
	"github.com/robotomize/go-todorun/internal/todo"
)

const (
	categoryBasic      = "basic"
	categoryValidation = "validation"
	categoryErrors     = "error handling"
	categoryQuery      = "query"
	categoryModel      = "data model"
)

type todoServiceTests struct {
	factory ServiceFactory
	svc     todo.Service
}

func todoServiceClass(factory ServiceFactory) catalog.ClassSpec {
	s := &todoServiceTests{factory: factory}

	return catalog.ClassSpec{
		Name:        "TodoServiceTests",
		DisplayName: "TodoService tests",
		Description: "Core add, toggle, delete and query behavior of the to-do service",
		Initialize: func(context.Context) error {
			s.svc = s.factory()
			return nil
		},
		Cleanup: func(context.Context) {
			s.svc = nil
		},
		Methods: []catalog.MethodSpec{
			catalog.NewMethod(
				"AddTodo_ValidTitle_ShouldSucceed", checked(s.addValidTitle),
				catalog.WithDisplayName("Add item - valid title"),
				catalog.WithDescription("Adding an item with a valid title succeeds"),
				catalog.WithCategory(categoryBasic),
				catalog.WithExpectedDuration(500*time.Millisecond),
			),
			catalog.NewMethod(
				"AddTodo_EmptyTitle_ShouldFail", checked(s.rejectTitle("", todo.ErrEmptyTitle)),
				catalog.WithDisplayName("Add item - empty title"),
				catalog.WithDescription("Adding an item with an empty title fails"),
				catalog.WithCategory(categoryValidation),
				catalog.WithExpectedDuration(300*time.Millisecond),
			),
			catalog.NewMethod(
				"AddTodo_WhitespaceTitle_ShouldFail", checked(s.rejectTitle("   ", todo.ErrEmptyTitle)),
				catalog.WithDisplayName("Add item - whitespace title"),
				catalog.WithDescription("Adding an item whose title is only spaces fails"),
				catalog.WithCategory(categoryValidation),
				catalog.WithExpectedDuration(300*time.Millisecond),
			),
			catalog.NewMethod(
				"AddTodo_LongTitle_ShouldFail",
				checked(s.rejectTitle(strings.Repeat("a", todo.MaxTitleLength+1), todo.ErrTitleTooLong)),
				catalog.WithDisplayName("Add item - title too long"),
				catalog.WithDescription("Adding an item with an over-long title fails"),
				catalog.WithCategory(categoryValidation),
				catalog.WithExpectedDuration(300*time.Millisecond),
			),
			catalog.NewMethod(
				"AddTodo_DuplicateTitle_ShouldFail", checked(s.addDuplicate),
				catalog.WithDisplayName("Add item - duplicate title"),
				catalog.WithDescription("Adding a second item with the same title fails"),
				catalog.WithCategory(categoryValidation),
				catalog.WithExpectedDuration(400*time.Millisecond),
			),
			catalog.NewMethod(
				"ToggleComplete_ExistingTodo_ShouldSucceed", checked(s.toggleExisting),
				catalog.WithDisplayName("Toggle completion - existing item"),
				catalog.WithDescription("Toggling an existing item flips its completion flag"),
				catalog.WithCategory(categoryBasic),
				catalog.WithExpectedDuration(400*time.Millisecond),
			),
			catalog.NewMethod(
				"ToggleComplete_NonExistentTodo_ShouldFail", checked(s.toggleMissing),
				catalog.WithDisplayName("Toggle completion - missing item"),
				catalog.WithDescription("Toggling an unknown item reports false"),
				catalog.WithCategory(categoryErrors),
				catalog.WithExpectedDuration(300*time.Millisecond),
			),
			catalog.NewMethod(
				"DeleteTodo_ExistingTodo_ShouldSucceed", checked(s.deleteExisting),
				catalog.WithDisplayName("Delete item - existing item"),
				catalog.WithDescription("Deleting an existing item removes it"),
				catalog.WithCategory(categoryBasic),
				catalog.WithExpectedDuration(400*time.Millisecond),
			),
			catalog.NewMethod(
				"DeleteTodo_NonExistentTodo_ShouldFail", checked(s.deleteMissing),
				catalog.WithDisplayName("Delete item - missing item"),
				catalog.WithDescription("Deleting an unknown item reports false"),
				catalog.WithCategory(categoryErrors),
				catalog.WithExpectedDuration(300*time.Millisecond),
			),
			catalog.NewMethod(
				"GetAllTodos_ShouldReturnCorrectCount", checked(s.getAllCount),
				catalog.WithDisplayName("List items - count"),
				catalog.WithDescription("Listing returns every added item"),
				catalog.WithCategory(categoryQuery),
				catalog.WithExpectedDuration(600*time.Millisecond),
			),
			catalog.NewMethod(
				"GetAllTodos_ShouldReturnEmptyWhenNoTodos", checked(s.getAllEmpty),
				catalog.WithDisplayName("List items - empty store"),
				catalog.WithDescription("Listing a fresh store returns nothing"),
				catalog.WithCategory(categoryQuery),
				catalog.WithExpectedDuration(300*time.Millisecond),
			),
			catalog.NewMethod(
				"TodoItem_Properties_ShouldBeSetCorrectly", checked(s.itemProperties),
				catalog.WithDisplayName("Item properties"),
				catalog.WithDescription("A new item carries its title, id, flag and creation time"),
				catalog.WithCategory(categoryModel),
				catalog.WithExpectedDuration(300*time.Millisecond),
			),
		},
	}
}

func (s *todoServiceTests) addValidTitle(ctx context.Context, a *assert.Assertions) error {
	const title = "test item"

	item, err := s.svc.Add(ctx, title)
	if err != nil {
		return err
	}

	a.Equal(title, item.Title)
	a.False(item.IsCompleted)
	a.Positive(item.ID)
	a.WithinDuration(time.Now(), item.CreatedAt, time.Minute)

	return nil
}

func (s *todoServiceTests) rejectTitle(title string, want error) func(context.Context, *assert.Assertions) error {
	return func(ctx context.Context, a *assert.Assertions) error {
		_, err := s.svc.Add(ctx, title)
		a.ErrorIs(err, want)

		return nil
	}
}

func (s *todoServiceTests) addDuplicate(ctx context.Context, a *assert.Assertions) error {
	const title = "duplicate item"

	if _, err := s.svc.Add(ctx, title); err != nil {
		return err
	}

	_, err := s.svc.Add(ctx, title)
	a.ErrorIs(err, todo.ErrDuplicateTitle)

	return nil
}

func (s *todoServiceTests) toggleExisting(ctx context.Context, a *assert.Assertions) error {
	item, err := s.svc.Add(ctx, "toggle item")
	if err != nil {
		return err
	}

	ok, err := s.svc.ToggleComplete(ctx, item.ID)
	if err != nil {
		return err
	}
	a.True(ok)

	updated, found, err := s.svc.GetByID(ctx, item.ID)
	if err != nil {
		return err
	}
	a.True(found)
	a.NotEqual(item.IsCompleted, updated.IsCompleted)

	return nil
}

func (s *todoServiceTests) toggleMissing(ctx context.Context, a *assert.Assertions) error {
	ok, err := s.svc.ToggleComplete(ctx, 999)
	if err != nil {
		return err
	}
	a.False(ok)

	return nil
}

func (s *todoServiceTests) deleteExisting(ctx context.Context, a *assert.Assertions) error {
	item, err := s.svc.Add(ctx, "delete item")
	if err != nil {
		return err
	}

	before, err := s.svc.GetAll(ctx)
	if err != nil {
		return err
	}

	ok, err := s.svc.Delete(ctx, item.ID)
	if err != nil {
		return err
	}
	a.True(ok)

	after, err := s.svc.GetAll(ctx)
	if err != nil {
		return err
	}
	a.Len(after, len(before)-1)

	return nil
}

func (s *todoServiceTests) deleteMissing(ctx context.Context, a *assert.Assertions) error {
	ok, err := s.svc.Delete(ctx, 999)
	if err != nil {
		return err
	}
	a.False(ok)

	return nil
}

func (s *todoServiceTests) getAllCount(ctx context.Context, a *assert.Assertions) error {
	before, err := s.svc.GetAll(ctx)
	if err != nil {
		return err
	}

	for _, title := range []string{"item 1", "item 2", "item 3"} {
		if _, err := s.svc.Add(ctx, title); err != nil {
			return err
		}
	}

	after, err := s.svc.GetAll(ctx)
	if err != nil {
		return err
	}
	a.Len(after, len(before)+3)

	return nil
}

func (s *todoServiceTests) getAllEmpty(ctx context.Context, a *assert.Assertions) error {
	items, err := s.factory().GetAll(ctx)
	if err != nil {
		return err
	}
	a.Empty(items)

	return nil
}

func (s *todoServiceTests) itemProperties(ctx context.Context, a *assert.Assertions) error {
	const title = "property item"

	before := time.Now()

	item, err := s.svc.Add(ctx, title)
	if err != nil {
		return err
	}

	a.Equal(title, item.Title)
	a.False(item.IsCompleted)
	a.Positive(item.ID)
	a.False(item.CreatedAt.Before(before))
	a.False(item.CreatedAt.After(time.Now()))

	return nil
}
