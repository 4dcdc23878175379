package suites

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sync/errgroup"

	"github.com/robotomize/go-todorun/internal/catalog"
	"github.com/robotomize/go-todorun/internal/slice"
	"github.com/robotomize/go-todorun/internal/todo"
)

const (
	categoryPersistence   = "persistence"
	categoryConcurrency   = "concurrency"
	categoryRecovery      = "error recovery"
	categoryPerformance   = "performance"
	categoryCompatibility = "compatibility"
)

// integrationTests bodies that assert absolute counts build their own store,
// so the class result does not depend on method order.
type integrationTests struct {
	factory ServiceFactory
	svc     todo.Service
}

func integrationClass(factory ServiceFactory) catalog.ClassSpec {
	s := &integrationTests{factory: factory}

	return catalog.ClassSpec{
		Name:        "IntegrationTests",
		DisplayName: "Integration tests",
		Description: "Persistence, concurrency, recovery and performance behavior of the to-do service",
		Initialize: func(context.Context) error {
			s.svc = s.factory()
			return nil
		},
		Cleanup: func(context.Context) {
			s.svc = nil
		},
		Methods: []catalog.MethodSpec{
			catalog.NewMethod(
				"DataPersistence_SaveAndLoad_ShouldMaintainData", checked(s.saveAndLoad),
				catalog.WithDisplayName("Persistence - save and load"),
				catalog.WithDescription("Added items are listed back unchanged"),
				catalog.WithCategory(categoryPersistence),
				catalog.WithExpectedDuration(800*time.Millisecond),
			),
			catalog.NewMethod(
				"DataPersistence_LargeDataSet_ShouldHandleEfficiently", checked(s.largeDataSet),
				catalog.WithDisplayName("Persistence - large data set"),
				catalog.WithDescription("A hundred concurrent adds complete quickly and are all listed"),
				catalog.WithCategory(categoryPersistence),
				catalog.WithExpectedDuration(time.Second),
			),
			catalog.NewMethod(
				"Concurrency_MultipleAdds_ShouldNotConflict", checked(s.multipleAdds),
				catalog.WithDisplayName("Concurrency - multiple adds"),
				catalog.WithDescription("Concurrent adds never conflict"),
				catalog.WithCategory(categoryConcurrency),
				catalog.WithExpectedDuration(700*time.Millisecond),
			),
			catalog.NewMethod(
				"Concurrency_AddAndDelete_ShouldMaintainConsistency", checked(s.addAndDelete),
				catalog.WithDisplayName("Concurrency - add and delete"),
				catalog.WithDescription("Concurrent add then delete leaves the store empty"),
				catalog.WithCategory(categoryConcurrency),
				catalog.WithExpectedDuration(800*time.Millisecond),
			),
			catalog.NewMethod(
				"Concurrency_UpdateAndRead_ShouldNotInterfere", checked(s.updateAndRead),
				catalog.WithDisplayName("Concurrency - update and read"),
				catalog.WithDescription("Concurrent toggles and reads do not interfere"),
				catalog.WithCategory(categoryConcurrency),
				catalog.WithExpectedDuration(600*time.Millisecond),
			),
			catalog.NewMethod(
				"ErrorRecovery_InvalidData_ShouldValidateAndRecover", checked(s.invalidData),
				catalog.WithDisplayName("Recovery - invalid data"),
				catalog.WithDescription("Invalid titles are rejected and the store keeps working"),
				catalog.WithCategory(categoryRecovery),
				catalog.WithExpectedDuration(500*time.Millisecond),
			),
			catalog.NewMethod(
				"Performance_BulkOperations_ShouldCompleteWithinTimeout", checked(s.bulkOperations),
				catalog.WithDisplayName("Performance - bulk operations"),
				catalog.WithDescription("Fifty concurrent adds finish within three seconds"),
				catalog.WithCategory(categoryPerformance),
				catalog.WithExpectedDuration(1200*time.Millisecond),
			),
			catalog.NewMethod(
				"Performance_SearchOperations_ShouldBeResponsive", checked(s.searchOperations),
				catalog.WithDisplayName("Performance - search"),
				catalog.WithDescription("Filtering the listing by term stays under 100ms"),
				catalog.WithCategory(categoryPerformance),
				catalog.WithExpectedDuration(600*time.Millisecond),
			),
			catalog.NewMethod(
				"Performance_MemoryUsage_ShouldRemainStable", checked(s.memoryUsage),
				catalog.WithDisplayName("Performance - memory usage"),
				catalog.WithDescription("Repeated add and delete rounds keep heap growth under 10MB"),
				catalog.WithCategory(categoryPerformance),
				catalog.WithExpectedDuration(800*time.Millisecond),
			),
			catalog.NewMethod(
				"Compatibility_DataFormat_ShouldSupportLegacy", nil,
				catalog.WithDisplayName("Compatibility - legacy data format"),
				catalog.WithDescription("Items imported from the legacy format keep their completion flag"),
				catalog.WithCategory(categoryCompatibility),
				catalog.Disabled("legacy import format is not available in the in-memory store"),
			),
			catalog.NewMethod(
				"Compatibility_APIVersion_ShouldHandleChanges", checked(s.apiVersions),
				catalog.WithDisplayName("Compatibility - API versions"),
				catalog.WithDescription("Add, toggle and delete behave the same for every client version"),
				catalog.WithCategory(categoryCompatibility),
				catalog.WithExpectedDuration(600*time.Millisecond),
			),
		},
	}
}

func (s *integrationTests) saveAndLoad(ctx context.Context, a *assert.Assertions) error {
	svc := s.factory()

	want := []struct {
		title     string
		completed bool
	}{
		{title: "persisted 1"},
		{title: "persisted 2", completed: true},
		{title: "persisted 3"},
	}

	for _, w := range want {
		item, err := svc.Add(ctx, w.title)
		if err != nil {
			return err
		}

		if w.completed {
			if _, err := svc.ToggleComplete(ctx, item.ID); err != nil {
				return err
			}
		}
	}

	all, err := svc.GetAll(ctx)
	if err != nil {
		return err
	}
	a.Len(all, len(want))

	for _, w := range want {
		found, ok := slice.Find(all, func(it todo.Item) bool { return it.Title == w.title })
		if a.True(ok, "item %q not found", w.title) {
			a.Equal(w.completed, found.IsCompleted, "completion flag of %q", w.title)
		}
	}

	return nil
}

// addConcurrently adds n items named by format from separate goroutines.
func addConcurrently(ctx context.Context, svc todo.Service, n int, format string) ([]todo.Item, error) {
	items := make([]todo.Item, n)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(
			func() error {
				item, err := svc.Add(gctx, fmt.Sprintf(format, i))
				if err != nil {
					return err
				}
				items[i] = item

				return nil
			},
		)
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return items, nil
}

func (s *integrationTests) largeDataSet(ctx context.Context, a *assert.Assertions) error {
	const size = 100

	svc := s.factory()
	started := time.Now()

	items, err := addConcurrently(ctx, svc, size, "large data set item %03d")
	if err != nil {
		return err
	}
	a.Less(time.Since(started), 5*time.Second)

	all, err := svc.GetAll(ctx)
	if err != nil {
		return err
	}
	a.Len(all, size)

	ids := make(map[int]struct{}, len(all))
	for _, it := range all {
		ids[it.ID] = struct{}{}
	}
	for _, it := range items {
		a.Contains(ids, it.ID)
	}

	return nil
}

func (s *integrationTests) multipleAdds(ctx context.Context, a *assert.Assertions) error {
	const n = 20

	items, err := addConcurrently(ctx, s.svc, n, "concurrent item %02d")
	if err != nil {
		return err
	}
	a.Len(items, n)

	all, err := s.svc.GetAll(ctx)
	if err != nil {
		return err
	}
	a.GreaterOrEqual(len(all), n)

	return nil
}

func (s *integrationTests) addAndDelete(ctx context.Context, a *assert.Assertions) error {
	const n = 10

	svc := s.factory()

	var deleted atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(
			func() error {
				item, err := svc.Add(gctx, fmt.Sprintf("consistency item %02d", i))
				if err != nil {
					return err
				}

				ok, err := svc.Delete(gctx, item.ID)
				if err != nil {
					return err
				}
				if ok {
					deleted.Add(1)
				}

				return nil
			},
		)
	}

	if err := g.Wait(); err != nil {
		return err
	}
	a.EqualValues(n, deleted.Load())

	all, err := svc.GetAll(ctx)
	if err != nil {
		return err
	}
	a.Empty(all)

	return nil
}

func (s *integrationTests) updateAndRead(ctx context.Context, a *assert.Assertions) error {
	item, err := s.svc.Add(ctx, "read write item")
	if err != nil {
		return err
	}

	var reads, updates atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 5; i++ {
		g.Go(
			func() error {
				_, ok, err := s.svc.GetByID(gctx, item.ID)
				if err != nil {
					return err
				}
				if ok {
					reads.Add(1)
				}

				return nil
			},
		)
	}

	for i := 0; i < 3; i++ {
		g.Go(
			func() error {
				ok, err := s.svc.ToggleComplete(gctx, item.ID)
				if err != nil {
					return err
				}
				if ok {
					updates.Add(1)
				}

				return nil
			},
		)
	}

	if err := g.Wait(); err != nil {
		return err
	}

	a.Positive(reads.Load())
	a.EqualValues(3, updates.Load())

	return nil
}

func (s *integrationTests) invalidData(ctx context.Context, a *assert.Assertions) error {
	before, err := s.svc.GetAll(ctx)
	if err != nil {
		return err
	}

	invalid := []string{"", "   ", strings.Repeat("a", todo.MaxTitleLength+1)}
	for _, title := range invalid {
		_, err := s.svc.Add(ctx, title)
		a.Error(err, "title %q must be rejected", title)
	}

	after, err := s.svc.GetAll(ctx)
	if err != nil {
		return err
	}
	a.Len(after, len(before))

	item, err := s.svc.Add(ctx, "recovered item")
	if err != nil {
		return err
	}
	a.Equal("recovered item", item.Title)

	return nil
}

func (s *integrationTests) bulkOperations(ctx context.Context, a *assert.Assertions) error {
	const (
		size    = 50
		timeout = 3 * time.Second
	)

	started := time.Now()

	items, err := addConcurrently(ctx, s.factory(), size, "bulk item %02d")
	if err != nil {
		return err
	}

	a.Less(time.Since(started), timeout)
	a.Len(items, size)

	return nil
}

func (s *integrationTests) searchOperations(ctx context.Context, a *assert.Assertions) error {
	const size = 30

	terms := []string{"search", "item", "performance"}

	svc := s.factory()
	for i := 0; i < size; i++ {
		if _, err := svc.Add(ctx, fmt.Sprintf("search item %02d", i)); err != nil {
			return err
		}
	}

	started := time.Now()

	all, err := svc.GetAll(ctx)
	if err != nil {
		return err
	}

	found := slice.Filter(
		all, func(it todo.Item) bool {
			_, ok := slice.Find(terms, func(term string) bool { return strings.Contains(it.Title, term) })
			return ok
		},
	)

	a.Less(time.Since(started), 100*time.Millisecond)
	a.NotEmpty(found)

	return nil
}

func (s *integrationTests) memoryUsage(ctx context.Context, a *assert.Assertions) error {
	const (
		rounds   = 5
		perRound = 10
		limit    = 10 << 20
	)

	svc := s.factory()

	var before runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)

	for r := 0; r < rounds; r++ {
		for i := 0; i < perRound; i++ {
			if _, err := svc.Add(ctx, fmt.Sprintf("memory item %02d_%02d", r, i)); err != nil {
				return err
			}
		}

		all, err := svc.GetAll(ctx)
		if err != nil {
			return err
		}

		for _, it := range all[:perRound/2] {
			if _, err := svc.Delete(ctx, it.ID); err != nil {
				return err
			}
		}
	}

	var after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&after)

	growth := int64(after.HeapAlloc) - int64(before.HeapAlloc)
	a.Less(growth, int64(limit), "heap grew by %d bytes", growth)

	return nil
}

func (s *integrationTests) apiVersions(ctx context.Context, a *assert.Assertions) error {
	svc := s.factory()

	for _, version := range []string{"v1", "v2", "v3"} {
		item, err := svc.Add(ctx, "api version item "+version)
		if err != nil {
			return err
		}

		toggled, err := svc.ToggleComplete(ctx, item.ID)
		if err != nil {
			return err
		}

		deleted, err := svc.Delete(ctx, item.ID)
		if err != nil {
			return err
		}

		a.True(toggled && deleted, "version %s", version)
	}

	all, err := svc.GetAll(ctx)
	if err != nil {
		return err
	}
	a.Empty(all)

	return nil
}
