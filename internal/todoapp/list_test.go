package todoapp

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Makepad-fr/tada/internal/model"
)

// fakeCreator hands out sequential IDs and records every call.
type fakeCreator struct {
	mu     sync.Mutex
	nextID int
	calls  []model.NewTodo
	err    error
}

func (f *fakeCreator) Create(_ context.Context, p model.NewTodo) (model.Todo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, p)
	if f.err != nil {
		return model.Todo{}, f.err
	}
	f.nextID++
	return model.Todo{ID: f.nextID, Text: p.Text}, nil
}

func boolPtr(b bool) *bool { return &b }

func TestCreateBuyMilk(t *testing.T) {
	c := &fakeCreator{}
	l := New(c)

	if err := l.Create(context.Background(), model.NewTodo{Text: "buy milk"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	want := []model.Todo{{ID: 1, Text: "buy milk", Completed: false}}
	if diff := cmp.Diff(want, l.Todos()); diff != "" {
		t.Errorf("Todos (-want +got):\n%s", diff)
	}
}

func TestCreateEmptyTextIsSilentNoop(t *testing.T) {
	c := &fakeCreator{}
	l := New(c)
	if err := l.Create(context.Background(), model.NewTodo{Text: "first"}); err != nil {
		t.Fatal(err)
	}
	before := l.Todos()

	if err := l.Create(context.Background(), model.NewTodo{Text: "", Labels: []int{1}}); err != nil {
		t.Fatalf("Create with empty text returned %v, want nil", err)
	}

	if len(c.calls) != 1 {
		t.Errorf("creator called %d times, want 1", len(c.calls))
	}
	if diff := cmp.Diff(before, l.Todos()); diff != "" {
		t.Errorf("list changed (-before +after):\n%s", diff)
	}
}

func TestCreatePrependsAndKeepsOrder(t *testing.T) {
	l := New(&fakeCreator{})
	ctx := context.Background()
	for _, text := range []string{"a", "b", "c"} {
		if err := l.Create(ctx, model.NewTodo{Text: text}); err != nil {
			t.Fatal(err)
		}
	}

	want := []model.Todo{{ID: 3, Text: "c"}, {ID: 2, Text: "b"}, {ID: 1, Text: "a"}}
	if diff := cmp.Diff(want, l.Todos()); diff != "" {
		t.Errorf("Todos (-want +got):\n%s", diff)
	}
}

func TestCreateErrorLeavesListUntouched(t *testing.T) {
	boom := errors.New("backend down")
	c := &fakeCreator{}
	l := New(c)
	if err := l.Create(context.Background(), model.NewTodo{Text: "kept"}); err != nil {
		t.Fatal(err)
	}
	c.err = boom

	err := l.Create(context.Background(), model.NewTodo{Text: "lost"})
	if !errors.Is(err, boom) {
		t.Fatalf("Create err = %v, want %v", err, boom)
	}
	if diff := cmp.Diff([]model.Todo{{ID: 1, Text: "kept"}}, l.Todos()); diff != "" {
		t.Errorf("Todos (-want +got):\n%s", diff)
	}
}

func TestCreatesResolvingOutOfOrderAreNotLost(t *testing.T) {
	release := map[string]chan struct{}{
		"slow": make(chan struct{}),
		"fast": make(chan struct{}),
	}
	ids := map[string]int{"slow": 1, "fast": 2}
	c := CreatorFunc(func(ctx context.Context, p model.NewTodo) (model.Todo, error) {
		<-release[p.Text]
		return model.Todo{ID: ids[p.Text], Text: p.Text}, nil
	})
	l := New(c)

	var wg sync.WaitGroup
	for _, text := range []string{"slow", "fast"} {
		wg.Add(1)
		go func(text string) {
			defer wg.Done()
			if err := l.Create(context.Background(), model.NewTodo{Text: text}); err != nil {
				t.Error(err)
			}
		}(text)
	}

	close(release["fast"])
	// wait for the fast one to land before releasing the slow one
	for l.Len() == 0 {
		runtime.Gosched()
	}
	close(release["slow"])
	wg.Wait()

	want := []model.Todo{{ID: 1, Text: "slow"}, {ID: 2, Text: "fast"}}
	if diff := cmp.Diff(want, l.Todos()); diff != "" {
		t.Errorf("Todos (-want +got):\n%s", diff)
	}
}

func TestUpdateMergesMatchingRecord(t *testing.T) {
	l := New(&fakeCreator{})
	if err := l.Create(context.Background(), model.NewTodo{Text: "buy milk"}); err != nil {
		t.Fatal(err)
	}

	l.Update(model.TodoPatch{ID: 1, Completed: boolPtr(true)})

	want := []model.Todo{{ID: 1, Text: "buy milk", Completed: true}}
	if diff := cmp.Diff(want, l.Todos()); diff != "" {
		t.Errorf("Todos (-want +got):\n%s", diff)
	}
}

func TestUpdateUnknownIDIsNoop(t *testing.T) {
	l := New(&fakeCreator{})
	if err := l.Create(context.Background(), model.NewTodo{Text: "buy milk"}); err != nil {
		t.Fatal(err)
	}
	before := l.Todos()

	l.Update(model.TodoPatch{ID: 2, Completed: boolPtr(true)})

	if diff := cmp.Diff(before, l.Todos()); diff != "" {
		t.Errorf("list changed (-before +after):\n%s", diff)
	}
}

func TestTodosReturnsCopy(t *testing.T) {
	l := New(&fakeCreator{})
	if err := l.Create(context.Background(), model.NewTodo{Text: "x"}); err != nil {
		t.Fatal(err)
	}
	got := l.Todos()
	got[0].Text = "mutated"
	if l.Todos()[0].Text != "x" {
		t.Error("Todos exposes internal state")
	}
}

func TestTodosCopiesLabels(t *testing.T) {
	l := New(&fakeCreator{})
	l.todos = []model.Todo{{ID: 1, Text: "x", Labels: []model.Label{{ID: 1, Name: "home"}}}}

	got := l.Todos()
	got[0].Labels[0].Name = "mutated"
	if name := l.Todos()[0].Labels[0].Name; name != "home" {
		t.Errorf("label name = %q, Todos shares labels with internal state", name)
	}
}

func TestMergeByIDLeavesOthersAlone(t *testing.T) {
	in := []model.Todo{{ID: 3, Text: "c"}, {ID: 2, Text: "b"}, {ID: 1, Text: "a"}}
	text := "B"

	got := MergeByID(in, model.TodoPatch{ID: 2, Text: &text})

	want := []model.Todo{{ID: 3, Text: "c"}, {ID: 2, Text: "B"}, {ID: 1, Text: "a"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("MergeByID (-want +got):\n%s", diff)
	}
	if in[1].Text != "b" {
		t.Error("MergeByID mutated its input")
	}
}

func TestPrependDoesNotMutateInput(t *testing.T) {
	in := make([]model.Todo, 1, 4)
	in[0] = model.Todo{ID: 1}
	got := Prepend(in, model.Todo{ID: 2})
	if in[0].ID != 1 || got[0].ID != 2 || got[1].ID != 1 {
		t.Errorf("Prepend: in=%v got=%v", in, got)
	}
}
