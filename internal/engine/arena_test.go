package engine

import (
	"errors"
	"reflect"
	"testing"
)

func TestArena_ReleasesInReverseOrder(t *testing.T) {
	var order []string
	a := &Arena{}
	for _, name := range []string{"dc", "compatible", "section", "select"} {
		name := name
		a.Defer(name, func() error {
			order = append(order, name)
			return nil
		})
	}
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	want := []string{"select", "section", "compatible", "dc"}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("release order = %v, want %v", order, want)
	}
}

func TestArena_FailuresDoNotStopTeardown(t *testing.T) {
	first := errors.New("first")
	second := errors.New("second")
	ran := 0
	a := &Arena{}
	a.Defer("a", func() error { ran++; return first })
	a.Defer("b", func() error { ran++; return nil })
	a.Defer("c", func() error { ran++; return second })

	err := a.Close()
	if ran != 3 {
		t.Fatalf("ran %d releases, want 3", ran)
	}
	if !errors.Is(err, first) || !errors.Is(err, second) {
		t.Fatalf("joined error = %v", err)
	}
}

func TestArena_EarlyReleaseRunsOnce(t *testing.T) {
	calls := 0
	a := &Arena{}
	release := a.Defer("select", func() error { calls++; return nil })

	if err := release(); err != nil {
		t.Fatalf("early release: %v", err)
	}
	if a.Len() != 0 {
		t.Fatalf("pending = %d after early release", a.Len())
	}
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := release(); err != nil {
		t.Fatalf("late release: %v", err)
	}
	if calls != 1 {
		t.Fatalf("release ran %d times, want 1", calls)
	}
}
