package capture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"testing"
	"time"
)

var errStage = errors.New("stage failed")

type recorder struct {
	calls []string
}

func (r *recorder) source(name string, ok bool, err error) Source {
	return SourceFunc(func(ctx context.Context, c *Context) (bool, error) {
		r.calls = append(r.calls, name)
		return ok, err
	})
}

func (r *recorder) processor(name string, ok bool, err error) Processor {
	return ProcessorFunc(func(ctx context.Context, c *Context) (bool, error) {
		r.calls = append(r.calls, name)
		return ok, err
	})
}

func (r *recorder) destination(name string, ok bool, err error) Destination {
	return DestinationFunc(func(ctx context.Context, c *Context) (bool, error) {
		r.calls = append(r.calls, name)
		return ok, err
	})
}

func newTestContext() *Context {
	return NewContext(Defaults{FilenamePattern: "${title}"}, time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC))
}

func TestFlowAction_SourceFalseSkipsEverythingElse(t *testing.T) {
	r := &recorder{}
	action := &FlowAction{
		Context:     newTestContext(),
		Source:      r.source("source", false, nil),
		Processor:   r.processor("processor", true, nil),
		Destination: r.destination("destination", true, nil),
	}
	ok, err := action.Execute(context.Background())
	if err != nil || ok {
		t.Fatalf("Execute = %v, %v; want false, nil", ok, err)
	}
	if len(r.calls) != 1 || r.calls[0] != "source" {
		t.Fatalf("calls = %v, want only the source", r.calls)
	}
}

func TestFlowAction_MissingStages(t *testing.T) {
	r := &recorder{}
	cases := []struct {
		stage  string
		action FlowAction
	}{
		{"Context", FlowAction{Source: r.source("s", true, nil), Destination: r.destination("d", true, nil)}},
		{"Source", FlowAction{Context: newTestContext(), Destination: r.destination("d", true, nil)}},
		{"Destination", FlowAction{Context: newTestContext(), Source: r.source("s", true, nil)}},
	}
	for _, tc := range cases {
		_, err := tc.action.Execute(context.Background())
		var missing *MissingStageError
		if !errors.As(err, &missing) || missing.Stage != tc.stage {
			t.Errorf("missing %s: error = %v", tc.stage, err)
		}
		if !errors.Is(err, ErrMissingStage) {
			t.Errorf("missing %s: error does not wrap ErrMissingStage", tc.stage)
		}
	}
	if len(r.calls) != 0 {
		t.Fatalf("stages ran despite invalid action: %v", r.calls)
	}
}

func TestFlowAction_ProcessorIsOptionalAndAdvisory(t *testing.T) {
	for _, withProcessor := range []bool{false, true} {
		r := &recorder{}
		action := &FlowAction{
			Context:     newTestContext(),
			Source:      r.source("source", true, nil),
			Destination: r.destination("destination", true, nil),
		}
		want := []string{"source", "destination"}
		if withProcessor {
			action.Processor = r.processor("processor", false, nil)
			want = []string{"source", "processor", "destination"}
		}
		ok, err := action.Execute(context.Background())
		if err != nil || !ok {
			t.Fatalf("processor=%v: Execute = %v, %v", withProcessor, ok, err)
		}
		if len(r.calls) != len(want) {
			t.Fatalf("processor=%v: calls = %v, want %v", withProcessor, r.calls, want)
		}
		for i := range want {
			if r.calls[i] != want[i] {
				t.Fatalf("processor=%v: calls = %v, want %v", withProcessor, r.calls, want)
			}
		}
	}
}

func TestFlowAction_ReturnsDestinationResult(t *testing.T) {
	r := &recorder{}
	action := &FlowAction{
		Context:     newTestContext(),
		Source:      r.source("source", true, nil),
		Destination: r.destination("destination", false, nil),
	}
	if ok, err := action.Execute(context.Background()); ok || err != nil {
		t.Fatalf("Execute = %v, %v; want false, nil", ok, err)
	}
}

func TestFlowAction_StageErrorsPropagateOnce(t *testing.T) {
	cases := []struct {
		name  string
		build func(r *recorder) *FlowAction
		calls int
	}{
		{"source", func(r *recorder) *FlowAction {
			return &FlowAction{Context: newTestContext(), Source: r.source("s", true, errStage), Processor: r.processor("p", true, nil), Destination: r.destination("d", true, nil)}
		}, 1},
		{"processor", func(r *recorder) *FlowAction {
			return &FlowAction{Context: newTestContext(), Source: r.source("s", true, nil), Processor: r.processor("p", true, errStage), Destination: r.destination("d", true, nil)}
		}, 2},
		{"destination", func(r *recorder) *FlowAction {
			return &FlowAction{Context: newTestContext(), Source: r.source("s", true, nil), Destination: r.destination("d", true, errStage)}
		}, 2},
	}
	for _, tc := range cases {
		r := &recorder{}
		ok, err := tc.build(r).Execute(context.Background())
		if ok || !errors.Is(err, errStage) {
			t.Errorf("%s: Execute = %v, %v", tc.name, ok, err)
		}
		if len(r.calls) != tc.calls {
			t.Errorf("%s: calls = %v, want %d (no retries)", tc.name, r.calls, tc.calls)
		}
	}
}

// memorySink encodes whatever it receives so repeated runs can be compared.
type memorySink struct {
	artifacts [][]byte
}

func (m *memorySink) Export(ctx context.Context, c *Context) (bool, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, c.Capture.Content); err != nil {
		return false, err
	}
	buf.WriteString(c.Filename())
	m.artifacts = append(m.artifacts, buf.Bytes())
	return true, nil
}

func TestFlowAction_Idempotent(t *testing.T) {
	screen := image.NewRGBA(image.Rect(0, 0, 16, 9))
	for i := range screen.Pix {
		screen.Pix[i] = uint8(i * 7)
	}
	source := SourceFunc(func(ctx context.Context, c *Context) (bool, error) {
		img := image.NewRGBA(screen.Rect)
		copy(img.Pix, screen.Pix)
		c.SetCapture(NewElement(img), image.Pt(100, 50))
		c.Title = "terminal"
		return true, nil
	})
	sink := &memorySink{}
	for i := 0; i < 2; i++ {
		action := &FlowAction{Context: newTestContext(), Source: source, Destination: sink}
		if ok, err := action.Execute(context.Background()); !ok || err != nil {
			t.Fatalf("run %d: %v, %v", i, ok, err)
		}
	}
	if !bytes.Equal(sink.artifacts[0], sink.artifacts[1]) {
		t.Fatalf("two runs over the same source produced different artifacts")
	}
}

func TestStackSource_RunsEveryMember(t *testing.T) {
	r := &recorder{}
	stack := StackSource{
		r.source("a", true, nil),
		r.source("b", false, nil),
		r.source("c", true, nil),
	}
	ok, err := stack.Import(context.Background(), newTestContext())
	if err != nil || ok {
		t.Fatalf("Import = %v, %v; want false, nil", ok, err)
	}
	if len(r.calls) != 3 {
		t.Fatalf("calls = %v, want all three", r.calls)
	}

	all := StackSource{r.source("d", true, nil), r.source("e", true, nil)}
	if ok, _ := all.Import(context.Background(), newTestContext()); !ok {
		t.Fatalf("all-true stack reported false")
	}
}

func TestStackProcessor_RunsEveryMember(t *testing.T) {
	for _, failing := range []int{0, 1, 2} {
		r := &recorder{}
		var stack StackProcessor
		for i, name := range []string{"a", "b", "c"} {
			stack = append(stack, r.processor(name, i != failing, nil))
		}
		ok, err := stack.Process(context.Background(), newTestContext())
		if err != nil || ok {
			t.Fatalf("failing=%d: Process = %v, %v", failing, ok, err)
		}
		if len(r.calls) != 3 {
			t.Fatalf("failing=%d: calls = %v, want every member exactly once", failing, r.calls)
		}
	}
}

func TestStackProcessor_ErrorStops(t *testing.T) {
	r := &recorder{}
	stack := StackProcessor{
		r.processor("a", true, nil),
		r.processor("b", true, errStage),
		r.processor("c", true, nil),
	}
	if _, err := stack.Process(context.Background(), newTestContext()); !errors.Is(err, errStage) {
		t.Fatalf("error = %v", err)
	}
	if len(r.calls) != 2 {
		t.Fatalf("calls = %v", r.calls)
	}
}

func TestStackSource_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &recorder{}
	stack := StackSource{
		SourceFunc(func(ctx context.Context, c *Context) (bool, error) {
			cancel()
			return true, nil
		}),
		r.source("after", true, nil),
	}
	if _, err := stack.Import(ctx, newTestContext()); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if len(r.calls) != 0 {
		t.Fatalf("source ran after cancellation")
	}
}

func TestFamily_LazyAndCached(t *testing.T) {
	fetches := 0
	items := 0
	f := NewFamily(func(ctx context.Context) ([]Destination, error) {
		fetches++
		out := make([]Destination, items)
		for i := range out {
			out[i] = DestinationFunc(func(ctx context.Context, c *Context) (bool, error) { return true, nil })
		}
		return out, nil
	})
	if fetches != 0 {
		t.Fatalf("family fetched eagerly")
	}

	got, err := f.Destinations(context.Background())
	if err != nil || len(got) != 0 {
		t.Fatalf("empty state: %d members, %v", len(got), err)
	}

	items = 2
	got, _ = f.Destinations(context.Background())
	if len(got) != 0 || fetches != 1 {
		t.Fatalf("cache not used: %d members after %d fetches", len(got), fetches)
	}

	f.Invalidate()
	got, _ = f.Destinations(context.Background())
	if len(got) != 2 || fetches != 2 {
		t.Fatalf("after invalidate: %d members after %d fetches", len(got), fetches)
	}
}

func TestElement_HasAlpha(t *testing.T) {
	if NewElement(image.NewRGBA(image.Rect(0, 0, 1, 1))).HasAlpha() {
		t.Errorf("RGBA reported alpha")
	}
	el := NewElement(image.NewNRGBA(image.Rect(5, 5, 8, 9)))
	if !el.HasAlpha() {
		t.Errorf("NRGBA did not report alpha")
	}
	if el.Bounds != image.Rect(0, 0, 3, 4) {
		t.Errorf("bounds = %v, want rooted at origin", el.Bounds)
	}
}
