package tracer

import (
	"context"
	"sync"
)

// NoopTracer discards all spans.
type NoopTracer struct{}

func NewNoop() *NoopTracer {
	return &NoopTracer{}
}

func (t *NoopTracer) Start(ctx context.Context, _ string, _ ...Attribute) (context.Context, Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(_ error)                       {}
func (noopSpan) SetAttributes(_ ...Attribute)      {}
func (noopSpan) AddEvent(_ string, _ ...Attribute) {}

// RecordedSpan is a finished span captured by Recorder.
type RecordedSpan struct {
	Name   string
	Attrs  map[string]any
	Events []string
	Err    error
	Ended  bool
}

// Recorder keeps every span in memory.
type Recorder struct {
	mu    sync.Mutex
	spans []*RecordedSpan
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span) {
	s := &RecordedSpan{Name: name, Attrs: make(map[string]any)}
	r.mu.Lock()
	r.spans = append(r.spans, s)
	r.mu.Unlock()
	rs := &recordingSpan{recorder: r, span: s}
	rs.SetAttributes(attrs...)
	return ctx, rs
}

// Spans returns a snapshot of the recorded spans in start order.
func (r *Recorder) Spans() []RecordedSpan {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RecordedSpan, len(r.spans))
	for i, s := range r.spans {
		out[i] = *s
	}
	return out
}

// Find returns the first span with the given name.
func (r *Recorder) Find(name string) (RecordedSpan, bool) {
	for _, s := range r.Spans() {
		if s.Name == name {
			return s, true
		}
	}
	return RecordedSpan{}, false
}

type recordingSpan struct {
	recorder *Recorder
	span     *RecordedSpan
}

func (s *recordingSpan) End(err error) {
	s.recorder.mu.Lock()
	defer s.recorder.mu.Unlock()
	s.span.Err = err
	s.span.Ended = true
}

func (s *recordingSpan) SetAttributes(attrs ...Attribute) {
	s.recorder.mu.Lock()
	defer s.recorder.mu.Unlock()
	for _, a := range attrs {
		s.span.Attrs[a.Key] = a.Value
	}
}

func (s *recordingSpan) AddEvent(name string, _ ...Attribute) {
	s.recorder.mu.Lock()
	defer s.recorder.mu.Unlock()
	s.span.Events = append(s.span.Events, name)
}

var (
	_ Tracer = (*NoopTracer)(nil)
	_ Tracer = (*Recorder)(nil)
)
