// Package stream turns an incremental backend response into rendered frames
// and a committed message.
package stream

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// Frames is the ordered glyph cycle shown before the first fragment.
var Frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

var citationPattern = regexp.MustCompile(`【[^【】]*】`)

// StripCitations removes bracketed citation markers such as 【4:0†source】.
func StripCitations(s string) string {
	return citationPattern.ReplaceAllString(s, "")
}

// Event is one item of a producer stream: a text fragment or a terminal
// error.
type Event struct {
	Delta string
	Err   error
}

// Frame is a rendered state of the response.
type Frame struct {
	Waiting bool
	Glyph   string
	Tick    int
	Content string
}

// Result is the committed outcome of a stream.
type Result struct {
	Content   string
	Fragments int
	Ticks     int
}

// Aggregator consumes a fragment stream.
type Aggregator struct {
	frames []string
}

// NewAggregator returns an aggregator using the default glyph cycle.
func NewAggregator() *Aggregator {
	return &Aggregator{frames: Frames}
}

// Consume reads events until the channel closes or an error event arrives.
// A waiting frame is rendered at once and on every tick until the first
// fragment; afterwards every fragment renders the citation-free accumulated
// text. The committed content is a final strip of the full accumulator, so
// markers split across fragments never survive. On error the partial
// content is returned with it.
func (a *Aggregator) Consume(events <-chan Event, ticks <-chan time.Time, render func(Frame)) (Result, error) {
	var (
		acc strings.Builder
		res Result
	)

	render(a.waiting(0))

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				res.Content = StripCitations(acc.String())
				return res, nil
			}
			if ev.Err != nil {
				res.Content = StripCitations(acc.String())
				return res, ev.Err
			}
			if ev.Delta == "" {
				continue
			}
			acc.WriteString(ev.Delta)
			res.Fragments++
			ticks = nil
			render(Frame{Content: StripCitations(acc.String())})

		case <-ticks:
			res.Ticks++
			render(a.waiting(res.Ticks))
		}
	}
}

func (a *Aggregator) waiting(tick int) Frame {
	return Frame{
		Waiting: true,
		Glyph:   a.frames[tick%len(a.frames)],
		Tick:    tick,
	}
}

// Producer streams fragments through emit. It stops when emit returns an
// error.
type Producer func(ctx context.Context, emit func(delta string) error) error

// Pump runs produce in its own goroutine and exposes its output as an event
// channel. A producer error is delivered as the last event before the
// channel closes.
func Pump(ctx context.Context, produce Producer) <-chan Event {
	events := make(chan Event)

	go func() {
		defer close(events)

		err := produce(ctx, func(delta string) error {
			select {
			case events <- Event{Delta: delta}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			select {
			case events <- Event{Err: err}:
			case <-ctx.Done():
			}
		}
	}()

	return events
}
