package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feed(events ...Event) <-chan Event {
	ch := make(chan Event, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return ch
}

func TestStripCitations(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Revenue grew 10%【a1b2】 last year.", "Revenue grew 10% last year."},
		{"a【4:0†source】b【x】c", "abc"},
		{"no markers", "no markers"},
		{"open 【 only", "open 【 only"},
		{"【outer【inner】", "【outer"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripCitations(tt.in), tt.in)
	}
}

func TestConsume_CommitsStrippedContent(t *testing.T) {
	var frames []Frame
	res, err := NewAggregator().Consume(
		feed(Event{Delta: "Revenue grew 10%【a1"}, Event{Delta: "b2】 last year."}),
		nil,
		func(f Frame) { frames = append(frames, f) },
	)
	require.NoError(t, err)

	assert.Equal(t, "Revenue grew 10% last year.", res.Content)
	assert.Equal(t, 2, res.Fragments)

	require.Len(t, frames, 3)
	assert.True(t, frames[0].Waiting)
	assert.Equal(t, "Revenue grew 10%【a1", frames[1].Content)
	assert.Equal(t, "Revenue grew 10% last year.", frames[2].Content)
}

func TestConsume_EmptyStream(t *testing.T) {
	var frames []Frame
	res, err := NewAggregator().Consume(feed(), nil, func(f Frame) { frames = append(frames, f) })
	require.NoError(t, err)

	assert.Empty(t, res.Content)
	require.Len(t, frames, 1)
	assert.True(t, frames[0].Waiting)
	assert.Equal(t, Frames[0], frames[0].Glyph)
}

func TestConsume_WaitingFramesCycleOnTicks(t *testing.T) {
	events := make(chan Event)
	ticks := make(chan time.Time, 1)
	ticks <- time.Now()

	var frames []Frame
	res, err := NewAggregator().Consume(events, ticks, func(f Frame) {
		frames = append(frames, f)
		if f.Waiting && f.Tick == 1 {
			close(events)
		}
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Ticks)
	require.Len(t, frames, 2)
	assert.Equal(t, Frames[0], frames[0].Glyph)
	assert.Equal(t, Frames[1], frames[1].Glyph)
}

func TestConsume_TicksIgnoredAfterFirstFragment(t *testing.T) {
	events := make(chan Event, 1)
	events <- Event{Delta: "hi"}
	ticks := make(chan time.Time, 1)

	var frames []Frame
	_, err := NewAggregator().Consume(events, ticks, func(f Frame) {
		frames = append(frames, f)
		if !f.Waiting {
			ticks <- time.Now()
			close(events)
		}
	})
	require.NoError(t, err)

	for _, f := range frames[1:] {
		assert.False(t, f.Waiting)
	}
}

func TestConsume_ErrorKeepsPartialContent(t *testing.T) {
	boom := errors.New("connection reset")
	res, err := NewAggregator().Consume(
		feed(Event{Delta: "partial【1】"}, Event{Err: boom}),
		nil,
		func(Frame) {},
	)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "partial", res.Content)
}

func TestPump(t *testing.T) {
	boom := errors.New("run failed")
	events := Pump(context.Background(), func(_ context.Context, emit func(string) error) error {
		for _, d := range []string{"a", "b"} {
			if err := emit(d); err != nil {
				return err
			}
		}
		return boom
	})

	var got []Event
	for ev := range events {
		got = append(got, ev)
	}
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].Delta)
	assert.Equal(t, "b", got[1].Delta)
	assert.ErrorIs(t, got[2].Err, boom)
}

func TestPump_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	events := Pump(ctx, func(ctx context.Context, emit func(string) error) error {
		for {
			if err := emit("x"); err != nil {
				done <- err
				return err
			}
		}
	})

	<-events
	cancel()
	for range events {
	}
	assert.ErrorIs(t, <-done, context.Canceled)
}
