package event

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesMatchingSubscriber(t *testing.T) {
	b := New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runID := uuid.New()
	ch, err := b.Subscribe(ctx, Filter{RunID: runID, Types: []Type{TypeJobCompleted}})
	require.NoError(t, err)

	b.Publish(Event{Type: TypeJobCompleted, RunID: uuid.New(), Timestamp: time.Now()})
	b.Publish(Event{Type: TypeJobStarted, RunID: runID, Timestamp: time.Now()})
	b.Publish(Event{Type: TypeJobCompleted, RunID: runID, Job: "checkout", Timestamp: time.Now()})

	select {
	case e := <-ch:
		assert.Equal(t, TypeJobCompleted, e.Type)
		assert.Equal(t, "checkout", e.Job)
	case <-time.After(time.Second):
		t.Fatal("expected event not delivered")
	}

	select {
	case e := <-ch:
		t.Fatalf("unexpected extra event: %+v", e)
	default:
	}
}

func TestSubscribeCancelClosesChannel(t *testing.T) {
	b := New()

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := b.Subscribe(ctx, Filter{})
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}

	// must not panic after the subscriber is gone
	b.Publish(Event{Type: TypeRunCompleted, Timestamp: time.Now()})
}
