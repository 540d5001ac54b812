package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu     sync.Mutex
	events []*Envelope
}

func (c *collector) handle(_ context.Context, ev *Envelope) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func (c *collector) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, ev := range c.events {
		out[i] = ev.EventType
	}
	return out
}

func columnEnvelope(t *testing.T, eventType string, x, z int) *Envelope {
	t.Helper()
	ev, err := NewEnvelope("test", eventType, 1, ColumnEvent{World: "w", X: x, Z: z})
	require.NoError(t, err)
	return ev
}

func TestEnvelopeColumn(t *testing.T) {
	ev := columnEnvelope(t, EventColumnLoaded, -3, 7)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, 1, ev.Version)

	ce, err := ev.Column()
	require.NoError(t, err)
	assert.Equal(t, ColumnEvent{World: "w", X: -3, Z: 7}, ce)
}

func TestMemoryBusOrderedDelivery(t *testing.T) {
	bus := NewMemoryBus(64)
	ctx := context.Background()

	var all, loaded collector
	_, err := bus.Subscribe(ctx, Filter{}, all.handle)
	require.NoError(t, err)
	_, err = bus.Subscribe(ctx, Filter{Types: []string{EventColumnLoaded}}, loaded.handle)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, columnEnvelope(t, EventColumnLoaded, 0, 0)))
	require.NoError(t, bus.Publish(ctx, columnEnvelope(t, EventColumnUnloaded, 0, 0)))
	require.NoError(t, bus.Publish(ctx, columnEnvelope(t, EventColumnLoaded, 1, 0)))

	// Close доставляет очередь до конца
	require.NoError(t, bus.Close())

	assert.Equal(t, []string{EventColumnLoaded, EventColumnUnloaded, EventColumnLoaded}, all.types())
	assert.Equal(t, []string{EventColumnLoaded, EventColumnLoaded}, loaded.types())

	stats := bus.Metrics()
	assert.Equal(t, uint64(3), stats.Published)
	assert.Equal(t, uint64(5), stats.Consumed)

	assert.ErrorIs(t, bus.Publish(ctx, columnEnvelope(t, EventWorldSaved, 0, 0)), ErrClosed)
	assert.NoError(t, bus.Close())
}

func TestMemoryBusDropsLowPriority(t *testing.T) {
	bus := NewMemoryBus(1)
	defer bus.Close()
	ctx := context.Background()

	release := make(chan struct{})
	_, err := bus.Subscribe(ctx, Filter{}, func(ctx context.Context, ev *Envelope) {
		<-release
	})
	require.NoError(t, err)

	// Первое событие занимает обработчик, второе ждёт в очереди, остальные отбрасываются
	for i := 0; i < 10; i++ {
		require.NoError(t, bus.Publish(ctx, columnEnvelope(t, EventColumnLoaded, i, 0)))
	}
	assert.Eventually(t, func() bool { return bus.Metrics().Dropped >= 8 }, time.Second, 5*time.Millisecond)
	close(release)
}

func TestMemoryBusUnsubscribe(t *testing.T) {
	bus := NewMemoryBus(8)
	defer bus.Close()
	ctx := context.Background()

	var c collector
	sub, err := bus.Subscribe(ctx, Filter{Sources: []string{"test"}}, c.handle)
	require.NoError(t, err)
	sub.Unsubscribe()

	require.NoError(t, bus.Publish(ctx, columnEnvelope(t, EventColumnLoaded, 0, 0)))
	assert.Empty(t, c.types())
}

func TestMatchFilter(t *testing.T) {
	ev := &Envelope{EventType: EventColumnLoaded, Source: "a"}
	assert.True(t, matchFilter(ev, Filter{}))
	assert.True(t, matchFilter(ev, Filter{Types: []string{EventWorldSaved, EventColumnLoaded}}))
	assert.False(t, matchFilter(ev, Filter{Types: []string{EventWorldSaved}}))
	assert.False(t, matchFilter(ev, Filter{Sources: []string{"b"}}))
}

func TestRegisterMetrics(t *testing.T) {
	bus := NewMemoryBus(4)
	defer bus.Close()
	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterMetrics(reg, bus))

	require.NoError(t, bus.Publish(context.Background(), columnEnvelope(t, EventColumnLoaded, 0, 0)))
	n, err := testutil.GatherAndCount(reg, "eventbus_messages_published_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
