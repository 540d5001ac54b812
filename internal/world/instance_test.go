package world

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/annel0/blockverse/internal/area"
	"github.com/annel0/blockverse/internal/eventbus"
	"github.com/annel0/blockverse/internal/storage"
	"github.com/annel0/blockverse/internal/vec"
	"github.com/annel0/blockverse/internal/world/biome"
	"github.com/annel0/blockverse/internal/world/block"
	"github.com/annel0/blockverse/internal/world/generation"
	"github.com/annel0/blockverse/internal/world/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testMinY = 0
	testMaxY = 16
)

var spill = vec.Vec3{X: 16, Y: 5, Z: 0}

// flatGenerator кладёт камень в нижний слой, а колонка (0,0) дописывает бревно в соседнюю колонку
func flatGenerator(calls *atomic.Int32) generation.Generator {
	return generation.GeneratorFunc(func(ctx context.Context, unit generation.GenerationUnit) error {
		calls.Add(1)
		if err := unit.Modifier().FillHeight(testMinY, 1, block.StoneBlockID); err != nil {
			return err
		}
		if unit.Area().Contains(vec.Vec3{}) {
			return unit.Fork(area.Single(spill)).SetBlock(spill, block.LogBlockID)
		}
		return nil
	})
}

func newTestInstance(t *testing.T, opts Options) *Instance {
	t.Helper()
	opts.MinY, opts.MaxY = testMinY, testMaxY
	inst, err := NewInstance(opts)
	require.NoError(t, err)
	return inst
}

func column(x, z int) area.Area {
	return area.ColumnArea(vec.Vec2{X: x, Y: z}, testMinY, testMaxY)
}

func TestGenerateWithoutGenerator(t *testing.T) {
	inst := newTestInstance(t, Options{})
	_, err := inst.Generate(context.Background(), column(0, 0))
	assert.ErrorIs(t, err, ErrNoGenerator)
	assert.Empty(t, inst.Loaded())
}

func TestNewInstanceRejectsEmptyHeight(t *testing.T) {
	_, err := NewInstance(Options{MinY: 10, MaxY: 10})
	assert.Error(t, err)
}

func TestLoadAreaGenerates(t *testing.T) {
	var calls atomic.Int32
	inst := newTestInstance(t, Options{Generator: flatGenerator(&calls)})
	ctx := context.Background()

	n, err := inst.LoadArea(ctx, area.Union(column(0, 0), column(-1, 0)))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []vec.Vec2{{X: -1, Y: 0}, {X: 0, Y: 0}}, inst.Loaded())

	id, err := inst.Block(vec.Vec3{X: -5, Y: 0, Z: 3})
	require.NoError(t, err)
	assert.Equal(t, block.StoneBlockID, id)

	id, err = inst.Block(vec.Vec3{X: 2, Y: 8, Z: 2})
	require.NoError(t, err)
	assert.Equal(t, block.AirBlockID, id)

	_, err = inst.Block(vec.Vec3{X: 40, Y: 0, Z: 0})
	assert.ErrorIs(t, err, view.ErrOutOfBounds, "колонка не загружена")

	// Повторная загрузка ничего не делает
	n, err = inst.LoadArea(ctx, column(0, 0))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, int32(2), calls.Load())
}

func TestForkStagedUntilColumnLoads(t *testing.T) {
	var calls atomic.Int32
	inst := newTestInstance(t, Options{Generator: flatGenerator(&calls)})
	ctx := context.Background()

	_, err := inst.LoadArea(ctx, column(0, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, inst.Forks().Pending(vec.Vec2{X: 1, Y: 0}))

	_, err = inst.Block(spill)
	assert.ErrorIs(t, err, view.ErrOutOfBounds)

	_, err = inst.LoadArea(ctx, column(1, 0))
	require.NoError(t, err)
	assert.Equal(t, 0, inst.Forks().Pending(vec.Vec2{X: 1, Y: 0}))

	id, err := inst.Block(spill)
	require.NoError(t, err)
	assert.Equal(t, block.LogBlockID, id, "форк лежит поверх сгенерированной колонки")
}

func TestForkAppliedToPresentColumn(t *testing.T) {
	var calls atomic.Int32
	inst := newTestInstance(t, Options{Generator: flatGenerator(&calls)})
	ctx := context.Background()

	_, err := inst.LoadArea(ctx, column(1, 0))
	require.NoError(t, err)
	_, err = inst.LoadArea(ctx, column(0, 0))
	require.NoError(t, err)

	assert.Equal(t, 0, inst.Forks().Pending(vec.Vec2{X: 1, Y: 0}))
	id, err := inst.Block(spill)
	require.NoError(t, err)
	assert.Equal(t, block.LogBlockID, id)
}

func TestFailedGenerationDiscardsForks(t *testing.T) {
	boom := errors.New("boom")
	gen := generation.GeneratorFunc(func(ctx context.Context, unit generation.GenerationUnit) error {
		if err := unit.Fork(area.Single(spill)).SetBlock(spill, block.LogBlockID); err != nil {
			return err
		}
		return boom
	})
	inst := newTestInstance(t, Options{Generator: gen})

	_, err := inst.LoadArea(context.Background(), column(0, 0))
	assert.ErrorIs(t, err, boom)
	assert.False(t, inst.IsLoaded(vec.Vec2{}))
	assert.Equal(t, 0, inst.Forks().Pending(vec.Vec2{X: 1, Y: 0}))
}

func TestUnloadSavesAndReloads(t *testing.T) {
	store, err := storage.NewMemoryStore(2)
	require.NoError(t, err)
	defer store.Close()

	var calls atomic.Int32
	inst := newTestInstance(t, Options{Generator: flatGenerator(&calls), Provider: store})
	ctx := context.Background()

	_, err = inst.LoadArea(ctx, column(0, 0))
	require.NoError(t, err)
	flower := vec.Vec3{X: 3, Y: 1, Z: 3}
	require.NoError(t, inst.SetBlock(flower, block.FlowerBlockID))
	require.NoError(t, inst.SetBiome(flower, biome.Forest))

	n, err := inst.UnloadArea(ctx, column(0, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, inst.IsLoaded(vec.Vec2{}))
	_, err = inst.Block(flower)
	assert.ErrorIs(t, err, view.ErrOutOfBounds)
	assert.Equal(t, 0, inst.View().Len(), "слои колонки удалены")

	_, err = inst.LoadArea(ctx, column(0, 0))
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "колонка взята из хранилища")

	id, err := inst.Block(flower)
	require.NoError(t, err)
	assert.Equal(t, block.FlowerBlockID, id)
	b, err := inst.Biome(flower)
	require.NoError(t, err)
	assert.Equal(t, biome.Forest, b)
}

func TestGenerateSkipsStorage(t *testing.T) {
	store, err := storage.NewMemoryStore(1)
	require.NoError(t, err)
	defer store.Close()

	var calls atomic.Int32
	inst := newTestInstance(t, Options{Generator: flatGenerator(&calls), Provider: store})
	ctx := context.Background()

	_, err = inst.LoadArea(ctx, column(2, 2))
	require.NoError(t, err)
	_, err = inst.UnloadArea(ctx, column(2, 2))
	require.NoError(t, err)

	n, err := inst.Generate(ctx, column(2, 2))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int32(2), calls.Load())
}

type failingProvider struct{}

func (failingProvider) Load(ctx context.Context, col vec.Vec2, minY, maxY int) (view.View, error) {
	return nil, nil
}

func (failingProvider) Save(ctx context.Context, col vec.Vec2, minY, maxY int, v view.View) error {
	return errors.New("disk full")
}

func (failingProvider) Close() error { return nil }

func TestUnloadKeepsColumnOnSaveError(t *testing.T) {
	var calls atomic.Int32
	inst := newTestInstance(t, Options{Generator: flatGenerator(&calls), Provider: failingProvider{}})
	ctx := context.Background()

	_, err := inst.LoadArea(ctx, column(0, 0))
	require.NoError(t, err)

	n, err := inst.UnloadArea(ctx, column(0, 0))
	assert.Error(t, err)
	assert.Equal(t, 0, n)
	assert.True(t, inst.IsLoaded(vec.Vec2{}))

	assert.Error(t, inst.Save(ctx))
}

func TestTickFollowsViewer(t *testing.T) {
	var calls atomic.Int32
	inst := newTestInstance(t, Options{Generator: flatGenerator(&calls)})
	ctx := context.Background()

	report, err := inst.Tick(ctx, inst.ViewDistance(vec.Vec3{X: 5, Y: 3, Z: 5}, 1))
	require.NoError(t, err)
	assert.Equal(t, 9, report.Loaded)
	assert.Equal(t, 0, report.Unloaded)
	assert.Equal(t, 9, report.Columns)
	assert.Equal(t, uint64(1), inst.CurrentTick())

	report, err = inst.Tick(ctx, inst.ViewDistance(vec.Vec3{X: 16, Y: 3, Z: 5}, 1))
	require.NoError(t, err)
	assert.Equal(t, 3, report.Loaded)
	assert.Equal(t, 3, report.Unloaded)
	assert.Equal(t, 9, report.Columns)
	assert.False(t, inst.IsLoaded(vec.Vec2{X: -1, Y: 0}))
	assert.True(t, inst.IsLoaded(vec.Vec2{X: 2, Y: 1}))

	report, err = inst.Tick(ctx, inst.ViewDistance(vec.Vec3{X: 16, Y: 3, Z: 5}, 1))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Loaded)
	assert.Equal(t, 0, report.Unloaded)
}

func TestViewDistance(t *testing.T) {
	a := ViewDistance(vec.Vec3{X: -1, Y: 70, Z: 17}, 2, 0, 256)
	assert.Equal(t, vec.Vec3{X: -48, Y: 0, Z: -16}, a.Min())
	assert.Equal(t, vec.Vec3{X: 32, Y: 256, Z: 64}, a.Max())
	assert.Len(t, area.Columns(a), 25)
}

func TestBackdropSurvivesUnload(t *testing.T) {
	inst := newTestInstance(t, Options{Backdrop: view.NewConstant(block.WaterBlockID, biome.Water)})
	ctx := context.Background()

	id, err := inst.Block(vec.Vec3{X: 1000, Y: 3, Z: -1000})
	require.NoError(t, err)
	assert.Equal(t, block.WaterBlockID, id)

	_, err = inst.LoadArea(ctx, column(0, 0))
	require.NoError(t, err)
	id, err = inst.Block(vec.Vec3{X: 1, Y: 3, Z: 1})
	require.NoError(t, err)
	assert.Equal(t, block.AirBlockID, id, "пустая колонка поверх фона")

	_, err = inst.UnloadArea(ctx, column(0, 0))
	require.NoError(t, err)
	id, err = inst.Block(vec.Vec3{X: 1, Y: 3, Z: 1})
	require.NoError(t, err)
	assert.Equal(t, block.WaterBlockID, id)
}

func TestMutateIsAtomic(t *testing.T) {
	var calls atomic.Int32
	inst := newTestInstance(t, Options{Generator: flatGenerator(&calls)})
	ctx := context.Background()
	_, err := inst.LoadArea(ctx, column(0, 0))
	require.NoError(t, err)

	err = inst.Mutate(func(w view.Writer) error {
		if err := w.SetBlock(vec.Vec3{X: 1, Y: 1, Z: 1}, block.SandBlockID); err != nil {
			return err
		}
		return w.SetBlock(vec.Vec3{X: 100, Y: 1, Z: 1}, block.SandBlockID)
	})
	assert.ErrorIs(t, err, view.ErrOutOfBounds)

	id, err := inst.Block(vec.Vec3{X: 1, Y: 1, Z: 1})
	require.NoError(t, err)
	assert.Equal(t, block.AirBlockID, id, "пакет с ошибкой не публикуется")
}

func TestLoadAreaUnbounded(t *testing.T) {
	inst := newTestInstance(t, Options{})
	_, err := inst.LoadArea(context.Background(), area.Full())
	assert.ErrorIs(t, err, area.ErrUnbounded)
}

func TestInstancePublishesEvents(t *testing.T) {
	bus := eventbus.NewMemoryBus(64)
	store, err := storage.NewMemoryStore(1)
	require.NoError(t, err)
	defer store.Close()

	var mu sync.Mutex
	var got []string
	_, err = bus.Subscribe(context.Background(), eventbus.Filter{}, func(ctx context.Context, ev *eventbus.Envelope) {
		ce, err := ev.Column()
		assert.NoError(t, err)
		mu.Lock()
		got = append(got, ev.EventType+":"+ce.Source)
		mu.Unlock()
	})
	require.NoError(t, err)

	inst := newTestInstance(t, Options{Name: "test", Provider: store, Events: bus})
	ctx := context.Background()

	_, err = inst.LoadArea(ctx, column(0, 0))
	require.NoError(t, err)
	require.NoError(t, inst.Save(ctx))
	_, err = inst.UnloadArea(ctx, column(0, 0))
	require.NoError(t, err)
	_, err = inst.LoadArea(ctx, column(0, 0))
	require.NoError(t, err)

	require.NoError(t, bus.Close())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		eventbus.EventColumnLoaded + ":empty",
		eventbus.EventWorldSaved + ":",
		eventbus.EventColumnUnloaded + ":",
		eventbus.EventColumnLoaded + ":storage",
	}, got)
}
