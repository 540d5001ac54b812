// Package world собирает живой экземпляр мира: объединённый вид загруженных колонок,
// генератор, реестр форков и хранилище.
package world

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/blockverse/internal/area"
	"github.com/annel0/blockverse/internal/eventbus"
	"github.com/annel0/blockverse/internal/logging"
	"github.com/annel0/blockverse/internal/observability"
	"github.com/annel0/blockverse/internal/storage_interface"
	"github.com/annel0/blockverse/internal/vec"
	"github.com/annel0/blockverse/internal/world/biome"
	"github.com/annel0/blockverse/internal/world/block"
	"github.com/annel0/blockverse/internal/world/generation"
	"github.com/annel0/blockverse/internal/world/view"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// ErrNoGenerator возвращается при запросе генерации без настроенного генератора
var ErrNoGenerator = errors.New("no generator configured")

// Options задаёт параметры экземпляра
type Options struct {
	Name       string
	MinY, MaxY int
	// Generator заполняет колонки, которых нет в хранилище
	Generator generation.Generator
	// Provider загружает и сохраняет колонки; nil: мир живёт только в памяти
	Provider storage_interface.ChunkProvider
	// Backdrop: неограниченный нижний слой, который не выгружается
	Backdrop view.View
	// LoadWorkers ограничивает число колонок, загружаемых параллельно
	LoadWorkers int
	Metrics     *observability.WorldMetrics
	// Events получает события о загрузке, выгрузке и сохранении колонок
	Events eventbus.EventBus
}

// TickReport описывает результат одного тика
type TickReport struct {
	Loaded   int
	Unloaded int
	Columns  int
	Layers   int
	Staged   int
	Duration time.Duration
}

// Instance: живой экземпляр мира
type Instance struct {
	id   uuid.UUID
	name string
	minY int
	maxY int

	union     *view.Union
	generator generation.Generator
	forks     *generation.ForkRegistry
	provider  storage_interface.ChunkProvider
	metrics   *observability.WorldMetrics
	events    eventbus.EventBus
	tracer    trace.Tracer
	logger    *logging.Logger
	workers   int

	opMu    sync.Mutex // сериализует загрузку, выгрузку и сохранение
	mu      sync.RWMutex
	columns map[vec.Vec2]struct{}

	saveMu       sync.Mutex
	lastSaveTime time.Time
	currentTick  uint64
}

// NewInstance создаёт экземпляр мира без загруженных колонок
func NewInstance(opts Options) (*Instance, error) {
	if opts.MaxY <= opts.MinY {
		return nil, fmt.Errorf("world height [%d, %d) is empty", opts.MinY, opts.MaxY)
	}
	if opts.LoadWorkers <= 0 {
		opts.LoadWorkers = 4
	}

	inst := &Instance{
		id:           uuid.New(),
		name:         opts.Name,
		minY:         opts.MinY,
		maxY:         opts.MaxY,
		union:        view.NewUnion(),
		generator:    opts.Generator,
		forks:        generation.NewForkRegistry(),
		provider:     opts.Provider,
		metrics:      opts.Metrics,
		events:       opts.Events,
		tracer:       observability.Tracer(),
		logger:       logging.GetWorldLogger(),
		workers:      opts.LoadWorkers,
		columns:      make(map[vec.Vec2]struct{}),
		lastSaveTime: time.Now(),
	}
	if opts.Backdrop != nil {
		inst.union.Add(opts.Backdrop)
	}
	return inst, nil
}

// ID возвращает идентификатор экземпляра
func (w *Instance) ID() uuid.UUID { return w.id }

func (w *Instance) Name() string { return w.name }

// Height возвращает вертикальные границы мира [minY, maxY)
func (w *Instance) Height() (minY, maxY int) { return w.minY, w.maxY }

// View возвращает объединённый вид мира
func (w *Instance) View() *view.Union { return w.union }

// Forks возвращает реестр форков экземпляра
func (w *Instance) Forks() *generation.ForkRegistry { return w.forks }

func (w *Instance) Block(p vec.Vec3) (block.BlockID, error) { return w.union.Block(p) }

func (w *Instance) Biome(p vec.Vec3) (biome.BiomeType, error) { return w.union.Biome(p) }

func (w *Instance) SetBlock(p vec.Vec3, id block.BlockID) error { return w.union.SetBlock(p, id) }

func (w *Instance) SetBiome(p vec.Vec3, b biome.BiomeType) error { return w.union.SetBiome(p, b) }

// Mutate применяет пакет записей атомарно
func (w *Instance) Mutate(fn func(w view.Writer) error) error { return w.union.Mutate(fn) }

// ColumnArea возвращает область колонки во всю высоту мира
func (w *Instance) ColumnArea(col vec.Vec2) area.Area {
	return area.ColumnArea(col, w.minY, w.maxY)
}

// ViewDistance строит область вокруг center радиусом radius колонок, по высоте [minY, maxY)
func ViewDistance(center vec.Vec3, radius, minY, maxY int) area.Area {
	col := center.Column()
	lo := vec.Vec3{X: (col.X - radius) << vec.SectionShift, Y: minY, Z: (col.Y - radius) << vec.SectionShift}
	hi := vec.Vec3{X: (col.X + radius + 1) << vec.SectionShift, Y: maxY, Z: (col.Y + radius + 1) << vec.SectionShift}
	return area.NewFill(lo, hi)
}

// ViewDistance строит область видимости наблюдателя во всю высоту мира
func (w *Instance) ViewDistance(center vec.Vec3, radius int) area.Area {
	return ViewDistance(center, radius, w.minY, w.maxY)
}

// Loaded возвращает загруженные колонки в порядке X, затем Z
func (w *Instance) Loaded() []vec.Vec2 {
	w.mu.RLock()
	cols := make([]vec.Vec2, 0, len(w.columns))
	for col := range w.columns {
		cols = append(cols, col)
	}
	w.mu.RUnlock()
	sort.Slice(cols, func(i, j int) bool {
		if cols[i].X != cols[j].X {
			return cols[i].X < cols[j].X
		}
		return cols[i].Y < cols[j].Y
	})
	return cols
}

// IsLoaded сообщает, загружена ли колонка
func (w *Instance) IsLoaded(col vec.Vec2) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.columns[col]
	return ok
}

// LoadedArea возвращает область загруженных колонок
func (w *Instance) LoadedArea() area.Area {
	cols := w.Loaded()
	areas := make([]area.Area, len(cols))
	for i, col := range cols {
		areas[i] = w.ColumnArea(col)
	}
	return area.Union(areas...)
}

// columnsOf возвращает колонки области a в пределах высоты мира
func (w *Instance) columnsOf(a area.Area) ([]vec.Vec2, error) {
	if !area.Bounded(a) {
		return nil, area.ErrUnbounded
	}
	amin, amax := a.Min(), a.Max()
	clipped := area.Overlap(a, area.NewFill(
		vec.Vec3{X: amin.X, Y: w.minY, Z: amin.Z},
		vec.Vec3{X: amax.X, Y: w.maxY, Z: amax.Z},
	))
	return area.Columns(clipped), nil
}

// LoadArea загружает или генерирует все ещё не загруженные колонки области a
func (w *Instance) LoadArea(ctx context.Context, a area.Area) (int, error) {
	return w.loadArea(ctx, a, true)
}

// Generate генерирует не загруженные колонки области a, не обращаясь к хранилищу
func (w *Instance) Generate(ctx context.Context, a area.Area) (int, error) {
	if w.generator == nil {
		return 0, ErrNoGenerator
	}
	return w.loadArea(ctx, a, false)
}

func (w *Instance) loadArea(ctx context.Context, a area.Area, useStorage bool) (int, error) {
	cols, err := w.columnsOf(a)
	if err != nil {
		return 0, err
	}

	w.opMu.Lock()
	defer w.opMu.Unlock()
	return w.loadColumns(ctx, cols, useStorage)
}

func (w *Instance) loadColumns(ctx context.Context, cols []vec.Vec2, useStorage bool) (int, error) {
	pending := cols[:0:0]
	for _, col := range cols {
		if !w.IsLoaded(col) {
			pending = append(pending, col)
		}
	}
	if len(pending) == 0 {
		return 0, nil
	}

	ctx, span := w.tracer.Start(ctx, "world.LoadArea", trace.WithAttributes(attribute.Int("columns", len(pending))))
	defer span.End()

	var count atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.workers)
	for _, col := range pending {
		col := col
		g.Go(func() error {
			if err := w.loadColumn(gctx, col, useStorage); err != nil {
				return err
			}
			count.Add(1)
			return nil
		})
	}
	err := g.Wait()
	w.updateState()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return int(count.Load()), err
	}
	w.logger.Debug("Загружено колонок: %d", count.Load())
	return int(count.Load()), nil
}

// loadColumn загружает одну колонку и публикует её слоем объединения.
// Колонка добавляется до активации в реестре, чтобы форки соседей ложились поверх неё.
func (w *Instance) loadColumn(ctx context.Context, col vec.Vec2, useStorage bool) error {
	ox, oz := col.Origin()
	ctx, span := w.tracer.Start(ctx, "world.loadColumn", observability.ColumnAttrs(ox, oz))
	defer span.End()

	start := time.Now()
	source := observability.SourceEmpty
	var layer view.View
	var forks []*view.SparseView

	if useStorage && w.provider != nil {
		v, err := w.provider.Load(ctx, col, w.minY, w.maxY)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("load column %v: %w", col, err)
		}
		if v != nil {
			layer, source = v, observability.SourceStorage
		}
	}

	if layer == nil && w.generator != nil {
		chunk := view.NewChunkView(col, w.minY, w.maxY, block.AirBlockID, biome.Plains)
		var unit *generation.Unit
		err := chunk.Mutate(func(cw view.Writer) error {
			unit = generation.NewUnit(w.ColumnArea(col), cw)
			return w.generator.Generate(ctx, unit)
		})
		if err != nil {
			// Форки неудачной генерации не попадают в реестр
			span.RecordError(err)
			return fmt.Errorf("generate column %v: %w", col, err)
		}
		layer, source = chunk, observability.SourceGenerated
		forks = unit.Forks()
	}

	if layer == nil {
		layer = view.NewChunkView(col, w.minY, w.maxY, block.AirBlockID, biome.Plains)
	}

	w.union.Add(layer)
	now := w.forks.Commit(forks...)
	drained := w.forks.Activate(col)
	w.union.Add(append(now, drained...)...)

	w.mu.Lock()
	w.columns[col] = struct{}{}
	w.mu.Unlock()

	w.metrics.ColumnLoaded(source, time.Since(start))
	w.publish(ctx, eventbus.EventColumnLoaded, 1, eventbus.ColumnEvent{World: w.name, X: col.X, Z: col.Y, Source: source})
	w.logger.Trace("Колонка %v загружена (%s), форков: %d, из реестра: %d", col, source, len(now), len(drained))
	return nil
}

// UnloadArea сохраняет и выгружает загруженные колонки области a.
// Колонки, которые не удалось сохранить, остаются загруженными.
func (w *Instance) UnloadArea(ctx context.Context, a area.Area) (int, error) {
	cols, err := w.columnsOf(a)
	if err != nil {
		return 0, err
	}

	w.opMu.Lock()
	defer w.opMu.Unlock()
	return w.unloadColumns(ctx, cols)
}

func (w *Instance) unloadColumns(ctx context.Context, cols []vec.Vec2) (int, error) {
	loaded := cols[:0:0]
	for _, col := range cols {
		if w.IsLoaded(col) {
			loaded = append(loaded, col)
		}
	}
	if len(loaded) == 0 {
		return 0, nil
	}

	ctx, span := w.tracer.Start(ctx, "world.UnloadArea", trace.WithAttributes(attribute.Int("columns", len(loaded))))
	defer span.End()

	saved, saveErr := w.saveColumns(ctx, loaded)
	if len(saved) == 0 {
		return 0, saveErr
	}

	areas := make([]area.Area, len(saved))
	for i, col := range saved {
		areas[i] = w.ColumnArea(col)
	}
	w.union.Remove(area.Union(areas...))

	w.mu.Lock()
	for _, col := range saved {
		delete(w.columns, col)
		w.forks.Deactivate(col)
	}
	w.mu.Unlock()
	w.updateState()
	for _, col := range saved {
		w.publish(ctx, eventbus.EventColumnUnloaded, 1, eventbus.ColumnEvent{World: w.name, X: col.X, Z: col.Y})
	}

	if saveErr != nil {
		span.RecordError(saveErr)
		span.SetStatus(codes.Error, saveErr.Error())
	}
	w.logger.Debug("Выгружено колонок: %d", len(saved))
	return len(saved), saveErr
}

// saveColumns сохраняет колонки и возвращает успешно сохранённые.
// Без хранилища все колонки считаются сохранёнными.
func (w *Instance) saveColumns(ctx context.Context, cols []vec.Vec2) ([]vec.Vec2, error) {
	if w.provider == nil {
		return cols, nil
	}

	ok := make([]bool, len(cols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.workers)
	for i, col := range cols {
		i, col := i, col
		g.Go(func() error {
			colArea := w.ColumnArea(col)
			err := w.provider.Save(gctx, col, w.minY, w.maxY, view.NewSubView(w.union, colArea))
			w.metrics.ColumnSaved(err)
			if err != nil {
				w.logger.Error("Ошибка сохранения колонки %v: %v", col, err)
				return err
			}
			ok[i] = true
			return nil
		})
	}
	err := g.Wait()

	saved := cols[:0:0]
	for i, col := range cols {
		if ok[i] {
			saved = append(saved, col)
		}
	}
	return saved, err
}

// Save сохраняет все загруженные колонки
func (w *Instance) Save(ctx context.Context) error {
	if w.provider == nil {
		return nil
	}

	w.saveMu.Lock()
	defer w.saveMu.Unlock()
	w.opMu.Lock()
	defer w.opMu.Unlock()

	ctx, span := w.tracer.Start(ctx, "world.Save")
	defer span.End()

	w.logger.Info("Начато сохранение мира...")
	cols := w.Loaded()
	saved, err := w.saveColumns(ctx, cols)
	w.lastSaveTime = time.Now()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("saved %d of %d columns: %w", len(saved), len(cols), err)
	}
	w.logger.Info("Сохранение мира завершено, колонок: %d", len(saved))
	w.publish(ctx, eventbus.EventWorldSaved, 5, eventbus.ColumnEvent{World: w.name, Columns: len(saved)})
	return nil
}

// LastSaveTime возвращает время последнего сохранения
func (w *Instance) LastSaveTime() time.Time {
	w.saveMu.Lock()
	defer w.saveMu.Unlock()
	return w.lastSaveTime
}

// Tick приводит набор загруженных колонок к области desired.
// Разности считаются по колонкам: загружаются колонки desired, которых нет среди
// загруженных, выгружаются загруженные колонки, которых desired не касается.
func (w *Instance) Tick(ctx context.Context, desired area.Area) (TickReport, error) {
	start := time.Now()
	w.mu.Lock()
	w.currentTick++
	w.mu.Unlock()

	var report TickReport
	wanted, err := w.columnsOf(desired)
	if err != nil {
		return report, err
	}

	w.opMu.Lock()
	report.Loaded, err = w.loadColumns(ctx, wanted, true)
	if err != nil {
		w.opMu.Unlock()
		return report, err
	}

	keep := make(map[vec.Vec2]struct{}, len(wanted))
	for _, col := range wanted {
		keep[col] = struct{}{}
	}
	var stale []vec.Vec2
	for _, col := range w.Loaded() {
		if _, ok := keep[col]; !ok {
			stale = append(stale, col)
		}
	}
	report.Unloaded, err = w.unloadColumns(ctx, stale)
	w.opMu.Unlock()
	if err != nil {
		return report, err
	}

	_, _, report.Staged = w.forks.Stats()
	report.Columns = len(w.Loaded())
	report.Layers = w.union.Len()
	report.Duration = time.Since(start)
	w.metrics.Tick(report.Duration)
	return report, nil
}

// CurrentTick возвращает номер текущего тика
func (w *Instance) CurrentTick() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.currentTick
}

// Run запускает тики по области desired и автосохранение до отмены ctx.
// При остановке мир сохраняется.
func (w *Instance) Run(ctx context.Context, tickInterval, autosave time.Duration, desired func() area.Area) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	var saveC <-chan time.Time
	if autosave > 0 {
		saveTicker := time.NewTicker(autosave)
		defer saveTicker.Stop()
		saveC = saveTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			return w.Save(context.WithoutCancel(ctx))
		case <-ticker.C:
			if _, err := w.Tick(ctx, desired()); err != nil && ctx.Err() == nil {
				w.logger.Error("Ошибка тика: %v", err)
			}
		case <-saveC:
			if err := w.Save(ctx); err != nil {
				w.logger.Error("Ошибка автосохранения: %v", err)
			}
		}
	}
}

// publish отправляет событие, если шина настроена. Ошибки шины не прерывают работу мира.
func (w *Instance) publish(ctx context.Context, eventType string, priority int, payload eventbus.ColumnEvent) {
	if w.events == nil {
		return
	}
	ev, err := eventbus.NewEnvelope(w.id.String(), eventType, priority, payload)
	if err == nil {
		err = w.events.Publish(ctx, ev)
	}
	if err != nil {
		w.logger.Warn("Не удалось опубликовать %s: %v", eventType, err)
	}
}

func (w *Instance) updateState() {
	_, _, staged := w.forks.Stats()
	w.mu.RLock()
	loaded := len(w.columns)
	w.mu.RUnlock()
	w.metrics.SetState(loaded, w.union.Len(), staged)
}
