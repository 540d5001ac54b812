package generation

import (
	"sync"

	"github.com/annel0/blockverse/internal/area"
	"github.com/annel0/blockverse/internal/logging"
	"github.com/annel0/blockverse/internal/vec"
	"github.com/annel0/blockverse/internal/world/view"
)

// ForkRegistry копит записи форков по колонкам, которые ещё не загружены.
//
// Проверка присутствия колонки и постановка в очередь идут под одним мьютексом,
// поэтому форк либо возвращается для немедленного применения, либо будет
// выдан Activate, но не теряется между ними.
type ForkRegistry struct {
	mu      sync.Mutex
	present map[vec.Vec2]struct{}
	staged  map[vec.Vec2][]view.View
	logger  *logging.Logger
}

// NewForkRegistry создаёт пустой реестр
func NewForkRegistry() *ForkRegistry {
	return &ForkRegistry{
		present: make(map[vec.Vec2]struct{}),
		staged:  make(map[vec.Vec2][]view.View),
		logger:  logging.GetGenerationLogger(),
	}
}

// Commit раскладывает форки по колонкам. Слои для загруженных колонок
// возвращаются для немедленного добавления, остальные откладываются.
func (r *ForkRegistry) Commit(forks ...*view.SparseView) []view.View {
	type part struct {
		col   vec.Vec2
		layer view.View
	}
	var parts []part
	for _, fork := range forks {
		written := fork.Written()
		if area.IsEmpty(written) {
			continue
		}
		for _, col := range columnsOf(written) {
			restrict := area.Overlap(written, area.ColumnArea(col, vec.MinBound.Y, vec.MaxBound.Y))
			parts = append(parts, part{col: col, layer: view.NewSubView(fork, restrict)})
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var now []view.View
	for _, pt := range parts {
		if _, ok := r.present[pt.col]; ok {
			now = append(now, pt.layer)
			continue
		}
		r.staged[pt.col] = append(r.staged[pt.col], pt.layer)
		r.logger.Trace("🌱 Форк отложен до загрузки колонки %v", pt.col)
	}
	return now
}

// columnsOf возвращает колонки точек в порядке первого появления
func columnsOf(a area.Area) []vec.Vec2 {
	seen := make(map[vec.Vec2]struct{})
	var cols []vec.Vec2
	for p := range area.Points(a) {
		col := p.Column()
		if _, ok := seen[col]; ok {
			continue
		}
		seen[col] = struct{}{}
		cols = append(cols, col)
	}
	return cols
}

// Activate отмечает колонку загруженной и забирает накопленные для неё слои
func (r *ForkRegistry) Activate(col vec.Vec2) []view.View {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.present[col] = struct{}{}
	layers := r.staged[col]
	delete(r.staged, col)
	if len(layers) > 0 {
		r.logger.Debug("🌱 Колонка %v забирает %d отложенных слоёв", col, len(layers))
	}
	return layers
}

// Deactivate отмечает колонку выгруженной: новые форки для неё снова откладываются
func (r *ForkRegistry) Deactivate(col vec.Vec2) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.present, col)
}

// Discard отбрасывает отложенные слои колонок и возвращает их число
func (r *ForkRegistry) Discard(cols ...vec.Vec2) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, col := range cols {
		n += len(r.staged[col])
		delete(r.staged, col)
	}
	if n > 0 {
		r.logger.Debug("🗑️ Отброшено %d отложенных слоёв", n)
	}
	return n
}

// Pending возвращает число отложенных слоёв колонки
func (r *ForkRegistry) Pending(col vec.Vec2) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.staged[col])
}

// Present проверяет, отмечена ли колонка загруженной
func (r *ForkRegistry) Present(col vec.Vec2) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.present[col]
	return ok
}

// Stats возвращает число загруженных колонок, колонок с отложенными слоями и самих слоёв
func (r *ForkRegistry) Stats() (present, columns, layers int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, l := range r.staged {
		layers += len(l)
	}
	return len(r.present), len(r.staged), layers
}
