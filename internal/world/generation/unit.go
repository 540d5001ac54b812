package generation

import (
	"sync"

	"github.com/annel0/blockverse/internal/area"
	"github.com/annel0/blockverse/internal/world/view"
)

// Unit: единица генерации над поверхностью записи вида
type Unit struct {
	area   area.Area
	target view.Writer

	mu    sync.Mutex
	forks []*view.SparseView
}

// NewUnit создаёт единицу, которая пишет в target внутри a
func NewUnit(a area.Area, target view.Writer) *Unit {
	return &Unit{area: a, target: target}
}

func (u *Unit) Area() area.Area { return u.area }

func (u *Unit) Modifier() UnitModifier {
	return newModifier(u.target, u.area)
}

func (u *Unit) Fork(a area.Area) UnitModifier {
	layer := view.NewSparseView()
	u.track(layer)
	return newModifier(layer, a)
}

func (u *Unit) ForkWriter(fn func(m UnitModifier) error) error {
	layer := view.NewSparseView()
	if err := fn(newModifier(layer, area.Full())); err != nil {
		return err
	}
	u.track(layer)
	return nil
}

func (u *Unit) track(layer *view.SparseView) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.forks = append(u.forks, layer)
}

// Forks возвращает непустые форки, записанные единицей
func (u *Unit) Forks() []*view.SparseView {
	u.mu.Lock()
	defer u.mu.Unlock()

	out := make([]*view.SparseView, 0, len(u.forks))
	for _, f := range u.forks {
		if f.Len() > 0 {
			out = append(out, f)
		}
	}
	return out
}
