package view

import (
	"sync"
	"sync/atomic"

	"github.com/annel0/blockverse/internal/area"
	"github.com/annel0/blockverse/internal/vec"
	"github.com/annel0/blockverse/internal/world/biome"
	"github.com/annel0/blockverse/internal/world/block"
)

// maxIndexedColumns: слой шире этого числа колонок проверяется при каждом чтении
const maxIndexedColumns = 4096

// snapshot: неизменяемый список слоёв. После публикации не меняется.
type snapshot struct {
	children []View

	indexOnce sync.Once
	indexed   atomic.Bool
	known     []area.Area
	areas     []area.Area
	byColumn  map[vec.Vec2][]int
	global    []int

	areaOnce sync.Once
	area     area.Area
}

func newSnapshot(children []View) *snapshot {
	return &snapshot{children: children}
}

// extend строит снимок с добавленными сверху слоями, переиспользуя уже
// посчитанные области старых слоёв
func (s *snapshot) extend(layers ...View) *snapshot {
	children := make([]View, len(s.children), len(s.children)+len(layers))
	copy(children, s.children)
	next := newSnapshot(append(children, layers...))
	if s.indexed.Load() {
		next.known = s.areas
	}
	return next
}

// replaceTop строит снимок, где верхний слой заменён слоем с той же областью.
// Индекс старого снимка неизменяем и переиспользуется как есть.
func (s *snapshot) replaceTop(layer View) *snapshot {
	children := make([]View, len(s.children))
	copy(children, s.children)
	children[len(children)-1] = layer
	next := newSnapshot(children)
	if s.indexed.Load() {
		next.indexOnce.Do(func() {
			next.areas, next.byColumn, next.global = s.areas, s.byColumn, s.global
		})
		next.indexed.Store(true)
	}
	return next
}

// buildIndex раскладывает слои по колонкам их габарита
func (s *snapshot) buildIndex() {
	s.areas = make([]area.Area, len(s.children))
	s.byColumn = make(map[vec.Vec2][]int)
	copy(s.areas, s.known)
	for i, child := range s.children {
		if i >= len(s.known) {
			s.areas[i] = child.Area()
		}
		a := s.areas[i]
		if !area.Bounded(a) {
			s.global = append(s.global, i)
			continue
		}
		lo := a.Min().Column()
		hi := a.Max().Sub(vec.Vec3{X: 1, Y: 1, Z: 1}).Column()
		if hi.X < lo.X || hi.Y < lo.Y {
			continue
		}
		if (hi.X-lo.X+1)*(hi.Y-lo.Y+1) > maxIndexedColumns {
			s.global = append(s.global, i)
			continue
		}
		for cx := lo.X; cx <= hi.X; cx++ {
			for cz := lo.Y; cz <= hi.Y; cz++ {
				col := vec.Vec2{X: cx, Y: cz}
				s.byColumn[col] = append(s.byColumn[col], i)
			}
		}
	}
	s.known = nil
	s.indexed.Store(true)
}

// lookup обходит слои, содержащие p, от новых к старым, пока try не вернёт true.
// Возвращает false, если ни один слой не содержит p.
func (s *snapshot) lookup(p vec.Vec3, try func(v View) (bool, error)) (bool, error) {
	s.indexOnce.Do(s.buildIndex)

	local := s.byColumn[p.Column()]
	i, j := len(local)-1, len(s.global)-1
	covered := false
	for i >= 0 || j >= 0 {
		var idx int
		if j < 0 || (i >= 0 && local[i] > s.global[j]) {
			idx = local[i]
			i--
		} else {
			idx = s.global[j]
			j--
		}
		if !s.areas[idx].Contains(p) {
			continue
		}
		covered = true
		if try == nil {
			return true, nil
		}
		done, err := try(s.children[idx])
		if err != nil || done {
			return true, err
		}
	}
	return covered, nil
}

func (s *snapshot) covers(p vec.Vec3) bool {
	ok, _ := s.lookup(p, nil)
	return ok
}

func (s *snapshot) unionArea() area.Area {
	s.areaOnce.Do(func() {
		s.indexOnce.Do(s.buildIndex)
		s.area = area.Union(s.areas...)
	})
	return s.area
}

// Union: живое объединение слоёв. Чтение идёт от нового слоя к старому
// и возвращает первое присутствующее значение.
//
// Список слоёв копируется при записи: читатели работают с опубликованным
// снимком без блокировок, писатели сериализуются на mu.
// Область слоя не должна расти после добавления в объединение.
//
// Слои не сливаются: их число равно числу колонок и отложенных развилок плюс
// по одному слою на каждую точку SetBlock/SetBiome (повторные записи в ту же
// точку подряд занимают один слой) и на каждый пакет Mutate. Первое чтение
// нового снимка перестраивает индекс за O(слоёв), поэтому частые точечные
// правки следует собирать в Mutate. Выгрузка колонки убирает её слои.
type Union struct {
	mu   sync.Mutex
	snap atomic.Pointer[snapshot]
}

// NewUnion создаёт объединение из слоёв, от старого к новому
func NewUnion(children ...View) *Union {
	u := &Union{}
	u.snap.Store(newSnapshot(compact(nil, children)))
	return u
}

func compact(dst, views []View) []View {
	for _, v := range views {
		if v != nil {
			dst = append(dst, v)
		}
	}
	return dst
}

func (u *Union) load() *snapshot { return u.snap.Load() }

// publish вызывается под mu
func (u *Union) publish(children []View) {
	u.snap.Store(newSnapshot(children))
}

// Children возвращает слои текущего снимка, от старого к новому
func (u *Union) Children() []View {
	s := u.load()
	out := make([]View, len(s.children))
	copy(out, s.children)
	return out
}

// Len возвращает число слоёв
func (u *Union) Len() int { return len(u.load().children) }

// Add добавляет слои поверх существующих одной публикацией
func (u *Union) Add(views ...View) {
	u.mu.Lock()
	defer u.mu.Unlock()

	layers := compact(nil, views)
	if len(layers) == 0 {
		return
	}
	u.snap.Store(u.load().extend(layers...))
}

// Remove выгружает область: слои целиком внутри a отбрасываются,
// частично пересекающиеся ограничиваются дополнением a.
// Неограниченные слои (фон) не затрагиваются. Возвращает число отброшенных слоёв.
func (u *Union) Remove(a area.Area) int {
	u.mu.Lock()
	defer u.mu.Unlock()

	next, dropped := u.restrict(a, false)
	if next != nil {
		u.publish(next)
	}
	return dropped
}

// restrict вызывается под mu. Возвращает nil, если снимок не изменился.
func (u *Union) restrict(a area.Area, all bool) ([]View, int) {
	s := u.load()
	s.indexOnce.Do(s.buildIndex)

	next := make([]View, 0, len(s.children))
	dropped, changed := 0, false
	for i, child := range s.children {
		ca := s.areas[i]
		if !all && !area.Bounded(ca) {
			next = append(next, child)
			continue
		}
		if !area.Overlaps(ca, a) {
			next = append(next, child)
			continue
		}
		changed = true
		if area.ContainsArea(a, ca) {
			dropped++
			continue
		}
		next = append(next, NewSubView(child, area.Invert(a)))
	}
	if !changed {
		return nil, 0
	}
	return next, dropped
}

func (u *Union) Area() area.Area {
	return u.load().unionArea()
}

// Block возвращает блок самого нового слоя, в котором он присутствует.
// Вне области объединения возвращает ErrOutOfBounds.
func (u *Union) Block(p vec.Vec3) (block.BlockID, error) {
	id := block.Absent
	covered, err := u.load().lookup(p, func(v View) (bool, error) {
		got, err := v.Block(p)
		if err != nil {
			return false, err
		}
		if got == block.Absent {
			return false, nil
		}
		id = got
		return true, nil
	})
	if err != nil {
		return block.Absent, err
	}
	if !covered {
		return block.Absent, outOfBounds(p)
	}
	return id, nil
}

// Biome возвращает биом самого нового слоя, в котором он присутствует
func (u *Union) Biome(p vec.Vec3) (biome.BiomeType, error) {
	b := biome.Absent
	covered, err := u.load().lookup(p, func(v View) (bool, error) {
		got, err := v.Biome(p)
		if err != nil {
			return false, err
		}
		if got == biome.Absent {
			return false, nil
		}
		b = got
		return true, nil
	})
	if err != nil {
		return biome.Absent, err
	}
	if !covered {
		return biome.Absent, outOfBounds(p)
	}
	return b, nil
}

// SetBlock добавляет слой из одной точки
func (u *Union) SetBlock(p vec.Vec3, id block.BlockID) error {
	return u.appendPoint(pointLayer{at: p, block: id, biome: biome.Absent})
}

// SetBiome добавляет слой из одной точки
func (u *Union) SetBiome(p vec.Vec3, b biome.BiomeType) error {
	return u.appendPoint(pointLayer{at: p, block: block.Absent, biome: b})
}

// appendPoint кладёт точечный слой сверху. Если верхний слой уже пишет
// в ту же точку, он заменяется объединённым, и число слоёв не растёт.
func (u *Union) appendPoint(layer pointLayer) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	s := u.load()
	if !s.covers(layer.at) {
		return outOfBounds(layer.at)
	}
	if n := len(s.children); n > 0 {
		if top, ok := s.children[n-1].(pointLayer); ok && top.at == layer.at {
			u.snap.Store(s.replaceTop(top.merge(layer)))
			return nil
		}
	}
	u.snap.Store(s.extend(layer))
	return nil
}

// Clear скрывает данные всех слоёв в области a. Очищенные точки остаются
// в области объединения и читаются как отсутствующие.
func (u *Union) Clear(a area.Area) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	s := u.load()
	if !area.Overlaps(a, s.unionArea()) {
		return nil
	}
	cleared := area.Overlap(a, s.unionArea())
	hole := NewConstantIn(cleared, block.Absent, biome.Absent)
	next, _ := u.restrict(cleared, true)
	if next == nil {
		u.snap.Store(s.extend(hole))
		return nil
	}
	u.publish(append(next, hole))
	return nil
}

// Mutate собирает пакет записей в один разреженный слой и публикует его целиком.
// Запись вне области объединения прерывает пакет; при ошибке ничего не публикуется.
func (u *Union) Mutate(fn func(w Writer) error) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	s := u.load()
	batch := NewSparseView()
	w := WriterFunc{
		Block: func(p vec.Vec3, id block.BlockID) error {
			if !s.covers(p) {
				return outOfBounds(p)
			}
			return batch.SetBlock(p, id)
		},
		Biome: func(p vec.Vec3, b biome.BiomeType) error {
			if !s.covers(p) {
				return outOfBounds(p)
			}
			return batch.SetBiome(p, b)
		},
	}
	if err := fn(w); err != nil {
		return err
	}
	if batch.Len() == 0 {
		return nil
	}
	u.snap.Store(s.extend(NewSubView(batch, batch.Written())))
	return nil
}

// pointLayer: значение одной точки, записанное через SetBlock или SetBiome
type pointLayer struct {
	at    vec.Vec3
	block block.BlockID
	biome biome.BiomeType
}

// merge накладывает более новую запись в ту же точку
func (l pointLayer) merge(newer pointLayer) pointLayer {
	if newer.block != block.Absent {
		l.block = newer.block
	}
	if newer.biome != biome.Absent {
		l.biome = newer.biome
	}
	return l
}

func (l pointLayer) Area() area.Area { return area.Single(l.at) }

func (l pointLayer) Block(p vec.Vec3) (block.BlockID, error) {
	if p != l.at {
		return block.Absent, nil
	}
	return l.block, nil
}

func (l pointLayer) Biome(p vec.Vec3) (biome.BiomeType, error) {
	if p != l.at {
		return biome.Absent, nil
	}
	return l.biome, nil
}
