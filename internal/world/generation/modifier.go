package generation

import (
	"fmt"

	"github.com/annel0/blockverse/internal/area"
	"github.com/annel0/blockverse/internal/vec"
	"github.com/annel0/blockverse/internal/world/biome"
	"github.com/annel0/blockverse/internal/world/block"
	"github.com/annel0/blockverse/internal/world/view"
)

// modifier пишет в вид, отсекая всё вне bounds
type modifier struct {
	w          view.Writer
	bounds     area.Area
	start, end vec.Vec3
}

func newModifier(w view.Writer, bounds area.Area) *modifier {
	return &modifier{w: w, bounds: bounds, start: bounds.Min(), end: bounds.Max()}
}

func (m *modifier) SetBlock(p vec.Vec3, id block.BlockID) error {
	if !m.bounds.Contains(p) {
		return fmt.Errorf("%w: %v", view.ErrOutOfBounds, p)
	}
	return m.w.SetBlock(p, id)
}

func (m *modifier) SetBiome(p vec.Vec3, b biome.BiomeType) error {
	if !m.bounds.Contains(p) {
		return fmt.Errorf("%w: %v", view.ErrOutOfBounds, p)
	}
	return m.w.SetBiome(p, b)
}

// SetRelative отсчитывает от Start; у неограниченного форка начала нет
func (m *modifier) SetRelative(x, y, z int, id block.BlockID) error {
	if !area.Bounded(m.bounds) {
		return fmt.Errorf("set relative: %w", area.ErrUnbounded)
	}
	return m.SetBlock(m.start.Add(vec.Vec3{X: x, Y: y, Z: z}), id)
}

// clip обрезает a по границам модификатора
func (m *modifier) clip(a area.Area) (area.Area, error) {
	region := area.Overlap(a, m.bounds)
	if !area.Bounded(region) {
		return nil, fmt.Errorf("fill %v: %w", a, area.ErrUnbounded)
	}
	return region, nil
}

func (m *modifier) Fill(a area.Area, id block.BlockID) error {
	region, err := m.clip(a)
	if err != nil {
		return err
	}
	for p := range area.Points(region) {
		if err := m.w.SetBlock(p, id); err != nil {
			return err
		}
	}
	return nil
}

func (m *modifier) FillBiome(a area.Area, b biome.BiomeType) error {
	region, err := m.clip(a)
	if err != nil {
		return err
	}
	for p := range area.Points(region) {
		if err := m.w.SetBiome(p, b); err != nil {
			return err
		}
	}
	return nil
}

func (m *modifier) FillHeight(minY, maxY int, id block.BlockID) error {
	if !area.Bounded(m.bounds) {
		return fmt.Errorf("fill height: %w", area.ErrUnbounded)
	}
	layer := area.NewFill(
		vec.Vec3{X: m.start.X, Y: minY, Z: m.start.Z},
		vec.Vec3{X: m.end.X, Y: maxY, Z: m.end.Z},
	)
	return m.Fill(layer, id)
}

func (m *modifier) Start() vec.Vec3 { return m.start }
func (m *modifier) End() vec.Vec3   { return m.end }
func (m *modifier) Size() vec.Vec3  { return m.end.Sub(m.start) }
