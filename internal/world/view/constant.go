package view

import (
	"github.com/annel0/blockverse/internal/area"
	"github.com/annel0/blockverse/internal/vec"
	"github.com/annel0/blockverse/internal/world/biome"
	"github.com/annel0/blockverse/internal/world/block"
)

// ConstantView возвращает одни и те же значения во всех точках своей области.
// Без явной области покрывает всю решётку и служит фоном под объединением.
type ConstantView struct {
	area  area.Area
	block block.BlockID
	biome biome.BiomeType
}

// NewConstant создаёт постоянный вид над всей решёткой
func NewConstant(id block.BlockID, b biome.BiomeType) *ConstantView {
	return NewConstantIn(area.Full(), id, b)
}

// NewConstantIn создаёт постоянный вид над областью a
func NewConstantIn(a area.Area, id block.BlockID, b biome.BiomeType) *ConstantView {
	return &ConstantView{area: a, block: id, biome: b}
}

func (c *ConstantView) Area() area.Area { return c.area }

func (c *ConstantView) Block(p vec.Vec3) (block.BlockID, error) {
	if !c.area.Contains(p) {
		return block.Absent, nil
	}
	return c.block, nil
}

func (c *ConstantView) Biome(p vec.Vec3) (biome.BiomeType, error) {
	if !c.area.Contains(p) {
		return biome.Absent, nil
	}
	return c.biome, nil
}

type emptyView struct{}

// Empty возвращает вид без точек и значений
func Empty() View { return emptyView{} }

func (emptyView) Area() area.Area                         { return area.Empty() }
func (emptyView) Block(vec.Vec3) (block.BlockID, error)   { return block.Absent, nil }
func (emptyView) Biome(vec.Vec3) (biome.BiomeType, error) { return biome.Absent, nil }
