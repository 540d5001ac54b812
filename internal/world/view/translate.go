package view

import (
	"github.com/annel0/blockverse/internal/area"
	"github.com/annel0/blockverse/internal/vec"
	"github.com/annel0/blockverse/internal/world/biome"
	"github.com/annel0/blockverse/internal/world/block"
)

// TranslatedView сдвигает вид на вектор без копирования данных:
// точка p читается из исходного вида в точке p - offset.
type TranslatedView struct {
	src    View
	offset vec.Vec3
}

// NewTranslated создаёт сдвинутый вид. Сдвиг сдвинутого вида складывается.
func NewTranslated(src View, offset vec.Vec3) *TranslatedView {
	if inner, ok := src.(*TranslatedView); ok {
		return &TranslatedView{src: inner.src, offset: inner.offset.Add(offset)}
	}
	return &TranslatedView{src: src, offset: offset}
}

// Offset возвращает вектор сдвига
func (t *TranslatedView) Offset() vec.Vec3 { return t.offset }

func (t *TranslatedView) Area() area.Area {
	return area.Translate(t.src.Area(), t.offset)
}

func (t *TranslatedView) Block(p vec.Vec3) (block.BlockID, error) {
	return t.src.Block(p.Sub(t.offset))
}

func (t *TranslatedView) Biome(p vec.Vec3) (biome.BiomeType, error) {
	return t.src.Biome(p.Sub(t.offset))
}

// MutableTranslatedView: изменяемый сдвинутый вид
type MutableTranslatedView struct {
	TranslatedView
	dst Mutable
}

// NewMutableTranslated создаёт изменяемый сдвинутый вид
func NewMutableTranslated(src Mutable, offset vec.Vec3) *MutableTranslatedView {
	return &MutableTranslatedView{
		TranslatedView: TranslatedView{src: src, offset: offset},
		dst:            src,
	}
}

func (t *MutableTranslatedView) SetBlock(p vec.Vec3, id block.BlockID) error {
	return t.dst.SetBlock(p.Sub(t.offset), id)
}

func (t *MutableTranslatedView) SetBiome(p vec.Vec3, b biome.BiomeType) error {
	return t.dst.SetBiome(p.Sub(t.offset), b)
}

func (t *MutableTranslatedView) Clear(a area.Area) error {
	return t.dst.Clear(area.Translate(a, t.offset.Neg()))
}

func (t *MutableTranslatedView) Mutate(fn func(w Writer) error) error {
	return t.dst.Mutate(func(w Writer) error {
		return fn(translatedWriter{w: w, offset: t.offset})
	})
}

type translatedWriter struct {
	w      Writer
	offset vec.Vec3
}

func (t translatedWriter) SetBlock(p vec.Vec3, id block.BlockID) error {
	return t.w.SetBlock(p.Sub(t.offset), id)
}

func (t translatedWriter) SetBiome(p vec.Vec3, b biome.BiomeType) error {
	return t.w.SetBiome(p.Sub(t.offset), b)
}
