package view

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/annel0/blockverse/internal/area"
	"github.com/annel0/blockverse/internal/vec"
	"github.com/annel0/blockverse/internal/world/biome"
	"github.com/annel0/blockverse/internal/world/block"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func p(x, y, z int) vec.Vec3 { return vec.Vec3{X: x, Y: y, Z: z} }

func TestChunkView_DefaultsAndEveryCell(t *testing.T) {
	col := vec.Vec2{X: -2, Y: 3}
	c := NewChunkView(col, -16, 16, block.AirBlockID, biome.Plains)

	id, err := c.Block(p(-32, -16, 48))
	require.NoError(t, err)
	if id != block.AirBlockID {
		t.Errorf("Ожидался AirBlockID до записи, получен %v", id)
	}
	b, _ := c.Biome(p(-17, 15, 63))
	if b != biome.Plains {
		t.Errorf("Ожидался Plains до записи, получен %v", b)
	}

	value := func(q vec.Vec3) block.BlockID {
		return block.BlockID((q.X*7 + q.Y*13 + q.Z*31) & 0x3FF)
	}
	for q := range area.Points(c.Area()) {
		require.NoError(t, c.SetBlock(q, value(q)))
	}
	for q := range area.Points(c.Area()) {
		got, err := c.Block(q)
		require.NoError(t, err)
		if got != value(q) {
			t.Fatalf("Точка %v: ожидался %d, получен %d", q, value(q), got)
		}
	}
}

func TestChunkView_ClearRestoresDefaults(t *testing.T) {
	c := NewChunkView(vec.Vec2{}, 0, 16, block.AirBlockID, biome.Plains)
	require.NoError(t, fillAll(c, block.StoneBlockID))
	require.NoError(t, c.Clear(area.NewFill(p(0, 0, 0), p(16, 8, 16))))

	low, _ := c.Block(p(3, 2, 3))
	high, _ := c.Block(p(3, 10, 3))
	assert.Equal(t, block.AirBlockID, low)
	assert.Equal(t, block.StoneBlockID, high)
}

func fillAll(m Mutable, id block.BlockID) error {
	return Fill(m, m.Area(), id)
}

func TestChunkView_RestoreValidatesLength(t *testing.T) {
	_, err := RestoreChunkView(vec.Vec2{}, 0, 2, make([]block.BlockID, 3), make([]biome.BiomeType, 512))
	assert.Error(t, err)

	src := NewChunkView(vec.Vec2{X: 1}, 0, 2, block.DirtBlockID, biome.Desert)
	require.NoError(t, src.SetBlock(p(20, 1, 5), block.SandBlockID))
	restored, err := RestoreChunkView(src.Column(), src.MinY(), src.MaxY(), src.Blocks(), src.Biomes())
	require.NoError(t, err)
	id, _ := restored.Block(p(20, 1, 5))
	assert.Equal(t, block.SandBlockID, id)
}

func TestSparseView_AreaGrowsAndShrinks(t *testing.T) {
	s := NewSparseView()
	assert.True(t, area.IsEmpty(s.Area()))

	require.NoError(t, s.SetBlock(p(0, 0, 0), block.StoneBlockID))
	require.NoError(t, s.SetBiome(p(4, -2, 1), biome.Forest))
	assert.Equal(t, p(0, -2, 0), s.Area().Min())
	assert.Equal(t, p(5, 1, 2), s.Area().Max())
	assert.Equal(t, 2, s.Len())

	id, _ := s.Block(p(2, 0, 0))
	assert.Equal(t, block.Absent, id, "внутри габарита, но не записано")

	require.NoError(t, s.SetBiome(p(4, -2, 1), biome.Absent))
	assert.Equal(t, area.Area(area.NewFill(p(0, 0, 0), p(1, 1, 1))), s.Area())

	require.NoError(t, s.Clear(area.Full()))
	assert.True(t, area.IsEmpty(s.Area()))
	assert.Equal(t, 0, s.Len())
}

func TestSparseView_Written(t *testing.T) {
	s := NewSparseView()
	require.NoError(t, s.SetBlock(p(0, 0, 0), block.StoneBlockID))
	require.NoError(t, s.SetBlock(p(9, 0, 0), block.StoneBlockID))

	w := s.Written()
	assert.Equal(t, int64(2), w.Size())
	assert.False(t, w.Contains(p(5, 0, 0)))
}

func TestConstantAndEmpty(t *testing.T) {
	c := NewConstant(block.WaterBlockID, biome.Water)
	id, _ := c.Block(p(1e6, -1e6, 3))
	assert.Equal(t, block.WaterBlockID, id)

	in := NewConstantIn(area.Single(p(1, 1, 1)), block.StoneBlockID, biome.Absent)
	id, _ = in.Block(p(1, 1, 2))
	assert.Equal(t, block.Absent, id)

	e := Empty()
	assert.True(t, area.IsEmpty(e.Area()))
	b, _ := e.Biome(p(0, 0, 0))
	assert.Equal(t, biome.Absent, b)
}

func TestSubView_ReadOnlyReturnsAbsent(t *testing.T) {
	base := NewConstant(block.StoneBlockID, biome.Plains)
	sub := NewSubView(base, area.NewFill(p(0, 0, 0), p(4, 4, 4)))

	id, err := sub.Block(p(5, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, block.Absent, id)
	id, _ = sub.Block(p(3, 3, 3))
	assert.Equal(t, block.StoneBlockID, id)

	nested := NewSubView(sub, area.NewFill(p(2, 2, 2), p(8, 8, 8)))
	assert.Equal(t, int64(8), nested.Area().Size())
	assert.Same(t, View(base), nested.Source())
}

func TestMutableSubView_OutOfBounds(t *testing.T) {
	c := NewChunkView(vec.Vec2{}, 0, 16, block.AirBlockID, biome.Plains)
	sub := NewMutableSubView(c, area.NewFill(p(0, 0, 0), p(2, 2, 2)))

	require.NoError(t, sub.SetBlock(p(1, 1, 1), block.StoneBlockID))
	err := sub.SetBlock(p(2, 1, 1), block.StoneBlockID)
	assert.ErrorIs(t, err, ErrOutOfBounds)
	_, err = sub.Biome(p(0, 5, 0))
	assert.ErrorIs(t, err, ErrOutOfBounds)

	err = sub.Mutate(func(w Writer) error {
		if err := w.SetBlock(p(0, 0, 0), block.DirtBlockID); err != nil {
			return err
		}
		return w.SetBlock(p(9, 9, 9), block.DirtBlockID)
	})
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestTranslatedView_Property(t *testing.T) {
	src := NewChunkView(vec.Vec2{}, 0, 4, block.AirBlockID, biome.Plains)
	for q := range area.Points(src.Area()) {
		require.NoError(t, src.SetBlock(q, block.BlockID(q.X+q.Y*16+q.Z*64)))
	}
	offset := p(100, -50, 7)
	moved := NewTranslated(src, offset)

	assert.True(t, area.Equal(area.Translate(src.Area(), offset), moved.Area()))
	for q := range area.Points(moved.Area()) {
		got, err := moved.Block(q)
		require.NoError(t, err)
		want, _ := src.Block(q.Sub(offset))
		if got != want {
			t.Fatalf("Точка %v: ожидался %d, получен %d", q, want, got)
		}
	}

	back := NewTranslated(moved, offset.Neg())
	assert.Equal(t, vec.Vec3{}, back.Offset())
}

func TestTranslatedView_OutOfBoundsLikeWrapped(t *testing.T) {
	c := NewChunkView(vec.Vec2{}, 0, 16, block.AirBlockID, biome.Plains)
	sub := NewMutableSubView(c, area.NewFill(p(0, 0, 0), p(4, 4, 4)))
	moved := NewMutableTranslated(sub, p(10, 0, 0))

	require.NoError(t, moved.SetBlock(p(12, 1, 1), block.SandBlockID))
	id, _ := c.Block(p(2, 1, 1))
	assert.Equal(t, block.SandBlockID, id)

	_, errWrapped := sub.Block(p(5, 0, 0))
	_, errMoved := moved.Block(p(15, 0, 0))
	assert.ErrorIs(t, errWrapped, ErrOutOfBounds)
	assert.ErrorIs(t, errMoved, ErrOutOfBounds)

	require.NoError(t, moved.Mutate(func(w Writer) error {
		return w.SetBiome(p(13, 0, 0), biome.Desert)
	}))
	b, _ := c.Biome(p(3, 0, 0))
	assert.Equal(t, biome.Desert, b)

	require.NoError(t, moved.Clear(area.Single(p(12, 1, 1))))
	id, _ = c.Block(p(2, 1, 1))
	assert.Equal(t, block.AirBlockID, id)
}

func TestUnion_NewestWinsThenClear(t *testing.T) {
	v1 := NewConstantIn(area.NewFill(p(0, 0, 0), p(10, 10, 10)), block.StoneBlockID, biome.Plains)
	v2 := NewConstantIn(area.NewFill(p(5, 5, 5), p(15, 15, 15)), block.DirtBlockID, biome.Forest)
	u := NewUnion(v1, v2)

	id, err := u.Block(p(7, 7, 7))
	require.NoError(t, err)
	assert.Equal(t, block.DirtBlockID, id, "новый слой должен побеждать")
	id, _ = u.Block(p(1, 1, 1))
	assert.Equal(t, block.StoneBlockID, id)

	overlap := area.NewFill(p(5, 5, 5), p(10, 10, 10))
	require.NoError(t, u.Clear(overlap))

	id, err = u.Block(p(7, 7, 7))
	require.NoError(t, err, "очищенная точка остаётся в области")
	assert.Equal(t, block.Absent, id)
	b, _ := u.Biome(p(7, 7, 7))
	assert.Equal(t, biome.Absent, b)

	id, _ = u.Block(p(1, 1, 1))
	assert.Equal(t, block.StoneBlockID, id)
	id, _ = u.Block(p(12, 12, 12))
	assert.Equal(t, block.DirtBlockID, id)
}

func TestUnion_OutOfBounds(t *testing.T) {
	u := NewUnion(NewChunkView(vec.Vec2{}, 0, 16, block.AirBlockID, biome.Plains))

	_, err := u.Block(p(16, 0, 0))
	assert.ErrorIs(t, err, ErrOutOfBounds)
	assert.ErrorIs(t, u.SetBlock(p(0, 16, 0), block.StoneBlockID), ErrOutOfBounds)

	id, err := u.Block(p(0, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, block.AirBlockID, id, "воздух отличается от незагруженной точки")
}

func TestUnion_PointWritesShareLayer(t *testing.T) {
	u := NewUnion(NewChunkView(vec.Vec2{}, 0, 16, block.AirBlockID, biome.Plains))
	require.NoError(t, u.SetBlock(p(3, 3, 3), block.StoneBlockID))
	require.NoError(t, u.SetBiome(p(3, 3, 3), biome.Desert))

	assert.Equal(t, 2, u.Len(), "записи в ту же точку подряд занимают один слой")
	id, _ := u.Block(p(3, 3, 3))
	b, _ := u.Biome(p(3, 3, 3))
	assert.Equal(t, block.StoneBlockID, id)
	assert.Equal(t, biome.Desert, b, "слой биома не скрывает блок")

	require.NoError(t, u.SetBlock(p(4, 3, 3), block.DirtBlockID))
	require.NoError(t, u.SetBlock(p(3, 3, 3), block.SandBlockID))
	assert.Equal(t, 4, u.Len())
	id, _ = u.Block(p(3, 3, 3))
	b, _ = u.Biome(p(3, 3, 3))
	assert.Equal(t, block.SandBlockID, id)
	assert.Equal(t, biome.Desert, b)
}

func TestUnion_ClearAfterRepeatedWrites(t *testing.T) {
	u := NewUnion(NewChunkView(vec.Vec2{}, 0, 16, block.AirBlockID, biome.Plains))
	q := p(5, 5, 5)
	for i := 0; i < 32; i++ {
		require.NoError(t, u.SetBlock(q, block.StoneBlockID))
		// Чередование с соседней точкой не даёт слоям слиться
		require.NoError(t, u.SetBlock(p(6, 5, 5), block.DirtBlockID))
	}
	assert.Equal(t, 65, u.Len())

	done := make(chan error, 1)
	go func() { done <- u.Clear(area.Single(q)) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Clear не завершился за 5 секунд")
	}

	id, err := u.Block(q)
	require.NoError(t, err)
	assert.Equal(t, block.Absent, id)
	id, _ = u.Block(p(6, 5, 5))
	assert.Equal(t, block.DirtBlockID, id)
	assert.Equal(t, int64(16*16*16), u.Area().Size())
}

func TestUnion_MutateIsAtomic(t *testing.T) {
	u := NewUnion(NewChunkView(vec.Vec2{}, 0, 16, block.AirBlockID, biome.Plains))

	err := u.Mutate(func(w Writer) error {
		if err := w.SetBlock(p(1, 1, 1), block.StoneBlockID); err != nil {
			return err
		}
		return w.SetBlock(p(100, 1, 1), block.StoneBlockID)
	})
	assert.ErrorIs(t, err, ErrOutOfBounds)
	assert.Equal(t, 1, u.Len(), "неудачный пакет не публикуется")

	require.NoError(t, u.Mutate(func(w Writer) error {
		for x := 0; x < 16; x += 5 {
			if err := w.SetBlock(p(x, 2, 0), block.SandBlockID); err != nil {
				return err
			}
		}
		return nil
	}))
	assert.Equal(t, 2, u.Len())
	id, _ := u.Block(p(5, 2, 0))
	assert.Equal(t, block.SandBlockID, id)
	id, _ = u.Block(p(6, 2, 0))
	assert.Equal(t, block.AirBlockID, id)
}

func TestUnion_RemoveKeepsBackdrop(t *testing.T) {
	backdrop := NewConstant(block.BedrockBlockID, biome.Plains)
	chunk := NewChunkView(vec.Vec2{}, 0, 16, block.StoneBlockID, biome.Forest)
	other := NewChunkView(vec.Vec2{X: 1}, 0, 16, block.DirtBlockID, biome.Forest)
	u := NewUnion(backdrop, chunk, other)

	dropped := u.Remove(area.ColumnArea(vec.Vec2{}, 0, 16))
	assert.Equal(t, 1, dropped)
	assert.Equal(t, 2, u.Len())

	id, err := u.Block(p(1, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, block.BedrockBlockID, id)
	id, _ = u.Block(p(17, 1, 1))
	assert.Equal(t, block.DirtBlockID, id)
}

func TestUnion_RemovePartialLayer(t *testing.T) {
	wide := NewConstantIn(area.NewFill(p(0, 0, 0), p(32, 1, 16)), block.StoneBlockID, biome.Plains)
	u := NewUnion(wide)

	u.Remove(area.ColumnArea(vec.Vec2{}, 0, 16))
	_, err := u.Block(p(3, 0, 3))
	assert.ErrorIs(t, err, ErrOutOfBounds)
	id, err := u.Block(p(20, 0, 3))
	require.NoError(t, err)
	assert.Equal(t, block.StoneBlockID, id)
	assert.Equal(t, int64(16*16), u.Area().Size())
}

func TestUnion_ConcurrentReadersDuringWrites(t *testing.T) {
	u := NewUnion(NewChunkView(vec.Vec2{}, 0, 16, block.AirBlockID, biome.Plains))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				id, err := u.Block(p(4, 4, 4))
				if err != nil || (id != block.AirBlockID && id != block.StoneBlockID) {
					t.Errorf("Неожиданное чтение: %v, %v", id, err)
					return
				}
			}
		}()
	}
	for i := 0; i < 200; i++ {
		require.NoError(t, u.SetBlock(p(i%16, 4, 4), block.StoneBlockID))
	}
	close(stop)
	wg.Wait()

	id, _ := u.Block(p(4, 4, 4))
	assert.Equal(t, block.StoneBlockID, id)
}

func TestChunkView_ConcurrentMutate(t *testing.T) {
	c := NewChunkView(vec.Vec2{}, 0, 16, block.AirBlockID, biome.Plains)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(y int) {
			defer wg.Done()
			_ = c.Mutate(func(w Writer) error {
				for x := 0; x < 16; x++ {
					if err := w.SetBlock(p(x, y, 0), block.StoneBlockID); err != nil {
						return err
					}
				}
				return nil
			})
		}(i)
	}
	wg.Wait()
	for y := 0; y < 8; y++ {
		id, _ := c.Block(p(15, y, 0))
		assert.Equal(t, block.StoneBlockID, id)
	}
}

func TestCopyAndMaterialize(t *testing.T) {
	src := NewUnion(NewConstantIn(area.NewFill(p(0, 0, 0), p(2, 2, 2)), block.StoneBlockID, biome.Desert))
	m, err := Materialize(src, area.NewFill(p(0, 0, 0), p(4, 1, 4)))
	require.NoError(t, err)
	assert.Equal(t, 4, m.Len())

	dst := NewChunkView(vec.Vec2{}, 0, 16, block.AirBlockID, biome.Plains)
	require.NoError(t, Copy(dst, m, area.Full()))
	id, _ := dst.Block(p(1, 0, 1))
	assert.Equal(t, block.StoneBlockID, id)

	err = Copy(dst, NewConstant(block.StoneBlockID, biome.Plains), area.Full())
	assert.True(t, errors.Is(err, area.ErrUnbounded))
}

func TestWriterFunc_ReadOnly(t *testing.T) {
	w := WriterFunc{}
	assert.ErrorIs(t, w.SetBlock(p(0, 0, 0), block.StoneBlockID), ErrReadOnly)
}
