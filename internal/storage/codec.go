package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"

	"github.com/annel0/blockverse/internal/area"
	"github.com/annel0/blockverse/internal/vec"
	"github.com/annel0/blockverse/internal/world/biome"
	"github.com/annel0/blockverse/internal/world/block"
	"github.com/annel0/blockverse/internal/world/view"
	"github.com/klauspost/compress/zstd"
)

// Формат колонки (до сжатия zstd):
//
//	magic "BVC" | version | x, z, minY, maxY (varint)
//	палитра блоков | индексы блоков | палитра биомов | индексы биомов
//
// Палитра: uvarint длины и значения (uint16 LE для блоков, байт для биомов).
// Индексы упакованы в uint64 LE, значение не переходит через границу слова.
const (
	codecMagic   = "BVC"
	codecVersion = 1
)

// ErrCorrupt возвращается при разборе повреждённой колонки
var ErrCorrupt = errors.New("corrupt chunk column")

// Codec кодирует колонки. Не потокобезопасен: каждому воркеру свой экземпляр из CodecPool.
type Codec struct {
	enc      *zstd.Encoder
	dec      *zstd.Decoder
	palettes *PaletteCache

	blockIndex map[block.BlockID]uint64
	biomeIndex map[biome.BiomeType]uint64
	buf        []byte
}

// NewCodec создаёт кодек со своим кэшем палитр
func NewCodec() (*Codec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &Codec{
		enc:        enc,
		dec:        dec,
		palettes:   NewPaletteCache(256),
		blockIndex: make(map[block.BlockID]uint64),
		biomeIndex: make(map[biome.BiomeType]uint64),
	}, nil
}

// Close освобождает ресурсы zstd
func (c *Codec) Close() {
	c.enc.Close()
	c.dec.Close()
}

// Palettes возвращает кэш палитр кодека
func (c *Codec) Palettes() *PaletteCache { return c.palettes }

// Encode снимает колонку col высоты [minY, maxY) с вида и сжимает её.
// Точки вне области вида сохраняются как отсутствующие.
func (c *Codec) Encode(col vec.Vec2, minY, maxY int, v view.View) ([]byte, error) {
	blocks, biomes, err := snapshotColumn(col, minY, maxY, v)
	if err != nil {
		return nil, err
	}

	buf := c.buf[:0]
	buf = append(buf, codecMagic...)
	buf = append(buf, codecVersion)
	buf = binary.AppendVarint(buf, int64(col.X))
	buf = binary.AppendVarint(buf, int64(col.Y))
	buf = binary.AppendVarint(buf, int64(minY))
	buf = binary.AppendVarint(buf, int64(maxY))

	clear(c.blockIndex)
	var blockPalette []uint64
	blockIdx := make([]uint64, len(blocks))
	for i, id := range blocks {
		n, ok := c.blockIndex[id]
		if !ok {
			n = uint64(len(blockPalette))
			c.blockIndex[id] = n
			blockPalette = append(blockPalette, uint64(id))
		}
		blockIdx[i] = n
	}
	buf = binary.AppendUvarint(buf, uint64(len(blockPalette)))
	for _, id := range blockPalette {
		buf = binary.LittleEndian.AppendUint16(buf, uint16(id))
	}
	buf = packIndices(buf, blockIdx, bitsFor(len(blockPalette)))

	clear(c.biomeIndex)
	var biomePalette []uint64
	biomeIdx := make([]uint64, len(biomes))
	for i, b := range biomes {
		n, ok := c.biomeIndex[b]
		if !ok {
			n = uint64(len(biomePalette))
			c.biomeIndex[b] = n
			biomePalette = append(biomePalette, uint64(b))
		}
		biomeIdx[i] = n
	}
	buf = binary.AppendUvarint(buf, uint64(len(biomePalette)))
	for _, b := range biomePalette {
		buf = append(buf, byte(b))
	}
	buf = packIndices(buf, biomeIdx, bitsFor(len(biomePalette)))

	c.buf = buf
	return c.enc.EncodeAll(buf, nil), nil
}

// snapshotColumn читает колонку в порядке X, Z, Y
func snapshotColumn(col vec.Vec2, minY, maxY int, v view.View) ([]block.BlockID, []biome.BiomeType, error) {
	if cv, ok := v.(*view.ChunkView); ok && cv.Column() == col && cv.MinY() == minY && cv.MaxY() == maxY {
		return cv.Blocks(), cv.Biomes(), nil
	}

	colArea := area.ColumnArea(col, minY, maxY)
	blocks := make([]block.BlockID, 0, colArea.Size())
	biomes := make([]biome.BiomeType, 0, colArea.Size())
	for p := range area.Points(colArea) {
		id, err := v.Block(p)
		if errors.Is(err, view.ErrOutOfBounds) {
			id = block.Absent
		} else if err != nil {
			return nil, nil, err
		}
		b, err := v.Biome(p)
		if errors.Is(err, view.ErrOutOfBounds) {
			b = biome.Absent
		} else if err != nil {
			return nil, nil, err
		}
		blocks = append(blocks, id)
		biomes = append(biomes, b)
	}
	return blocks, biomes, nil
}

// Decode распаковывает колонку в плотный вид
func (c *Codec) Decode(data []byte) (*view.ChunkView, error) {
	raw, err := c.dec.DecodeAll(data, c.buf[:0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	c.buf = raw

	r := &reader{data: raw}
	if string(r.next(len(codecMagic))) != codecMagic || r.readByte() != codecVersion {
		return nil, fmt.Errorf("%w: bad header", ErrCorrupt)
	}
	col := vec.Vec2{X: int(r.varint()), Y: int(r.varint())}
	minY, maxY := int(r.varint()), int(r.varint())
	if r.err != nil || maxY < minY || maxY-minY > 1<<16 {
		return nil, fmt.Errorf("%w: bad bounds", ErrCorrupt)
	}
	n := vec.SectionSize * vec.SectionSize * (maxY - minY)

	blockCount := int(r.uvarint())
	blockPalette := c.palettes.Blocks(r.next(2 * blockCount))
	blockIdx := r.indices(n, bitsFor(blockCount))

	biomeCount := int(r.uvarint())
	biomePalette := c.palettes.Biomes(r.next(biomeCount))
	biomeIdx := r.indices(n, bitsFor(biomeCount))
	if r.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, r.err)
	}

	blocks := make([]block.BlockID, n)
	for i, idx := range blockIdx {
		if idx >= uint64(len(blockPalette)) {
			return nil, fmt.Errorf("%w: block index %d out of palette", ErrCorrupt, idx)
		}
		blocks[i] = blockPalette[idx]
	}
	biomes := make([]biome.BiomeType, n)
	for i, idx := range biomeIdx {
		if idx >= uint64(len(biomePalette)) {
			return nil, fmt.Errorf("%w: biome index %d out of palette", ErrCorrupt, idx)
		}
		biomes[i] = biomePalette[idx]
	}
	return view.RestoreChunkView(col, minY, maxY, blocks, biomes)
}

// bitsFor возвращает ширину индекса для палитры размера n
func bitsFor(n int) int {
	if n <= 1 {
		return 0
	}
	return bits.Len(uint(n - 1))
}

func packIndices(buf []byte, idx []uint64, width int) []byte {
	if width == 0 {
		return buf
	}
	perWord := 64 / width
	var word uint64
	shift := 0
	for i, v := range idx {
		word |= v << shift
		shift += width
		if (i+1)%perWord == 0 {
			buf = binary.LittleEndian.AppendUint64(buf, word)
			word, shift = 0, 0
		}
	}
	if shift > 0 {
		buf = binary.LittleEndian.AppendUint64(buf, word)
	}
	return buf
}

// reader последовательно разбирает буфер, запоминая первую ошибку
type reader struct {
	data []byte
	pos  int
	err  error
}

func (r *reader) fail(what string) {
	if r.err == nil {
		r.err = fmt.Errorf("truncated %s at %d", what, r.pos)
	}
}

func (r *reader) next(n int) []byte {
	if r.err != nil || n < 0 || r.pos+n > len(r.data) {
		r.fail("bytes")
		return nil
	}
	out := r.data[r.pos : r.pos+n]
	r.pos += n
	return out
}

func (r *reader) readByte() byte {
	b := r.next(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) varint() int64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Varint(r.data[r.pos:])
	if n <= 0 {
		r.fail("varint")
		return 0
	}
	r.pos += n
	return v
}

func (r *reader) uvarint() uint64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Uvarint(r.data[r.pos:])
	if n <= 0 {
		r.fail("uvarint")
		return 0
	}
	r.pos += n
	return v
}

func (r *reader) indices(n, width int) []uint64 {
	out := make([]uint64, n)
	if width == 0 || r.err != nil {
		return out
	}
	perWord := 64 / width
	words := (n + perWord - 1) / perWord
	raw := r.next(8 * words)
	if raw == nil {
		return out
	}
	mask := uint64(1)<<width - 1
	for i := range out {
		word := binary.LittleEndian.Uint64(raw[8*(i/perWord):])
		out[i] = (word >> ((i % perWord) * width)) & mask
	}
	return out
}
