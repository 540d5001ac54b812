package main

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/annel0/blockverse/internal/eventbus"
	"github.com/annel0/blockverse/internal/storage"
	"github.com/annel0/blockverse/internal/vec"
	"github.com/annel0/blockverse/internal/world/biome"
	"github.com/annel0/blockverse/internal/world/block"
	"github.com/annel0/blockverse/internal/world/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTempBadger(t *testing.T) *storage.BadgerBackend {
	t.Helper()
	dir, err := os.MkdirTemp("", "worldctl-test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	b, err := storage.NewBadgerBackend(dir)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func saveColumn(t *testing.T, b storage.Backend, col vec.Vec2) {
	t.Helper()
	cv := view.NewChunkView(col, 0, 4, block.AirBlockID, biome.Plains)
	ox, oz := col.Origin()
	require.NoError(t, cv.SetBlock(vec.Vec3{X: ox, Y: 0, Z: oz}, block.StoneBlockID))

	codec, err := storage.NewCodec()
	require.NoError(t, err)
	defer codec.Close()
	data, err := codec.Encode(col, 0, 4, cv)
	require.NoError(t, err)
	require.NoError(t, b.Put(context.Background(), storage.ColumnKey(col), data))
}

func TestListColumns(t *testing.T) {
	b := openTempBadger(t)
	saveColumn(t, b, vec.Vec2{X: 1, Y: 0})
	saveColumn(t, b, vec.Vec2{X: -1, Y: 2})
	require.NoError(t, b.Put(context.Background(), "meta:version", []byte("1")))

	var out bytes.Buffer
	require.NoError(t, listColumns(&out, b))
	assert.Equal(t, "-1\t2\n1\t0\n📦 2 columns\n", out.String())
}

func TestInspectColumn(t *testing.T) {
	b := openTempBadger(t)
	col := vec.Vec2{X: 3, Y: -2}
	saveColumn(t, b, col)

	var out bytes.Buffer
	require.NoError(t, inspectColumn(context.Background(), &out, b, col))
	text := out.String()
	assert.Contains(t, text, "Column (3,-2) height [0, 4)")
	assert.Contains(t, text, "air")
	assert.Contains(t, text, "1,023")
	assert.Contains(t, text, "stone")
	assert.Contains(t, text, "plains")

	err := inspectColumn(context.Background(), &out, b, vec.Vec2{X: 9, Y: 9})
	assert.ErrorContains(t, err, "not stored")
}

func TestPrintEvent(t *testing.T) {
	ev, err := eventbus.NewEnvelope("node-1", eventbus.EventColumnLoaded, 5,
		eventbus.ColumnEvent{World: "overworld", X: 2, Z: -3, Source: "storage"})
	require.NoError(t, err)

	var out bytes.Buffer
	printEvent(&out, ev)
	assert.Contains(t, out.String(), "node-1 ["+eventbus.EventColumnLoaded+"]")
	assert.Contains(t, out.String(), "Column: (2,-3) Source: storage")

	saved, err := eventbus.NewEnvelope("node-1", eventbus.EventWorldSaved, 5,
		eventbus.ColumnEvent{World: "overworld", Columns: 7})
	require.NoError(t, err)
	out.Reset()
	printEvent(&out, saved)
	assert.Contains(t, out.String(), "Columns: 7")
}

func TestParseStringList(t *testing.T) {
	assert.Nil(t, parseStringList(""))
	assert.Equal(t, []string{"a", "b"}, parseStringList(" a, ,b "))
}
