package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/annel0/blockverse/internal/area"
	"github.com/annel0/blockverse/internal/eventbus"
	"github.com/annel0/blockverse/internal/storage"
	"github.com/annel0/blockverse/internal/vec"
	"github.com/annel0/blockverse/internal/world/block"
	"github.com/annel0/blockverse/internal/world/view"
	"github.com/dustin/go-humanize"
)

const timeFormat = "2006-01-02T15:04:05Z"

func main() {
	var (
		command    = flag.String("cmd", "columns", "Command: tail, columns, inspect")
		natsURL    = flag.String("nats", "nats://127.0.0.1:4222", "NATS server URL")
		stream     = flag.String("stream", "WORLD", "JetStream stream name")
		eventTypes = flag.String("types", "", "Event types filter (comma-separated)")
		sources    = flag.String("sources", "", "Source instance IDs filter (comma-separated)")
		duration   = flag.Duration("for", 0, "Stop tailing after this duration (0 = until Ctrl+C)")
		dbPath     = flag.String("db", "data/overworld", "BadgerDB directory of a world")
		x          = flag.Int("x", 0, "Column X")
		z          = flag.Int("z", 0, "Column Z")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch *command {
	case "tail":
		err = tailEvents(ctx, *natsURL, *stream, eventbus.Filter{
			Types:   parseStringList(*eventTypes),
			Sources: parseStringList(*sources),
		}, *duration)
	case "columns":
		err = withBadger(*dbPath, func(b *storage.BadgerBackend) error {
			return listColumns(os.Stdout, b)
		})
	case "inspect":
		err = withBadger(*dbPath, func(b *storage.BadgerBackend) error {
			return inspectColumn(ctx, os.Stdout, b, vec.Vec2{X: *x, Y: *z})
		})
	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		fmt.Println("Available commands: tail, columns, inspect")
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("❌ %s failed: %v", *command, err)
	}
}

func withBadger(path string, fn func(b *storage.BadgerBackend) error) error {
	b, err := storage.NewBadgerBackend(path)
	if err != nil {
		return err
	}
	defer b.Close()
	return fn(b)
}

// tailEvents выводит события мира из JetStream до отмены ctx
func tailEvents(ctx context.Context, url, stream string, f eventbus.Filter, d time.Duration) error {
	bus, err := eventbus.NewJetStreamBus(url, stream, time.Hour)
	if err != nil {
		return err
	}
	defer bus.Close()

	if d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	fmt.Printf("🎬 Tailing %s on %s (types: %v)\n", stream, url, f.Types)
	sub, err := bus.Subscribe(ctx, f, func(_ context.Context, ev *eventbus.Envelope) {
		printEvent(os.Stdout, ev)
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	<-ctx.Done()
	fmt.Printf("\n📊 Total events: %d\n", bus.Metrics().Consumed)
	return nil
}

// printEvent выводит событие в читаемом формате
func printEvent(w io.Writer, ev *eventbus.Envelope) {
	fmt.Fprintf(w, "[%s] %s [%s] %s\n",
		ev.Timestamp.UTC().Format(timeFormat),
		ev.Source,
		ev.EventType,
		ev.ID)

	ce, err := ev.Column()
	if err != nil {
		return
	}
	switch ev.EventType {
	case eventbus.EventWorldSaved:
		fmt.Fprintf(w, "  World: %s Columns: %d\n", ce.World, ce.Columns)
	default:
		fmt.Fprintf(w, "  World: %s Column: (%d,%d)", ce.World, ce.X, ce.Z)
		if ce.Source != "" {
			fmt.Fprintf(w, " Source: %s", ce.Source)
		}
		fmt.Fprintln(w)
	}
}

// listColumns печатает сохранённые колонки, отсортированные по X, затем Z
func listColumns(w io.Writer, b *storage.BadgerBackend) error {
	keys, err := b.Keys(storage.ColumnPrefix)
	if err != nil {
		return err
	}
	cols := make([]vec.Vec2, 0, len(keys))
	for _, k := range keys {
		if col, ok := storage.ParseColumnKey(k); ok {
			cols = append(cols, col)
		}
	}
	sort.Slice(cols, func(i, j int) bool {
		if cols[i].X != cols[j].X {
			return cols[i].X < cols[j].X
		}
		return cols[i].Y < cols[j].Y
	})
	for _, col := range cols {
		fmt.Fprintf(w, "%d\t%d\n", col.X, col.Y)
	}
	fmt.Fprintf(w, "📦 %d columns\n", len(cols))
	return nil
}

// inspectColumn декодирует колонку и печатает гистограмму блоков и биомов
func inspectColumn(ctx context.Context, w io.Writer, b storage.Backend, col vec.Vec2) error {
	data, ok, err := b.Get(ctx, storage.ColumnKey(col))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("column %v is not stored", col)
	}

	codec, err := storage.NewCodec()
	if err != nil {
		return err
	}
	defer codec.Close()

	cv, err := codec.Decode(data)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Column (%d,%d) height [%d, %d) encoded %s\n",
		col.X, col.Y, cv.MinY(), cv.MaxY(), humanize.Bytes(uint64(len(data))))

	blocks, biomes, err := histogram(cv)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "Blocks:")
	printCounts(w, blocks)
	fmt.Fprintln(w, "Biomes:")
	printCounts(w, biomes)
	return nil
}

func histogram(v view.View) (blocks, biomes map[string]int, err error) {
	blocks = make(map[string]int)
	biomes = make(map[string]int)
	for p := range area.Points(v.Area()) {
		id, berr := v.Block(p)
		bm, merr := v.Biome(p)
		if err = errors.Join(berr, merr); err != nil {
			return nil, nil, err
		}
		blocks[block.Name(id)]++
		biomes[bm.String()]++
	}
	return blocks, biomes, nil
}

func printCounts(w io.Writer, counts map[string]int) {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	for _, name := range names {
		fmt.Fprintf(w, "  %-12s %s\n", name, humanize.Comma(int64(counts[name])))
	}
}

// parseStringList парсит строку с разделителями-запятыми
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
