package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/annel0/blockverse/internal/vec"
	"github.com/annel0/blockverse/internal/world/biome"
	"github.com/annel0/blockverse/internal/world/block"
	"github.com/annel0/blockverse/internal/world/view"
	"github.com/gin-gonic/gin"
)

// maxAdminRadius ограничивает радиус загрузки, запрошенный через API
const maxAdminRadius = 32

// BlockInfo описывает содержимое одной точки мира
type BlockInfo struct {
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Z       int    `json:"z"`
	BlockID uint16 `json:"block_id"`
	Block   string `json:"block"`
	Biome   string `json:"biome"`
	Absent  bool   `json:"absent,omitempty"`
}

// SetBlockRequest: запись блока (и, если указан, биома) в точку
type SetBlockRequest struct {
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Z     int    `json:"z"`
	Block string `json:"block" binding:"required"`
	Biome string `json:"biome"`
}

// AreaRequest задаёт квадрат колонок вокруг точки
type AreaRequest struct {
	X      int `json:"x"`
	Z      int `json:"z"`
	Radius int `json:"radius"`
}

// ColumnInfo описывает состояние колонки
type ColumnInfo struct {
	X      int  `json:"x"`
	Z      int  `json:"z"`
	Loaded bool `json:"loaded"`
	Staged int  `json:"staged_layers"`
}

func (s *AdminServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"world":  s.inst.Name(),
		"time":   time.Now().Unix(),
	})
}

// handleWorld возвращает сводку по экземпляру мира
func (s *AdminServer) handleWorld(c *gin.Context) {
	minY, maxY := s.inst.Height()
	present, stagedColumns, stagedLayers := s.inst.Forks().Stats()

	data := gin.H{
		"id":             s.inst.ID().String(),
		"name":           s.inst.Name(),
		"min_y":          minY,
		"max_y":          maxY,
		"tick":           s.inst.CurrentTick(),
		"columns":        present,
		"layers":         s.inst.View().Len(),
		"staged_columns": stagedColumns,
		"staged_layers":  stagedLayers,
		"last_save":      s.inst.LastSaveTime().Unix(),
		"uptime":         time.Since(s.started).Truncate(time.Second).String(),
	}
	if s.monitor != nil {
		ps := s.monitor.Snapshot()
		data["process"] = gin.H{
			"rss":         ps.RSS,
			"heap_alloc":  ps.HeapAlloc,
			"cpu_percent": ps.CPUPercent,
			"goroutines":  ps.Goroutines,
			"summary":     ps.String(),
		}
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Data: data})
}

func (s *AdminServer) handleColumns(c *gin.Context) {
	loaded := s.inst.Loaded()
	cols := make([]ColumnInfo, len(loaded))
	for i, col := range loaded {
		cols[i] = ColumnInfo{X: col.X, Z: col.Y, Loaded: true, Staged: s.inst.Forks().Pending(col)}
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Data:    gin.H{"columns": cols, "total": len(cols)},
	})
}

func (s *AdminServer) handleColumn(c *gin.Context) {
	x, errX := strconv.Atoi(c.Param("x"))
	z, errZ := strconv.Atoi(c.Param("z"))
	if errX != nil || errZ != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Message: "Координаты колонки должны быть целыми"})
		return
	}
	col := vec.Vec2{X: x, Y: z}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Data: ColumnInfo{
			X:      x,
			Z:      z,
			Loaded: s.inst.IsLoaded(col),
			Staged: s.inst.Forks().Pending(col),
		},
	})
}

func (s *AdminServer) handleGetBlock(c *gin.Context) {
	p, ok := queryPoint(c)
	if !ok {
		return
	}

	id, err := s.inst.Block(p)
	if err != nil {
		s.writeViewError(c, err)
		return
	}
	b, err := s.inst.Biome(p)
	if err != nil {
		s.writeViewError(c, err)
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Data: BlockInfo{
			X: p.X, Y: p.Y, Z: p.Z,
			BlockID: uint16(id),
			Block:   block.Name(id),
			Biome:   b.String(),
			Absent:  id == block.Absent,
		},
	})
}

func (s *AdminServer) handleSetBlock(c *gin.Context) {
	var req SetBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Message: "Неверный формат запроса: " + err.Error()})
		return
	}

	id, ok := block.Lookup(req.Block)
	if !ok {
		c.JSON(http.StatusBadRequest, GenericResponse{Message: "Неизвестный блок " + strconv.Quote(req.Block)})
		return
	}
	b := biome.Absent
	if req.Biome != "" {
		var err error
		if b, err = biome.Parse(req.Biome); err != nil {
			c.JSON(http.StatusBadRequest, GenericResponse{Message: err.Error()})
			return
		}
	}

	p := vec.Vec3{X: req.X, Y: req.Y, Z: req.Z}
	err := s.inst.Mutate(func(w view.Writer) error {
		if err := w.SetBlock(p, id); err != nil {
			return err
		}
		if b != biome.Absent {
			return w.SetBiome(p, b)
		}
		return nil
	})
	if err != nil {
		s.writeViewError(c, err)
		return
	}

	s.logger.Info("✏️ %s записал %s в %v", operator(c), req.Block, p)
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Блок записан"})
}

func (s *AdminServer) handleLoad(c *gin.Context) {
	req, ok := bindArea(c)
	if !ok {
		return
	}
	n, err := s.inst.LoadArea(c.Request.Context(), s.inst.ViewDistance(vec.Vec3{X: req.X, Z: req.Z}, req.Radius))
	if err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{Message: err.Error(), Data: gin.H{"loaded": n}})
		return
	}
	s.logger.Info("📦 %s загрузил %d колонок вокруг (%d, %d)", operator(c), n, req.X, req.Z)
	c.JSON(http.StatusOK, GenericResponse{Success: true, Data: gin.H{"loaded": n}})
}

func (s *AdminServer) handleUnload(c *gin.Context) {
	req, ok := bindArea(c)
	if !ok {
		return
	}
	n, err := s.inst.UnloadArea(c.Request.Context(), s.inst.ViewDistance(vec.Vec3{X: req.X, Z: req.Z}, req.Radius))
	if err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{Message: err.Error(), Data: gin.H{"unloaded": n}})
		return
	}
	s.logger.Info("📤 %s выгрузил %d колонок вокруг (%d, %d)", operator(c), n, req.X, req.Z)
	c.JSON(http.StatusOK, GenericResponse{Success: true, Data: gin.H{"unloaded": n}})
}

func (s *AdminServer) handleSave(c *gin.Context) {
	if err := s.inst.Save(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{Message: err.Error()})
		return
	}
	s.logger.Info("💾 %s сохранил мир", operator(c))
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Data:    gin.H{"last_save": s.inst.LastSaveTime().Unix()},
	})
}

// writeViewError отображает ошибки вида на HTTP статусы
func (s *AdminServer) writeViewError(c *gin.Context, err error) {
	if errors.Is(err, view.ErrOutOfBounds) {
		c.JSON(http.StatusNotFound, GenericResponse{Message: "Точка вне загруженной области"})
		return
	}
	c.JSON(http.StatusInternalServerError, GenericResponse{Message: err.Error()})
}

func queryPoint(c *gin.Context) (vec.Vec3, bool) {
	var coords [3]int
	for i, name := range []string{"x", "y", "z"} {
		v, err := strconv.Atoi(c.Query(name))
		if err != nil {
			c.JSON(http.StatusBadRequest, GenericResponse{Message: "Параметр " + name + " должен быть целым"})
			return vec.Vec3{}, false
		}
		coords[i] = v
	}
	return vec.Vec3{X: coords[0], Y: coords[1], Z: coords[2]}, true
}

func bindArea(c *gin.Context) (AreaRequest, bool) {
	var req AreaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Message: "Неверный формат запроса: " + err.Error()})
		return req, false
	}
	if req.Radius < 0 || req.Radius > maxAdminRadius {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Message: "Радиус должен быть в диапазоне [0, " + strconv.Itoa(maxAdminRadius) + "]",
		})
		return req, false
	}
	return req, true
}
