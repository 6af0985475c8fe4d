package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/annel0/voxelworld/internal/app"
	"github.com/annel0/voxelworld/internal/logging"
	"github.com/annel0/voxelworld/internal/mesh"
	"github.com/annel0/voxelworld/internal/middleware"
	"github.com/annel0/voxelworld/internal/netsync"
	"github.com/annel0/voxelworld/internal/protocol"
	"github.com/annel0/voxelworld/internal/vec"
	"github.com/annel0/voxelworld/internal/world"
	"github.com/annel0/voxelworld/internal/world/block"
	"github.com/gin-gonic/gin"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Server HTTP API для отладки и эксплуатации мира.
// Обработчики не трогают мир напрямую: всё идёт через Engine.Do.
type Server struct {
	router  *gin.Engine
	engine  *app.Engine
	metrics *ServerMetrics
	timeout time.Duration
	httpSrv *http.Server
	log     *logging.Logger
}

// Config содержит конфигурацию HTTP сервера
type Config struct {
	Addr     string               // адрес для запуска сервера, например ":8088"
	Engine   *app.Engine          // движок мира
	Hub      http.Handler         // WebSocket-хаб для /ws, может быть nil
	Registry *prometheus.Registry // регистр метрик; nil означает дефолтный
	Timeout  time.Duration        // ожидание потока движка на запрос
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// NewServer создает HTTP сервер
func NewServer(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8088"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Second
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// === Observability middleware ===
	router.Use(otelgin.Middleware("voxel_api"))
	router.Use(middleware.NewRequestLogger("/health", "/metrics").Handler())

	promMw := middleware.NewPrometheusMiddleware("voxel_api", cfg.Registry, "/api/world")
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router)

	s := &Server{
		router:  router,
		engine:  cfg.Engine,
		metrics: NewServerMetrics(),
		timeout: cfg.Timeout,
		log:     logging.GetServerLogger(),
	}
	s.httpSrv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.setupRoutes(cfg.Hub)
	return s
}

func (s *Server) setupRoutes(hub http.Handler) {
	s.router.GET("/health", s.handleHealth)

	w := s.router.Group("/api/world")
	{
		w.GET("/stats", s.handleStats)
		w.GET("/blocks", s.handleGetBlock)
		w.PUT("/blocks", s.handleSetBlock)
		w.GET("/chunks/:x/:y/:z", s.handleChunk)
		w.POST("/regenerate", s.handleRegenerate)
		w.POST("/observer", s.handleObserver)
		w.POST("/raycast", s.handleRaycast)
	}

	if hub != nil {
		s.router.GET("/ws", gin.WrapH(hub))
	}
}

// Handler возвращает http.Handler (для тестов и встраивания)
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start запускает HTTP сервер и блокируется до Stop
func (s *Server) Start() error {
	s.log.Info("🌐 HTTP API слушает %s", s.httpSrv.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop выполняет graceful shutdown
func (s *Server) Stop(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// do выполняет fn в потоке движка с таймаутом запроса
func (s *Server) do(c *gin.Context, fn func(*app.Engine) error) error {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.timeout)
	defer cancel()
	return s.engine.Do(ctx, fn)
}

func (s *Server) fail(c *gin.Context, status int, message string) {
	c.JSON(status, GenericResponse{Success: false, Message: message})
}

func (s *Server) engineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, block.ErrUnknownBlock), errors.Is(err, world.ErrOutOfRange):
		s.fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrStopped), errors.Is(err, context.DeadlineExceeded):
		s.fail(c, http.StatusServiceUnavailable, "Движок недоступен")
	default:
		s.log.Error("Ошибка выполнения запроса %s: %v", c.FullPath(), err)
		s.fail(c, http.StatusInternalServerError, "Внутренняя ошибка сервера")
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"tick":   s.engine.Last().Tick,
		"time":   time.Now().Unix(),
	})
}

// StatsResponse ответ /api/world/stats
type StatsResponse struct {
	World    world.Stats       `json:"world"`
	Seed     int64             `json:"seed"`
	Observer *world.ChunkCoord `json:"observer,omitempty"`
	Mesh     mesh.Stats        `json:"mesh"`
	Network  *netsync.Stats    `json:"network,omitempty"`
	LastTick app.TickSummary   `json:"last_tick"`
	Process  ProcessStats      `json:"process"`
}

func (s *Server) handleStats(c *gin.Context) {
	var resp StatsResponse
	err := s.do(c, func(e *app.Engine) error {
		resp.World = e.World().Stats()
		resp.Seed = e.Streamer().Seed()
		if oc, ok := e.Streamer().Observer(); ok {
			resp.Observer = &oc
		}
		resp.Mesh = e.Builder().Stats()
		if link := e.Link(); link != nil {
			st := link.Stats()
			resp.Network = &st
		}
		return nil
	})
	if err != nil {
		s.engineError(c, err)
		return
	}
	resp.LastTick = s.engine.Last()
	resp.Process = s.metrics.Snapshot()
	c.JSON(http.StatusOK, resp)
}

// BlockResponse состояние ячейки
type BlockResponse struct {
	X         int     `json:"x"`
	Y         int     `json:"y"`
	Z         int     `json:"z"`
	State     string  `json:"state"` // unknown | empty | occupied
	BlockType *string `json:"blockType"`
}

func intQuery(c *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Query(name))
	return v, err == nil
}

func (s *Server) handleGetBlock(c *gin.Context) {
	x, okX := intQuery(c, "x")
	y, okY := intQuery(c, "y")
	z, okZ := intQuery(c, "z")
	if !okX || !okY || !okZ {
		s.fail(c, http.StatusBadRequest, "Нужны целые параметры x, y, z")
		return
	}

	pos := vec.Vec3{X: x, Y: y, Z: z}
	resp := BlockResponse{X: x, Y: y, Z: z}
	err := s.do(c, func(e *app.Engine) error {
		st := e.World().Inspect(pos)
		resp.State = st.Occupancy.String()
		if st.Occupancy == world.Occupied {
			name := e.World().Blocks().Name(st.ID)
			resp.BlockType = &name
		}
		return nil
	})
	if err != nil {
		s.engineError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSetBlock(c *gin.Context) {
	var change protocol.BlockChange
	if err := c.ShouldBindJSON(&change); err != nil {
		s.fail(c, http.StatusBadRequest, "Неверный формат запроса")
		return
	}
	err := s.do(c, func(e *app.Engine) error {
		return e.World().ApplyChange(change, world.SetOptions{})
	})
	if err != nil {
		s.engineError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Блок изменён", Data: change})
}

// ChunkResponse сводка по чанку
type ChunkResponse struct {
	Coord     world.ChunkCoord `json:"coord"`
	Generated bool             `json:"generated"`
	Dirty     bool             `json:"dirty"`
	Revision  uint64           `json:"revision"`
	Blocks    int              `json:"blocks"`
	Mesh      *MeshInfo        `json:"mesh,omitempty"`
}

// MeshInfo сводка по мешу чанка
type MeshInfo struct {
	Faces    int  `json:"faces"`
	Vertices int  `json:"vertices"`
	Visible  bool `json:"visible"`
}

func (s *Server) handleChunk(c *gin.Context) {
	var coord world.ChunkCoord
	var err error
	if coord.X, err = strconv.Atoi(c.Param("x")); err == nil {
		if coord.Y, err = strconv.Atoi(c.Param("y")); err == nil {
			coord.Z, err = strconv.Atoi(c.Param("z"))
		}
	}
	if err != nil {
		s.fail(c, http.StatusBadRequest, "Координаты чанка должны быть целыми")
		return
	}

	var resp *ChunkResponse
	err = s.do(c, func(e *app.Engine) error {
		chunk, ok := e.World().Store().Get(coord)
		if !ok {
			return nil
		}
		resp = &ChunkResponse{
			Coord:     coord,
			Generated: chunk.IsGenerated(),
			Dirty:     chunk.IsDirty(),
			Revision:  chunk.Revision(),
			Blocks:    chunk.BlockCount(),
		}
		if m, ok := chunk.Mesh().(*mesh.Mesh); ok && m != nil {
			resp.Mesh = &MeshInfo{Faces: m.Faces, Vertices: m.VertexCount(), Visible: m.Visible()}
		}
		return nil
	})
	if err != nil {
		s.engineError(c, err)
		return
	}
	if resp == nil {
		s.fail(c, http.StatusNotFound, "Чанк не загружен")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RegenerateRequest запрос перегенерации мира
type RegenerateRequest struct {
	Seed int64 `json:"seed"`
}

func (s *Server) handleRegenerate(c *gin.Context) {
	var req RegenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, "Неверный формат запроса")
		return
	}
	var report world.StreamReport
	err := s.do(c, func(e *app.Engine) error {
		report = e.Regenerate(c.Request.Context(), req.Seed)
		return nil
	})
	if err != nil {
		s.engineError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Мир перегенерирован", Data: report})
}

// ObserverRequest новая позиция наблюдателя
type ObserverRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (s *Server) handleObserver(c *gin.Context) {
	var req ObserverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, "Неверный формат запроса")
		return
	}
	pos := vec.Vec3Float{X: req.X, Y: req.Y, Z: req.Z}
	if !s.engine.World().Mapper().InRangeFloat(pos) {
		s.fail(c, http.StatusBadRequest, world.ErrOutOfRange.Error())
		return
	}
	s.engine.SetObserver(pos)
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Наблюдатель перемещён"})
}

// RaycastRequest луч выбора блока
type RaycastRequest struct {
	Origin      [3]float64 `json:"origin"`
	Direction   [3]float64 `json:"direction"`
	MaxDistance float64    `json:"maxDistance"`
}

// RaycastResponse результат луча
type RaycastResponse struct {
	Hit       bool    `json:"hit"`
	Block     *[3]int `json:"block,omitempty"`
	Place     *[3]int `json:"place,omitempty"`
	BlockType string  `json:"blockType,omitempty"`
	Distance  float64 `json:"distance,omitempty"`
	Limit     float64 `json:"limit"`
}

// defaultRayDistance дальность луча, если клиент её не указал
const defaultRayDistance = 8

func (s *Server) handleRaycast(c *gin.Context) {
	var req RaycastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, "Неверный формат запроса")
		return
	}

	var resp RaycastResponse
	err := s.do(c, func(e *app.Engine) error {
		// луч длиннее потолка из конфигурации занял бы поток движка надолго
		limit := e.Physics().MaxRayDistance()
		dist := req.MaxDistance
		if dist <= 0 {
			dist = defaultRayDistance
		}
		if limit > 0 && dist > limit {
			dist = limit
		}
		resp.Limit = dist

		hit, ok := e.Physics().Raycast(mgl64.Vec3(req.Origin), mgl64.Vec3(req.Direction), dist)
		if !ok {
			return nil
		}
		place := hit.Place()
		resp.Hit = true
		resp.Block = &[3]int{hit.Block.X, hit.Block.Y, hit.Block.Z}
		resp.Place = &[3]int{place.X, place.Y, place.Z}
		resp.BlockType = e.World().Blocks().Name(hit.ID)
		resp.Distance = hit.Distance
		return nil
	})
	if err != nil {
		s.engineError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
