// Package metrics публикует показатели ядра мира в Prometheus.
//
// Метрики:
// * chunks_resident, chunks_dirty, meshes_live, columns_resident: gauge
// * mesh_rebuilds_total, mesh_failures_total: counter
// * columns_generated_total, columns_unloaded_total, columns_failed_total: counter
// * net_frames_total{direction,kind}: counter
// * tick_duration_seconds{stage}: histogram
package metrics

import (
	"time"

	"github.com/annel0/voxelworld/internal/world"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics набор коллекторов движка
type Metrics struct {
	chunksResident  prometheus.Gauge
	chunksDirty     prometheus.Gauge
	meshesLive      prometheus.Gauge
	columnsResident prometheus.Gauge

	meshRebuilds     prometheus.Counter
	meshFailures     prometheus.Counter
	columnsGenerated prometheus.Counter
	columnsUnloaded  prometheus.Counter
	columnsFailed    prometheus.Counter

	netFrames    *prometheus.CounterVec
	tickDuration *prometheus.HistogramVec
}

// New создаёт коллекторы и регистрирует их в reg.
// reg == nil означает prometheus.DefaultRegisterer.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help})
	}

	m := &Metrics{
		chunksResident:   gauge("chunks_resident", "Число чанков в хранилище."),
		chunksDirty:      gauge("chunks_dirty", "Число чанков, ожидающих перестройки меша."),
		meshesLive:       gauge("meshes_live", "Число живых мешей."),
		columnsResident:  gauge("columns_resident", "Число полностью загруженных колонок."),
		meshRebuilds:     counter("mesh_rebuilds_total", "Успешные перестройки мешей."),
		meshFailures:     counter("mesh_failures_total", "Неудачные перестройки мешей."),
		columnsGenerated: counter("columns_generated_total", "Сгенерированные колонки."),
		columnsUnloaded:  counter("columns_unloaded_total", "Выгруженные колонки."),
		columnsFailed:    counter("columns_failed_total", "Колонки с ошибкой генерации."),
		netFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "net_frames_total",
			Help:      "Сетевые кадры синхронизации блоков.",
		}, []string{"direction", "kind"}),
		tickDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Длительность стадий игрового тика.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.016, 0.033, 0.05, 0.1},
		}, []string{"stage"}),
	}

	reg.MustRegister(
		m.chunksResident, m.chunksDirty, m.meshesLive, m.columnsResident,
		m.meshRebuilds, m.meshFailures,
		m.columnsGenerated, m.columnsUnloaded, m.columnsFailed,
		m.netFrames, m.tickDuration,
	)
	return m
}

// ObserveStats обновляет gauge по снимку мира
func (m *Metrics) ObserveStats(s world.Stats) {
	if m == nil {
		return
	}
	m.chunksResident.Set(float64(s.Chunks))
	m.chunksDirty.Set(float64(s.Dirty))
	m.meshesLive.Set(float64(s.Meshes))
}

// ObserveMesh учитывает отчёт планировщика мешей
func (m *Metrics) ObserveMesh(r world.TickReport) {
	if m == nil {
		return
	}
	m.meshRebuilds.Add(float64(r.Rebuilt))
	m.meshFailures.Add(float64(r.Failed))
}

// ObserveStream учитывает отчёт стриминга
func (m *Metrics) ObserveStream(r world.StreamReport) {
	if m == nil {
		return
	}
	m.columnsGenerated.Add(float64(r.Generated))
	m.columnsUnloaded.Add(float64(r.Unloaded))
	m.columnsFailed.Add(float64(r.Failed))
	m.columnsResident.Set(float64(r.Resident))
}

// Frame учитывает сетевой кадр. direction: "in" или "out".
func (m *Metrics) Frame(direction, kind string) {
	if m == nil {
		return
	}
	m.netFrames.WithLabelValues(direction, kind).Inc()
}

// ObserveStage записывает длительность стадии тика
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.tickDuration.WithLabelValues(stage).Observe(d.Seconds())
}
