package observability

import (
	"net/http"
	"time"

	"github.com/annel0/blockverse/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Источники загруженных колонок
const (
	SourceStorage   = "storage"
	SourceGenerated = "generated"
	SourceEmpty     = "empty"
)

// WorldMetrics: Prometheus-метрики экземпляра мира.
// Нулевой указатель допустим: все методы тогда ничего не делают.
type WorldMetrics struct {
	loadedColumns prometheus.Gauge
	unionLayers   prometheus.Gauge
	stagedForks   prometheus.Gauge
	columnsLoaded *prometheus.CounterVec
	columnsSaved  prometheus.Counter
	saveErrors    prometheus.Counter
	loadDuration  prometheus.Histogram
	tickDuration  prometheus.Histogram
	encodedBytes  prometheus.Histogram
}

// NewWorldMetrics создаёт метрики и регистрирует их в reg (nil: глобальный регистр)
func NewWorldMetrics(reg prometheus.Registerer) *WorldMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &WorldMetrics{
		loadedColumns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "world",
			Name:      "columns_loaded",
			Help:      "Количество загруженных колонок чанков.",
		}),
		unionLayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "world",
			Name:      "union_layers",
			Help:      "Количество слоёв в объединении мира.",
		}),
		stagedForks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "world",
			Name:      "forks_staged",
			Help:      "Слои форков, ожидающие загрузки своих колонок.",
		}),
		columnsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "world",
			Name:      "columns_loaded_total",
			Help:      "Загруженные колонки по источнику.",
		}, []string{"source"}),
		columnsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "world",
			Name:      "columns_saved_total",
			Help:      "Сохранённые колонки.",
		}),
		saveErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "world",
			Name:      "save_errors_total",
			Help:      "Ошибки сохранения колонок.",
		}),
		loadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "world",
			Name:      "column_load_seconds",
			Help:      "Время загрузки или генерации одной колонки.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "world",
			Name:      "tick_seconds",
			Help:      "Длительность тика загрузки и выгрузки.",
			Buckets:   prometheus.DefBuckets,
		}),
		encodedBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "storage",
			Name:      "column_encoded_bytes",
			Help:      "Размер сжатой колонки.",
			Buckets:   prometheus.ExponentialBuckets(64, 2, 14),
		}),
	}
	reg.MustRegister(
		m.loadedColumns, m.unionLayers, m.stagedForks, m.columnsLoaded,
		m.columnsSaved, m.saveErrors, m.loadDuration, m.tickDuration, m.encodedBytes,
	)
	return m
}

func (m *WorldMetrics) ColumnLoaded(source string, d time.Duration) {
	if m == nil {
		return
	}
	m.columnsLoaded.WithLabelValues(source).Inc()
	m.loadDuration.Observe(d.Seconds())
}

func (m *WorldMetrics) ColumnSaved(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.saveErrors.Inc()
		return
	}
	m.columnsSaved.Inc()
}

func (m *WorldMetrics) Tick(d time.Duration) {
	if m == nil {
		return
	}
	m.tickDuration.Observe(d.Seconds())
}

func (m *WorldMetrics) Encoded(n int) {
	if m == nil {
		return
	}
	m.encodedBytes.Observe(float64(n))
}

// SetState обновляет мгновенные значения
func (m *WorldMetrics) SetState(columns, layers, staged int) {
	if m == nil {
		return
	}
	m.loadedColumns.Set(float64(columns))
	m.unionLayers.Set(float64(layers))
	m.stagedForks.Set(float64(staged))
}

// StartHTTP запускает HTTP-эндпоинт Prometheus на указанном адресе (например, ":2112").
// Возвращает сервер, чтобы его можно было остановить через Shutdown.
func StartHTTP(addr string, gatherer prometheus.Gatherer) *http.Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logging.Info("📈 Prometheus /metrics доступен по адресу %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("Ошибка Prometheus HTTP сервера: %v", err)
		}
	}()
	return srv
}
