package telemetry

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

// DBMetricsPlugin observes gorm statement latency per operation and table.
// The schema part of tenant tables is dropped from the label.
type DBMetricsPlugin struct {
	duration *prometheus.HistogramVec
	errors   *prometheus.CounterVec
}

// NewDBMetricsPlugin creates and registers the query instruments
func NewDBMetricsPlugin(reg prometheus.Registerer) (*DBMetricsPlugin, error) {
	p := &DBMetricsPlugin{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "db_query_duration_seconds",
			Help:      "Database statement latency in seconds",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"operation", "table"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "db_query_errors_total",
			Help:      "Database statements that failed, excluding not-found",
		}, []string{"operation", "table"}),
	}
	if err := reg.Register(p.duration); err != nil {
		return nil, err
	}
	if err := reg.Register(p.errors); err != nil {
		return nil, err
	}
	return p, nil
}

// Register installs the callbacks on db
func (p *DBMetricsPlugin) Register(db *gorm.DB) error {
	return registerAround(db, "metrics", markQueryStart, p.observer)
}

func (p *DBMetricsPlugin) observer(op string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		elapsed, ok := queryElapsed(db)
		if !ok {
			return
		}
		_, table := splitTable(db.Statement.Table)
		if table == "" {
			table = "unknown"
		}
		p.duration.WithLabelValues(op, table).Observe(elapsed.Seconds())
		if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
			p.errors.WithLabelValues(op, table).Inc()
		}
	}
}
