package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// poolCollector expone el estado del pool de Postgres en cada scrape.
type poolCollector struct {
	pool func() *pgxpool.Pool

	acquired *prometheus.Desc
	idle     *prometheus.Desc
	total    *prometheus.Desc
	max      *prometheus.Desc
}

// RegisterPool registra gauges pgxpool_* para el pool que devuelva fn.
func RegisterPool(reg prometheus.Registerer, fn func() *pgxpool.Pool) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return registerCollector(reg, &poolCollector{
		pool:     fn,
		acquired: prometheus.NewDesc("pgxpool_acquired_conns", "Connections currently checked out", nil, nil),
		idle:     prometheus.NewDesc("pgxpool_idle_conns", "Idle connections", nil, nil),
		total:    prometheus.NewDesc("pgxpool_total_conns", "Open connections", nil, nil),
		max:      prometheus.NewDesc("pgxpool_max_conns", "Configured maximum connections", nil, nil),
	})
}

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.acquired
	ch <- c.idle
	ch <- c.total
	ch <- c.max
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	if c.pool == nil {
		return
	}
	p := c.pool()
	if p == nil {
		return
	}
	st := p.Stat()
	ch <- prometheus.MustNewConstMetric(c.acquired, prometheus.GaugeValue, float64(st.AcquiredConns()))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(st.IdleConns()))
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(st.TotalConns()))
	ch <- prometheus.MustNewConstMetric(c.max, prometheus.GaugeValue, float64(st.MaxConns()))
}
