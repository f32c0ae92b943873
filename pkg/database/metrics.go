package database

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

type poolMetric[S any] struct {
	desc  *prometheus.Desc
	kind  prometheus.ValueType
	value func(S) float64
}

func newPoolMetric[S any](name, help string, kind prometheus.ValueType, value func(S) float64) poolMetric[S] {
	return poolMetric[S]{
		desc:  prometheus.NewDesc(name, help, []string{"service"}, nil),
		kind:  kind,
		value: value,
	}
}

// PoolStatsCollector exports pgxpool connection statistics.
type PoolStatsCollector struct {
	pool    *pgxpool.Pool
	service string
	metrics []poolMetric[*pgxpool.Stat]
}

// NewPoolStatsCollector creates a collector for the given pool.
func NewPoolStatsCollector(pool *pgxpool.Pool, service string) *PoolStatsCollector {
	g, c := prometheus.GaugeValue, prometheus.CounterValue
	return &PoolStatsCollector{
		pool:    pool,
		service: service,
		metrics: []poolMetric[*pgxpool.Stat]{
			newPoolMetric("db_pool_acquired_connections", "Number of currently acquired connections", g,
				func(s *pgxpool.Stat) float64 { return float64(s.AcquiredConns()) }),
			newPoolMetric("db_pool_idle_connections", "Number of currently idle connections", g,
				func(s *pgxpool.Stat) float64 { return float64(s.IdleConns()) }),
			newPoolMetric("db_pool_total_connections", "Total number of connections in the pool", g,
				func(s *pgxpool.Stat) float64 { return float64(s.TotalConns()) }),
			newPoolMetric("db_pool_max_connections", "Maximum number of connections allowed", g,
				func(s *pgxpool.Stat) float64 { return float64(s.MaxConns()) }),
			newPoolMetric("db_pool_constructing_connections", "Number of connections currently being constructed", g,
				func(s *pgxpool.Stat) float64 { return float64(s.ConstructingConns()) }),
			newPoolMetric("db_pool_acquire_count_total", "Total number of connection acquires", c,
				func(s *pgxpool.Stat) float64 { return float64(s.AcquireCount()) }),
			newPoolMetric("db_pool_acquire_duration_seconds_total", "Total time spent acquiring connections in seconds", c,
				func(s *pgxpool.Stat) float64 { return s.AcquireDuration().Seconds() }),
			newPoolMetric("db_pool_canceled_acquire_count_total", "Total number of canceled connection acquires", c,
				func(s *pgxpool.Stat) float64 { return float64(s.CanceledAcquireCount()) }),
			newPoolMetric("db_pool_empty_acquire_count_total", "Total number of acquires that had to wait for a connection", c,
				func(s *pgxpool.Stat) float64 { return float64(s.EmptyAcquireCount()) }),
			newPoolMetric("db_pool_new_connections_total", "Total number of new connections created", c,
				func(s *pgxpool.Stat) float64 { return float64(s.NewConnsCount()) }),
			newPoolMetric("db_pool_max_lifetime_destroy_total", "Total connections destroyed due to max lifetime", c,
				func(s *pgxpool.Stat) float64 { return float64(s.MaxLifetimeDestroyCount()) }),
			newPoolMetric("db_pool_max_idle_destroy_total", "Total connections destroyed due to max idle time", c,
				func(s *pgxpool.Stat) float64 { return float64(s.MaxIdleDestroyCount()) }),
		},
	}
}

func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.metrics {
		ch <- m.desc
	}
}

func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	stat := c.pool.Stat()
	for _, m := range c.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, m.kind, m.value(stat), c.service)
	}
}

// RedisStatsCollector exports go-redis connection pool statistics.
type RedisStatsCollector struct {
	client  *redis.Client
	service string
	metrics []poolMetric[*redis.PoolStats]
}

// NewRedisStatsCollector creates a collector for the given client.
func NewRedisStatsCollector(client *redis.Client, service string) *RedisStatsCollector {
	g, c := prometheus.GaugeValue, prometheus.CounterValue
	return &RedisStatsCollector{
		client:  client,
		service: service,
		metrics: []poolMetric[*redis.PoolStats]{
			newPoolMetric("redis_pool_hits_total", "Number of times a free connection was found in the pool", c,
				func(s *redis.PoolStats) float64 { return float64(s.Hits) }),
			newPoolMetric("redis_pool_misses_total", "Number of times a free connection was not found in the pool", c,
				func(s *redis.PoolStats) float64 { return float64(s.Misses) }),
			newPoolMetric("redis_pool_timeouts_total", "Number of times a wait for a connection timed out", c,
				func(s *redis.PoolStats) float64 { return float64(s.Timeouts) }),
			newPoolMetric("redis_pool_total_connections", "Total number of connections in the pool", g,
				func(s *redis.PoolStats) float64 { return float64(s.TotalConns) }),
			newPoolMetric("redis_pool_idle_connections", "Number of idle connections in the pool", g,
				func(s *redis.PoolStats) float64 { return float64(s.IdleConns) }),
			newPoolMetric("redis_pool_stale_connections_total", "Number of stale connections removed from the pool", c,
				func(s *redis.PoolStats) float64 { return float64(s.StaleConns) }),
		},
	}
}

func (c *RedisStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.metrics {
		ch <- m.desc
	}
}

func (c *RedisStatsCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.client.PoolStats()
	for _, m := range c.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, m.kind, m.value(stats), c.service)
	}
}

// RegisterPoolMetrics registers collectors for the Postgres pool and the Redis
// client with reg. Either may be nil.
func RegisterPoolMetrics(reg prometheus.Registerer, pool *pgxpool.Pool, client *redis.Client, service string) error {
	if pool != nil {
		if err := reg.Register(NewPoolStatsCollector(pool, service)); err != nil {
			return err
		}
	}
	if client != nil {
		if err := reg.Register(NewRedisStatsCollector(client, service)); err != nil {
			return err
		}
	}
	return nil
}
