package conveyor

import "github.com/VictoriaMetrics/metrics"

// Process-wide operation counters. Exposed through the standard
// metrics.WritePrometheus endpoint when the host program serves one.
var (
	metricSubjectsSpawned   = metrics.NewCounter("conveyor_subjects_spawned_total")
	metricSubjectsDespawned = metrics.NewCounter("conveyor_subjects_despawned_total")
	metricChunkMigrations   = metrics.NewCounter("conveyor_chunk_migrations_total")
	metricChunksCreated     = metrics.NewCounter("conveyor_chunks_created_total")
	metricBeltsCreated      = metrics.NewCounter("conveyor_belts_created_total")
	metricDeferredOps       = metrics.NewCounter("conveyor_deferred_ops_total")
	metricDeferredDrains    = metrics.NewCounter("conveyor_deferred_drains_total")
	metricDeferredFailures  = metrics.NewCounter("conveyor_deferred_failures_total")
)
