/*
Package metrics exposes Prometheus instrumentation and a small component
health registry for the feelback SDK.

All collectors are package-level variables registered with the default
registry in init(), so any package can record without wiring:

	metrics.EventsEnqueued.WithLabelValues(event.EventType).Inc()
	metrics.QueueDepth.Set(float64(q.Len()))

	timer := metrics.NewTimer()
	err := send()
	timer.ObserveDurationVec(metrics.SendDuration, "events", status)

# Metrics

	feelback_queue_depth                       gauge
	feelback_events_enqueued_total{type}       counter
	feelback_events_sent_total                 counter
	feelback_events_dropped_total              counter
	feelback_batch_send_failures_total         counter
	feelback_persist_failures_total            counter
	feelback_send_duration_seconds{endpoint,status} histogram
	feelback_frustration_score                 gauge
	feelback_rage_taps_total                   counter
	feelback_frustration_level_changes_total{level} counter
	feelback_review_prompts_total{response}    counter
	feelback_interventions_total{response}     counter

# Health

UpdateComponent records the latest state of "storage" and "transport".
GetHealth folds them into a single status; HealthHandler serves it as JSON
with 503 when any component is unhealthy. A failing transport is reported
here rather than surfaced to the host application.
*/
package metrics
