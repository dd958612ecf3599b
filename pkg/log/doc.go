/*
Package log provides structured logging for feelback using zerolog.

A single package-level Logger is configured once by the host (or by the SDK
during Init when debugLogging is set) and every component derives a child
logger carrying its name:

	log.Init(log.Config{Level: log.DebugLevel, JSONOutput: true})

	queueLog := log.WithComponent("queue")
	queueLog.Warn().Err(err).Int("batch", len(batch)).Msg("Batch send failed")

Transport and persistence failures are only ever logged; they are never
returned to the host application, so the log is the place to look when
events stop arriving at the collector.

Never log API keys or free-text feedback bodies. Log lengths and types
instead.
*/
package log
