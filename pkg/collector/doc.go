/*
Package collector implements a local, in-memory stand-in for the feelback
collector service.

It speaks the same wire format the SDK transport sends:

	POST /v1/events    {"events": [QueuedEvent, ...]}   -> 202 Receipt
	POST /v1/feedback  Feedback                          -> 202 Receipt
	GET  /v1/batches   accepted batches as JSON
	GET  /health       component health
	GET  /metrics      Prometheus exposition

Requests under /v1 require "Authorization: Bearer <key>". Bodies sent with
"Content-Encoding: gzip" are inflated before decoding.

SetFailStatus forces every /v1 request to fail with a given status, which is
how queue retry behaviour is exercised from tests and the CLI simulator.
*/
package collector
