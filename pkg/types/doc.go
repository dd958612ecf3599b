/*
Package types defines the data model shared by every feelback package.

It holds the frustration level buckets, the telemetry record that flows
through the delivery queue, the wire bodies sent to the collector, and the
closed response variants returned by the UI host.

# Wire Format

Events are batched as

	{"events": [{"eventType": "...", "sessionId": "...", "deviceId": "...",
	  "clientTimestamp": "2026-01-02T15:04:05.000Z", "payload": {...}, "userId": "..."}]}

and feedback is sent as

	{"type": "...", "message": "...", "sessionId": "...", "deviceId": "...",
	 "userId": "...", "context": {"frustration_level": "LOW", "frustration_score": 30}}

userId is omitted when no user has been identified.

# Response Variants

ReviewResponse and InterventionResponse are sealed interfaces: only the
types declared in this package implement them, so a type switch over them
is exhaustive.

	switch r := resp.(type) {
	case types.ReviewPositive:
	case types.ReviewNegative:
		fmt.Println(r.Feedback)
	case types.ReviewNeutral, types.ReviewDismissed:
	}
*/
package types
