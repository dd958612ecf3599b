/*
Package events provides the observer registry used to announce frustration
transitions.

Unlike a channel-based pub/sub, Broker invokes handlers synchronously on the
goroutine that publishes, in the order they subscribed. A subscriber sees a
level change before the mutating call returns, and no event is ever dropped
because a buffer was full.

	b := events.NewBroker()
	sub := b.Subscribe(func(e events.Event) {
		fmt.Printf("%s -> %s (%d)\n", e.PreviousLevel, e.Level, e.Score)
	})
	defer b.Unsubscribe(sub)

Handlers run outside the broker's lock, so they may read engine state or
(un)subscribe without deadlocking. Handlers should not block.
*/
package events
