/*
Package events provides an in-memory event broker for almanac's pub/sub
notifications.

This is purely an observability channel: a CLI `watch` or an external
log shipper can subscribe to it, but nothing in pkg/store or pkg/index
depends on delivery. The secondary-index updates that keep SQLite in
sync with the MST are made synchronously by pkg/record after each store
call returns; pkg/store calls Broker.Publish right after it moves a ref,
before that index update, and nothing waits for the event to be
delivered.

	┌──────────────────── EVENT BROKER ────────────────────────┐
	│  Publisher → Event Channel (buffer: 100)                  │
	│       ↓                                                    │
	│  Broadcast Loop → Subscriber Channels (buffer: 50 each)    │
	│                                                             │
	│  Event Types:                                              │
	│    record.written, record.removed                          │
	│    store.committed, store.abandoned, store.gc_completed     │
	│    sync.peer_discovered, sync.pull_started,                 │
	│    sync.pull_completed, sync.pull_failed                    │
	└────────────────────────────────────────────────────────┘

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	broker.Publish(&events.Event{
		Type:    events.EventRecordWritten,
		Message: "person/p1/name",
	})

	for ev := range sub {
		log.Info(string(ev.Type) + ": " + ev.Message)
	}

A full subscriber buffer drops the event rather than blocking the
publisher — delivery is best-effort.
*/
package events
