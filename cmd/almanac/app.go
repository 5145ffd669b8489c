package main

import (
	"github.com/basalt-run/almanac/pkg/backend"
	"github.com/basalt-run/almanac/pkg/events"
	"github.com/basalt-run/almanac/pkg/index"
	"github.com/basalt-run/almanac/pkg/metrics"
	"github.com/basalt-run/almanac/pkg/record"
	"github.com/basalt-run/almanac/pkg/store"
)

// app bundles every layer a command needs against one data file: the
// blob backend, the versioned store, the secondary index, and the
// typed façade over both. Every subcommand that touches the data file,
// init included, opens one of these and closes it before returning.
type app struct {
	backend *backend.Backend
	index   *index.SQLiteIndex
	store   *store.Store
	facade  *record.Facade
	broker  *events.Broker
}

func openApp(path string) (*app, error) {
	be, err := backend.Local(path)
	if err != nil {
		return nil, err
	}

	idx, err := index.Open(path)
	if err != nil {
		be.Close()
		return nil, err
	}

	broker := events.NewBroker()
	broker.Start()

	s := store.Open(be, store.WithBroker(broker))
	f := record.New(s, idx)

	metrics.RegisterComponent("backend", true, "open")

	return &app{backend: be, index: idx, store: s, facade: f, broker: broker}, nil
}

func (a *app) Close() {
	metrics.UpdateComponent("backend", false, "closed")
	a.broker.Stop()
	a.index.Close()
	a.backend.Close()
}
