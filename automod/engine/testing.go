package engine

import (
	"log/slog"
	"time"

	"github.com/streamguard/streamguard/automod/cachestore"
	"github.com/streamguard/streamguard/automod/countstore"
	"github.com/streamguard/streamguard/automod/detector"
	"github.com/streamguard/streamguard/automod/setstore"
	"github.com/streamguard/streamguard/automod/strikes"
	"github.com/streamguard/streamguard/storage"
	"github.com/streamguard/streamguard/transport"
)

// EngineTestFixture wires an engine entirely from in-memory parts: mem
// store, null transport, medium sensitivity. Tests reach into the fixture's
// fields to inspect what happened.
func EngineTestFixture() *Engine {
	logger := slog.Default()
	det, err := detector.NewDetector(logger, "medium")
	if err != nil {
		panic(err)
	}
	store := storage.NewMemStore()
	return NewEngine(Engine{
		Logger:   logger,
		Detector: det,
		Strikes:  strikes.NewLedger(store, logger),
		Counters: countstore.NewMemCountStore(),
		Cache:    cachestore.NewMemCacheStore(16, time.Minute),
		Sets:     setstore.NewMemSetStore(),
		Store:    store,
		Client:   transport.NewNullClient(logger),
		Config: Config{
			OwnerUsername:  "streamer",
			Enabled:        true,
			UseStrikes:     true,
			ActionCooldown: 30 * time.Second,
		},
	})
}
