package cache

import (
	"github.com/dgraph-io/ristretto"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/marshaler"
	"github.com/eko/gocache/lib/v4/store"
	ristretto_store "github.com/eko/gocache/store/ristretto/v4"
	"github.com/spf13/viper"
)

var S store.StoreInterface

func NewStore() error {
	maxCost := viper.GetInt64("cache.max_cost")
	if maxCost <= 0 {
		maxCost = 1 << 27 // 128 MiB
	}

	inner, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e6,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return err
	}

	S = ristretto_store.NewRistretto(inner)
	return nil
}

// Use returns a marshaling cache over the shared store; call sites compose
// it per request like the upstream gocache examples do.
func Use() *marshaler.Marshaler {
	return marshaler.New(cache.New[any](S))
}
