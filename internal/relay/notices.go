// Forwards cache, signal and navigation changes of Agora to the SSE hub.

package relay

import (
	"Agora/internal/cache"
	"Agora/internal/entity"
	"Agora/internal/navigation"
	"Agora/internal/signal"
	"Agora/internal/sse"
)

// Forward publishes a notice on hub for every committed change. The returned func stops forwarding.
func Forward(hub sse.Service, store cache.Store, signals signal.Service, nav *navigation.Tracker) (stop func()) {
	cancels := []func(){
		store.Watch(func(key cache.Key, change cache.Change) {
			hub.Publish(entity.Notice{Kind: entity.NoticeCache, Key: key.String(), Change: string(change)})
		}),
		signals.Watch(func(kind signal.Kind) {
			hub.Publish(entity.Notice{Kind: entity.NoticeSignal, Signal: string(kind)})
		}),
		nav.Watch(func(path string) {
			hub.Publish(entity.Notice{Kind: entity.NoticeNavigate, Path: path})
		}),
	}
	return func() {
		for _, cancel := range cancels {
			cancel()
		}
	}
}
