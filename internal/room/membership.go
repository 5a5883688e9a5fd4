// Room membership of mounted screens in Agora.
// Every mounted screen holds a Lease on its room; the first live lease of a room
// joins it and the last released lease leaves it.

package room

import (
	"Agora/internal/channel"
	"Agora/pkg/log"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Lease is one screen's hold on a room. Release it when the screen unmounts.
type Lease struct {
	ID     string `json:"id"`
	Path   string `json:"path"`
	Room   string `json:"room"`
	Joined bool   `json:"joined"`

	manager  *Manager
	released sync.Once
}

// Release gives the room back. Calling it again does nothing.
func (l *Lease) Release() {
	l.released.Do(func() {
		l.manager.release(l)
	})
}

// Manager keeps per-room lease counts on top of a Channel.
type Manager struct {
	ch     channel.Channel
	policy Policy
	logger log.Logger

	mu     sync.Mutex
	counts map[string]int
	leases map[string]*Lease
}

// Returns a new Manager joining and leaving rooms through ch.
func NewManager(ch channel.Channel, policy Policy, logger log.Logger) *Manager {
	return &Manager{
		ch:     ch,
		policy: policy,
		logger: logger,
		counts: make(map[string]int),
		leases: make(map[string]*Lease),
	}
}

// Acquire takes a lease on room for the screen at path.
// Eligibility is checked on every call; a denied screen gets a lease that
// never joined, so releasing it emits nothing.
func (m *Manager) Acquire(path, room string) *Lease {
	if room == "" || !m.policy.Permits(path) {
		m.logger.Debug().Str("path", path).Str("room", room).Msg("Screen not eligible for realtime, room not joined")
		return m.acquire(path, room, false)
	}
	return m.acquire(path, room, true)
}

// Hold takes a lease on room outside of any screen, like the session's personal room.
// The deny policy does not apply.
func (m *Manager) Hold(room string) *Lease {
	return m.acquire("", room, room != "")
}

// acquire and release hold mu across the channel call, so a join can never
// be overtaken by the leave of the lease released just before it.
func (m *Manager) acquire(path, room string, join bool) *Lease {
	lease := &Lease{
		ID:      uuid.NewString(),
		Path:    path,
		Room:    room,
		Joined:  join,
		manager: m,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.leases[lease.ID] = lease
	if !join {
		return lease
	}
	m.counts[room]++
	if m.counts[room] == 1 {
		m.ch.Join(room)
	}
	return lease
}

func (m *Manager) release(lease *Lease) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.leases, lease.ID)
	if !lease.Joined {
		return
	}
	m.counts[lease.Room]--
	if m.counts[lease.Room] <= 0 {
		delete(m.counts, lease.Room)
		m.ch.Leave(lease.Room)
	}
}

// Release releases the live lease with id, reporting whether it existed.
func (m *Manager) Release(id string) bool {
	m.mu.Lock()
	lease, ok := m.leases[id]
	m.mu.Unlock()
	if !ok {
		return false
	}
	lease.Release()
	return true
}

// Leases lists live leases ordered by room then path.
func (m *Manager) Leases() []*Lease {
	m.mu.Lock()
	leases := make([]*Lease, 0, len(m.leases))
	for _, l := range m.leases {
		leases = append(leases, l)
	}
	m.mu.Unlock()
	sort.Slice(leases, func(i, j int) bool {
		if leases[i].Room != leases[j].Room {
			return leases[i].Room < leases[j].Room
		}
		if leases[i].Path != leases[j].Path {
			return leases[i].Path < leases[j].Path
		}
		return leases[i].ID < leases[j].ID
	})
	return leases
}

// Holders returns how many live leases hold room.
func (m *Manager) Holders(room string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[room]
}
