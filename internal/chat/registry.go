package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

// Join rejection causes. JoinResult.Err holds one of these.
var (
	ErrUnknownRoom  = errors.New("unknown room")
	ErrRoomFull     = errors.New("room full")
	ErrNameOccupied = errors.New("username occupied")
	ErrInvalidName  = errors.New("invalid username")
)

const (
	// DefaultCapacity is the member limit applied to every room.
	DefaultCapacity = 20
	// DefaultReservationTTL bounds how long a checked name stays reserved without a session.
	DefaultReservationTTL = time.Minute
)

// DefaultRooms is the room catalog used when none is configured.
var DefaultRooms = []string{"general", "tech", "gaming", "random"}

// JoinResult reports the outcome of TryJoin.
type JoinResult struct {
	Accepted  bool
	Reason    string
	Occupancy int
	Err       error
}

type room struct {
	name     string
	capacity int
	members  map[string]*Handle

	// fanout serializes broadcasts so every member sees one order per room.
	fanout sync.Mutex
}

type reservation struct {
	reservedAt time.Time
	holder     *Handle // nil until a session joins with the name
}

// Registry holds the fixed room table and the global username set behind a
// single lock, so "room has space" and "name still free" are decided together.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*room
	order []string
	names map[string]*reservation

	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithReservationTTL sets how long an unclaimed reservation survives. Zero disables expiry.
func WithReservationTTL(ttl time.Duration) RegistryOption {
	return func(r *Registry) {
		if ttl >= 0 {
			r.ttl = ttl
		}
	}
}

// withClock replaces time.Now.
func withClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithRegistryLogger sets the logger used for housekeeping messages.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry creates the room table. Rooms are never added or removed afterwards.
func NewRegistry(catalog []string, capacity int, opts ...RegistryOption) *Registry {
	if len(catalog) == 0 {
		catalog = DefaultRooms
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	r := &Registry{
		rooms:  make(map[string]*room, len(catalog)),
		names:  make(map[string]*reservation),
		ttl:    DefaultReservationTTL,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, name := range catalog {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := r.rooms[name]; dup {
			continue
		}
		r.rooms[name] = &room{name: name, capacity: capacity, members: make(map[string]*Handle)}
		r.order = append(r.order, name)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rooms returns the catalog in configuration order.
func (r *Registry) Rooms() []string {
	return append([]string(nil), r.order...)
}

// CheckAndReserve reserves username if nobody holds it.
func (r *Registry) CheckAndReserve(username string) (bool, string) {
	if strings.TrimSpace(username) == "" {
		return false, "Username must not be empty"
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if res, ok := r.names[username]; ok && !r.expired(res) {
		return false, fmt.Sprintf("Username '%s' is already taken", username)
	}
	r.names[username] = &reservation{reservedAt: r.now()}
	return true, "Username is available"
}

// Release drops the reservation for username. Names claimed by a session that
// is still in a room are left alone.
func (r *Registry) Release(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if res, ok := r.names[username]; ok && res.holder == nil {
		delete(r.names, username)
	}
}

// reserved reports whether username is currently reserved or claimed.
func (r *Registry) reserved(username string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.names[username]
	return ok && !r.expired(res)
}

// announceFunc runs under the registry's exclusive lock with the room's
// membership as it stands after a join or leave.
type announceFunc func(room string, members map[string]*Handle)

// TryJoin admits h into h.Room. On success the accepted JoinResponse is queued
// on h before the lock is released, so no broadcast can overtake it.
func (r *Registry) TryJoin(h *Handle) JoinResult {
	return r.join(h, nil)
}

func (r *Registry) join(h *Handle, announce announceFunc) JoinResult {
	if strings.TrimSpace(h.Username) == "" {
		return JoinResult{Reason: "Username must not be empty", Err: ErrInvalidName}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[h.Room]
	if !ok {
		return JoinResult{Reason: fmt.Sprintf("Room '%s' does not exist", h.Room), Err: ErrUnknownRoom}
	}
	if res, held := r.names[h.Username]; held && res.holder != nil {
		return JoinResult{
			Reason:    fmt.Sprintf("Username '%s' is already occupied", h.Username),
			Occupancy: len(rm.members),
			Err:       ErrNameOccupied,
		}
	}
	if len(rm.members) >= rm.capacity {
		return JoinResult{
			Reason:    fmt.Sprintf("Room '%s' is full (%d/%d)", rm.name, rm.capacity, rm.capacity),
			Occupancy: len(rm.members),
			Err:       ErrRoomFull,
		}
	}

	rm.members[h.Username] = h
	r.names[h.Username] = &reservation{reservedAt: r.now(), holder: h}

	occupancy := len(rm.members)
	welcome := fmt.Sprintf("Welcome to room '%s'! Users online: %d", rm.name, occupancy)
	h.deliver(protocol.JoinResponse{Success: true, Message: welcome})
	if announce != nil {
		announce(rm.name, rm.members)
	}

	return JoinResult{Accepted: true, Reason: welcome, Occupancy: occupancy}
}

// Leave removes username from roomName. The name stays reserved until Release.
// Removing an absent member is a no-op.
func (r *Registry) Leave(roomName, username string) (int, bool) {
	return r.leave(roomName, username, nil)
}

func (r *Registry) leave(roomName, username string, announce announceFunc) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomName]
	if !ok {
		return 0, false
	}
	h, ok := rm.members[username]
	if !ok {
		return len(rm.members), false
	}
	delete(rm.members, username)

	if res, held := r.names[username]; held && res.holder == h {
		res.holder = nil
		res.reservedAt = r.now()
	}
	if announce != nil {
		announce(rm.name, rm.members)
	}
	return len(rm.members), true
}

// Snapshot returns the occupancy of every room. The result may be stale as soon
// as it is returned.
func (r *Registry) Snapshot() []protocol.RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]protocol.RoomInfo, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, protocol.RoomInfo{RoomID: name, ParticipantCount: len(r.rooms[name].members)})
	}
	return out
}

// memberNames lists the usernames currently in roomName.
func (r *Registry) memberNames(roomName string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[roomName]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(rm.members))
	for name := range rm.members {
		out = append(out, name)
	}
	return out
}

// ExpireReservations drops unclaimed reservations older than the TTL and
// returns how many were removed.
func (r *Registry) ExpireReservations() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for name, res := range r.names {
		if r.expired(res) {
			delete(r.names, name)
			removed++
		}
	}
	return removed
}

// Run expires stale reservations every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if r.ttl <= 0 {
		return
	}
	if interval <= 0 {
		interval = r.ttl / 2
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.ExpireReservations(); n > 0 {
				r.logger.Info("registry.reservations.expired", "count", n)
			}
		}
	}
}

// fanout runs fn over the members of roomName while holding the read lock and
// the room's dispatch mutex.
func (r *Registry) fanout(roomName string, fn func(members map[string]*Handle)) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[roomName]
	if !ok {
		return false
	}

	rm.fanout.Lock()
	defer rm.fanout.Unlock()

	fn(rm.members)
	return true
}

func (r *Registry) expired(res *reservation) bool {
	return res.holder == nil && r.ttl > 0 && r.now().Sub(res.reservedAt) >= r.ttl
}
