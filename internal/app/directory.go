package app

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"quizzler-live/internal/domain"
)

// Settings carries the tunables of the live engine. The scoring curve and the
// idle teardown policy are deliberately configurable.
type Settings struct {
	// BasePoints is awarded for an instant correct answer.
	BasePoints int
	// MinPoints is the floor for any correct answer, however late.
	MinPoints int
	// IdleTTL closes rooms with no traffic for this long; zero disables the
	// reaper, leaving explicit close (or host disconnect) as the only teardown.
	IdleTTL time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.BasePoints <= 0 {
		s.BasePoints = 1000
	}
	if s.MinPoints <= 0 || s.MinPoints > s.BasePoints {
		s.MinPoints = s.BasePoints / 10
	}
	return s
}

// Liveness marks room codes as live in an external store (in-memory, Redis, etc).
type Liveness interface {
	MarkLive(code string)
	ClearLive(code string)
}

type nopLiveness struct{}

func (nopLiveness) MarkLive(string)  {}
func (nopLiveness) ClearLive(string) {}

// Archiver persists the final scoreboard of a closed room.
type Archiver interface {
	Archive(ctx context.Context, board domain.Scoreboard) error
}

// Directory is the process-wide code→room registry. It is constructed once at
// startup and injected into every connection handler.
type Directory struct {
	settings Settings
	liveness Liveness
	archive  Archiver
	now      func() time.Time

	mu    sync.Mutex
	rooms map[string]*Room
	rnd   *rand.Rand
}

func NewDirectory(settings Settings, liveness Liveness, archive Archiver) *Directory {
	return NewDirectoryWithClock(settings, liveness, archive, time.Now)
}

// NewDirectoryWithClock is test-only for deterministic timestamps.
func NewDirectoryWithClock(settings Settings, liveness Liveness, archive Archiver, now func() time.Time) *Directory {
	if liveness == nil {
		liveness = nopLiveness{}
	}
	return &Directory{
		settings: settings.withDefaults(),
		liveness: liveness,
		archive:  archive,
		now:      now,
		rooms:    make(map[string]*Room),
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// CreateRoom allocates a fresh room code, registers a room owned by hostName
// and returns it with the host's outbound message stream. The first message on
// the stream is the room_created confirmation.
func (d *Directory) CreateRoom(hostName string) (*Room, <-chan domain.Message, error) {
	d.mu.Lock()
	code, err := d.newCodeLocked()
	if err != nil {
		d.mu.Unlock()
		return nil, nil, err
	}
	host := newParticipant(hostName)
	room := newRoom(code, host, d.settings, d.now, func(board domain.Scoreboard) {
		d.drop(code, board)
	})
	room.announceCreated()
	d.rooms[code] = room
	d.mu.Unlock()

	d.liveness.MarkLive(code)
	log.Printf("room %s created by %s (%s)", code, host.name, host.id)
	return room, host.outbox, nil
}

// Get resolves a room code; used for join validation and message routing.
func (d *Directory) Get(code string) (*Room, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	room, ok := d.rooms[code]
	return room, ok
}

// Status is the lightweight lookup serving the pre-join existence check.
func (d *Directory) Status(code string) (domain.RoomStatus, error) {
	room, ok := d.Get(code)
	if !ok {
		return domain.RoomStatus{}, domain.ErrRoomNotFound
	}
	return domain.RoomStatus{RoomCode: code, Players: room.PlayerCount()}, nil
}

// CloseIdle tears down rooms whose last activity is older than the TTL and
// returns how many were closed. No-op when the TTL is zero.
func (d *Directory) CloseIdle() int {
	if d.settings.IdleTTL <= 0 {
		return 0
	}
	cutoff := d.now().Add(-d.settings.IdleTTL)

	d.mu.Lock()
	var stale []*Room
	for _, room := range d.rooms {
		if room.lastActivity().Before(cutoff) {
			stale = append(stale, room)
		}
	}
	d.mu.Unlock()

	// Close outside the directory lock; teardown re-enters via drop.
	for _, room := range stale {
		room.Close("room idle")
	}
	return len(stale)
}

func (d *Directory) drop(code string, board domain.Scoreboard) {
	d.mu.Lock()
	delete(d.rooms, code)
	d.mu.Unlock()

	d.liveness.ClearLive(code)
	if d.archive != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.archive.Archive(ctx, board); err != nil {
			log.Printf("archive room %s: %v", code, err)
		}
	}
	log.Printf("room %s closed after %d questions", code, board.QuestionsAsked)
}

func (d *Directory) newCodeLocked() (string, error) {
	for attempt := 0; attempt < 64; attempt++ {
		code := randomCode(d.rnd)
		if _, taken := d.rooms[code]; !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not allocate a free room code")
}
