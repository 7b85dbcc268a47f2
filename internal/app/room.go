package app

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"quizzler-live/internal/domain"
)

const outboxSize = 16

// participant is one connected party, host or player. Its outbox is drained by
// the transport's writer goroutine; the room is the only sender and closes the
// channel on teardown.
type participant struct {
	id     string
	name   string
	score  int
	outbox chan domain.Message
}

func newParticipant(name string) *participant {
	return &participant{
		id:     uuid.NewString(),
		name:   name,
		outbox: make(chan domain.Message, outboxSize),
	}
}

// push delivers best-effort: a slow consumer loses its oldest queued message
// rather than blocking the room. Callers hold the room lock, so there is never
// more than one sender.
func (p *participant) push(msg domain.Message) {
	if !domain.KnownType(msg.MessageType()) {
		log.Printf("dropping message with unknown type %q", msg.MessageType())
		return
	}
	select {
	case p.outbox <- msg:
	default:
		select {
		case <-p.outbox:
		default:
		}
		p.outbox <- msg
	}
}

// Room is one live quiz session: a host, a dynamic set of players, a running
// score table and at most one active round.
type Room struct {
	code     string
	settings Settings
	now      func() time.Time
	onClose  func(domain.Scoreboard)

	mu         sync.Mutex
	host       *participant
	players    map[string]*participant
	former     map[string]int // scores of departed players; names stay reserved for them
	round      *round
	asked      int
	createdAt  time.Time
	lastActive time.Time
	closed     bool
}

func newRoom(code string, host *participant, settings Settings, now func() time.Time, onClose func(domain.Scoreboard)) *Room {
	created := now()
	return &Room{
		code:       code,
		settings:   settings,
		now:        now,
		onClose:    onClose,
		host:       host,
		players:    make(map[string]*participant),
		former:     make(map[string]int),
		createdAt:  created,
		lastActive: created,
	}
}

func (r *Room) Code() string { return r.code }

// announceCreated queues the room_created confirmation for the host. Called
// once by the directory, before the room is published under its code.
func (r *Room) announceCreated() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.host.push(domain.NewRoomCreated(r.code))
}

func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// Join admits a player under a display name unique within the room. A name a
// departed player held is reserved for them: rejoining restores their score.
func (r *Room) Join(name string) (<-chan domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, domain.ErrRoomClosed
	}
	if _, taken := r.players[name]; taken || name == r.host.name {
		return nil, domain.ErrNameTaken
	}

	p := newParticipant(name)
	if score, rejoined := r.former[name]; rejoined {
		p.score = score
		delete(r.former, name)
	}

	for _, other := range r.players {
		other.push(domain.NewPlayerJoined(name))
	}
	r.players[name] = p
	r.host.push(domain.NewPlayerCount(len(r.players)))
	r.touchLocked()
	log.Printf("player %s (%s) joined room %s", name, p.id, r.code)
	return p.outbox, nil
}

// Leave removes a player; remaining participants are notified and an in-flight
// round keeps running with its original deadline.
func (r *Room) Leave(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	p, ok := r.players[name]
	if !ok {
		return
	}
	delete(r.players, name)
	r.former[name] = p.score
	close(p.outbox)

	for _, other := range r.players {
		other.push(domain.NewPlayerLeft(name))
	}
	r.host.push(domain.NewPlayerCount(len(r.players)))
	r.touchLocked()
	// A departure can leave every remaining player already answered.
	r.maybeCloseRoundLocked()
}

// StartRound opens a new answer window. Rejected while a round is active or
// when the question is malformed; on rejection nothing changes.
func (r *Room) StartRound(text string, options []string, correctIdx, timeLimitSeconds int) error {
	return r.startRound(text, options, correctIdx, time.Duration(timeLimitSeconds)*time.Second)
}

func (r *Room) startRound(text string, options []string, correctIdx int, limit time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return domain.ErrRoomClosed
	}
	if r.round != nil {
		return domain.ErrRoundActive
	}
	if err := validateQuestion(text, options, correctIdx, limit); err != nil {
		return err
	}

	rd := &round{
		question:  text,
		options:   options,
		correct:   correctIdx,
		limit:     limit,
		startedAt: r.now(),
		answers:   make(map[string]*answer),
	}
	r.round = rd
	r.asked++
	rd.timer = time.AfterFunc(limit, func() { r.deadline(rd) })

	msg := domain.NewQuestion(text, options, int(limit/time.Second), rd.startedAt.UnixMilli())
	for _, p := range r.players {
		p.push(msg)
	}
	r.touchLocked()
	return nil
}

// SubmitAnswer records a player's choice. First submission wins; late, duplicate
// and out-of-band submissions are rejected without touching state.
func (r *Room) SubmitAnswer(name string, option int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return domain.ErrRoomClosed
	}
	p, ok := r.players[name]
	if !ok {
		return domain.ErrUnknownPlayer
	}
	rd := r.round
	if rd == nil || rd.closed {
		return domain.ErrNoActiveRound
	}
	elapsed := r.now().Sub(rd.startedAt)
	if elapsed >= rd.limit {
		return domain.ErrAnswerWindowClosed
	}
	if _, dup := rd.answers[name]; dup {
		return domain.ErrAlreadyAnswered
	}
	if option < 0 || option >= len(rd.options) {
		return domain.ErrInvalidOption
	}

	correct := option == rd.correct
	points := 0
	if correct {
		points = awardPoints(r.settings.BasePoints, r.settings.MinPoints, elapsed, rd.limit)
	}
	rd.answers[name] = &answer{option: option, elapsed: elapsed, correct: correct, points: points}
	p.score += points

	r.host.push(domain.NewAnswerCount(len(rd.answers)))
	r.touchLocked()
	r.maybeCloseRoundLocked()
	return nil
}

// NotifyHostError sends a targeted error reply to the host connection.
func (r *Room) NotifyHostError(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.host.push(domain.NewError(message))
}

// NotifyPlayerError sends a targeted error reply to one player connection.
func (r *Room) NotifyPlayerError(name, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if p, ok := r.players[name]; ok {
		p.push(domain.NewError(message))
	}
}

// Close tears the room down: players get a terminal room_closed, every outbox
// is closed and the final scoreboard is handed to the directory. An in-flight
// round is cancelled with no results. Idempotent.
func (r *Room) Close(reason string) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	if r.round != nil {
		r.round.closed = true
		r.round.timer.Stop()
		r.round = nil
	}
	for _, p := range r.players {
		p.push(domain.NewRoomClosed(reason))
		close(p.outbox)
	}
	close(r.host.outbox)
	board := r.scoreboardLocked()
	onClose := r.onClose
	r.mu.Unlock()

	if onClose != nil {
		onClose(board)
	}
}

// HostLost handles the owning connection dropping: the room dies with it.
func (r *Room) HostLost() {
	r.Close("host disconnected")
}

// deadline is the round timer callback. It re-validates that the round it was
// armed for is still the current one, so a stale fire never touches a newer
// round's state.
func (r *Room) deadline(rd *round) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.round != rd || rd.closed {
		return
	}
	r.closeRoundLocked("deadline")
}

// maybeCloseRoundLocked fires the all-answered transition. Only meaningful
// while at least one player is connected; an empty room waits for the deadline.
func (r *Room) maybeCloseRoundLocked() {
	rd := r.round
	if rd == nil || rd.closed || len(r.players) == 0 {
		return
	}
	for name := range r.players {
		if _, answered := rd.answers[name]; !answered {
			return
		}
	}
	r.closeRoundLocked("all answered")
}

// closeRoundLocked ends the answer window exactly once: results go out after
// scores are final and before the round slot is cleared for the next question.
func (r *Room) closeRoundLocked(trigger string) {
	rd := r.round
	if rd == nil || rd.closed {
		return
	}
	rd.closed = true
	rd.timer.Stop()

	top, correctCount := roundLeaderboard(rd, r.players, r.former)
	r.host.push(domain.NewResults(top, correctCount, len(rd.answers)))
	ended := domain.NewQuestionEnded(rd.correct)
	for _, p := range r.players {
		p.push(ended)
	}
	r.round = nil
	r.touchLocked()
	log.Printf("room %s: question closed (%s), %d answers", r.code, trigger, len(rd.answers))
}

func (r *Room) scoreboardLocked() domain.Scoreboard {
	standings := make([]domain.Standing, 0, len(r.players)+len(r.former))
	for _, p := range r.players {
		standings = append(standings, domain.Standing{Username: p.name, Score: p.score})
	}
	for name, score := range r.former {
		standings = append(standings, domain.Standing{Username: name, Score: score})
	}
	sort.Slice(standings, func(i, j int) bool {
		if standings[i].Score != standings[j].Score {
			return standings[i].Score > standings[j].Score
		}
		return standings[i].Username < standings[j].Username
	})
	return domain.Scoreboard{
		SessionID:      r.host.id,
		RoomCode:       r.code,
		Standings:      standings,
		QuestionsAsked: r.asked,
		CreatedAt:      r.createdAt,
		ClosedAt:       r.now(),
	}
}

func (r *Room) touchLocked() {
	r.lastActive = r.now()
}

func (r *Room) lastActivity() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastActive
}
