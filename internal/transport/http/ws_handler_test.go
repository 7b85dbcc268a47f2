package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"quizzler-live/internal/app"
	"quizzler-live/internal/domain"
	"quizzler-live/internal/infra/memory"
)

func newTestServer(t *testing.T) (*httptest.Server, *app.Directory) {
	t.Helper()
	return newTestServerWithTimeouts(t, 30*time.Second, 60*time.Second)
}

func newTestServerWithTimeouts(t *testing.T, heartbeat, clientTimeout time.Duration) (*httptest.Server, *app.Directory) {
	t.Helper()
	store := memory.NewResultsStore()
	directory := app.NewDirectory(app.Settings{BasePoints: 1000, MinPoints: 100}, nil, store)
	handler := NewHandler(directory, store, heartbeat, clientTimeout)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/host", handler.ServeHost)
	mux.HandleFunc("/ws/play", handler.ServePlay)
	mux.HandleFunc("GET /api/rooms/{code}", handler.RoomStatus)
	mux.HandleFunc("GET /api/rooms/{code}/results", handler.RoomResults)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, directory
}

func wsURL(server *httptest.Server, path string) string {
	return "ws" + server.URL[len("http"):] + path
}

func dial(t *testing.T, server *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, path), nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg map[string]any
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	typ, _ := msg["type"].(string)
	if expect != "" && typ != expect {
		t.Fatalf("expected type %s, got %s (%v)", expect, typ, msg)
	}
	return msg
}

// readUntil discards messages until one of the wanted type arrives.
func readUntil(conn *websocket.Conn, t *testing.T, wanted string) map[string]any {
	t.Helper()
	for i := 0; i < 10; i++ {
		msg := readNext(conn, t, "")
		if msg["type"] == wanted {
			return msg
		}
	}
	t.Fatalf("never received %s", wanted)
	return nil
}

func TestHostAndPlayersFullGame(t *testing.T) {
	server, _ := newTestServer(t)

	host := dial(t, server, "/ws/host?name=Host")
	created := readNext(host, t, domain.TypeRoomCreated)
	code, _ := created["room_code"].(string)
	if len(code) != 8 || code != strings.ToUpper(code) {
		t.Fatalf("malformed room code %q", code)
	}

	// The lookup endpoint confirms room existence before joining.
	resp, err := http.Get(server.URL + "/api/rooms/" + code)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("lookup status %d", resp.StatusCode)
	}
	resp, err = http.Get(server.URL + "/api/rooms/ZZZZ9999")
	if err != nil {
		t.Fatalf("lookup unknown: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown code, got %d", resp.StatusCode)
	}

	alice := dial(t, server, "/ws/play?code="+code+"&name=Alice")
	if msg := readNext(host, t, domain.TypePlayerCount); msg["count"].(float64) != 1 {
		t.Fatalf("expected player_count 1, got %v", msg)
	}
	bob := dial(t, server, "/ws/play?code="+code+"&name=Bob")
	if msg := readNext(host, t, domain.TypePlayerCount); msg["count"].(float64) != 2 {
		t.Fatalf("expected player_count 2, got %v", msg)
	}
	if msg := readNext(alice, t, domain.TypePlayerJoined); msg["username"] != "Bob" {
		t.Fatalf("expected Alice to see Bob join, got %v", msg)
	}

	question := map[string]any{
		"type":           "new_question",
		"question":       "What is 2 + 2?",
		"options":        []string{"3", "4", "5", "6"},
		"correct_answer": 1,
		"time_limit":     10,
	}
	if err := host.WriteJSON(question); err != nil {
		t.Fatalf("send question: %v", err)
	}
	q := readNext(alice, t, domain.TypeQuestion)
	if q["question"] != "What is 2 + 2?" || int(q["time_limit"].(float64)) != 10 {
		t.Fatalf("unexpected question payload %v", q)
	}
	readNext(bob, t, domain.TypeQuestion)

	if err := alice.WriteJSON(map[string]any{"type": "answer", "option": 1}); err != nil {
		t.Fatalf("alice answer: %v", err)
	}
	if msg := readNext(host, t, domain.TypeAnswerCount); msg["answered"].(float64) != 1 {
		t.Fatalf("expected answer_count 1, got %v", msg)
	}
	if err := bob.WriteJSON(map[string]any{"type": "answer", "option": 0}); err != nil {
		t.Fatalf("bob answer: %v", err)
	}

	results := readUntil(host, t, domain.TypeResults)
	if results["total_answers"].(float64) != 2 || results["correct_answers"].(float64) != 1 {
		t.Fatalf("unexpected results %v", results)
	}
	top := results["top_5"].([]any)
	if len(top) != 2 || top[0].(map[string]any)["username"] != "Alice" {
		t.Fatalf("expected Alice leading, got %v", top)
	}
	if msg := readNext(alice, t, domain.TypeQuestionEnded); msg["correct_answer"].(float64) != 1 {
		t.Fatalf("expected correct_answer 1, got %v", msg)
	}
	readNext(bob, t, domain.TypeQuestionEnded)

	// A second answer for a closed round earns a targeted error, nothing else.
	if err := alice.WriteJSON(map[string]any{"type": "answer", "option": 0}); err != nil {
		t.Fatalf("late answer: %v", err)
	}
	readNext(alice, t, domain.TypeError)

	if err := host.WriteJSON(map[string]any{"type": "close_room"}); err != nil {
		t.Fatalf("close room: %v", err)
	}
	closed := readNext(alice, t, domain.TypeRoomClosed)
	if closed["reason"] != "closed by host" {
		t.Fatalf("unexpected close reason %v", closed)
	}
	readNext(bob, t, domain.TypeRoomClosed)

	// The archived scoreboard is served over REST once the room is gone.
	board := fetchResults(t, server, code)
	if len(board.Standings) != 2 || board.Standings[0].Username != "Alice" {
		t.Fatalf("unexpected archived standings %+v", board.Standings)
	}
	if board.Standings[0].Score <= board.Standings[1].Score {
		t.Fatalf("expected Alice ahead in the archive, got %+v", board.Standings)
	}
}

func TestJoinRejectedWithDistinguishingStatus(t *testing.T) {
	server, _ := newTestServer(t)

	host := dial(t, server, "/ws/host?name=Host")
	created := readNext(host, t, domain.TypeRoomCreated)
	code := created["room_code"].(string)

	_ = dial(t, server, "/ws/play?code="+code+"&name=Alice")
	readNext(host, t, domain.TypePlayerCount)

	// Name collision: socket closes with 4009 before any state changes.
	dup := dial(t, server, "/ws/play?code="+code+"&name=Alice")
	_ = dup.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := dup.ReadMessage(); !websocket.IsCloseError(err, CloseNameTaken) {
		t.Fatalf("expected close %d, got %v", CloseNameTaken, err)
	}

	// Unknown room: 4004.
	ghost := dial(t, server, "/ws/play?code=NOSUCH00&name=Bob")
	_ = ghost.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := ghost.ReadMessage(); !websocket.IsCloseError(err, CloseRoomNotFound) {
		t.Fatalf("expected close %d, got %v", CloseRoomNotFound, err)
	}

	// The rejected join left the player count untouched.
	resp, err := http.Get(server.URL + "/api/rooms/" + code)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	defer resp.Body.Close()
	var status domain.RoomStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Players != 1 {
		t.Fatalf("expected 1 player after rejected join, got %d", status.Players)
	}
}

func TestProtocolErrorsKeepConnectionOpen(t *testing.T) {
	server, _ := newTestServer(t)

	host := dial(t, server, "/ws/host?name=Host")
	created := readNext(host, t, domain.TypeRoomCreated)
	code := created["room_code"].(string)

	if err := host.WriteJSON(map[string]any{"type": "bogus"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	readNext(host, t, domain.TypeError)

	// Starting a round while one is active is a state error, also non-fatal.
	question := map[string]any{
		"type": "new_question", "question": "q", "options": []string{"a", "b"},
		"correct_answer": 0, "time_limit": 30,
	}
	alice := dial(t, server, "/ws/play?code="+code+"&name=Alice")
	readNext(host, t, domain.TypePlayerCount)
	if err := host.WriteJSON(question); err != nil {
		t.Fatalf("send question: %v", err)
	}
	readNext(alice, t, domain.TypeQuestion)
	if err := host.WriteJSON(question); err != nil {
		t.Fatalf("send duplicate question: %v", err)
	}
	msg := readNext(host, t, domain.TypeError)
	if !strings.Contains(msg["message"].(string), "already in progress") {
		t.Fatalf("unexpected error %v", msg)
	}

	// Malformed answer payload: targeted error, socket stays usable.
	if err := alice.WriteJSON(map[string]any{"type": "answer"}); err != nil {
		t.Fatalf("send malformed answer: %v", err)
	}
	readNext(alice, t, domain.TypeError)
	if err := alice.WriteJSON(map[string]any{"type": "answer", "option": 0}); err != nil {
		t.Fatalf("send answer: %v", err)
	}
	readUntil(host, t, domain.TypeResults)
}

func TestHostDisconnectTearsDownRoom(t *testing.T) {
	server, directory := newTestServer(t)

	host := dial(t, server, "/ws/host?name=Host")
	created := readNext(host, t, domain.TypeRoomCreated)
	code := created["room_code"].(string)

	alice := dial(t, server, "/ws/play?code="+code+"&name=Alice")
	readNext(host, t, domain.TypePlayerCount)

	host.Close()

	closed := readNext(alice, t, domain.TypeRoomClosed)
	if closed["reason"] != "host disconnected" {
		t.Fatalf("unexpected reason %v", closed)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := directory.Get(code); !ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("room still registered after host disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSilentPlayerIsPruned(t *testing.T) {
	server, _ := newTestServerWithTimeouts(t, 20*time.Millisecond, 100*time.Millisecond)

	host := dial(t, server, "/ws/host?name=Host")
	created := readNext(host, t, domain.TypeRoomCreated)
	code := created["room_code"].(string)

	mute := dial(t, server, "/ws/play?code="+code+"&name=Mute")
	// Swallow pings so the server never sees a pong from this client.
	mute.SetPingHandler(func(string) error { return nil })
	if msg := readNext(host, t, domain.TypePlayerCount); msg["count"].(float64) != 1 {
		t.Fatalf("expected player_count 1, got %v", msg)
	}

	// The write side keeps signaling liveness while the peer is quiet.
	readUntil(mute, t, domain.TypeHeartbeat)

	// Past the client timeout the server drops the connection and the room
	// records a departure. The host stays: its reads keep answering pings.
	for i := 0; i < 20; i++ {
		msg := readNext(host, t, "")
		if msg["type"] == domain.TypePlayerCount && msg["count"].(float64) == 0 {
			return
		}
	}
	t.Fatalf("silent player was never pruned")
}

func TestSilentHostClosesRoom(t *testing.T) {
	server, directory := newTestServerWithTimeouts(t, 20*time.Millisecond, 100*time.Millisecond)

	host := dial(t, server, "/ws/host?name=Host")
	host.SetPingHandler(func(string) error { return nil })
	created := readNext(host, t, domain.TypeRoomCreated)
	code := created["room_code"].(string)

	alice := dial(t, server, "/ws/play?code="+code+"&name=Alice")
	readNext(host, t, domain.TypePlayerCount)

	// Alice keeps reading (and ponging); the host sends nothing and eats
	// pings, so its read deadline lapses and takes the room down.
	closed := readUntil(alice, t, domain.TypeRoomClosed)
	if closed["reason"] != "host disconnected" {
		t.Fatalf("unexpected close reason %v", closed)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := directory.Get(code); !ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("room still registered after host timed out")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func fetchResults(t *testing.T, server *httptest.Server, code string) domain.Scoreboard {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get(server.URL + "/api/rooms/" + code + "/results")
		if err != nil {
			t.Fatalf("fetch results: %v", err)
		}
		if resp.StatusCode == http.StatusOK {
			defer resp.Body.Close()
			var board domain.Scoreboard
			if err := json.NewDecoder(resp.Body).Decode(&board); err != nil {
				t.Fatalf("decode results: %v", err)
			}
			return board
		}
		resp.Body.Close()
		if time.Now().After(deadline) {
			t.Fatalf("results never became available, last status %d", resp.StatusCode)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
