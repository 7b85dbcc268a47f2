package domain

// Server-to-client message types. Payloads are flat JSON objects carrying the
// type discriminator inline; clients switch on "type".
const (
	TypeRoomCreated   = "room_created"
	TypePlayerCount   = "player_count"
	TypeAnswerCount   = "answer_count"
	TypeResults       = "results"
	TypePlayerJoined  = "player_joined"
	TypePlayerLeft    = "player_left"
	TypeQuestion      = "question"
	TypeQuestionEnded = "question_ended"
	TypeRoomClosed    = "room_closed"
	TypeHeartbeat     = "heartbeat"
	TypeError         = "error"
)

// Message is implemented by every outbound payload; the dispatcher refuses
// anything whose type is not in the fixed set above.
type Message interface {
	MessageType() string
}

var knownTypes = map[string]struct{}{
	TypeRoomCreated:   {},
	TypePlayerCount:   {},
	TypeAnswerCount:   {},
	TypeResults:       {},
	TypePlayerJoined:  {},
	TypePlayerLeft:    {},
	TypeQuestion:      {},
	TypeQuestionEnded: {},
	TypeRoomClosed:    {},
	TypeHeartbeat:     {},
	TypeError:         {},
}

// KnownType reports whether t belongs to the outbound protocol.
func KnownType(t string) bool {
	_, ok := knownTypes[t]
	return ok
}

// RoomCreated confirms room creation to the host, carrying the join code.
type RoomCreated struct {
	Type     string `json:"type"`
	RoomCode string `json:"room_code"`
}

func NewRoomCreated(code string) RoomCreated {
	return RoomCreated{Type: TypeRoomCreated, RoomCode: code}
}

func (RoomCreated) MessageType() string { return TypeRoomCreated }

// PlayerCount tells the host how many players are connected.
type PlayerCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

func NewPlayerCount(count int) PlayerCount {
	return PlayerCount{Type: TypePlayerCount, Count: count}
}

func (PlayerCount) MessageType() string { return TypePlayerCount }

// AnswerCount tells the host how many answers the active round has collected.
type AnswerCount struct {
	Type     string `json:"type"`
	Answered int    `json:"answered"`
}

func NewAnswerCount(answered int) AnswerCount {
	return AnswerCount{Type: TypeAnswerCount, Answered: answered}
}

func (AnswerCount) MessageType() string { return TypeAnswerCount }

// Results is the host's view of a closed round.
type Results struct {
	Type           string          `json:"type"`
	Top5           []RoundStanding `json:"top_5"`
	CorrectAnswers int             `json:"correct_answers"`
	TotalAnswers   int             `json:"total_answers"`
}

func NewResults(top []RoundStanding, correct, total int) Results {
	return Results{Type: TypeResults, Top5: top, CorrectAnswers: correct, TotalAnswers: total}
}

func (Results) MessageType() string { return TypeResults }

// PlayerJoined announces a new player to the rest of the room.
type PlayerJoined struct {
	Type     string `json:"type"`
	Username string `json:"username"`
}

func NewPlayerJoined(username string) PlayerJoined {
	return PlayerJoined{Type: TypePlayerJoined, Username: username}
}

func (PlayerJoined) MessageType() string { return TypePlayerJoined }

// PlayerLeft announces a departure to the remaining players.
type PlayerLeft struct {
	Type     string `json:"type"`
	Username string `json:"username"`
}

func NewPlayerLeft(username string) PlayerLeft {
	return PlayerLeft{Type: TypePlayerLeft, Username: username}
}

func (PlayerLeft) MessageType() string { return TypePlayerLeft }

// Question broadcasts a new round to players. The correct index is never sent
// while the round is open.
type Question struct {
	Type              string   `json:"type"`
	Question          string   `json:"question"`
	Options           []string `json:"options"`
	TimeLimit         int      `json:"time_limit"`
	QuestionStartTime int64    `json:"question_start_time"`
}

func NewQuestion(text string, options []string, timeLimit int, startedAtUnixMs int64) Question {
	return Question{
		Type:              TypeQuestion,
		Question:          text,
		Options:           options,
		TimeLimit:         timeLimit,
		QuestionStartTime: startedAtUnixMs,
	}
}

func (Question) MessageType() string { return TypeQuestion }

// QuestionEnded reveals the correct option to players once the round closes.
type QuestionEnded struct {
	Type          string `json:"type"`
	CorrectAnswer int    `json:"correct_answer"`
}

func NewQuestionEnded(correct int) QuestionEnded {
	return QuestionEnded{Type: TypeQuestionEnded, CorrectAnswer: correct}
}

func (QuestionEnded) MessageType() string { return TypeQuestionEnded }

// RoomClosed is the terminal message a player sees before the socket drops.
type RoomClosed struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

func NewRoomClosed(reason string) RoomClosed {
	return RoomClosed{Type: TypeRoomClosed, Reason: reason}
}

func (RoomClosed) MessageType() string { return TypeRoomClosed }

// Heartbeat is the periodic liveness signal.
type Heartbeat struct {
	Type string `json:"type"`
}

func NewHeartbeat() Heartbeat {
	return Heartbeat{Type: TypeHeartbeat}
}

func (Heartbeat) MessageType() string { return TypeHeartbeat }

// ErrorMessage is the targeted error reply; the connection stays open.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewError(message string) ErrorMessage {
	return ErrorMessage{Type: TypeError, Message: message}
}

func (ErrorMessage) MessageType() string { return TypeError }
