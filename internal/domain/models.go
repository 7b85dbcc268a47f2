package domain

import "time"

// Standing is one row of a room's cumulative score table.
type Standing struct {
	Username string `json:"username"`
	Score    int    `json:"score"`
}

// RoundStanding is one row of a single round's leaderboard: the points the
// answer earned plus the player's running total after the round.
type RoundStanding struct {
	Username string `json:"username"`
	Points   int    `json:"points"`
	Total    int    `json:"total"`
}

// Scoreboard is the archived outcome of a finished room. SessionID stays
// unique across archives even when a room code is reallocated later.
type Scoreboard struct {
	SessionID      string     `json:"sessionId"`
	RoomCode       string     `json:"roomCode"`
	Standings      []Standing `json:"standings"`
	QuestionsAsked int        `json:"questionsAsked"`
	CreatedAt      time.Time  `json:"createdAt"`
	ClosedAt       time.Time  `json:"closedAt"`
}

// RoomStatus is the lookup view served before a player attempts to connect.
type RoomStatus struct {
	RoomCode string `json:"roomCode"`
	Players  int    `json:"players"`
}
