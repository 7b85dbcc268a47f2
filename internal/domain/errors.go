package domain

import "errors"

var (
	// ErrRoomNotFound is returned when a room code does not resolve to a live room.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomClosed is returned for operations against a room that has been torn down.
	ErrRoomClosed = errors.New("room closed")
	// ErrNameTaken is returned when a joining player's display name collides.
	ErrNameTaken = errors.New("name already taken in room")
	// ErrUnknownPlayer is returned when an answer arrives from an identity the room does not know.
	ErrUnknownPlayer = errors.New("player not found in room")
	// ErrRoundActive is returned when the host pushes a question while one is in flight.
	ErrRoundActive = errors.New("a question is already in progress")
	// ErrNoActiveRound is returned when an answer arrives between questions.
	ErrNoActiveRound = errors.New("no question is in progress")
	// ErrAnswerWindowClosed is returned for answers past the round deadline.
	ErrAnswerWindowClosed = errors.New("answer window closed")
	// ErrAlreadyAnswered rejects a second submission; the first one stands.
	ErrAlreadyAnswered = errors.New("answer already recorded for this question")
	// ErrEmptyQuestion rejects a question with no text.
	ErrEmptyQuestion = errors.New("question text is empty")
	// ErrNotEnoughOptions rejects a question with fewer than two non-empty options.
	ErrNotEnoughOptions = errors.New("question needs at least two non-empty options")
	// ErrCorrectOutOfRange rejects a correct-answer index outside the option list.
	ErrCorrectOutOfRange = errors.New("correct answer index out of range")
	// ErrInvalidTimeLimit rejects a non-positive answer window.
	ErrInvalidTimeLimit = errors.New("time limit must be positive")
	// ErrInvalidOption rejects a chosen option index outside the option list.
	ErrInvalidOption = errors.New("option index out of range")
	// ErrResultsNotFound indicates no archived scoreboard exists for a code.
	ErrResultsNotFound = errors.New("results not found")
)
