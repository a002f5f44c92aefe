package domain

import "time"

// Assessment is the catalog metadata of a timed, multiple-choice assessment.
type Assessment struct {
	ID              string    `json:"id" yaml:"id"`
	Title           string    `json:"title" yaml:"title"`
	Description     string    `json:"description,omitempty" yaml:"description"`
	DurationMinutes int       `json:"durationMinutes" yaml:"durationMinutes"`
	ItemCount       int       `json:"itemCount" yaml:"itemCount"`
	Archived        bool      `json:"archived" yaml:"archived"`
	CreatedBy       string    `json:"createdBy,omitempty" yaml:"createdBy"`
	CreatedAt       time.Time `json:"createdAt" yaml:"createdAt"`
}

// DurationSeconds is the full time budget of one attempt.
func (a Assessment) DurationSeconds() int {
	return a.DurationMinutes * 60
}

// Item is a single multiple-choice question. CorrectOption indexes Options.
type Item struct {
	ID            string    `json:"id" yaml:"id"`
	AssessmentID  string    `json:"assessmentId" yaml:"assessmentId"`
	Prompt        string    `json:"prompt" yaml:"prompt"`
	Options       []string  `json:"options" yaml:"options"`
	CorrectOption int       `json:"correctOption" yaml:"correctOption"`
	Hint          string    `json:"hint,omitempty" yaml:"hint"`
	Difficulty    string    `json:"difficulty,omitempty" yaml:"difficulty"`
	Topic         string    `json:"topic,omitempty" yaml:"topic"`
	CreatedAt     time.Time `json:"createdAt" yaml:"createdAt"`
}

// Present strips everything a participant must not see before grading.
func (i Item) Present(position int) PresentedItem {
	options := make([]string, len(i.Options))
	copy(options, i.Options)
	return PresentedItem{
		ID:       i.ID,
		Position: position,
		Prompt:   i.Prompt,
		Options:  options,
	}
}

// PresentedItem is the participant-facing view of an Item.
type PresentedItem struct {
	ID       string   `json:"id"`
	Position int      `json:"position"`
	Prompt   string   `json:"prompt"`
	Options  []string `json:"options"`
}

// Attempt is the single timed attempt of a participant at an assessment.
type Attempt struct {
	ID            string     `json:"id"`
	AssessmentID  string     `json:"assessmentId"`
	ParticipantID string     `json:"participantId"`
	StartedAt     time.Time  `json:"startedAt"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	TotalItems    int        `json:"totalItems"`
	CorrectCount  int        `json:"correctCount"`
	Score         int        `json:"score"`
}

// Completed reports whether the attempt has been finalized.
func (a Attempt) Completed() bool {
	return a.CompletedAt != nil
}

// Response is the recorded answer to one item of an attempt.
type Response struct {
	AttemptID        string `json:"attemptId"`
	ItemID           string `json:"itemId"`
	SelectedOption   int    `json:"selectedOption"`
	IsCorrect        bool   `json:"isCorrect"`
	TimeTakenSeconds int    `json:"timeTakenSeconds"`
}

// FinalizeTrigger names what caused an attempt to be graded.
type FinalizeTrigger string

const (
	TriggerSubmit FinalizeTrigger = "submit"
	TriggerExpiry FinalizeTrigger = "expiry"
)

// FinalizedAttempt is the outcome of grading.
type FinalizedAttempt struct {
	Attempt   Attempt         `json:"attempt"`
	Trigger   FinalizeTrigger `json:"trigger"`
	Responses int             `json:"responses"`
}

// Role is the closed set of viewer kinds.
type Role string

const (
	RoleParticipant Role = "participant"
	RoleAuthority   Role = "authority"
)

// ParseRole validates a raw role string.
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleParticipant, RoleAuthority:
		return Role(raw), nil
	}
	return "", ErrUnknownRole
}

// Viewer is an already-authenticated caller.
type Viewer struct {
	ID   string
	Role Role
}
