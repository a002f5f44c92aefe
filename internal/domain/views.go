package domain

import "time"

// SessionView is what a participant receives when an attempt starts.
type SessionView struct {
	AttemptID        string         `json:"attemptId"`
	AssessmentID     string         `json:"assessmentId"`
	Title            string         `json:"title"`
	TotalItems       int            `json:"totalItems"`
	DurationSeconds  int            `json:"durationSeconds"`
	RemainingSeconds int            `json:"remainingSeconds"`
	Current          *PresentedItem `json:"current,omitempty"`
}

// AnswerOutcome tells the participant where the session went after an answer.
// Correctness is deliberately absent.
type AnswerOutcome struct {
	ItemID    string            `json:"itemId"`
	Next      *PresentedItem    `json:"next,omitempty"`
	Finalized *FinalizedAttempt `json:"finalized,omitempty"`
}

// ParticipantResult is the read-only result view of a participant's own attempt.
type ParticipantResult struct {
	AssessmentID string     `json:"assessmentId"`
	Title        string     `json:"title"`
	AttemptID    string     `json:"attemptId"`
	Score        int        `json:"score"`
	CorrectCount int        `json:"correctCount"`
	TotalItems   int        `json:"totalItems"`
	StartedAt    time.Time  `json:"startedAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

// AttemptRow is one line of the authority's attempts table. An incomplete row that is not
// live was abandoned.
type AttemptRow struct {
	AttemptID     string     `json:"attemptId"`
	ParticipantID string     `json:"participantId"`
	Score         int        `json:"score"`
	CorrectCount  int        `json:"correctCount"`
	TotalItems    int        `json:"totalItems"`
	StartedAt     time.Time  `json:"startedAt"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	Completed     bool       `json:"completed"`
	Live          bool       `json:"live"`
}

// AuthorityOverview aggregates attempts of one assessment. Statistics cover completed attempts only.
type AuthorityOverview struct {
	Assessment Assessment   `json:"assessment"`
	Attempts   []AttemptRow `json:"attempts"`
	Completed  int          `json:"completed"`
	Average    float64      `json:"average"`
	Highest    int          `json:"highest"`
	Lowest     int          `json:"lowest"`
}

// AssessmentCard is a dashboard entry.
type AssessmentCard struct {
	Assessment   Assessment `json:"assessment"`
	Attempted    bool       `json:"attempted,omitempty"`
	AttemptCount int        `json:"attemptCount,omitempty"`
}
