package dto

import "time"

// RunReport summarizes one dispatch run
type RunReport struct {
	RunId             string    `json:"runId"`
	StartedAt         time.Time `json:"startedAt"`
	FinishedAt        time.Time `json:"finishedAt"`
	Dates             []string  `json:"dates"`
	DirectSent        int       `json:"directSent"`
	PeerSent          int       `json:"peerSent"`
	HodSent           int       `json:"hodSent"`
	RetriedSent       int       `json:"retriedSent"`
	Queued            int       `json:"queued"`
	Skipped           int       `json:"skipped"`
	Invalid           int       `json:"invalid"`
	PermanentFailures int       `json:"permanentFailures"`
	Aborted           bool      `json:"aborted"`
	Error             string    `json:"error,omitempty"`
}

type QueuedMessage struct {
	Id             uint64    `json:"id"`
	RecipientPhone string    `json:"recipientPhone"`
	SubjectName    string    `json:"subjectName"`
	PersonType     string    `json:"personType"`
	Kind           string    `json:"kind"`
	Occurrence     string    `json:"occurrence"`
	RetryCount     int       `json:"retryCount"`
	LastError      string    `json:"lastError,omitempty"`
	EnqueuedAt     time.Time `json:"enqueuedAt"`
	NextAttemptAt  time.Time `json:"nextAttemptAt"`
}

const (
	PERMANENT_FAILURE = "PERMANENT_FAILURE"
	PERMISSION_DENIED = "PERMISSION_DENIED"
)

// Failure is posted to the failure web hook
type Failure struct {
	Type           string    `json:"type"`
	RecipientPhone string    `json:"recipientPhone,omitempty"`
	SubjectName    string    `json:"subjectName,omitempty"`
	Kind           string    `json:"kind,omitempty"`
	RetryCount     int       `json:"retryCount,omitempty"`
	Error          string    `json:"error"`
	At             time.Time `json:"at"`
}
