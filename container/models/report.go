package models

import "time"

type RunStatus string

const (
	RunStatusExited RunStatus = "exited"
	RunStatusFailed RunStatus = "failed"
)

// RunReport describes what a container did. It is handed to the configured
// reporters once the container is done.
type RunReport struct {
	JobID          string    `json:"job-id"`
	Host           string    `json:"host"`
	User           string    `json:"user"`
	ContainerPID   int       `json:"container-pid"`
	ChildPID       int       `json:"child-pid,omitempty"`
	Program        string    `json:"program"`
	Args           []string  `json:"args"`
	Status         RunStatus `json:"status"`
	ExitCode       int       `json:"exit-code"`
	Signal         string    `json:"signal,omitempty"`
	Error          string    `json:"error,omitempty"`
	KilledPeers    []int     `json:"killed-peers,omitempty"`
	SameJobRunning int       `json:"same-job-running"`
	StartedAt      time.Time `json:"started-at"`
	FinishedAt     time.Time `json:"finished-at"`
}
