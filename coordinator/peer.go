package coordinator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lcpu-club/hpccontainer/container/models"
	"golang.org/x/sys/unix"
)

// ProcessSnapshot is one entry of the process table at the instant it was
// read. It must not be kept across scans.
type ProcessSnapshot struct {
	PID         int
	CommandLine []string
}

type PeerClass int

const (
	NotAPeer PeerClass = iota
	PeerSameJob
	PeerOlderJob
	PeerNewerJob
)

func (c PeerClass) String() string {
	switch c {
	case NotAPeer:
		return "not-a-peer"
	case PeerSameJob:
		return "same-job"
	case PeerOlderJob:
		return "older-job"
	case PeerNewerJob:
		return "newer-job"
	}
	return "PeerClass(" + strconv.Itoa(int(c)) + ")"
}

// DecodeJobID extracts the job id from the command line of a container.
// Tagged records are read by tag; anything else is taken as the positional
// form with the job id at a fixed index.
func DecodeJobID(tokens []string) (string, bool) {
	if len(tokens) > 1 && strings.HasPrefix(tokens[1], models.RecordTag) {
		if strings.TrimPrefix(tokens[1], models.RecordTag) != models.RecordV1 {
			return "", false
		}
		for _, token := range tokens[2:] {
			if token == models.EndOfRecordTag {
				break
			}
			if id, ok := strings.CutPrefix(token, models.JobIDTag); ok {
				return id, true
			}
		}
		return "", false
	}
	if len(tokens) <= models.JobIDIndex {
		return "", false
	}
	return tokens[models.JobIDIndex], true
}

// Classify tells how the process with the given command line relates to a
// container running jobID. Job ids are ordered bytewise.
func Classify(tokens []string, binaryName string, jobID string) PeerClass {
	if !isContainer(tokens, binaryName) {
		return NotAPeer
	}
	peerJobID, ok := DecodeJobID(tokens)
	if !ok {
		return NotAPeer
	}
	switch strings.Compare(peerJobID, jobID) {
	case 0:
		return PeerSameJob
	case -1:
		return PeerOlderJob
	default:
		return PeerNewerJob
	}
}

func isContainer(tokens []string, binaryName string) bool {
	return len(tokens) > 0 && tokens[0] != "" && strings.HasSuffix(tokens[0], binaryName)
}

// ParseSignal accepts "SIGKILL", "KILL", "kill" or "9".
func ParseSignal(name string) (unix.Signal, error) {
	if n, err := strconv.Atoi(name); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("%w: %v", ErrUnknownSignal, name)
		}
		return unix.Signal(n), nil
	}
	s := strings.ToUpper(name)
	if !strings.HasPrefix(s, "SIG") {
		s = "SIG" + s
	}
	if sig := unix.SignalNum(s); sig != 0 {
		return sig, nil
	}
	return 0, fmt.Errorf("%w: %v", ErrUnknownSignal, name)
}

// Container is a process recognised as a container by its command line.
type Container struct {
	PID         int
	JobID       string
	CommandLine []string
}

// FindContainers keeps the snapshots whose command line is that of a
// container named binaryName.
func FindContainers(snapshots []ProcessSnapshot, binaryName string) []Container {
	containers := []Container{}
	for _, s := range snapshots {
		if !isContainer(s.CommandLine, binaryName) {
			continue
		}
		jobID, ok := DecodeJobID(s.CommandLine)
		if !ok {
			continue
		}
		containers = append(containers, Container{PID: s.PID, JobID: jobID, CommandLine: s.CommandLine})
	}
	return containers
}
