package models

// Unlimited disables a resource limit.
const Unlimited int64 = -1

// Invocation is the decoded command line of one container.
type Invocation struct {
	MaxVirtualMemoryGB      int64    `json:"max-virtual-memory-gb"`
	MaxCPUSeconds           int64    `json:"max-cpu-seconds"`
	MaxConcurrentContainers int      `json:"max-concurrent-containers"`
	JobID                   string   `json:"job-id"`
	ProgramPath             string   `json:"program-path"`
	ProgramArgs             []string `json:"program-args"`
}

// Argv is the argument vector of the supervised program. The program path
// is argument 0.
func (inv *Invocation) Argv() []string {
	argv := make([]string, 0, len(inv.ProgramArgs)+1)
	argv = append(argv, inv.ProgramPath)
	return append(argv, inv.ProgramArgs...)
}
