package container

import (
	"math"
	"strconv"
	"strings"

	"github.com/lcpu-club/hpccontainer/container/models"
)

const positionalArgs = 6

// ParseInvocation decodes a full argument vector, args[0] being this program.
// Two shapes are accepted, the positional one
//
//	hpc-container maxVM maxTime maxProcs jobID executable [args...]
//
// and the tagged record
//
//	hpc-container --record=v1 --max-vm=N --max-time=N --max-procs=N --job-id=ID -- executable [args...]
func ParseInvocation(args []string) (*models.Invocation, error) {
	if len(args) > 1 && strings.HasPrefix(args[1], models.RecordTag) {
		return parseRecord(args)
	}
	if len(args) < positionalArgs {
		return nil, ErrUsage
	}
	return buildInvocation(args[1], args[2], args[3], args[4], args[5], args[6:])
}

func parseRecord(args []string) (*models.Invocation, error) {
	if strings.TrimPrefix(args[1], models.RecordTag) != models.RecordV1 {
		return nil, ErrUsage
	}
	values := map[string]string{}
	i := 2
	for ; i < len(args) && args[i] != models.EndOfRecordTag; i++ {
		tag, value, ok := strings.Cut(args[i], "=")
		if !ok {
			return nil, ErrUsage
		}
		tag += "="
		switch tag {
		case models.MaxVMTag, models.MaxTimeTag, models.MaxProcsTag, models.JobIDTag:
		default:
			return nil, ErrUsage
		}
		if _, dup := values[tag]; dup {
			return nil, ErrUsage
		}
		values[tag] = value
	}
	if len(values) != 4 || i+1 >= len(args) {
		return nil, ErrUsage
	}
	return buildInvocation(
		values[models.MaxVMTag],
		values[models.MaxTimeTag],
		values[models.MaxProcsTag],
		values[models.JobIDTag],
		args[i+1],
		args[i+2:],
	)
}

func buildInvocation(maxVM, maxTime, maxProcs, jobID, program string, programArgs []string) (*models.Invocation, error) {
	vm, err := parseLimit("maximum virtual memory size", maxVM, math.MaxInt64>>30)
	if err != nil {
		return nil, err
	}
	cpu, err := parseLimit("maximum CPU time", maxTime, math.MaxInt64)
	if err != nil {
		return nil, err
	}
	procs, err := strconv.Atoi(maxProcs)
	if err != nil || procs < 1 {
		return nil, &InvalidConcurrencyError{Value: maxProcs}
	}
	return &models.Invocation{
		MaxVirtualMemoryGB:      vm,
		MaxCPUSeconds:           cpu,
		MaxConcurrentContainers: procs,
		JobID:                   jobID,
		ProgramPath:             program,
		ProgramArgs:             append([]string{}, programArgs...),
	}, nil
}

func parseLimit(name string, raw string, max int64) (int64, error) {
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v == 0 || v < models.Unlimited || v > max {
		return 0, &InvalidLimitError{Name: name, Value: raw}
	}
	return v, nil
}
