package probe

import (
	"fmt"
	"strconv"
)

const (
	ExitArgumentMismatch = 255
	ExitUsage            = 254
)

var ErrUsage = fmt.Errorf("usage: hpc-container-exitprobe argc rv [args...]")

// ExitStatus checks the argument vector of the exit probe, args[0] being
// the probe itself. args[1] declares the length of the whole vector and
// args[2] is the status to exit with.
func ExitStatus(args []string) (int, error) {
	if len(args) < 3 {
		return ExitUsage, ErrUsage
	}
	declared, err := strconv.Atoi(args[1])
	if err != nil {
		return ExitUsage, ErrUsage
	}
	rv, err := strconv.Atoi(args[2])
	if err != nil {
		return ExitUsage, ErrUsage
	}
	if declared != len(args) {
		return ExitArgumentMismatch, fmt.Errorf(
			"invalid argument count %v (specified) != %v (actual)", declared, len(args),
		)
	}
	return rv, nil
}
