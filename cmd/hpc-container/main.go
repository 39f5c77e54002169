package main

import (
	"context"
	"os"

	"github.com/lcpu-club/hpccontainer/common/consts"
	"github.com/lcpu-club/hpccontainer/common/logging"
	"github.com/lcpu-club/hpccontainer/container"
	"github.com/lcpu-club/hpccontainer/container/configure"
)

// The command line is positional and read as is: other containers find the
// job id of this one by its position.
func main() {
	if container.IsInitProcess() {
		container.InitMain()
	}
	logger, _ := logging.NewLogger(os.Stdout, os.Stderr, "")
	conf, err := configure.Resolve()
	if err != nil {
		logger.Errorf("Could not load configure: %v", err)
		os.Exit(consts.ExitInternalFailure)
	}
	logger, err = logging.NewLogger(os.Stdout, os.Stderr, conf.LogLevel)
	if err != nil {
		logger.Warnf("Invalid log level %v: %v", conf.LogLevel, err)
	}
	status, err := container.Main(context.Background(), logger, conf, os.Args)
	if err != nil {
		logger.Error(err)
	}
	os.Exit(status)
}
