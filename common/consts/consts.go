package consts

const (
	ConfigureEnvVar       = "HPC_CONTAINER_CONFIG"
	ConfigureFilePath     = "/etc/hpc-container.yml"
	DefaultBinaryName     = "hpc-container"
	DefaultProcPath       = "/proc"
	DefaultLockFilePath   = "/tmp/hpc-container.lock"
	DefaultCgroupBasePath = "/hpc-container"
)

// The child of a container starts as a copy of the container executable,
// named InitProcessName so that peer scans do not count it, and turns into
// the program once its limits are set.
const (
	InitEnvVar      = "HPC_CONTAINER_INIT"
	InitProcessName = "hpc-container-init"
	InitExecutable  = "/proc/self/exe"
)

const (
	RunReportFileSuffix = "run-report.json"
	RunReportMIMEType   = "application/json"
)

// ExitInternalFailure is the exit status for every failure of the container
// itself, as opposed to a status produced by the supervised program.
const ExitInternalFailure = 2
