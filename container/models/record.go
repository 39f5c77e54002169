package models

// Command line conventions shared by the argument parser and by the peer
// decoder that reads other containers' command lines.
const (
	// JobIDIndex is the argv position of the job id in the positional form
	// "hpc-container maxVM maxTime maxProcs jobID executable [args...]".
	JobIDIndex = 4

	RecordTag      = "--record="
	RecordV1       = "v1"
	MaxVMTag       = "--max-vm="
	MaxTimeTag     = "--max-time="
	MaxProcsTag    = "--max-procs="
	JobIDTag       = "--job-id="
	EndOfRecordTag = "--"
)
