package domain

// Job status constants
const (
	JobStatusQueued     = "Queued"
	JobStatusInProgress = "In progress"
	JobStatusFinished   = "Finished"
	JobStatusError      = "Error"
)

// Job type constants
const (
	JobTypeBytecode = "bytecode"
)

// Account type constants
const (
	AccountTypeStandard  = "standard"
	AccountTypeUnlimited = "unlimited"
)

// Rate limit window names
const (
	WindowFiveMin = "fiveMin"
	WindowOneHour = "oneHour"
	WindowOneDay  = "oneDay"
)

// WindowNames lists the rate limit windows in evaluation order
var WindowNames = []string{WindowFiveMin, WindowOneHour, WindowOneDay}

// IsTerminalStatus reports whether a job has left the Queued/In progress states
func IsTerminalStatus(status string) bool {
	return status == JobStatusFinished || status == JobStatusError
}
