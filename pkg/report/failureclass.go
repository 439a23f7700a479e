package report

// FailureClass names the failure-class suffix appended to a reproducer
// zip's filename, derived solely from the analyzer's exit code, per
// spec.md §4.6 step 8.
type FailureClass string

// Failure classes.
const (
	ClassSuccess      FailureClass = ""
	ClassCompileError FailureClass = "_compile_error"
	ClassCrash        FailureClass = "_crash"
	ClassUnknown      FailureClass = "_unknown"
)

const (
	exitCodeSuccess      = 0
	exitCodeCompileError = 1
	exitCodeCrash        = 254
)

// FailureClassFor implements spec.md §4.6 step 8 exactly: 0 -> success
// (empty), 1 -> compile_error, 254 -> crash, any other non-zero -> unknown.
func FailureClassFor(exitCode int) FailureClass {
	switch exitCode {
	case exitCodeSuccess:
		return ClassSuccess
	case exitCodeCompileError:
		return ClassCompileError
	case exitCodeCrash:
		return ClassCrash
	default:
		return ClassUnknown
	}
}
