package analyzer

// Severity classifies how dangerous a finding is.
type Severity int

const (
	// Safe indicates nothing concerning was detected.
	Safe Severity = iota
	// Notice indicates a pattern worth reviewing; does not block apply.
	Notice
	// Blocking indicates a destructive or lock-heavy operation; apply
	// refuses to run it without an explicit force.
	Blocking
)

// String returns the uppercase label for the severity level.
func (s Severity) String() string {
	switch s {
	case Safe:
		return "SAFE"
	case Notice:
		return "NOTICE"
	case Blocking:
		return "BLOCKING"
	default:
		return "UNKNOWN"
	}
}
