// Package strategy compiles and supervises user-submitted decision programs.
//
// Each prepared strategy is one long-lived subprocess speaking a line
// protocol: the engine writes one JSON turn state per line, the process
// answers with exactly one action token. Per-turn deadlines, crashes and
// garbage output all resolve to STAY with an attached error descriptor; the
// match itself keeps running.
package strategy

import (
	"fmt"
	"strings"
)

// Language is the closed set of supported strategy languages. Dispatch is by
// enumeration value only.
type Language int

const (
	Python Language = iota
	JavaScript
	C
	CPP
)

// ParseLanguage resolves the wire names used by submissions.
func ParseLanguage(name string) (Language, error) {
	switch strings.ToLower(name) {
	case "", "python":
		return Python, nil
	case "javascript", "js", "node", "nodejs":
		return JavaScript, nil
	case "c":
		return C, nil
	case "cpp", "c++":
		return CPP, nil
	}
	return Python, fmt.Errorf("unsupported language %q", name)
}

func (l Language) String() string {
	switch l {
	case Python:
		return "python"
	case JavaScript:
		return "javascript"
	case C:
		return "c"
	case CPP:
		return "cpp"
	}
	return "unknown"
}

// Ext returns the source file extension.
func (l Language) Ext() string {
	switch l {
	case Python:
		return ".py"
	case JavaScript:
		return ".js"
	case C:
		return ".c"
	case CPP:
		return ".cpp"
	}
	return ".txt"
}

// ErrorKind classifies a strategy failure.
type ErrorKind int

const (
	// KindCompile is a pre-match build/syntax failure; fatal to match creation.
	KindCompile ErrorKind = iota
	// KindCrash is a mid-match process exit or unparseable output; non-fatal.
	KindCrash
	// KindTimeout is a missed per-turn deadline; non-fatal.
	KindTimeout
	// KindProtocol is an engine-side serialization fault. It should never
	// occur; it is logged and treated as an internal error.
	KindProtocol
)

func (k ErrorKind) String() string {
	switch k {
	case KindCompile:
		return "CompileError"
	case KindCrash:
		return "RuntimeCrash"
	case KindTimeout:
		return "TimeoutError"
	case KindProtocol:
		return "ProtocolError"
	}
	return "UnknownError"
}

// StepError describes one failed strategy interaction. It is data attached to
// the replay, not control flow: a non-nil StepError still comes with a usable
// (defaulted) action.
type StepError struct {
	Kind    ErrorKind
	Message string

	// Fatal marks the side's process as gone for the rest of the match.
	// Every later step for that side defaults to STAY without being asked.
	Fatal bool
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}
