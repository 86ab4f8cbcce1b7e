package effects

// ParamEffect is the classifier's verdict for one pointer or reference
// parameter of a function.
type ParamEffect uint8

const (
	// ParamReadOnly is the proven absence of writes and escapes through
	// the parameter. It is the zero value so absent map entries read as
	// proven-safe, which only the evaluator may leave absent.
	ParamReadOnly ParamEffect = iota
	// ParamWritten is a proven write through the parameter on some path.
	ParamWritten
	// ParamEscaped means the model lost track of the parameter's storage;
	// callers must assume it is retained, read, and written.
	ParamEscaped
)

// Summary is the memoized call-site effect record for one function.
type Summary struct {
	// IsClean means invoking the function produces no externally
	// observable side effect: no writes outside its own locals, no I/O,
	// no calls the model cannot classify.
	IsClean bool
	// Params holds the per-parameter effects for pointer and reference
	// parameters. Absent entries are proven read-only.
	Params map[int]ParamEffect
	// AllEscaped is the fail-safe for callees with no visible body:
	// every parameter behaves as ParamEscaped.
	AllEscaped bool
}

// WritesParam reports a proven write through parameter i.
func (s Summary) WritesParam(i int) bool {
	return !s.AllEscaped && s.Params[i] == ParamWritten
}

// ParamUnknown reports that parameter i's effect could not be proven
// either way; call sites must freeze the bound argument.
func (s Summary) ParamUnknown(i int) bool {
	return s.AllEscaped || s.Params[i] == ParamEscaped
}

// optimistic is the fixed-point seed for in-cycle calls: assumed clean,
// revised downward only.
func optimistic() Summary {
	return Summary{IsClean: true, Params: map[int]ParamEffect{}}
}

// unclean is the fail-safe summary for unresolved functions.
func unclean() Summary {
	return Summary{IsClean: false, Params: map[int]ParamEffect{}, AllEscaped: true}
}

func equal(a, b Summary) bool {
	if a.IsClean != b.IsClean || a.AllEscaped != b.AllEscaped || len(a.Params) != len(b.Params) {
		return false
	}
	for k, v := range a.Params {
		if b.Params[k] != v {
			return false
		}
	}
	return true
}
