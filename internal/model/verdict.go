package model

type Status int

const (
	StatusInsufficient Status = iota
	StatusClean
	StatusAlert
)

func (s Status) String() string {
	switch s {
	case StatusClean:
		return "clean"
	case StatusAlert:
		return "alert"
	default:
		return "insufficient"
	}
}

type Reason string

const (
	ReasonNone     Reason = ""
	ReasonDistance Reason = "distance bound exceeded"
	ReasonCoverage Reason = "rule violated: coverage"
	ReasonTiming   Reason = "rule violated: timing"
)

// Verdict is the outcome of evaluating one live observation.
type Verdict struct {
	Status Status
	Reason Reason
	Detail string
	Label  Label
	Rule   *Rule
}

func Insufficient(label Label) Verdict {
	return Verdict{Status: StatusInsufficient, Label: label}
}

func Clean(label Label) Verdict {
	return Verdict{Status: StatusClean, Label: label}
}

func AlertVerdict(label Label, reason Reason, detail string, rule *Rule) Verdict {
	return Verdict{Status: StatusAlert, Reason: reason, Detail: detail, Label: label, Rule: rule}
}

func (v Verdict) IsAlert() bool {
	return v.Status == StatusAlert
}

// Alert maps the verdict to the framework's tri-state flag: nil while the
// window is still filling.
func (v Verdict) Alert() *bool {
	if v.Status == StatusInsufficient {
		return nil
	}
	b := v.Status == StatusAlert
	return &b
}

// Explanation is the text surfaced alongside the flag.
func (v Verdict) Explanation() string {
	if v.Status != StatusAlert {
		return ""
	}
	if v.Detail == "" {
		return string(v.Reason)
	}
	return string(v.Reason) + ": " + v.Detail
}
