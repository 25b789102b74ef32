package models

import "fmt"

// Submission carries the raw form fields of one enrollment attempt plus the
// window parameters it is evaluated against.
type Submission struct {
	Name        string
	RUN         string
	Email       string
	ClassLabel  string
	Elective1   string
	Elective2   string
	Elective3   string
	GEElective  string
	ProcessYear int
	Level       string
}

// Electives returns the three differentiated labels in form order.
func (s Submission) Electives() [3]string {
	return [3]string{s.Elective1, s.Elective2, s.Elective3}
}

// RuleName identifies a business rule of the validation engine.
type RuleName string

// Rules in evaluation order.
const (
	RuleCompleteness        RuleName = "completeness"
	RuleRUNFormat           RuleName = "run_format"
	RuleEmailExists         RuleName = "email_exists"
	RuleAreaDiversity       RuleName = "area_diversity"
	RuleIdentityConsistency RuleName = "identity_consistency"
	RuleNotEnrolled         RuleName = "not_enrolled"
	RuleElectiveCapacity    RuleName = "elective_capacity"
	RuleGECapacity          RuleName = "ge_capacity"
	RuleNoRepeat            RuleName = "no_repeat"
)

// RejectCode is the stable, client-facing reason of a rejection.
type RejectCode string

const (
	CodeIncompleteSubmission RejectCode = "INCOMPLETE_SUBMISSION"
	CodeInvalidRUNFormat     RejectCode = "INVALID_RUN_FORMAT"
	CodeUnknownEmail         RejectCode = "UNKNOWN_EMAIL"
	CodeSameAreaElectives    RejectCode = "SAME_AREA_ELECTIVES"
	CodeIdentityMismatch     RejectCode = "IDENTITY_MISMATCH"
	CodeAlreadyEnrolled      RejectCode = "ALREADY_ENROLLED"
	CodeElectiveFull         RejectCode = "ELECTIVE_FULL"
	CodeGEElectiveFull       RejectCode = "GE_ELECTIVE_FULL"
	CodeRepeatedElective     RejectCode = "REPEATED_ELECTIVE"
)

// Rejection explains why a submission was not admitted. Which is the 1-based
// elective position for per-elective rules and 0 otherwise.
type Rejection struct {
	Rule    RuleName   `json:"rule"`
	Code    RejectCode `json:"code"`
	Message string     `json:"message"`
	Which   int        `json:"which,omitempty"`
}

// Decision is the outcome of running the rules: admit, or the first rejection.
type Decision struct {
	Rejection *Rejection
}

// Admitted reports whether every rule passed.
func (d Decision) Admitted() bool {
	return d.Rejection == nil
}

// Admit is the passing decision.
func Admit() Decision {
	return Decision{}
}

// Reject builds a rejection decision with the canonical message for code.
func Reject(rule RuleName, code RejectCode, which int) Decision {
	return Decision{Rejection: &Rejection{Rule: rule, Code: code, Message: rejectMessage(code, which), Which: which}}
}

func rejectMessage(code RejectCode, which int) string {
	switch code {
	case CodeIncompleteSubmission:
		return "All fields must be filled in before submitting."
	case CodeInvalidRUNFormat:
		return "The RUN entered is not valid. Use digits without dots, a hyphen and the check digit, e.g. 11222333-K."
	case CodeUnknownEmail:
		return "The email entered is not registered. Use your institutional email."
	case CodeSameAreaElectives:
		return "The three electives cannot all belong to the same area."
	case CodeIdentityMismatch:
		return "The RUN, email and class entered do not match our records."
	case CodeAlreadyEnrolled:
		return "You have already enrolled in electives for this process."
	case CodeElectiveFull:
		return fmt.Sprintf("Elective %d has no remaining places. Please choose another option.", which)
	case CodeGEElectiveFull:
		return "The general education elective has no remaining places for your class. Please choose another option."
	case CodeRepeatedElective:
		return fmt.Sprintf("Elective %d was already taken by you last year. Please choose another option.", which)
	default:
		return "The submission was rejected."
	}
}
