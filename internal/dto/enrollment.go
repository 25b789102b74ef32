package dto

import (
	"time"

	"github.com/noah-isme/sma-electives-api/internal/models"
)

// Email delivery notes shown after an admission.
const (
	EmailSentNote   = "A copy of your enrollment was sent to your email."
	EmailFailedNote = "We could not send the confirmation email. Please take a screenshot of this page as proof of enrollment."
)

// FormOptionsResponse lists the choices of the enrollment form for the open window.
type FormOptionsResponse struct {
	ProcessYear    int      `json:"processYear"`
	Level          string   `json:"level"`
	Classes        []string `json:"classes"`
	ElectiveGroup1 []string `json:"electiveGroup1"`
	ElectiveGroup2 []string `json:"electiveGroup2"`
	ElectiveGroup3 []string `json:"electiveGroup3"`
	GEElectives    []string `json:"geElectives"`
}

// NewFormOptions builds the form options from a level catalog.
func NewFormOptions(catalog *models.Catalog, processYear int) FormOptionsResponse {
	res := FormOptionsResponse{
		ProcessYear:    processYear,
		Level:          catalog.Level,
		Classes:        make([]string, 0, len(catalog.Classes)),
		ElectiveGroup1: nonNil(catalog.ElectiveGroup(1)),
		ElectiveGroup2: nonNil(catalog.ElectiveGroup(2)),
		ElectiveGroup3: nonNil(catalog.ElectiveGroup(3)),
		GEElectives:    make([]string, 0, len(catalog.GEElectives)),
	}
	for _, class := range catalog.Classes {
		res.Classes = append(res.Classes, class.Name)
	}
	for _, ge := range catalog.GEElectives {
		res.GEElectives = append(res.GEElectives, ge.Name)
	}
	return res
}

func nonNil(labels []string) []string {
	if labels == nil {
		return []string{}
	}
	return labels
}

// SubmissionRequest is the enrollment form payload. Only the shape is checked
// here; blank fields are reported by the completeness rule.
type SubmissionRequest struct {
	Name       string `json:"name" validate:"max=200"`
	RUN        string `json:"run" validate:"max=12"`
	Email      string `json:"email" validate:"max=254"`
	Class      string `json:"class" validate:"max=100"`
	Elective1  string `json:"elective1" validate:"max=200"`
	Elective2  string `json:"elective2" validate:"max=200"`
	Elective3  string `json:"elective3" validate:"max=200"`
	GEElective string `json:"geElective" validate:"max=200"`
}

// ToSubmission maps the payload onto a submission.
func (r SubmissionRequest) ToSubmission() models.Submission {
	return models.Submission{
		Name:       r.Name,
		RUN:        r.RUN,
		Email:      r.Email,
		ClassLabel: r.Class,
		Elective1:  r.Elective1,
		Elective2:  r.Elective2,
		Elective3:  r.Elective3,
		GEElective: r.GEElective,
	}
}

// DecisionResponse reports a rule decision.
type DecisionResponse struct {
	Admitted bool              `json:"admitted"`
	Reason   string            `json:"reason,omitempty"`
	Rule     models.RuleName   `json:"rule,omitempty"`
	Code     models.RejectCode `json:"code,omitempty"`
	Which    int               `json:"which,omitempty"`
}

// NewDecisionResponse flattens a decision.
func NewDecisionResponse(d models.Decision) DecisionResponse {
	if d.Admitted() {
		return DecisionResponse{Admitted: true}
	}
	return DecisionResponse{
		Reason: d.Rejection.Message,
		Rule:   d.Rejection.Rule,
		Code:   d.Rejection.Code,
		Which:  d.Rejection.Which,
	}
}

// SubmissionResponse is the result of a submission.
type SubmissionResponse struct {
	DecisionResponse
	EmailSent   bool              `json:"emailSent"`
	EmailNote   string            `json:"emailNote,omitempty"`
	SubmittedAt time.Time         `json:"submittedAt"`
	Summary     *AdmissionSummary `json:"summary,omitempty"`
}

// AdmissionSummary echoes the recorded enrollment back to the student.
type AdmissionSummary struct {
	RUN         string    `json:"run"`
	Name        string    `json:"name"`
	Class       string    `json:"class"`
	Electives   [3]string `json:"electives"`
	GEElective  string    `json:"geElective"`
	ProcessYear int       `json:"processYear"`
}

// NewSubmissionResponse builds the response for a submission outcome.
func NewSubmissionResponse(decision models.Decision, admission *models.Admission, emailSent bool, submittedAt time.Time) SubmissionResponse {
	res := SubmissionResponse{
		DecisionResponse: NewDecisionResponse(decision),
		EmailSent:        emailSent,
		SubmittedAt:      submittedAt,
	}
	if admission != nil {
		summary := &AdmissionSummary{
			RUN:         admission.Student.RUN,
			Name:        admission.Student.FullName,
			Class:       admission.Class.Name,
			GEElective:  admission.GEElective.Name,
			ProcessYear: admission.ProcessYear,
		}
		for i, e := range admission.Electives {
			summary.Electives[i] = e.Label()
		}
		res.Summary = summary
	}
	if res.Admitted {
		res.EmailNote = EmailFailedNote
		if emailSent {
			res.EmailNote = EmailSentNote
		}
	}
	return res
}
