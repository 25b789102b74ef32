package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/noah-isme/sma-electives-api/internal/models"
	"github.com/noah-isme/sma-electives-api/internal/repository"
	appErrors "github.com/noah-isme/sma-electives-api/pkg/errors"
	"github.com/noah-isme/sma-electives-api/pkg/run"
)

// nullSentinel is what an unselected option serialises to on the form.
const nullSentinel = "None"

type identityLookup interface {
	FindByEmail(ctx context.Context, email string) (*models.Student, error)
}

type catalogLookup interface {
	Catalog(ctx context.Context, level string) (*models.Catalog, error)
}

// CapacityLimits are the per-process place limits.
type CapacityLimits struct {
	Elective int
	GE       int
}

// Evaluation carries a normalized submission through the rules together with
// what earlier rules resolved.
type Evaluation struct {
	Submission models.Submission
	Student    *models.Student
	Class      models.ClassSection
	Electives  [3]models.Elective
	GEElective models.GEElective

	catalog *models.Catalog
	labels  [3]decodedLabel
}

type decodedLabel struct {
	area string
	name string
}

// Admission builds the admitted record for a fully resolved evaluation.
func (ev *Evaluation) Admission() models.Admission {
	admission := models.Admission{
		Class:       ev.Class,
		Electives:   ev.Electives,
		GEElective:  ev.GEElective,
		ProcessYear: ev.Submission.ProcessYear,
	}
	if ev.Student != nil {
		admission.Student = *ev.Student
	}
	return admission
}

type ruleStage int

const (
	stageLocal ruleStage = iota
	stageLookup
	stageLedger
)

type rule struct {
	name  models.RuleName
	stage ruleStage
	check func(ctx context.Context, ev *Evaluation, ledger repository.LedgerReader) (models.Decision, error)
}

// RulesEngine runs the enrollment rules in order and stops at the first rejection.
type RulesEngine struct {
	identity identityLookup
	catalog  catalogLookup
	limits   CapacityLimits
	rules    []rule
}

// NewRulesEngine constructs the engine with the standard rule list.
func NewRulesEngine(identity identityLookup, catalog catalogLookup, limits CapacityLimits) *RulesEngine {
	e := &RulesEngine{identity: identity, catalog: catalog, limits: limits}
	e.rules = []rule{
		{name: models.RuleCompleteness, stage: stageLocal, check: checkCompleteness},
		{name: models.RuleRUNFormat, stage: stageLocal, check: checkRUNFormat},
		{name: models.RuleEmailExists, stage: stageLookup, check: e.checkEmailExists},
		{name: models.RuleAreaDiversity, stage: stageLookup, check: checkAreaDiversity},
		{name: models.RuleIdentityConsistency, stage: stageLookup, check: e.checkIdentityConsistency},
		{name: models.RuleNotEnrolled, stage: stageLedger, check: checkNotEnrolled},
		{name: models.RuleElectiveCapacity, stage: stageLedger, check: e.checkElectiveCapacity},
		{name: models.RuleGECapacity, stage: stageLedger, check: e.checkGECapacity},
		{name: models.RuleNoRepeat, stage: stageLedger, check: checkNoRepeat},
	}
	return e
}

// RuleNames lists the rules in evaluation order.
func (e *RulesEngine) RuleNames() []models.RuleName {
	names := make([]models.RuleName, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.name
	}
	return names
}

// Prepare normalizes sub, runs every rule that does not read the ledger and
// resolves the catalog ids the ledger rules need. A selection that cannot be
// resolved is an ErrCatalogResolution error. A label that does not decode or
// sits in the wrong choice group is an ErrInvalidSelection error.
func (e *RulesEngine) Prepare(ctx context.Context, sub models.Submission) (*Evaluation, models.Decision, error) {
	ev := &Evaluation{Submission: normalizeSubmission(sub)}
	for _, r := range e.rules {
		if r.stage == stageLedger {
			break
		}
		decision, err := r.check(ctx, ev, nil)
		if err != nil || !decision.Admitted() {
			return ev, decision, err
		}
	}
	if err := ev.resolveSelections(); err != nil {
		return ev, models.Decision{}, err
	}
	return ev, models.Admit(), nil
}

// CheckLedger runs the ledger rules for a prepared evaluation.
func (e *RulesEngine) CheckLedger(ctx context.Context, ev *Evaluation, ledger repository.LedgerReader) (models.Decision, error) {
	for _, r := range e.rules {
		if r.stage != stageLedger {
			continue
		}
		decision, err := r.check(ctx, ev, ledger)
		if err != nil || !decision.Admitted() {
			return decision, err
		}
	}
	return models.Admit(), nil
}

// Evaluate runs every rule against a read-only ledger.
func (e *RulesEngine) Evaluate(ctx context.Context, sub models.Submission, ledger repository.LedgerReader) (*Evaluation, models.Decision, error) {
	ev, decision, err := e.Prepare(ctx, sub)
	if err != nil || !decision.Admitted() {
		return ev, decision, err
	}
	decision, err = e.CheckLedger(ctx, ev, ledger)
	return ev, decision, err
}

func normalizeSubmission(sub models.Submission) models.Submission {
	sub.Name = strings.TrimSpace(sub.Name)
	sub.RUN = run.Normalize(sub.RUN)
	sub.Email = strings.ToLower(strings.TrimSpace(sub.Email))
	sub.ClassLabel = strings.TrimSpace(sub.ClassLabel)
	sub.Elective1 = strings.TrimSpace(sub.Elective1)
	sub.Elective2 = strings.TrimSpace(sub.Elective2)
	sub.Elective3 = strings.TrimSpace(sub.Elective3)
	sub.GEElective = strings.TrimSpace(sub.GEElective)
	return sub
}

func checkCompleteness(_ context.Context, ev *Evaluation, _ repository.LedgerReader) (models.Decision, error) {
	s := ev.Submission
	for _, field := range []string{s.RUN, s.Email, s.Name, s.ClassLabel, s.Elective1, s.Elective2, s.Elective3, s.GEElective} {
		if field == "" || field == nullSentinel {
			return models.Reject(models.RuleCompleteness, models.CodeIncompleteSubmission, 0), nil
		}
	}
	return models.Admit(), nil
}

func checkRUNFormat(_ context.Context, ev *Evaluation, _ repository.LedgerReader) (models.Decision, error) {
	if !run.Valid(ev.Submission.RUN) {
		return models.Reject(models.RuleRUNFormat, models.CodeInvalidRUNFormat, 0), nil
	}
	return models.Admit(), nil
}

func (e *RulesEngine) checkEmailExists(ctx context.Context, ev *Evaluation, _ repository.LedgerReader) (models.Decision, error) {
	student, err := e.identity.FindByEmail(ctx, ev.Submission.Email)
	if err != nil {
		return models.Decision{}, err
	}
	if student == nil {
		return models.Reject(models.RuleEmailExists, models.CodeUnknownEmail, 0), nil
	}
	ev.Student = student
	return models.Admit(), nil
}

func checkAreaDiversity(_ context.Context, ev *Evaluation, _ repository.LedgerReader) (models.Decision, error) {
	var areas [3]string
	for i, label := range ev.Submission.Electives() {
		area, name, err := models.DecodeLabel(label)
		if err != nil {
			return models.Decision{}, selectionError(fmt.Errorf("elective %d: %w", i+1, err))
		}
		ev.labels[i] = decodedLabel{area: area, name: name}
		areas[i] = area
	}
	if models.SameArea(areas[:]...) {
		return models.Reject(models.RuleAreaDiversity, models.CodeSameAreaElectives, 0), nil
	}
	return models.Admit(), nil
}

func (e *RulesEngine) checkIdentityConsistency(ctx context.Context, ev *Evaluation, _ repository.LedgerReader) (models.Decision, error) {
	catalog, err := e.catalog.Catalog(ctx, ev.Submission.Level)
	if err != nil {
		return models.Decision{}, err
	}
	ev.catalog = catalog

	class, ok := catalog.FindClass(ev.Submission.ClassLabel)
	if !ok || ev.Student == nil {
		return models.Reject(models.RuleIdentityConsistency, models.CodeIdentityMismatch, 0), nil
	}
	if ev.Student.RUN != ev.Submission.RUN || ev.Student.ClassID != class.ID {
		return models.Reject(models.RuleIdentityConsistency, models.CodeIdentityMismatch, 0), nil
	}
	ev.Class = class
	return models.Admit(), nil
}

// resolveSelections maps the decoded labels to one differentiated elective per
// choice group, slot N taking group N, and one GE elective.
func (ev *Evaluation) resolveSelections() error {
	if ev.catalog == nil {
		return catalogError(fmt.Errorf("catalog not loaded"))
	}
	for i, label := range ev.labels {
		elective, ok := ev.catalog.FindElective(label.area, label.name)
		if !ok {
			return catalogError(fmt.Errorf("elective %d %q not offered for level %s", i+1, models.EncodeLabel(label.area, label.name), ev.catalog.Level))
		}
		if group := elective.Group(ev.catalog.Level); group != i+1 {
			return selectionError(fmt.Errorf("elective %d %q belongs to group %d", i+1, elective.Label(), group))
		}
		ev.Electives[i] = elective
	}
	ge, ok := ev.catalog.FindGE(ev.Submission.GEElective)
	if !ok {
		return catalogError(fmt.Errorf("ge elective %q not offered for level %s", ev.Submission.GEElective, ev.catalog.Level))
	}
	ev.GEElective = ge
	return nil
}

func checkNotEnrolled(ctx context.Context, ev *Evaluation, ledger repository.LedgerReader) (models.Decision, error) {
	enrolled, err := ledger.HasEnrollment(ctx, ev.Submission.RUN, ev.Submission.ProcessYear)
	if err != nil {
		return models.Decision{}, err
	}
	if enrolled {
		return models.Reject(models.RuleNotEnrolled, models.CodeAlreadyEnrolled, 0), nil
	}
	return models.Admit(), nil
}

func (e *RulesEngine) checkElectiveCapacity(ctx context.Context, ev *Evaluation, ledger repository.LedgerReader) (models.Decision, error) {
	for i, elective := range ev.Electives {
		count, err := ledger.CountElective(ctx, elective.ID, ev.Submission.ProcessYear)
		if err != nil {
			return models.Decision{}, err
		}
		if count >= e.limits.Elective {
			return models.Reject(models.RuleElectiveCapacity, models.CodeElectiveFull, i+1), nil
		}
	}
	return models.Admit(), nil
}

func (e *RulesEngine) checkGECapacity(ctx context.Context, ev *Evaluation, ledger repository.LedgerReader) (models.Decision, error) {
	count, err := ledger.CountGE(ctx, ev.GEElective.ID, ev.Class.ID, ev.Submission.ProcessYear)
	if err != nil {
		return models.Decision{}, err
	}
	if count >= e.limits.GE {
		return models.Reject(models.RuleGECapacity, models.CodeGEElectiveFull, 0), nil
	}
	return models.Admit(), nil
}

func checkNoRepeat(ctx context.Context, ev *Evaluation, ledger repository.LedgerReader) (models.Decision, error) {
	previous := ev.Submission.ProcessYear - 1
	for i, elective := range ev.Electives {
		taken, err := ledger.HasElective(ctx, ev.Submission.RUN, previous, elective.ID)
		if err != nil {
			return models.Decision{}, err
		}
		if taken {
			return models.Reject(models.RuleNoRepeat, models.CodeRepeatedElective, i+1), nil
		}
	}
	return models.Admit(), nil
}

func selectionError(err error) *appErrors.Error {
	return appErrors.Wrap(err, appErrors.ErrInvalidSelection.Code, appErrors.ErrInvalidSelection.Status, appErrors.ErrInvalidSelection.Message)
}

func catalogError(err error) *appErrors.Error {
	return appErrors.Wrap(err, appErrors.ErrCatalogResolution.Code, appErrors.ErrCatalogResolution.Status, appErrors.ErrCatalogResolution.Message)
}
