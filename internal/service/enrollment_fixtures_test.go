package service

import (
	"context"
	"strings"
	"sync"

	"github.com/noah-isme/sma-electives-api/internal/models"
	"github.com/noah-isme/sma-electives-api/internal/repository"
)

const (
	testYear = 2026

	anaRUN     = "11222333-K"
	anaEmail   = "ana.perez@estudiantes.colegiotgs.cl"
	benjaRUN   = "9876543-2"
	benjaEmail = "benjamin.soto@estudiantes.colegiotgs.cl"
)

func testCatalog() *models.Catalog {
	return &models.Catalog{
		Level: models.LevelThird,
		Classes: []models.ClassSection{
			{ID: 4, Name: "3° Medio A", Level: models.LevelThird},
			{ID: 5, Name: "3° Medio B", Level: models.LevelThird},
		},
		Electives: []models.Elective{
			{ID: 1, Name: "Física", Area: "A", GroupThird: 1, EnabledThird: true},
			{ID: 2, Name: "Historia del Arte", Area: "B", GroupThird: 1, EnabledThird: true},
			{ID: 3, Name: "Química", Area: "A", GroupThird: 2, EnabledThird: true},
			{ID: 4, Name: "Filosofía Política", Area: "C", GroupThird: 2, EnabledThird: true},
			{ID: 5, Name: "Biología", Area: "A", GroupThird: 3, EnabledThird: true},
			{ID: 6, Name: "Literatura", Area: "B", GroupThird: 3, EnabledThird: true},
		},
		GEElectives: []models.GEElective{
			{ID: 1, Name: "Religión", Level: models.LevelThird},
			{ID: 2, Name: "Educación Física y Salud", Level: models.LevelThird},
		},
	}
}

func validSubmission() models.Submission {
	return models.Submission{
		Name:       "Ana Pérez",
		RUN:        "11222333-k",
		Email:      "Ana.Perez@estudiantes.colegiotgs.cl",
		ClassLabel: "3° Medio A",
		Elective1:  "Área A: Física",
		Elective2:  "Área C: Filosofía Política",
		Elective3:  "Área B: Literatura",
		GEElective: "Religión",
	}
}

func submissionFor(run, email string) models.Submission {
	sub := validSubmission()
	sub.RUN = run
	sub.Email = email
	return sub
}

type stubIdentity struct {
	students map[string]models.Student
	err      error
}

func newStubIdentity() *stubIdentity {
	return &stubIdentity{students: map[string]models.Student{
		anaEmail:   {RUN: anaRUN, Email: anaEmail, FullName: "Ana Pérez", ClassID: 4},
		benjaEmail: {RUN: benjaRUN, Email: benjaEmail, FullName: "Benjamín Soto", ClassID: 4},
	}}
}

func (s *stubIdentity) FindByEmail(_ context.Context, email string) (*models.Student, error) {
	if s.err != nil {
		return nil, s.err
	}
	student, ok := s.students[strings.ToLower(email)]
	if !ok {
		return nil, nil
	}
	return &student, nil
}

type stubCatalog struct {
	catalog *models.Catalog
	err     error
}

func (s *stubCatalog) Catalog(context.Context, string) (*models.Catalog, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.catalog, nil
}

// memLedger is an in-memory enrollment ledger. Admit serializes on one lock,
// mirroring the row locks taken by the database transaction, and enforces the
// same unique keys.
type memLedger struct {
	admission sync.Mutex

	mu        sync.RWMutex
	electives []models.EnrollmentRecord
	ge        []models.EnrollmentGERecord

	admitErrs  []error
	admitCalls int
}

func (l *memLedger) seedElective(run string, electiveID int64, year int, classID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.electives = append(l.electives, models.EnrollmentRecord{StudentRUN: run, ElectiveID: electiveID, ProcessYear: year, ClassID: classID})
}

func (l *memLedger) seedGE(run string, geID int64, year int, classID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ge = append(l.ge, models.EnrollmentGERecord{StudentRUN: run, GEElectiveID: geID, ProcessYear: year, ClassID: classID})
}

func (l *memLedger) rows() (int, int) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.electives), len(l.ge)
}

func (l *memLedger) HasEnrollment(_ context.Context, run string, year int) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, r := range l.electives {
		if r.StudentRUN == run && r.ProcessYear == year {
			return true, nil
		}
	}
	return false, nil
}

func (l *memLedger) CountElective(_ context.Context, electiveID int64, year int) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	count := 0
	for _, r := range l.electives {
		if r.ElectiveID == electiveID && r.ProcessYear == year {
			count++
		}
	}
	return count, nil
}

func (l *memLedger) CountGE(_ context.Context, geID, classID int64, year int) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	count := 0
	for _, r := range l.ge {
		if r.GEElectiveID == geID && r.ClassID == classID && r.ProcessYear == year {
			count++
		}
	}
	return count, nil
}

func (l *memLedger) HasElective(_ context.Context, run string, year int, electiveID int64) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, r := range l.electives {
		if r.StudentRUN == run && r.ProcessYear == year && r.ElectiveID == electiveID {
			return true, nil
		}
	}
	return false, nil
}

func (l *memLedger) Admit(ctx context.Context, params repository.AdmissionParams, check repository.AdmissionCheck) (models.Decision, error) {
	l.admission.Lock()
	defer l.admission.Unlock()

	l.admitCalls++
	if len(l.admitErrs) > 0 {
		err := l.admitErrs[0]
		l.admitErrs = l.admitErrs[1:]
		if err != nil {
			return models.Decision{}, err
		}
	}

	decision, err := check(ctx, l)
	if err != nil || !decision.Admitted() {
		return decision, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.electives {
		if r.StudentRUN == params.StudentRUN && r.ProcessYear == params.ProcessYear {
			return models.Reject(models.RuleNotEnrolled, models.CodeAlreadyEnrolled, 0), nil
		}
	}
	for i, id := range params.ElectiveIDs {
		l.electives = append(l.electives, models.EnrollmentRecord{
			StudentRUN:  params.StudentRUN,
			ElectiveID:  id,
			Position:    i + 1,
			ProcessYear: params.ProcessYear,
			ClassID:     params.ClassID,
			CreatedAt:   params.AdmittedAt,
		})
	}
	l.ge = append(l.ge, models.EnrollmentGERecord{
		StudentRUN:   params.StudentRUN,
		GEElectiveID: params.GEElectiveID,
		ProcessYear:  params.ProcessYear,
		ClassID:      params.ClassID,
		CreatedAt:    params.AdmittedAt,
	})
	return models.Admit(), nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []models.Confirmation
	ok   bool
}

func (n *recordingNotifier) SendConfirmation(_ context.Context, c models.Confirmation) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, c)
	return n.ok
}

func newTestEngine(limits CapacityLimits) *RulesEngine {
	return NewRulesEngine(newStubIdentity(), &stubCatalog{catalog: testCatalog()}, limits)
}

func newTestAdmission(ledger *memLedger, notifier confirmationSender, limits CapacityLimits) *AdmissionService {
	return NewAdmissionService(newTestEngine(limits), ledger, notifier, AdmissionWindow{ProcessYear: testYear, Level: models.LevelThird}, nil, nil)
}
