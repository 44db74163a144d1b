package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"backoffice/internal/model"
	"backoffice/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type txMarker struct{}

// memDB is an in-memory stand-in for postgres. Transactions are serialized and
// rolled back by restoring a snapshot, which mirrors the per-subject lock plus rollback.
type memDB struct {
	txMu sync.Mutex
	mu   sync.Mutex

	employees map[uuid.UUID]model.Employee
	users     map[uuid.UUID]model.User
	requests  map[uuid.UUID]model.ChangeRequest
	documents []model.EmployeeDocument
	audits    []model.AuditLog

	hidePending      bool
	createErr        error
	updateErr        error
	beforeTransition func()
	creates          int
}

func newMemDB() *memDB {
	return &memDB{
		employees: map[uuid.UUID]model.Employee{},
		users:     map[uuid.UUID]model.User{},
		requests:  map[uuid.UUID]model.ChangeRequest{},
	}
}

type memSnapshot struct {
	employees map[uuid.UUID]model.Employee
	requests  map[uuid.UUID]model.ChangeRequest
	documents []model.EmployeeDocument
	audits    []model.AuditLog
}

func (db *memDB) snapshot() memSnapshot {
	db.mu.Lock()
	defer db.mu.Unlock()
	s := memSnapshot{
		employees: make(map[uuid.UUID]model.Employee, len(db.employees)),
		requests:  make(map[uuid.UUID]model.ChangeRequest, len(db.requests)),
		documents: append([]model.EmployeeDocument(nil), db.documents...),
		audits:    append([]model.AuditLog(nil), db.audits...),
	}
	for k, v := range db.employees {
		s.employees[k] = v
	}
	for k, v := range db.requests {
		s.requests[k] = v
	}
	return s
}

func (db *memDB) restore(s memSnapshot) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.employees = s.employees
	db.requests = s.requests
	db.documents = s.documents
	db.audits = s.audits
}

func (db *memDB) addEmployee(e model.Employee) model.Employee {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.UserID == nil {
		uid := uuid.New()
		e.UserID = &uid
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	db.employees[e.ID] = e
	return e
}

func (db *memDB) addUser(u model.User) model.User {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	db.users[u.ID] = u
	return u
}

func (db *memDB) employee(id uuid.UUID) model.Employee {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.employees[id]
}

func (db *memDB) request(id uuid.UUID) model.ChangeRequest {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.requests[id]
}

func (db *memDB) requestCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.requests)
}

func (db *memDB) auditActions() []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	actions := make([]string, 0, len(db.audits))
	for _, a := range db.audits {
		actions = append(actions, a.Action)
	}
	return actions
}

func (db *memDB) activeDocuments(employeeID uuid.UUID) []model.EmployeeDocument {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []model.EmployeeDocument
	for _, d := range db.documents {
		if d.EmployeeID == employeeID && d.IsActive {
			out = append(out, d)
		}
	}
	return out
}

// --- TransactionManager ---

type memTx struct{ db *memDB }

func (t memTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if ctx.Value(txMarker{}) != nil {
		return fn(ctx)
	}
	t.db.txMu.Lock()
	defer t.db.txMu.Unlock()
	snap := t.db.snapshot()
	if err := fn(context.WithValue(ctx, txMarker{}, true)); err != nil {
		t.db.restore(snap)
		return err
	}
	return nil
}

// --- ChangeRequestRepository ---

type memRequests struct{ db *memDB }

func (r memRequests) LockSubject(ctx context.Context, subjectID uuid.UUID) error {
	if ctx.Value(txMarker{}) == nil {
		return errors.New("no transaction in context")
	}
	return nil
}

func (r memRequests) HasPending(ctx context.Context, subjectID uuid.UUID) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.hidePending {
		return false, nil
	}
	for _, req := range r.db.requests {
		if req.SubjectID == subjectID && req.IsPending() {
			return true, nil
		}
	}
	return false, nil
}

func (r memRequests) Create(ctx context.Context, req *model.ChangeRequest) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.createErr != nil {
		return r.db.createErr
	}
	if req.IsPending() {
		for _, existing := range r.db.requests {
			if existing.SubjectID == req.SubjectID && existing.IsPending() {
				return repository.ErrPendingExists
			}
		}
	}
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	r.db.requests[req.ID] = *req
	r.db.creates++
	return nil
}

func (r memRequests) FindByID(ctx context.Context, id uuid.UUID) (*model.ChangeRequest, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	req, ok := r.db.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &req, nil
}

func (r memRequests) FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.ChangeRequest, error) {
	req, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.attach(req)
	return req, nil
}

func (r memRequests) attach(req *model.ChangeRequest) {
	if emp, ok := r.db.employees[req.SubjectID]; ok {
		req.Subject = &emp
	}
	if req.DecidedBy != nil {
		if u, ok := r.db.users[*req.DecidedBy]; ok {
			req.Decider = &u
		}
	}
}

func (r memRequests) List(ctx context.Context, filter repository.ChangeRequestFilter) ([]model.ChangeRequest, int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var matched []model.ChangeRequest
	for _, req := range r.db.requests {
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		if filter.Kind != "" && req.Kind != filter.Kind {
			continue
		}
		if filter.SubjectID != nil && req.SubjectID != *filter.SubjectID {
			continue
		}
		r.attach(&req)
		matched = append(matched, req)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].SubmittedAt.After(matched[j].SubmittedAt)
	})
	total := int64(len(matched))
	if filter.Offset >= len(matched) {
		return []model.ChangeRequest{}, total, nil
	}
	end := filter.Offset + filter.Limit
	if filter.Limit <= 0 || end > len(matched) {
		end = len(matched)
	}
	return matched[filter.Offset:end], total, nil
}

func (r memRequests) TransitionFromPending(ctx context.Context, id uuid.UUID, status string, decidedBy uuid.UUID, decidedAt time.Time, note string) error {
	if r.db.beforeTransition != nil {
		r.db.beforeTransition()
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	req, ok := r.db.requests[id]
	if !ok || !req.IsPending() {
		return repository.ErrNotPending
	}
	req.Status = status
	req.DecidedBy = &decidedBy
	req.DecidedAt = &decidedAt
	req.DecisionNote = note
	r.db.requests[id] = req
	return nil
}

// --- EmployeeRepository ---

type memEmployees struct{ db *memDB }

func (r memEmployees) GetByID(ctx context.Context, id uuid.UUID) (*model.Employee, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	emp, ok := r.db.employees[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &emp, nil
}

func (r memEmployees) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Employee, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, emp := range r.db.employees {
		if emp.UserID != nil && *emp.UserID == userID {
			e := emp
			return &e, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r memEmployees) UpdateFields(ctx context.Context, id uuid.UUID, values map[string]interface{}) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.updateErr != nil {
		return r.db.updateErr
	}
	emp, ok := r.db.employees[id]
	if !ok {
		return repository.ErrNotFound
	}
	for column, v := range values {
		var s *string
		if str, ok := v.(string); ok {
			s = &str
		}
		switch column {
		case model.FieldPhone:
			emp.Phone = s
		case model.FieldAddress:
			emp.Address = s
		case model.FieldEmergencyContactName:
			emp.EmergencyContactName = s
		case model.FieldEmergencyContactPhone:
			emp.EmergencyContactPhone = s
		case model.FieldEmergencyContactRelationship:
			emp.EmergencyContactRelationship = s
		case model.FieldBirthDate:
			if d, ok := v.(time.Time); ok {
				emp.BirthDate = &d
			} else {
				emp.BirthDate = nil
			}
		default:
			return errors.New("unknown column " + column)
		}
	}
	r.db.employees[id] = emp
	return nil
}

func (r memEmployees) ActivateDocument(ctx context.Context, doc *model.EmployeeDocument) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i, d := range r.db.documents {
		if d.EmployeeID == doc.EmployeeID && d.DocumentType == doc.DocumentType && d.IsActive {
			r.db.documents[i].IsActive = false
		}
	}
	doc.ID = uuid.New()
	doc.IsActive = true
	r.db.documents = append(r.db.documents, *doc)
	return nil
}

func (r memEmployees) ListActiveDocuments(ctx context.Context, employeeID uuid.UUID) ([]model.EmployeeDocument, error) {
	return r.db.activeDocuments(employeeID), nil
}

// --- AuditRepository ---

type memAudit struct{ db *memDB }

func (r memAudit) Log(ctx context.Context, entry *model.AuditLog) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	entry.ID = uuid.New()
	r.db.audits = append(r.db.audits, *entry)
	return nil
}

func (r memAudit) List(ctx context.Context, entityID string, offset, limit int) ([]model.AuditLog, int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var matched []model.AuditLog
	for i := len(r.db.audits) - 1; i >= 0; i-- {
		a := r.db.audits[i]
		if entityID != "" && a.EntityID != entityID {
			continue
		}
		if a.UserID != nil {
			if u, ok := r.db.users[*a.UserID]; ok {
				a.User = &u
			}
		}
		matched = append(matched, a)
	}
	total := int64(len(matched))
	if offset >= len(matched) {
		return []model.AuditLog{}, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

// --- collaborators ---

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type recordingNotifier struct {
	mu     sync.Mutex
	topics []string
}

func (n *recordingNotifier) Publish(topic string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.topics = append(n.topics, topic)
}

func (n *recordingNotifier) published() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.topics...)
}

type memObjectStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	puts      int
	putErr    error
	removeErr error
}

func newMemObjectStore() *memObjectStore {
	return &memObjectStore{objects: map[string][]byte{}}
}

func (s *memObjectStore) Put(ctx context.Context, path string, r io.Reader) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	if s.putErr != nil {
		return "", s.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.objects[path] = data
	return path, nil
}

func (s *memObjectStore) Remove(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removeErr != nil {
		return s.removeErr
	}
	delete(s.objects, path)
	return nil
}

func (s *memObjectStore) SignedURL(path string, ttl time.Duration) (string, error) {
	return "https://files.test/" + strings.ReplaceAll(path, "/", "_") + "?ttl=" + ttl.String(), nil
}

func (s *memObjectStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

func (s *memObjectStore) putCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts
}

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func strPtr(s string) *string { return &s }

// testEnv wires the services against one memDB.
type testEnv struct {
	db       *memDB
	store    *memObjectStore
	notifier *recordingNotifier
	clock    fixedClock

	submissions SubmissionService
	documents   DocumentService
	review      ReviewService
	executor    Executor
}

var testNow = time.Date(2026, time.March, 10, 9, 30, 0, 0, time.UTC)

func newTestEnv() *testEnv {
	return newTestEnvWithExecutor(nil)
}

func newTestEnvWithExecutor(exec Executor) *testEnv {
	env := &testEnv{
		db:       newMemDB(),
		store:    newMemObjectStore(),
		notifier: &recordingNotifier{},
		clock:    fixedClock{now: testNow},
	}
	employees := memEmployees{db: env.db}
	requests := memRequests{db: env.db}
	audit := memAudit{db: env.db}
	tx := memTx{db: env.db}
	log := quietLogger()

	if exec == nil {
		exec = NewExecutor(employees, audit)
	}
	env.executor = exec
	env.submissions = NewSubmissionService(employees, requests, audit, tx, env.notifier, env.clock, log)
	env.documents = NewDocumentService(employees, requests, audit, tx, env.store, 15*time.Minute, env.notifier, env.clock, log)
	env.review = NewReviewService(employees, requests, audit, tx, exec, env.store, 15*time.Minute, env.notifier, env.clock, log)
	return env
}

// seedEmployee stores an employee with a full personal record and returns it.
func (env *testEnv) seedEmployee() model.Employee {
	birth := time.Date(1990, time.May, 4, 0, 0, 0, 0, time.UTC)
	return env.db.addEmployee(model.Employee{
		EmployeeCode:                 "EMP-001",
		FullName:                     "Lan Nguyen",
		Department:                   "Operations",
		Position:                     "Coordinator",
		Phone:                        strPtr("0901234567"),
		Address:                      strPtr("12 Le Loi, District 1"),
		BirthDate:                    &birth,
		EmergencyContactName:         strPtr("Minh Nguyen"),
		EmergencyContactPhone:        strPtr("0912345678"),
		EmergencyContactRelationship: strPtr("Brother"),
	})
}

// seedReviewer stores an HR user that has no employee record of its own.
func (env *testEnv) seedReviewer() model.User {
	return env.db.addUser(model.User{Username: "hr.reviewer", Email: "hr@example.com", Role: model.RoleHR})
}

// pdfContent is the smallest payload mimetype recognises as a PDF.
func pdfContent() []byte {
	return []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")
}
