package usecase_test

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rosterly/rosterd/internal/cache"
	"github.com/rosterly/rosterd/internal/domain"
	"github.com/rosterly/rosterd/internal/repository"
)

// In-memory fakes backing the usecase tests. They mimic the repository
// contracts closely enough for the behavior under test: uniqueness,
// guarded transitions, cursor ordering.

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestCaches() *cache.Caches {
	return cache.NewCaches(context.Background(), "", discardLogger())
}

// ---- employees ----

type fakeEmployees struct {
	mu      sync.Mutex
	byID    map[string]*domain.Employee
	history map[string][]string // prior password hashes
	audit   []*domain.HistoryEntry
	future  map[string]int // future assignment counts
	seq     int
}

func newFakeEmployees() *fakeEmployees {
	return &fakeEmployees{
		byID:    map[string]*domain.Employee{},
		history: map[string][]string{},
		future:  map[string]int{},
	}
}

func (f *fakeEmployees) add(e *domain.Employee) *domain.Employee {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e.ID == "" {
		f.seq++
		e.ID = fmt.Sprintf("emp-%d", f.seq)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	cp := *e
	f.byID[e.ID] = &cp
	return e
}

func (f *fakeEmployees) Create(_ context.Context, e *domain.Employee) (*domain.Employee, error) {
	f.mu.Lock()
	for _, other := range f.byID {
		if strings.EqualFold(other.Email, e.Email) {
			f.mu.Unlock()
			return nil, domain.ErrEmailTaken
		}
	}
	f.mu.Unlock()
	return f.add(e), nil
}

func (f *fakeEmployees) GetByID(_ context.Context, id string) (*domain.Employee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrEmployeeNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeEmployees) GetByEmail(_ context.Context, email string) (*domain.Employee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.byID {
		if strings.EqualFold(e.Email, email) {
			cp := *e
			return &cp, nil
		}
	}
	return nil, domain.ErrEmployeeNotFound
}

func (f *fakeEmployees) List(_ context.Context, input repository.ListEmployeesInput) ([]*domain.Employee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Employee
	for _, e := range f.byID {
		if input.IsActive != nil && e.IsActive != *input.IsActive {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if input.Limit > 0 && len(out) > input.Limit {
		out = out[:input.Limit]
	}
	return out, nil
}

func (f *fakeEmployees) Update(_ context.Context, e *domain.Employee) (*domain.Employee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[e.ID]; !ok {
		return nil, domain.ErrEmployeeNotFound
	}
	cp := *e
	f.byID[e.ID] = &cp
	return e, nil
}

func (f *fakeEmployees) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return domain.ErrEmployeeNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeEmployees) UpdatePassword(_ context.Context, id, newHash string, mustChange bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.byID[id]
	if !ok {
		return domain.ErrEmployeeNotFound
	}
	f.history[id] = append(f.history[id], e.PasswordHash)
	e.PasswordHash = newHash
	e.PasswordMustChange = mustChange
	return nil
}

func (f *fakeEmployees) PasswordHistory(_ context.Context, id string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.history[id]...), nil
}

func (f *fakeEmployees) RecordLoginFailure(_ context.Context, id string, lockThreshold int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.byID[id]
	if !ok {
		return false, domain.ErrEmployeeNotFound
	}
	e.FailedLoginAttempts++
	if e.FailedLoginAttempts >= lockThreshold {
		e.AccountLocked = true
	}
	return e.AccountLocked, nil
}

func (f *fakeEmployees) ResetLoginFailures(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.byID[id]; ok {
		e.FailedLoginAttempts = 0
	}
	return nil
}

func (f *fakeEmployees) SetLocked(_ context.Context, id string, locked bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.byID[id]; ok {
		e.AccountLocked = locked
	}
	return nil
}

func (f *fakeEmployees) SetRole(_ context.Context, id string, role domain.Role, changedBy string, reason *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.byID[id]
	if !ok {
		return domain.ErrEmployeeNotFound
	}
	f.audit = append(f.audit, &domain.HistoryEntry{
		EmployeeID: id, Field: "role",
		OldValue: string(e.Role), NewValue: string(role),
		ChangedByID: changedBy, Reason: reason, ChangedAt: time.Now().UTC(),
	})
	e.Role = role
	return nil
}

func (f *fakeEmployees) SetStatus(_ context.Context, id string, active bool, changedBy string, reason *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.byID[id]
	if !ok {
		return domain.ErrEmployeeNotFound
	}
	f.audit = append(f.audit, &domain.HistoryEntry{
		EmployeeID: id, Field: "status",
		OldValue: fmt.Sprint(e.IsActive), NewValue: fmt.Sprint(active),
		ChangedByID: changedBy, Reason: reason, ChangedAt: time.Now().UTC(),
	})
	e.IsActive = active
	return nil
}

func (f *fakeEmployees) SetDepartment(_ context.Context, id string, departmentID *string, changedBy string, reason *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.byID[id]
	if !ok {
		return domain.ErrEmployeeNotFound
	}
	e.DepartmentID = departmentID
	f.audit = append(f.audit, &domain.HistoryEntry{
		EmployeeID: id, Field: "department",
		ChangedByID: changedBy, Reason: reason, ChangedAt: time.Now().UTC(),
	})
	return nil
}

func (f *fakeEmployees) History(_ context.Context, id, field string, page repository.HistoryPage) ([]*domain.HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.HistoryEntry
	for _, h := range f.audit {
		if h.EmployeeID == id && h.Field == field {
			out = append(out, h)
		}
	}
	if page.Limit > 0 && len(out) > page.Limit {
		out = out[:page.Limit]
	}
	return out, nil
}

func (f *fakeEmployees) CountFutureAssignments(_ context.Context, employeeID string, _ time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.future[employeeID], nil
}

func (f *fakeEmployees) GetByIDs(_ context.Context, ids []string) (map[string]*domain.Employee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]*domain.Employee{}
	for _, id := range ids {
		if e, ok := f.byID[id]; ok {
			cp := *e
			out[id] = &cp
		}
	}
	return out, nil
}

func (f *fakeEmployees) ListActive(_ context.Context, departmentID *string) ([]*domain.Employee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Employee
	for _, e := range f.byID {
		if !e.IsActive {
			continue
		}
		if departmentID != nil && (e.DepartmentID == nil || *e.DepartmentID != *departmentID) {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ---- refresh tokens ----

type fakeTokens struct {
	mu     sync.Mutex
	byHash map[string]tokenRow
}

type tokenRow struct {
	employeeID string
	expiresAt  time.Time
	used       bool
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{byHash: map[string]tokenRow{}}
}

func (f *fakeTokens) StoreRefresh(_ context.Context, employeeID, tokenHash string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byHash[tokenHash] = tokenRow{employeeID: employeeID, expiresAt: expiresAt}
	return nil
}

func (f *fakeTokens) ClaimRefresh(_ context.Context, tokenHash string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.byHash[tokenHash]
	if !ok || row.used || time.Now().After(row.expiresAt) {
		return "", domain.ErrTokenInvalid
	}
	row.used = true
	f.byHash[tokenHash] = row
	return row.employeeID, nil
}

func (f *fakeTokens) RevokeAllFor(_ context.Context, employeeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for h, row := range f.byHash {
		if row.employeeID == employeeID {
			row.used = true
			f.byHash[h] = row
		}
	}
	return nil
}

func (f *fakeTokens) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for h, row := range f.byHash {
		if now.After(row.expiresAt) {
			delete(f.byHash, h)
			n++
		}
	}
	return n, nil
}

// ---- schedules ----

type fakeSchedules struct {
	mu   sync.Mutex
	byID map[string]*domain.Schedule
	seq  int
}

func newFakeSchedules() *fakeSchedules {
	return &fakeSchedules{byID: map[string]*domain.Schedule{}}
}

func (f *fakeSchedules) add(s *domain.Schedule) *domain.Schedule {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s.ID == "" {
		f.seq++
		s.ID = fmt.Sprintf("sched-%d", f.seq)
	}
	if s.Version == 0 {
		s.Version = 1
	}
	cp := *s
	f.byID[s.ID] = &cp
	return s
}

func (f *fakeSchedules) Create(_ context.Context, s *domain.Schedule) (*domain.Schedule, error) {
	return f.add(s), nil
}

func (f *fakeSchedules) GetByID(_ context.Context, id string) (*domain.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrScheduleNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSchedules) List(_ context.Context, input repository.ListSchedulesInput) ([]*domain.Schedule, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Schedule
	for _, s := range f.byID {
		if input.Status != "" && s.Status != input.Status {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (f *fakeSchedules) Update(_ context.Context, s *domain.Schedule, expectedVersion int) (*domain.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.byID[s.ID]
	if !ok {
		return nil, domain.ErrScheduleNotFound
	}
	if cur.Version != expectedVersion {
		return nil, domain.ErrVersionMismatch
	}
	cp := *s
	cp.Version = cur.Version + 1
	f.byID[s.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeSchedules) SetStatus(_ context.Context, id string, status domain.ScheduleStatus, approvedBy *string) (*domain.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrScheduleNotFound
	}
	s.Status = status
	if approvedBy != nil {
		s.ApprovedBy = approvedBy
	}
	s.Version++
	cp := *s
	return &cp, nil
}

func (f *fakeSchedules) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return domain.ErrScheduleNotFound
	}
	delete(f.byID, id)
	return nil
}

// ---- shifts ----

type fakeShifts struct {
	mu       sync.Mutex
	byID     map[string]*domain.Shift
	assigned map[string]bool
	seq      int
}

func newFakeShifts() *fakeShifts {
	return &fakeShifts{byID: map[string]*domain.Shift{}, assigned: map[string]bool{}}
}

func (f *fakeShifts) add(s *domain.Shift) *domain.Shift {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s.ID == "" {
		f.seq++
		s.ID = fmt.Sprintf("shift-%d", f.seq)
	}
	cp := *s
	f.byID[s.ID] = &cp
	return s
}

func (f *fakeShifts) Create(_ context.Context, s *domain.Shift) (*domain.Shift, error) {
	return f.add(s), nil
}

func (f *fakeShifts) CreateBulk(_ context.Context, shifts []*domain.Shift) ([]*domain.Shift, error) {
	out := make([]*domain.Shift, len(shifts))
	for i, s := range shifts {
		out[i] = f.add(s)
	}
	return out, nil
}

func (f *fakeShifts) GetByID(_ context.Context, id string) (*domain.Shift, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrShiftNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeShifts) GetByIDs(_ context.Context, ids []string) (map[string]*domain.Shift, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]*domain.Shift{}
	for _, id := range ids {
		if s, ok := f.byID[id]; ok {
			cp := *s
			out[id] = &cp
		}
	}
	return out, nil
}

func (f *fakeShifts) List(_ context.Context, input repository.ListShiftsInput) ([]*domain.Shift, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Shift
	for _, s := range f.byID {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (f *fakeShifts) Update(_ context.Context, s *domain.Shift) (*domain.Shift, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[s.ID]; !ok {
		return nil, domain.ErrShiftNotFound
	}
	cp := *s
	f.byID[s.ID] = &cp
	return s, nil
}

func (f *fakeShifts) Delete(_ context.Context, id string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return domain.ErrShiftNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeShifts) HasAssignments(_ context.Context, shiftID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.assigned[shiftID], nil
}

func (f *fakeShifts) ListRange(_ context.Context, from, to time.Time, _ *string) ([]*domain.Shift, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Shift
	for _, s := range f.byID {
		if s.Date.Before(from) || s.Date.After(to) {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ---- assignments ----

type fakeAssignments struct {
	mu     sync.Mutex
	byID   map[string]*domain.Assignment
	shifts *fakeShifts
	seq    int
}

func newFakeAssignments(shifts *fakeShifts) *fakeAssignments {
	return &fakeAssignments{byID: map[string]*domain.Assignment{}, shifts: shifts}
}

func (f *fakeAssignments) add(a *domain.Assignment) (*domain.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, other := range f.byID {
		if other.ScheduleID == a.ScheduleID && other.EmployeeID == a.EmployeeID && other.ShiftID == a.ShiftID {
			return nil, domain.E(domain.KindConflict, domain.CodeDuplicateAssignment,
				"assignment already exists")
		}
	}
	if a.ID == "" {
		f.seq++
		a.ID = fmt.Sprintf("asg-%d", f.seq)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	cp := *a
	f.byID[a.ID] = &cp
	return a, nil
}

func (f *fakeAssignments) Create(_ context.Context, a *domain.Assignment) (*domain.Assignment, error) {
	return f.add(a)
}

func (f *fakeAssignments) CreateBulk(_ context.Context, items []*domain.Assignment, precheck func(i int) *domain.Error) (*repository.BulkResult, error) {
	result := &repository.BulkResult{TotalProcessed: len(items)}
	for i, item := range items {
		if precheck != nil {
			if de := precheck(i); de != nil {
				result.Errors = append(result.Errors, repository.BulkError{
					Index: i, EmployeeID: item.EmployeeID, ShiftID: item.ShiftID,
					Code: de.Code, Message: de.Message,
				})
				continue
			}
		}
		created, err := f.add(item)
		if err != nil {
			result.Errors = append(result.Errors, repository.BulkError{
				Index: i, EmployeeID: item.EmployeeID, ShiftID: item.ShiftID,
				Code: domain.CodeDuplicateAssignment, Message: err.Error(),
			})
			continue
		}
		result.Created = append(result.Created, created)
	}
	result.TotalCreated = len(result.Created)
	result.TotalErrors = len(result.Errors)
	return result, nil
}

func (f *fakeAssignments) GetByID(_ context.Context, id string) (*domain.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrAssignmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAssignments) List(_ context.Context, input repository.ListAssignmentsInput) ([]*domain.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Assignment
	for _, a := range f.byID {
		if input.ScheduleID != nil && a.ScheduleID != *input.ScheduleID {
			continue
		}
		if input.EmployeeID != nil && a.EmployeeID != *input.EmployeeID {
			continue
		}
		if input.DateFrom != nil || input.DateTo != nil {
			s, ok := f.shifts.byID[a.ShiftID]
			if !ok {
				continue
			}
			if input.DateFrom != nil && s.Date.Before(*input.DateFrom) {
				continue
			}
			if input.DateTo != nil && !s.Date.Before(*input.DateTo) {
				continue
			}
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if input.Limit > 0 && len(out) > input.Limit {
		out = out[:input.Limit]
	}
	return out, nil
}

func (f *fakeAssignments) ListBySchedule(_ context.Context, scheduleID string) ([]*domain.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Assignment
	for _, a := range f.byID {
		if a.ScheduleID != scheduleID {
			continue
		}
		cp := *a
		if s, ok := f.shifts.byID[a.ShiftID]; ok {
			sc := *s
			cp.Shift = &sc
		}
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeAssignments) Update(_ context.Context, a *domain.Assignment) (*domain.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[a.ID]; !ok {
		return nil, domain.ErrAssignmentNotFound
	}
	cp := *a
	f.byID[a.ID] = &cp
	return a, nil
}

func (f *fakeAssignments) SetStatus(_ context.Context, id string, to domain.AssignmentStatus, allowedFrom []domain.AssignmentStatus, confirmedAt *time.Time, declineReason *string) (*domain.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrAssignmentNotFound
	}
	allowed := false
	for _, s := range allowedFrom {
		if a.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, domain.E(domain.KindConflict, "",
			fmt.Sprintf("assignment is %s", a.Status))
	}
	a.Status = to
	a.ConfirmedAt = confirmedAt
	a.DeclineReason = declineReason
	cp := *a
	return &cp, nil
}

func (f *fakeAssignments) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return domain.ErrAssignmentNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeAssignments) AutoConfirm(_ context.Context, cutoff time.Time) ([]*domain.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Assignment
	for _, a := range f.byID {
		if a.Status.Confirmable() && a.AssignedAt.Before(cutoff) {
			a.Status = domain.AssignmentConfirmed
			now := time.Now().UTC()
			a.ConfirmedAt = &now
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---- notifications ----

type fakeNotifications struct {
	mu   sync.Mutex
	rows []*domain.Notification
	seq  int
}

func newFakeNotifications() *fakeNotifications { return &fakeNotifications{} }

func (f *fakeNotifications) Create(_ context.Context, n *domain.Notification) (*domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	n.ID = fmt.Sprintf("ntf-%d", f.seq)
	n.CreatedAt = time.Now().UTC()
	cp := *n
	f.rows = append(f.rows, &cp)
	return n, nil
}

func (f *fakeNotifications) ListByRecipient(_ context.Context, recipientID string, unreadOnly bool, offset, limit int) ([]*domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Notification
	for _, n := range f.rows {
		if n.RecipientID != recipientID {
			continue
		}
		if unreadOnly && n.IsRead {
			continue
		}
		cp := *n
		out = append(out, &cp)
	}
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeNotifications) MarkRead(_ context.Context, id, recipientID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.rows {
		if n.ID == id && n.RecipientID == recipientID {
			n.IsRead = true
			return nil
		}
	}
	return domain.ErrNotificationNotFound
}

func (f *fakeNotifications) UnreadCount(_ context.Context, recipientID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, n := range f.rows {
		if n.RecipientID == recipientID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (f *fakeNotifications) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.rows[:0]
	var n int64
	for _, row := range f.rows {
		if row.ExpiresAt != nil && now.After(*row.ExpiresAt) {
			n++
			continue
		}
		kept = append(kept, row)
	}
	f.rows = kept
	return n, nil
}

// ---- rules ----

type fakeRules struct {
	mu   sync.Mutex
	byID map[string]*domain.Rule
	seq  int
}

func newFakeRules() *fakeRules { return &fakeRules{byID: map[string]*domain.Rule{}} }

func (f *fakeRules) Create(_ context.Context, r *domain.Rule) (*domain.Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	r.ID = fmt.Sprintf("rule-%d", f.seq)
	r.CreatedAt = time.Now().UTC()
	cp := *r
	f.byID[r.ID] = &cp
	return r, nil
}

func (f *fakeRules) GetByID(_ context.Context, id string) (*domain.Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrRuleNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRules) List(_ context.Context, input repository.ListRulesInput) ([]*domain.Rule, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Rule
	for _, r := range f.byID {
		if input.Type != "" && r.Type != input.Type {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (f *fakeRules) Update(_ context.Context, r *domain.Rule) (*domain.Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[r.ID]; !ok {
		return nil, domain.ErrRuleNotFound
	}
	cp := *r
	f.byID[r.ID] = &cp
	return r, nil
}

func (f *fakeRules) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return domain.ErrRuleNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeRules) ListActive(_ context.Context) ([]*domain.Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Rule
	for _, r := range f.byID {
		if r.Active {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		gi, gj := out[i].EmployeeID == nil, out[j].EmployeeID == nil
		if gi != gj {
			return gi
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ---- departments ----

type fakeDepartments struct {
	mu       sync.Mutex
	byID     map[string]*domain.Department
	members  map[string]bool
	children map[string]bool
	seq      int
}

func newFakeDepartments() *fakeDepartments {
	return &fakeDepartments{
		byID:     map[string]*domain.Department{},
		members:  map[string]bool{},
		children: map[string]bool{},
	}
}

func (f *fakeDepartments) add(d *domain.Department) *domain.Department {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d.ID == "" {
		f.seq++
		d.ID = fmt.Sprintf("dept-%d", f.seq)
	}
	cp := *d
	f.byID[d.ID] = &cp
	return d
}

func (f *fakeDepartments) Create(_ context.Context, d *domain.Department) (*domain.Department, error) {
	f.mu.Lock()
	for _, other := range f.byID {
		if strings.EqualFold(other.Name, d.Name) {
			f.mu.Unlock()
			return nil, domain.ErrDepartmentNameTaken
		}
	}
	f.mu.Unlock()
	return f.add(d), nil
}

func (f *fakeDepartments) GetByID(_ context.Context, id string) (*domain.Department, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrDepartmentNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDepartments) List(_ context.Context) ([]*domain.Department, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Department
	for _, d := range f.byID {
		cp := *d
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeDepartments) Update(_ context.Context, d *domain.Department) (*domain.Department, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[d.ID]; !ok {
		return nil, domain.ErrDepartmentNotFound
	}
	cp := *d
	f.byID[d.ID] = &cp
	return d, nil
}

func (f *fakeDepartments) Delete(_ context.Context, id string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return domain.ErrDepartmentNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeDepartments) Subtree(_ context.Context, id string) (*domain.Department, error) {
	return f.GetByID(context.Background(), id)
}

func (f *fakeDepartments) HasActiveMembers(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members[id], nil
}

func (f *fakeDepartments) HasChildren(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.children[id], nil
}

func (f *fakeDepartments) IsAncestor(_ context.Context, id, candidate string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur := id
	for i := 0; i < 100; i++ {
		if cur == candidate {
			return true, nil
		}
		d, ok := f.byID[cur]
		if !ok || d.ParentID == nil {
			return false, nil
		}
		cur = *d.ParentID
	}
	return false, nil
}
