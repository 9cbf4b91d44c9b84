package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/crime-report-api/internal/dto"
	"github.com/noah-isme/crime-report-api/internal/models"
	"github.com/noah-isme/crime-report-api/internal/repository"
	"github.com/noah-isme/crime-report-api/pkg/jobs"
)

type txProviderMock struct {
	db *sqlx.DB
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlx.NewDb(db, "sqlmock")}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

func expectCommits(mock sqlmock.Sqlmock, n int) {
	for i := 0; i < n; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
	}
}

var testHasher = NewBcryptHasher(bcrypt.MinCost)

// memDB is a shared in-memory stand-in for the repositories. It ignores the executor argument.
type memDB struct {
	mu       sync.Mutex
	users    map[string]*models.User
	sessions map[string]*models.Session
	reports  map[string]*models.CrimeReport
	history  []models.ReportStatusHistory
	requests map[string]*models.AdminRequest
	audits   []models.AuditLog
	jobs     map[string]*models.ExportJob

	auditErr error
	clock    time.Time
}

func newMemDB() *memDB {
	return &memDB{
		users:    map[string]*models.User{},
		sessions: map[string]*models.Session{},
		reports:  map[string]*models.CrimeReport{},
		requests: map[string]*models.AdminRequest{},
		jobs:     map[string]*models.ExportJob{},
		clock:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// tick returns strictly increasing timestamps so orderings are deterministic.
func (m *memDB) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memDB) addUser(email string, role models.UserRole) *models.User {
	hash, _ := testHasher.Hash("password123")
	u := &models.User{ID: uuid.NewString(), Email: email, PasswordHash: hash, Role: role, IsActive: true}
	m.mu.Lock()
	defer m.mu.Unlock()
	u.CreatedAt = m.tick()
	u.UpdatedAt = u.CreatedAt
	m.users[u.ID] = u
	return u
}

func (m *memDB) auditActions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.audits))
	for _, a := range m.audits {
		out = append(out, a.Action)
	}
	return out
}

func (m *memDB) lastAudit() models.AuditLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.audits[len(m.audits)-1]
}

func principalOf(u *models.User) *models.Principal {
	return &models.Principal{UserID: u.ID, Email: u.Email, Role: u.Role}
}

func paginate[T any](items []T, page, limit int) []T {
	start := (page - 1) * limit
	if start >= len(items) {
		return nil
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

type memUsers struct{ *memDB }

func (r memUsers) FindByEmail(_ context.Context, _ sqlx.ExtContext, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			c := *u
			return &c, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r memUsers) FindByEmailForUpdate(ctx context.Context, exec sqlx.ExtContext, email string) (*models.User, error) {
	return r.FindByEmail(ctx, exec, email)
}

func (r memUsers) FindByID(_ context.Context, _ sqlx.ExtContext, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	c := *u
	return &c, nil
}

func (r memUsers) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.User, error) {
	return r.FindByID(ctx, exec, id)
}

func (r memUsers) FindByIDs(_ context.Context, ids []string) (map[string]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*models.User, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			c := *u
			out[id] = &c
		}
	}
	return out, nil
}

func (r memUsers) Create(_ context.Context, _ sqlx.ExtContext, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = r.tick()
	user.UpdatedAt = user.CreatedAt
	c := *user
	r.users[user.ID] = &c
	return nil
}

func (r memUsers) UpdateRole(_ context.Context, _ sqlx.ExtContext, id string, role models.UserRole, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[id].Role = role
	r.users[id].UpdatedAt = at
	return nil
}

func (r memUsers) SetLocked(_ context.Context, _ sqlx.ExtContext, id string, locked bool, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[id].IsLocked = locked
	r.users[id].UpdatedAt = at
	return nil
}

func (r memUsers) UpdatePassword(_ context.Context, _ sqlx.ExtContext, id, hash string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[id].PasswordHash = hash
	r.users[id].UpdatedAt = at
	return nil
}

type memSessions struct{ *memDB }

func (r memSessions) Create(_ context.Context, _ sqlx.ExtContext, s *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.ID = uuid.NewString()
	c := *s
	r.sessions[s.TokenHash] = &c
	return nil
}

func (r memSessions) FindByTokenHash(_ context.Context, hash string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[hash]
	if !ok {
		return nil, sql.ErrNoRows
	}
	c := *s
	return &c, nil
}

func (r memSessions) Invalidate(_ context.Context, _ sqlx.ExtContext, hash string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[hash]
	if !ok || !s.IsValid {
		return false, nil
	}
	s.IsValid = false
	s.InvalidatedAt = &at
	return true, nil
}

func (r memSessions) DeleteStale(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for hash, s := range r.sessions {
		if s.ExpiresAt.Before(cutoff) || (!s.IsValid && s.InvalidatedAt != nil && s.InvalidatedAt.Before(cutoff)) {
			delete(r.sessions, hash)
			n++
		}
	}
	return n, nil
}

type memReports struct{ *memDB }

func (r memReports) Create(_ context.Context, _ sqlx.ExtContext, report *models.CrimeReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	report.ID = uuid.NewString()
	report.CreatedAt = r.tick()
	report.UpdatedAt = report.CreatedAt
	c := *report
	r.reports[report.ID] = &c
	return nil
}

func (r memReports) get(id string, includeDeleted bool) (*models.CrimeReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	report, ok := r.reports[id]
	if !ok || (report.IsDeleted && !includeDeleted) {
		return nil, sql.ErrNoRows
	}
	c := *report
	return &c, nil
}

func (r memReports) GetByID(_ context.Context, id string) (*models.CrimeReport, error) {
	return r.get(id, false)
}

func (r memReports) GetByIDIncludingDeleted(_ context.Context, id string) (*models.CrimeReport, error) {
	return r.get(id, true)
}

func (r memReports) GetForUpdate(_ context.Context, _ sqlx.ExtContext, id string) (*models.CrimeReport, error) {
	return r.get(id, false)
}

func (r memReports) apply(id string, at time.Time, fn func(*models.CrimeReport)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.reports[id])
	r.reports[id].UpdatedAt = at
	return nil
}

func (r memReports) UpdateStatus(_ context.Context, _ sqlx.ExtContext, id string, status models.ReportStatus, at time.Time) error {
	return r.apply(id, at, func(c *models.CrimeReport) { c.Status = status })
}

func (r memReports) UpdatePriority(_ context.Context, _ sqlx.ExtContext, id string, priority models.ReportPriority, at time.Time) error {
	return r.apply(id, at, func(c *models.CrimeReport) { c.Priority = priority })
}

func (r memReports) UpdateNotes(_ context.Context, _ sqlx.ExtContext, id string, notes *string, at time.Time) error {
	return r.apply(id, at, func(c *models.CrimeReport) { c.AdminNotes = notes })
}

func (r memReports) SoftDelete(_ context.Context, _ sqlx.ExtContext, id string, at time.Time) error {
	return r.apply(id, at, func(c *models.CrimeReport) {
		c.IsDeleted = true
		c.DeletedAt = &at
	})
}

func (r memReports) matching(userID *string, status *models.ReportStatus, priority *models.ReportPriority) []models.CrimeReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.CrimeReport, 0)
	for _, c := range r.reports {
		if c.IsDeleted {
			continue
		}
		if userID != nil && c.UserID != *userID {
			continue
		}
		if status != nil && c.Status != *status {
			continue
		}
		if priority != nil && c.Priority != *priority {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r memReports) List(_ context.Context, f models.ReportFilter) ([]models.CrimeReport, int, error) {
	all := r.matching(f.UserID, f.Status, f.Priority)
	return paginate(all, f.Page, f.Limit), len(all), nil
}

func (r memReports) ListSummaries(ctx context.Context, f models.ReportFilter) ([]dto.ReportSummary, int, error) {
	page, total, _ := r.List(ctx, f)
	out := make([]dto.ReportSummary, 0, len(page))
	for _, c := range page {
		out = append(out, dto.ReportSummary{ID: c.ID, Title: c.Title, Status: c.Status, Priority: c.Priority, UserID: c.UserID, CreatedAt: c.CreatedAt})
	}
	return out, total, nil
}

func (r memReports) ListForExport(_ context.Context, f models.ExportFilters) ([]models.CrimeReport, error) {
	all := r.matching(nil, f.Status, f.Priority)
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return all, nil
}

type memHistory struct{ *memDB }

func (r memHistory) Create(_ context.Context, _ sqlx.ExtContext, entry *models.ReportStatusHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.ID = uuid.NewString()
	r.history = append(r.history, *entry)
	return nil
}

func (r memHistory) ListByReport(_ context.Context, reportID string) ([]models.ReportStatusHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.ReportStatusHistory, 0)
	for _, h := range r.history {
		if h.ReportID == reportID {
			out = append(out, h)
		}
	}
	return out, nil
}

type memRequests struct{ *memDB }

func (r memRequests) Create(_ context.Context, _ sqlx.ExtContext, req *models.AdminRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	req.ID = uuid.NewString()
	req.CreatedAt = r.tick()
	c := *req
	r.requests[req.ID] = &c
	return nil
}

func (r memRequests) GetForUpdate(_ context.Context, _ sqlx.ExtContext, id string) (*models.AdminRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	c := *req
	return &c, nil
}

func (r memRequests) byUser(userID string, pendingOnly bool) (*models.AdminRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *models.AdminRequest
	for _, req := range r.requests {
		if req.UserID != userID || (pendingOnly && req.Status != models.AdminRequestPending) {
			continue
		}
		if latest == nil || req.CreatedAt.After(latest.CreatedAt) {
			latest = req
		}
	}
	if latest == nil {
		return nil, sql.ErrNoRows
	}
	c := *latest
	return &c, nil
}

func (r memRequests) FindPendingByUser(_ context.Context, _ sqlx.ExtContext, userID string) (*models.AdminRequest, error) {
	return r.byUser(userID, true)
}

func (r memRequests) LatestByUser(_ context.Context, userID string) (*models.AdminRequest, error) {
	return r.byUser(userID, false)
}

func (r memRequests) Resolve(_ context.Context, _ sqlx.ExtContext, req *models.AdminRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *req
	r.requests[req.ID] = &c
	return nil
}

func (r memRequests) List(_ context.Context, f models.AdminRequestFilter) ([]models.AdminRequest, int, error) {
	r.mu.Lock()
	all := make([]models.AdminRequest, 0, len(r.requests))
	for _, req := range r.requests {
		if f.Status != nil && req.Status != *f.Status {
			continue
		}
		all = append(all, *req)
	}
	r.mu.Unlock()
	sort.Slice(all, func(i, j int) bool {
		pi, pj := all[i].Status == models.AdminRequestPending, all[j].Status == models.AdminRequestPending
		if pi != pj {
			return pi
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return paginate(all, f.Page, f.Limit), len(all), nil
}

type memAudit struct{ *memDB }

func (r memAudit) Create(_ context.Context, _ sqlx.ExtContext, log *models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.auditErr != nil {
		return r.auditErr
	}
	log.ID = uuid.NewString()
	log.CreatedAt = r.tick()
	r.audits = append(r.audits, *log)
	return nil
}

func (r memAudit) List(_ context.Context, f models.AuditFilter) ([]models.AuditLog, int, error) {
	r.mu.Lock()
	all := make([]models.AuditLog, 0, len(r.audits))
	for _, a := range r.audits {
		if f.Action != "" && a.Action != f.Action {
			continue
		}
		if f.ActorID != "" && (a.ActorID == nil || *a.ActorID != f.ActorID) {
			continue
		}
		all = append(all, a)
	}
	r.mu.Unlock()
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, f.Page, f.Limit), len(all), nil
}

type memJobs struct{ *memDB }

func (r memJobs) Create(_ context.Context, _ sqlx.ExtContext, job *models.ExportJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job.ID = uuid.NewString()
	c := *job
	r.jobs[job.ID] = &c
	return nil
}

func (r memJobs) GetByID(_ context.Context, id string) (*models.ExportJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	c := *job
	return &c, nil
}

func (r memJobs) Update(_ context.Context, id string, p repository.UpdateExportJobParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return errors.New("missing job")
	}
	if p.Status != nil {
		job.Status = *p.Status
	}
	if p.Progress != nil {
		job.Progress = *p.Progress
	}
	if p.RowCount != nil {
		job.RowCount = *p.RowCount
	}
	if p.ResultPath != nil {
		job.ResultPath = p.ResultPath
	}
	if p.ResultURL != nil {
		job.ResultURL = p.ResultURL
	}
	if p.ErrorMessage != nil {
		job.ErrorMessage = p.ErrorMessage
	}
	if p.FinishedAt != nil {
		job.FinishedAt = p.FinishedAt
	}
	return nil
}

func (r memJobs) ListQueued(_ context.Context, _ int) ([]models.ExportJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.ExportJob, 0)
	for _, job := range r.jobs {
		if job.Status == models.ExportStatusQueued {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (r memJobs) RequeueProcessing(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, job := range r.jobs {
		if job.Status == models.ExportStatusProcessing {
			job.Status = models.ExportStatusQueued
			job.Progress = 0
			n++
		}
	}
	return n, nil
}

func (r memJobs) ListFinishedBefore(_ context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.ExportJob, 0)
	for _, job := range r.jobs {
		if job.Status == models.ExportStatusFinished && job.ResultPath != nil && job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			out = append(out, *job)
		}
	}
	return paginate(out, 1, limit), nil
}

func (r memJobs) ClearResult(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[id].ResultPath = nil
	r.jobs[id].ResultURL = nil
	return nil
}

type queueStub struct {
	jobs []jobs.Job
	err  error
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

// memCache is a JSON round-tripping CacheRepository.
type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{entries: map[string][]byte{}}
}

func (c *memCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[key]
	if !ok {
		return errors.New("miss")
	}
	return json.Unmarshal(raw, dest)
}

func (c *memCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = raw
	return nil
}

func (c *memCache) DeleteByPattern(_ context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	return nil
}

func (c *memCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

type fixture struct {
	db       *memDB
	tx       txProvider
	mock     sqlmock.Sqlmock
	cache    *memCache
	audit    *AuditService
	sessions *SessionService
	auth     *AuthService
	reports  *ReportService
	admin    *AdminService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newMemDB()
	tx, mock := newTxProviderMock(t)
	cache := newMemCache()
	users := memUsers{db}

	audit := NewAuditService(memAudit{db}, users, nil, nil, AuditPageLimits)
	sessions := NewSessionService(memSessions{db}, users, nil, nil, SessionConfig{TTL: time.Hour})
	f := &fixture{
		db:       db,
		tx:       tx,
		mock:     mock,
		cache:    cache,
		audit:    audit,
		sessions: sessions,
		auth:     NewAuthService(tx, users, sessions, testHasher, audit, nil, nil),
		reports: NewReportService(tx, memReports{db}, memHistory{db}, users, audit,
			NewCacheService(cache, nil, time.Minute, nil, true), nil, nil, ReportServiceConfig{}),
		admin: NewAdminService(tx, memRequests{db}, users, audit, nil, nil, DefaultPageLimits),
	}
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
	})
	return f
}
