package testing

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/amirphl/Kappa/app/services"
	"github.com/amirphl/Kappa/models"
	"github.com/amirphl/Kappa/repository"
	"gorm.io/gorm"
)

var (
	_ repository.AccountRepository   = (*FakeAccountRepository)(nil)
	_ repository.ReportLogRepository = (*FakeReportLogRepository)(nil)
	_ repository.AuditLogRepository  = (*FakeAuditLogRepository)(nil)
)

// FakeAccountRepository is an in-memory AccountRepository. The exported
// error fields make the matching method fail.
type FakeAccountRepository struct {
	mu       sync.RWMutex
	accounts map[uint]*models.Account
	nextID   uint

	SaveErr      error
	FindErr      error
	UpdateErr    error
	IncrementErr error
	DeleteErr    error
}

func NewFakeAccountRepository() *FakeAccountRepository {
	return &FakeAccountRepository{accounts: make(map[uint]*models.Account), nextID: 1}
}

func cloneAccount(a *models.Account) *models.Account {
	c := *a
	return &c
}

// Put stores a copy of a, assigning an ID when a has none
func (r *FakeAccountRepository) Put(a *models.Account) *models.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insert(a)
	return cloneAccount(a)
}

func (r *FakeAccountRepository) insert(a *models.Account) {
	if a.ID == 0 {
		a.ID = r.nextID
	}
	if a.ID >= r.nextID {
		r.nextID = a.ID + 1
	}
	if a.InvoiceCounter == 0 {
		a.InvoiceCounter = 1
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now.Add(time.Duration(a.ID) * time.Millisecond)
	}
	a.UpdatedAt = now
	r.accounts[a.ID] = cloneAccount(a)
}

// Get returns a copy of the stored account or nil
func (r *FakeAccountRepository) Get(id uint) *models.Account {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if a, ok := r.accounts[id]; ok {
		return cloneAccount(a)
	}
	return nil
}

func (r *FakeAccountRepository) ByID(_ context.Context, id uint) (*models.Account, error) {
	if r.FindErr != nil {
		return nil, r.FindErr
	}
	return r.Get(id), nil
}

func (r *FakeAccountRepository) ByEmail(_ context.Context, email string) (*models.Account, error) {
	if r.FindErr != nil {
		return nil, r.FindErr
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.accounts {
		if a.Email == email {
			return cloneAccount(a), nil
		}
	}
	return nil, nil
}

func (r *FakeAccountRepository) matches(a *models.Account, f models.AccountFilter) bool {
	switch {
	case f.ID != nil && a.ID != *f.ID,
		f.Email != nil && a.Email != *f.Email,
		f.IsAdmin != nil && a.IsAdmin != *f.IsAdmin,
		f.HasChangedPassword != nil && a.HasChangedPassword != *f.HasChangedPassword,
		f.HasAcceptedTerms != nil && a.HasAcceptedTerms != *f.HasAcceptedTerms,
		f.CreatedAfter != nil && !a.CreatedAt.After(*f.CreatedAfter),
		f.CreatedBefore != nil && !a.CreatedAt.Before(*f.CreatedBefore):
		return false
	}
	return true
}

// ByFilter orders by creation time when orderBy starts with created_at,
// by descending ID otherwise
func (r *FakeAccountRepository) ByFilter(_ context.Context, filter models.AccountFilter, orderBy string, limit, offset int) ([]*models.Account, error) {
	if r.FindErr != nil {
		return nil, r.FindErr
	}
	r.mu.RLock()
	var rows []*models.Account
	for _, a := range r.accounts {
		if r.matches(a, filter) {
			rows = append(rows, cloneAccount(a))
		}
	}
	r.mu.RUnlock()

	if strings.HasPrefix(orderBy, "created_at") {
		slices.SortFunc(rows, func(a, b *models.Account) int {
			if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
				return c
			}
			return int(a.ID) - int(b.ID)
		})
	} else {
		slices.SortFunc(rows, func(a, b *models.Account) int { return int(b.ID) - int(a.ID) })
	}
	return paginate(rows, limit, offset), nil
}

func (r *FakeAccountRepository) Save(_ context.Context, a *models.Account) error {
	if r.SaveErr != nil {
		return r.SaveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.accounts {
		if existing.Email == a.Email {
			return fmt.Errorf("failed to save entity: %w", gorm.ErrDuplicatedKey)
		}
	}
	r.insert(a)
	return nil
}

func (r *FakeAccountRepository) Count(_ context.Context, filter models.AccountFilter) (int64, error) {
	if r.FindErr != nil {
		return 0, r.FindErr
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, a := range r.accounts {
		if r.matches(a, filter) {
			n++
		}
	}
	return n, nil
}

func (r *FakeAccountRepository) update(id uint, fn func(a *models.Account)) error {
	if r.UpdateErr != nil {
		return r.UpdateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return fmt.Errorf("failed to update account %d: %w", id, gorm.ErrRecordNotFound)
	}
	fn(a)
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *FakeAccountRepository) UpdatePassword(_ context.Context, id uint, hash string) error {
	return r.update(id, func(a *models.Account) { a.PasswordHash = hash })
}

func (r *FakeAccountRepository) UpdateProfile(_ context.Context, id uint, update models.ProfileUpdate) error {
	return r.update(id, update.Apply)
}

func (r *FakeAccountRepository) MarkPasswordChanged(_ context.Context, id uint) error {
	return r.update(id, func(a *models.Account) { a.HasChangedPassword = true })
}

func (r *FakeAccountRepository) MarkTermsAccepted(_ context.Context, id uint) error {
	return r.update(id, func(a *models.Account) { a.HasAcceptedTerms = true })
}

func (r *FakeAccountRepository) SetAdmin(_ context.Context, id uint) error {
	return r.update(id, func(a *models.Account) { a.IsAdmin = true })
}

func (r *FakeAccountRepository) IncrementInvoiceCounter(_ context.Context, id uint) (int64, error) {
	if r.IncrementErr != nil {
		return 0, r.IncrementErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return 0, fmt.Errorf("failed to increment invoice counter: %w", gorm.ErrRecordNotFound)
	}
	a.InvoiceCounter++
	return a.InvoiceCounter, nil
}

func (r *FakeAccountRepository) DeleteByID(_ context.Context, id uint) (bool, error) {
	if r.DeleteErr != nil {
		return false, r.DeleteErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[id]; !ok {
		return false, nil
	}
	delete(r.accounts, id)
	return true, nil
}

// FakeReportLogRepository is an in-memory ReportLogRepository. Accounts
// are resolved through the linked account fake, like a preload.
type FakeReportLogRepository struct {
	mu       sync.RWMutex
	entries  []*models.ReportLog
	accounts *FakeAccountRepository

	SaveErr error
	FindErr error
}

func NewFakeReportLogRepository(accounts *FakeAccountRepository) *FakeReportLogRepository {
	return &FakeReportLogRepository{accounts: accounts}
}

// All returns every stored entry in insertion order
func (r *FakeReportLogRepository) All() []*models.ReportLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.ReportLog, 0, len(r.entries))
	for _, e := range r.entries {
		c := *e
		out = append(out, &c)
	}
	return out
}

func (r *FakeReportLogRepository) Save(_ context.Context, e *models.ReportLog) error {
	if r.SaveErr != nil {
		return r.SaveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e.ID = uint(len(r.entries) + 1)
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC().Add(time.Duration(e.ID) * time.Millisecond)
	}
	c := *e
	c.Account = nil
	r.entries = append(r.entries, &c)
	return nil
}

func (r *FakeReportLogRepository) ByID(_ context.Context, id uint) (*models.ReportLog, error) {
	if r.FindErr != nil {
		return nil, r.FindErr
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.ID == id {
			c := *e
			return &c, nil
		}
	}
	return nil, nil
}

func (r *FakeReportLogRepository) matches(e *models.ReportLog, f models.ReportLogFilter) bool {
	switch {
	case f.ID != nil && e.ID != *f.ID,
		f.AccountID != nil && e.AccountID != *f.AccountID,
		f.Type != nil && e.Type != *f.Type,
		f.CreatedAfter != nil && !e.CreatedAt.After(*f.CreatedAfter),
		f.CreatedBefore != nil && !e.CreatedAt.Before(*f.CreatedBefore):
		return false
	}
	return true
}

func (r *FakeReportLogRepository) ByFilter(_ context.Context, filter models.ReportLogFilter, _ string, limit, offset int) ([]*models.ReportLog, error) {
	if r.FindErr != nil {
		return nil, r.FindErr
	}
	var rows []*models.ReportLog
	for _, e := range r.All() {
		if r.matches(e, filter) {
			rows = append(rows, e)
		}
	}
	slices.Reverse(rows)
	return paginate(rows, limit, offset), nil
}

func (r *FakeReportLogRepository) Count(ctx context.Context, filter models.ReportLogFilter) (int64, error) {
	rows, err := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), err
}

func (r *FakeReportLogRepository) ListWithAccount(_ context.Context, limit, offset int) ([]*models.ReportLog, error) {
	if r.FindErr != nil {
		return nil, r.FindErr
	}
	rows := r.All()
	slices.Reverse(rows)
	rows = paginate(rows, limit, offset)
	if r.accounts != nil {
		for _, e := range rows {
			e.Account = r.accounts.Get(e.AccountID)
		}
	}
	return rows, nil
}

// FakeAuditLogRepository records audit entries in memory
type FakeAuditLogRepository struct {
	mu      sync.RWMutex
	entries []*models.AuditLog

	SaveErr error
}

func NewFakeAuditLogRepository() *FakeAuditLogRepository {
	return &FakeAuditLogRepository{}
}

// Actions returns the recorded actions in order
func (r *FakeAuditLogRepository) Actions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

func (r *FakeAuditLogRepository) Save(_ context.Context, e *models.AuditLog) error {
	if r.SaveErr != nil {
		return r.SaveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e.ID = uint(len(r.entries) + 1)
	e.CreatedAt = time.Now().UTC()
	c := *e
	r.entries = append(r.entries, &c)
	return nil
}

func (r *FakeAuditLogRepository) ByID(_ context.Context, id uint) (*models.AuditLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.ID == id {
			c := *e
			return &c, nil
		}
	}
	return nil, nil
}

func (r *FakeAuditLogRepository) ByFilter(_ context.Context, filter models.AuditLogFilter, _ string, limit, offset int) ([]*models.AuditLog, error) {
	r.mu.RLock()
	var rows []*models.AuditLog
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if filter.AccountID != nil && (e.AccountID == nil || *e.AccountID != *filter.AccountID) {
			continue
		}
		if filter.Action != nil && e.Action != *filter.Action {
			continue
		}
		c := *e
		rows = append(rows, &c)
	}
	r.mu.RUnlock()
	return paginate(rows, limit, offset), nil
}

func (r *FakeAuditLogRepository) Count(ctx context.Context, filter models.AuditLogFilter) (int64, error) {
	rows, err := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), err
}

func (r *FakeAuditLogRepository) ListByAccount(ctx context.Context, accountID uint, limit, offset int) ([]*models.AuditLog, error) {
	return r.ByFilter(ctx, models.AuditLogFilter{AccountID: &accountID}, "", limit, offset)
}

func paginate[T any](rows []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(rows) {
			return nil
		}
		rows = rows[offset:]
	}
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

// FakeTransactor runs the unit of work inline
type FakeTransactor struct {
	Err error
}

func (t *FakeTransactor) WithTransaction(ctx context.Context, fn func(context.Context) error) error {
	if t.Err != nil {
		return t.Err
	}
	return fn(ctx)
}

// SentEmail is one message captured by FakeMailer
type SentEmail struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// FakeMailer captures outbound mail. It implements both NotificationService
// and EmailProvider.
type FakeMailer struct {
	mu   sync.Mutex
	sent []SentEmail

	Err error
}

func (m *FakeMailer) SendEmail(email, subject, text, html string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, SentEmail{To: email, Subject: subject, Text: text, HTML: html})
	return nil
}

func (m *FakeMailer) Sent() []SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.sent)
}

// FakeCompletion returns a canned response and records the prompts it saw
type FakeCompletion struct {
	mu    sync.Mutex
	calls [][2]string

	Response string
	Err      error
}

func (c *FakeCompletion) Complete(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	c.mu.Lock()
	c.calls = append(c.calls, [2]string{systemPrompt, userPrompt})
	c.mu.Unlock()
	if c.Err != nil {
		return "", c.Err
	}
	return c.Response, nil
}

// Calls returns the (system, user) prompt pairs in order
func (c *FakeCompletion) Calls() [][2]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.calls)
}

// FakeRenderer returns PDF for every request and records the requests
type FakeRenderer struct {
	mu       sync.Mutex
	requests []services.RenderRequest

	PDF []byte
	Err error
}

func (r *FakeRenderer) Render(_ context.Context, req services.RenderRequest) ([]byte, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	if r.PDF == nil {
		return []byte("%PDF-1.4 fake"), nil
	}
	return r.PDF, nil
}

func (r *FakeRenderer) Requests() []services.RenderRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.requests)
}

// FakeArchive keeps archived reports in memory
type FakeArchive struct {
	mu      sync.Mutex
	objects map[string][]byte

	Err        error
	PresignErr error
}

func (a *FakeArchive) Archive(_ context.Context, fileName string, data []byte, at time.Time) (string, error) {
	if a.Err != nil {
		return "", a.Err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.objects == nil {
		a.objects = make(map[string][]byte)
	}
	key := services.ArchiveKey(fileName, at)
	a.objects[key] = data
	return key, nil
}

func (a *FakeArchive) PresignedURL(_ context.Context, key string) (string, error) {
	if a.PresignErr != nil {
		return "", a.PresignErr
	}
	return "https://archive.example.com/" + key + "?X-Amz-Signature=fake", nil
}

func (a *FakeArchive) Keys() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	keys := make([]string, 0, len(a.objects))
	for k := range a.objects {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// FakeCaptcha accepts or rejects every answer according to Valid
type FakeCaptcha struct {
	Valid bool
}

func (c *FakeCaptcha) GenerateRotate(context.Context) (*services.RotateChallenge, error) {
	return &services.RotateChallenge{ID: "challenge-1", MasterImageBase64: "master", ThumbImageBase64: "thumb"}, nil
}

func (c *FakeCaptcha) VerifyRotate(_ context.Context, challengeID string, _ float64) bool {
	return c.Valid && challengeID != ""
}
