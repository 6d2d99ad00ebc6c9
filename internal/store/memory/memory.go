// Package memory provides mutex-guarded in-memory implementations of the
// store interfaces. Data is lost on restart; production deployments use the
// BigQuery-backed store.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kitako/incomeproof/internal/domain"
	"github.com/kitako/incomeproof/internal/store"
)

// Store implements every store interface over in-memory maps. It is safe for
// concurrent use.
type Store struct {
	mu           sync.RWMutex
	uploads      map[string]*domain.Upload
	transactions map[string]*domain.Transaction
	jobs         map[string]*domain.CategorizationJob
	reports      map[string]*domain.IncomeReport
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		uploads:      make(map[string]*domain.Upload),
		transactions: make(map[string]*domain.Transaction),
		jobs:         make(map[string]*domain.CategorizationJob),
		reports:      make(map[string]*domain.IncomeReport),
	}
}

// Uploads returns the upload repository view of the store.
func (s *Store) Uploads() store.Uploads { return (*uploadStore)(s) }

// Transactions returns the transaction repository view of the store.
func (s *Store) Transactions() store.Transactions { return (*transactionStore)(s) }

// Jobs returns the job repository view of the store.
func (s *Store) Jobs() store.Jobs { return (*jobStore)(s) }

// Reports returns the report repository view of the store.
func (s *Store) Reports() store.Reports { return (*reportStore)(s) }

//
// Uploads
//

type uploadStore Store

func (s *uploadStore) Insert(ctx context.Context, u *domain.Upload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.uploads[u.ID] = &cp
	return nil
}

func (s *uploadStore) Get(ctx context.Context, userID, id string) (*domain.Upload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.uploads[id]
	if !ok || u.UserID != userID {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *uploadStore) List(ctx context.Context, userID string) ([]*domain.Upload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Upload
	for _, u := range s.uploads {
		if u.UserID == userID {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *uploadStore) Update(ctx context.Context, u *domain.Upload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.uploads[u.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *u
	cp.UpdatedAt = time.Now()
	s.uploads[u.ID] = &cp
	return nil
}

func (s *uploadStore) CompareAndSwapStatus(ctx context.Context, id string, from, to domain.UploadStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.uploads[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if u.Status != from {
		return false, nil
	}
	u.Status = to
	u.UpdatedAt = time.Now()
	return true, nil
}

func (s *uploadStore) Delete(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.uploads[id]
	if !ok || u.UserID != userID {
		return store.ErrNotFound
	}
	delete(s.uploads, id)
	return nil
}

//
// Transactions
//

type transactionStore Store

func (s *transactionStore) Insert(ctx context.Context, txs []*domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range txs {
		cp := *tx
		s.transactions[tx.ID] = &cp
	}
	return nil
}

func (s *transactionStore) Get(ctx context.Context, userID, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.transactions[id]
	if !ok || tx.UserID != userID {
		return nil, store.ErrNotFound
	}
	cp := *tx
	return &cp, nil
}

func (s *transactionStore) List(ctx context.Context, userID string, f store.TransactionFilter) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idSet := map[string]bool{}
	for _, id := range f.IDs {
		idSet[id] = true
	}

	var out []*domain.Transaction
	for _, tx := range s.transactions {
		if tx.UserID != userID {
			continue
		}
		if f.UploadID != "" && tx.UploadID != f.UploadID {
			continue
		}
		if len(idSet) > 0 && !idSet[tx.ID] {
			continue
		}
		if f.Direction != "" && tx.Direction != f.Direction {
			continue
		}
		if f.Category != "" && tx.Category != f.Category {
			continue
		}
		if f.Source != "" && tx.SourcePlatform != f.Source {
			continue
		}
		if f.Search != "" && !matchesSearch(tx, f.Search) {
			continue
		}
		if f.DateFrom != nil && tx.Date.Before(*f.DateFrom) {
			continue
		}
		if f.DateTo != nil && tx.Date.After(*f.DateTo) {
			continue
		}
		cp := *tx
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func matchesSearch(tx *domain.Transaction, q string) bool {
	q = strings.ToLower(q)
	return strings.Contains(strings.ToLower(tx.Description), q) ||
		strings.Contains(strings.ToLower(tx.Counterparty), q) ||
		strings.Contains(strings.ToLower(tx.Reference), q)
}

func (s *transactionStore) Update(ctx context.Context, tx *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[tx.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *tx
	cp.UpdatedAt = time.Now()
	s.transactions[tx.ID] = &cp
	return nil
}

func (s *transactionStore) Delete(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[id]
	if !ok || tx.UserID != userID {
		return store.ErrNotFound
	}
	delete(s.transactions, id)
	return nil
}

func (s *transactionStore) DeleteByUpload(ctx context.Context, uploadID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, tx := range s.transactions {
		if tx.UploadID == uploadID {
			delete(s.transactions, id)
			n++
		}
	}
	return n, nil
}

//
// Jobs
//

type jobStore Store

func (s *jobStore) Insert(ctx context.Context, j *domain.CategorizationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *j
	s.jobs[j.ID] = &cp
	return nil
}

func (s *jobStore) Get(ctx context.Context, userID, id string) (*domain.CategorizationJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok || j.UserID != userID {
		return nil, store.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (s *jobStore) List(ctx context.Context, userID string, f store.JobFilter) ([]*domain.CategorizationJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.CategorizationJob
	for _, j := range s.jobs {
		if j.UserID != userID {
			continue
		}
		if f.Kind != "" && j.Kind != f.Kind {
			continue
		}
		if f.Status != "" && j.Status != f.Status {
			continue
		}
		cp := *j
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *jobStore) Update(ctx context.Context, j *domain.CategorizationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *j
	s.jobs[j.ID] = &cp
	return nil
}

func (s *jobStore) CompareAndSwapStatus(ctx context.Context, id string, from, to domain.JobStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if j.Status != from {
		return false, nil
	}
	j.Status = to
	return true, nil
}

func (s *jobStore) FailStuck(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, j := range s.jobs {
		if j.Status != domain.JobStatusProcessing {
			continue
		}
		if j.StartedAt == nil || j.StartedAt.After(cutoff) {
			continue
		}
		j.Status = domain.JobStatusFailed
		j.Error = "job timed out"
		now := time.Now()
		j.CompletedAt = &now
		n++
	}
	return n, nil
}

//
// Reports
//

type reportStore Store

func (s *reportStore) Insert(ctx context.Context, r *domain.IncomeReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := cloneReport(r)
	s.reports[r.ID] = cp
	return nil
}

func (s *reportStore) Get(ctx context.Context, userID, id string) (*domain.IncomeReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	if !ok || r.UserID != userID {
		return nil, store.ErrNotFound
	}
	return cloneReport(r), nil
}

func (s *reportStore) GetAny(ctx context.Context, id string) (*domain.IncomeReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneReport(r), nil
}

func (s *reportStore) GetByVerificationCode(ctx context.Context, code string) (*domain.IncomeReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.reports {
		if r.VerificationCode == code {
			return cloneReport(r), nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *reportStore) List(ctx context.Context, userID string) ([]*domain.IncomeReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.IncomeReport
	for _, r := range s.reports {
		if r.UserID == userID {
			out = append(out, cloneReport(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *reportStore) Update(ctx context.Context, r *domain.IncomeReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reports[r.ID]; !ok {
		return store.ErrNotFound
	}
	cp := cloneReport(r)
	cp.UpdatedAt = time.Now()
	s.reports[r.ID] = cp
	return nil
}

func (s *reportStore) CompareAndSwapStatus(ctx context.Context, id string, from, to domain.ReportStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if r.Status != from {
		return false, nil
	}
	r.Status = to
	r.UpdatedAt = time.Now()
	return true, nil
}

func (s *reportStore) VerificationCodeExists(ctx context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.reports {
		if r.VerificationCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (s *reportStore) AccessTokenExists(ctx context.Context, token string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.reports {
		if r.AccessToken == token {
			return true, nil
		}
	}
	return false, nil
}

func (s *reportStore) IncrementDownloadCount(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return store.ErrNotFound
	}
	r.DownloadCount++
	return nil
}

func (s *reportStore) Delete(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok || r.UserID != userID {
		return store.ErrNotFound
	}
	delete(s.reports, id)
	return nil
}

func cloneReport(r *domain.IncomeReport) *domain.IncomeReport {
	cp := *r
	cp.IncomeBreakdown = cloneDecimalMap(r.IncomeBreakdown)
	cp.ExpenseBreakdown = cloneDecimalMap(r.ExpenseBreakdown)
	if r.MonthlyTrends != nil {
		cp.MonthlyTrends = make(map[string]domain.MonthlyTotals, len(r.MonthlyTrends))
		for k, v := range r.MonthlyTrends {
			cp.MonthlyTrends[k] = v
		}
	}
	cp.DataSources = append([]string(nil), r.DataSources...)
	cp.AnomaliesDetected = append([]string(nil), r.AnomaliesDetected...)
	return &cp
}

func cloneDecimalMap[V any](m map[string]V) map[string]V {
	if m == nil {
		return nil
	}
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Compile-time interface checks.
var (
	_ store.Uploads      = (*uploadStore)(nil)
	_ store.Transactions = (*transactionStore)(nil)
	_ store.Jobs         = (*jobStore)(nil)
	_ store.Reports      = (*reportStore)(nil)
)
