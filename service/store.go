package service

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/oks-citadel/apply-sla/model"
)

// Archiver mirrors entity writes into durable storage. Implementations are
// best-effort; the store logs failures and moves on.
type Archiver interface {
	ArchiveContract(ctx context.Context, c *model.SLAContract) error
	ArchiveEvent(ctx context.Context, e *model.SLAProgressEvent) error
	ArchiveViolation(ctx context.Context, v *model.SLAViolation) error
	ArchiveRemedy(ctx context.Context, r *model.SLARemedy) error
}

// ContractStore is an in-memory store for the four guarantee entity sets.
// All mutations happen under the write lock, so concurrent tracking calls
// against the same contract serialize and counter updates are never lost.
// In production this should be replaced with a database; the optional
// Archiver keeps a durable append-only mirror in the meantime.
type ContractStore struct {
	mu                   sync.RWMutex
	contracts            map[string]*model.SLAContract
	activeByUser         map[string]string // userID -> active contract ID
	events               map[string]*model.SLAProgressEvent
	eventsByContract     map[string][]string // insertion-ordered event IDs
	violations           map[string]*model.SLAViolation
	violationsByContract map[string][]string
	remedies             map[string]*model.SLARemedy
	remediesByViolation  map[string][]string

	archive Archiver
}

// NewContractStore creates an empty store.
func NewContractStore() *ContractStore {
	return &ContractStore{
		contracts:            make(map[string]*model.SLAContract),
		activeByUser:         make(map[string]string),
		events:               make(map[string]*model.SLAProgressEvent),
		eventsByContract:     make(map[string][]string),
		violations:           make(map[string]*model.SLAViolation),
		violationsByContract: make(map[string][]string),
		remedies:             make(map[string]*model.SLARemedy),
		remediesByViolation:  make(map[string][]string),
	}
}

// SetArchiver attaches a durable mirror. Call before serving traffic.
func (s *ContractStore) SetArchiver(a Archiver) {
	s.archive = a
}

func (s *ContractStore) mirror(fn func(ctx context.Context, a Archiver) error) {
	if s.archive == nil {
		return
	}
	a := s.archive
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := fn(ctx, a); err != nil {
			slog.Warn("archive write failed", "error", err)
		}
	}()
}

// CreateContract inserts a new contract, enforcing at most one active
// contract per user.
func (s *ContractStore) CreateContract(c *model.SLAContract) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existingID, ok := s.activeByUser[c.UserID]; ok {
		if existing := s.contracts[existingID]; existing != nil && existing.Status == model.ContractActive {
			return ErrDuplicateActiveContract
		}
	}

	c.UpdatedAt = time.Now()
	s.contracts[c.ID] = c
	if c.Status == model.ContractActive {
		s.activeByUser[c.UserID] = c.ID
	}

	snapshot := *c
	s.mirror(func(ctx context.Context, a Archiver) error { return a.ArchiveContract(ctx, &snapshot) })
	return nil
}

// GetContract returns the contract with the given id.
func (s *ContractStore) GetContract(id string) (*model.SLAContract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contracts[id]
	if !ok {
		return nil, ErrContractNotFound
	}
	return c, nil
}

// ActiveContractByUser returns the user's active contract.
func (s *ContractStore) ActiveContractByUser(userID string) (*model.SLAContract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.activeByUser[userID]
	if !ok {
		return nil, ErrNoActiveContract
	}
	c := s.contracts[id]
	if c == nil || c.Status != model.ContractActive {
		return nil, ErrNoActiveContract
	}
	return c, nil
}

// ContractByUser returns the user's most recent contract regardless of
// status.
func (s *ContractStore) ContractByUser(userID string) (*model.SLAContract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *model.SLAContract
	for _, c := range s.contracts {
		if c.UserID != userID {
			continue
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
			latest = c
		}
	}
	if latest == nil {
		return nil, ErrContractNotFound
	}
	return latest, nil
}

// UpdateContract applies fn to the contract under the write lock. The
// active-per-user index tracks status transitions made by fn.
func (s *ContractStore) UpdateContract(id string, fn func(c *model.SLAContract) error) (*model.SLAContract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contracts[id]
	if !ok {
		return nil, ErrContractNotFound
	}

	wasActive := c.Status == model.ContractActive
	if err := fn(c); err != nil {
		return nil, err
	}
	c.UpdatedAt = time.Now()

	isActive := c.Status == model.ContractActive
	if wasActive && !isActive {
		delete(s.activeByUser, c.UserID)
	} else if !wasActive && isActive {
		s.activeByUser[c.UserID] = c.ID
	}

	snapshot := *c
	s.mirror(func(ctx context.Context, a Archiver) error { return a.ArchiveContract(ctx, &snapshot) })
	return c, nil
}

// ExpiredActiveContracts returns active contracts whose effective deadline
// has passed, the sweep's selection set.
func (s *ContractStore) ExpiredActiveContracts(now time.Time) []*model.SLAContract {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*model.SLAContract
	for _, c := range s.contracts {
		if c.Status == model.ContractActive && c.IsExpired(now) {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].EffectiveEndDate().Before(result[j].EffectiveEndDate())
	})
	return result
}

// ApplyProgress appends a ledger event and updates the contract's counters
// in one critical section, so the projection can never drift from the
// ledger by a lost update.
func (s *ContractStore) ApplyProgress(contractID string, e *model.SLAProgressEvent, update func(c *model.SLAContract)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contracts[contractID]
	if !ok {
		return ErrContractNotFound
	}

	s.events[e.ID] = e
	s.eventsByContract[contractID] = append(s.eventsByContract[contractID], e.ID)

	if update != nil {
		update(c)
	}
	c.UpdatedAt = time.Now()

	eventSnapshot := *e
	contractSnapshot := *c
	s.mirror(func(ctx context.Context, a Archiver) error {
		if err := a.ArchiveEvent(ctx, &eventSnapshot); err != nil {
			return err
		}
		return a.ArchiveContract(ctx, &contractSnapshot)
	})
	return nil
}

// GetEvent returns the progress event with the given id.
func (s *ContractStore) GetEvent(id string) (*model.SLAProgressEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return nil, ErrProgressNotFound
	}
	return e, nil
}

// EventsByContract returns the contract's ledger in insertion order.
func (s *ContractStore) EventsByContract(contractID string) []*model.SLAProgressEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.eventsByContract[contractID]
	result := make([]*model.SLAProgressEvent, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.events[id]; ok {
			result = append(result, e)
		}
	}
	return result
}

// FindApplicationEvent returns the application_sent event that originated
// the given application, or nil when none is recorded.
func (s *ContractStore) FindApplicationEvent(contractID, applicationID string) *model.SLAProgressEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.eventsByContract[contractID] {
		e := s.events[id]
		if e != nil && e.Type == model.EventApplicationSent && e.ApplicationID == applicationID {
			return e
		}
	}
	return nil
}

// UpdateEvent applies fn to the event and the owning contract in one
// critical section. Used by the verification/reconciliation path.
func (s *ContractStore) UpdateEvent(id string, fn func(e *model.SLAProgressEvent, c *model.SLAContract, ledger []*model.SLAProgressEvent) error) (*model.SLAProgressEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return nil, ErrProgressNotFound
	}
	c := s.contracts[e.ContractID]
	if c == nil {
		return nil, ErrContractNotFound
	}

	ids := s.eventsByContract[e.ContractID]
	ledger := make([]*model.SLAProgressEvent, 0, len(ids))
	for _, eid := range ids {
		if ev, ok := s.events[eid]; ok {
			ledger = append(ledger, ev)
		}
	}

	if err := fn(e, c, ledger); err != nil {
		return nil, err
	}
	c.UpdatedAt = time.Now()

	eventSnapshot := *e
	contractSnapshot := *c
	s.mirror(func(ctx context.Context, a Archiver) error {
		if err := a.ArchiveEvent(ctx, &eventSnapshot); err != nil {
			return err
		}
		return a.ArchiveContract(ctx, &contractSnapshot)
	})
	return e, nil
}

// CreateViolation inserts v unless the contract already has an unresolved
// violation, in which case the existing one is returned. Check-then-insert
// runs under the write lock, making "at most one unresolved violation per
// contract" an enforced invariant even when a manual sweep races the
// scheduled one.
func (s *ContractStore) CreateViolation(v *model.SLAViolation) (*model.SLAViolation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.violationsByContract[v.ContractID] {
		if existing := s.violations[id]; existing != nil && !existing.Resolved {
			return existing, false
		}
	}

	s.violations[v.ID] = v
	s.violationsByContract[v.ContractID] = append(s.violationsByContract[v.ContractID], v.ID)

	snapshot := *v
	s.mirror(func(ctx context.Context, a Archiver) error { return a.ArchiveViolation(ctx, &snapshot) })
	return v, true
}

// GetViolation returns the violation with the given id.
func (s *ContractStore) GetViolation(id string) (*model.SLAViolation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.violations[id]
	if !ok {
		return nil, ErrViolationNotFound
	}
	return v, nil
}

// ViolationsByContract returns all violations recorded for the contract.
func (s *ContractStore) ViolationsByContract(contractID string) []*model.SLAViolation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.violationsByContract[contractID]
	result := make([]*model.SLAViolation, 0, len(ids))
	for _, id := range ids {
		if v, ok := s.violations[id]; ok {
			result = append(result, v)
		}
	}
	return result
}

// UpdateViolation applies fn to the violation under the write lock.
func (s *ContractStore) UpdateViolation(id string, fn func(v *model.SLAViolation) error) (*model.SLAViolation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.violations[id]
	if !ok {
		return nil, ErrViolationNotFound
	}
	if err := fn(v); err != nil {
		return nil, err
	}

	snapshot := *v
	s.mirror(func(ctx context.Context, a Archiver) error { return a.ArchiveViolation(ctx, &snapshot) })
	return v, nil
}

// CreateRemedy inserts a remedy under the write lock.
func (s *ContractStore) CreateRemedy(r *model.SLARemedy) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r.UpdatedAt = time.Now()
	s.remedies[r.ID] = r
	s.remediesByViolation[r.ViolationID] = append(s.remediesByViolation[r.ViolationID], r.ID)

	snapshot := *r
	s.mirror(func(ctx context.Context, a Archiver) error { return a.ArchiveRemedy(ctx, &snapshot) })
}

// GetRemedy returns the remedy with the given id.
func (s *ContractStore) GetRemedy(id string) (*model.SLARemedy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.remedies[id]
	if !ok {
		return nil, ErrRemedyNotFound
	}
	return r, nil
}

// RemediesByViolation returns all remedies issued for the violation.
func (s *ContractStore) RemediesByViolation(violationID string) []*model.SLARemedy {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.remediesByViolation[violationID]
	result := make([]*model.SLARemedy, 0, len(ids))
	for _, id := range ids {
		if r, ok := s.remedies[id]; ok {
			result = append(result, r)
		}
	}
	return result
}

// UpdateRemedy applies fn to the remedy under the write lock. Every state
// transition of the remedy workflow goes through here, so each boundary is
// persisted (mirrored) before the next step runs.
func (s *ContractStore) UpdateRemedy(id string, fn func(r *model.SLARemedy) error) (*model.SLARemedy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.remedies[id]
	if !ok {
		return nil, ErrRemedyNotFound
	}
	if err := fn(r); err != nil {
		return nil, err
	}
	r.UpdatedAt = time.Now()

	snapshot := *r
	s.mirror(func(ctx context.Context, a Archiver) error { return a.ArchiveRemedy(ctx, &snapshot) })
	return r, nil
}

// ExecutableRemedies returns pending remedies that have cleared their
// approval gate, for the sweep's re-drive pass.
func (s *ContractStore) ExecutableRemedies() []*model.SLARemedy {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*model.SLARemedy
	for _, r := range s.remedies {
		if r.CanExecute() {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// Counts returns entity counts, used by the health endpoint.
func (s *ContractStore) Counts() (contracts, events, violations, remedies int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.contracts), len(s.events), len(s.violations), len(s.remedies)
}
