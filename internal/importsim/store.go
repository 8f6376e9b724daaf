package importsim

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	api "github.com/autolot/dealer-admin/api/v1alpha1"
	"github.com/autolot/dealer-admin/pkg/metrics"
	"github.com/google/uuid"
)

// Session is an uploaded workbook waiting for, or going through, an import.
type Session struct {
	ID        string
	Status    api.ImportStatus
	Preview   []api.Row
	Errors    []api.RowError
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s *Session) copy() Session {
	out := *s
	out.Preview = append([]api.Row(nil), s.Preview...)
	out.Errors = append([]api.RowError(nil), s.Errors...)
	return out
}

// Store keeps sessions and the car inventory in memory.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	cars     []api.Car
	carNames map[string]struct{}
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
		carNames: make(map[string]struct{}),
		now:      time.Now,
	}
}

func (s *Store) CreateSession(preview []api.Row, errs []api.RowError) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess := &Session{
		ID:        uuid.NewString(),
		Status:    api.ImportStatusPending,
		Preview:   append([]api.Row(nil), preview...),
		Errors:    append([]api.RowError(nil), errs...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions[sess.ID] = sess
	return sess.copy()
}

func (s *Store) GetSession(id string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, NewErrSessionNotFound(id)
	}
	return sess.copy(), nil
}

// MarkProcessing moves a pending session to Processing.
func (s *Store) MarkProcessing(id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, NewErrSessionNotFound(id)
	}
	if sess.Status != api.ImportStatusPending {
		return Session{}, NewErrSessionNotPending(id, string(sess.Status))
	}
	sess.Status = api.ImportStatusProcessing
	sess.UpdatedAt = s.now()
	return sess.copy(), nil
}

// FinishSession stores the final errors and the terminal status they imply.
func (s *Store) FinishSession(id string, errs []api.RowError) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, NewErrSessionNotFound(id)
	}
	sess.Errors = append([]api.RowError(nil), errs...)
	sess.Status = api.ImportStatusCompleted
	if len(errs) > 0 {
		sess.Status = api.ImportStatusCompletedWithErrors
	}
	sess.UpdatedAt = s.now()
	return sess.copy(), nil
}

func (s *Store) DeleteSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return NewErrSessionNotFound(id)
	}
	delete(s.sessions, id)
	return nil
}

// ExpireSessions drops sessions idle since before deadline. Sessions being
// processed are kept.
func (s *Store) ExpireSessions(deadline time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	expired := 0
	for id, sess := range s.sessions {
		if sess.Status == api.ImportStatusProcessing || !sess.UpdatedAt.Before(deadline) {
			continue
		}
		delete(s.sessions, id)
		expired++
	}
	return expired
}

// AddCars appends rows to the inventory. A row whose name is already listed
// is rejected with a RowError.
func (s *Store) AddCars(rows []api.Row) (int, []api.RowError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	var rowErrors []api.RowError
	for _, row := range rows {
		key := strings.ToLower(strings.TrimSpace(row.Name))
		if _, exists := s.carNames[key]; exists {
			rowErrors = append(rowErrors, api.RowError{
				Data:  row,
				Error: fmt.Sprintf("car %q already exists", row.Name),
			})
			continue
		}
		s.carNames[key] = struct{}{}
		s.cars = append(s.cars, api.Car{ID: uuid.NewString(), Row: row})
		added++
	}
	return added, rowErrors
}

func (s *Store) ListCars() []api.Car {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cars := append([]api.Car{}, s.cars...)
	sort.SliceStable(cars, func(i, j int) bool {
		return cars[i].Name < cars[j].Name
	})
	return cars
}

// Stats implements metrics.StatsSource.
func (s *Store) Stats() metrics.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := metrics.Stats{
		SessionsByStatus: make(map[string]int),
		TotalCars:        len(s.cars),
	}
	for _, sess := range s.sessions {
		stats.SessionsByStatus[string(sess.Status)]++
	}
	return stats
}
