// Package history keeps per-session analysis results in memory: the latest
// plant and fungal results and the list of saved combined results. Nothing
// is persisted; sessions expire after a period of inactivity.
package history

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/tphakala/myconet/internal/analysis"
	"github.com/tphakala/myconet/internal/errors"
)

// ErrIncomplete is returned by Save when either analysis has not been run.
var ErrIncomplete = errors.NewStd("both plant and fungal analyses are required")

// Filter values meaning "no filter".
const All = "All"

// Entry is one saved combined result.
type Entry struct {
	ID      string                 `json:"id"`
	Plant   *analysis.PlantResult  `json:"plant"`
	Fungal  *analysis.FungalResult `json:"fungal"`
	SavedAt time.Time              `json:"saved_at"`
}

// Filter selects entries by plant status and fungal risk. Empty or All
// matches everything.
type Filter struct {
	PlantStatus string `query:"status" json:"status"`
	FungalRisk  string `query:"risk" json:"risk"`
}

func (f Filter) match(e *Entry) bool {
	if f.PlantStatus != "" && f.PlantStatus != All && e.Plant.Status != f.PlantStatus {
		return false
	}
	if f.FungalRisk != "" && f.FungalRisk != All && e.Fungal.RiskLevel != f.FungalRisk {
		return false
	}
	return true
}

// Stats backs the sidebar quick stats.
type Stats struct {
	PlantStatus    string            `json:"plant_status,omitempty"`
	PlantSeverity  analysis.Severity `json:"plant_severity,omitempty"`
	FungalRisk     string            `json:"fungal_risk,omitempty"`
	FungalSeverity analysis.Severity `json:"fungal_severity,omitempty"`
	TestsConducted int               `json:"tests_conducted"`
}

type session struct {
	mu      sync.Mutex
	plant   *analysis.PlantResult
	fungal  *analysis.FungalResult
	entries []*Entry
}

// Store holds sessions keyed by id.
type Store struct {
	cache *cache.Cache
	ttl   time.Duration
	now   func() time.Time
	mu    sync.Mutex // serialises session creation
}

// NewStore creates a store whose sessions expire ttl after their last use.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Store{
		cache: cache.New(ttl, ttl/2),
		ttl:   ttl,
		now:   time.Now,
	}
}

// NewSessionID returns a fresh random session id.
func NewSessionID() string {
	return uuid.NewString()
}

// get returns the session for id, creating it when needed, and extends its lifetime.
func (s *Store) get(id string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sess *session
	if v, ok := s.cache.Get(id); ok {
		sess = v.(*session)
	} else {
		sess = &session{}
	}
	s.cache.Set(id, sess, s.ttl)
	return sess
}

// SetPlant replaces the latest plant result of a session.
func (s *Store) SetPlant(id string, res *analysis.PlantResult) {
	sess := s.get(id)
	sess.mu.Lock()
	sess.plant = res
	sess.mu.Unlock()
}

// SetFungal replaces the latest fungal result of a session.
func (s *Store) SetFungal(id string, res *analysis.FungalResult) {
	sess := s.get(id)
	sess.mu.Lock()
	sess.fungal = res
	sess.mu.Unlock()
}

// Latest returns the latest plant and fungal results, either may be nil.
func (s *Store) Latest(id string) (*analysis.PlantResult, *analysis.FungalResult) {
	sess := s.get(id)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.plant, sess.fungal
}

// Save appends the current pair of results to the session history.
func (s *Store) Save(id string) (*Entry, error) {
	sess := s.get(id)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.plant == nil || sess.fungal == nil {
		return nil, errors.New(ErrIncomplete).
			Component("history").
			Category(errors.CategoryValidation).
			Context("has_plant", sess.plant != nil).
			Context("has_fungal", sess.fungal != nil).
			Build()
	}

	e := &Entry{
		ID:      uuid.NewString(),
		Plant:   sess.plant,
		Fungal:  sess.fungal,
		SavedAt: s.now(),
	}
	if loc := sess.plant.Timestamp.Location(); loc != nil {
		e.SavedAt = e.SavedAt.In(loc)
	}
	sess.entries = append(sess.entries, e)
	return e, nil
}

// Clear removes every saved entry of a session. Latest results are kept.
func (s *Store) Clear(id string) int {
	sess := s.get(id)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	n := len(sess.entries)
	sess.entries = nil
	return n
}

// Entries returns the saved entries matching f, newest first.
func (s *Store) Entries(id string, f Filter) []*Entry {
	sess := s.get(id)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	out := make([]*Entry, 0, len(sess.entries))
	for _, e := range slices.Backward(sess.entries) {
		if f.match(e) {
			out = append(out, e)
		}
	}
	return out
}

// Chronological returns every saved entry, oldest first.
func (s *Store) Chronological(id string) []*Entry {
	sess := s.get(id)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return slices.Clone(sess.entries)
}

// Count returns the number of saved entries.
func (s *Store) Count(id string) int {
	sess := s.get(id)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return len(sess.entries)
}

// Stats returns the sidebar summary of a session.
func (s *Store) Stats(id string) Stats {
	sess := s.get(id)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	st := Stats{TestsConducted: len(sess.entries)}
	if sess.plant != nil {
		st.PlantStatus = sess.plant.Status
		st.PlantSeverity = sess.plant.Severity
	}
	if sess.fungal != nil {
		st.FungalRisk = sess.fungal.RiskLevel
		st.FungalSeverity = sess.fungal.Severity
	}
	return st
}

// Sessions returns the number of live sessions.
func (s *Store) Sessions() int {
	return s.cache.ItemCount()
}
