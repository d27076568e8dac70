package metrics

import (
	"sync"
	"time"

	"arguard/internal/model"
)

// SessionStats counts the verdicts of one live session.
type SessionStats struct {
	Session      string         `json:"session"`
	Events       int            `json:"events"`
	Insufficient int            `json:"insufficient"`
	Clean        int            `json:"clean"`
	Alerts       int            `json:"alerts"`
	ByReason     map[string]int `json:"by_reason,omitempty"`
	LastLabel    model.Label    `json:"last_label"`
	LastStatus   string         `json:"last_status"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Store holds per-session stats, evicting the least recently updated
// session beyond limit.
type Store struct {
	mu        sync.RWMutex
	bySession map[string]*SessionStats
	limit     int
}

func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 5000
	}
	return &Store{
		bySession: make(map[string]*SessionStats),
		limit:     limit,
	}
}

func (s *Store) Update(session string, v model.Verdict) {
	if session == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.bySession[session]
	if !ok {
		st = &SessionStats{Session: session}
		s.bySession[session] = st
	}
	st.Events++
	switch v.Status {
	case model.StatusInsufficient:
		st.Insufficient++
	case model.StatusClean:
		st.Clean++
	case model.StatusAlert:
		st.Alerts++
		if st.ByReason == nil {
			st.ByReason = make(map[string]int)
		}
		st.ByReason[string(v.Reason)]++
	}
	st.LastLabel = v.Label
	st.LastStatus = v.Status.String()
	st.UpdatedAt = time.Now().UTC()
	if len(s.bySession) > s.limit {
		s.evictOldest()
	}
}

func (s *Store) Get(session string) (SessionStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.bySession[session]
	if !ok {
		return SessionStats{}, false
	}
	return st.clone(), true
}

func (s *Store) GetAll() map[string]SessionStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]SessionStats, len(s.bySession))
	for id, st := range s.bySession {
		out[id] = st.clone()
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bySession)
}

func (st *SessionStats) clone() SessionStats {
	out := *st
	if st.ByReason != nil {
		out.ByReason = make(map[string]int, len(st.ByReason))
		for k, v := range st.ByReason {
			out.ByReason[k] = v
		}
	}
	return out
}

func (s *Store) evictOldest() {
	var oldestSession string
	var oldest time.Time
	for id, st := range s.bySession {
		if oldestSession == "" || st.UpdatedAt.Before(oldest) {
			oldestSession = id
			oldest = st.UpdatedAt
		}
	}
	if oldestSession != "" {
		delete(s.bySession, oldestSession)
	}
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bySession = make(map[string]*SessionStats)
}
