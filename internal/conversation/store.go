// Package conversation keeps per-user rolling history and persona choice.
package conversation

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"coringa/voicebot/internal/logging"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Context is what a generator needs to answer a user.
type Context struct {
	Persona      string
	SystemPrompt string
	Turns        []Turn
}

type record struct {
	turns        []Turn
	persona      string
	lastActivity time.Time
}

type Options struct {
	HistoryCap     int
	TTL            time.Duration
	DefaultPersona string
}

// Store owns every conversation record. Records are created lazily and never
// shared outside the store; readers get copies.
type Store struct {
	mu      sync.Mutex
	records map[string]*record
	catalog *Catalog
	opts    Options
	now     func() time.Time
	log     *zap.Logger
}

func NewStore(catalog *Catalog, opts Options, logger *zap.Logger) *Store {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if opts.HistoryCap <= 0 {
		opts.HistoryCap = 10
	}
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Minute
	}
	if opts.DefaultPersona == "" || !catalog.Has(opts.DefaultPersona) {
		opts.DefaultPersona = DefaultPersona
	}
	return &Store{
		records: make(map[string]*record),
		catalog: catalog,
		opts:    opts,
		now:     time.Now,
		log:     logging.OrNop(logger).Named("conversation"),
	}
}

// getOrCreate must be called with s.mu held.
func (s *Store) getOrCreate(user string) *record {
	r, ok := s.records[user]
	if !ok {
		r = &record{persona: s.opts.DefaultPersona, lastActivity: s.now()}
		s.records[user] = r
		gaugeRecords.Set(float64(len(s.records)))
	}
	return r
}

// Append adds a turn and trims history to the configured cap, oldest first.
func (s *Store) Append(user string, role Role, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.getOrCreate(user)
	r.turns = append(r.turns, Turn{Role: role, Text: text})
	if over := len(r.turns) - s.opts.HistoryCap; over > 0 {
		r.turns = append([]Turn(nil), r.turns[over:]...)
	}
	r.lastActivity = s.now()
}

// Context returns the persona prompt and a copy of the history for user.
func (s *Store) Context(user string) Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.getOrCreate(user)
	prompt, _ := s.catalog.Prompt(r.persona)
	turns := make([]Turn, len(r.turns))
	copy(turns, r.turns)
	return Context{Persona: r.persona, SystemPrompt: prompt, Turns: turns}
}

// SetPersona switches user to tag. Unknown tags are rejected and leave the
// current persona in place.
func (s *Store) SetPersona(user, tag string) bool {
	if !s.catalog.Has(tag) {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.getOrCreate(user)
	r.persona = tag
	r.lastActivity = s.now()
	s.log.Info("persona set", zap.String("user", user), zap.String("persona", tag))
	return true
}

// Persona returns the user's persona tag, or the default when no record exists.
func (s *Store) Persona(user string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[user]; ok {
		return r.persona
	}
	return s.opts.DefaultPersona
}

// ClearHistory drops the user's turns and keeps the persona.
func (s *Store) ClearHistory(user string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[user]; ok {
		r.turns = nil
		r.lastActivity = s.now()
	}
}

// Len returns the number of live records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *Store) Catalog() *Catalog { return s.catalog }

// Sweep removes records whose last activity is strictly before now-TTL.
func (s *Store) Sweep(now time.Time) int {
	cutoff := now.Add(-s.opts.TTL)
	s.mu.Lock()
	removed := 0
	for user, r := range s.records {
		if r.lastActivity.Before(cutoff) {
			delete(s.records, user)
			removed++
		}
	}
	gaugeRecords.Set(float64(len(s.records)))
	s.mu.Unlock()
	if removed > 0 {
		sweepEvictions.Add(float64(removed))
		s.log.Info("swept idle conversations", zap.Int("removed", removed))
	}
	return removed
}

// Run sweeps on every tick until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			s.Sweep(t)
		}
	}
}
