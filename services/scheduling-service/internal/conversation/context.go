package conversation

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/selection"
)

// HeaderID carries the conversation id on HTTP requests.
const HeaderID = "X-Conversation-Id"

// Context is what one conversation has been shown and has settled so far.
type Context struct {
	ID        string                               `json:"id"`
	Options   selection.OptionSets                 `json:"options"`
	Resolved  map[selection.Field]selection.Option `json:"resolved,omitempty"`
	UpdatedAt time.Time                            `json:"updatedAt"`
}

// Remember overlays freshly shown option sets.
func (c *Context) Remember(shown selection.OptionSets) {
	c.Options = c.Options.Merge(shown)
}

// Settle records fields accepted by the validator. It writes to a fresh map, so copies
// of c taken earlier are not affected.
func (c *Context) Settle(resolved map[selection.Field]selection.Option) {
	if len(resolved) == 0 {
		return
	}
	next := make(map[selection.Field]selection.Option, len(c.Resolved)+len(resolved))
	maps.Copy(next, c.Resolved)
	maps.Copy(next, resolved)
	c.Resolved = next
}

// clone returns a copy of c that shares no maps or slices with it.
func (c Context) clone() Context {
	c.Resolved = maps.Clone(c.Resolved)
	c.Options = selection.OptionSets{
		Vehicles:  cloneOptions(c.Options.Vehicles),
		Dates:     cloneOptions(c.Options.Dates),
		Branches:  cloneOptions(c.Options.Branches),
		Services:  cloneOptions(c.Options.Services),
		Bays:      cloneOptions(c.Options.Bays),
		TimeSlots: cloneOptions(c.Options.TimeSlots),
	}
	return c
}

func cloneOptions(in []selection.Option) []selection.Option {
	out := slices.Clone(in)
	for i := range out {
		out[i].Keywords = slices.Clone(out[i].Keywords)
	}
	return out
}

// Store persists contexts by id. Get returns an empty context for an unknown id.
type Store interface {
	Get(ctx context.Context, id string) (Context, error)
	Save(ctx context.Context, c Context) error
	Clear(ctx context.Context, id string) error
}

// NormalizeID trims the id and caps its length. An empty result means no conversation.
func NormalizeID(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) > 128 {
		raw = raw[:128]
	}
	return raw
}

// MemoryStore keeps contexts in process; used when REDIS_ADDR is unset. Contexts go in
// and come out as copies.
type MemoryStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[string]memoryItem
	now   func() time.Time
}

type memoryItem struct {
	c       Context
	expires time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &MemoryStore{ttl: ttl, items: map[string]memoryItem{}, now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, id string) (Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok || !s.now().Before(it.expires) {
		delete(s.items, id)
		return Context{ID: id}, nil
	}
	return it.c.clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, c Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	c.UpdatedAt = now.UTC()
	s.items[c.ID] = memoryItem{c: c.clone(), expires: now.Add(s.ttl)}
	for id, it := range s.items {
		if !now.Before(it.expires) {
			delete(s.items, id)
		}
	}
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
	return nil
}
