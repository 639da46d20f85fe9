package smartrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/asdrp/smartrouter/core"
	"github.com/go-redis/redis/v8"
)

// SessionMessage is one entry in a conversation's append-only message
// log.
type SessionMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	AgentID   string    `json:"agent_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionStore is the cross-agent conversation memory contract
// (spec.md §9): every agent invoked within one route_query call, and
// across successive calls sharing a session id, reads and writes the
// same message log. Implementations must never derive per-agent
// sub-session ids — doing so silently breaks multi-turn references.
type SessionStore interface {
	Append(ctx context.Context, sessionID string, msg SessionMessage) error
	History(ctx context.Context, sessionID string) ([]SessionMessage, error)
}

// sessionHistoryKey is the context key the Orchestrator uses to hand the
// session's loaded history down to every AgentInvoker call for the
// current route_query, since AgentInvoker only carries a session id
// string across that boundary.
type sessionHistoryKey struct{}

// WithSessionHistory attaches a session's message log to ctx so an
// AgentInvoker can read shared cross-agent context (spec.md §9) without
// its own SessionStore handle.
func WithSessionHistory(ctx context.Context, history []SessionMessage) context.Context {
	return context.WithValue(ctx, sessionHistoryKey{}, history)
}

// SessionHistoryFromContext returns the history attached by
// WithSessionHistory, or nil if none was attached.
func SessionHistoryFromContext(ctx context.Context) []SessionMessage {
	history, _ := ctx.Value(sessionHistoryKey{}).([]SessionMessage)
	return history
}

// memorySessionStore is the default, process-lifetime-only SessionStore,
// backed by core.Memory (core.InMemoryStore by default). Selected
// whenever Config.SessionPath is unset (see SPEC_FULL.md Supplemented
// Features).
type memorySessionStore struct {
	mu    sync.Mutex
	store core.Memory
}

// NewMemorySessionStore wraps a core.Memory implementation as a
// SessionStore. Pass core.NewInMemoryStore() for a private, per-process
// store.
func NewMemorySessionStore(store core.Memory) SessionStore {
	if store == nil {
		store = core.NewInMemoryStore()
	}
	return &memorySessionStore{store: store}
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("smartrouter:session:%s", sessionID)
}

func (s *memorySessionStore) Append(ctx context.Context, sessionID string, msg SessionMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, err := s.loadLocked(ctx, sessionID)
	if err != nil {
		return err
	}
	history = append(history, msg)

	encoded, err := json.Marshal(history)
	if err != nil {
		return WrapError(KindConfigError, "failed to encode session history", map[string]interface{}{"session_id": sessionID}, err)
	}
	return s.store.Set(ctx, sessionKey(sessionID), string(encoded), 0)
}

func (s *memorySessionStore) History(ctx context.Context, sessionID string) ([]SessionMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx, sessionID)
}

func (s *memorySessionStore) loadLocked(ctx context.Context, sessionID string) ([]SessionMessage, error) {
	raw, err := s.store.Get(ctx, sessionKey(sessionID))
	if err != nil {
		return nil, WrapError(KindConfigError, "failed to load session history", map[string]interface{}{"session_id": sessionID}, err)
	}
	if raw == "" {
		return nil, nil
	}
	var history []SessionMessage
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		return nil, WrapError(KindConfigError, "failed to decode session history", map[string]interface{}{"session_id": sessionID}, err)
	}
	return history, nil
}

// redisSessionStore is the durable SessionStore backend selected when
// Config.SessionPath names a Redis URL, grounded in
// core/redis_client.go's connection handling. Keys are
// "smartrouter:session:<id>" with an optional TTL, so conversation state survives a
// process restart while still aging out (spec.md §5's durability
// requirement for the session store alone).
type redisSessionStore struct {
	client *core.RedisClient
	ttl    time.Duration
}

// NewRedisSessionStore constructs a SessionStore backed by Redis.
// entryTTL of zero means entries never expire.
func NewRedisSessionStore(redisURL string, entryTTL time.Duration, logger core.Logger) (SessionStore, error) {
	client, err := core.NewRedisClient(core.RedisClientOptions{
		RedisURL: redisURL,
		Logger:   logger,
	})
	if err != nil {
		return nil, WrapError(KindConfigError, "failed to connect to redis session store", map[string]interface{}{"redis_url": redisURL}, err)
	}
	return &redisSessionStore{client: client, ttl: entryTTL}, nil
}

func (s *redisSessionStore) Append(ctx context.Context, sessionID string, msg SessionMessage) error {
	history, err := s.History(ctx, sessionID)
	if err != nil {
		return err
	}
	history = append(history, msg)

	encoded, err := json.Marshal(history)
	if err != nil {
		return WrapError(KindConfigError, "failed to encode session history", map[string]interface{}{"session_id": sessionID}, err)
	}
	return s.client.Set(ctx, sessionKey(sessionID), string(encoded), s.ttl)
}

func (s *redisSessionStore) History(ctx context.Context, sessionID string) ([]SessionMessage, error) {
	raw, err := s.client.Get(ctx, sessionKey(sessionID))
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, WrapError(KindConfigError, "failed to load session history", map[string]interface{}{"session_id": sessionID}, err)
	}
	if raw == "" {
		return nil, nil
	}
	var history []SessionMessage
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		return nil, WrapError(KindConfigError, "failed to decode session history", map[string]interface{}{"session_id": sessionID}, err)
	}
	return history, nil
}
