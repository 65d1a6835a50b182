package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shopchat/shopchat-backend/internal/models"
	"github.com/shopchat/shopchat-backend/internal/repository"
)

type data struct {
	sessions      map[string]models.Session
	conversations map[string]models.Conversation
	messages      []models.Message
}

func (d data) clone() data {
	out := data{
		sessions:      make(map[string]models.Session, len(d.sessions)),
		conversations: make(map[string]models.Conversation, len(d.conversations)),
		messages:      append([]models.Message(nil), d.messages...),
	}
	for k, v := range d.sessions {
		out.sessions[k] = v
	}
	for k, v := range d.conversations {
		out.conversations[k] = v
	}
	return out
}

// Store is an in-process repository.Store. Nothing survives a restart.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	data data
}

func NewStore() *Store {
	return &Store{
		data: data{
			sessions:      make(map[string]models.Session),
			conversations: make(map[string]models.Conversation),
		},
	}
}

func (s *Store) Sessions() repository.SessionRepository           { return sessionRepo{s} }
func (s *Store) Conversations() repository.ConversationRepository { return conversationRepo{s} }
func (s *Store) Messages() repository.MessageRepository           { return messageRepo{s} }

// WithTx serializes transactions and restores the previous state when fn fails.
// Rollback restores the whole store snapshot taken when fn started, so writes
// made outside the transaction while it ran are discarded too. This is fine
// for tests and development but is not real isolation.
func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	err := fn(repository.Tx{
		Sessions:      s.Sessions(),
		Conversations: s.Conversations(),
		Messages:      s.Messages(),
	})
	if err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
	}
	return err
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

type sessionRepo struct{ s *Store }

func (r sessionRepo) Upsert(ctx context.Context, session models.Session) (*models.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := time.Now().UTC()
	existing, ok := r.s.data.sessions[session.SessionID]
	if ok {
		existing.LastActivity = now
		existing.UpdatedAt = now
		if session.Name != nil {
			existing.Name = session.Name
		}
		r.s.data.sessions[session.SessionID] = existing
		return &existing, nil
	}

	if session.StartedAt.IsZero() {
		session.StartedAt = now
	}
	session.LastActivity = now
	session.UpdatedAt = now
	r.s.data.sessions[session.SessionID] = session
	return &session, nil
}

func (r sessionRepo) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	session, ok := r.s.data.sessions[sessionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &session, nil
}

type conversationRepo struct{ s *Store }

func (r conversationRepo) Create(ctx context.Context, conversation models.Conversation) (*models.Conversation, error) {
	r.s.mu.Lock()
	if _, ok := r.s.data.conversations[conversation.ConversationID]; !ok {
		if conversation.StartedAt.IsZero() {
			conversation.StartedAt = time.Now().UTC()
		}
		conversation.LastUserMessage = nil
		r.s.data.conversations[conversation.ConversationID] = conversation
	}
	r.s.mu.Unlock()

	return r.Get(ctx, conversation.ConversationID)
}

func (r conversationRepo) Get(ctx context.Context, conversationID string) (*models.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	conversation, ok := r.s.data.conversations[conversationID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	r.s.withLastUserMessage(&conversation)
	return &conversation, nil
}

func (r conversationRepo) ListBySession(ctx context.Context, sessionID string) ([]models.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	conversations := []models.Conversation{}
	for _, c := range r.s.data.conversations {
		if c.SessionID != sessionID {
			continue
		}
		r.s.withLastUserMessage(&c)
		conversations = append(conversations, c)
	}
	sort.SliceStable(conversations, func(i, j int) bool {
		return conversations[i].StartedAt.After(conversations[j].StartedAt)
	})
	return conversations, nil
}

func (r conversationRepo) Latest(ctx context.Context, sessionID string) (*models.Conversation, error) {
	conversations, err := r.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(conversations) == 0 {
		return nil, repository.ErrNotFound
	}
	return &conversations[0], nil
}

// withLastUserMessage must be called with mu held.
func (s *Store) withLastUserMessage(c *models.Conversation) {
	var latest *models.Message
	for i := range s.data.messages {
		m := &s.data.messages[i]
		if m.ConversationID != c.ConversationID || m.Role != models.RoleUser {
			continue
		}
		if latest == nil || !m.Timestamp.Before(latest.Timestamp) {
			latest = m
		}
	}
	if latest != nil {
		content := latest.Content
		c.LastUserMessage = &content
	}
}

type messageRepo struct{ s *Store }

func (r messageRepo) Create(ctx context.Context, message models.Message) (*models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now().UTC()
	}
	if message.Type == "" {
		message.Type = models.TypeText
	}
	r.s.data.messages = append(r.s.data.messages, message)
	return &message, nil
}

func (r messageRepo) ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	return r.filter(func(m models.Message) bool { return m.ConversationID == conversationID }), nil
}

func (r messageRepo) ListBySession(ctx context.Context, sessionID string) ([]models.Message, error) {
	return r.filter(func(m models.Message) bool { return m.SessionID == sessionID }), nil
}

func (r messageRepo) DeleteByConversation(ctx context.Context, conversationID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	kept := r.s.data.messages[:0]
	var deleted int64
	for _, m := range r.s.data.messages {
		if m.ConversationID == conversationID {
			deleted++
			continue
		}
		kept = append(kept, m)
	}
	r.s.data.messages = kept
	return deleted, nil
}

func (r messageRepo) filter(keep func(models.Message) bool) []models.Message {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []models.Message{}
	for _, m := range r.s.data.messages {
		if keep(m) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
