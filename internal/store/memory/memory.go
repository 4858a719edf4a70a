// Package memory is an in-process store.Repository used by tests and by
// deployments that do not need durable conversations.
package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/nulzo/llm-gateway/internal/store"
	"github.com/nulzo/llm-gateway/internal/store/model"
)

type Repository struct {
	mu    sync.RWMutex
	convs map[string]*model.Conversation // key: userID + "/" + conversationID
	usage []model.UsageRecord
}

func NewRepository() *Repository {
	return &Repository{convs: make(map[string]*model.Conversation)}
}

func (r *Repository) Conversations() store.ConversationRepository { return (*conversationRepo)(r) }
func (r *Repository) Usage() store.UsageRepository                { return (*usageRepo)(r) }
func (r *Repository) Close() error                                { return nil }

func key(userID, conversationID string) string { return userID + "/" + conversationID }

type conversationRepo Repository

func (r *conversationRepo) Exists(ctx context.Context, userID, conversationID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.convs[key(userID, conversationID)]
	return ok, nil
}

func (r *conversationRepo) Create(ctx context.Context, conv *model.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *conv
	cp.Messages = nil
	r.convs[key(conv.UserID, conv.ConversationID)] = &cp
	return nil
}

func (r *conversationRepo) Get(ctx context.Context, userID, conversationID string) (*model.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conv, ok := r.convs[key(userID, conversationID)]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *conv
	cp.Messages = make([]model.ConversationMessage, len(conv.Messages))
	copy(cp.Messages, conv.Messages)
	return &cp, nil
}

func (r *conversationRepo) AddMessages(ctx context.Context, userID, conversationID string, msgs []model.ConversationMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.convs[key(userID, conversationID)]
	if !ok {
		return store.ErrNotFound
	}
	now := time.Now().UTC()
	for _, m := range msgs {
		m.UserID = userID
		m.ConversationID = conversationID
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		conv.Messages = append(conv.Messages, m)
	}
	conv.UpdatedAt = now
	return nil
}

func (r *conversationRepo) List(ctx context.Context, userID string, limit int, pageToken string) ([]model.Conversation, string, error) {
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if pageToken != "" {
		if n, err := strconv.Atoi(pageToken); err == nil && n > 0 {
			offset = n
		}
	}

	r.mu.RLock()
	var all []model.Conversation
	for _, c := range r.convs {
		if c.UserID == userID {
			all = append(all, *c)
		}
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].UpdatedAt.After(all[j].UpdatedAt) })

	if offset >= len(all) {
		return nil, "", nil
	}
	end := offset + limit
	next := ""
	if end < len(all) {
		next = strconv.Itoa(end)
	} else {
		end = len(all)
	}
	return all[offset:end], next, nil
}

func (r *conversationRepo) Delete(ctx context.Context, userID, conversationID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(userID, conversationID)
	if _, ok := r.convs[k]; !ok {
		return false, nil
	}
	delete(r.convs, k)
	return true, nil
}

type usageRepo Repository

func (r *usageRepo) Insert(ctx context.Context, rec *model.UsageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.usage = append(r.usage, *rec)
	return nil
}

func (r *usageRepo) GetRecent(ctx context.Context, userID string, limit int) ([]model.UsageRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.UsageRecord
	for i := len(r.usage) - 1; i >= 0 && len(out) < limit; i-- {
		if r.usage[i].UserID == userID {
			out = append(out, r.usage[i])
		}
	}
	return out, nil
}
