package sqlite

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nulzo/llm-gateway/internal/store"
	"github.com/nulzo/llm-gateway/internal/store/model"
)

// SqliteRepository implements store.Repository.
type SqliteRepository struct {
	db *sqlx.DB
}

func NewSqliteRepository(db *sqlx.DB) *SqliteRepository {
	return &SqliteRepository{db: db}
}

func (r *SqliteRepository) Close() error {
	return r.db.Close()
}

func (r *SqliteRepository) Conversations() store.ConversationRepository {
	return &conversationRepo{db: r.db}
}

func (r *SqliteRepository) Usage() store.UsageRepository {
	return &usageRepo{db: r.db}
}

type conversationRepo struct {
	db *sqlx.DB
}

func (r *conversationRepo) Exists(ctx context.Context, userID, conversationID string) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(1) FROM conversations WHERE user_id = ? AND conversation_id = ?`,
		userID, conversationID)
	return n > 0, err
}

func (r *conversationRepo) Create(ctx context.Context, conv *model.Conversation) error {
	query := `
	INSERT INTO conversations (user_id, conversation_id, title, created_at, updated_at)
	VALUES (:user_id, :conversation_id, :title, :created_at, :updated_at)`
	_, err := r.db.NamedExecContext(ctx, query, conv)
	return err
}

func (r *conversationRepo) Get(ctx context.Context, userID, conversationID string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.GetContext(ctx, &conv,
		`SELECT user_id, conversation_id, title, created_at, updated_at
		 FROM conversations WHERE user_id = ? AND conversation_id = ?`,
		userID, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	err = r.db.SelectContext(ctx, &conv.Messages,
		`SELECT id, user_id, conversation_id, role, content, metadata, created_at
		 FROM conversation_messages
		 WHERE user_id = ? AND conversation_id = ?
		 ORDER BY id`,
		userID, conversationID)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// AddMessages appends the batch inside one transaction so a concurrent
// reader sees either all of the exchange or none of it.
func (r *conversationRepo) AddMessages(ctx context.Context, userID, conversationID string, msgs []model.ConversationMessage) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for i := range msgs {
		msgs[i].UserID = userID
		msgs[i].ConversationID = conversationID
		if msgs[i].CreatedAt.IsZero() {
			msgs[i].CreatedAt = now
		}
		_, err = tx.NamedExecContext(ctx, `
		INSERT INTO conversation_messages (user_id, conversation_id, role, content, metadata, created_at)
		VALUES (:user_id, :conversation_id, :role, :content, :metadata, :created_at)`, msgs[i])
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE user_id = ? AND conversation_id = ?`,
		now, userID, conversationID)
	if err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

func (r *conversationRepo) List(ctx context.Context, userID string, limit int, pageToken string) ([]model.Conversation, string, error) {
	if limit <= 0 {
		limit = 20
	}
	offset := decodeToken(pageToken)

	var convs []model.Conversation
	err := r.db.SelectContext(ctx, &convs,
		`SELECT user_id, conversation_id, title, created_at, updated_at
		 FROM conversations WHERE user_id = ?
		 ORDER BY updated_at DESC
		 LIMIT ? OFFSET ?`,
		userID, limit+1, offset)
	if err != nil {
		return nil, "", err
	}

	next := ""
	if len(convs) > limit {
		convs = convs[:limit]
		next = encodeToken(offset + limit)
	}
	return convs, next, nil
}

func (r *conversationRepo) Delete(ctx context.Context, userID, conversationID string) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM conversation_messages WHERE user_id = ? AND conversation_id = ?`,
		userID, conversationID)
	if err != nil {
		_ = tx.Rollback()
		return false, err
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM conversations WHERE user_id = ? AND conversation_id = ?`,
		userID, conversationID)
	if err != nil {
		_ = tx.Rollback()
		return false, err
	}

	n, _ := res.RowsAffected()
	return n > 0, tx.Commit()
}

// Page tokens are opaque to callers; internally they are just offsets.
func encodeToken(offset int) string {
	return base64.StdEncoding.EncodeToString([]byte(strconv.Itoa(offset)))
}

func decodeToken(token string) int {
	if token == "" {
		return 0
	}
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

type usageRepo struct {
	db *sqlx.DB
}

func (r *usageRepo) Insert(ctx context.Context, rec *model.UsageRecord) error {
	query := `
	INSERT INTO usage_records (
		request_id, user_id, conversation_id, model_id, provider,
		tokens_in, tokens_out, start_time, end_time, duration_ms,
		source, success, error)
	VALUES (
		:request_id, :user_id, :conversation_id, :model_id, :provider,
		:tokens_in, :tokens_out, :start_time, :end_time, :duration_ms,
		:source, :success, :error)`
	_, err := r.db.NamedExecContext(ctx, query, rec)
	return err
}

func (r *usageRepo) GetRecent(ctx context.Context, userID string, limit int) ([]model.UsageRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var recs []model.UsageRecord
	err := r.db.SelectContext(ctx, &recs,
		`SELECT * FROM usage_records WHERE user_id = ?
		 ORDER BY start_time DESC LIMIT ?`,
		userID, limit)
	return recs, err
}
