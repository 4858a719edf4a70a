package metrics

import (
	"context"
	"time"

	"github.com/nulzo/llm-gateway/internal/store"
	"github.com/nulzo/llm-gateway/internal/store/model"
	"go.uber.org/zap"
)

// StoreSink buffers usage records and persists them to the store
// asynchronously, so a slow database never sits on the request path.
// When the buffer is full the record is dropped, not blocked on.
type StoreSink struct {
	logger    *zap.Logger
	repo      store.Repository
	recChan   chan *model.UsageRecord
	batchSize int
	flushTime time.Duration
}

func NewStoreSink(logger *zap.Logger, repo store.Repository) *StoreSink {
	return &StoreSink{
		logger:    logger,
		repo:      repo,
		recChan:   make(chan *model.UsageRecord, 10000),
		batchSize: 50,
		flushTime: 5 * time.Second,
	}
}

func (s *StoreSink) Name() string { return "store" }

func (s *StoreSink) Push(ctx context.Context, rec *model.UsageRecord) error {
	select {
	case s.recChan <- rec:
	default:
		s.logger.Warn("usage buffer full, dropping record",
			zap.String("request_id", rec.RequestID))
	}
	return nil
}

// Start launches the background worker. Stop closes the intake channel and
// lets the worker drain.
func (s *StoreSink) Start(ctx context.Context) {
	go s.worker(ctx)
}

func (s *StoreSink) Stop() {
	close(s.recChan)
}

func (s *StoreSink) worker(ctx context.Context) {
	batch := make([]*model.UsageRecord, 0, s.batchSize)
	ticker := time.NewTicker(s.flushTime)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		for _, rec := range batch {
			if err := s.repo.Usage().Insert(context.Background(), rec); err != nil {
				s.logger.Error("failed to persist usage record",
					zap.String("request_id", rec.RequestID),
					zap.Error(err))
			}
		}
		batch = batch[:0]
	}

	for {
		select {
		case rec, ok := <-s.recChan:
			if !ok {
				flush()
				return
			}
			batch = append(batch, rec)
			if len(batch) >= s.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			flush()
			return
		}
	}
}
