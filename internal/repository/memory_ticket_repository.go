package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/ticket-router/internal/domain"
)

// memoryTicketRepository backs the dashboard when no Postgres DSN is configured.
type memoryTicketRepository struct {
	mu      sync.RWMutex
	records map[string]domain.TicketRecord
	now     func() time.Time
}

// NewMemoryTicketRepository returns an in-process TicketRepository.
func NewMemoryTicketRepository() TicketRepository {
	return &memoryTicketRepository{
		records: make(map[string]domain.TicketRecord),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *memoryTicketRepository) Create(_ context.Context, record *domain.TicketRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prepareForCreate(record)
	if _, exists := r.records[record.ID]; exists {
		return fmt.Errorf("ticket %s already exists", record.ID)
	}
	now := r.now()
	record.CreatedAt, record.UpdatedAt = now, now
	r.records[record.ID] = cloneRecord(*record)
	return nil
}

func (r *memoryTicketRepository) Update(_ context.Context, record *domain.TicketRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.records[record.ID]
	if !ok {
		return notFound(record.ID)
	}
	updated := cloneRecord(*record)
	updated.Body = existing.Body
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = r.now()
	r.records[record.ID] = updated
	record.UpdatedAt = updated.UpdatedAt
	return nil
}

func (r *memoryTicketRepository) GetByID(_ context.Context, id string) (*domain.TicketRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.records[id]
	if !ok {
		return nil, notFound(id)
	}
	out := cloneRecord(record)
	return &out, nil
}

func (r *memoryTicketRepository) ListWithFilter(_ context.Context, filter TicketFilter) ([]domain.TicketRecord, error) {
	r.mu.RLock()
	matched := []domain.TicketRecord{}
	for _, record := range r.records {
		if matches(record, filter) {
			matched = append(matched, cloneRecord(record))
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].UpdatedAt.Equal(matched[j].UpdatedAt) {
			return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	limit, offset := pageBounds(filter)
	if offset >= len(matched) {
		return []domain.TicketRecord{}, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (r *memoryTicketRepository) ListUnclassified(_ context.Context, limit int) ([]domain.TicketRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	r.mu.RLock()
	matched := []domain.TicketRecord{}
	for _, record := range r.records {
		if record.Status == domain.TicketStatusPending || !record.Classified() {
			matched = append(matched, cloneRecord(record))
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func matches(record domain.TicketRecord, filter TicketFilter) bool {
	if len(filter.Statuses) > 0 && !contains(filter.Statuses, record.Status) {
		return false
	}
	if len(filter.Priorities) > 0 && !contains(filter.Priorities, record.Priority) {
		return false
	}
	if filter.Tag != nil && !contains(record.TopicTags, *filter.Tag) {
		return false
	}
	if filter.Route != nil && record.Route != *filter.Route {
		return false
	}
	return true
}

func contains[T comparable](values []T, v T) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func cloneRecord(record domain.TicketRecord) domain.TicketRecord {
	record.TopicTags = append([]domain.TopicTag(nil), record.TopicTags...)
	record.Sources = append([]string(nil), record.Sources...)
	return record
}
