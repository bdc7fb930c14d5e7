package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-router/internal/domain"
	apperrors "github.com/spec-kit/ticket-router/pkg/util/errorutil"
)

const defaultListLimit = 20

// TicketFilter captures dashboard search parameters.
type TicketFilter struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.Priority
	Tag        *domain.TopicTag
	Route      *domain.RouteName
	Limit      int
	Offset     int
}

// TicketRepository encapsulates ticket record persistence.
type TicketRepository interface {
	Create(ctx context.Context, record *domain.TicketRecord) error
	Update(ctx context.Context, record *domain.TicketRecord) error
	GetByID(ctx context.Context, id string) (*domain.TicketRecord, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.TicketRecord, error)
	// ListUnclassified returns pending records and records without tags, oldest first.
	ListUnclassified(ctx context.Context, limit int) ([]domain.TicketRecord, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the Postgres repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const recordColumns = `id, subject, body, topic_tags, sentiment, priority, status, route, collection,
               answer, sources, error, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, record *domain.TicketRecord) error {
	prepareForCreate(record)
	const query = `
        INSERT INTO ticket_records (id, subject, body, topic_tags, sentiment, priority, status, route, collection, answer, sources, error)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        RETURNING created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		record.ID,
		record.Subject,
		record.Body,
		tagStrings(record.TopicTags),
		record.Sentiment,
		record.Priority,
		record.Status,
		record.Route,
		record.Collection,
		record.Answer,
		nonNil(record.Sources),
		record.Error,
	).Scan(&record.CreatedAt, &record.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, record *domain.TicketRecord) error {
	const query = `
        UPDATE ticket_records SET subject=$1, topic_tags=$2, sentiment=$3, priority=$4, status=$5,
            route=$6, collection=$7, answer=$8, sources=$9, error=$10, updated_at=NOW()
        WHERE id=$11
        RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		record.Subject,
		tagStrings(record.TopicTags),
		record.Sentiment,
		record.Priority,
		record.Status,
		record.Route,
		record.Collection,
		record.Answer,
		nonNil(record.Sources),
		record.Error,
		record.ID,
	).Scan(&record.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound(record.ID)
	}
	return err
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.TicketRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM ticket_records WHERE id=$1`
	record, err := scanRecord(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.TicketRecord, error) {
	query, args := buildListQuery(filter)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (r *ticketRepository) ListUnclassified(ctx context.Context, limit int) ([]domain.TicketRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	query := fmt.Sprintf(`SELECT %s FROM ticket_records
             WHERE status=$1 OR cardinality(topic_tags)=0
             ORDER BY created_at ASC, id ASC LIMIT %d`, recordColumns, limit)
	rows, err := r.pool.Query(ctx, query, domain.TicketStatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

func buildListQuery(filter TicketFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Tag != nil {
		args = append(args, string(*filter.Tag))
		clauses = append(clauses, fmt.Sprintf("$%d = ANY(topic_tags)", len(args)))
	}
	if filter.Route != nil {
		args = append(args, *filter.Route)
		clauses = append(clauses, fmt.Sprintf("route=$%d", len(args)))
	}

	limit, offset := pageBounds(filter)
	query := fmt.Sprintf(`SELECT %s FROM ticket_records WHERE %s ORDER BY updated_at DESC, id DESC LIMIT %d OFFSET %d`,
		recordColumns, strings.Join(clauses, " AND "), limit, offset)
	return query, args
}

func pageBounds(filter TicketFilter) (int, int) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func scanRecord(row pgx.Row) (*domain.TicketRecord, error) {
	var (
		record domain.TicketRecord
		tags   []string
	)
	if err := row.Scan(
		&record.ID,
		&record.Subject,
		&record.Body,
		&tags,
		&record.Sentiment,
		&record.Priority,
		&record.Status,
		&record.Route,
		&record.Collection,
		&record.Answer,
		&record.Sources,
		&record.Error,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return nil, err
	}
	record.TopicTags = topicTags(tags)
	return &record, nil
}

func scanRecords(rows pgx.Rows) ([]domain.TicketRecord, error) {
	result := []domain.TicketRecord{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *record)
	}
	return result, rows.Err()
}

func prepareForCreate(record *domain.TicketRecord) {
	if record.ID == "" {
		record.ID = domain.NewTicketID()
	}
	if record.Status == "" {
		record.Status = domain.TicketStatusPending
	}
}

func notFound(id string) error {
	return apperrors.NewNotFound("ticket", map[string]any{"id": id})
}

func tagStrings(tags []domain.TopicTag) []string {
	out := make([]string, len(tags))
	for i, tag := range tags {
		out[i] = string(tag)
	}
	return out
}

func topicTags(tags []string) []domain.TopicTag {
	out := make([]domain.TopicTag, len(tags))
	for i, tag := range tags {
		out[i] = domain.TopicTag(tag)
	}
	return out
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
