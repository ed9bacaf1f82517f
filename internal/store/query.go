package store

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"advisory/api/internal/advisory"
)

// listQuery holds a WHERE clause and its positional arguments. Every user
// supplied value travels as an argument, never as SQL text.
type listQuery struct {
	clauses []string
	args    []any
}

func (q *listQuery) add(format string, value any) {
	q.args = append(q.args, value)
	n := len(q.args)
	q.clauses = append(q.clauses, strings.ReplaceAll(format, "?", fmt.Sprintf("$%d", n)))
}

func (q *listQuery) where() string {
	if len(q.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.clauses, " AND ")
}

func buildListQuery(scope ListScope, f advisory.Filter) listQuery {
	var q listQuery
	if scope.OwnerID != "" {
		q.add("q.user_id = ?", scope.OwnerID)
	}
	if f.Status != "" && f.Status != advisory.StatusAll {
		q.add("q.status = ?", string(f.Status))
	}
	if f.Search != "" {
		q.add("(q.divisi_instansi ILIKE ? OR q.nama_pemohon ILIKE ? OR q.unit_bisnis ILIKE ? OR q.data_informasi ILIKE ?)",
			"%"+escapeLike(f.Search)+"%")
	}
	if f.DateFrom != nil {
		q.add("q.tanggal_permohonan >= ?", *f.DateFrom)
	}
	if f.DateTo != nil {
		// inclusive of the whole end day
		q.add("q.tanggal_permohonan < ?", f.DateTo.AddDate(0, 0, 1))
	}
	return q
}

func orderClause(sortBy advisory.SortOrder) string {
	if sortBy == advisory.SortOldest {
		return " ORDER BY q.tanggal_permohonan ASC, q.id ASC"
	}
	return " ORDER BY q.tanggal_permohonan DESC, q.id DESC"
}

func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
}

// ListQuestions returns one page of questions and the total match count.
// Count and page queries run concurrently.
func (s *PostgresStore) ListQuestions(ctx context.Context, scope ListScope, filter advisory.Filter) (QuestionPage, error) {
	filter = filter.Normalize()
	q := buildListQuery(scope, filter)

	var (
		total int
		rows  []questionAnswerRow
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.db.GetContext(gctx, &total, `SELECT COUNT(*) FROM questions q`+q.where(), q.args...); err != nil {
			return fmt.Errorf("count questions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		args := append(append([]any{}, q.args...), advisory.PageSize, filter.Offset())
		query := fmt.Sprintf("%s%s%s LIMIT $%d OFFSET $%d",
			questionAnswerSelect, q.where(), orderClause(filter.SortBy), len(args)-1, len(args))
		if err := s.db.SelectContext(gctx, &rows, query, args...); err != nil {
			return fmt.Errorf("list questions: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return QuestionPage{}, err
	}

	items := make([]QuestionWithAnswer, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toModel())
	}
	return QuestionPage{
		Items:      items,
		TotalCount: total,
		TotalPages: advisory.TotalPages(total),
		Page:       filter.Page,
	}, nil
}

// ListAllQuestions applies the same filter without paging, for exports and
// index rebuilds.
func (s *PostgresStore) ListAllQuestions(ctx context.Context, scope ListScope, filter advisory.Filter) ([]QuestionWithAnswer, error) {
	filter = filter.Normalize()
	q := buildListQuery(scope, filter)
	var rows []questionAnswerRow
	if err := s.db.SelectContext(ctx, &rows, questionAnswerSelect+q.where()+orderClause(filter.SortBy), q.args...); err != nil {
		return nil, fmt.Errorf("list all questions: %w", err)
	}
	items := make([]QuestionWithAnswer, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toModel())
	}
	return items, nil
}

func joinIDs(ids []string) string {
	return strings.Join(ids, ",")
}
