package search

import (
	"context"
	"log/slog"

	"advisory/api/internal/advisory"
	"advisory/api/internal/logging"
	"advisory/api/internal/store"
)

// QuestionSource is the relational side of search: hydration of index hits
// and the ILIKE fallback when the index is unavailable.
type QuestionSource interface {
	GetQuestionsByIDs(ctx context.Context, scope store.ListScope, ids []string) ([]store.QuestionWithAnswer, error)
	ListQuestions(ctx context.Context, scope store.ListScope, filter advisory.Filter) (store.QuestionPage, error)
	ListAllQuestions(ctx context.Context, scope store.ListScope, filter advisory.Filter) ([]store.QuestionWithAnswer, error)
}

// indexer is the write side of Meili, narrowed for tests.
type indexer interface {
	Searcher
	IndexQuestions(records []QuestionRecord) error
	DeleteQuestion(id string) error
}

// Service tries Meilisearch first and falls back to the SQL filter.
type Service struct {
	index  indexer
	source QuestionSource
	logger *slog.Logger
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, source QuestionSource, logger *slog.Logger) *Service {
	s := &Service{source: source, logger: logging.Discard()}
	if logger != nil {
		s.logger = logger.With("component", "search")
	}
	if meili != nil {
		s.index = meili
	}
	return s
}

func (s *Service) available() bool {
	return s.index != nil && s.index.Healthy()
}

// Search runs a page of results for filter.Search, optionally narrowed by
// filter.Status. Ownership is applied again when hits are loaded from the
// database.
func (s *Service) Search(ctx context.Context, scope store.ListScope, filter advisory.Filter) (Response, error) {
	filter = advisory.Filter{Search: filter.Search, Status: filter.Status, Page: filter.Page}.Normalize()

	if s.available() {
		q := Query{
			Text:    filter.Search,
			OwnerID: scope.OwnerID,
			Limit:   advisory.PageSize,
			Offset:  filter.Offset(),
		}
		if filter.Status != advisory.StatusAll {
			q.Status = string(filter.Status)
		}
		ids, total, err := s.index.Search(q)
		if err == nil {
			questions, err := s.source.GetQuestionsByIDs(ctx, scope, ids)
			if err != nil {
				return Response{}, err
			}
			return Response{
				Questions:  questions,
				TotalCount: total,
				TotalPages: advisory.TotalPages(total),
				Page:       filter.Page,
				Query:      filter.Search,
				Source:     SourceMeili,
			}, nil
		}
		s.logger.WarnContext(ctx, "meilisearch error, falling back to sql", "error", err)
	}

	result, err := s.source.ListQuestions(ctx, scope, filter)
	if err != nil {
		return Response{}, err
	}
	return Response{
		Questions:  result.Items,
		TotalCount: result.TotalCount,
		TotalPages: result.TotalPages,
		Page:       result.Page,
		Query:      filter.Search,
		Source:     SourceSQL,
	}, nil
}

// IndexQuestion pushes the current state of a question. Failures are logged
// only; callers that must not block run it in the background.
func (s *Service) IndexQuestion(ctx context.Context, q store.QuestionWithAnswer) {
	if !s.available() {
		return
	}
	record := RecordFromQuestion(q)
	if err := s.index.IndexQuestions([]QuestionRecord{record}); err != nil {
		s.logger.WarnContext(ctx, "index question failed", "question_id", record.ID, "error", err)
	}
}

// DeleteQuestion removes a question from the index. Failures are logged only.
func (s *Service) DeleteQuestion(ctx context.Context, id string) {
	if !s.available() {
		return
	}
	if err := s.index.DeleteQuestion(id); err != nil {
		s.logger.WarnContext(ctx, "delete question from index failed", "question_id", id, "error", err)
	}
}

// ReindexAll loads every question from the database and pushes it to the index.
func (s *Service) ReindexAll(ctx context.Context) (int, error) {
	if !s.available() {
		return 0, nil
	}
	questions, err := s.source.ListAllQuestions(ctx, store.ListScope{}, advisory.Filter{})
	if err != nil {
		return 0, err
	}
	records := make([]QuestionRecord, 0, len(questions))
	for _, q := range questions {
		records = append(records, RecordFromQuestion(q))
	}
	if err := s.index.IndexQuestions(records); err != nil {
		return 0, err
	}
	return len(records), nil
}
