package nlquery

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/diwise/iot-fleet-monitor/internal/pkg/infrastructure/logging"
	"github.com/diwise/iot-fleet-monitor/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/iot-fleet-monitor/pkg/types"
)

var ErrNotConfigured = fmt.Errorf("natural language queries are not configured")
var ErrUnsafeStatement = fmt.Errorf("unsafe sql statement")
var ErrQueryFailed = fmt.Errorf("query execution failed")

// QueryService turns natural language questions into SQL, executes the
// statement read only against the store and explains the result.
type QueryService interface {
	Query(ctx context.Context, question string) (types.QueryResult, error)
	Examples() []ExampleCategory
}

func New(llm ChatCompleter, querier database.RawQuerier, validateWithLLM bool) QueryService {
	return &service{
		llm:             llm,
		querier:         querier,
		validateWithLLM: validateWithLLM,
	}
}

type service struct {
	llm             ChatCompleter
	querier         database.RawQuerier
	validateWithLLM bool
}

func (s *service) Query(ctx context.Context, question string) (types.QueryResult, error) {
	if s.llm == nil {
		return types.QueryResult{}, ErrNotConfigured
	}

	log := logging.GetFromContext(ctx)

	sql, err := s.generateSQL(ctx, question)
	if err != nil {
		return types.QueryResult{}, err
	}

	err = validateStatement(sql)
	if err != nil {
		return types.QueryResult{}, err
	}

	if s.validateWithLLM {
		err = s.validateWithModel(ctx, sql)
		if err != nil {
			return types.QueryResult{}, err
		}
	}

	log.Debug().Str("sql", sql).Msg("executing generated statement")

	rows, err := s.querier.SelectRows(ctx, sql)
	if err != nil {
		return types.QueryResult{}, fmt.Errorf("%w: %s", ErrQueryFailed, err.Error())
	}

	explanation, err := s.explain(ctx, question, rows)
	if err != nil {
		return types.QueryResult{}, err
	}

	return types.QueryResult{
		Query:       question,
		SQL:         sql,
		ResultCount: len(rows),
		Results:     rows,
		Explanation: explanation,
	}, nil
}

func (s *service) Examples() []ExampleCategory {
	return exampleQueries
}

func (s *service) generateSQL(ctx context.Context, question string) (string, error) {
	completion, err := s.llm.Complete(ctx, fmt.Sprintf(sqlGenerationSystemPrompt, databaseSchema), question)
	if err != nil {
		return "", err
	}

	return stripFences(completion), nil
}

var fencePattern = regexp.MustCompile("```(?:sql)?\n?")

func stripFences(completion string) string {
	return strings.TrimSpace(fencePattern.ReplaceAllString(completion, ""))
}

// word boundaries so that column names such as created_at do not trip
// the CREATE keyword
var forbiddenKeywords = regexp.MustCompile(`(?i)\b(drop|delete|update|insert|alter|create|truncate|grant|revoke)\b`)

func validateStatement(sql string) error {
	trimmed := strings.TrimSpace(sql)

	if match := forbiddenKeywords.FindString(trimmed); match != "" {
		return fmt.Errorf("%w: %s not allowed", ErrUnsafeStatement, strings.ToUpper(match))
	}

	if !strings.HasPrefix(strings.ToLower(trimmed), "select") {
		return fmt.Errorf("%w: only SELECT queries are allowed", ErrUnsafeStatement)
	}

	if strings.Contains(strings.TrimSuffix(trimmed, ";"), ";") {
		return fmt.Errorf("%w: multiple statements are not allowed", ErrUnsafeStatement)
	}

	return nil
}

func (s *service) validateWithModel(ctx context.Context, sql string) error {
	verdict, err := s.llm.Complete(ctx, fmt.Sprintf(sqlValidationPrompt, sql), sql)
	if err != nil {
		return err
	}

	if !strings.HasPrefix(verdict, "SAFE") {
		return fmt.Errorf("%w: %s", ErrUnsafeStatement, verdict)
	}

	return nil
}

const explanationPreviewSize = 5

func (s *service) explain(ctx context.Context, question string, rows []map[string]any) (string, error) {
	preview := rows
	if len(preview) > explanationPreviewSize {
		preview = preview[:explanationPreviewSize]
	}

	previewJSON, err := json.Marshal(preview)
	if err != nil {
		return "", err
	}

	explanation, err := s.llm.Complete(ctx, fmt.Sprintf(responseFormattingPrompt, question, string(previewJSON)), question)
	if err != nil {
		return "", err
	}

	if len(rows) > explanationPreviewSize {
		explanation += fmt.Sprintf("\n\nNote: Showing summary of %d total results.", len(rows))
	}

	return explanation, nil
}
