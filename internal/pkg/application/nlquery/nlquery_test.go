package nlquery

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/diwise/iot-fleet-monitor/internal/pkg/infrastructure/repositories/database"
	"github.com/matryer/is"
)

type completerMock struct {
	responses []string
	calls     int
}

func (m *completerMock) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	response := m.responses[m.calls]
	m.calls++
	return response, nil
}

type querierMock struct {
	rows    []map[string]any
	queries []string
}

func (m *querierMock) SelectRows(ctx context.Context, query string) ([]map[string]any, error) {
	m.queries = append(m.queries, query)
	return m.rows, nil
}

func TestQueryReturnsSQLResultsAndExplanation(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	llm := &completerMock{responses: []string{
		"```sql\nSELECT id, name FROM devices LIMIT 100;\n```",
		"There are two devices in the fleet.",
	}}
	querier := &querierMock{rows: []map[string]any{
		{"id": int64(1), "name": "sensor-01"},
		{"id": int64(2), "name": "sensor-02"},
	}}

	result, err := New(llm, querier, false).Query(ctx, "Show all devices")
	is.NoErr(err)

	is.Equal("Show all devices", result.Query)
	is.Equal("SELECT id, name FROM devices LIMIT 100;", result.SQL)
	is.Equal(2, result.ResultCount)
	is.Equal("There are two devices in the fleet.", result.Explanation)
	is.Equal(1, len(querier.queries))
}

func TestQueryAgainstDatabase(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	db, err := database.Connect(database.NewSQLiteConnector(ctx))
	is.NoErr(err)

	devices := database.NewDeviceRepository(db)
	is.NoErr(devices.Save(ctx, &database.Device{Name: "sensor-01", Location: "lab", Active: true}))

	llm := &completerMock{responses: []string{
		"SELECT name, location FROM devices",
		"One device named sensor-01 is registered in the lab.",
	}}

	result, err := New(llm, database.NewRawQuerier(db), false).Query(ctx, "Show all devices")
	is.NoErr(err)
	is.Equal(1, result.ResultCount)
	is.Equal("sensor-01", result.Results[0]["name"])
}

func TestNonSelectStatementIsRejectedAndNeverExecuted(t *testing.T) {
	is := is.New(t)

	llm := &completerMock{responses: []string{"DROP TABLE devices"}}
	querier := &querierMock{}

	_, err := New(llm, querier, false).Query(context.Background(), "remove everything")
	is.True(errors.Is(err, ErrUnsafeStatement))
	is.Equal(0, len(querier.queries))
}

func TestMultipleStatementsAreRejected(t *testing.T) {
	is := is.New(t)

	llm := &completerMock{responses: []string{"SELECT 1; SELECT 2;"}}
	querier := &querierMock{}

	_, err := New(llm, querier, false).Query(context.Background(), "two statements")
	is.True(errors.Is(err, ErrUnsafeStatement))
	is.Equal(0, len(querier.queries))
}

func TestColumnNamesDoNotTripKeywordCheck(t *testing.T) {
	is := is.New(t)
	is.NoErr(validateStatement("SELECT id, created_at FROM devices LIMIT 10;"))
}

func TestForbiddenKeywordsAreRejected(t *testing.T) {
	is := is.New(t)

	for _, sql := range []string{
		"UPDATE devices SET active = false",
		"SELECT 1 FROM devices; DELETE FROM devices",
		"TRUNCATE readings",
	} {
		err := validateStatement(sql)
		is.True(errors.Is(err, ErrUnsafeStatement))
	}
}

func TestLLMValidationVerdictUnsafe(t *testing.T) {
	is := is.New(t)

	llm := &completerMock{responses: []string{
		"SELECT id FROM devices",
		"UNSAFE: subquery touches system tables",
	}}
	querier := &querierMock{}

	_, err := New(llm, querier, true).Query(context.Background(), "odd question")
	is.True(errors.Is(err, ErrUnsafeStatement))
	is.True(strings.Contains(err.Error(), "UNSAFE"))
	is.Equal(0, len(querier.queries))
}

func TestExplanationNotesTruncation(t *testing.T) {
	is := is.New(t)

	rows := make([]map[string]any, 8)
	for i := range rows {
		rows[i] = map[string]any{"id": int64(i)}
	}

	llm := &completerMock{responses: []string{
		"SELECT id FROM readings",
		"Plenty of readings.",
	}}

	result, err := New(llm, &querierMock{rows: rows}, false).Query(context.Background(), "show readings")
	is.NoErr(err)
	is.Equal(8, result.ResultCount)
	is.True(strings.Contains(result.Explanation, "8 total results"))
}

func TestQueryWithoutCompleterIsNotConfigured(t *testing.T) {
	is := is.New(t)

	_, err := New(nil, &querierMock{}, false).Query(context.Background(), "Show all devices")
	is.Equal(err, ErrNotConfigured)
}

func TestExamplesCatalogue(t *testing.T) {
	is := is.New(t)

	examples := New(nil, &querierMock{}, false).Examples()
	is.Equal(5, len(examples))
	is.Equal("Device Queries", examples[0].Category)
	is.True(len(examples[0].Queries) > 0)
}
