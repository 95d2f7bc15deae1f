package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"edgar_rag/pkg/core/facts"
	"edgar_rag/pkg/core/utils"
	"edgar_rag/pkg/models"
)

// statementAliases maps the keys found in exported statement files to statement types.
var statementAliases = map[string]models.StatementType{
	"balance_sheet":          models.BalanceSheet,
	"balance":                models.BalanceSheet,
	"balancesheet":           models.BalanceSheet,
	"income_statement":       models.IncomeStatement,
	"income":                 models.IncomeStatement,
	"incomestatement":        models.IncomeStatement,
	"cashflow":               models.CashFlow,
	"cash_flow":              models.CashFlow,
	"cash_flow_statement":    models.CashFlow,
	"cashflow_statement":     models.CashFlow,
	"statement_of_cashflows": models.CashFlow,
}

// LoadedStatements is a StatementProvider read from a statements file. A
// statement that failed to decode reports its error instead of a table.
type LoadedStatements struct {
	Tables   StatementSet
	Errors   map[models.StatementType]error
	Strategy string // parser that accepted the file, see utils.SmartParse
}

func (l *LoadedStatements) Statement(ctx context.Context, st models.StatementType) (*facts.StatementTable, error) {
	if err, ok := l.Errors[st]; ok {
		return nil, fmt.Errorf("malformed %s: %w", st, err)
	}
	return l.Tables.Statement(ctx, st)
}

// LoadStatements reads a statements file.
//
// The file is an object keyed by statement name. Each value is either a
// table {"columns": [...], "rows": [...]} or a bare list of row records.
// NaN values, trailing commas and comments are tolerated.
func LoadStatements(path string) (*LoadedStatements, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read statements: %w", err)
	}
	return ParseStatements(string(data))
}

// ParseStatements decodes statements file content.
func ParseStatements(content string) (*LoadedStatements, error) {
	var raw map[string]json.RawMessage
	strategy, err := utils.SmartParse(content, &raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse statements: %w", err)
	}

	out := &LoadedStatements{
		Tables:   make(StatementSet),
		Errors:   make(map[models.StatementType]error),
		Strategy: strategy,
	}
	for key, msg := range raw {
		st, ok := statementAliases[strings.ToLower(strings.TrimSpace(key))]
		if !ok {
			continue
		}
		table, err := decodeStatement(msg)
		if err != nil {
			out.Errors[st] = err
			continue
		}
		table.Type = st
		out.Tables[st] = table
	}
	return out, nil
}

func decodeStatement(msg json.RawMessage) (*facts.StatementTable, error) {
	trimmed := strings.TrimSpace(string(msg))
	if trimmed == "" || trimmed == "null" {
		return nil, ErrStatementUnavailable
	}

	if strings.HasPrefix(trimmed, "[") {
		var rows []facts.StatementRow
		if err := json.Unmarshal(msg, &rows); err != nil {
			return nil, err
		}
		return &facts.StatementTable{Rows: rows}, nil
	}

	var table facts.StatementTable
	if err := json.Unmarshal(msg, &table); err != nil {
		return nil, err
	}
	return &table, nil
}
