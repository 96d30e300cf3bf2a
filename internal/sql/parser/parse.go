package parser

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/tuannm99/novamem/internal/record"
	"github.com/tuannm99/novamem/internal/sql/expr"
)

// ErrSyntax marks statements that do not fit the grammar.
var ErrSyntax = errors.New("syntax error")

func syntaxErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSyntax, fmt.Sprintf(format, args...))
}

// parseIdent validates an identifier (table/column name).
// Rules:
//   - must be exactly one token (no spaces)
//   - first char: letter or '_'
//   - rest: letter/digit/'_'
func parseIdent(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", syntaxErrorf("missing identifier")
	}

	parts := strings.Fields(s)
	if len(parts) != 1 {
		return "", syntaxErrorf("invalid identifier %q", s)
	}
	id := parts[0]

	for i, r := range id {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' {
				return "", syntaxErrorf("invalid identifier %q", id)
			}
			continue
		}

		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return "", syntaxErrorf("invalid identifier %q", id)
		}
	}

	return id, nil
}

// ParseScript splits a request into its ';'-terminated statements and parses
// each of them. Semicolons inside quotes do not end a statement.
func ParseScript(sql string) ([]Statement, error) {
	var stmts []Statement
	for _, raw := range splitStatements(sql) {
		st, err := Parse(raw)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, st)
	}
	if len(stmts) == 0 {
		return nil, syntaxErrorf("empty statement")
	}
	return stmts, nil
}

// Parse parses a single statement into an AST.
// Policy: statement MUST end with ';'
func Parse(sql string) (Statement, error) {
	s := strings.TrimSpace(sql)
	if s == "" {
		return nil, syntaxErrorf("empty statement")
	}

	// Require ';' at the end (after trimming spaces/newlines)
	if !strings.HasSuffix(s, ";") {
		return nil, syntaxErrorf("missing ';' terminator")
	}

	// Strip the trailing ';' and trim again
	s = strings.TrimSpace(strings.TrimSuffix(s, ";"))
	if s == "" {
		return nil, syntaxErrorf("empty statement")
	}

	switch {
	case hasPrefixFold(s, "CREATE TABLE"):
		return parseCreateTable(s)
	case hasPrefixFold(s, "DROP TABLE"):
		return parseDropTable(s)
	case hasPrefixFold(s, "ALTER TABLE"):
		return parseAlterTable(s)

	case hasPrefixFold(s, "INSERT INTO"):
		return parseInsert(s)
	case hasPrefixFold(s, "SELECT"):
		return parseSelect(s, false)
	case hasPrefixFold(s, "AWAIT SELECT"):
		return parseSelect(strings.TrimSpace(s[len("AWAIT"):]), true)
	case hasPrefixFold(s, "UPDATE"):
		return parseUpdate(s)
	case hasPrefixFold(s, "DELETE FROM"):
		return parseDelete(s)
	case hasPrefixFold(s, "SHOW TABLES"):
		if strings.TrimSpace(s[len("SHOW TABLES"):]) != "" {
			return nil, syntaxErrorf("unexpected input after SHOW TABLES")
		}
		return &ShowTablesStmt{}, nil

	default:
		return nil, syntaxErrorf("unsupported statement: %q", sql)
	}
}

// hasPrefixFold matches a keyword prefix case-insensitively, and only as
// whole words.
func hasPrefixFold(s, prefix string) bool {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return false
	}
	return len(s) == len(prefix) || unicode.IsSpace(rune(s[len(prefix)]))
}

func parseColumnDef(def string) (ColumnDef, error) {
	toks := strings.Fields(def)
	if len(toks) < 2 {
		return ColumnDef{}, syntaxErrorf("invalid column def: %q", def)
	}

	name, err := parseIdent(toks[0])
	if err != nil {
		return ColumnDef{}, fmt.Errorf("invalid column name: %w", err)
	}

	typeToks := toks[1:]
	pk := false
	if n := len(typeToks); n >= 2 && strings.EqualFold(typeToks[n-2], "PRIMARY") && strings.EqualFold(typeToks[n-1], "KEY") {
		pk = true
		typeToks = typeToks[:n-2]
	}
	if len(typeToks) == 0 {
		return ColumnDef{}, syntaxErrorf("column %s has no type", name)
	}
	typ, err := record.ParseType(strings.Join(typeToks, ""))
	if err != nil {
		return ColumnDef{}, err
	}
	return ColumnDef{Name: name, Type: typ, PrimaryKey: pk}, nil
}

func parseCreateTable(sql string) (Statement, error) {
	// "CREATE TABLE users (id integer PRIMARY KEY, name char(10))"
	withoutPrefix := strings.TrimSpace(sql[len("CREATE TABLE"):])
	open := strings.IndexByte(withoutPrefix, '(')
	if open < 0 || !strings.HasSuffix(withoutPrefix, ")") {
		return nil, syntaxErrorf("invalid CREATE TABLE syntax")
	}

	tableName, err := parseIdent(withoutPrefix[:open])
	if err != nil {
		return nil, fmt.Errorf("invalid CREATE TABLE syntax: %w", err)
	}

	defPart := strings.TrimSpace(withoutPrefix[open+1 : len(withoutPrefix)-1])
	if defPart == "" {
		return nil, syntaxErrorf("invalid CREATE TABLE syntax: empty column list")
	}

	var cols []ColumnDef
	for _, def := range splitComma(defPart) {
		col, err := parseColumnDef(strings.TrimSpace(def))
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}

	return &CreateTableStmt{
		TableName: tableName,
		Columns:   cols,
	}, nil
}

func parseDropTable(sql string) (Statement, error) {
	rest := strings.TrimSpace(sql[len("DROP TABLE"):])
	name, err := parseIdent(rest)
	if err != nil {
		return nil, fmt.Errorf("invalid DROP TABLE syntax: %w", err)
	}
	return &DropTableStmt{TableName: name}, nil
}

func parseAlterTable(sql string) (Statement, error) {
	// "ALTER TABLE t ADD c type [PRIMARY KEY]" | "ALTER TABLE t DROP c"
	rest := strings.TrimSpace(sql[len("ALTER TABLE"):])
	toks := strings.Fields(rest)
	if len(toks) < 3 {
		return nil, syntaxErrorf("invalid ALTER TABLE syntax")
	}
	tableName, err := parseIdent(toks[0])
	if err != nil {
		return nil, fmt.Errorf("invalid ALTER TABLE syntax: %w", err)
	}

	switch strings.ToUpper(toks[1]) {
	case "ADD":
		col, err := parseColumnDef(strings.Join(toks[2:], " "))
		if err != nil {
			return nil, err
		}
		return &AlterAddStmt{TableName: tableName, Column: col}, nil
	case "DROP":
		col, err := parseIdent(strings.Join(toks[2:], " "))
		if err != nil {
			return nil, fmt.Errorf("invalid ALTER TABLE DROP syntax: %w", err)
		}
		return &AlterDropStmt{TableName: tableName, Column: col}, nil
	default:
		return nil, syntaxErrorf("ALTER TABLE supports ADD and DROP, got %q", toks[1])
	}
}

func parseInsert(sql string) (Statement, error) {
	// "INSERT INTO users VALUES (1, 'abc', true)"
	rest := strings.TrimSpace(sql[len("INSERT INTO"):])

	// Case-insensitive VALUES using splitKeyword.
	tablePart, valPart := splitKeyword(rest, "VALUES")
	if strings.TrimSpace(valPart) == "" {
		return nil, syntaxErrorf("invalid INSERT syntax")
	}

	tableName, err := parseIdent(tablePart)
	if err != nil {
		return nil, fmt.Errorf("invalid INSERT syntax: %w", err)
	}

	valPart = strings.TrimSpace(valPart)
	if !strings.HasPrefix(valPart, "(") || !strings.HasSuffix(valPart, ")") {
		return nil, syntaxErrorf("invalid INSERT values syntax")
	}
	valPart = strings.TrimSpace(valPart[1 : len(valPart)-1])
	if valPart == "" {
		return nil, syntaxErrorf("invalid INSERT syntax: empty value list")
	}

	var vals []string
	for _, rv := range splitComma(valPart) {
		lit, err := checkLiteral(rv)
		if err != nil {
			return nil, err
		}
		vals = append(vals, lit)
	}

	return &InsertStmt{
		TableName: tableName,
		Values:    vals,
	}, nil
}

func parseSelect(sql string, await bool) (Statement, error) {
	// "SELECT * | a, b FROM users [WHERE cond]"
	rest := strings.TrimSpace(sql[len("SELECT"):])
	fieldPart, fromPart := splitKeyword(" "+rest, "FROM")
	fieldPart = strings.TrimSpace(fieldPart)
	if fieldPart == "" || strings.TrimSpace(fromPart) == "" {
		return nil, syntaxErrorf("invalid SELECT syntax")
	}

	var fields []string
	if fieldPart != "*" {
		for _, f := range splitComma(fieldPart) {
			name, err := parseIdent(f)
			if err != nil {
				return nil, fmt.Errorf("invalid SELECT field: %w", err)
			}
			fields = append(fields, name)
		}
	}

	tablePart, wherePart := splitKeyword(fromPart, "WHERE")
	tableName, err := parseIdent(tablePart)
	if err != nil {
		return nil, fmt.Errorf("invalid SELECT syntax: %w", err)
	}

	where, err := parseWhere(wherePart)
	if err != nil {
		return nil, err
	}
	return &SelectStmt{TableName: tableName, Fields: fields, Where: where, Await: await}, nil
}

func parseUpdate(sql string) (Statement, error) {
	// "UPDATE t SET a=1, b='x' [WHERE cond]"
	rest := strings.TrimSpace(sql[len("UPDATE"):])
	tablePart, afterTable := splitKeyword(rest, "SET")

	tableName, err := parseIdent(tablePart)
	if err != nil {
		return nil, fmt.Errorf("invalid UPDATE syntax: %w", err)
	}

	setPart, wherePart := splitKeyword(afterTable, "WHERE")
	setPart = strings.TrimSpace(setPart)
	if setPart == "" {
		return nil, syntaxErrorf("invalid UPDATE syntax: missing SET")
	}

	assignStrs := splitComma(setPart)
	assigns := make([]Assignment, 0, len(assignStrs))
	for _, a := range assignStrs {
		a = strings.TrimSpace(a)
		kv := strings.SplitN(a, "=", 2)
		if len(kv) != 2 {
			return nil, syntaxErrorf("invalid assignment: %q", a)
		}

		col, err := parseIdent(kv[0])
		if err != nil {
			return nil, fmt.Errorf("invalid assignment column: %w", err)
		}

		lit, err := checkLiteral(kv[1])
		if err != nil {
			return nil, err
		}

		assigns = append(assigns, Assignment{
			Column: col,
			Value:  lit,
		})
	}

	where, err := parseWhere(wherePart)
	if err != nil {
		return nil, err
	}

	return &UpdateStmt{
		TableName:   tableName,
		Assignments: assigns,
		Where:       where,
	}, nil
}

func parseDelete(sql string) (Statement, error) {
	// "DELETE FROM t [WHERE cond]"
	rest := strings.TrimSpace(sql[len("DELETE FROM"):])
	tablePart, wherePart := splitKeyword(rest, "WHERE")

	tableName, err := parseIdent(tablePart)
	if err != nil {
		return nil, fmt.Errorf("invalid DELETE syntax: %w", err)
	}

	where, err := parseWhere(wherePart)
	if err != nil {
		return nil, err
	}
	return &DeleteStmt{TableName: tableName, Where: where}, nil
}

func parseWhere(s string) (expr.Cond, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	c, err := expr.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("invalid WHERE: %w", err)
	}
	return c, nil
}

// checkLiteral trims a raw literal and rejects the shapes no column type can
// read. Typing happens later, against the target column.
func checkLiteral(rv string) (string, error) {
	rv = strings.TrimSpace(rv)
	if rv == "" {
		return "", syntaxErrorf("missing value")
	}
	if strings.HasPrefix(rv, "'") || strings.HasPrefix(rv, "b'") || strings.HasPrefix(rv, "B'") {
		if len(rv) < 2 || !strings.HasSuffix(rv, "'") || rv == "b'" || rv == "B'" {
			return "", syntaxErrorf("unterminated literal %s", rv)
		}
		return rv, nil
	}
	if strings.ContainsAny(rv, " \t\n'") {
		return "", syntaxErrorf("unquoted literal with spaces: %q", rv)
	}
	return rv, nil
}

// splitKeyword splits "X <keyword> Y" case-insensitively, outside quotes.
// returns (X, Y). If keyword not present => (s, "").
// The keyword must have whitespace on both sides.
func splitKeyword(s, keyword string) (string, string) {
	k := strings.ToUpper(keyword)
	inQuote := false
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '\'':
			inQuote = !inQuote
		case inQuote:
		case i > 0 && unicode.IsSpace(rune(s[i-1])) && i+len(k) < len(s) &&
			strings.EqualFold(s[i:i+len(k)], k) && unicode.IsSpace(rune(s[i+len(k)])):
			return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+len(k):])
		}
	}
	return s, ""
}

// splitComma splits a comma-separated list, ignoring commas inside quotes and
// parentheses.
func splitComma(s string) []string {
	parts := []string{}
	cur := strings.Builder{}
	inQuote := false
	depth := 0
	for _, r := range s {
		switch {
		case r == '\'':
			inQuote = !inQuote
			cur.WriteRune(r)
		case inQuote:
			cur.WriteRune(r)
		case r == '(':
			depth++
			cur.WriteRune(r)
		case r == ')':
			depth--
			cur.WriteRune(r)
		case r == ',' && depth == 0:
			parts = append(parts, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		parts = append(parts, strings.TrimSpace(cur.String()))
	}
	return parts
}

// splitStatements cuts a request after every ';' that is not inside quotes.
// Each piece keeps its terminator; trailing blanks are dropped.
func splitStatements(s string) []string {
	var out []string
	inQuote := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\'':
			inQuote = !inQuote
		case ';':
			if !inQuote {
				out = append(out, s[start:i+1])
				start = i + 1
			}
		}
	}
	if tail := strings.TrimSpace(s[start:]); tail != "" {
		out = append(out, tail)
	}
	return out
}
