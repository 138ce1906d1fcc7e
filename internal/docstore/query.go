package docstore

import (
	"context"
	"fmt"
	"strings"
	"time"
)

var validOps = map[string]string{
	"==": "=",
	">=": ">=",
	"<=": "<=",
	">":  ">",
	"<":  "<",
}

type whereClause struct {
	field string
	op    string
	value any
}

// Query selects and orders documents inside one collection. Fields are
// addressed inside the JSON document body.
type Query struct {
	collection *Collection
	orderField string
	wheres     []whereClause
	err        error
}

// Query starts an unfiltered query over the collection.
func (c *Collection) Query() Query {
	return Query{collection: c}
}

// OrderBy orders results ascending by the given document field,
// case-insensitively for strings. Ties break on document id.
func (q Query) OrderBy(field string) Query {
	if !validField(field) {
		q.err = fmt.Errorf("invalid order field %q", field)
		return q
	}
	q.orderField = field
	return q
}

// Where filters on a document field. Supported operators: ==, >=, <=, >, <.
// time.Time values compare against stored server timestamps.
func (q Query) Where(field, op string, value any) Query {
	if !validField(field) {
		q.err = fmt.Errorf("invalid filter field %q", field)
		return q
	}
	if _, ok := validOps[op]; !ok {
		q.err = fmt.Errorf("invalid filter operator %q", op)
		return q
	}
	if t, ok := value.(time.Time); ok {
		value = t.UTC().Format(timeLayout)
	}
	q.wheres = append(q.wheres, whereClause{field: field, op: op, value: value})
	return q
}

// Documents runs the query once and returns the current result set.
func (q Query) Documents(ctx context.Context) ([]Document, error) {
	if q.err != nil {
		return nil, q.err
	}
	if q.collection == nil || q.collection.path == "" {
		return nil, ErrPathRequired
	}

	var sb strings.Builder
	sb.WriteString(`SELECT id, data FROM documents WHERE collection = ?`)
	args := []any{q.collection.path}

	for _, w := range q.wheres {
		fmt.Fprintf(&sb, ` AND json_extract(data, '$.%s') %s ?`, w.field, validOps[w.op])
		args = append(args, w.value)
	}

	if q.orderField != "" {
		fmt.Fprintf(&sb, ` ORDER BY json_extract(data, '$.%s') COLLATE NOCASE ASC, id ASC`, q.orderField)
	} else {
		sb.WriteString(` ORDER BY id ASC`)
	}

	rows, err := q.collection.store.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, Document{ID: id, Data: []byte(raw)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

// validField restricts JSON path segments to plain identifiers so field
// names can be spliced into json_extract paths.
func validField(field string) bool {
	if field == "" {
		return false
	}
	for _, r := range field {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return true
}
