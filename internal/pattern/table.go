package pattern

import (
	"errors"
	"fmt"
)

// ErrInvalidTable — таблица не подходит для запрошенного представления.
var ErrInvalidTable = errors.New("invalid data table")

// DataTable — табличный аргумент шага.
//
//	When I send a POST request to "/users" with the following data:
//	  | name     | email            |
//	  | John Doe | john@example.com |
type DataTable struct {
	rows [][]string
}

// NewDataTable создаёт таблицу из строк. Строки копируются.
func NewDataTable(rows [][]string) *DataTable {
	t := &DataTable{rows: make([][]string, len(rows))}
	for i, row := range rows {
		t.rows[i] = append([]string(nil), row...)
	}
	return t
}

// Raw возвращает все строки, включая заголовок.
func (t *DataTable) Raw() [][]string {
	if t == nil {
		return nil
	}
	return t.rows
}

// Header возвращает первую строку.
func (t *DataTable) Header() []string {
	if t == nil || len(t.rows) == 0 {
		return nil
	}
	return t.rows[0]
}

// Hashes возвращает строки после заголовка как упорядоченную
// последовательность отображений «заголовок колонки → значение».
func (t *DataTable) Hashes() []map[string]string {
	if t == nil || len(t.rows) < 2 {
		return nil
	}

	header := t.rows[0]
	out := make([]map[string]string, 0, len(t.rows)-1)
	for _, row := range t.rows[1:] {
		m := make(map[string]string, len(header))
		for i, key := range header {
			if i < len(row) {
				m[key] = row[i]
			}
		}
		out = append(out, m)
	}
	return out
}

// FirstHash возвращает первую строку данных.
func (t *DataTable) FirstHash() (map[string]string, error) {
	hashes := t.Hashes()
	if len(hashes) == 0 {
		return nil, fmt.Errorf("%w: table has no data rows", ErrInvalidTable)
	}
	return hashes[0], nil
}

// RowsHash возвращает двухколоночную таблицу как отображение
// «первая колонка → вторая колонка».
func (t *DataTable) RowsHash() (map[string]string, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: table is nil", ErrInvalidTable)
	}

	out := make(map[string]string, len(t.rows))
	for i, row := range t.rows {
		if len(row) != 2 {
			return nil, fmt.Errorf("%w: row %d has %d columns, want 2", ErrInvalidTable, i+1, len(row))
		}
		out[row[0]] = row[1]
	}
	return out, nil
}
