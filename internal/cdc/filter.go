// filter.go — фильтрация CDC-событий по отслеживаемым колонкам.
package cdc

import "reflect"

// Filter решает, затрагивает ли CDC-событие отслеживаемые колонки.
type Filter struct {
	trackedColumns []string
}

// NewFilter создаёт фильтр с заданным списком отслеживаемых колонок.
func NewFilter(trackedColumns []string) *Filter {
	return &Filter{trackedColumns: trackedColumns}
}

// HasRelevantChanges возвращает true, если событие требует синхронизации:
//   - before отсутствует, after есть — создание строки;
//   - before есть, after отсутствует — удаление строки;
//   - оба есть — хотя бы одна отслеживаемая колонка изменила значение;
//   - оба отсутствуют — событие нерелевантно.
func (f *Filter) HasRelevantChanges(before, after RowImage) bool {
	if before == nil && after != nil {
		return true
	}
	if before != nil && after == nil {
		return true
	}
	if after == nil {
		return false
	}

	for _, column := range f.trackedColumns {
		if !valueEquals(before[column], after[column]) {
			return true
		}
	}
	return false
}

// valueEquals сравнивает значения колонки с глубоким равенством.
// Отсутствующая колонка и явный null эквивалентны (оба дают nil).
func valueEquals(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return reflect.DeepEqual(a, b)
}
