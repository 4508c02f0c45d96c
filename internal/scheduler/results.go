package scheduler

import (
	"strconv"
	"strings"
	"sync"

	"github.com/shaiso/Conveyor/internal/domain"
)

// ResultSet — разделяемое хранилище терминальных RunResults.
//
// Это единственное разделяемое изменяемое состояние во время run:
// конкурентные jobs пишут сюда через мьютекс, всё остальное
// (outputs, matrix-привязки) — приватно для экземпляра.
type ResultSet struct {
	mu      sync.Mutex
	order   []string
	results map[string]*domain.RunResult
}

// NewResultSet создаёт пустой ResultSet.
func NewResultSet() *ResultSet {
	return &ResultSet{
		order:   make([]string, 0),
		results: make(map[string]*domain.RunResult),
	}
}

// Add добавляет терминальный результат.
// Результат после добавления не модифицируется.
func (rs *ResultSet) Add(res *domain.RunResult) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if _, ok := rs.results[res.JobName]; !ok {
		rs.order = append(rs.order, res.JobName)
	}
	rs.results[res.JobName] = res
}

// Get возвращает результат job по имени.
func (rs *ResultSet) Get(name string) (*domain.RunResult, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	res, ok := rs.results[name]
	return res, ok
}

// All возвращает копию всех результатов в порядке добавления.
func (rs *ResultSet) All() []domain.RunResult {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	all := make([]domain.RunResult, 0, len(rs.order))
	for _, name := range rs.order {
		all = append(all, *rs.results[name])
	}
	return all
}

// Len возвращает количество результатов.
func (rs *ResultSet) Len() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.results)
}

// Instances возвращает результаты matrix-экземпляров job
// в порядке объявления наборов параметров.
func (rs *ResultSet) Instances(job string) []domain.RunResult {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	prefix := job + "["
	instances := make([]domain.RunResult, 0)
	for _, name := range rs.order {
		if strings.HasPrefix(name, prefix) {
			instances = append(instances, *rs.results[name])
		}
	}
	return instances
}

// InstanceName возвращает имя результата для matrix-экземпляра.
func InstanceName(job string, index int) string {
	return job + "[" + strconv.Itoa(index) + "]"
}
