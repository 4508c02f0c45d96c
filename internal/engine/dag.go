package engine

import (
	"fmt"
	"sort"

	"github.com/shaiso/Conveyor/internal/domain"
)

// Node — узел в DAG зависимостей.
//
// Узлы ссылаются друг на друга только через индексы в Plan.Nodes;
// имя job служит ключом, порядковый номер объявления — tie-break'ом.
type Node struct {
	// Job — определение job из Pipeline.
	Job *domain.JobDef

	// Name — имя job (совпадает с Job.Name).
	Name string

	// Index — порядковый номер объявления в пайплайне.
	Index int

	// InDegree — количество входящих рёбер (зависимостей).
	InDegree int

	// DependsOn — узлы, от которых зависит этот узел.
	DependsOn []*Node

	// Dependents — узлы, которые зависят от этого узла.
	Dependents []*Node
}

// Plan — план выполнения пайплайна.
//
// Waves — последовательность волн; внутри волны jobs не зависят
// друг от друга и могут выполняться конкурентно. Волны выполняются
// строго последовательно, поскольку поздние волны читают outputs ранних.
type Plan struct {
	// Nodes — все узлы графа (имя job → Node).
	Nodes map[string]*Node

	// Waves — волны в порядке выполнения.
	Waves [][]*Node

	// Order — полный топологический порядок (конкатенация волн).
	Order []*Node
}

// BuildPlan строит план выполнения из Pipeline.
//
// Возвращает ошибку ErrUnknownDependency, если job ссылается на
// несуществующее имя, и ErrCyclicDependency при цикле. Любая ошибка
// здесь фатальна: ни один task не запускается.
func BuildPlan(p *domain.Pipeline) (*Plan, error) {
	plan := &Plan{
		Nodes: make(map[string]*Node, len(p.Jobs)),
	}

	// Первый проход: создаём все узлы
	for i := range p.Jobs {
		job := &p.Jobs[i]
		plan.Nodes[job.Name] = &Node{
			Job:        job,
			Name:       job.Name,
			Index:      i,
			DependsOn:  make([]*Node, 0),
			Dependents: make([]*Node, 0),
		}
	}

	// Второй проход: связываем узлы по зависимостям
	for i := range p.Jobs {
		job := &p.Jobs[i]
		node := plan.Nodes[job.Name]

		for _, depName := range job.DependsOn {
			dep, exists := plan.Nodes[depName]
			if !exists {
				return nil, NewValidationError(job.Name, "depends_on",
					fmt.Sprintf("depends on unknown job: %s", depName), ErrUnknownDependency)
			}
			plan.addEdge(dep, node)
		}
	}

	// Волновая топологическая сортировка (алгоритм Кана)
	if err := plan.buildWaves(); err != nil {
		return nil, err
	}

	return plan, nil
}

// addEdge добавляет ребро между узлами.
// Дубликаты игнорируются, чтобы не завышать InDegree.
func (p *Plan) addEdge(from, to *Node) {
	for _, dep := range to.DependsOn {
		if dep.Name == from.Name {
			return // уже связаны
		}
	}
	from.Dependents = append(from.Dependents, to)
	to.DependsOn = append(to.DependsOn, from)
	to.InDegree++
}

// buildWaves выполняет топологическую сортировку по волнам.
//
// Каждая волна — все узлы с нулевой остаточной степенью входа,
// отсортированные по порядку объявления для детерминированного вывода.
// Если после обхода остались узлы — в графе цикл.
func (p *Plan) buildWaves() error {
	inDegree := make(map[string]int, len(p.Nodes))
	for name, node := range p.Nodes {
		inDegree[name] = node.InDegree
	}

	frontier := make([]*Node, 0)
	for _, node := range p.Nodes {
		if node.InDegree == 0 {
			frontier = append(frontier, node)
		}
	}

	processed := 0
	for len(frontier) > 0 {
		sort.Slice(frontier, func(i, j int) bool {
			return frontier[i].Index < frontier[j].Index
		})

		wave := frontier
		p.Waves = append(p.Waves, wave)
		p.Order = append(p.Order, wave...)
		processed += len(wave)

		next := make([]*Node, 0)
		for _, node := range wave {
			for _, dependent := range node.Dependents {
				inDegree[dependent.Name]--
				if inDegree[dependent.Name] == 0 {
					next = append(next, dependent)
				}
			}
		}
		frontier = next
	}

	if processed != len(p.Nodes) {
		return ErrCyclicDependency
	}

	return nil
}

// GetNode возвращает узел по имени job.
func (p *Plan) GetNode(name string) *Node {
	return p.Nodes[name]
}

// Size возвращает количество узлов в плане.
func (p *Plan) Size() int {
	return len(p.Nodes)
}

// WaveOf возвращает номер волны, в которой выполняется job, и -1,
// если job не найден.
func (p *Plan) WaveOf(name string) int {
	for i, wave := range p.Waves {
		for _, node := range wave {
			if node.Name == name {
				return i
			}
		}
	}
	return -1
}
