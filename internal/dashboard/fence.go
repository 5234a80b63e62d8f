package dashboard

import "backendmanager/console/internal/domain"

// Ticket 一次分区加载的序号，只有最新的序号可以提交结果
type Ticket struct {
	Section    domain.Section
	Generation uint64
}

// fence 按分区记录最新发出的序号，由 AppState 的锁保护
type fence struct {
	generations map[domain.Section]uint64
}

func newFence() fence {
	return fence{generations: make(map[domain.Section]uint64)}
}

func (f *fence) begin(section domain.Section) Ticket {
	f.generations[section]++
	return Ticket{Section: section, Generation: f.generations[section]}
}

func (f *fence) current(t Ticket) bool {
	return f.generations[t.Section] == t.Generation
}
