package dashboard

import "backendmanager/console/internal/domain"

// Router 分区导航状态机，初始为 overview，任一时刻只有一个活动分区
type Router struct {
	active  domain.Section
	loaders map[domain.Section]Loader
}

// NewRouter 创建停在 overview 的路由，loaders 为各分区的加载函数
func NewRouter(loaders map[domain.Section]Loader) *Router {
	return &Router{active: domain.SectionOverview, loaders: loaders}
}

// Navigate 切换到目标分区并返回需要执行的加载函数
func (r *Router) Navigate(raw string) (domain.Section, Loader, error) {
	section, err := domain.ParseSection(raw)
	if err != nil {
		return "", nil, err
	}
	r.active = section
	return section, r.loaders[section], nil
}

// Active 当前活动分区
func (r *Router) Active() domain.Section {
	return r.active
}

// IsActive 判断分区是否处于活动状态
func (r *Router) IsActive(section domain.Section) bool {
	return r.active == section
}
