package domain

import (
	"errors"
	"strings"
)

// ErrUnknownSection 导航目标不是已知分区
var ErrUnknownSection = errors.New("unknown section")

// Section 控制台导航分区
type Section string

const (
	SectionOverview       Section = "overview"
	SectionRejections     Section = "rejections"
	SectionDataCleanup    Section = "data-cleanup"
	SectionSystemLogs     Section = "system-logs"
	SectionUserManagement Section = "user-management"
	SectionBackupRestore  Section = "backup-restore"
)

var sectionOrder = []Section{
	SectionOverview,
	SectionRejections,
	SectionDataCleanup,
	SectionSystemLogs,
	SectionUserManagement,
	SectionBackupRestore,
}

var sectionTitles = map[Section]string{
	SectionOverview:       "System Overview",
	SectionRejections:     "Staff Rejections",
	SectionDataCleanup:    "Data Cleanup",
	SectionSystemLogs:     "System Logs",
	SectionUserManagement: "User Management",
	SectionBackupRestore:  "Backup & Restore",
}

// Sections 按导航顺序返回全部分区
func Sections() []Section {
	out := make([]Section, len(sectionOrder))
	copy(out, sectionOrder)
	return out
}

// ParseSection 解析导航键
func ParseSection(raw string) (Section, error) {
	s := Section(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := sectionTitles[s]; !ok {
		return "", ErrUnknownSection
	}
	return s, nil
}

// Title 分区标题
func (s Section) Title() string {
	return sectionTitles[s]
}

// ElementID 页面中该分区容器的元素 ID，例如 "dataCleanupSection"
func (s Section) ElementID() string {
	parts := strings.Split(string(s), "-")
	var b strings.Builder
	for i, part := range parts {
		if i > 0 && part != "" {
			b.WriteString(strings.ToUpper(part[:1]))
			b.WriteString(part[1:])
			continue
		}
		b.WriteString(part)
	}
	b.WriteString("Section")
	return b.String()
}

func (s Section) String() string {
	return string(s)
}
