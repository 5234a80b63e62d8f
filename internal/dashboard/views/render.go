// Package views 把控制台数据渲染为 HTML 片段
//
// 渲染函数只依赖入参，不访问网络或会话状态；每个片段都包含带 id 的外层容器，
// 页面脚本按 id 整体替换。
package views

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"html/template"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"backendmanager/console/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

// 通知横幅的进入与退出过渡时长
const (
	EnterDelay = 100 * time.Millisecond
	ExitDelay  = 300 * time.Millisecond
)

const dateLayout = "Jan 2, 2006, 03:04 PM"

// 设置弹窗的可选项
var (
	cleanupChoices = []string{"daily", "weekly", "monthly", "disabled"}
	backupChoices  = []string{"hourly", "daily", "weekly"}
)

// State 渲染所需的应用状态快照
type State struct {
	Stats          domain.SystemStats     `json:"stats"`
	Activities     []domain.Activity      `json:"activities"`
	Rejections     []domain.Rejection     `json:"rejections"`
	CleanupHistory []domain.CleanupRecord `json:"cleanupHistory"`
	SystemLogs     []domain.LogEntry      `json:"systemLogs"`
	Users          []domain.User          `json:"users"`
	BackupHistory  []domain.BackupRecord  `json:"backupHistory"`
	Unavailable    map[string]bool        `json:"unavailable"` // 键为分区名
}

// PageData 完整页面的渲染参数
type PageData struct {
	Session         *domain.Session
	Active          domain.Section
	State           State
	Settings        domain.Settings
	Notifications   []domain.Notification
	Now             time.Time
	NotificationTTL time.Duration
}

type navItem struct {
	Section domain.Section
	Active  bool
}

type sectionData struct {
	Section domain.Section
	Active  bool
	State   State
}

type unavailableData struct {
	ContainerID string
	Section     domain.Section
	Title       string
}

type notificationItem struct {
	ID              string
	Kind            domain.NotificationKind
	Message         string
	ExpiresInMillis int64
}

type notificationsData struct {
	Items       []notificationItem
	EnterMillis int64
	ExitMillis  int64
}

type pageView struct {
	UserName              string
	UserEmail             string
	LogoutPrompt          string
	NotificationTTLMillis int64
	Nav                   []navItem
	Sections              []sectionData
	PendingCount          int
	Notifications         notificationsData
	Settings              domain.Settings
	CleanupChoices        []string
	BackupChoices         []string
}

// Renderer 基于内嵌模板的渲染器
type Renderer struct {
	tmpl   *template.Template
	loc    *time.Location
	policy *bluemonday.Policy
}

// NewRenderer 解析内嵌模板，日期按 loc 时区显示
func NewRenderer(loc *time.Location) (*Renderer, error) {
	if loc == nil {
		loc = time.UTC
	}
	r := &Renderer{
		loc:    loc,
		policy: bluemonday.StrictPolicy(),
	}

	tmpl, err := template.New("views").Funcs(template.FuncMap{
		"clean":       r.Clean,
		"formatDate":  r.FormatDate,
		"thousands":   Thousands,
		"percent":     Percent,
		"upper":       strings.ToUpper,
		"prompt":      func(action, id string) string { return domain.Action(action).Prompt(id) },
		"unavailable": newUnavailable,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	r.tmpl = tmpl
	return r, nil
}

// Clean 去除后端文本中的标记，转义交给模板完成
func (r *Renderer) Clean(s string) string {
	return html.UnescapeString(r.policy.Sanitize(s))
}

// FormatDate RFC 3339 时间转为 "Jan 2, 2006, 03:04 PM"；空值为 "N/A"，无法解析为 "Invalid Date"
func (r *Renderer) FormatDate(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return "Invalid Date"
	}
	return t.In(r.loc).Format(dateLayout)
}

// Thousands 按英文习惯插入千位分隔符
func Thousands(n int) string {
	return message.NewPrinter(language.English).Sprintf("%d", n)
}

// Percent 百分比显示，整数不带小数位
func Percent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "%"
}

func newUnavailable(containerID, section string) unavailableData {
	s := domain.Section(section)
	return unavailableData{ContainerID: containerID, Section: s, Title: s.Title()}
}

// render 执行命名模板
func (r *Renderer) render(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return template.HTML(buf.String()), nil
}

// stats 系统概览卡片
func (r *Renderer) stats(stats domain.SystemStats) (template.HTML, error) {
	return r.render("stats", stats)
}

// activity 最近活动列表
func (r *Renderer) activity(items []domain.Activity) (template.HTML, error) {
	return r.render("activity", items)
}

// Rejections 拒绝记录列表
func (r *Renderer) Rejections(items []domain.Rejection) (template.HTML, error) {
	return r.render("rejections", items)
}

// RejectionCount 待清理数量角标，为零时隐藏
func (r *Renderer) RejectionCount(pending int) (template.HTML, error) {
	return r.render("rejection-count", pending)
}

// RejectionDetails 拒绝记录详情弹窗
func (r *Renderer) RejectionDetails(rejection domain.Rejection) (template.HTML, error) {
	return r.render("rejection-details", rejection)
}

// cleanupHistory 清理历史列表
func (r *Renderer) cleanupHistory(items []domain.CleanupRecord) (template.HTML, error) {
	return r.render("cleanup-history", items)
}

// systemLogs 系统日志列表
func (r *Renderer) systemLogs(items []domain.LogEntry) (template.HTML, error) {
	return r.render("system-logs", items)
}

// users 用户列表
func (r *Renderer) users(items []domain.User) (template.HTML, error) {
	return r.render("users", items)
}

// backupHistory 备份历史列表
func (r *Renderer) backupHistory(items []domain.BackupRecord) (template.HTML, error) {
	return r.render("backup-history", items)
}

// Notifications 通知容器，只包含 now 时刻仍在显示窗口内的消息
func (r *Renderer) Notifications(items []domain.Notification, now time.Time) (template.HTML, error) {
	return r.render("notifications", notificationsView(items, now))
}

// Section 单个分区的完整内容
func (r *Renderer) Section(section domain.Section, active bool, state State) (template.HTML, error) {
	return r.render("section", sectionData{Section: section, Active: active, State: normalize(state)})
}

// Page 完整页面
func (r *Renderer) Page(data PageData) (template.HTML, error) {
	state := normalize(data.State)
	view := pageView{
		UserName:              data.Session.Name(),
		LogoutPrompt:          domain.LogoutPrompt,
		NotificationTTLMillis: data.NotificationTTL.Milliseconds(),
		PendingCount:          domain.PendingCount(state.Rejections),
		Notifications:         notificationsView(data.Notifications, data.Now),
		Settings:              data.Settings,
		CleanupChoices:        cleanupChoices,
		BackupChoices:         backupChoices,
	}
	if data.Session != nil {
		view.UserEmail = data.Session.Email
	}
	for _, s := range domain.Sections() {
		active := s == data.Active
		view.Nav = append(view.Nav, navItem{Section: s, Active: active})
		view.Sections = append(view.Sections, sectionData{Section: s, Active: active, State: state})
	}
	return r.render("page", view)
}

func notificationsView(items []domain.Notification, now time.Time) notificationsData {
	data := notificationsData{
		Items:       make([]notificationItem, 0, len(items)),
		EnterMillis: EnterDelay.Milliseconds(),
		ExitMillis:  ExitDelay.Milliseconds(),
	}
	for _, n := range items {
		if n.Expired(now) {
			continue
		}
		data.Items = append(data.Items, notificationItem{
			ID:              n.ID,
			Kind:            n.Kind,
			Message:         n.Message,
			ExpiresInMillis: n.ExpiresAt.Sub(now).Milliseconds(),
		})
	}
	return data
}

func normalize(state State) State {
	if state.Unavailable == nil {
		state.Unavailable = map[string]bool{}
	}
	return state
}
