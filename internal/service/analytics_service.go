package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/tapcard/internal/db"
	"github.com/tapcard/internal/links"
	"gorm.io/gorm"
)

const (
	defaultViewDedupWindow = 30 * time.Minute

	defaultDailyDays   = 7
	maxDailyDays       = 90
	defaultWeeklyWeeks = 8
	maxWeeklyWeeks     = 52
	defaultTopLinks    = 5
)

// 访问来源渠道
const (
	SourceQR       = "qr"
	SourceNFC      = "nfc"
	SourceReferrer = "referrer"
	SourceDirect   = "direct"
)

// AnalyticsService 负责记录名片访问、链接点击并提供聚合统计
type AnalyticsService struct {
	db          *gorm.DB
	dedupWindow time.Duration
}

// NewAnalyticsService 创建 AnalyticsService，默认去重窗口为 30 分钟
func NewAnalyticsService(gdb *gorm.DB) *AnalyticsService {
	return &AnalyticsService{db: gdb, dedupWindow: defaultViewDedupWindow}
}

// WithDedupWindow 允许在测试或特定场景下调整去重窗口，0 表示不去重
func (s *AnalyticsService) WithDedupWindow(d time.Duration) *AnalyticsService {
	if d < 0 {
		return s
	}
	s.dedupWindow = d
	return s
}

// AttributionSource 根据 source/utm_source 参数与 Referer 判断访问来源
func AttributionSource(source, utmSource, referrer string) string {
	for _, candidate := range []string{source, utmSource} {
		switch strings.ToLower(strings.TrimSpace(candidate)) {
		case SourceQR:
			return SourceQR
		case SourceNFC:
			return SourceNFC
		}
	}
	if referrerHost(referrer) != "" {
		return SourceReferrer
	}
	return SourceDirect
}

// RecordProfileView 记录一次名片访问
// 同一访客在去重窗口内以相同来源重复访问不会产生新的记录，此时 recorded 为 false
func (s *AnalyticsService) RecordProfileView(ctx context.Context, profileID uint, source, referrer, visitorID string, now time.Time) (view *db.ProfileView, recorded bool, err error) {
	if profileID == 0 {
		return nil, false, errors.New("invalid profile id")
	}
	now = now.UTC()
	source = normalizeSource(source)

	// 来源不同的访问各自计入，扫码不会被此前的直接访问吞掉
	if visitorID != "" && s.dedupWindow > 0 {
		var recent db.ProfileView
		err := s.db.WithContext(ctx).
			Where("profile_id = ? AND visitor_id = ? AND source = ? AND created_at > ?", profileID, visitorID, source, now.Add(-s.dedupWindow)).
			Order("created_at DESC").
			First(&recent).Error
		switch {
		case err == nil:
			return &recent, false, nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, false, fmt.Errorf("check recent view: %w", err)
		}
	}

	view = &db.ProfileView{
		ProfileID: profileID,
		Source:    source,
		Referrer:  truncate(referrerHost(referrer), 255),
		VisitorID: truncate(visitorID, 64),
		CreatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(view).Error; err != nil {
		return nil, false, fmt.Errorf("record profile view: %w", err)
	}
	return view, true, nil
}

// RecordLinkClick 记录访客对派生链接的点击
func (s *AnalyticsService) RecordLinkClick(ctx context.Context, profileID uint, linkID, visitorID string, now time.Time) error {
	if profileID == 0 {
		return errors.New("invalid profile id")
	}
	if _, ok := links.KindFromID(linkID); !ok {
		return fmt.Errorf("unknown link id %q", linkID)
	}

	click := db.LinkClick{
		ProfileID: profileID,
		LinkID:    linkID,
		VisitorID: truncate(visitorID, 64),
		CreatedAt: now.UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&click).Error; err != nil {
		return fmt.Errorf("record link click: %w", err)
	}
	return nil
}

// PeriodCount 描述一个统计时间段内的访问量
type PeriodCount struct {
	Start          time.Time `json:"start"`
	Views          int64     `json:"views"`
	UniqueVisitors int64     `json:"unique_visitors"`
}

// DailyViews 返回最近 days 天的每日访问量，按时间升序，没有访问的日期计为 0
func (s *AnalyticsService) DailyViews(ctx context.Context, profileID uint, days int, now time.Time) ([]PeriodCount, error) {
	days = clampPeriods(days, defaultDailyDays, maxDailyDays)
	today := startOfDay(now)
	starts := make([]time.Time, days)
	for i := range starts {
		starts[i] = today.AddDate(0, 0, i-days+1)
	}
	return s.bucketViews(ctx, profileID, starts, startOfDay)
}

// WeeklyViews 返回最近 weeks 周的每周访问量，每周从周一开始
func (s *AnalyticsService) WeeklyViews(ctx context.Context, profileID uint, weeks int, now time.Time) ([]PeriodCount, error) {
	weeks = clampPeriods(weeks, defaultWeeklyWeeks, maxWeeklyWeeks)
	current := startOfWeek(now)
	starts := make([]time.Time, weeks)
	for i := range starts {
		starts[i] = current.AddDate(0, 0, 7*(i-weeks+1))
	}
	return s.bucketViews(ctx, profileID, starts, startOfWeek)
}

func (s *AnalyticsService) bucketViews(ctx context.Context, profileID uint, starts []time.Time, bucket func(time.Time) time.Time) ([]PeriodCount, error) {
	var rows []db.ProfileView
	if err := s.db.WithContext(ctx).
		Select("visitor_id", "created_at").
		Where("profile_id = ? AND created_at >= ?", profileID, starts[0]).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load profile views: %w", err)
	}

	index := make(map[int64]int, len(starts))
	result := make([]PeriodCount, len(starts))
	visitors := make([]map[string]struct{}, len(starts))
	for i, start := range starts {
		index[start.Unix()] = i
		result[i] = PeriodCount{Start: start}
		visitors[i] = make(map[string]struct{})
	}

	for _, row := range rows {
		i, ok := index[bucket(row.CreatedAt).Unix()]
		if !ok {
			continue
		}
		result[i].Views++
		if row.VisitorID != "" {
			visitors[i][row.VisitorID] = struct{}{}
		}
	}
	for i := range result {
		result[i].UniqueVisitors = int64(len(visitors[i]))
	}
	return result, nil
}

// LinkClickCount 描述单个派生链接的点击量
type LinkClickCount struct {
	LinkID string `json:"link_id"`
	Title  string `json:"title"`
	Clicks int64  `json:"clicks"`
}

// TopLinks 返回点击量最高的链接
func (s *AnalyticsService) TopLinks(ctx context.Context, profileID uint, limit int) ([]LinkClickCount, error) {
	if limit <= 0 {
		limit = defaultTopLinks
	}

	var rows []LinkClickCount
	if err := s.db.WithContext(ctx).Model(&db.LinkClick{}).
		Select("link_id, COUNT(*) AS clicks").
		Where("profile_id = ?", profileID).
		Group("link_id").
		Order("clicks DESC, link_id ASC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("top links: %w", err)
	}

	for i := range rows {
		if kind, ok := links.KindFromID(rows[i].LinkID); ok {
			rows[i].Title = links.Title(kind)
		}
	}
	return rows, nil
}

// SourceCount 描述单个来源渠道的访问量
type SourceCount struct {
	Source string `json:"source"`
	Views  int64  `json:"views"`
}

// SourceBreakdown 按来源渠道统计访问量
func (s *AnalyticsService) SourceBreakdown(ctx context.Context, profileID uint) ([]SourceCount, error) {
	var rows []SourceCount
	if err := s.db.WithContext(ctx).Model(&db.ProfileView{}).
		Select("source, COUNT(*) AS views").
		Where("profile_id = ?", profileID).
		Group("source").
		Order("views DESC, source ASC").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("source breakdown: %w", err)
	}
	return rows, nil
}

// ViewSummary 汇总名片的总体访问数据
type ViewSummary struct {
	TotalViews     int64 `json:"total_views"`
	UniqueVisitors int64 `json:"unique_visitors"`
	ViewsLast7Days int64 `json:"views_last_7_days"`
	TotalClicks    int64 `json:"total_clicks"`
}

// Summary 返回名片的总访问量、独立访客、近 7 天访问量和总点击量
func (s *AnalyticsService) Summary(ctx context.Context, profileID uint, now time.Time) (ViewSummary, error) {
	var summary ViewSummary
	views := s.db.WithContext(ctx).Model(&db.ProfileView{}).Where("profile_id = ?", profileID)

	if err := views.Session(&gorm.Session{}).Count(&summary.TotalViews).Error; err != nil {
		return summary, fmt.Errorf("count views: %w", err)
	}
	if err := views.Session(&gorm.Session{}).
		Where("visitor_id <> ''").
		Distinct("visitor_id").
		Count(&summary.UniqueVisitors).Error; err != nil {
		return summary, fmt.Errorf("count visitors: %w", err)
	}
	if err := views.Session(&gorm.Session{}).
		Where("created_at >= ?", startOfDay(now).AddDate(0, 0, -6)).
		Count(&summary.ViewsLast7Days).Error; err != nil {
		return summary, fmt.Errorf("count recent views: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&db.LinkClick{}).
		Where("profile_id = ?", profileID).
		Count(&summary.TotalClicks).Error; err != nil {
		return summary, fmt.Errorf("count clicks: %w", err)
	}
	return summary, nil
}

func normalizeSource(source string) string {
	switch source {
	case SourceQR, SourceNFC, SourceReferrer:
		return source
	}
	return SourceDirect
}

func referrerHost(referrer string) string {
	referrer = strings.TrimSpace(referrer)
	if referrer == "" {
		return ""
	}
	parsed, err := url.Parse(referrer)
	if err != nil || parsed.Host == "" {
		return ""
	}
	return strings.ToLower(parsed.Host)
}

func truncate(v string, max int) string {
	if len(v) > max {
		return v[:max]
	}
	return v
}

func clampPeriods(n, fallback, max int) int {
	if n <= 0 {
		return fallback
	}
	if n > max {
		return max
	}
	return n
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func startOfWeek(t time.Time) time.Time {
	day := startOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}
