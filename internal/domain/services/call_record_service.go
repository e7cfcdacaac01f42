package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"ura-call-bridge/internal/domain/models"
	"ura-call-bridge/internal/infrastructure/config"
)

const (
	activeRecordsLimit = 50
	defaultPageSize    = 20
	maxPageSize        = 100
)

// InterfaceCallRecordService defines the call record service interface
type InterfaceCallRecordService interface {
	FindByCallID(ctx context.Context, callID string) (*models.CallRecord, error)
	MarkInactive(ctx context.Context, callID string, update models.HangupUpdate) error
	MarkAllInactive(ctx context.Context) (int64, error)
	GetActiveCallRecords(ctx context.Context) ([]models.CallRecord, error)
	SearchCallRecords(ctx context.Context, query models.CallRecordQuery) ([]models.CallRecord, models.PaginationResult, error)
}

// CallRecordService 通话记录的读写
type CallRecordService struct {
	DB     *gorm.DB
	Config *config.Config
}

// NewCallRecordService 创建通话记录服务
func NewCallRecordService(db *gorm.DB, cfg *config.Config) InterfaceCallRecordService {
	return &CallRecordService{
		DB:     db,
		Config: cfg,
	}
}

// 1 FindByCallID 按 uniqueid 查找通话记录
func (s *CallRecordService) FindByCallID(ctx context.Context, callID string) (*models.CallRecord, error) {
	var record models.CallRecord
	if err := s.DB.WithContext(ctx).Where("uniqueid = ?", callID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCallRecordNotFound
		}
		return nil, fmt.Errorf("查询通话记录失败: %w", err)
	}
	return &record, nil
}

// 2 MarkInactive 将单条记录标记为结束，只会把 active 置为 false
func (s *CallRecordService) MarkInactive(ctx context.Context, callID string, update models.HangupUpdate) error {
	result := s.DB.WithContext(ctx).
		Model(&models.CallRecord{}).
		Where("uniqueid = ?", callID).
		Updates(map[string]interface{}{
			"active":              false,
			"hangup_cause":        update.Cause,
			"hangup_time":         update.Time,
			"ivr_id":              update.IvrReference,
			"metadata_updated_at": update.Time,
		})
	if result.Error != nil {
		return fmt.Errorf("更新通话记录失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrCallRecordNotFound
	}
	return nil
}

// 3 MarkAllInactive 将所有 active=true 的记录置为 false，返回修改条数
func (s *CallRecordService) MarkAllInactive(ctx context.Context) (int64, error) {
	result := s.DB.WithContext(ctx).
		Model(&models.CallRecord{}).
		Where("active = ?", true).
		Updates(map[string]interface{}{
			"active":              false,
			"metadata_updated_at": time.Now(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("批量结束通话记录失败: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// 4 GetActiveCallRecords 最近的进行中通话
func (s *CallRecordService) GetActiveCallRecords(ctx context.Context) ([]models.CallRecord, error) {
	var records []models.CallRecord
	err := s.DB.WithContext(ctx).
		Where("active = ?", true).
		Order("datetime DESC").
		Limit(activeRecordsLimit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("查询进行中通话失败: %w", err)
	}
	return records, nil
}

// 5 SearchCallRecords 按号码/uniqueid/协议号/processo、状态、IVR选项和日期搜索
func (s *CallRecordService) SearchCallRecords(ctx context.Context, q models.CallRecordQuery) ([]models.CallRecord, models.PaginationResult, error) {
	page, pageSize := q.Page, q.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	query := s.DB.WithContext(ctx).Model(&models.CallRecord{})

	if q.Query != "" {
		like := "%" + q.Query + "%"
		query = query.Where("customer_number LIKE ? OR uniqueid LIKE ? OR protocol LIKE ? OR metadata_processo LIKE ?",
			like, like, like, like)
	}

	switch q.Status {
	case models.CallRecordStatusActive:
		query = query.Where("active = ?", true)
	case models.CallRecordStatusFinished:
		query = query.Where("active = ?", false)
	case "", models.CallRecordStatusAll:
	default:
		return nil, models.PaginationResult{}, fmt.Errorf("%w: 无效的状态过滤 %s", ErrInvalidQuery, q.Status)
	}

	if q.Option != "" {
		query = query.Where("metadata_option = ?", q.Option)
	}

	loc := time.Local
	if s.Config != nil {
		loc = s.Config.Location()
	}
	if q.StartDate != "" {
		start, err := time.ParseInLocation("2006-01-02", q.StartDate, loc)
		if err != nil {
			return nil, models.PaginationResult{}, fmt.Errorf("%w: 无效的开始日期 %s", ErrInvalidQuery, q.StartDate)
		}
		query = query.Where("datetime >= ?", start)
	}
	if q.EndDate != "" {
		end, err := time.ParseInLocation("2006-01-02", q.EndDate, loc)
		if err != nil {
			return nil, models.PaginationResult{}, fmt.Errorf("%w: 无效的结束日期 %s", ErrInvalidQuery, q.EndDate)
		}
		// 包含结束日期当天
		query = query.Where("datetime < ?", end.AddDate(0, 0, 1))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, models.PaginationResult{}, fmt.Errorf("统计通话记录失败: %w", err)
	}

	var records []models.CallRecord
	offset := (page - 1) * pageSize
	if err := query.Order("datetime DESC").Limit(pageSize).Offset(offset).Find(&records).Error; err != nil {
		return nil, models.PaginationResult{}, fmt.Errorf("查询通话记录失败: %w", err)
	}

	return records, models.NewPaginationResult(total, page, pageSize), nil
}
