package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/hgj313/hr2-sub000/internal/dto"
	"github.com/hgj313/hr2-sub000/internal/model"
	"github.com/hgj313/hr2-sub000/internal/scheduling"
	pkgerrors "github.com/hgj313/hr2-sub000/pkg/errors"
	"github.com/hgj313/hr2-sub000/pkg/interval"
)

// ── 可用性模块业务错误 ──

var (
	ErrAvailabilityNotFound = errors.New("可用性记录不存在")
	ErrCapacityRequired     = errors.New("limited 类型必须指定容量比例")
	ErrInvalidCapacity      = errors.New("容量比例必须在 0-100 之间")
	ErrICSSourceRequired    = errors.New("必须提供 ICS 内容或订阅地址")
	ErrICSFetchFailed       = errors.New("获取 ICS 订阅失败")
	ErrICSParseFailed       = errors.New("ICS 文件解析失败")
)

// AvailabilityService 资源可用性业务接口
type AvailabilityService interface {
	Create(ctx context.Context, req *dto.CreateAvailabilityRequest, callerID string) (*dto.AvailabilityResponse, error)
	List(ctx context.Context, req *dto.AvailabilityQuery) ([]dto.AvailabilityResponse, error)
	Delete(ctx context.Context, id string) error
	// 查询窗口内的最低容量及逐段解析结果
	Check(ctx context.Context, req *dto.AvailabilityCheckQuery) (*dto.AvailabilityCheckResponse, error)
	// 导入日历忙碌时段，替换窗口内上一次导入的记录
	ImportICS(ctx context.Context, req *dto.ImportICSRequest, callerID string) (*dto.ImportICSResponse, error)
}

type availabilityService struct {
	rt *core
	// fetch 获取订阅地址内容
	fetch func(ctx context.Context, url string) (io.ReadCloser, error)
}

// NewAvailabilityService 创建 AvailabilityService 实例
func NewAvailabilityService(rt *core) AvailabilityService {
	return &availabilityService{rt: rt, fetch: FetchICSContent}
}

func (s *availabilityService) Create(ctx context.Context, req *dto.CreateAvailabilityRequest, callerID string) (*dto.AvailabilityResponse, error) {
	if err := interval.Validate(req.StartDatetime, req.EndDatetime); err != nil {
		return nil, err
	}

	record := &model.ResourceAvailability{
		ResourceID:           req.ResourceID,
		StartDatetime:        req.StartDatetime.UTC(),
		EndDatetime:          req.EndDatetime.UTC(),
		AvailabilityType:     req.AvailabilityType,
		AvailableHoursPerDay: req.AvailableHoursPerDay,
		Reason:               req.Reason,
		Source:               model.AvailabilitySourceManual,
	}
	switch req.AvailabilityType {
	case model.AvailabilityUnavailable:
		record.CapacityPercentage = 0
	case model.AvailabilityLimited:
		if req.CapacityPercentage == nil {
			return nil, ErrCapacityRequired
		}
		record.CapacityPercentage = *req.CapacityPercentage
	default:
		record.CapacityPercentage = scheduling.FullCapacity
		if req.CapacityPercentage != nil {
			record.CapacityPercentage = *req.CapacityPercentage
		}
	}
	if record.CapacityPercentage < 0 || record.CapacityPercentage > scheduling.FullCapacity {
		return nil, fmt.Errorf("%w: %.2f", ErrInvalidCapacity, record.CapacityPercentage)
	}
	record.CreatedBy = model.StringPtr(callerID)
	record.UpdatedBy = model.StringPtr(callerID)

	if err := s.rt.repo.Availability.Create(ctx, record); err != nil {
		s.rt.logger.Error("创建可用性记录失败", zap.String("resource_id", req.ResourceID), zap.Error(err))
		return nil, err
	}
	resp := toAvailabilityResponse(*record)
	return &resp, nil
}

func (s *availabilityService) List(ctx context.Context, req *dto.AvailabilityQuery) ([]dto.AvailabilityResponse, error) {
	if !req.Start.IsZero() && !req.End.IsZero() {
		if err := interval.Validate(req.Start, req.End); err != nil {
			return nil, err
		}
	}
	records, err := s.rt.repo.Availability.ListByResources(ctx, []string{req.ResourceID}, req.Start, req.End)
	if err != nil {
		s.rt.logger.Error("查询可用性记录失败", zap.String("resource_id", req.ResourceID), zap.Error(err))
		return nil, err
	}
	out := make([]dto.AvailabilityResponse, 0, len(records))
	for _, r := range records {
		out = append(out, toAvailabilityResponse(r))
	}
	return out, nil
}

func (s *availabilityService) Delete(ctx context.Context, id string) error {
	if err := s.rt.repo.Availability.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAvailabilityNotFound
		}
		s.rt.logger.Error("删除可用性记录失败", zap.String("availability_id", id), zap.Error(err))
		return err
	}
	return nil
}

func (s *availabilityService) Check(ctx context.Context, req *dto.AvailabilityCheckQuery) (*dto.AvailabilityCheckResponse, error) {
	start, end := req.Start.UTC(), req.End.UTC()
	if err := interval.Validate(start, end); err != nil {
		return nil, err
	}

	records, err := s.rt.repo.Availability.ListByResources(ctx, []string{req.ResourceID}, start, end)
	if err != nil {
		s.rt.logger.Error("查询可用性记录失败", zap.String("resource_id", req.ResourceID), zap.Error(err))
		return nil, err
	}
	ledger := scheduling.NewLedger(records)
	segments, err := ledger.Segments(req.ResourceID, start, end)
	if err != nil {
		return nil, err
	}
	capacity := scheduling.MinimumCapacity(segments)

	resp := &dto.AvailabilityCheckResponse{
		ResourceID:         req.ResourceID,
		Start:              dto.FormatTime(start),
		End:                dto.FormatTime(end),
		CapacityPercentage: dto.Round2(capacity.Percentage),
		Reason:             capacity.Reason,
		Segments:           make([]dto.SegmentResponse, 0, len(segments)),
	}
	if !capacity.Start.IsZero() {
		resp.LimitingStart = dto.FormatTimePtr(&capacity.Start)
		resp.LimitingEnd = dto.FormatTimePtr(&capacity.End)
	}
	for _, seg := range segments {
		sr := dto.SegmentResponse{
			Start:    dto.FormatTime(seg.Start),
			End:      dto.FormatTime(seg.End),
			Capacity: dto.Round2(seg.Capacity),
		}
		if seg.Record != nil {
			sr.AvailabilityID = model.StringPtr(seg.Record.AvailabilityID)
			sr.Reason = seg.Record.Reason
		}
		resp.Segments = append(resp.Segments, sr)
	}
	return resp, nil
}

// ════════════════════════════════════════════════════════════
// ImportICS
// ════════════════════════════════════════════════════════════

func (s *availabilityService) ImportICS(ctx context.Context, req *dto.ImportICSRequest, callerID string) (*dto.ImportICSResponse, error) {
	windowStart, windowEnd := req.WindowStart.UTC(), req.WindowEnd.UTC()
	if err := interval.Validate(windowStart, windowEnd); err != nil {
		return nil, err
	}

	exists, err := s.rt.directory.Exists(ctx, req.ResourceID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, pkgerrors.ErrResourceNotFound
	}

	var reader io.Reader
	switch {
	case strings.TrimSpace(req.Content) != "":
		reader = strings.NewReader(req.Content)
	case req.URL != "":
		body, err := s.fetch(ctx, req.URL)
		if err != nil {
			s.rt.logger.Warn("获取 ICS 订阅失败", zap.String("resource_id", req.ResourceID), zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrICSFetchFailed, err)
		}
		defer body.Close()
		reader = body
	default:
		return nil, ErrICSSourceRequired
	}

	records, skipped, err := ParseAvailabilityICS(reader, req.ResourceID, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrICSParseFailed, err)
	}
	for i := range records {
		records[i].CreatedBy = model.StringPtr(callerID)
		records[i].UpdatedBy = model.StringPtr(callerID)
	}

	if err := s.rt.repo.Availability.ReplaceImported(ctx, req.ResourceID, windowStart, windowEnd, records); err != nil {
		s.rt.logger.Error("保存 ICS 导入记录失败", zap.String("resource_id", req.ResourceID), zap.Error(err))
		return nil, err
	}

	s.rt.logger.Info("ICS 导入完成",
		zap.String("resource_id", req.ResourceID),
		zap.Int("imported", len(records)),
		zap.Int("skipped", skipped),
	)
	return &dto.ImportICSResponse{ResourceID: req.ResourceID, Imported: len(records), Skipped: skipped}, nil
}

// ── 转换 ──

func toAvailabilityResponse(r model.ResourceAvailability) dto.AvailabilityResponse {
	return dto.AvailabilityResponse{
		ID:                   r.AvailabilityID,
		ResourceID:           r.ResourceID,
		StartDatetime:        dto.FormatTime(r.StartDatetime),
		EndDatetime:          dto.FormatTime(r.EndDatetime),
		AvailabilityType:     r.AvailabilityType,
		CapacityPercentage:   r.CapacityPercentage,
		AvailableHoursPerDay: r.AvailableHoursPerDay,
		Reason:               r.Reason,
		Source:               r.Source,
		CreatedAt:            dto.FormatTime(r.CreatedAt),
	}
}
