package personnel

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/hgj313/hr2-sub000/config"
	"github.com/hgj313/hr2-sub000/internal/model"
	"github.com/hgj313/hr2-sub000/internal/scheduling"
)

// Coalesce 合并对同一资源的并发查询
// 批量检测时多个排班可能同时查询同一资源，只向目录发一次请求
type Coalesce struct {
	next  scheduling.Directory
	group singleflight.Group
}

// NewCoalesce 包装目录实现
func NewCoalesce(next scheduling.Directory) *Coalesce {
	return &Coalesce{next: next}
}

// Exists 实现 scheduling.Directory
func (c *Coalesce) Exists(ctx context.Context, resourceID string) (bool, error) {
	v, err := c.do(ctx, "exists:"+resourceID, func(shared context.Context) (interface{}, error) {
		return c.next.Exists(shared, resourceID)
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// GetSkills 实现 scheduling.Directory，返回副本
func (c *Coalesce) GetSkills(ctx context.Context, resourceID string) ([]model.Skill, error) {
	v, err := c.do(ctx, "skills:"+resourceID, func(shared context.Context) (interface{}, error) {
		return c.next.GetSkills(shared, resourceID)
	})
	if err != nil {
		return nil, err
	}
	return append([]model.Skill(nil), v.([]model.Skill)...), nil
}

// do 共享调用不继承发起者的取消，每个调用方只受自己的 ctx 约束
func (c *Coalesce) do(ctx context.Context, key string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		return fn(shared)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// New 按配置创建人员目录
func New(cfg *config.PersonnelConfig, logger *zap.Logger) (scheduling.Directory, error) {
	switch cfg.Mode {
	case "file":
		dir, err := NewFileDirectory(cfg.File)
		if err != nil {
			return nil, err
		}
		logger.Info("人员目录使用本地名册", zap.String("file", cfg.File))
		return NewCoalesce(dir), nil
	case "http", "":
		logger.Info("人员目录使用远程服务", zap.String("base_url", cfg.BaseURL))
		return NewCoalesce(NewHTTPDirectory(cfg, logger)), nil
	default:
		return nil, fmt.Errorf("未知的人员目录模式: %s", cfg.Mode)
	}
}
