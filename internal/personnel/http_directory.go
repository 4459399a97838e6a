// Package personnel 人员目录对接。
// 排班引擎只依赖资源存在性与技能两项查询，目录本身由外部系统维护。
package personnel

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/hgj313/hr2-sub000/config"
	"github.com/hgj313/hr2-sub000/internal/model"
	pkgerrors "github.com/hgj313/hr2-sub000/pkg/errors"
)

// envelope 人员服务的统一响应结构
type envelope[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// resourceDTO 人员服务返回的资源信息
type resourceDTO struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Skills []model.Skill `json:"skills"`
}

// HTTPDirectory 通过 REST 接口访问人员目录
type HTTPDirectory struct {
	client *resty.Client
	logger *zap.Logger
}

// NewHTTPDirectory 创建人员目录客户端，5xx 与网络错误按配置重试
func NewHTTPDirectory(cfg *config.PersonnelConfig, logger *zap.Logger) *HTTPDirectory {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		}).
		SetHeader("Accept", "application/json")

	return &HTTPDirectory{client: client, logger: logger}
}

// Exists GET /resources/{id}，404 视为不存在
func (d *HTTPDirectory) Exists(ctx context.Context, resourceID string) (bool, error) {
	var out envelope[resourceDTO]
	resp, err := d.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/resources/" + url.PathEscape(resourceID))
	if err != nil {
		d.logger.Error("调用人员目录失败", zap.String("resource_id", resourceID), zap.Error(err))
		return false, fmt.Errorf("调用人员目录失败: %w", err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return false, nil
	case resp.IsError():
		return false, fmt.Errorf("人员目录返回异常状态 %d", resp.StatusCode())
	case out.Code != 0:
		return false, fmt.Errorf("人员目录返回错误: %s (code: %d)", out.Message, out.Code)
	}
	return true, nil
}

// GetSkills GET /resources/{id}/skills
func (d *HTTPDirectory) GetSkills(ctx context.Context, resourceID string) ([]model.Skill, error) {
	var out envelope[[]model.Skill]
	resp, err := d.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/resources/" + url.PathEscape(resourceID) + "/skills")
	if err != nil {
		d.logger.Error("查询资源技能失败", zap.String("resource_id", resourceID), zap.Error(err))
		return nil, fmt.Errorf("查询资源技能失败: %w", err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, pkgerrors.ErrResourceNotFound
	case resp.IsError():
		return nil, fmt.Errorf("人员目录返回异常状态 %d", resp.StatusCode())
	case out.Code != 0:
		return nil, fmt.Errorf("人员目录返回错误: %s (code: %d)", out.Message, out.Code)
	}
	return out.Data, nil
}
