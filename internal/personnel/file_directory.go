package personnel

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/hgj313/hr2-sub000/internal/model"
	pkgerrors "github.com/hgj313/hr2-sub000/pkg/errors"
)

// fileRoster YAML 文件结构
type fileRoster struct {
	Resources []struct {
		ID     string        `yaml:"id"`
		Name   string        `yaml:"name"`
		Skills []model.Skill `yaml:"skills"`
	} `yaml:"resources"`
}

// FileDirectory 从 YAML 文件加载的人员目录，用于独立部署与测试
type FileDirectory struct {
	path string

	mu     sync.RWMutex
	skills map[string][]model.Skill
}

// NewFileDirectory 加载人员名册文件
func NewFileDirectory(path string) (*FileDirectory, error) {
	d := &FileDirectory{path: path}
	if err := d.Reload(); err != nil {
		return nil, err
	}
	return d, nil
}

// Reload 重新读取名册文件，失败时保留旧数据
func (d *FileDirectory) Reload() error {
	data, err := os.ReadFile(d.path)
	if err != nil {
		return fmt.Errorf("读取人员名册失败: %w", err)
	}

	var roster fileRoster
	if err := yaml.Unmarshal(data, &roster); err != nil {
		return fmt.Errorf("解析人员名册失败: %w", err)
	}

	skills := make(map[string][]model.Skill, len(roster.Resources))
	for _, r := range roster.Resources {
		if r.ID == "" {
			return fmt.Errorf("人员名册存在缺少 id 的条目")
		}
		if _, dup := skills[r.ID]; dup {
			return fmt.Errorf("人员名册中资源 %s 重复", r.ID)
		}
		skills[r.ID] = append([]model.Skill{}, r.Skills...)
	}

	d.mu.Lock()
	d.skills = skills
	d.mu.Unlock()
	return nil
}

// Exists 实现 scheduling.Directory
func (d *FileDirectory) Exists(_ context.Context, resourceID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.skills[resourceID]
	return ok, nil
}

// GetSkills 实现 scheduling.Directory
func (d *FileDirectory) GetSkills(_ context.Context, resourceID string) ([]model.Skill, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	skills, ok := d.skills[resourceID]
	if !ok {
		return nil, pkgerrors.ErrResourceNotFound
	}
	return append([]model.Skill(nil), skills...), nil
}
