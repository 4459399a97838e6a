// Package scheduling 排班引擎核心算法：可用性账本、分配快照、冲突检测、工作量分析与排班生命周期。
//
// 本包只处理内存快照，不做任何 I/O（人员目录除外，通过 Directory 接口注入）。
// 持久化、加锁与事件发布由 service 层负责。
package scheduling

import (
	"github.com/hgj313/hr2-sub000/config"
)

// Options 算法参数
type Options struct {
	StandardHoursPerDay    float64
	UnderutilizedThreshold float64
	OverloadThreshold      float64
	OptimalLower           float64
	OptimalUpper           float64
	// CrossSchedule 为 true 时，时间重叠与超额分配检测会纳入同一资源在其他排班中的分配
	CrossSchedule bool
	MaxParallel   int
}

// DefaultOptions 默认参数：每日 8 小时，低于 70% 为闲置，高于 100% 为过载
func DefaultOptions() Options {
	return Options{
		StandardHoursPerDay:    8,
		UnderutilizedThreshold: 70,
		OverloadThreshold:      100,
		OptimalLower:           80,
		OptimalUpper:           95,
		CrossSchedule:          false,
		MaxParallel:            8,
	}
}

// OptionsFromConfig 从配置构造参数
func OptionsFromConfig(cfg *config.SchedulingConfig) Options {
	opts := Options{
		StandardHoursPerDay:    cfg.StandardHoursPerDay,
		UnderutilizedThreshold: cfg.UnderutilizedThreshold,
		OverloadThreshold:      cfg.OverloadThreshold,
		OptimalLower:           cfg.OptimalLower,
		OptimalUpper:           cfg.OptimalUpper,
		CrossSchedule:          cfg.CrossScheduleConflictDetection,
		MaxParallel:            cfg.MaxParallelResources,
	}
	if opts.MaxParallel < 1 {
		opts.MaxParallel = 1
	}
	return opts
}
