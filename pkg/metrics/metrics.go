// Package metrics 排班引擎的 Prometheus 指标。
// 所有指标注册在独立的 Registry 上，由 /metrics 路由暴露。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hr_scheduling"

// Registry 应用自有的指标注册表
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// ════════════════════════════════════════════════════════════
// 冲突检测
// ════════════════════════════════════════════════════════════

// DetectionDuration 单次排班冲突检测耗时
var DetectionDuration = factory.NewHistogram(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "conflict",
	Name:      "detection_duration_seconds",
	Help:      "Time taken to detect and store conflicts for one schedule",
	Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
})

// ConflictsDetected 按类型与严重度累计检出的冲突
var ConflictsDetected = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "conflict",
	Name:      "detected_total",
	Help:      "Conflicts produced by detection runs, by type and severity",
}, []string{"type", "severity"})

// ResourceErrors 批处理中单个资源失败的次数
var ResourceErrors = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "resource_errors_total",
	Help:      "Per-resource failures collected in batch side lists",
}, []string{"operation"})

// ════════════════════════════════════════════════════════════
// 工作量分析
// ════════════════════════════════════════════════════════════

// WorkloadAnalyses 按负载状态累计的分析快照
var WorkloadAnalyses = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "workload",
	Name:      "analyses_total",
	Help:      "Workload snapshots recorded, by workload status",
}, []string{"status"})

// ════════════════════════════════════════════════════════════
// 生命周期
// ════════════════════════════════════════════════════════════

// LifecycleTransitions 按目标状态累计的排班状态流转
var LifecycleTransitions = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "schedule",
	Name:      "transitions_total",
	Help:      "Schedule lifecycle transitions, by target status",
}, []string{"to"})

// LockFallbacks Redis 不可用时降级为进程内锁的次数
var LockFallbacks = factory.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "lock_fallbacks_total",
	Help:      "Lock acquisitions that fell back to the in-process lock table",
})

// ════════════════════════════════════════════════════════════
// HTTP
// ════════════════════════════════════════════════════════════

// HTTPRequestDuration 按路由模板与状态码统计的请求耗时
var HTTPRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "HTTP request latency, by method, route template and status code",
	Buckets:   prometheus.DefBuckets,
}, []string{"method", "route", "status"})
