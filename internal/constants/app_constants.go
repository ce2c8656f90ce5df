package constants

import "time"

// 申请状态机: PENDING -> ANALYZING -> ANALYZED | ANALYSIS_FAILED
// 卡死在ANALYZING超过StuckAnalyzingThreshold的申请由维护任务重置回PENDING
const (
	AppStatusPending        = "PENDING"
	AppStatusAnalyzing      = "ANALYZING"
	AppStatusAnalyzed       = "ANALYZED"
	AppStatusAnalysisFailed = "ANALYSIS_FAILED"
)

// 分析结果来源等级
const (
	ProvenanceComplete  = "complete"  // 模型输出结构完整，直接规范化
	ProvenanceRecovered = "recovered" // 模型输出部分可用，逐字段恢复
	ProvenanceFallback  = "fallback"  // 全部尝试失败后的确定性兜底
)

// 告警类别与严重程度（持久化记录用英文枚举）
const (
	AlertCategorySkill      = "Skill"
	AlertCategoryExperience = "Experience"
	AlertCategoryEducation  = "Education"
	AlertCategoryLanguage   = "Language"

	AlertSeverityLow    = "low"
	AlertSeverityMedium = "medium"
	AlertSeverityHigh   = "high"
)

// 分类维度匹配档位，由该类别告警的严重度派生
const (
	MatchLevelExcellent        = "excellent"         // 该类别告警为low
	MatchLevelGood             = "good"              // 该类别告警为medium
	MatchLevelNeedsImprovement = "needs_improvement" // 该类别告警为high
	MatchLevelNotEvaluated     = "not_evaluated"     // 该类别无告警
)

// 招聘决策档位
const (
	DecisionStronglyRecommended = "strongly_recommended" // 总分>=85
	DecisionRecommended         = "recommended"          // 总分>=70
	DecisionConsider            = "consider"             // 总分>=50
	DecisionNotRecommended      = "not_recommended"

	HiringPotentialHigh   = "high"   // 总分>=65
	HiringPotentialMedium = "medium" // 总分>=50
	HiringPotentialLow    = "low"
)

// 队列与维护的默认时间参数，可被配置覆盖
const (
	DefaultJobTimeout        = 5 * time.Minute  // 单个分析任务的处理上限
	DefaultLockDuration      = 30 * time.Second // 任务锁时长
	DefaultLockRenewInterval = 15 * time.Second // 处理中任务的锁续期间隔
	DefaultStallInterval     = 30 * time.Second // 僵死任务巡检间隔
	DefaultBackoffBase       = 1 * time.Second  // 重试退避基数（指数）
	DefaultMaxBackoff        = 30 * time.Second // 退避上限（含抖动后仍不超过）

	CompletedRetention     = 24 * time.Hour   // 已完成任务保留时长，超过即清理
	StuckAnalyzingDuration = 1 * time.Hour    // ANALYZING状态的卡死判定阈值
	DefaultSweepInterval   = 15 * time.Minute // 自愈巡检周期
)
