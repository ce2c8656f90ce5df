package match

import "recruit-agent-go/internal/constants"

// ModelResponse LLM返回的匹配分析JSON（法语键名，与prompt约定一致）
type ModelResponse struct {
	Resume        ModelResume  `json:"resume"`
	SignauxAlerte []ModelAlert `json:"signauxAlerte"`
}

// ModelResume 响应中的resume块
type ModelResume struct {
	Score          int                 `json:"score"`
	Correspondance ModelCorrespondance `json:"correspondance"`
	// 以下三个数组模型可能省略，Format前统一填空slice
	MatchedKeywords      []string `json:"matchedKeywords"`
	HighlightsToStandOut []string `json:"highlightsToStandOut"`
	Suggestions          []string `json:"suggestions"`
}

// ModelCorrespondance 各维度子分
type ModelCorrespondance struct {
	Competences int  `json:"competences"` // 技能匹配度 0-100
	Experience  bool `json:"experience"`  // 经验年限是否达标
	Formation   bool `json:"formation"`   // 学历是否达标
	Langues     int  `json:"langues"`     // 语言匹配度 0-100
}

// ModelAlert 响应中的单条警示
type ModelAlert struct {
	Type     string `json:"type"`     // Compétence | Expérience | Formation | Langue
	Probleme string `json:"probleme"` // 问题描述
	Severite string `json:"severite"` // faible | moyenne | élevée
	Score    int    `json:"score"`
}

// AnalysisRecord 持久化到application行的规范化分析结果
type AnalysisRecord struct {
	MatchScore int           `json:"match_score"`
	Skills     SkillsDetail  `json:"skills"`
	Languages  ScoreDetail   `json:"languages"`
	Experience BooleanDetail `json:"experience"`
	Education  BooleanDetail `json:"education"`

	MatchedKeywords          []string `json:"matched_keywords"`
	Highlights               []string `json:"highlights"`
	RecruiterRecommendations []string `json:"recruiter_recommendations"`

	Alerts []Alert `json:"alerts"`
	Market Market  `json:"market"`

	// complete | recovered | fallback
	Provenance string `json:"provenance"`
	AnalyzedAt int64  `json:"analyzed_at"`
}

// SkillsDetail 技能维度：LLM子分加上启发式匹配出的命中/缺失列表
type SkillsDetail struct {
	Score   int      `json:"score"`
	Level   string   `json:"level"` // 由该类别告警严重度派生的定性档位
	Matched []string `json:"matched"`
	Missing []string `json:"missing"`
}

// ScoreDetail 打分型维度
type ScoreDetail struct {
	Score int    `json:"score"`
	Level string `json:"level"`
}

// BooleanDetail 达标型维度
type BooleanDetail struct {
	Met    bool   `json:"met"`
	Level  string `json:"level"`
	Detail string `json:"detail,omitempty"`
}

// Alert 规范化后的警示
type Alert struct {
	Category string `json:"category"` // Skill | Experience | Education | Language
	Message  string `json:"message"`
	Severity string `json:"severity"` // low | medium | high
	Score    int    `json:"score"`
}

// Market 由最终分数派生的市场字段
type Market struct {
	Decision                 string      `json:"decision"`
	HiringPotential          string      `json:"hiring_potential"`
	EstimatedRecruitmentTime string      `json:"estimated_recruitment_time"`
	SalaryRange              SalaryRange `json:"salary_range"`
	SuggestedAction          string      `json:"suggested_action"`
	CandidateFeedback        []string    `json:"candidate_feedback"`
}

// SalaryRange 薪资区间估算
type SalaryRange struct {
	Min      int    `json:"min"`
	Max      int    `json:"max"`
	Currency string `json:"currency"`
}

// alertCategoryFromWire 法语警示类型映射到持久化枚举
func alertCategoryFromWire(t string) string {
	switch t {
	case "Compétence", "Competence":
		return constants.AlertCategorySkill
	case "Expérience", "Experience":
		return constants.AlertCategoryExperience
	case "Formation":
		return constants.AlertCategoryEducation
	case "Langue":
		return constants.AlertCategoryLanguage
	default:
		return constants.AlertCategorySkill
	}
}

// severityFromWire 法语严重度映射到持久化枚举，未知值按medium处理
func severityFromWire(s string) string {
	switch s {
	case "faible":
		return constants.AlertSeverityLow
	case "moyenne":
		return constants.AlertSeverityMedium
	case "élevée", "elevee":
		return constants.AlertSeverityHigh
	default:
		return constants.AlertSeverityMedium
	}
}
