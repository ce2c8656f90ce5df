package match

import (
	"sort"
	"time"

	"recruit-agent-go/internal/constants"
)

const (
	maxRecommendations = 5
	maxAlerts          = 10
)

// Format 把结构完整的模型响应规范化为AnalysisRecord。
// 补齐缺省数组、按权重公式复核并夹取分数、映射告警枚举、派生市场字段。
// provenance为complete。
func Format(resp *ModelResponse, skillMatch SkillMatch, salary SalaryRange) *AnalysisRecord {
	if resp.Resume.MatchedKeywords == nil {
		resp.Resume.MatchedKeywords = []string{}
	}
	if resp.Resume.HighlightsToStandOut == nil {
		resp.Resume.HighlightsToStandOut = []string{}
	}
	if resp.Resume.Suggestions == nil {
		resp.Resume.Suggestions = []string{}
	}

	alerts := formatAlerts(resp.SignauxAlerte)
	score := applyScoreCaps(resp.Resume.Score, resp.Resume.Correspondance)

	record := &AnalysisRecord{
		MatchScore: score,
		Skills: SkillsDetail{
			Score:   clampScore(resp.Resume.Correspondance.Competences),
			Matched: skillMatch.Matched,
			Missing: skillMatch.Missing,
		},
		Languages: ScoreDetail{Score: clampScore(resp.Resume.Correspondance.Langues)},
		Experience: BooleanDetail{
			Met:    resp.Resume.Correspondance.Experience,
			Detail: alertDetail(constants.AlertCategoryExperience, alerts),
		},
		Education: BooleanDetail{
			Met:    resp.Resume.Correspondance.Formation,
			Detail: alertDetail(constants.AlertCategoryEducation, alerts),
		},
		MatchedKeywords:          resp.Resume.MatchedKeywords,
		Highlights:               resp.Resume.HighlightsToStandOut,
		RecruiterRecommendations: capStrings(resp.Resume.Suggestions, maxRecommendations),
		Alerts:                   alerts,
		Provenance:               constants.ProvenanceComplete,
		AnalyzedAt:               time.Now().Unix(),
	}
	applyMatchLevels(record)
	record.Market = deriveMarket(score, alerts, salary)
	return record
}

// Recover 从任意形状的map中逐字段带类型守卫地恢复分析结果。
// 数字缺省为0、布尔为false、数组为空；保证关键词和告警至少各有一条，
// 下游不需要区分空与缺失。provenance为recovered。
func Recover(raw map[string]any, skillMatch SkillMatch, salary SalaryRange) *AnalysisRecord {
	record := &AnalysisRecord{
		MatchedKeywords:          []string{},
		Highlights:               []string{},
		RecruiterRecommendations: []string{},
		Alerts:                   []Alert{},
		Provenance:               constants.ProvenanceRecovered,
		AnalyzedAt:               time.Now().Unix(),
	}
	record.Skills.Matched = skillMatch.Matched
	record.Skills.Missing = skillMatch.Missing

	if resume, ok := raw["resume"].(map[string]any); ok {
		record.MatchScore = clampScore(asInt(resume["score"]))
		if corr, ok := resume["correspondance"].(map[string]any); ok {
			record.Skills.Score = clampScore(asInt(corr["competences"]))
			record.Languages.Score = clampScore(asInt(corr["langues"]))
			record.Experience.Met = asBool(corr["experience"])
			record.Education.Met = asBool(corr["formation"])
		}
		record.MatchedKeywords = asStrings(resume["matchedKeywords"])
		record.Highlights = asStrings(resume["highlightsToStandOut"])
		record.RecruiterRecommendations = capStrings(asStrings(resume["suggestions"]), maxRecommendations)
	}

	if rawAlerts, ok := raw["signauxAlerte"].([]any); ok {
		for _, ra := range rawAlerts {
			m, ok := ra.(map[string]any)
			if !ok {
				continue
			}
			message, ok := m["probleme"].(string)
			if !ok || message == "" {
				continue
			}
			alertType, _ := m["type"].(string)
			severity, _ := m["severite"].(string)
			record.Alerts = append(record.Alerts, Alert{
				Category: alertCategoryFromWire(alertType),
				Message:  message,
				Severity: severityFromWire(severity),
				Score:    clampScore(asInt(m["score"])),
			})
			if len(record.Alerts) >= maxAlerts {
				break
			}
		}
	}

	if len(record.RecruiterRecommendations) == 0 {
		record.RecruiterRecommendations = []string{
			"L'analyse automatique a rencontré des difficultés, veuillez vérifier manuellement",
		}
	}
	if len(record.Alerts) == 0 {
		record.Alerts = append(record.Alerts, Alert{
			Category: constants.AlertCategorySkill,
			Message:  "Données partiellement récupérées suite à une erreur d'analyse",
			Severity: constants.AlertSeverityMedium,
			Score:    0,
		})
	}
	if len(record.MatchedKeywords) == 0 {
		record.MatchedKeywords = []string{"technologies", "compétences techniques"}
	}

	record.MatchScore = applyCapsToRecord(record)
	applyMatchLevels(record)
	record.Market = deriveMarket(record.MatchScore, record.Alerts, salary)
	return record
}

// Fallback 生成与AI无关的确定性兜底记录：
// 总分50、技能与语言子分50、经验学历未达标、恰好一条medium技能告警。
// provenance为fallback。
func Fallback(salary SalaryRange) *AnalysisRecord {
	alerts := []Alert{{
		Category: constants.AlertCategorySkill,
		Message:  "L'analyse automatique n'a pas pu générer un résultat structuré",
		Severity: constants.AlertSeverityMedium,
		Score:    0,
	}}

	record := &AnalysisRecord{
		MatchScore: 50,
		Skills:     SkillsDetail{Score: 50, Matched: []string{}, Missing: []string{}},
		Languages:  ScoreDetail{Score: 50},
		Experience: BooleanDetail{Met: false},
		Education:  BooleanDetail{Met: false},
		MatchedKeywords: []string{
			"compétences techniques", "aptitudes professionnelles",
		},
		Highlights: []string{},
		RecruiterRecommendations: []string{
			"L'analyse automatique n'a pas pu être complétée, veuillez examiner le profil manuellement",
		},
		Alerts:     alerts,
		Provenance: constants.ProvenanceFallback,
		AnalyzedAt: time.Now().Unix(),
	}
	applyMatchLevels(record)
	record.Market = deriveMarket(record.MatchScore, alerts, salary)
	return record
}

// applyScoreCaps 夹取总分并执行硬性封顶规则：
// 经验未达标≤50、学历未达标≤50、技能覆盖<40≤30
func applyScoreCaps(score int, corr ModelCorrespondance) int {
	score = clampScore(score)
	if !corr.Experience && score > 50 {
		score = 50
	}
	if !corr.Formation && score > 50 {
		score = 50
	}
	if corr.Competences < 40 && score > 30 {
		score = 30
	}
	return score
}

func applyCapsToRecord(r *AnalysisRecord) int {
	return applyScoreCaps(r.MatchScore, ModelCorrespondance{
		Competences: r.Skills.Score,
		Experience:  r.Experience.Met,
		Formation:   r.Education.Met,
		Langues:     r.Languages.Score,
	})
}

// ComputeOverallScore 按权重公式计算总分并套用封顶规则：
// 40%技能 + 10%语言 + 25%经验(0/100) + 25%学历(0/100)
func ComputeOverallScore(corr ModelCorrespondance) int {
	expScore, eduScore := 0, 0
	if corr.Experience {
		expScore = 100
	}
	if corr.Formation {
		eduScore = 100
	}
	score := (40*clampScore(corr.Competences) + 10*clampScore(corr.Langues) + 25*expScore + 25*eduScore) / 100
	return applyScoreCaps(score, corr)
}

// deriveMarket 由最终分数派生决策档位、招聘潜力、预计招聘时长与建议行动
func deriveMarket(score int, alerts []Alert, salary SalaryRange) Market {
	m := Market{SalaryRange: salary}

	switch {
	case score >= 85:
		m.Decision = constants.DecisionStronglyRecommended
	case score >= 70:
		m.Decision = constants.DecisionRecommended
	case score >= 50:
		m.Decision = constants.DecisionConsider
	default:
		m.Decision = constants.DecisionNotRecommended
	}

	switch {
	case score >= 65:
		m.HiringPotential = constants.HiringPotentialHigh
	case score >= 50:
		m.HiringPotential = constants.HiringPotentialMedium
	default:
		m.HiringPotential = constants.HiringPotentialLow
	}

	switch {
	case score >= 75:
		m.EstimatedRecruitmentTime = "1-2 semaines"
	case score >= 60:
		m.EstimatedRecruitmentTime = "2-4 semaines"
	default:
		m.EstimatedRecruitmentTime = "4+ semaines"
	}

	m.SuggestedAction = suggestedAction(alerts)
	m.CandidateFeedback = candidateFeedback(alerts)
	return m
}

// suggestedAction 优先转述最高严重度告警
func suggestedAction(alerts []Alert) string {
	for _, a := range alerts {
		if a.Severity == constants.AlertSeverityHigh {
			return "Action prioritaire: " + a.Message
		}
	}
	for _, a := range alerts {
		if a.Severity == constants.AlertSeverityMedium {
			return a.Message
		}
	}
	return "Procéder à l'évaluation standard"
}

// candidateFeedback 按严重度降序输出告警描述
func candidateFeedback(alerts []Alert) []string {
	order := map[string]int{
		constants.AlertSeverityHigh:   3,
		constants.AlertSeverityMedium: 2,
		constants.AlertSeverityLow:    1,
	}
	sorted := make([]Alert, len(alerts))
	copy(sorted, alerts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return order[sorted[i].Severity] > order[sorted[j].Severity]
	})

	feedback := make([]string, 0, len(sorted))
	for _, a := range sorted {
		if a.Message != "" {
			feedback = append(feedback, a.Message)
		}
	}
	return feedback
}

// formatAlerts 映射法语告警到持久化枚举，截断到上限
func formatAlerts(raw []ModelAlert) []Alert {
	alerts := make([]Alert, 0, len(raw))
	for _, a := range raw {
		alerts = append(alerts, Alert{
			Category: alertCategoryFromWire(a.Type),
			Message:  a.Probleme,
			Severity: severityFromWire(a.Severite),
			Score:    clampScore(a.Score),
		})
		if len(alerts) >= maxAlerts {
			break
		}
	}
	return alerts
}

// matchLevel 由指定类别第一条告警的严重度派生定性匹配档位：
// low=excellent、medium=good、high=needs_improvement、无告警=not_evaluated
func matchLevel(category string, alerts []Alert) string {
	for _, a := range alerts {
		if a.Category != category {
			continue
		}
		switch a.Severity {
		case constants.AlertSeverityLow:
			return constants.MatchLevelExcellent
		case constants.AlertSeverityMedium:
			return constants.MatchLevelGood
		case constants.AlertSeverityHigh:
			return constants.MatchLevelNeedsImprovement
		}
		return constants.MatchLevelNotEvaluated
	}
	return constants.MatchLevelNotEvaluated
}

// applyMatchLevels 为四个维度填充定性档位
func applyMatchLevels(r *AnalysisRecord) {
	r.Skills.Level = matchLevel(constants.AlertCategorySkill, r.Alerts)
	r.Languages.Level = matchLevel(constants.AlertCategoryLanguage, r.Alerts)
	r.Experience.Level = matchLevel(constants.AlertCategoryExperience, r.Alerts)
	r.Education.Level = matchLevel(constants.AlertCategoryEducation, r.Alerts)
}

// alertDetail 取指定类别第一条告警的描述
func alertDetail(category string, alerts []Alert) string {
	for _, a := range alerts {
		if a.Category == category {
			return a.Message
		}
	}
	return ""
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func capStrings(in []string, limit int) []string {
	if len(in) > limit {
		return in[:limit]
	}
	return in
}

func asInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asStrings(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
