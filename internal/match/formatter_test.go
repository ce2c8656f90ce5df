package match

import (
	"testing"

	"recruit-agent-go/internal/constants"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSalary() SalaryRange {
	return SalaryRange{Min: 1500, Max: 2500, Currency: "TND"}
}

func TestFormatComplete(t *testing.T) {
	resp := &ModelResponse{
		Resume: ModelResume{
			Score: 82,
			Correspondance: ModelCorrespondance{
				Competences: 85,
				Experience:  true,
				Formation:   true,
				Langues:     70,
			},
			MatchedKeywords:      []string{"Node.js", "MongoDB"},
			HighlightsToStandOut: []string{"5 ans sur des stacks similaires"},
			Suggestions:          []string{"Vérifier le niveau d'anglais"},
		},
		SignauxAlerte: []ModelAlert{
			{Type: "Langue", Probleme: "Anglais non certifié", Severite: "faible", Score: 60},
		},
	}

	record := Format(resp, SkillMatch{Matched: []string{"Node.js"}, Missing: []string{"Docker"}}, testSalary())

	assert.Equal(t, 82, record.MatchScore)
	assert.Equal(t, constants.ProvenanceComplete, record.Provenance)
	assert.Equal(t, 85, record.Skills.Score)
	assert.Equal(t, []string{"Node.js"}, record.Skills.Matched)
	assert.Equal(t, []string{"Docker"}, record.Skills.Missing)
	assert.True(t, record.Experience.Met)
	assert.True(t, record.Education.Met)
	require.Len(t, record.Alerts, 1)
	assert.Equal(t, constants.AlertCategoryLanguage, record.Alerts[0].Category)
	assert.Equal(t, constants.AlertSeverityLow, record.Alerts[0].Severity)
	assert.Equal(t, constants.DecisionRecommended, record.Market.Decision)
	assert.Equal(t, constants.HiringPotentialHigh, record.Market.HiringPotential)
	assert.Equal(t, "1-2 semaines", record.Market.EstimatedRecruitmentTime)
	assert.Equal(t, testSalary(), record.Market.SalaryRange)
}

func TestFormatNilArraysDefaulted(t *testing.T) {
	resp := &ModelResponse{
		Resume: ModelResume{
			Score:          60,
			Correspondance: ModelCorrespondance{Competences: 60, Experience: true, Formation: true, Langues: 50},
		},
	}
	record := Format(resp, SkillMatch{}, testSalary())
	assert.NotNil(t, record.MatchedKeywords)
	assert.NotNil(t, record.Highlights)
	assert.NotNil(t, record.RecruiterRecommendations)
}

func TestScoreCaps(t *testing.T) {
	// 经验不达标时，技能90也不能超过50
	score := applyScoreCaps(90, ModelCorrespondance{Competences: 90, Experience: false, Formation: true, Langues: 80})
	assert.LessOrEqual(t, score, 50)

	// 学历不达标同理
	score = applyScoreCaps(88, ModelCorrespondance{Competences: 90, Experience: true, Formation: false, Langues: 80})
	assert.LessOrEqual(t, score, 50)

	// 技能<40封顶30
	score = applyScoreCaps(60, ModelCorrespondance{Competences: 35, Experience: true, Formation: true, Langues: 80})
	assert.LessOrEqual(t, score, 30)

	// 全部达标不动分
	score = applyScoreCaps(90, ModelCorrespondance{Competences: 90, Experience: true, Formation: true, Langues: 80})
	assert.Equal(t, 90, score)

	// 越界分数被夹取
	assert.Equal(t, 30, applyScoreCaps(150, ModelCorrespondance{Competences: 20, Experience: false, Formation: false}))
	assert.Equal(t, 0, applyScoreCaps(-5, ModelCorrespondance{Competences: 50, Experience: true, Formation: true}))
}

func TestComputeOverallScore(t *testing.T) {
	// 40%*90 + 10%*80 + 25%*0 + 25%*100 = 69 -> 经验不达标封顶50
	score := ComputeOverallScore(ModelCorrespondance{Competences: 90, Experience: false, Formation: true, Langues: 80})
	assert.Equal(t, 50, score)

	// 全达标: 40%*80 + 10%*60 + 25 + 25 = 88
	score = ComputeOverallScore(ModelCorrespondance{Competences: 80, Experience: true, Formation: true, Langues: 60})
	assert.Equal(t, 88, score)
}

func TestRecoverMissingAlerts(t *testing.T) {
	// resume有效但signauxAlerte缺失：必须合成至少一条告警，不能panic
	raw := map[string]any{
		"resume": map[string]any{
			"score": float64(72),
			"correspondance": map[string]any{
				"competences": float64(75),
				"experience":  true,
				"formation":   true,
				"langues":     float64(60),
			},
			"matchedKeywords": []any{"Go", "Redis"},
		},
	}

	record := Recover(raw, SkillMatch{}, testSalary())

	assert.Equal(t, constants.ProvenanceRecovered, record.Provenance)
	assert.Equal(t, 72, record.MatchScore)
	require.NotEmpty(t, record.Alerts)
	assert.Equal(t, constants.AlertSeverityMedium, record.Alerts[0].Severity)
	assert.Equal(t, []string{"Go", "Redis"}, record.MatchedKeywords)
}

func TestRecoverTypeGuards(t *testing.T) {
	// 类型全错：数字缺省0、布尔false、数组空，关键词与告警有占位
	raw := map[string]any{
		"resume": map[string]any{
			"score": "quatre-vingt",
			"correspondance": map[string]any{
				"competences": "beaucoup",
				"experience":  "oui",
			},
			"matchedKeywords": "Node.js",
		},
		"signauxAlerte": []any{
			map[string]any{"type": "Compétence"}, // probleme缺失，跳过
			"not an alert",
		},
	}

	record := Recover(raw, SkillMatch{}, testSalary())

	assert.Equal(t, 0, record.MatchScore)
	assert.Equal(t, 0, record.Skills.Score)
	assert.False(t, record.Experience.Met)
	assert.NotEmpty(t, record.MatchedKeywords)
	require.Len(t, record.Alerts, 1) // 合成的占位告警
	assert.Equal(t, constants.AlertCategorySkill, record.Alerts[0].Category)
}

func TestRecoverAlertCapAndMapping(t *testing.T) {
	var alerts []any
	for i := 0; i < 15; i++ {
		alerts = append(alerts, map[string]any{
			"type":     "Expérience",
			"probleme": "expérience insuffisante",
			"severite": "élevée",
			"score":    float64(20),
		})
	}
	raw := map[string]any{
		"resume":        map[string]any{"score": float64(40)},
		"signauxAlerte": alerts,
	}

	record := Recover(raw, SkillMatch{}, testSalary())
	assert.Len(t, record.Alerts, maxAlerts)
	assert.Equal(t, constants.AlertCategoryExperience, record.Alerts[0].Category)
	assert.Equal(t, constants.AlertSeverityHigh, record.Alerts[0].Severity)
}

func TestFallback(t *testing.T) {
	record := Fallback(testSalary())

	assert.Equal(t, constants.ProvenanceFallback, record.Provenance)
	assert.Equal(t, 50, record.MatchScore)
	assert.Equal(t, 50, record.Skills.Score)
	assert.Equal(t, 50, record.Languages.Score)
	assert.False(t, record.Experience.Met)
	assert.False(t, record.Education.Met)
	require.Len(t, record.Alerts, 1)
	assert.Equal(t, constants.AlertCategorySkill, record.Alerts[0].Category)
	assert.Equal(t, constants.AlertSeverityMedium, record.Alerts[0].Severity)
	assert.Equal(t, 0, record.Alerts[0].Score)
	assert.Equal(t, constants.DecisionConsider, record.Market.Decision)
	assert.Equal(t, constants.HiringPotentialMedium, record.Market.HiringPotential)
}

func TestMatchLevelsDerivedFromAlerts(t *testing.T) {
	resp := &ModelResponse{
		Resume: ModelResume{
			Score: 60,
			Correspondance: ModelCorrespondance{
				Competences: 70, Experience: true, Formation: true, Langues: 60,
			},
		},
		SignauxAlerte: []ModelAlert{
			{Type: "Compétence", Probleme: "Docker manquant", Severite: "élevée", Score: 30},
			{Type: "Langue", Probleme: "Anglais à certifier", Severite: "faible", Score: 70},
			{Type: "Expérience", Probleme: "Expérience limitée en microservices", Severite: "moyenne", Score: 50},
		},
	}

	record := Format(resp, SkillMatch{}, testSalary())

	assert.Equal(t, constants.MatchLevelNeedsImprovement, record.Skills.Level)
	assert.Equal(t, constants.MatchLevelExcellent, record.Languages.Level)
	assert.Equal(t, constants.MatchLevelGood, record.Experience.Level)
	// 无Formation告警的维度保持未评估
	assert.Equal(t, constants.MatchLevelNotEvaluated, record.Education.Level)
}

func TestMatchLevelsOnRecoverAndFallback(t *testing.T) {
	// 恢复路径合成的占位告警是medium技能告警
	recovered := Recover(map[string]any{
		"resume": map[string]any{"score": float64(40)},
	}, SkillMatch{}, testSalary())
	assert.Equal(t, constants.MatchLevelGood, recovered.Skills.Level)
	assert.Equal(t, constants.MatchLevelNotEvaluated, recovered.Languages.Level)

	fallback := Fallback(testSalary())
	assert.Equal(t, constants.MatchLevelGood, fallback.Skills.Level)
	assert.Equal(t, constants.MatchLevelNotEvaluated, fallback.Experience.Level)
	assert.Equal(t, constants.MatchLevelNotEvaluated, fallback.Education.Level)
	assert.Equal(t, constants.MatchLevelNotEvaluated, fallback.Languages.Level)
}

func TestDeriveMarketThresholds(t *testing.T) {
	testCases := []struct {
		score     int
		decision  string
		potential string
		duration  string
	}{
		{90, constants.DecisionStronglyRecommended, constants.HiringPotentialHigh, "1-2 semaines"},
		{75, constants.DecisionRecommended, constants.HiringPotentialHigh, "1-2 semaines"},
		{65, constants.DecisionConsider, constants.HiringPotentialHigh, "2-4 semaines"},
		{55, constants.DecisionConsider, constants.HiringPotentialMedium, "4+ semaines"},
		{30, constants.DecisionNotRecommended, constants.HiringPotentialLow, "4+ semaines"},
	}

	for _, tc := range testCases {
		m := deriveMarket(tc.score, nil, testSalary())
		assert.Equal(t, tc.decision, m.Decision, "score %d", tc.score)
		assert.Equal(t, tc.potential, m.HiringPotential, "score %d", tc.score)
		assert.Equal(t, tc.duration, m.EstimatedRecruitmentTime, "score %d", tc.score)
	}
}

func TestSuggestedActionPriority(t *testing.T) {
	alerts := []Alert{
		{Category: constants.AlertCategorySkill, Message: "alerte moyenne", Severity: constants.AlertSeverityMedium},
		{Category: constants.AlertCategoryExperience, Message: "alerte grave", Severity: constants.AlertSeverityHigh},
	}
	assert.Equal(t, "Action prioritaire: alerte grave", suggestedAction(alerts))
	assert.Equal(t, "alerte moyenne", suggestedAction(alerts[:1]))
	assert.Equal(t, "Procéder à l'évaluation standard", suggestedAction(nil))
}

func TestCandidateFeedbackOrder(t *testing.T) {
	alerts := []Alert{
		{Message: "faible", Severity: constants.AlertSeverityLow},
		{Message: "grave", Severity: constants.AlertSeverityHigh},
		{Message: "moyen", Severity: constants.AlertSeverityMedium},
	}
	assert.Equal(t, []string{"grave", "moyen", "faible"}, candidateFeedback(alerts))
}
