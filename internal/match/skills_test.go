package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindPotentialMatchesAliases(t *testing.T) {
	// 候选人写 Node.js / MongoDB，岗位写 NodeJS / Mongoose，别名表要都认出来
	candidateSkills := []string{"Node.js", "MongoDB"}
	jobSkills := ParseSkillList("NodeJS, Mongoose")

	matches := FindPotentialMatches(candidateSkills, jobSkills)
	assert.Contains(t, matches, "Node.js")
	assert.Contains(t, matches, "MongoDB")
}

func TestFindPotentialMatchesContainment(t *testing.T) {
	matches := FindPotentialMatches([]string{"JavaScript"}, []string{"JavaScript/TypeScript", "Go"})
	assert.Equal(t, []string{"JavaScript"}, matches)
}

func TestFindPotentialMatchesNone(t *testing.T) {
	matches := FindPotentialMatches([]string{"Photoshop"}, []string{"Kubernetes"})
	assert.Empty(t, matches)
}

func TestMatch(t *testing.T) {
	result := Match(
		[]string{"Node.js", "MongoDB", "Photoshop"},
		[]string{"NodeJS", "Mongoose", "Docker", "Kubernetes"},
	)

	assert.Contains(t, result.Matched, "Node.js")
	assert.Contains(t, result.Matched, "MongoDB")
	assert.Contains(t, result.Missing, "Docker")
	assert.Contains(t, result.Missing, "Kubernetes")
	assert.Equal(t, 50, result.Percent) // 4个要求命中2个
}

func TestMatchNoRequirements(t *testing.T) {
	result := Match([]string{"Go"}, nil)
	assert.Equal(t, 100, result.Percent)
	assert.Empty(t, result.Missing)
}

func TestParseSkillList(t *testing.T) {
	assert.Equal(t, []string{"NodeJS", "Mongoose"}, ParseSkillList("NodeJS, Mongoose"))
	assert.Equal(t, []string{"Go"}, ParseSkillList(" Go ,, "))
	assert.Nil(t, ParseSkillList(""))
}

func TestEstimateSalaryRange(t *testing.T) {
	testCases := []struct {
		name      string
		years     float64
		skills    []string
		education string
		title     string
		wantMin   int
		wantMax   int
	}{
		{
			name:    "junior无加成",
			years:   1,
			skills:  []string{"Photoshop"},
			wantMin: 800, wantMax: 1500,
		},
		{
			name:   "mid加热门技能",
			years:  3,
			skills: []string{"React", "Node.js", "Docker"},
			// 1500-2500 + 热门技能>=3 (+400/+800)
			wantMin: 1900, wantMax: 3300,
		},
		{
			name:      "senior带master和lead头衔",
			years:     5,
			skills:    []string{"Java"},
			education: "master",
			title:     "Lead Developer",
			// 2500-4000 +300/+500 +200/+400 +300/+600
			wantMin: 3300, wantMax: 5000, // max封顶5000
		},
		{
			name:      "expert全加成封顶",
			years:     10,
			skills:    []string{"Kubernetes", "AWS", "Go"},
			education: "phd",
			title:     "Engineering Director",
			wantMin:   5000, wantMax: 5000, // min超出max后对齐
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := EstimateSalaryRange(tc.years, tc.skills, tc.education, tc.title)
			assert.Equal(t, tc.wantMin, r.Min)
			assert.Equal(t, tc.wantMax, r.Max)
			assert.Equal(t, "TND", r.Currency)
		})
	}
}
