package match

import "strings"

// techVariants 技术栈别名表，不同写法互认
// 键为标准写法，值为可视作等价的别名片段
var techVariants = map[string][]string{
	"mongodb":    {"mongo", "nosql"},
	"mongoose":   {"mongodb", "orm"},
	"javascript": {"js", "ecmascript"},
	"typescript": {"ts"},
	"reactjs":    {"react"},
	"react.js":   {"react"},
	"nodejs":     {"node"},
	"node.js":    {"node"},
	"expressjs":  {"express"},
	"express.js": {"express"},
	"postgresql": {"postgres", "psql"},
	"mysql":      {"sql", "mariadb"},
	"golang":     {"go"},
	"vuejs":      {"vue"},
	"vue.js":     {"vue"},
	"aws":        {"amazon", "cloud"},
	"azure":      {"microsoft", "cloud"},
	"docker":     {"container"},
	"kubernetes": {"k8s", "container orchestration"},
}

// SkillMatch 技能比对结果
type SkillMatch struct {
	Matched []string // 候选人技能中命中岗位要求的（保留原始写法）
	Missing []string // 岗位要求中候选人未覆盖的
	Percent int      // 岗位要求的覆盖率 0-100
}

// FindPotentialMatches 在候选人技能与岗位要求之间找出潜在匹配，
// 互相包含或别名表关联均算命中，用于给prompt补充提示（去重保序）
func FindPotentialMatches(candidateSkills, jobSkills []string) []string {
	var matches []string
	seen := make(map[string]bool)

	for _, cs := range candidateSkills {
		lc := strings.ToLower(strings.TrimSpace(cs))
		if lc == "" {
			continue
		}
		for _, js := range jobSkills {
			lj := strings.ToLower(strings.TrimSpace(js))
			if lj == "" {
				continue
			}
			if skillsRelated(lc, lj) && !seen[cs] {
				seen[cs] = true
				matches = append(matches, cs)
			}
		}
	}
	return matches
}

// skillsRelated 判断两个小写技能名是否等价：互相包含，或经别名表关联
func skillsRelated(a, b string) bool {
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}
	for tech, variants := range techVariants {
		if strings.Contains(a, tech) {
			for _, v := range variants {
				if strings.Contains(b, v) {
					return true
				}
			}
		}
		if strings.Contains(b, tech) {
			for _, v := range variants {
				if strings.Contains(a, v) {
					return true
				}
			}
		}
	}
	return false
}

// Match 计算候选人技能对岗位要求的命中/缺失与覆盖率
func Match(candidateSkills, jobSkills []string) SkillMatch {
	result := SkillMatch{}
	if len(jobSkills) == 0 {
		result.Percent = 100
		return result
	}

	matchedCandidate := make(map[string]bool)
	covered := 0
	for _, js := range jobSkills {
		lj := strings.ToLower(strings.TrimSpace(js))
		if lj == "" {
			continue
		}
		hit := false
		for _, cs := range candidateSkills {
			lc := strings.ToLower(strings.TrimSpace(cs))
			if lc == "" {
				continue
			}
			if skillsRelated(lc, lj) {
				hit = true
				if !matchedCandidate[cs] {
					matchedCandidate[cs] = true
					result.Matched = append(result.Matched, cs)
				}
			}
		}
		if hit {
			covered++
		} else {
			result.Missing = append(result.Missing, js)
		}
	}

	result.Percent = covered * 100 / len(jobSkills)
	return result
}

// ParseSkillList 解析逗号分隔的技能串
func ParseSkillList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
