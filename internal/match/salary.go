package match

import "strings"

// highDemandSkills 突尼斯市场热门技能（简化表），命中越多薪资上浮越多
var highDemandSkills = []string{
	"javascript", "typescript", "react", "angular", "vue", "node", "python", "java",
	"go", "golang", "devops", "cloud", "aws", "azure", "docker", "kubernetes",
	"data science", "machine learning", "ai", "blockchain", "security",
	"mongodb", "mongoose", "nosql", "mysql", "redis", "rabbitmq",
}

const salaryCeiling = 5000 // 突尼斯市场薪资上限 TND/月

// EstimateSalaryRange 按突尼斯市场估算月薪区间（TND）。
// 基准档位由经验年限决定，再按学历、热门技能数量和岗位级别上浮。
func EstimateSalaryRange(yearsOfExperience float64, skills []string, education string, jobTitle string) SalaryRange {
	var min, max int
	switch {
	case yearsOfExperience >= 7:
		min, max = 4000, 5000
	case yearsOfExperience >= 4:
		min, max = 2500, 4000
	case yearsOfExperience >= 2:
		min, max = 1500, 2500
	default:
		min, max = 800, 1500
	}

	edu := strings.ToLower(education)
	if strings.Contains(edu, "phd") || strings.Contains(edu, "doctorat") {
		min += 500
		max += 1000
	} else if strings.Contains(edu, "master") || strings.Contains(edu, "mba") {
		min += 300
		max += 500
	}

	demandCount := 0
	for _, skill := range skills {
		ls := strings.ToLower(skill)
		for _, hds := range highDemandSkills {
			if strings.Contains(ls, hds) {
				demandCount++
				break
			}
		}
	}
	if demandCount >= 3 {
		min += 400
		max += 800
	} else if demandCount >= 1 {
		min += 200
		max += 400
	}

	title := strings.ToLower(jobTitle)
	if strings.Contains(title, "manager") || strings.Contains(title, "director") {
		min += 800
		max += 1500
	} else if strings.Contains(title, "lead") || strings.Contains(title, "senior") {
		min += 300
		max += 600
	}

	if max > salaryCeiling {
		max = salaryCeiling
	}
	if min > max {
		min = max
	}

	return SalaryRange{Min: min, Max: max, Currency: "TND"}
}
