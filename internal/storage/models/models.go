package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Candidate 候选人主表
type Candidate struct {
	CandidateID     string         `gorm:"type:char(36);primaryKey"`
	Name            string         `gorm:"type:varchar(255);not null"`
	Email           string         `gorm:"type:varchar(255);uniqueIndex:idx_candidates_email_unique"`
	Phone           string         `gorm:"type:varchar(50)"`
	CurrentLocation string         `gorm:"type:varchar(255)"`
	ProfileSummary  string         `gorm:"type:text"`
	SkillsJSON      datatypes.JSON `gorm:"type:json"` // 字符串数组
	LanguagesJSON   datatypes.JSON `gorm:"type:json"` // [{name, level}]
	ExperienceJSON  datatypes.JSON `gorm:"type:json"` // [{title, company, years}]
	EducationJSON   datatypes.JSON `gorm:"type:json"` // [{degree, field, institution}]
	YearsExperience float64        `gorm:"type:float"`
	DegreeLevel     string         `gorm:"type:varchar(20)"` // none/bachelor/master/phd
	CurrentTitle    string         `gorm:"type:varchar(255)"`
	CreatedAt       time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt       time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (Candidate) TableName() string {
	return "candidates"
}

// Job 岗位信息表
type Job struct {
	JobID                  string         `gorm:"type:char(36);primaryKey"`
	JobTitle               string         `gorm:"type:varchar(255);not null"`
	Department             string         `gorm:"type:varchar(255)"`
	Location               string         `gorm:"type:varchar(255)"`
	JobDescriptionText     string         `gorm:"type:text;not null"`
	RequiredSkillsJSON     datatypes.JSON `gorm:"type:json"` // 字符串数组
	RequiredLanguagesJSON  datatypes.JSON `gorm:"type:json"` // [{name, level}]
	MinYearsExperience     float64        `gorm:"type:float"`
	RequiredEducationLevel string         `gorm:"type:varchar(20)"` // none/bachelor/master/phd
	RequiredEducationField string         `gorm:"type:varchar(255)"`
	SalaryMin              int            `gorm:"type:int"` // 单位TND/月
	SalaryMax              int            `gorm:"type:int"`
	Status                 string         `gorm:"type:varchar(50);default:'ACTIVE';index:idx_jobs_status"`
	CreatedAt              time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt              time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (Job) TableName() string {
	return "jobs"
}

// Application 岗位申请表
// (CandidateID, JobID) 全局唯一，重复申请在提交事务内被拒绝
type Application struct {
	ApplicationID      string         `gorm:"type:char(36);primaryKey"`
	CandidateID        string         `gorm:"type:char(36);not null;uniqueIndex:idx_app_candidate_job_unique,priority:1;index:idx_app_candidate_id"`
	JobID              string         `gorm:"type:char(36);not null;uniqueIndex:idx_app_candidate_job_unique,priority:2;index:idx_app_job_id"`
	Status             string         `gorm:"type:varchar(50);default:'PENDING';index:idx_app_status"`
	AppliedAt          time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	AnalyzingAt        *time.Time     `gorm:"type:datetime(6)"` // 进入ANALYZING的时刻，卡死检测依据
	AnalyzedAt         *time.Time     `gorm:"type:datetime(6)"`
	AnalysisJSON       datatypes.JSON `gorm:"type:json"` // 持久化的AnalysisRecord
	PotentialSalaryMin int            `gorm:"type:int"`
	PotentialSalaryMax int            `gorm:"type:int"`
	StatusNote         string         `gorm:"type:varchar(512)"` // 失败原因等备注
	CreatedAt          time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt          time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`

	Candidate *Candidate `gorm:"foreignKey:CandidateID;references:CandidateID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Job       *Job       `gorm:"foreignKey:JobID;references:JobID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (Application) TableName() string {
	return "applications"
}

// CandidateLanguage 候选人语言能力（JSON列里的元素结构）
type CandidateLanguage struct {
	Name  string `json:"name"`
	Level string `json:"level"`
}

// CandidateExperience 候选人工作经历（JSON列里的元素结构）
type CandidateExperience struct {
	Title   string  `json:"title"`
	Company string  `json:"company"`
	Years   float64 `json:"years"`
}

// CandidateEducation 候选人教育经历（JSON列里的元素结构）
type CandidateEducation struct {
	Degree      string `json:"degree"`
	Field       string `json:"field"`
	Institution string `json:"institution"`
}

// StringToJSON 把字符串转为datatypes.JSON
func StringToJSON(s string) datatypes.JSON {
	return datatypes.JSON(s)
}

// MapToJSON 把map[string]interface{}序列化为datatypes.JSON
func MapToJSON(m map[string]interface{}) (datatypes.JSON, error) {
	bytes, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return bytes, nil
}

// SliceToJSON 把任意切片序列化为datatypes.JSON
func SliceToJSON(v interface{}) (datatypes.JSON, error) {
	bytes, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes, nil
}
