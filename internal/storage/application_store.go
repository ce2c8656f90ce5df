package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"recruit-agent-go/internal/constants"
	"recruit-agent-go/internal/storage/models"

	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateApplication 同一候选人对同一岗位的重复申请
	ErrDuplicateApplication = errors.New("application already exists for candidate and job")
)

// CreateApplicationWithOutbox 在单个事务内创建申请并写入发件箱事件
// 候选人或岗位不存在返回ErrNotFound，(candidate, job)已存在返回ErrDuplicateApplication
func (m *MySQL) CreateApplicationWithOutbox(ctx context.Context, candidateID, jobID, exchange, routingKey string) (*models.Application, error) {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.CreateApplicationWithOutbox")
	defer span.End()
	span.SetAttributes(
		attribute.String("application.candidate_id", candidateID),
		attribute.String("application.job_id", jobID),
	)

	var app *models.Application
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var candidate models.Candidate
		if err := tx.Where("candidate_id = ?", candidateID).First(&candidate).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("候选人 %s: %w", candidateID, ErrNotFound)
			}
			return fmt.Errorf("查询候选人失败: %w", err)
		}

		var job models.Job
		if err := tx.Where("job_id = ?", jobID).First(&job).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("岗位 %s: %w", jobID, ErrNotFound)
			}
			return fmt.Errorf("查询岗位失败: %w", err)
		}

		// 重复申请检查与插入同事务，配合唯一索引兜底
		var count int64
		if err := tx.Model(&models.Application{}).
			Where("candidate_id = ? AND job_id = ?", candidateID, jobID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("查询重复申请失败: %w", err)
		}
		if count > 0 {
			return ErrDuplicateApplication
		}

		newUUID, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("生成UUIDv7失败: %w", err)
		}

		app = &models.Application{
			ApplicationID: newUUID.String(),
			CandidateID:   candidateID,
			JobID:         jobID,
			Status:        constants.AppStatusPending,
			AppliedAt:     time.Now(),
		}
		if err := tx.Create(app).Error; err != nil {
			return fmt.Errorf("创建申请失败: %w", err)
		}

		payload, err := json.Marshal(ApplicationSubmittedMessage{
			ApplicationID: app.ApplicationID,
			CandidateID:   candidateID,
			JobID:         jobID,
			SubmittedAt:   app.AppliedAt,
		})
		if err != nil {
			return fmt.Errorf("序列化提交事件失败: %w", err)
		}

		outbox := &models.OutboxMessage{
			AggregateID:      app.ApplicationID,
			EventType:        EventTypeApplicationSubmitted,
			Payload:          string(payload),
			TargetExchange:   exchange,
			TargetRoutingKey: routingKey,
			Status:           "PENDING",
		}
		if err := tx.Create(outbox).Error; err != nil {
			return fmt.Errorf("写入发件箱失败: %w", err)
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateApplication) {
			span.SetStatus(codes.Ok, "duplicate application rejected")
		} else {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, err
	}

	span.SetAttributes(attribute.String("application.id", app.ApplicationID))
	return app, nil
}

// GetApplicationByID 通过ID获取申请
func (m *MySQL) GetApplicationByID(ctx context.Context, applicationID string) (*models.Application, error) {
	var app models.Application
	err := m.db.WithContext(ctx).Where("application_id = ?", applicationID).First(&app).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &app, nil
}

// GetCandidateByID 通过ID获取候选人
func (m *MySQL) GetCandidateByID(ctx context.Context, candidateID string) (*models.Candidate, error) {
	var candidate models.Candidate
	err := m.db.WithContext(ctx).Where("candidate_id = ?", candidateID).First(&candidate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &candidate, nil
}

// GetJobByID 通过ID获取岗位
func (m *MySQL) GetJobByID(ctx context.Context, jobID string) (*models.Job, error) {
	var job models.Job
	err := m.db.WithContext(ctx).Where("job_id = ?", jobID).First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

// MarkApplicationAnalyzing 把申请标记为分析中并记录起始时间
func (m *MySQL) MarkApplicationAnalyzing(ctx context.Context, applicationID string) error {
	now := time.Now()
	result := m.db.WithContext(ctx).Model(&models.Application{}).
		Where("application_id = ?", applicationID).
		Updates(map[string]interface{}{
			"status":       constants.AppStatusAnalyzing,
			"analyzing_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveAnalysisResult 以(candidate_id, job_id)为键保存分析结果并置为已分析
// 对应单条条件UPDATE，不存在匹配行时返回ErrNotFound
func (m *MySQL) SaveAnalysisResult(ctx context.Context, candidateID, jobID string, analysis datatypes.JSON, salaryMin, salaryMax int) error {
	now := time.Now()
	result := m.db.WithContext(ctx).Model(&models.Application{}).
		Where("candidate_id = ? AND job_id = ?", candidateID, jobID).
		Updates(map[string]interface{}{
			"status":               constants.AppStatusAnalyzed,
			"analysis_json":        analysis,
			"analyzed_at":          now,
			"potential_salary_min": salaryMin,
			"potential_salary_max": salaryMax,
			"status_note":          "",
		})
	if result.Error != nil {
		return fmt.Errorf("保存分析结果失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkApplicationFailed 把申请标记为分析失败并记录原因
func (m *MySQL) MarkApplicationFailed(ctx context.Context, applicationID string, note string) error {
	result := m.db.WithContext(ctx).Model(&models.Application{}).
		Where("application_id = ?", applicationID).
		Updates(map[string]interface{}{
			"status":      constants.AppStatusAnalysisFailed,
			"status_note": note,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// StuckResetNote 维护任务重置卡死申请时写入的说明备注
const StuckResetNote = "analysis timed out, reset by maintenance sweep"

// ResetStuckApplications 把卡在ANALYZING超过olderThan的申请重置回PENDING并留下说明备注
// 返回被重置的行数，维护任务定期调用
func (m *MySQL) ResetStuckApplications(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	result := m.db.WithContext(ctx).Model(&models.Application{}).
		Where("status = ? AND analyzing_at IS NOT NULL AND analyzing_at < ?", constants.AppStatusAnalyzing, cutoff).
		Updates(map[string]interface{}{
			"status":       constants.AppStatusPending,
			"analyzing_at": nil,
			"status_note":  StuckResetNote,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("重置卡死申请失败: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// CountApplicationsByStatus 按状态统计申请数量
func (m *MySQL) CountApplicationsByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var rows []statusCount
	err := m.db.WithContext(ctx).Model(&models.Application{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
