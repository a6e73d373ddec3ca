package model

import (
	"errors"
	"time"

	"gorm.io/datatypes"
)

// 集成类型
const (
	IntegrationTypeAPI      = "API"
	IntegrationTypeDatabase = "DATABASE"
	IntegrationTypeFile     = "FILE"
	IntegrationTypeEvent    = "EVENT"
	IntegrationTypeOther    = "OTHER"
)

// 集成状态
const (
	IntegrationStatusActive   = "active"
	IntegrationStatusInactive = "inactive"
	IntegrationStatusError    = "error"
	IntegrationStatusWarning  = "warning"
)

// 调度频率
const (
	FrequencyHourly  = "hourly"
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
	FrequencyCustom  = "custom"
)

// IntegrationTypes 全部集成类型
var IntegrationTypes = []string{
	IntegrationTypeAPI, IntegrationTypeDatabase, IntegrationTypeFile, IntegrationTypeEvent, IntegrationTypeOther,
}

// IntegrationStatuses 全部集成状态
var IntegrationStatuses = []string{
	IntegrationStatusActive, IntegrationStatusInactive, IntegrationStatusError, IntegrationStatusWarning,
}

// Frequencies 全部调度频率
var Frequencies = []string{
	FrequencyHourly, FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyCustom,
}

// LastExecution 最近一次执行的快照（由执行生命周期维护）
type LastExecution struct {
	StartTime *time.Time `gorm:"index" json:"startTime,omitempty"`
	EndTime   *time.Time `json:"endTime,omitempty"`
	Status    string     `gorm:"type:varchar(16)" json:"status,omitempty"`
}

// IntegrationModel 集成数据模型
type IntegrationModel struct {
	ID              string                      `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name            string                      `gorm:"type:varchar(100);not null;uniqueIndex:idx_integrations_name" json:"name"`
	Description     string                      `gorm:"type:text" json:"description"`
	Type            string                      `gorm:"type:varchar(16);not null;index" json:"type"`
	Source          string                      `gorm:"type:varchar(255);not null" json:"source"`
	Destination     string                      `gorm:"type:varchar(255);not null" json:"destination"`
	Status          string                      `gorm:"type:varchar(16);not null;default:'inactive';index" json:"status"`
	Frequency       string                      `gorm:"type:varchar(16);not null;default:'daily'" json:"frequency"`
	CustomFrequency *string                     `gorm:"type:varchar(100)" json:"customFrequency,omitempty"`
	Config          datatypes.JSONMap           `json:"config"`
	LastExecution   LastExecution               `gorm:"embedded;embeddedPrefix:last_execution_" json:"lastExecution"`
	HealthScore     int                         `gorm:"type:int;not null;default:100" json:"healthScore"`
	Owner           *string                     `gorm:"type:varchar(100)" json:"owner"`
	Tags            datatypes.JSONSlice[string] `json:"tags"`
	CreatedAt       time.Time                   `gorm:"not null" json:"createdAt"`
	UpdatedAt       time.Time                   `gorm:"not null;index" json:"updatedAt"`
}

// TableName 指定表名
func (IntegrationModel) TableName() string {
	return "integrations"
}

// Validate 验证集成模型
func (im *IntegrationModel) Validate() error {
	if im.ID == "" {
		return errors.New("integration ID is required")
	}
	if im.Name == "" {
		return errors.New("integration name is required")
	}
	if !Contains(IntegrationTypes, im.Type) {
		return errors.New("invalid integration type")
	}
	if im.Source == "" || im.Destination == "" {
		return errors.New("integration source and destination are required")
	}
	if !Contains(IntegrationStatuses, im.Status) {
		return errors.New("invalid integration status")
	}
	if !Contains(Frequencies, im.Frequency) {
		return errors.New("invalid integration frequency")
	}
	if im.Frequency == FrequencyCustom && (im.CustomFrequency == nil || *im.CustomFrequency == "") {
		return errors.New("customFrequency is required when frequency is custom")
	}
	if im.HealthScore < 0 || im.HealthScore > 100 {
		return errors.New("healthScore must be between 0 and 100")
	}
	return nil
}

// IntegrationRef 执行记录中附带的集成摘要
type IntegrationRef struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Status string `json:"status,omitempty"`
}

// Contains 判断取值是否在枚举中
func Contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
