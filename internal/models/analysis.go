package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Analysis 一次查询分析的记录
type Analysis struct {
	ID        string                      `gorm:"primaryKey" json:"id"`             // 记录ID (UUID)
	Query     string                      `gorm:"index;not null" json:"query"`      // PromQL
	StartTime int64                       `json:"startTime"`                        // 窗口开始（毫秒）
	EndTime   int64                       `json:"endTime"`                          // 窗口结束（毫秒）
	Step      string                      `json:"step"`                             // 步长，如 15s
	Rows      int                         `json:"rows"`                             // 样本行数
	Instances datatypes.JSONSlice[string] `json:"instances"`                        // 涉及的实例
	Outcome   string                      `gorm:"index" json:"outcome"`             // report / no_data / backend_fault / table_only
	Report    string                      `json:"report"`                           // 摘要或无数据提示
	CreatedAt int64                       `gorm:"index" json:"createdAt"`           // 创建时间（毫秒）
	UpdatedAt int64                       `json:"updatedAt" gorm:"autoUpdateTime:milli"`
}

func (Analysis) TableName() string {
	return "analyses"
}

// BeforeCreate GORM钩子：设置创建时间
func (a *Analysis) BeforeCreate(tx *gorm.DB) error {
	if a.CreatedAt == 0 {
		a.CreatedAt = time.Now().UnixMilli()
	}
	return nil
}
