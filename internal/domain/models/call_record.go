package models

import (
	"time"
)

// HangupCauseAPI 通过挂断接口结束的通话
const HangupCauseAPI = "API_HANGUP"

// CallMetadata IVR 在通话过程中采集的信息
type CallMetadata struct {
	CPF       *string   `gorm:"type:varchar(20)" json:"cpf"`
	Processo  *string   `gorm:"type:varchar(64);index" json:"processo"`
	Protocolo *string   `gorm:"type:varchar(64)" json:"protocolo"`
	Option    *string   `gorm:"type:varchar(20);index" json:"option,omitempty"`
	Suboption *string   `gorm:"type:varchar(20)" json:"suboption,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// CallRecord IVR 写入的通话记录，每个 uniqueid 至多一条
type CallRecord struct {
	ID             uint         `gorm:"primaryKey" json:"id"`
	SourceChannel  string       `gorm:"type:varchar(100)" json:"source_channel"`
	CustomerNumber string       `gorm:"type:varchar(32);index" json:"customer_number"`
	Uniqueid       string       `gorm:"type:varchar(64);uniqueIndex" json:"uniqueid"` // 通话唯一标识
	Datetime       time.Time    `gorm:"index" json:"datetime"`
	Active         bool         `gorm:"index" json:"active"`
	Protocol       string       `gorm:"type:varchar(64)" json:"protocol,omitempty"`
	IvrID          string       `gorm:"column:ivr_id;type:varchar(64)" json:"ivr_id,omitempty"`
	HangupCause    string       `gorm:"type:varchar(32)" json:"hangup_cause,omitempty"`
	HangupTime     *time.Time   `json:"hangup_time,omitempty"` // 可空字段
	Metadata       CallMetadata `gorm:"embedded;embeddedPrefix:metadata_" json:"metadata"`
}

// TableName 表名
func (CallRecord) TableName() string {
	return "call_records"
}

// HangupUpdate 挂断后写回记录的字段
type HangupUpdate struct {
	Cause        string
	Time         time.Time
	IvrReference string
}

// CallRecordStatus 列表查询的状态过滤
type CallRecordStatus string

const (
	CallRecordStatusAll      CallRecordStatus = "all"
	CallRecordStatusActive   CallRecordStatus = "active"
	CallRecordStatusFinished CallRecordStatus = "finished"
)

// CallRecordQuery 通话记录搜索条件
type CallRecordQuery struct {
	Query     string           `form:"q" json:"q"`
	Status    CallRecordStatus `form:"status" json:"status"`
	Option    string           `form:"option" json:"option"`
	StartDate string           `form:"start_date" json:"start_date"` // YYYY-MM-DD
	EndDate   string           `form:"end_date" json:"end_date"`     // YYYY-MM-DD
	Page      int              `form:"page" json:"page"`
	PageSize  int              `form:"page_size" json:"page_size"`
}
