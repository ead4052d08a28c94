package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Observation is one noise survey submission.
type Observation struct {
	ID          snowflake.ID   `json:"id" gorm:"primaryKey;autoIncrement:false;index:idx_noise_records_timestamp,priority:2"`
	RecordedAt  time.Time      `json:"timestamp" gorm:"column:timestamp;not null;index:idx_noise_records_timestamp,priority:1"`
	Age         string         `json:"age" gorm:"type:varchar(20);not null"`
	Location    string         `json:"location" gorm:"type:varchar(50);not null"`
	Environment string         `json:"environment" gorm:"type:varchar(20);not null"`
	Activity    string         `json:"activity" gorm:"type:varchar(50);not null"`
	NoiseLevel  string         `json:"noise_level" gorm:"type:varchar(20);not null"`
	NoiseSource string         `json:"noise_source" gorm:"type:varchar(50);not null"`
	Tolerance   string         `json:"tolerance" gorm:"type:varchar(20);not null"`
	MeasuredDB  *float64       `json:"measured_db" gorm:"column:measured_db"`
	Latitude    *float64       `json:"latitude"`
	Longitude   *float64       `json:"longitude"`
	DeviceInfo  datatypes.JSON `json:"device_info" gorm:"type:text"`
}

// TableName sets the database table name.
func (Observation) TableName() string { return "noise_records" }
