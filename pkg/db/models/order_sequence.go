package models

import "time"

// OrderSequence is the per-day counter behind order numbers. Day is YYYYMMDD in UTC.
type OrderSequence struct {
	Day       string    `gorm:"column:day;primaryKey;size:8"`
	LastValue int64     `gorm:"column:last_value;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
