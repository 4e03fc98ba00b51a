package database

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Device struct {
	gorm.Model `json:"-"`

	Name     string `gorm:"not null" json:"name"`
	Location string `gorm:"not null" json:"location"`
	// no column default: gorm omits zero values for fields with defaults,
	// which would silently turn Active=false into true on insert
	Active bool `gorm:"not null" json:"active"`

	Readings []Reading `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Alerts   []Alert   `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

type Reading struct {
	gorm.Model `json:"-"`

	DeviceID  uint           `gorm:"index;not null" json:"deviceID"`
	Values    datatypes.JSON `gorm:"not null" json:"values"`
	Timestamp time.Time      `gorm:"index" json:"timestamp"`
}

type Alert struct {
	ID string `gorm:"primaryKey" json:"id"`

	DeviceID   uint      `gorm:"index;not null" json:"deviceID"`
	ReadingID  uint      `json:"readingID"`
	Field      string    `json:"field"`
	Value      float64   `json:"value"`
	Threshold  float64   `json:"threshold"`
	ObservedAt time.Time `json:"observedAt"`

	CreatedAt time.Time `json:"-"`
}
