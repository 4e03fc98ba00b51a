package readings

import (
	"encoding/json"
	"time"
)

type CriticalReadingDetected struct {
	AlertID    string    `json:"alertID"`
	DeviceID   uint      `json:"deviceID"`
	ReadingID  uint      `json:"readingID"`
	Field      string    `json:"field"`
	Value      float64   `json:"value"`
	Threshold  float64   `json:"threshold"`
	ObservedAt time.Time `json:"observedAt"`
}

func (c *CriticalReadingDetected) ContentType() string {
	return "application/json"
}
func (c *CriticalReadingDetected) TopicName() string {
	return "readings.criticalReadingDetected"
}
func (c *CriticalReadingDetected) Body() []byte {
	b, _ := json.Marshal(c)
	return b
}
