package types

import (
	"time"
)

type Device struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
	Active   bool   `json:"active"`
}

type Reading struct {
	ID        uint           `json:"id"`
	DeviceID  uint           `json:"deviceID"`
	Values    map[string]any `json:"values"`
	Timestamp time.Time      `json:"timestamp"`
}

type Alert struct {
	ID         string    `json:"id"`
	DeviceID   uint      `json:"deviceID"`
	ReadingID  uint      `json:"readingID"`
	Field      string    `json:"field"`
	Value      float64   `json:"value"`
	Threshold  float64   `json:"threshold"`
	ObservedAt time.Time `json:"observedAt"`
}

type QueryResult struct {
	Query       string           `json:"query"`
	SQL         string           `json:"sql"`
	ResultCount int              `json:"resultCount"`
	Results     []map[string]any `json:"results"`
	Explanation string           `json:"explanation"`
}

type Collection[T any] struct {
	Data       []T    `json:"data"`
	Count      uint64 `json:"count"`
	Offset     uint64 `json:"offset"`
	Limit      uint64 `json:"limit"`
	TotalCount uint64 `json:"totalCount"`
}
