package model

import (
	"time"
)

// ChangeRequestStatistics summarises review activity for requests submitted in a time range
type ChangeRequestStatistics struct {
	Pending              int64             `json:"pending"`
	Approved             int64             `json:"approved"`
	Rejected             int64             `json:"rejected"`
	ByKind               []KindStatusCount `json:"by_kind"`
	AverageDecisionHours float64           `json:"average_decision_hours"`
	TimeRangeStartDate   time.Time         `json:"time_range_start_date"`
	TimeRangeEndDate     time.Time         `json:"time_range_end_date"`
}

// KindStatusCount is one bucket of the kind x status breakdown
type KindStatusCount struct {
	Kind   string `json:"kind"`
	Status string `json:"status"`
	Count  int64  `json:"count"`
}
