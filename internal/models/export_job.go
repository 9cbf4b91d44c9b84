package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ExportFormat enumerates supported export encodings.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportStatus captures background job lifecycle states.
type ExportStatus string

const (
	ExportStatusQueued     ExportStatus = "QUEUED"
	ExportStatusProcessing ExportStatus = "PROCESSING"
	ExportStatusFinished   ExportStatus = "FINISHED"
	ExportStatusFailed     ExportStatus = "FAILED"
)

// ExportJob is the persisted metadata of one crime report export.
type ExportJob struct {
	ID           string        `db:"id" json:"id"`
	Format       ExportFormat  `db:"format" json:"format"`
	Filters      ExportFilters `db:"filters" json:"filters"`
	Status       ExportStatus  `db:"status" json:"status"`
	Progress     int           `db:"progress" json:"progress"`
	RowCount     int           `db:"row_count" json:"row_count"`
	ResultPath   *string       `db:"result_path" json:"-"`
	ResultURL    *string       `db:"result_url" json:"result_url,omitempty"`
	ErrorMessage *string       `db:"error_message" json:"error_message,omitempty"`
	CreatedBy    string        `db:"created_by" json:"created_by"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time    `db:"finished_at" json:"finished_at,omitempty"`
}

// ExportFilters selects which reports an export contains; persisted as JSONB.
type ExportFilters struct {
	Status   *ReportStatus   `json:"status,omitempty"`
	Priority *ReportPriority `json:"priority,omitempty"`
}

// Value marshals filters to JSON for persistence.
func (f ExportFilters) Value() (driver.Value, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("marshal export filters: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the filters struct.
func (f *ExportFilters) Scan(value interface{}) error {
	if value == nil {
		*f = ExportFilters{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for ExportFilters", value)
	}
	if len(data) == 0 {
		*f = ExportFilters{}
		return nil
	}
	if err := json.Unmarshal(data, f); err != nil {
		return fmt.Errorf("unmarshal export filters: %w", err)
	}
	return nil
}
