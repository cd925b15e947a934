package repository

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/package-linker/pkg/model"
)

// LoadRunRecord represents the load_runs table.
type LoadRunRecord struct {
	ID         int64           `gorm:"column:id;primaryKey;autoIncrement"`
	SessionID  string          `gorm:"column:session_id;type:varchar(64);uniqueIndex"`
	Package    string          `gorm:"column:package;type:varchar(512);index"`
	Status     model.RunStatus `gorm:"column:status"`
	Phase      string          `gorm:"column:phase;type:varchar(64)"`
	Names      int             `gorm:"column:names"`
	Imports    int             `gorm:"column:imports"`
	Exports    int             `gorm:"column:exports"`
	DurationMs int64           `gorm:"column:duration_ms"`
	Timings    JSONField       `gorm:"column:timings;type:json"`
	Error      string          `gorm:"column:error;type:text"`
	CreateTime time.Time       `gorm:"column:create_time;autoCreateTime"`
}

// TableName returns the table name for LoadRunRecord.
func (LoadRunRecord) TableName() string {
	return "load_runs"
}

// NewLoadRunRecord converts a model.LoadRun.
func NewLoadRunRecord(run *model.LoadRun) (*LoadRunRecord, error) {
	rec := &LoadRunRecord{
		ID:         run.ID,
		SessionID:  run.SessionID,
		Package:    run.Package,
		Status:     run.Status,
		Phase:      run.Phase,
		Names:      run.Names,
		Imports:    run.Imports,
		Exports:    run.Exports,
		DurationMs: run.DurationMs,
		Error:      run.Error,
		CreateTime: run.CreateTime,
	}
	if len(run.Timings) > 0 {
		data, err := json.Marshal(run.Timings)
		if err != nil {
			return nil, err
		}
		rec.Timings = data
	}
	return rec, nil
}

// ToModel converts LoadRunRecord to model.LoadRun.
func (r *LoadRunRecord) ToModel() *model.LoadRun {
	run := &model.LoadRun{
		ID:         r.ID,
		SessionID:  r.SessionID,
		Package:    r.Package,
		Status:     r.Status,
		Phase:      r.Phase,
		Names:      r.Names,
		Imports:    r.Imports,
		Exports:    r.Exports,
		DurationMs: r.DurationMs,
		Error:      r.Error,
		CreateTime: r.CreateTime,
		Timings:    make(map[string]int64),
	}
	if r.Timings != nil {
		_ = json.Unmarshal(r.Timings, &run.Timings)
	}
	return run
}

// DependencyRecord represents the package_dependencies table.
type DependencyRecord struct {
	ID            int64     `gorm:"column:id;primaryKey;autoIncrement"`
	SessionID     string    `gorm:"column:session_id;type:varchar(64);index"`
	Package       string    `gorm:"column:package;type:varchar(512);index"`
	Export        string    `gorm:"column:export;type:varchar(512)"`
	Target        string    `gorm:"column:target;type:varchar(1024)"`
	TargetPackage string    `gorm:"column:target_package;type:varchar(512);index"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the table name for DependencyRecord.
func (DependencyRecord) TableName() string {
	return "package_dependencies"
}

// ToModel converts DependencyRecord to model.Dependency.
func (d *DependencyRecord) ToModel() model.Dependency {
	return model.Dependency{
		SessionID:     d.SessionID,
		Package:       d.Package,
		Export:        d.Export,
		Target:        d.Target,
		TargetPackage: d.TargetPackage,
	}
}

// DiagnosticRecord represents the load_diagnostics table.
type DiagnosticRecord struct {
	ID        int64          `gorm:"column:id;primaryKey;autoIncrement"`
	SessionID string         `gorm:"column:session_id;type:varchar(64);index"`
	Package   string         `gorm:"column:package;type:varchar(512);index"`
	Severity  model.Severity `gorm:"column:severity;type:varchar(16)"`
	Code      string         `gorm:"column:code;type:varchar(64)"`
	Kind      string         `gorm:"column:kind;type:varchar(32)"`
	Object    string         `gorm:"column:object;type:varchar(1024)"`
	Message   string         `gorm:"column:message;type:text"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the table name for DiagnosticRecord.
func (DiagnosticRecord) TableName() string {
	return "load_diagnostics"
}

// ToModel converts DiagnosticRecord to model.Diagnostic.
func (d *DiagnosticRecord) ToModel() model.Diagnostic {
	return model.Diagnostic{
		SessionID: d.SessionID,
		Package:   d.Package,
		Severity:  d.Severity,
		Code:      d.Code,
		Kind:      d.Kind,
		Object:    d.Object,
		Message:   d.Message,
	}
}

// allModels lists the tables the catalog migrates.
func allModels() []interface{} {
	return []interface{}{&LoadRunRecord{}, &DependencyRecord{}, &DiagnosticRecord{}}
}

// JSONField is a custom type for handling JSON fields in GORM.
type JSONField []byte

// Value implements driver.Valuer interface.
func (j JSONField) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return []byte(j), nil
}

// Scan implements sql.Scanner interface.
func (j *JSONField) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
		return nil
	case string:
		*j = []byte(v)
		return nil
	default:
		return errors.New("unsupported type for JSONField")
	}
}

// MarshalJSON implements json.Marshaler interface.
func (j JSONField) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON implements json.Unmarshaler interface.
func (j *JSONField) UnmarshalJSON(data []byte) error {
	if data == nil || string(data) == "null" {
		*j = nil
		return nil
	}
	*j = append((*j)[0:0], data...)
	return nil
}
