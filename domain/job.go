package domain

import (
	"encoding/json"
	"reflect"
)

// EmploymentType is the contract type of a job posting.
type EmploymentType string

const (
	FullTime  EmploymentType = "Full-time"
	PartTime  EmploymentType = "Part-time"
	Contract  EmploymentType = "Contract"
	Temporary EmploymentType = "Temporary"
)

// UnmarshalJSON rejects null so an explicit "type": null is not silently replaced by the default.
func (t *EmploymentType) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return &json.UnmarshalTypeError{Value: "null", Type: reflect.TypeOf(*t)}
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return &json.UnmarshalTypeError{Value: string(data), Type: reflect.TypeOf(*t)}
	}
	*t = EmploymentType(s)
	return nil
}

// Job is a posting on the board. Stored in the "job" collection.
type Job struct {
	Title       string         `json:"title" validate:"required,max=255" gorm:"size:255;not null" desc:"Job title"`
	Company     string         `json:"company" validate:"required,max=255" gorm:"size:255;not null" desc:"Company name"`
	Location    string         `json:"location" validate:"required,max=255" gorm:"size:255;not null;index" desc:"City / Country"`
	Category    string         `json:"category" validate:"required,max=255" gorm:"size:255;not null;index" desc:"Job category e.g., Oil & Gas, Construction"`
	Type        EmploymentType `json:"type" validate:"required,oneof=Full-time Part-time Contract Temporary" gorm:"column:type;size:32;not null;index" desc:"Employment type"`
	Description *string        `json:"description" gorm:"type:text" desc:"Short job summary"`
	ApplyURL    *string        `json:"apply_url" validate:"omitempty,max=2048" gorm:"size:2048" desc:"External application link if any"`
}

func (*Job) Kind() Kind { return KindJob }

func (j *Job) Defaults() {
	*j = Job{Type: FullTime}
}
