package domain

import (
	"context"
	"time"

	"gorm.io/datatypes"
)

// TimestampLayout is the wall clock format used in listings.
const TimestampLayout = "2006-01-02 15:04:05"

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	List(ctx context.Context) ([]Response, error)
}

// CreateRequest is a survey submission. The seven answer fields are required.
type CreateRequest struct {
	Age         string         `json:"age"`
	Location    string         `json:"location"`
	Environment string         `json:"environment"`
	Activity    string         `json:"activity"`
	NoiseLevel  string         `json:"noise_level"`
	NoiseSource string         `json:"noise_source"`
	Tolerance   string         `json:"tolerance"`
	MeasuredDB  *float64       `json:"measured_db"`
	Latitude    *float64       `json:"latitude"`
	Longitude   *float64       `json:"longitude"`
	DeviceInfo  datatypes.JSON `json:"device_info"`
	Timestamp   *time.Time     `json:"timestamp"`
}

type Response struct {
	ID          string         `json:"id"`
	Timestamp   string         `json:"timestamp"`
	Age         string         `json:"age"`
	Location    string         `json:"location"`
	Environment string         `json:"environment"`
	Activity    string         `json:"activity"`
	NoiseLevel  string         `json:"noise_level"`
	NoiseSource string         `json:"noise_source"`
	Tolerance   string         `json:"tolerance"`
	MeasuredDB  *float64       `json:"measured_db"`
	Latitude    *float64       `json:"latitude"`
	Longitude   *float64       `json:"longitude"`
	DeviceInfo  datatypes.JSON `json:"device_info"`

	RecordedAt time.Time `json:"-"`
}
