package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

type Plant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Species   string    `json:"species,omitempty"`
	Stage     string    `json:"stage,omitempty"`
	DeviceID  string    `json:"deviceId,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// PlantInput is the writable part of a plant
type PlantInput struct {
	Name     string `json:"name"`
	Species  string `json:"species,omitempty"`
	Stage    string `json:"stage,omitempty"`
	DeviceID string `json:"deviceId,omitempty"`
}

func (p PlantInput) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: a plant needs a name", ErrInvalidInput)
	}
	return nil
}

type Device struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Kind     string    `json:"kind,omitempty"`
	Online   bool      `json:"online"`
	LastSeen time.Time `json:"lastSeen,omitempty"`
}

type DeviceInput struct {
	Name string `json:"name"`
	Kind string `json:"kind,omitempty"`
}

type Sensor struct {
	ID       string `json:"id"`
	DeviceID string `json:"deviceId"`
	Kind     string `json:"kind"`
	Unit     string `json:"unit,omitempty"`
}

type Reading struct {
	SensorID   string    `json:"sensorId"`
	Value      float64   `json:"value"`
	RecordedAt time.Time `json:"recordedAt"`
}

type Pump struct {
	ID       string `json:"id"`
	DeviceID string `json:"deviceId"`
	Name     string `json:"name"`
	Running  bool   `json:"running"`
}

type WateringRun struct {
	PumpID    string    `json:"pumpId"`
	Seconds   int       `json:"seconds"`
	StartedAt time.Time `json:"startedAt,omitempty"`
}

const (
	plantsPath  string = "/api/plants"
	devicesPath string = "/api/devices"
	sensorsPath string = "/api/sensors"
	pumpsPath   string = "/api/pumps"
)

func itemPath(collection, id string) string {
	return collection + "/" + url.PathEscape(id)
}

type Plants struct {
	requester Requester
}

func (p *Plants) List(ctx context.Context) ([]Plant, error) {
	return doJSON[[]Plant](ctx, p.requester, http.MethodGet, plantsPath, nil)
}

func (p *Plants) Get(ctx context.Context, id string) (Plant, error) {
	return doJSON[Plant](ctx, p.requester, http.MethodGet, itemPath(plantsPath, id), nil)
}

func (p *Plants) Create(ctx context.Context, input PlantInput) (Plant, error) {
	err := input.Validate()
	if err != nil {
		return Plant{}, err
	}
	return doJSON[Plant](ctx, p.requester, http.MethodPost, plantsPath, input)
}

func (p *Plants) Update(ctx context.Context, id string, input PlantInput) (Plant, error) {
	err := input.Validate()
	if err != nil {
		return Plant{}, err
	}
	return doJSON[Plant](ctx, p.requester, http.MethodPut, itemPath(plantsPath, id), input)
}

func (p *Plants) Delete(ctx context.Context, id string) error {
	_, err := doJSON[empty](ctx, p.requester, http.MethodDelete, itemPath(plantsPath, id), nil)
	return err
}

type Devices struct {
	requester Requester
}

func (d *Devices) List(ctx context.Context) ([]Device, error) {
	return doJSON[[]Device](ctx, d.requester, http.MethodGet, devicesPath, nil)
}

func (d *Devices) Get(ctx context.Context, id string) (Device, error) {
	return doJSON[Device](ctx, d.requester, http.MethodGet, itemPath(devicesPath, id), nil)
}

func (d *Devices) Create(ctx context.Context, input DeviceInput) (Device, error) {
	if input.Name == "" {
		return Device{}, fmt.Errorf("%w: a device needs a name", ErrInvalidInput)
	}
	return doJSON[Device](ctx, d.requester, http.MethodPost, devicesPath, input)
}

func (d *Devices) Delete(ctx context.Context, id string) error {
	_, err := doJSON[empty](ctx, d.requester, http.MethodDelete, itemPath(devicesPath, id), nil)
	return err
}

type Sensors struct {
	requester Requester
}

func (s *Sensors) List(ctx context.Context) ([]Sensor, error) {
	return doJSON[[]Sensor](ctx, s.requester, http.MethodGet, sensorsPath, nil)
}

// Readings returns the latest readings of a sensor, all of them when limit is not positive
func (s *Sensors) Readings(ctx context.Context, sensorID string, limit int) ([]Reading, error) {
	path := itemPath(sensorsPath, sensorID) + "/readings"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	return doJSON[[]Reading](ctx, s.requester, http.MethodGet, path, nil)
}

type Pumps struct {
	requester Requester
}

func (p *Pumps) List(ctx context.Context) ([]Pump, error) {
	return doJSON[[]Pump](ctx, p.requester, http.MethodGet, pumpsPath, nil)
}

// Water runs the pump for the given number of seconds
func (p *Pumps) Water(ctx context.Context, pumpID string, seconds int) (WateringRun, error) {
	if seconds <= 0 {
		return WateringRun{}, fmt.Errorf("%w: the watering duration must be positive, got %d", ErrInvalidInput, seconds)
	}
	return doJSON[WateringRun](
		ctx,
		p.requester,
		http.MethodPost,
		itemPath(pumpsPath, pumpID)+"/water",
		map[string]int{"seconds": seconds},
	)
}
