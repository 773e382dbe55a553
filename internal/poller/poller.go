// Package poller keeps an overview of the devices and sensor readings up to date in the background.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/verdantlabs/plantdash/internal/api"
	"github.com/verdantlabs/plantdash/internal/config"
	"github.com/verdantlabs/plantdash/internal/gateway"
	"golang.org/x/sync/errgroup"
)

const maxConcurrentReadings int = 4

type Overview struct {
	Devices []api.Device `json:"devices"`
	Sensors []api.Sensor `json:"sensors"`
	// Latest readings by sensor ID
	Readings  map[string][]api.Reading `json:"readings"`
	UpdatedAt time.Time                `json:"updatedAt"`
}

type Poller struct {
	client *api.Client
	config config.PollerConfig

	// reports whether a user is logged in, background refreshes are skipped otherwise
	sessionActive func(context.Context) bool

	lock     sync.RWMutex
	overview Overview
	ready    bool
}

// Snapshot returns the last overview, false if there is none yet
func (p *Poller) Snapshot() (Overview, bool) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.overview, p.ready
}

// Refresh fetches a new overview. When the session is expired the snapshot is dropped, on other
// errors the previous snapshot is kept.
func (p *Poller) Refresh(ctx context.Context) error {
	overview, err := p.fetch(ctx)
	if err != nil {
		if gateway.IsSessionExpiredError(err) {
			p.lock.Lock()
			p.overview = Overview{}
			p.ready = false
			p.lock.Unlock()
		}
		return err
	}
	p.lock.Lock()
	p.overview = overview
	p.ready = true
	p.lock.Unlock()
	return nil
}

func (p *Poller) fetch(ctx context.Context) (Overview, error) {
	overview := Overview{Readings: map[string][]api.Reading{}}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		devices, err := p.client.Devices.List(gctx)
		if err != nil {
			return fmt.Errorf("listing devices: %w", err)
		}
		overview.Devices = devices
		return nil
	})
	g.Go(func() error {
		sensors, err := p.client.Sensors.List(gctx)
		if err != nil {
			return fmt.Errorf("listing sensors: %w", err)
		}
		overview.Sensors = sensors
		return nil
	})
	err := g.Wait()
	if err != nil {
		return Overview{}, err
	}

	readings := make([][]api.Reading, len(overview.Sensors))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentReadings)
	for i, sensor := range overview.Sensors {
		i, sensor := i, sensor
		g.Go(func() error {
			sensorReadings, err := p.client.Sensors.Readings(gctx, sensor.ID, p.config.ReadingsLimit)
			if err != nil {
				return fmt.Errorf("reading sensor %s: %w", sensor.ID, err)
			}
			readings[i] = sensorReadings
			return nil
		})
	}
	err = g.Wait()
	if err != nil {
		return Overview{}, err
	}
	for i, sensor := range overview.Sensors {
		overview.Readings[sensor.ID] = readings[i]
	}
	overview.UpdatedAt = time.Now().UTC()
	return overview, nil
}

func (p *Poller) poll(ctx context.Context) {
	if p.sessionActive != nil && !p.sessionActive(ctx) {
		slog.Debug("POLLER", "message", "nobody is logged in, skipping the overview refresh")
		return
	}
	err := p.Refresh(ctx)
	switch {
	case err == nil:
		slog.Debug("POLLER", "message", "overview refreshed")
	case gateway.IsSessionExpiredError(err):
		slog.Info("POLLER", "message", "session expired, overview cleared")
	default:
		slog.Error("POLLER", "message", "overview refresh failed", "error", err)
	}
}

// Enabled reports whether the overview should be refreshed in the background
func (p *Poller) Enabled() bool {
	return p.config.Enabled
}

// GetScheduler returns a scheduler that refreshes the overview at the configured interval, the
// caller starts and stops it. The first refresh runs as soon as the scheduler starts.
func (p *Poller) GetScheduler(ctx context.Context) (*gocron.Scheduler, error) {
	if p.config.IntervalSeconds <= 0 {
		return nil, fmt.Errorf("invalid value for the poller interval (%d)", p.config.IntervalSeconds)
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	pollTask := func(job gocron.Job) {
		p.poll(ctx)
		slog.Debug("POLLER", "message", "next overview refresh scheduled", "nextRun", job.NextRun())
	}

	_, err := s.Every(p.config.Interval()).
		DoWithJobDetails(pollTask)
	if err != nil {
		return nil, err
	}
	return s, nil
}

type PollerOption func(*Poller) error

func WithConfig(pollerConfig config.PollerConfig) PollerOption {
	return func(p *Poller) error {
		p.config = pollerConfig
		return nil
	}
}

func WithAPIClient(client *api.Client) PollerOption {
	return func(p *Poller) error {
		p.client = client
		return nil
	}
}

// WithSessionCheck skips the scheduled refreshes while check reports that nobody is logged in
func WithSessionCheck(check func(context.Context) bool) PollerOption {
	return func(p *Poller) error {
		p.sessionActive = check
		return nil
	}
}

func NewPoller(options ...PollerOption) (*Poller, error) {
	p := &Poller{}
	for _, opt := range options {
		err := opt(p)
		if err != nil {
			return nil, err
		}
	}
	if p.client == nil {
		return nil, fmt.Errorf("the poller requires an api client")
	}
	if p.config.Enabled && p.config.IntervalSeconds <= 0 {
		return nil, fmt.Errorf("invalid value for the poller interval (%d)", p.config.IntervalSeconds)
	}
	return p, nil
}
