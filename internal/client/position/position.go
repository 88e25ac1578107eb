// Package position turns callback-style position providers into a single
// awaitable lookup.
package position

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/iudanet/geojournal/internal/models"
)

var (
	// ErrUnavailable is returned when the provider could not determine a position
	ErrUnavailable = errors.New("position unavailable")
	// ErrInvalidCoordinates is returned for coordinates outside the valid range
	ErrInvalidCoordinates = errors.New("invalid coordinates")
)

// Position is a single position fix
type Position struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
}

// Location converts the fix to a record location with the given name
func (p Position) Location(name string) *models.Location {
	return &models.Location{
		Latitude:     p.Latitude,
		Longitude:    p.Longitude,
		Accuracy:     p.Accuracy,
		LocationName: name,
	}
}

// Provider reports the current position through callbacks. A provider may call
// either callback more than once, or both; only the first call counts.
type Provider interface {
	CurrentPosition(ctx context.Context, onSuccess func(Position), onError func(error))
}

// ProviderFunc adapts a function to Provider
type ProviderFunc func(ctx context.Context, onSuccess func(Position), onError func(error))

func (f ProviderFunc) CurrentPosition(ctx context.Context, onSuccess func(Position), onError func(error)) {
	f(ctx, onSuccess, onError)
}

type result struct {
	err error
	pos Position
}

// Locate asks the provider for the current position and waits for the first
// settlement or for ctx to be done.
func Locate(ctx context.Context, provider Provider) (Position, error) {
	done := make(chan result, 1)
	var once sync.Once
	settle := func(r result) {
		once.Do(func() {
			done <- r
		})
	}

	go provider.CurrentPosition(ctx,
		func(p Position) { settle(result{pos: p}) },
		func(err error) {
			if err == nil {
				err = ErrUnavailable
			}
			settle(result{err: err})
		},
	)

	select {
	case r := <-done:
		return r.pos, r.err
	case <-ctx.Done():
		return Position{}, fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err())
	}
}

// Static is a provider that always reports the same coordinates
type Static struct {
	Position
}

// NewStatic validates the coordinates and returns a Static provider
func NewStatic(lat, lon, accuracy float64) (*Static, error) {
	p := Position{Latitude: lat, Longitude: lon, Accuracy: accuracy}
	if err := Validate(p); err != nil {
		return nil, err
	}
	return &Static{Position: p}, nil
}

func (s *Static) CurrentPosition(ctx context.Context, onSuccess func(Position), onError func(error)) {
	if err := Validate(s.Position); err != nil {
		onError(err)
		return
	}
	onSuccess(s.Position)
}

// Validate checks latitude, longitude and accuracy ranges
func Validate(p Position) error {
	if p.Latitude < -90 || p.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v", ErrInvalidCoordinates, p.Latitude)
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v", ErrInvalidCoordinates, p.Longitude)
	}
	if p.Accuracy < 0 {
		return fmt.Errorf("%w: accuracy %v", ErrInvalidCoordinates, p.Accuracy)
	}
	return nil
}
