// Package settings reads runtime-tunable values (such as the SOS search
// radius) from storage, optionally through a Redis read-through cache.
package settings

import "context"

// KeySosRadiusKm is the donor search radius for new SOS requests.
const KeySosRadiusKm = "sos_radius_km"

// Provider returns numeric settings. Implementations return def when the
// key is missing or is not a positive finite number; a non-nil error means the lookup itself
// failed and def was returned.
type Provider interface {
	GetFloat(ctx context.Context, key string, def float64) (float64, error)
}

// StaticProvider serves fixed values.
type StaticProvider map[string]float64

func (p StaticProvider) GetFloat(_ context.Context, key string, def float64) (float64, error) {
	if v, ok := p[key]; ok {
		return v, nil
	}
	return def, nil
}
