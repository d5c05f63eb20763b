package locale

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrPermissionDenied is returned by a Locator that may not report a position.
	ErrPermissionDenied = errors.New("geolocation permission denied")
	// ErrLookupFailed covers transport and status failures of the country lookup.
	ErrLookupFailed = errors.New("country lookup failed")
	// ErrMalformedLookup is returned when the lookup response cannot be decoded.
	ErrMalformedLookup = errors.New("malformed country lookup response")
)

// Position is a pair of WGS84 coordinates.
type Position struct {
	Latitude  float64
	Longitude float64
}

// Locator reports the device position. Implementations may block for an
// unbounded time; callers impose their own deadline.
type Locator interface {
	CurrentPosition(ctx context.Context) (Position, error)
}

// CountryLookup maps coordinates to an ISO 3166 alpha-2 country code.
type CountryLookup interface {
	CountryCode(ctx context.Context, pos Position) (string, error)
}

// StaticLocator reports a fixed, client-supplied position.
type StaticLocator Position

// CurrentPosition implements Locator.
func (l StaticLocator) CurrentPosition(context.Context) (Position, error) {
	return Position(l), nil
}

// DeniedLocator always refuses to report a position.
type DeniedLocator struct{}

// CurrentPosition implements Locator.
func (DeniedLocator) CurrentPosition(context.Context) (Position, error) {
	return Position{}, ErrPermissionDenied
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(ctx context.Context) (Position, error)

// CurrentPosition implements Locator.
func (f LocatorFunc) CurrentPosition(ctx context.Context) (Position, error) {
	return f(ctx)
}

// LookupFunc adapts a function to CountryLookup.
type LookupFunc func(ctx context.Context, pos Position) (string, error)

// CountryCode implements CountryLookup.
func (f LookupFunc) CountryCode(ctx context.Context, pos Position) (string, error) {
	return f(ctx, pos)
}

// ParseLocator builds a Locator from client-reported "lat"/"lon" strings.
// Missing or invalid coordinates behave as a denied permission prompt.
func ParseLocator(lat, lon string) Locator {
	if lat == "" || lon == "" {
		return DeniedLocator{}
	}
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil || la < -90 || la > 90 {
		return DeniedLocator{}
	}
	lo, err := strconv.ParseFloat(lon, 64)
	if err != nil || lo < -180 || lo > 180 {
		return DeniedLocator{}
	}
	return StaticLocator{Latitude: la, Longitude: lo}
}

// ReverseGeocoder resolves coordinates through the BigDataCloud
// reverse-geocode-client endpoint.
type ReverseGeocoder struct {
	baseURL string
	client  *http.Client
}

// NewReverseGeocoder builds a lookup against baseURL. A nil client gets a
// default with a short timeout.
func NewReverseGeocoder(baseURL string, client *http.Client) *ReverseGeocoder {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &ReverseGeocoder{baseURL: baseURL, client: client}
}

type reverseGeocodeResponse struct {
	CountryCode string `json:"countryCode"`
}

// CountryCode implements CountryLookup.
func (g *ReverseGeocoder) CountryCode(ctx context.Context, pos Position) (string, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(pos.Latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(pos.Longitude, 'f', -1, 64))
	q.Set("localityLanguage", "en")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrLookupFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrLookupFailed, resp.StatusCode)
	}

	var body reverseGeocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedLookup, err)
	}
	code := strings.ToUpper(strings.TrimSpace(body.CountryCode))
	if code == "" {
		return "", ErrMalformedLookup
	}
	return code, nil
}
