// Package config loads the process configuration from environment variables,
// with an optional .env file for local development.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/spotin-app/spotin-go/geo"
)

const (
	apiBaseURLVar   = "SPOTIN_API_URL"
	keychainPathVar = "SPOTIN_KEYCHAIN_PATH"
	keychainKeyVar  = "SPOTIN_KEYCHAIN_KEY"
	targetLatVar    = "SPOTIN_TARGET_LAT"
	targetLngVar    = "SPOTIN_TARGET_LNG"
	targetRadiusVar = "SPOTIN_TARGET_RADIUS_M"
	stubPortVar     = "SPOTIN_STUB_PORT"
	stubSecretVar   = "SPOTIN_STUB_SECRET"
	deviceLatVar    = "SPOTIN_DEVICE_LAT"
	deviceLngVar    = "SPOTIN_DEVICE_LNG"
)

// Defaults: the institution's campus fence from the original deployment.
const (
	defaultTargetLat    = 6.2442
	defaultTargetLng    = -75.5812
	defaultTargetRadius = 100.0
)

// Config is the resolved process configuration.
type Config struct {
	APIBaseURL   string
	KeychainPath string
	KeychainKey  []byte
	Target       geo.GeofenceTarget

	// Simulated device position for the CLI's location provider.
	DeviceCoordinate geo.Coordinate

	// Stub backend settings.
	StubPort   string
	StubSecret []byte
}

// Load reads configuration from the environment. A .env file in the working
// directory is folded in when present; missing values fall back to defaults
// suitable for local development against the stub backend.
func Load() (*Config, error) {
	_ = godotenv.Load()

	keyHex := GetEnv(keychainKeyVar, "")
	var key []byte
	if keyHex != "" {
		decoded, err := hex.DecodeString(keyHex)
		if err != nil {
			return nil, errors.Wrapf(err, "[config.Load] %s must be hex", keychainKeyVar)
		}
		if len(decoded) != 32 {
			return nil, errors.Errorf("[config.Load] %s must decode to 32 bytes, got %d", keychainKeyVar, len(decoded))
		}
		key = decoded
	}

	lat, err := getFloat(targetLatVar, defaultTargetLat)
	if err != nil {
		return nil, err
	}
	lng, err := getFloat(targetLngVar, defaultTargetLng)
	if err != nil {
		return nil, err
	}
	radius, err := getFloat(targetRadiusVar, defaultTargetRadius)
	if err != nil {
		return nil, err
	}
	if radius <= 0 {
		return nil, errors.Errorf("[config.Load] %s must be positive", targetRadiusVar)
	}

	deviceLat, err := getFloat(deviceLatVar, lat)
	if err != nil {
		return nil, err
	}
	deviceLng, err := getFloat(deviceLngVar, lng)
	if err != nil {
		return nil, err
	}

	port := GetEnv(stubPortVar, "3000")
	if port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}

	return &Config{
		APIBaseURL:   GetEnv(apiBaseURLVar, "http://localhost:3000"),
		KeychainPath: GetEnv(keychainPathVar, ".spotin/keychain.json"),
		KeychainKey:  key,
		Target: geo.GeofenceTarget{
			Center:       geo.Coordinate{Lat: lat, Lng: lng},
			RadiusMeters: radius,
		},
		DeviceCoordinate: geo.Coordinate{Lat: deviceLat, Lng: deviceLng},
		StubPort:         port,
		StubSecret:       []byte(GetEnv(stubSecretVar, "dev-only-stub-secret")),
	}, nil
}

// GetEnv returns the value of envVar, or defaultValue when unset or empty.
func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

func getFloat(envVar string, defaultValue float64) (float64, error) {
	raw := GetEnv(envVar, "")
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "[config.Load] %s must be a number", envVar)
	}
	return value, nil
}
