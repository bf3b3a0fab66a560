package config

import "time"

const (
	backendURLVar        = "BACKEND_URL"
	backendTimeoutVar    = "BACKEND_TIMEOUT"
	fakeBackendSecretVar = "FAKE_BACKEND_SECRET"
)

type BackendConfig interface {
	GetBackendURL() string
	GetBackendTimeout() time.Duration
	GetFakeBackendSecret() string
}

type Backend struct {
	src *source
}

var _ BackendConfig = Backend{}

// GetBackendURL includes the /api prefix.
func (b Backend) GetBackendURL() string {
	return b.src.get(backendURLVar, "http://localhost:8083/api")
}

func (b Backend) GetBackendTimeout() time.Duration {
	d, err := time.ParseDuration(b.src.get(backendTimeoutVar, "15s"))
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}

func (b Backend) GetFakeBackendSecret() string {
	return b.src.get(fakeBackendSecretVar, "tuniway-dev-secret")
}
