package config

import (
	"strconv"
	"time"
)

const (
	loginRateVar  = "LOGIN_RATE"
	loginBurstVar = "LOGIN_BURST"
	trustProxyVar = "TRUST_PROXY"
)

type SecurityConfig interface {
	GetLoginRate() float64
	GetLoginBurst() int
	GetTrustProxy() bool
	GetReadTimeout() time.Duration
	GetWriteTimeout() time.Duration
	GetIdleTimeout() time.Duration
}

type Security struct {
	src *source
}

var _ SecurityConfig = Security{}

// GetLoginRate is the sustained login and register submissions per second
// per client address.
func (s Security) GetLoginRate() float64 {
	v, err := strconv.ParseFloat(s.src.get(loginRateVar, "0.5"), 64)
	if err != nil || v <= 0 {
		return 0.5
	}
	return v
}

func (s Security) GetLoginBurst() int {
	v, err := strconv.Atoi(s.src.get(loginBurstVar, "5"))
	if err != nil || v <= 0 {
		return 5
	}
	return v
}

// GetTrustProxy reports whether X-Forwarded-For and X-Real-IP are honoured.
// Only enable it behind a proxy that overwrites those headers.
func (s Security) GetTrustProxy() bool {
	v, err := strconv.ParseBool(s.src.get(trustProxyVar, "false"))
	return err == nil && v
}

func (Security) GetReadTimeout() time.Duration {
	return 15 * time.Second
}

func (Security) GetWriteTimeout() time.Duration {
	return 15 * time.Second
}

func (Security) GetIdleTimeout() time.Duration {
	return 60 * time.Second
}
