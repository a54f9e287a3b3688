// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
)

// Resolver modes for contact location lookup.
const (
	ResolverAbsent   = "absent"   // contacts never resolve to a location
	ResolverRegistry = "registry" // resolve via registered users sharing location
)

// Config holds all server settings.
type Config struct {
	Address string `env:"ADDRESS,default=:9090"`
	DBPath  string `env:"DB_PATH,default=safechat.db"`

	// Proximity
	ThresholdKm   float64       `env:"PROXIMITY_THRESHOLD_KM,default=1.0"`
	AlertCooldown time.Duration `env:"ALERT_COOLDOWN,default=5m"`
	ResolverMode  string        `env:"RESOLVER_MODE,default=absent"`

	// Secrets
	JWTSecret     string `env:"JWT_SECRET,default=safechat-dev-secret"`
	EncryptionKey string `env:"ENCRYPTION_KEY,default=12345678901234567890123456789012"`

	// Web push (optional, push disabled when unset)
	VAPIDPublicKey  string `env:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `env:"VAPID_PRIVATE_KEY"`
	VAPIDSubject    string `env:"VAPID_SUBJECT,default=mailto:push@safechat.app"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var c Config
	if err := envdecode.Decode(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if c.ThresholdKm <= 0 {
		return nil, fmt.Errorf("PROXIMITY_THRESHOLD_KM must be positive, got %v", c.ThresholdKm)
	}
	switch c.ResolverMode {
	case ResolverAbsent, ResolverRegistry:
	default:
		return nil, fmt.Errorf("unknown RESOLVER_MODE %q", c.ResolverMode)
	}
	return &c, nil
}
