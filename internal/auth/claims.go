package auth

import (
	"time"
)

// AccessClaims represents the claims stored in a PASETO access token.
// These are encrypted in v4.local tokens, so they're not readable without the key.
type AccessClaims struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`

	// Standard PASETO claims
	Issuer     string    `json:"iss"`
	Subject    string    `json:"sub"`
	Audience   string    `json:"aud"`
	Expiration time.Time `json:"exp"`
	NotBefore  time.Time `json:"nbf"`
	IssuedAt   time.Time `json:"iat"`
	TokenID    string    `json:"jti"`
}

// DeviceInfo is what a client reports about itself at login.
// It is stored on the AuthSession for display.
type DeviceInfo struct {
	DeviceType      string `json:"device_type,omitempty" doc:"mobile, tablet, desktop, web or cli"`
	Platform        string `json:"platform,omitempty" doc:"iOS, Android, Linux, Web"`
	PlatformVersion string `json:"platform_version,omitempty"`
	ClientName      string `json:"client_name,omitempty" doc:"e.g. TrailDig Web"`
	ClientVersion   string `json:"client_version,omitempty"`
	DeviceName      string `json:"device_name,omitempty" doc:"Optional user-set name"`
}

// IsValid reports whether the client identified at least its type and platform.
func (d DeviceInfo) IsValid() bool {
	return d.DeviceType != "" && d.Platform != ""
}

// OrDefault fills missing type and platform for clients that send nothing.
func (d DeviceInfo) OrDefault() DeviceInfo {
	if d.DeviceType == "" {
		d.DeviceType = "unknown"
	}
	if d.Platform == "" {
		d.Platform = "unknown"
	}
	return d
}
