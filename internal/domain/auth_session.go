package domain

import "time"

// AuthSession represents a logged-in device holding a refresh token.
// Each device gets its own session so users can see what is connected.
type AuthSession struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	RefreshTokenHash string    `json:"refresh_token_hash,omitempty"` // Stored hashed, filter from API responses
	ExpiresAt        time.Time `json:"expires_at"`
	CreatedAt        time.Time `json:"created_at"`
	LastSeenAt       time.Time `json:"last_seen_at"`
	IPAddress        string    `json:"ip_address,omitempty"`

	DeviceType      string `json:"device_type"`           // mobile, tablet, desktop, web, cli
	Platform        string `json:"platform"`              // iOS, Android, Linux, Web
	PlatformVersion string `json:"platform_version"`      // 17.2, 14.0
	ClientName      string `json:"client_name"`           // TrailDig Web
	ClientVersion   string `json:"client_version"`        // 1.0.0
	DeviceName      string `json:"device_name,omitempty"` // Crew tablet (optional, user-set)
}

// Touch updates the session's last seen timestamp.
func (s *AuthSession) Touch() {
	s.LastSeenAt = time.Now()
}

// IsExpired checks if the session has passed its expiration time.
func (s *AuthSession) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// DisplayName returns a human-readable description of the device.
func (s *AuthSession) DisplayName() string {
	if s.DeviceName != "" {
		return s.DeviceName
	}
	if s.ClientName != "" && s.Platform != "" {
		return s.ClientName + " on " + s.Platform
	}
	if s.ClientName != "" {
		return s.ClientName
	}
	if s.Platform != "" {
		return s.Platform
	}
	return "Unknown device"
}
