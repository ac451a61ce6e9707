package service

import "time"

// Policy bundles the session lifecycle constants. Production values come from
// configuration; tests compress them to keep the clock short.
type Policy struct {
	IdleTimeout         time.Duration
	ValidateInterval    time.Duration
	IdleCheckInterval   time.Duration
	GraceWindow         time.Duration
	RenewalInterval     time.Duration
	HeartbeatInterval   time.Duration
	ActivityDebounce    time.Duration
	LogoutNotifyTimeout time.Duration
	TokenTTL            time.Duration
	ForceLogoutWait     time.Duration
}

// DefaultPolicy mirrors the backend's 30-minute session window.
func DefaultPolicy() Policy {
	return Policy{
		IdleTimeout:         30 * time.Minute,
		ValidateInterval:    30 * time.Second,
		IdleCheckInterval:   60 * time.Second,
		GraceWindow:         5 * time.Minute,
		RenewalInterval:     10 * time.Minute,
		HeartbeatInterval:   5 * time.Minute,
		ActivityDebounce:    10 * time.Second,
		LogoutNotifyTimeout: 3 * time.Second,
		TokenTTL:            8 * time.Hour,
		ForceLogoutWait:     2 * time.Second,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.IdleTimeout <= 0 {
		p.IdleTimeout = d.IdleTimeout
	}
	if p.ValidateInterval <= 0 {
		p.ValidateInterval = d.ValidateInterval
	}
	if p.IdleCheckInterval <= 0 {
		p.IdleCheckInterval = d.IdleCheckInterval
	}
	if p.GraceWindow <= 0 {
		p.GraceWindow = d.GraceWindow
	}
	if p.RenewalInterval <= 0 {
		p.RenewalInterval = d.RenewalInterval
	}
	if p.HeartbeatInterval <= 0 {
		p.HeartbeatInterval = d.HeartbeatInterval
	}
	if p.ActivityDebounce <= 0 {
		p.ActivityDebounce = d.ActivityDebounce
	}
	if p.LogoutNotifyTimeout <= 0 {
		p.LogoutNotifyTimeout = d.LogoutNotifyTimeout
	}
	if p.TokenTTL <= 0 {
		p.TokenTTL = d.TokenTTL
	}
	if p.ForceLogoutWait <= 0 {
		p.ForceLogoutWait = d.ForceLogoutWait
	}
	return p
}
