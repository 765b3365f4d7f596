package models

import (
	"errors"
	"time"
)

// ErrMissingFields is returned when a payload lacks its required fields.
var ErrMissingFields = errors.New("missing required fields")

// Device types reported by the tracking client. Anything else degrades to "".
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
)

// PageView represents one recorded page load. Rows are insert-only and
// never mutated; path, session id and visitor hash are always present,
// everything else may be empty.
type PageView struct {
	Path           string    `json:"path"`
	Referrer       string    `json:"referrer,omitempty"`
	UTMSource      string    `json:"utmSource,omitempty"`
	UTMMedium      string    `json:"utmMedium,omitempty"`
	UTMCampaign    string    `json:"utmCampaign,omitempty"`
	UTMContent     string    `json:"utmContent,omitempty"`
	UTMTerm        string    `json:"utmTerm,omitempty"`
	SessionID      string    `json:"sessionId"`
	VisitorHash    string    `json:"visitorHash"`
	DeviceType     string    `json:"deviceType,omitempty"`
	Browser        string    `json:"browser,omitempty"`
	BrowserVersion string    `json:"browserVersion,omitempty"`
	OS             string    `json:"os,omitempty"`
	OSVersion      string    `json:"osVersion,omitempty"`
	Country        string    `json:"country,omitempty"`
	City           string    `json:"city,omitempty"`
	Region         string    `json:"region,omitempty"`
	UserAgent      string    `json:"userAgent,omitempty"`
	CreatedAt      time.Time `json:"createdAt,omitempty"`
}

// Validate checks the page view invariant: path, session id and visitor
// hash must be present.
func (p *PageView) Validate() error {
	if p.Path == "" || p.SessionID == "" || p.VisitorHash == "" {
		return ErrMissingFields
	}
	if !validDevice(p.DeviceType) {
		p.DeviceType = ""
	}
	return nil
}

func validDevice(d string) bool {
	switch d {
	case "", DeviceDesktop, DeviceMobile, DeviceTablet:
		return true
	default:
		return false
	}
}
