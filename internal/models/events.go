// Adwatch - Streaming Ad Integrity and Drift Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adwatch

// Package models defines the shared event and alert vocabulary for the
// integrity engine. Events form a closed tagged variant over impression,
// click, and conversion; the Type discriminant lets validators and stores
// switch exhaustively without runtime type inspection.
package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType discriminates the event variants.
type EventType string

const (
	EventTypeImpression EventType = "impression"
	EventTypeClick      EventType = "click"
	EventTypeConversion EventType = "conversion"
)

// Valid reports whether the discriminant is a known variant.
func (t EventType) Valid() bool {
	switch t {
	case EventTypeImpression, EventTypeClick, EventTypeConversion:
		return true
	}
	return false
}

// DeviceType is the closed set of devices an impression can report.
type DeviceType string

const (
	DeviceMobile  DeviceType = "mobile"
	DeviceDesktop DeviceType = "desktop"
	DeviceTablet  DeviceType = "tablet"
	DeviceOther   DeviceType = "other"
)

// ConversionType is the closed set of conversion outcomes.
type ConversionType string

const (
	ConversionPurchase  ConversionType = "purchase"
	ConversionSignup    ConversionType = "signup"
	ConversionSubscribe ConversionType = "subscribe"
	ConversionTrial     ConversionType = "trial"
)

// Event is the canonical ad event consumed by the engine.
//
// Common fields are always present. Variant fields are meaningful only for
// the matching Type: impressions carry demographics and the bid, clicks
// reference their impression, conversions reference their click and carry
// revenue.
type Event struct {
	EventID    string    `json:"event_id"`
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	UserID     string    `json:"user_id"`
	CampaignID string    `json:"campaign_id"`
	AdID       string    `json:"ad_id"`

	// Impression fields
	UserAge    int        `json:"user_age,omitempty"`
	DeviceType DeviceType `json:"device_type,omitempty"`
	Region     string     `json:"region,omitempty"`
	Platform   string     `json:"platform,omitempty"`
	BidAmount  float64    `json:"bid_amount,omitempty"`

	// Click fields
	ImpressionID string `json:"impression_id,omitempty"`

	// Conversion fields
	ClickID        string         `json:"click_id,omitempty"`
	Revenue        float64        `json:"revenue,omitempty"`
	ConversionType ConversionType `json:"conversion_type,omitempty"`
}

// NewImpression creates an impression event with a unique ID and UTC timestamp.
func NewImpression(userID, campaignID, adID string) *Event {
	return &Event{
		EventID:    uuid.New().String(),
		Type:       EventTypeImpression,
		Timestamp:  time.Now().UTC(),
		UserID:     userID,
		CampaignID: campaignID,
		AdID:       adID,
	}
}

// NewClick creates a click event referencing the given impression.
func NewClick(userID, campaignID, adID, impressionID string) *Event {
	return &Event{
		EventID:      uuid.New().String(),
		Type:         EventTypeClick,
		Timestamp:    time.Now().UTC(),
		UserID:       userID,
		CampaignID:   campaignID,
		AdID:         adID,
		ImpressionID: impressionID,
	}
}

// NewConversion creates a conversion event referencing the given click.
func NewConversion(userID, campaignID, adID, clickID string) *Event {
	return &Event{
		EventID:    uuid.New().String(),
		Type:       EventTypeConversion,
		Timestamp:  time.Now().UTC(),
		UserID:     userID,
		CampaignID: campaignID,
		AdID:       adID,
		ClickID:    clickID,
	}
}
