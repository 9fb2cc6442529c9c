// Adwatch - Streaming Ad Integrity and Drift Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adwatch

// Package integrity implements per-event business-rule validation: range and
// enum checks on event fields, referential checks against previously accepted
// events, and temporal plausibility checks.
//
// Severity policy: negative revenue and unresolvable references are high
// severity and cause rejection; every other violation is medium severity and
// the event is accepted with the alert attached. An event can trigger
// multiple independent violations.
package integrity

import (
	"fmt"
	"time"

	"github.com/tomtom215/adwatch/internal/config"
	"github.com/tomtom215/adwatch/internal/models"
	"github.com/tomtom215/adwatch/internal/validation"
)

// Outcome is the result of validating a single event.
type Outcome struct {
	// Accepted is false when any high-severity check failed. Rejected
	// events must not reach the window store or drift snapshots.
	Accepted bool

	// Alerts raised by this event, in check order. May be non-empty even
	// when the event is accepted.
	Alerts []*models.Alert
}

// Validator applies the business rules to one event at a time. It is
// stateless apart from the referential index lookup and safe for concurrent
// use.
type Validator struct {
	index *Index
	cfg   config.IntegrityConfig
	now   func() time.Time
}

// NewValidator creates a validator backed by the given referential index.
func NewValidator(index *Index, cfg config.IntegrityConfig) *Validator {
	return &Validator{
		index: index,
		cfg:   cfg,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// impressionRules is the declarative rule view of an impression. Field names
// match the event fields so alert details read naturally.
type impressionRules struct {
	UserAge    int     `validate:"gte=13,lte=100"`
	DeviceType string  `validate:"oneof=mobile desktop tablet other"`
	BidAmount  float64 `validate:"gt=0"`
}

// conversionRules is the declarative rule view of a conversion.
type conversionRules struct {
	Revenue        float64 `validate:"gte=0"`
	ConversionType string  `validate:"oneof=purchase signup subscribe trial"`
}

// Validate applies every applicable check to the event and returns the
// combined outcome. Checks are independent: one failure does not short-
// circuit the rest, so a single event can carry multiple alerts.
func (v *Validator) Validate(ev *models.Event) Outcome {
	var alerts []*models.Alert
	rejected := false

	raise := func(severity models.Severity, detail string, meta any) {
		a := models.NewAlert(models.AlertRuleViolation, severity, ev.EventID, detail)
		if meta != nil {
			a = a.WithMetadata(meta)
		}
		alerts = append(alerts, a)
		if severity == models.SeverityHigh {
			rejected = true
		}
	}

	if !ev.Type.Valid() {
		raise(models.SeverityHigh,
			fmt.Sprintf("unknown event type %q", ev.Type), nil)
		return Outcome{Accepted: false, Alerts: alerts}
	}

	switch ev.Type {
	case models.EventTypeImpression:
		v.checkFields(impressionRules{
			UserAge:    ev.UserAge,
			DeviceType: string(ev.DeviceType),
			BidAmount:  ev.BidAmount,
		}, raise)

	case models.EventTypeClick:
		v.checkClickReference(ev, raise)

	case models.EventTypeConversion:
		v.checkFields(conversionRules{
			Revenue:        ev.Revenue,
			ConversionType: string(ev.ConversionType),
		}, raise)
		v.checkConversionReference(ev, raise)
		v.checkHighRevenue(ev, raise)
	}

	v.checkTemporal(ev, raise)

	return Outcome{Accepted: !rejected, Alerts: alerts}
}

// checkFields runs the declarative range/enum rules and raises one alert per
// failed field. Negative revenue is the single high-severity field rule.
func (v *Validator) checkFields(rules any, raise func(models.Severity, string, any)) {
	verr := validation.ValidateStruct(rules)
	if verr == nil {
		return
	}
	for _, fe := range verr.Errors() {
		severity := models.SeverityMedium
		if fe.Field() == "Revenue" {
			severity = models.SeverityHigh
		}
		raise(severity, fe.Error(), map[string]any{
			"field": fe.Field(),
			"value": fe.Value(),
		})
	}
}

// checkClickReference verifies the click resolves to an accepted impression
// owned by the same user.
func (v *Validator) checkClickReference(ev *models.Event, raise func(models.Severity, string, any)) {
	ownerID, ok := v.index.Impression(ev.ImpressionID)
	if !ok {
		raise(models.SeverityHigh,
			fmt.Sprintf("click references unknown impression %s", ev.ImpressionID),
			map[string]any{"impression_id": ev.ImpressionID})
		return
	}
	if ownerID != ev.UserID {
		raise(models.SeverityHigh,
			fmt.Sprintf("click user %s does not match impression user %s", ev.UserID, ownerID),
			map[string]any{"impression_id": ev.ImpressionID, "impression_user_id": ownerID})
	}
}

// checkConversionReference verifies the conversion resolves to an accepted click.
func (v *Validator) checkConversionReference(ev *models.Event, raise func(models.Severity, string, any)) {
	if !v.index.Click(ev.ClickID) {
		raise(models.SeverityHigh,
			fmt.Sprintf("conversion references unknown click %s", ev.ClickID),
			map[string]any{"click_id": ev.ClickID})
	}
}

// checkHighRevenue raises an advisory for conversions above the configured
// cap. The event stays accepted; unusually large revenue is worth a look but
// is not an integrity failure.
func (v *Validator) checkHighRevenue(ev *models.Event, raise func(models.Severity, string, any)) {
	if v.cfg.HighRevenueCap > 0 && ev.Revenue > v.cfg.HighRevenueCap {
		raise(models.SeverityMedium,
			fmt.Sprintf("revenue %.2f exceeds advisory cap %.2f", ev.Revenue, v.cfg.HighRevenueCap),
			map[string]any{"revenue": ev.Revenue, "cap": v.cfg.HighRevenueCap})
	}
}

// checkTemporal flags backdated timestamps and timestamps running ahead of
// the clock beyond the skew tolerance.
func (v *Validator) checkTemporal(ev *models.Event, raise func(models.Severity, string, any)) {
	if !v.cfg.MinTimestamp.IsZero() && ev.Timestamp.Before(v.cfg.MinTimestamp) {
		raise(models.SeverityMedium,
			fmt.Sprintf("timestamp %s is before the minimum horizon %s",
				ev.Timestamp.Format(time.RFC3339), v.cfg.MinTimestamp.Format(time.RFC3339)),
			nil)
	}
	if v.cfg.SkewTolerance > 0 {
		limit := v.now().Add(v.cfg.SkewTolerance)
		if ev.Timestamp.After(limit) {
			raise(models.SeverityMedium,
				fmt.Sprintf("timestamp %s is beyond the allowed clock skew",
					ev.Timestamp.Format(time.RFC3339)),
				nil)
		}
	}
}
