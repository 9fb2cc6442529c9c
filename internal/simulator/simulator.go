// Adwatch - Streaming Ad Integrity and Drift Observability
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adwatch

// Package simulator generates synthetic ad traffic for demos and soak runs.
// It publishes parent events before their children so referential checks see
// a well-ordered stream, and seeds a configurable fraction of anomalies
// (invalid ages, negative revenue, bot click bursts) to exercise the
// detectors.
package simulator

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/adwatch/internal/config"
	"github.com/tomtom215/adwatch/internal/logging"
	"github.com/tomtom215/adwatch/internal/models"
)

// clickRate and conversionRate approximate realistic funnel drop-off.
const (
	clickRate      = 0.25
	conversionRate = 0.08
	botBurstClicks = 15
)

var (
	regions   = []string{"mumbai", "delhi", "bangalore", "chennai", "kolkata"}
	devices   = []models.DeviceType{models.DeviceMobile, models.DeviceDesktop, models.DeviceTablet}
	platforms = []string{"web", "app"}
	convTypes = []models.ConversionType{
		models.ConversionPurchase,
		models.ConversionSignup,
		models.ConversionSubscribe,
		models.ConversionTrial,
	}
)

// Publisher accepts generated events. Satisfied by the pipeline bus.
type Publisher interface {
	Publish(ev *models.Event) error
}

// Simulator drives synthetic traffic through the publisher at a configured
// rate. Not safe for concurrent Run calls; one simulator, one goroutine.
type Simulator struct {
	cfg     config.SimulatorConfig
	pub     Publisher
	rng     *rand.Rand
	limiter *rate.Limiter
}

// New creates a simulator. A zero seed derives one from the clock.
func New(cfg config.SimulatorConfig, pub Publisher) *Simulator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Simulator{
		cfg:     cfg,
		pub:     pub,
		rng:     rand.New(rand.NewSource(seed)),
		limiter: rate.NewLimiter(rate.Limit(cfg.EventsPerSecond), int(cfg.EventsPerSecond)+1),
	}
}

// Run generates traffic until the context is canceled. Each iteration
// produces one impression funnel: the impression, possibly a click, possibly
// a conversion, each published in causal order.
func (s *Simulator) Run(ctx context.Context) error {
	logging.Info().
		Float64("events_per_second", s.cfg.EventsPerSecond).
		Int("users", s.cfg.Users).
		Float64("anomaly_rate", s.cfg.AnomalyRate).
		Msg("Starting traffic simulator")

	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return ctx.Err()
		}
		if err := s.emitFunnel(ctx); err != nil {
			logging.Warn().Err(err).Msg("Simulator publish failed")
		}
	}
}

// emitFunnel publishes one impression and its downstream events.
func (s *Simulator) emitFunnel(ctx context.Context) error {
	userID := fmt.Sprintf("user-%d", s.rng.Intn(s.cfg.Users)+1)
	campaignID := fmt.Sprintf("campaign-%d", s.rng.Intn(s.cfg.Campaigns)+1)
	adID := fmt.Sprintf("ad-%d", s.rng.Intn(10)+1)

	imp := models.NewImpression(userID, campaignID, adID)
	imp.UserAge = s.sampleAge()
	imp.DeviceType = s.sampleDevice()
	imp.Region = regions[s.rng.Intn(len(regions))]
	imp.Platform = s.samplePlatform()
	imp.BidAmount = 0.5 + s.rng.Float64()*4.5

	if s.anomaly() {
		// Underage or impossible ages trip the range rule.
		if s.rng.Intn(2) == 0 {
			imp.UserAge = s.rng.Intn(13)
		} else {
			imp.UserAge = 101 + s.rng.Intn(50)
		}
	}

	if err := s.pub.Publish(imp); err != nil {
		return err
	}

	if s.anomaly() {
		return s.emitBotBurst(ctx, imp)
	}

	if s.rng.Float64() >= clickRate {
		return nil
	}
	click := models.NewClick(userID, campaignID, adID, imp.EventID)
	if err := s.pub.Publish(click); err != nil {
		return err
	}

	if s.rng.Float64() >= conversionRate {
		return nil
	}
	conv := models.NewConversion(userID, campaignID, adID, click.EventID)
	conv.ConversionType = convTypes[s.rng.Intn(len(convTypes))]
	conv.Revenue = 10 + s.rng.Float64()*140
	if s.anomaly() {
		conv.Revenue = -conv.Revenue
	}
	return s.pub.Publish(conv)
}

// emitBotBurst publishes a rapid click burst against one impression,
// enough to cross the click-spike threshold.
func (s *Simulator) emitBotBurst(ctx context.Context, imp *models.Event) error {
	for i := 0; i < botBurstClicks; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		click := models.NewClick(imp.UserID, imp.CampaignID, imp.AdID, imp.EventID)
		if err := s.pub.Publish(click); err != nil {
			return err
		}
	}
	return nil
}

// anomaly rolls the configured anomaly rate.
func (s *Simulator) anomaly() bool {
	return s.rng.Float64() < s.cfg.AnomalyRate
}

// sampleAge draws from a rough normal around 35 and clamps to plausible
// bounds so baseline traffic stays valid.
func (s *Simulator) sampleAge() int {
	age := int(35 + s.rng.NormFloat64()*12)
	if age < 13 {
		age = 13
	}
	if age > 100 {
		age = 100
	}
	return age
}

// sampleDevice weights mobile heaviest, matching real traffic mixes.
func (s *Simulator) sampleDevice() models.DeviceType {
	r := s.rng.Float64()
	switch {
	case r < 0.6:
		return devices[0]
	case r < 0.9:
		return devices[1]
	default:
		return devices[2]
	}
}

func (s *Simulator) samplePlatform() string {
	if s.rng.Float64() < 0.4 {
		return platforms[0]
	}
	return platforms[1]
}
