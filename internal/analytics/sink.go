// Package analytics keeps passive usage counters. Nothing here influences request handling.
package analytics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Proton-105/phonelookup/internal/domain"
)

const dayLayout = "2006-01-02"

var (
	lookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "phonelookup_lookups_total",
		Help: "Lookup requests by outcome.",
	}, []string{"outcome"})

	lookupsByCountryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "phonelookup_lookups_by_country_total",
		Help: "Successful lookups by ISO country code.",
	}, []string{"country"})

	activeUsersToday = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "phonelookup_active_users_today",
		Help: "Distinct users seen since 00:00 UTC.",
	})
)

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Day          string                   `json:"day"`
	TotalLookups int64                    `json:"total_lookups"`
	Successes    int64                    `json:"successes"`
	Failures     map[domain.Outcome]int64 `json:"failures"`
	ByCountry    map[string]int64         `json:"by_country"`
	ActiveToday  int                      `json:"active_today"`
}

// Sink aggregates lookup outcomes and daily active users.
type Sink struct {
	mu        sync.Mutex
	total     int64
	successes int64
	failures  map[domain.Outcome]int64
	countries map[string]int64
	day       string
	active    map[string]struct{}
}

func NewSink() *Sink {
	return &Sink{
		failures:  make(map[domain.Outcome]int64),
		countries: make(map[string]int64),
		active:    make(map[string]struct{}),
	}
}

// RecordLookup counts one lookup attempt. countryCode is only tallied for successes.
func (s *Sink) RecordLookup(outcome domain.Outcome, countryCode string) {
	country := strings.ToUpper(strings.TrimSpace(countryCode))

	s.mu.Lock()
	s.total++
	if outcome == domain.OutcomeSuccess {
		s.successes++
		if country != "" {
			s.countries[country]++
		}
	} else {
		s.failures[outcome]++
	}
	s.mu.Unlock()

	lookupsTotal.WithLabelValues(string(outcome)).Inc()
	if outcome == domain.OutcomeSuccess && country != "" {
		lookupsByCountryTotal.WithLabelValues(country).Inc()
	}
}

// RecordActive marks userID as seen on the UTC day containing now.
func (s *Sink) RecordActive(userID string, now time.Time) {
	s.mu.Lock()
	s.rollLocked(now)
	s.active[userID] = struct{}{}
	count := len(s.active)
	s.mu.Unlock()

	activeUsersToday.Set(float64(count))
}

func (s *Sink) Snapshot(now time.Time) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollLocked(now)

	failures := make(map[domain.Outcome]int64, len(s.failures))
	for k, v := range s.failures {
		failures[k] = v
	}
	countries := make(map[string]int64, len(s.countries))
	for k, v := range s.countries {
		countries[k] = v
	}

	return Snapshot{
		Day:          s.day,
		TotalLookups: s.total,
		Successes:    s.successes,
		Failures:     failures,
		ByCountry:    countries,
		ActiveToday:  len(s.active),
	}
}

// RefreshGauges re-publishes the active-user gauge so it drops to zero after midnight without traffic.
func (s *Sink) RefreshGauges(now time.Time) {
	s.mu.Lock()
	s.rollLocked(now)
	count := len(s.active)
	s.mu.Unlock()

	activeUsersToday.Set(float64(count))
}

func (s *Sink) rollLocked(now time.Time) {
	day := now.UTC().Format(dayLayout)
	if day == s.day {
		return
	}
	s.day = day
	s.active = make(map[string]struct{})
}
