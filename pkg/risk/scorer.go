// Package risk derives a heuristic risk score for a login attempt from the
// principal's recent authentication events.
//
// Assess is a pure function: given the same event window, input, and clock
// reading it always produces the same score and reasons. It has no side
// effects; callers decide what to do with a suspicious verdict.
package risk

import (
	"time"

	"github.com/worknest/worknest/pkg/domain"
)

// Reason strings attached to triggered signals.
const (
	ReasonFailureBurst = "multiple failed login attempts"
	ReasonNewOrigin    = "login from new IP address"
	ReasonNewDevice    = "login from new device"
	ReasonRapidLogins  = "rapid login attempts"
	ReasonUnusualHour  = "unusual login time"
)

// Signal trigger constants.
const (
	// WindowSpan is the trailing slice of events considered.
	WindowSpan = 24 * time.Hour

	failureBurstMin = 5
	rapidLoginMin   = 3
	rapidLoginSpan  = time.Hour
	hourDistanceMax = 6.0
	defaultMeanHour = 12.0
)

// Weights are the points each signal contributes. They sum to 100, so the
// score needs no cap. Tunable via configuration; the defaults are policy.
type Weights struct {
	FailureBurst int
	NewOrigin    int
	NewDevice    int
	RapidLogins  int
	UnusualHour  int
	// Threshold at or above which the attempt is flagged suspicious.
	SuspiciousThreshold int
}

// DefaultWeights returns the default signal weights.
func DefaultWeights() Weights {
	return Weights{
		FailureBurst:        30,
		NewOrigin:           20,
		NewDevice:           15,
		RapidLogins:         25,
		UnusualHour:         10,
		SuspiciousThreshold: 50,
	}
}

// Input describes the attempt being scored.
type Input struct {
	IP        string
	UserAgent string
}

// Assess scores a login attempt against the event window. The window holds
// the principal's events from the 24 hours before this attempt, newest
// first, and must not include an event for the attempt itself, otherwise
// the new-origin and new-device signals could never fire.
func Assess(window []*domain.LoginEvent, in Input, now time.Time, w Weights) domain.RiskAssessment {
	var (
		failedCount  int
		rapidSuccess int
		originSeen   bool
		deviceSeen   bool
		hourSum      float64
		successCount int
	)

	rapidCutoff := now.Add(-rapidLoginSpan)

	for _, e := range window {
		switch e.Kind {
		case domain.EventLoginFailed:
			failedCount++
		case domain.EventLoginSuccess:
			successCount++
			hourSum += float64(e.CreatedAt.Hour())
			if e.CreatedAt.After(rapidCutoff) {
				rapidSuccess++
			}
		}
		if e.IP != "" && e.IP == in.IP {
			originSeen = true
		}
		if e.UserAgent != "" && e.UserAgent == in.UserAgent {
			deviceSeen = true
		}
	}

	assessment := domain.RiskAssessment{Reasons: []string{}}
	add := func(points int, reason string) {
		assessment.Score += points
		assessment.Reasons = append(assessment.Reasons, reason)
	}

	if failedCount >= failureBurstMin {
		add(w.FailureBurst, ReasonFailureBurst)
	}
	if !originSeen {
		add(w.NewOrigin, ReasonNewOrigin)
	}
	if !deviceSeen {
		add(w.NewDevice, ReasonNewDevice)
	}
	if rapidSuccess >= rapidLoginMin {
		add(w.RapidLogins, ReasonRapidLogins)
	}

	meanHour := defaultMeanHour
	if successCount > 0 {
		meanHour = hourSum / float64(successCount)
	}
	distance := float64(now.Hour()) - meanHour
	if distance < 0 {
		distance = -distance
	}
	if distance > hourDistanceMax {
		add(w.UnusualHour, ReasonUnusualHour)
	}

	assessment.Suspicious = assessment.Score >= w.SuspiciousThreshold
	return assessment
}
