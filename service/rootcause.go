package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/oks-citadel/apply-sla/model"
)

// Root-cause classification is a set of named, independent predicates over
// a contract snapshot. Each yields a boolean tag; new heuristics slot in
// without touching the detector.

// lowApplicationVolume: the user sent fewer than half the expected volume
// of two applications per deadline day.
func lowApplicationVolume(c *model.SLAContract, p Policy) bool {
	expected := float64(c.DeadlineDays) * 2
	return float64(c.Counters.ApplicationsSent) < p.LowVolumeFactor*expected
}

// lowResponseRate: employers answered fewer than 10% of applications.
func lowResponseRate(c *model.SLAContract, p Policy) bool {
	return c.ResponseRate() < p.LowResponseRate
}

// profileIssues: the eligibility snapshot recorded failed profile fields at
// purchase time.
func profileIssues(c *model.SLAContract) bool {
	return !c.Eligibility.IsEligible && len(c.Eligibility.FailedFields) > 0
}

// userInactivity: averaged under one application per day since the contract
// started.
func userInactivity(c *model.SLAContract, p Policy, now time.Time) bool {
	days := now.Sub(c.StartDate).Hours() / 24
	if days < 1 {
		days = 1
	}
	return float64(c.Counters.ApplicationsSent)/days < p.MinActivityPerDay
}

// classifyRootCauses evaluates every predicate and renders the triggered
// factors into human-readable analysis notes.
func classifyRootCauses(c *model.SLAContract, p Policy, now time.Time) (model.RootCauseFactors, string) {
	factors := model.RootCauseFactors{
		LowApplicationVolume: lowApplicationVolume(c, p),
		LowResponseRate:      lowResponseRate(c, p),
		ProfileIssues:        profileIssues(c),
		UserInactivity:       userInactivity(c, p, now),
	}

	var notes []string
	if factors.LowApplicationVolume {
		notes = append(notes, fmt.Sprintf("application volume was low: %d sent against an expected %d",
			c.Counters.ApplicationsSent, c.DeadlineDays*2))
	}
	if factors.LowResponseRate {
		notes = append(notes, fmt.Sprintf("employer response rate was %.1f%%, below the %.0f%% baseline",
			c.ResponseRate()*100, p.LowResponseRate*100))
	}
	if factors.ProfileIssues {
		notes = append(notes, fmt.Sprintf("profile had unresolved issues at purchase: %s",
			strings.Join(c.Eligibility.FailedFields, ", ")))
	}
	if factors.UserInactivity {
		notes = append(notes, "user activity averaged under one application per day")
	}
	if len(notes) == 0 {
		notes = append(notes, "no dominant factor identified; applications and responses were within expected ranges")
	}

	return factors, strings.Join(notes, "; ")
}
