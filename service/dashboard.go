package service

import (
	"context"
	"fmt"
	"time"

	"github.com/oks-citadel/apply-sla/model"
	"github.com/oks-citadel/apply-sla/pkg/logger"
)

// Milestone is a progress checkpoint shown on the dashboard.
type Milestone struct {
	Name    string `json:"name"`
	Target  int    `json:"target"`
	Current int    `json:"current"`
	Reached bool   `json:"reached"`
}

// ViolationSummary is the dashboard's condensed violation row.
type ViolationSummary struct {
	ID         string   `json:"id"`
	DetectedAt string   `json:"detected_at"`
	Shortfall  int      `json:"shortfall"`
	Severity   string   `json:"severity"`
	Resolved   bool     `json:"resolved"`
	RootCauses []string `json:"root_causes"`
	ReportURL  string   `json:"report_url,omitempty"`
}

// WeeklyActivity buckets ledger events by week since the contract start,
// week 1 being the first seven days.
type WeeklyActivity struct {
	Week         int `json:"week"`
	Applications int `json:"applications"`
	Responses    int `json:"responses"`
	Interviews   int `json:"interviews"`
	Offers       int `json:"offers"`
}

// DashboardView aggregates everything the user-facing dashboard shows.
type DashboardView struct {
	Contract        *ContractView             `json:"contract"`
	RecentEvents    []*model.SLAProgressEvent `json:"recent_events"`
	WeeklyTrend     []WeeklyActivity          `json:"weekly_trend,omitempty"`
	Violations      []ViolationSummary        `json:"violations,omitempty"`
	Milestones      []Milestone               `json:"milestones"`
	Recommendations []string                  `json:"recommendations,omitempty"`
}

// DashboardService assembles the read-only dashboard from the store.
type DashboardService struct {
	store     *ContractStore
	contracts *ContractService
	reports   *ReportArchive // optional
}

func NewDashboardService(store *ContractStore, contracts *ContractService, reports *ReportArchive) *DashboardService {
	return &DashboardService{store: store, contracts: contracts, reports: reports}
}

const recentEventLimit = 10

// Build assembles the dashboard for the user's most recent contract.
func (d *DashboardService) Build(ctx context.Context, userID string) (*DashboardView, error) {
	c, err := d.store.ContractByUser(userID)
	if err != nil {
		return nil, err
	}

	view := &DashboardView{
		Contract:   d.contracts.View(c),
		Milestones: buildMilestones(c),
	}

	events := d.store.EventsByContract(c.ID)
	view.WeeklyTrend = buildWeeklyTrend(c.StartDate, events)
	if len(events) > recentEventLimit {
		events = events[len(events)-recentEventLimit:]
	}
	view.RecentEvents = events

	for _, v := range d.store.ViolationsByContract(c.ID) {
		summary := ViolationSummary{
			ID:         v.ID,
			DetectedAt: v.DetectedAt.Format("2006-01-02T15:04:05Z07:00"),
			Shortfall:  v.Shortfall,
			Severity:   v.Severity(),
			Resolved:   v.Resolved,
			RootCauses: v.RootCauses.Tags(),
		}
		if d.reports != nil && v.ReportObject != "" {
			url, err := d.reports.PresignedReportURL(ctx, v.ReportObject)
			if err != nil {
				logger.Warn(ctx, "failed to presign report URL", "violation_id", v.ID, "error", err)
			} else {
				summary.ReportURL = url
			}
		}
		view.Violations = append(view.Violations, summary)
	}

	view.Recommendations = buildRecommendations(c)
	return view, nil
}

func buildWeeklyTrend(start time.Time, events []*model.SLAProgressEvent) []WeeklyActivity {
	if len(events) == 0 {
		return nil
	}

	byWeek := make(map[int]WeeklyActivity)
	last := 0
	for _, e := range events {
		week := int(e.CreatedAt.Sub(start).Hours()/(24*7)) + 1
		if week < 1 {
			week = 1
		}
		w := byWeek[week]
		switch {
		case e.Type == model.EventApplicationSent:
			w.Applications++
		case e.Type == model.EventEmployerResponse:
			w.Responses++
		case e.Type.IsInterview():
			w.Interviews++
		case e.Type == model.EventOfferReceived:
			w.Offers++
		}
		byWeek[week] = w
		if week > last {
			last = week
		}
	}

	// Dense from week 1 so quiet weeks show as zeroes.
	trend := make([]WeeklyActivity, 0, last)
	for week := 1; week <= last; week++ {
		w := byWeek[week]
		w.Week = week
		trend = append(trend, w)
	}
	return trend
}

func buildMilestones(c *model.SLAContract) []Milestone {
	milestones := []Milestone{
		{Name: "first_application", Target: 1, Current: c.Counters.ApplicationsSent},
		{Name: "ten_applications", Target: 10, Current: c.Counters.ApplicationsSent},
		{Name: "first_response", Target: 1, Current: c.Counters.EmployerResponses},
		{Name: "first_interview", Target: 1, Current: c.Counters.InterviewsScheduled},
		{Name: "guarantee_met", Target: c.GuaranteedInterviews, Current: c.Counters.InterviewsScheduled},
	}
	for i := range milestones {
		milestones[i].Reached = milestones[i].Current >= milestones[i].Target
	}
	return milestones
}

func buildRecommendations(c *model.SLAContract) []string {
	var recs []string

	if c.Counters.ApplicationsSent < c.DeadlineDays*2 {
		recs = append(recs, fmt.Sprintf("aim for about 2 applications per day; %d sent so far", c.Counters.ApplicationsSent))
	}
	if c.Counters.ApplicationsSent >= 10 && c.ResponseRate() < 0.10 {
		recs = append(recs, "response rate is low; consider revising your resume or targeting better-matched roles")
	}
	if !c.IsGuaranteeMet() && c.Counters.InterviewsScheduled > 0 {
		remaining := c.GuaranteedInterviews - c.Counters.InterviewsScheduled
		recs = append(recs, fmt.Sprintf("%d more interview(s) needed to meet the guarantee", remaining))
	}
	// Surface the purchase-time recommendations while profile gaps persist.
	recs = append(recs, c.Eligibility.Recommendations...)

	return recs
}
