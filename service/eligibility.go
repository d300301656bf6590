package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/oks-citadel/apply-sla/config"
	"github.com/oks-citadel/apply-sla/model"
	"github.com/oks-citadel/apply-sla/pkg/logger"
)

// ProfileGate checks tier eligibility against the upstream profile source.
// It fans out to the profile, resume and experience sub-resources with one
// bounded deadline; a failed sub-fetch degrades to zero-valued defaults so
// eligibility fails closed instead of erroring or silently passing.
type ProfileGate struct {
	cfg        *config.EligibilityConfig
	policy     Policy
	httpClient *http.Client
}

func NewProfileGate(cfg *config.EligibilityConfig, policy Policy) *ProfileGate {
	return &ProfileGate{
		cfg:    cfg,
		policy: policy,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

type profilePayload struct {
	Completeness float64  `json:"completeness"`
	Fields       []string `json:"completed_fields"`
}

type resumePayload struct {
	Score    float64 `json:"score"`
	Approved bool    `json:"approved"`
}

type experiencePayload struct {
	TotalMonths int `json:"total_months"`
}

// Check evaluates the user against the tier's minimums and returns the
// full pass/fail breakdown with recommendations.
func (g *ProfileGate) Check(ctx context.Context, userID string, tier model.Tier) (model.EligibilityResult, error) {
	tp, ok := g.policy.Tiers[tier]
	if !ok {
		return model.EligibilityResult{}, fmt.Errorf("unknown tier %q", tier)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(g.cfg.TimeoutSeconds)*time.Second)
	defer cancel()

	var (
		wg         sync.WaitGroup
		profile    profilePayload
		resume     resumePayload
		experience experiencePayload
	)

	// Best-effort fan-out: each sub-resource that cannot be fetched keeps
	// its zero value, which can only make the user less eligible.
	wg.Add(3)
	go func() {
		defer wg.Done()
		if err := g.fetch(ctx, fmt.Sprintf("/users/%s/profile", userID), &profile); err != nil {
			logger.Warn(ctx, "profile fetch failed, using empty defaults", "user_id", userID, "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := g.fetch(ctx, fmt.Sprintf("/users/%s/resume", userID), &resume); err != nil {
			logger.Warn(ctx, "resume fetch failed, using empty defaults", "user_id", userID, "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := g.fetch(ctx, fmt.Sprintf("/users/%s/experience", userID), &experience); err != nil {
			logger.Warn(ctx, "experience fetch failed, using empty defaults", "user_id", userID, "error", err)
		}
	}()
	wg.Wait()

	return g.evaluate(tier, tp, profile, resume, experience), nil
}

func (g *ProfileGate) fetch(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("profile source returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// evaluate applies the tier minimums to the fetched (possibly degraded)
// profile data.
func (g *ProfileGate) evaluate(tier model.Tier, tp TierPolicy, profile profilePayload, resume resumePayload, experience experiencePayload) model.EligibilityResult {
	result := model.EligibilityResult{
		ProfileCompleteness:  profile.Completeness,
		ResumeScore:          resume.Score,
		WorkExperienceMonths: experience.TotalMonths,
		HasApprovedResume:    resume.Approved,
		CheckedAt:            time.Now(),
	}

	pass := func(field string, ok bool, recommendation string) {
		if ok {
			result.PassedFields = append(result.PassedFields, field)
			return
		}
		result.FailedFields = append(result.FailedFields, field)
		result.Recommendations = append(result.Recommendations, recommendation)
	}

	pass("profile_completeness",
		profile.Completeness >= g.policy.MinProfileCompleteness,
		fmt.Sprintf("complete your profile to at least %.0f%% (currently %.0f%%)",
			g.policy.MinProfileCompleteness*100, profile.Completeness*100))

	pass("resume_score",
		resume.Score >= tp.MinResumeScore,
		fmt.Sprintf("improve your resume score to at least %.0f for the %s tier", tp.MinResumeScore, tier))

	pass("work_experience",
		experience.TotalMonths >= tp.MinExperienceMonths,
		fmt.Sprintf("the %s tier requires at least %d months of work experience", tier, tp.MinExperienceMonths))

	if tp.RequireApprovedResume {
		pass("approved_resume",
			resume.Approved,
			"submit your resume for review and approval before purchasing this tier")
	}

	completed := make(map[string]bool, len(profile.Fields))
	for _, f := range profile.Fields {
		completed[f] = true
	}
	for _, field := range tp.RequiredProfileFields {
		pass("profile."+field,
			completed[field],
			fmt.Sprintf("fill in the %s section of your profile", field))
	}

	result.IsEligible = len(result.FailedFields) == 0
	return result
}
