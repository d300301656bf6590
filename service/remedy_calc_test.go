package service

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/oks-citadel/apply-sla/model"
)

func calcViolation(guaranteed, actual, daysOver, apps int, responseRate float64) *model.SLAViolation {
	return &model.SLAViolation{
		ID:                   "v-test",
		ContractID:           "c-test",
		Type:                 model.ViolationGuaranteeNotMet,
		DetectedAt:           time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		GuaranteedInterviews: guaranteed,
		ActualInterviews:     actual,
		Shortfall:            guaranteed - actual,
		DaysOverDeadline:     daysOver,
		ApplicationsSent:     apps,
		ResponseRate:         responseRate,
	}
}

func TestRecommendedRemedies(t *testing.T) {
	calc := NewRemedyCalculator(DefaultPolicy())

	tests := []struct {
		name      string
		violation *model.SLAViolation
		want      []model.RemedyType
	}{
		{
			name:      "small shortfall healthy pipeline",
			violation: calcViolation(3, 2, 1, 50, 0.20),
			want:      []model.RemedyType{model.RemedyServiceExtension},
		},
		{
			name:      "large shortfall",
			violation: calcViolation(8, 4, 1, 50, 0.20),
			want:      []model.RemedyType{model.RemedyHumanEscalation, model.RemedyPartialRefund},
		},
		{
			name:      "long overdue",
			violation: calcViolation(3, 2, 10, 50, 0.20),
			want:      []model.RemedyType{model.RemedyServiceExtension, model.RemedyHumanEscalation},
		},
		{
			name:      "dead pipeline",
			violation: calcViolation(3, 0, 1, 8, 0),
			want: []model.RemedyType{
				model.RemedyHumanEscalation,
				model.RemedyServiceCredit,
				model.RemedyPartialRefund,
				model.RemedyServiceExtension,
			},
		},
		{
			name:      "extension recommended once despite two triggers",
			violation: calcViolation(3, 2, 1, 5, 0.20),
			want:      []model.RemedyType{model.RemedyServiceExtension},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.RecommendedRemedies(tt.violation)
			if len(got) != len(tt.want) {
				t.Fatalf("RecommendedRemedies = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Remedy %d = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestCalculateDetails(t *testing.T) {
	calc := NewRemedyCalculator(DefaultPolicy())
	v := calcViolation(3, 0, 1, 8, 0)
	c := testContract("user-1", 61)

	t.Run("extension", func(t *testing.T) {
		details, impact := calc.CalculateDetails(model.RemedyServiceExtension, v, c)
		if details.ExtensionDays != 30 {
			t.Errorf("Expected 30 extension days (half of 60), got %d", details.ExtensionDays)
		}
		if details.NewEndDate == nil || !details.NewEndDate.Equal(c.EndDate.AddDate(0, 0, 30)) {
			t.Errorf("Unexpected new end date %v", details.NewEndDate)
		}
		if impact != 0 {
			t.Errorf("Extension has no financial impact, got %.2f", impact)
		}
	})

	t.Run("extension clamped to cap", func(t *testing.T) {
		longContract := testContract("user-2", 121)
		longContract.DeadlineDays = 120
		longContract.EndDate = longContract.StartDate.AddDate(0, 0, 120)
		details, _ := calc.CalculateDetails(model.RemedyServiceExtension, v, longContract)
		if details.ExtensionDays != 30 {
			t.Errorf("Expected cap of 30 days, got %d", details.ExtensionDays)
		}
	})

	t.Run("escalation", func(t *testing.T) {
		details, impact := calc.CalculateDetails(model.RemedyHumanEscalation, v, c)
		if details.EscalationLevel != model.SeverityHigh {
			t.Errorf("Expected high escalation for shortfall 3, got %s", details.EscalationLevel)
		}
		if impact != 0 {
			t.Errorf("Escalation has no financial impact, got %.2f", impact)
		}
		if details.TicketRef != "" {
			t.Error("Ticket ref must be minted at execution, not calculation")
		}
	})

	t.Run("credit", func(t *testing.T) {
		details, impact := calc.CalculateDetails(model.RemedyServiceCredit, v, c)
		if details.CreditAmount != 22.5 {
			t.Errorf("Expected credit 22.50 (25%% of 89.99), got %.4f", details.CreditAmount)
		}
		if impact != 22.5 {
			t.Errorf("Expected impact 22.50, got %.4f", impact)
		}
		wantExpiry := v.DetectedAt.AddDate(0, 0, 90)
		if details.CreditExpiresAt == nil || !details.CreditExpiresAt.Equal(wantExpiry) {
			t.Errorf("Expected expiry %v, got %v", wantExpiry, details.CreditExpiresAt)
		}
		if details.CreditCode != "" {
			t.Error("Credit code must be minted at execution, not calculation")
		}
	})

	t.Run("partial refund capped", func(t *testing.T) {
		details, impact := calc.CalculateDetails(model.RemedyPartialRefund, v, c)
		if details.RefundPercentage != 50 {
			t.Errorf("Expected refund capped at 50%%, got %.1f", details.RefundPercentage)
		}
		if details.RefundAmount != 45.00 {
			t.Errorf("Expected refund 45.00, got %.4f", details.RefundAmount)
		}
		if impact != details.RefundAmount {
			t.Errorf("Impact %.2f must equal refund amount %.2f", impact, details.RefundAmount)
		}
	})

	t.Run("partial refund proportional", func(t *testing.T) {
		small := calcViolation(8, 4, 1, 50, 0.20)
		premium := testContract("user-3", 91)
		premium.GuaranteedInterviews = 8
		premium.Price = 299.99
		details, _ := calc.CalculateDetails(model.RemedyPartialRefund, small, premium)
		if details.RefundPercentage != 50 {
			t.Errorf("Expected 50%% for shortfall 4 of 8, got %.1f", details.RefundPercentage)
		}
		if details.RefundAmount != 150.00 {
			t.Errorf("Expected refund 150.00, got %.4f", details.RefundAmount)
		}
	})

	t.Run("full refund", func(t *testing.T) {
		details, impact := calc.CalculateDetails(model.RemedyFullRefund, v, c)
		if details.RefundPercentage != 100 || details.RefundAmount != c.Price {
			t.Errorf("Expected full price refund, got %.2f at %.0f%%", details.RefundAmount, details.RefundPercentage)
		}
		if impact != c.Price {
			t.Errorf("Expected impact %.2f, got %.2f", c.Price, impact)
		}
	})
}

func TestCalculateDetailsDeterministic(t *testing.T) {
	calc := NewRemedyCalculator(DefaultPolicy())
	v := calcViolation(3, 0, 5, 8, 0.02)
	c := testContract("user-1", 65)

	types := []model.RemedyType{
		model.RemedyServiceExtension,
		model.RemedyHumanEscalation,
		model.RemedyServiceCredit,
		model.RemedyPartialRefund,
		model.RemedyFullRefund,
	}
	for _, rt := range types {
		first, impact1 := calc.CalculateDetails(rt, v, c)
		second, impact2 := calc.CalculateDetails(rt, v, c)

		a, _ := json.Marshal(first)
		b, _ := json.Marshal(second)
		if string(a) != string(b) {
			t.Errorf("%s details differ between identical calls: %s vs %s", rt, a, b)
		}
		if impact1 != impact2 {
			t.Errorf("%s impact differs between identical calls: %.2f vs %.2f", rt, impact1, impact2)
		}
	}
}

func TestRequiresApproval(t *testing.T) {
	calc := NewRemedyCalculator(DefaultPolicy())

	tests := []struct {
		name    string
		remedy  model.RemedyType
		details model.RemedyDetails
		want    bool
	}{
		{"extension", model.RemedyServiceExtension, model.RemedyDetails{ExtensionDays: 30}, false},
		{"escalation", model.RemedyHumanEscalation, model.RemedyDetails{}, false},
		{"small credit", model.RemedyServiceCredit, model.RemedyDetails{CreditAmount: 22.5}, false},
		{"credit at cutoff", model.RemedyServiceCredit, model.RemedyDetails{CreditAmount: 50}, false},
		{"large credit", model.RemedyServiceCredit, model.RemedyDetails{CreditAmount: 75}, true},
		{"partial refund", model.RemedyPartialRefund, model.RemedyDetails{RefundAmount: 10}, true},
		{"full refund", model.RemedyFullRefund, model.RemedyDetails{RefundAmount: 89.99}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := calc.RequiresApproval(tt.remedy, tt.details); got != tt.want {
				t.Errorf("RequiresApproval(%s) = %v, want %v", tt.remedy, got, tt.want)
			}
		})
	}
}

func TestBuildRemedies(t *testing.T) {
	calc := NewRemedyCalculator(DefaultPolicy())
	v := calcViolation(3, 0, 1, 8, 0)
	c := testContract("user-1", 61)
	now := time.Now()

	remedies := calc.BuildRemedies(v, c, now)
	if len(remedies) != 4 {
		t.Fatalf("Expected 4 remedies, got %d", len(remedies))
	}
	for _, r := range remedies {
		if r.Status != model.RemedyPending {
			t.Errorf("Remedy %s must start pending, got %s", r.Type, r.Status)
		}
		if r.ViolationID != v.ID || r.ContractID != c.ID {
			t.Errorf("Remedy %s has wrong linkage", r.Type)
		}
		if r.ID == "" {
			t.Errorf("Remedy %s missing id", r.Type)
		}
	}
}
