package model

import (
	"testing"
	"time"
)

func testPlan(active bool) *SubscriptionPlan {
	return &SubscriptionPlan{
		ID:           "plan-1",
		Name:         "Pro Monthly",
		Price:        29.00,
		Currency:     "USD",
		BillingCycle: BillingCycleMonthly,
		IsActive:     active,
	}
}

func testCode() *DiscountCode {
	c, err := NewDiscountCode("c1", "welcome", "plan-1", BenefitPercentage, 50)
	if err != nil {
		panic(err)
	}
	return c
}

func TestNormalizeCode(t *testing.T) {
	t.Parallel()

	if got := NormalizeCode("  welcome "); got != "WELCOME" {
		t.Fatalf("got %q", got)
	}
}

func TestNewDiscountCode_Validation(t *testing.T) {
	t.Parallel()

	if _, err := NewDiscountCode("", "X", "p", BenefitPercentage, 10); err == nil {
		t.Fatal("expected error for empty id")
	}
	if _, err := NewDiscountCode("id", "X", "p", "bogus", 10); err == nil {
		t.Fatal("expected error for unknown benefit type")
	}
	if _, err := NewDiscountCode("id", "X", "p", BenefitPercentage, 0); err == nil {
		t.Fatal("expected error for non-positive value")
	}

	c := testCode()
	if c.Code != "WELCOME" || !c.IsActive || c.MaxUsesPerCustomer != 1 {
		t.Fatalf("unexpected defaults: %+v", c)
	}
}

func TestRedeemable_GracePeriod(t *testing.T) {
	t.Parallel()

	now := time.Now()
	c := testCode()

	if !c.Redeemable(now) {
		t.Fatal("active code must be redeemable")
	}

	c.IsActive = false
	if c.Redeemable(now) {
		t.Fatal("deactivated code without timestamp must not be redeemable")
	}

	at := now.Add(-10 * time.Minute)
	c.DeactivatedAt = &at
	if !c.Redeemable(now) {
		t.Fatal("expected redeemable within 30-minute grace")
	}

	at = now.Add(-31 * time.Minute)
	if c.Redeemable(now) {
		t.Fatal("expected not redeemable after grace elapsed")
	}
}

func TestHasCapacity(t *testing.T) {
	t.Parallel()

	c := testCode()
	if !c.HasCapacity() {
		t.Fatal("unlimited code must always have capacity")
	}

	max := 5
	c.MaxUses = &max
	c.CurrentUses = 3
	c.ReservedUses = 1
	if !c.HasCapacity() {
		t.Fatal("expected capacity at 4/5")
	}
	c.ReservedUses = 2
	if c.HasCapacity() {
		t.Fatal("reservations must count against capacity")
	}
}

func TestStatus_Precedence(t *testing.T) {
	t.Parallel()

	now := time.Now()
	past := now.Add(-time.Hour)
	max := 1

	cases := []struct {
		name string
		mut  func(*DiscountCode)
		plan *SubscriptionPlan
		want CodeStatus
	}{
		{"missing plan", func(c *DiscountCode) {}, nil, CodeStatusError},
		{"inactive plan", func(c *DiscountCode) {}, testPlan(false), CodeStatusError},
		{"deactivated past grace", func(c *DiscountCode) {
			c.IsActive = false
			at := now.Add(-2 * time.Hour)
			c.DeactivatedAt = &at
		}, testPlan(true), CodeStatusInactive},
		{"expired", func(c *DiscountCode) { c.ValidUntil = &past }, testPlan(true), CodeStatusExpired},
		{"exhausted", func(c *DiscountCode) {
			c.MaxUses = &max
			c.CurrentUses = 1
		}, testPlan(true), CodeStatusExhausted},
		{"unused", func(c *DiscountCode) {}, testPlan(true), CodeStatusUnused},
		{"active", func(c *DiscountCode) { c.CurrentUses = 3 }, testPlan(true), CodeStatusActive},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c := testCode()
			tc.mut(c)
			if got := c.Status(tc.plan, now); got != tc.want {
				t.Errorf("status = %s, want %s", got, tc.want)
			}
		})
	}

	// Error outranks everything else even on an expired, exhausted code.
	c := testCode()
	c.ValidUntil = &past
	c.MaxUses = &max
	c.CurrentUses = 1
	if got := c.Status(nil, now); got != CodeStatusError {
		t.Fatalf("status = %s, want error", got)
	}
}
