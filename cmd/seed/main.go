package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"subscription-discount-engine/internal/config"
	"subscription-discount-engine/internal/domain/model"
	"subscription-discount-engine/internal/domain/ports/repository"
	pg "subscription-discount-engine/internal/infra/db/postgres"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	planRepo := pg.NewPlanRepo(pool)
	codeRepo := pg.NewDiscountCodeRepo(pool)

	// If plans already exist, do nothing
	plans, err := planRepo.List(ctx, repository.NoTX)
	if err != nil {
		log.Fatalf("list plans: %v", err)
	}
	if len(plans) > 0 {
		fmt.Printf("%d plans already present. No changes.\n", len(plans))
		for _, p := range plans {
			fmt.Printf("  - %s (%.2f %s / %s)\n", p.Name, p.Price, p.Currency, p.BillingCycle)
		}
		return
	}

	// Seed sample plans for exercising the validation flow
	type planSeed struct {
		Name    string
		Price   float64
		Cycle   model.BillingCycle
		Default bool
	}
	planSeeds := []planSeed{
		{"Starter Monthly", 9.00, model.BillingCycleMonthly, false},
		{"Pro Monthly", 29.00, model.BillingCycleMonthly, true},
		{"Pro Yearly", 290.00, model.BillingCycleYearly, false},
	}

	for _, s := range planSeeds {
		p, err := model.NewSubscriptionPlan(uuid.NewString(), s.Name, s.Price, "USD", s.Cycle)
		if err != nil {
			log.Fatalf("build plan %q: %v", s.Name, err)
		}
		p.IsDefault = s.Default
		if err := planRepo.Save(ctx, repository.NoTX, p); err != nil {
			log.Fatalf("save plan %q: %v", s.Name, err)
		}
		fmt.Printf("seeded plan: %s (id=%s, %.2f USD / %s)\n", p.Name, p.ID, p.Price, p.BillingCycle)
	}

	// Codes bind to whichever plan the partial unique index marks as default.
	defaultPlan, err := planRepo.FindDefault(ctx, repository.NoTX)
	if err != nil {
		log.Fatalf("resolve default plan: %v", err)
	}
	fmt.Printf("default plan: %s (id=%s)\n", defaultPlan.Name, defaultPlan.ID)

	// Seed sample discount codes bound to the default plan
	type codeSeed struct {
		Code    string
		Benefit model.BenefitType
		Value   float64
		MaxUses *int
	}
	limit := func(n int) *int { return &n }
	codeSeeds := []codeSeed{
		{"WELCOME", model.BenefitPercentage, 50, limit(100)},
		{"SAVE10", model.BenefitFixedAmount, 10, limit(500)},
		{"TRYFREE", model.BenefitFreeTrial, 1, nil},
	}

	for _, s := range codeSeeds {
		c, err := model.NewDiscountCode(uuid.NewString(), s.Code, defaultPlan.ID, s.Benefit, s.Value)
		if err != nil {
			log.Fatalf("build code %q: %v", s.Code, err)
		}
		c.MaxUses = s.MaxUses
		if err := codeRepo.Save(ctx, repository.NoTX, c); err != nil {
			log.Fatalf("save code %q: %v", s.Code, err)
		}
		uses := "unlimited"
		if c.MaxUses != nil {
			uses = fmt.Sprintf("%d", *c.MaxUses)
		}
		fmt.Printf("seeded code: %s (%s %.0f, max_uses=%s)\n", c.Code, c.BenefitType, c.BenefitValue, uses)
	}

	fmt.Println("Seeding complete.")
}
