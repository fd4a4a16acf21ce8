package entitlement

import "github.com/shopspring/decimal"

// Plan identifies a subscription plan. Plans are immutable catalogue data.
type Plan string

const (
	PlanBasic      Plan = "basic"
	PlanPremium    Plan = "premium"
	PlanEnterprise Plan = "enterprise"
)

// Plans returns the catalogue in upgrade order.
func Plans() []Plan {
	return []Plan{PlanBasic, PlanPremium, PlanEnterprise}
}

// Valid reports whether p is a catalogued plan.
func (p Plan) Valid() bool {
	switch p {
	case PlanBasic, PlanPremium, PlanEnterprise:
		return true
	}
	return false
}

// Free reports whether the plan costs nothing.
func (p Plan) Free() bool {
	return p == PlanBasic
}

// Package is a purchasable subscription package for a plan.
type Package struct {
	Code         string
	Plan         Plan
	Name         string
	DurationDays int
	Price        decimal.Decimal
	Trial        bool
}

// Packages returns the purchasable package catalogue.
func Packages() []Package {
	return []Package{
		{Code: "basic-free", Plan: PlanBasic, Name: "Basic", DurationDays: 365, Price: decimal.Zero},
		{Code: "premium-trial", Plan: PlanPremium, Name: "Premium Trial", DurationDays: 14, Price: decimal.Zero, Trial: true},
		{Code: "premium-monthly", Plan: PlanPremium, Name: "Premium Monthly", DurationDays: 30, Price: decimal.NewFromInt(9)},
		{Code: "premium-yearly", Plan: PlanPremium, Name: "Premium Yearly", DurationDays: 365, Price: decimal.NewFromInt(90)},
		{Code: "enterprise-monthly", Plan: PlanEnterprise, Name: "Enterprise Monthly", DurationDays: 30, Price: decimal.NewFromInt(29)},
		{Code: "enterprise-yearly", Plan: PlanEnterprise, Name: "Enterprise Yearly", DurationDays: 365, Price: decimal.NewFromInt(290)},
	}
}

// PackageByCode looks up a package in the catalogue.
func PackageByCode(code string) (Package, bool) {
	for _, pkg := range Packages() {
		if pkg.Code == code {
			return pkg, true
		}
	}
	return Package{}, false
}
