// Package models defines the database row types for LaunchPal. Types used
// with sqlx carry db tags; JSON tags describe the API shape.
package models

import "time"

// Subscription plans.
const (
	PlanFree    = "free"
	PlanStarter = "starter"
	PlanPro     = "pro"
)

// PlanLimits are the quotas granted by a subscription plan.
type PlanLimits struct {
	MonthlyRequests int `json:"monthlyRequests"`
	Platforms       int `json:"platforms"`
	Products        int `json:"products"`
}

// Plans maps each subscription to its limits.
var Plans = map[string]PlanLimits{
	PlanFree:    {MonthlyRequests: 100, Platforms: 1, Products: 3},
	PlanStarter: {MonthlyRequests: 1000, Platforms: 3, Products: 10},
	PlanPro:     {MonthlyRequests: 10000, Platforms: 999, Products: 999},
}

// User is a LaunchPal account.
type User struct {
	ID                string     `db:"id" json:"id"`
	Email             string     `db:"email" json:"email"`
	Name              string     `db:"name" json:"name"`
	PasswordHash      *string    `db:"password_hash" json:"-"` // nil for SSO-only accounts
	OIDCSub           *string    `db:"oidc_sub" json:"-"`
	Subscription      string     `db:"subscription" json:"subscription"`
	MonthlyRequests   int        `db:"monthly_requests" json:"monthlyRequests"`
	PlatformLimit     int        `db:"platform_limit" json:"platformLimit"`
	ProductLimit      int        `db:"product_limit" json:"productLimit"`
	BillingCustomerID *string    `db:"billing_customer_id" json:"-"`
	LastLoginAt       *time.Time `db:"last_login_at" json:"lastLoginAt,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updatedAt"`
}

// Limits returns the user's current quotas.
func (u *User) Limits() PlanLimits {
	return PlanLimits{
		MonthlyRequests: u.MonthlyRequests,
		Platforms:       u.PlatformLimit,
		Products:        u.ProductLimit,
	}
}

// ApplyPlan sets the subscription and copies its limits onto the user.
// Unknown plans leave the user unchanged and return false.
func (u *User) ApplyPlan(plan string) bool {
	limits, ok := Plans[plan]
	if !ok {
		return false
	}
	u.Subscription = plan
	u.MonthlyRequests = limits.MonthlyRequests
	u.PlatformLimit = limits.Platforms
	u.ProductLimit = limits.Products
	return true
}
