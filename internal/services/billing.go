package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/launchpal/launchpal/internal/db/models"
)

// Billing webhook event types.
const (
	EventSubscriptionCreated   = "subscription.created"
	EventSubscriptionUpdated   = "subscription.updated"
	EventSubscriptionCancelled = "subscription.cancelled"
)

// SignatureHeader carries the hex HMAC-SHA256 of a webhook body.
const SignatureHeader = "X-LaunchPal-Signature"

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrUnknownPlan      = errors.New("unknown plan")
)

// Subscription is a user's current plan.
type Subscription struct {
	Plan       string            `json:"plan"`
	Limits     models.PlanLimits `json:"limits"`
	CustomerID string            `json:"customerId,omitempty"`
}

// WebhookEvent is the payload posted by the payment provider.
type WebhookEvent struct {
	Type string `json:"type"`
	Data struct {
		CustomerEmail string `json:"customer_email"`
		CustomerID    string `json:"customer_id"`
		ProductID     string `json:"product_id"`
	} `json:"data"`
}

// BillingService changes subscriptions. There is no payment integration:
// checkout is a configured URL template and plan changes arrive by webhook.
type BillingService struct {
	users         UserStore
	checkoutURL   string
	webhookSecret []byte
}

// NewBillingService creates a new BillingService
func NewBillingService(users UserStore, checkoutURL, webhookSecret string) *BillingService {
	return &BillingService{users: users, checkoutURL: checkoutURL, webhookSecret: []byte(webhookSecret)}
}

// Checkout returns the URL the user should visit to buy plan.
func (s *BillingService) Checkout(plan, interval string) (string, error) {
	if plan != models.PlanStarter && plan != models.PlanPro {
		return "", fmt.Errorf("%w: %w %q", ErrValidation, ErrUnknownPlan, plan)
	}
	switch interval {
	case "":
		interval = "month"
	case "month", "year":
	default:
		return "", fmt.Errorf("%w: interval must be month or year", ErrValidation)
	}
	r := strings.NewReplacer("{plan}", url.QueryEscape(plan), "{interval}", url.QueryEscape(interval))
	return r.Replace(s.checkoutURL), nil
}

// Get returns the user's subscription.
func (s *BillingService) Get(ctx context.Context, userID string) (*Subscription, error) {
	user, err := s.loadByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return subscriptionOf(user), nil
}

// ChangePlan moves a user to plan and copies the plan's limits.
func (s *BillingService) ChangePlan(ctx context.Context, userID, plan string) (*Subscription, error) {
	user, err := s.loadByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, user, plan, "")
}

// ChangePlanByEmail is ChangePlan keyed by account email.
func (s *BillingService) ChangePlanByEmail(ctx context.Context, email, plan, customerID string) (*Subscription, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, email)
	}
	return s.apply(ctx, user, plan, customerID)
}

// Cancel drops the user to the free plan.
func (s *BillingService) Cancel(ctx context.Context, userID string) (*Subscription, error) {
	return s.ChangePlan(ctx, userID, models.PlanFree)
}

func (s *BillingService) apply(ctx context.Context, user *models.User, plan, customerID string) (*Subscription, error) {
	previous := user.Subscription
	if !user.ApplyPlan(plan) {
		return nil, fmt.Errorf("%w: %w %q", ErrValidation, ErrUnknownPlan, plan)
	}
	if customerID != "" {
		user.BillingCustomerID = &customerID
	}
	if err := s.users.UpdatePlan(ctx, user); err != nil {
		return nil, fmt.Errorf("update plan: %w", err)
	}
	slog.Info("subscription changed", "user_id", user.ID, "from", previous, "to", plan)
	return subscriptionOf(user), nil
}

// VerifySignature checks the hex HMAC-SHA256 of body. An empty secret
// rejects every webhook.
func (s *BillingService) VerifySignature(body []byte, signature string) error {
	if len(s.webhookSecret) == 0 {
		return fmt.Errorf("%w: webhook secret not configured", ErrInvalidSignature)
	}
	got, err := hex.DecodeString(strings.TrimPrefix(signature, "sha256="))
	if err != nil {
		return ErrInvalidSignature
	}
	mac := hmac.New(sha256.New, s.webhookSecret)
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign returns the signature VerifySignature expects for body.
func (s *BillingService) Sign(body []byte) string {
	mac := hmac.New(sha256.New, s.webhookSecret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// HandleWebhook verifies and applies a billing event. Unknown event types
// are ignored.
func (s *BillingService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if err := s.VerifySignature(body, signature); err != nil {
		return err
	}
	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("%w: malformed event: %v", ErrValidation, err)
	}

	switch ev.Type {
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionCancelled:
		if ev.Data.CustomerEmail == "" {
			return fmt.Errorf("%w: customer_email is required", ErrValidation)
		}
	default:
		slog.Debug("ignoring billing event", "type", ev.Type)
		return nil
	}

	if ev.Type == EventSubscriptionCancelled {
		_, err := s.ChangePlanByEmail(ctx, ev.Data.CustomerEmail, models.PlanFree, "")
		return err
	}
	_, err := s.ChangePlanByEmail(ctx, ev.Data.CustomerEmail, planForProduct(ev.Data.ProductID), ev.Data.CustomerID)
	return err
}

func planForProduct(productID string) string {
	if strings.Contains(productID, models.PlanStarter) {
		return models.PlanStarter
	}
	return models.PlanPro
}

func (s *BillingService) loadByID(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	return user, nil
}

func subscriptionOf(u *models.User) *Subscription {
	sub := &Subscription{Plan: u.Subscription, Limits: u.Limits()}
	if u.BillingCustomerID != nil {
		sub.CustomerID = *u.BillingCustomerID
	}
	return sub
}
