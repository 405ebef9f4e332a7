package services

import (
	"context"
	"errors"
	"testing"

	"github.com/launchpal/launchpal/internal/db/models"
)

const testCheckoutURL = "https://checkout.stripe.com/mock?plan={plan}&interval={interval}"

func newBilling(t *testing.T, plan string) (*BillingService, *fakeUsers) {
	t.Helper()
	users := newFakeUsers(newTestUser(plan))
	return NewBillingService(users, testCheckoutURL, "whsec_test"), users
}

func TestCheckout(t *testing.T) {
	b, _ := newBilling(t, models.PlanFree)
	tests := []struct {
		plan, interval string
		want           string
		wantErr        bool
	}{
		{"pro", "month", "https://checkout.stripe.com/mock?plan=pro&interval=month", false},
		{"starter", "year", "https://checkout.stripe.com/mock?plan=starter&interval=year", false},
		{"pro", "", "https://checkout.stripe.com/mock?plan=pro&interval=month", false},
		{"free", "month", "", true},
		{"pro", "weekly", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.plan+"/"+tt.interval, func(t *testing.T) {
			got, err := b.Checkout(tt.plan, tt.interval)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Checkout() err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Checkout() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChangePlanAndCancel(t *testing.T) {
	b, users := newBilling(t, models.PlanFree)
	ctx := context.Background()

	sub, err := b.ChangePlan(ctx, testUserID, models.PlanStarter)
	if err != nil {
		t.Fatalf("ChangePlan() error = %v", err)
	}
	if sub.Plan != models.PlanStarter || sub.Limits != models.Plans[models.PlanStarter] {
		t.Errorf("ChangePlan() = %+v", sub)
	}
	if u := users.get(testUserID); u.MonthlyRequests != 1000 || u.PlatformLimit != 3 || u.ProductLimit != 10 {
		t.Errorf("stored user limits = %+v", u.Limits())
	}

	if _, err := b.ChangePlan(ctx, testUserID, "enterprise"); !errors.Is(err, ErrValidation) || !errors.Is(err, ErrUnknownPlan) {
		t.Errorf("unknown plan err = %v", err)
	}

	sub, err = b.Cancel(ctx, testUserID)
	if err != nil || sub.Plan != models.PlanFree || sub.Limits.MonthlyRequests != 100 {
		t.Errorf("Cancel() = %+v, %v", sub, err)
	}

	if _, err := b.Get(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(ghost) err = %v, want ErrNotFound", err)
	}
}

func TestHandleWebhook(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		body     string
		wantPlan string
	}{
		{"created starter", `{"type":"subscription.created","data":{"customer_email":"alice@example.com","customer_id":"cus_1","product_id":"prod_starter_monthly"}}`, models.PlanStarter},
		{"updated other product is pro", `{"type":"subscription.updated","data":{"customer_email":"ALICE@example.com","product_id":"prod_xyz"}}`, models.PlanPro},
		{"cancelled", `{"type":"subscription.cancelled","data":{"customer_email":"alice@example.com"}}`, models.PlanFree},
		{"unknown event ignored", `{"type":"invoice.paid","data":{"customer_email":"alice@example.com"}}`, models.PlanStarter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, users := newBilling(t, models.PlanStarter)
			body := []byte(tt.body)
			if err := b.HandleWebhook(ctx, body, b.Sign(body)); err != nil {
				t.Fatalf("HandleWebhook() error = %v", err)
			}
			if got := users.get(testUserID).Subscription; got != tt.wantPlan {
				t.Errorf("plan = %q, want %q", got, tt.wantPlan)
			}
		})
	}

	t.Run("customer id stored", func(t *testing.T) {
		b, users := newBilling(t, models.PlanFree)
		body := []byte(tests[0].body)
		if err := b.HandleWebhook(ctx, body, "sha256="+b.Sign(body)); err != nil {
			t.Fatal(err)
		}
		if id := users.get(testUserID).BillingCustomerID; id == nil || *id != "cus_1" {
			t.Errorf("BillingCustomerID = %v", id)
		}
	})

	t.Run("bad signature", func(t *testing.T) {
		b, users := newBilling(t, models.PlanFree)
		body := []byte(tests[0].body)
		if err := b.HandleWebhook(ctx, body, "deadbeef"); !errors.Is(err, ErrInvalidSignature) {
			t.Errorf("err = %v, want ErrInvalidSignature", err)
		}
		if users.get(testUserID).Subscription != models.PlanFree {
			t.Error("plan must not change on a rejected webhook")
		}
	})

	t.Run("no secret configured", func(t *testing.T) {
		b := NewBillingService(newFakeUsers(), testCheckoutURL, "")
		if err := b.HandleWebhook(ctx, []byte(`{}`), ""); !errors.Is(err, ErrInvalidSignature) {
			t.Errorf("err = %v, want ErrInvalidSignature", err)
		}
	})

	t.Run("unknown customer", func(t *testing.T) {
		b, _ := newBilling(t, models.PlanFree)
		body := []byte(`{"type":"subscription.created","data":{"customer_email":"bob@example.com","product_id":"pro"}}`)
		if err := b.HandleWebhook(ctx, body, b.Sign(body)); !errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}
