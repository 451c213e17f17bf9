package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/clock"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/store"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	fake      *fakePlatform
	tickets   *store.TicketStore
	lifecycle *TicketLifecycle
	arbiter   *ClaimArbiter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	fake := newFakePlatform()
	tickets := store.NewTicketStore()
	clk := clock.NewFixed(testNow)
	guard := store.NewMemoryCooldown(clk, 60*time.Second)
	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()
	logger := zap.NewNop()

	lifecycle := NewTicketLifecycle(LifecycleDependencies{
		Store:         tickets,
		Guard:         guard,
		Conversations: fake,
		Messages:      fake,
		Users:         fake,
		Dispatcher:    dispatcher,
		Metrics:       metrics,
		Logger:        logger,
		Clock:         clk,
		ParentID:      "parent-1",
		LogChannelID:  "log-chan",
		ManagerRoleID: "mgr-role",
		HistoryLimit:  100,
		DeleteGrace:   0,
	})
	arbiter := NewClaimArbiter(ArbiterDependencies{
		Store:         tickets,
		Roles:         fake,
		Messages:      fake,
		Conversations: fake,
		Dispatcher:    dispatcher,
		Metrics:       metrics,
		Logger:        logger,
	})
	return &testEnv{fake: fake, tickets: tickets, lifecycle: lifecycle, arbiter: arbiter}
}

func supportRequest(submitterID, submitterName string) domain.TicketRequest {
	return domain.TicketRequest{
		SubmitterID:   submitterID,
		SubmitterName: submitterName,
		Category:      "support",
		Responses: []domain.FieldValue{
			{Name: "In-game username", Value: "JohnDoe1234"},
			{Name: "Request type", Value: "Bug"},
			{Name: "Concerned instance", Value: "Spawn"},
			{Name: "Request description", Value: strings.Repeat("my item vanished after the last restart ", 2)},
			{Name: "Additional information", Value: ""},
		},
	}
}

func TestTicketLifecycle_Submit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("creates a pending ticket with durable summary", func(t *testing.T) {
		env := newTestEnv(t)
		ticket, err := env.lifecycle.Submit(ctx, supportRequest("u1", "john"))
		if err != nil {
			t.Fatalf("expected submit to succeed, got %v", err)
		}
		if ticket.Status != domain.TicketStatusPending {
			t.Fatalf("expected PENDING, got %s", ticket.Status)
		}

		info, err := env.fake.Info(ctx, ticket.ID)
		if err != nil {
			t.Fatalf("conversation missing: %v", err)
		}
		if !strings.HasPrefix(info.Name, platform.MarkerPending+"-") {
			t.Fatalf("expected pending marker in name, got %q", info.Name)
		}
		if info.ParentID != "parent-1" {
			t.Fatalf("conversation created under wrong parent %q", info.ParentID)
		}

		summary := env.fake.summaryOf(ticket.ID)
		if summary == nil {
			t.Fatalf("summary message not posted")
		}
		var userField, pendingField bool
		for _, field := range summary.Fields {
			switch field.Name {
			case platform.FieldUser:
				userField = field.Value == "<@u1>"
			case platform.FieldPending:
				pendingField = true
			}
		}
		if !userField || !pendingField {
			t.Fatalf("summary missing durable fields: %+v", summary.Fields)
		}
	})

	t.Run("second submission within the window is throttled", func(t *testing.T) {
		env := newTestEnv(t)
		if _, err := env.lifecycle.Submit(ctx, supportRequest("u1", "john")); err != nil {
			t.Fatalf("expected first submit to succeed, got %v", err)
		}
		_, err := env.lifecycle.Submit(ctx, supportRequest("u1", "john"))
		if !apperrors.IsCode(err, apperrors.CodeThrottled) {
			t.Fatalf("expected THROTTLED, got %v", err)
		}
		if env.tickets.Len() != 1 {
			t.Fatalf("throttled submit must not create a ticket, store has %d", env.tickets.Len())
		}
	})

	t.Run("unknown category", func(t *testing.T) {
		env := newTestEnv(t)
		req := supportRequest("u1", "john")
		req.Category = "billing"
		_, err := env.lifecycle.Submit(ctx, req)
		if !apperrors.IsCode(err, apperrors.CodeUnknownCategory) {
			t.Fatalf("expected UNKNOWN_CATEGORY, got %v", err)
		}
	})

	t.Run("invalid responses", func(t *testing.T) {
		env := newTestEnv(t)
		req := supportRequest("u1", "john")
		req.Responses[0].Value = ""
		_, err := env.lifecycle.Submit(ctx, req)
		if !apperrors.IsCode(err, apperrors.CodeValidationFailed) {
			t.Fatalf("expected VALIDATION_FAILED, got %v", err)
		}
	})
}

func TestClaimArbiter_Claim(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("manager claims a pending ticket", func(t *testing.T) {
		env := newTestEnv(t)
		env.fake.managers["mgr-a"] = true
		ticket, err := env.lifecycle.Submit(ctx, supportRequest("u1", "john"))
		if err != nil {
			t.Fatalf("submit failed: %v", err)
		}

		claimed, err := env.arbiter.Claim(ctx, ticket.ID, "mgr-a")
		if err != nil {
			t.Fatalf("expected claim to succeed, got %v", err)
		}
		if claimed.ClaimantID == nil || *claimed.ClaimantID != "mgr-a" {
			t.Fatalf("unexpected claimant: %+v", claimed)
		}

		// visible marker flipped to claimed
		if name := env.fake.renames[ticket.ID]; !strings.HasPrefix(name, platform.MarkerClaimed+"-") {
			t.Fatalf("expected claimed marker rename, got %q", name)
		}
		summary := env.fake.summaryOf(ticket.ID)
		var handledBy string
		for _, field := range summary.Fields {
			if field.Name == platform.FieldHandledBy {
				handledBy = field.Value
			}
			if field.Name == platform.FieldPending {
				t.Fatalf("Pending field should have been replaced")
			}
		}
		if handledBy != "<@mgr-a>" {
			t.Fatalf("expected Handled by <@mgr-a>, got %q", handledBy)
		}
	})

	t.Run("non-manager is rejected before any transition", func(t *testing.T) {
		env := newTestEnv(t)
		ticket, _ := env.lifecycle.Submit(ctx, supportRequest("u1", "john"))

		_, err := env.arbiter.Claim(ctx, ticket.ID, "intruder")
		if !apperrors.IsCode(err, apperrors.CodeUnauthorized) {
			t.Fatalf("expected UNAUTHORIZED, got %v", err)
		}
		got, _ := env.tickets.Get(ticket.ID)
		if got.Status != domain.TicketStatusPending {
			t.Fatalf("unauthorized claim must not change status, got %s", got.Status)
		}
	})

	t.Run("second manager gets AlreadyClaimed with the current handler", func(t *testing.T) {
		env := newTestEnv(t)
		env.fake.managers["mgr-a"] = true
		env.fake.managers["mgr-b"] = true
		ticket, _ := env.lifecycle.Submit(ctx, supportRequest("u1", "john"))

		if _, err := env.arbiter.Claim(ctx, ticket.ID, "mgr-a"); err != nil {
			t.Fatalf("first claim failed: %v", err)
		}
		_, err := env.arbiter.Claim(ctx, ticket.ID, "mgr-b")
		if !apperrors.IsCode(err, apperrors.CodeAlreadyClaimed) {
			t.Fatalf("expected ALREADY_CLAIMED, got %v", err)
		}
		if claimant := apperrors.ClaimantFromError(err); claimant != "mgr-a" {
			t.Fatalf("expected claimant mgr-a, got %q", claimant)
		}
	})

	t.Run("claim on unknown conversation", func(t *testing.T) {
		env := newTestEnv(t)
		env.fake.managers["mgr-a"] = true
		_, err := env.arbiter.Claim(ctx, "missing", "mgr-a")
		if !apperrors.IsCode(err, apperrors.CodeNotFound) {
			t.Fatalf("expected NOT_FOUND, got %v", err)
		}
	})

	t.Run("marker failure does not roll back the claim", func(t *testing.T) {
		env := newTestEnv(t)
		env.fake.managers["mgr-a"] = true
		env.fake.failEdit = true
		env.fake.failRename = true
		ticket, _ := env.lifecycle.Submit(ctx, supportRequest("u1", "john"))

		if _, err := env.arbiter.Claim(ctx, ticket.ID, "mgr-a"); err != nil {
			t.Fatalf("claim should survive marker failures, got %v", err)
		}
		got, _ := env.tickets.Get(ticket.ID)
		if got.Status != domain.TicketStatusClaimed {
			t.Fatalf("logical claim lost, status %s", got.Status)
		}
	})
}

func TestTicketLifecycle_Close(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("exports to both destinations and removes the ticket", func(t *testing.T) {
		env := newTestEnv(t)
		ticket, _ := env.lifecycle.Submit(ctx, supportRequest("u1", "john"))

		closed, err := env.lifecycle.Close(ctx, ticket.ID)
		if err != nil {
			t.Fatalf("expected close to succeed, got %v", err)
		}
		if closed.Status != domain.TicketStatusClosed {
			t.Fatalf("expected CLOSED, got %s", closed.Status)
		}

		if _, err := env.tickets.Get(ticket.ID); !apperrors.IsCode(err, apperrors.CodeNotFound) {
			t.Fatalf("expected NOT_FOUND after close, got %v", err)
		}
		if len(env.fake.logFiles) != 1 || env.fake.logFiles[0].target != "log-chan" {
			t.Fatalf("expected one log delivery, got %+v", env.fake.logFiles)
		}
		if len(env.fake.dmFiles) != 1 || env.fake.dmFiles[0].target != "u1" {
			t.Fatalf("expected one dm delivery, got %+v", env.fake.dmFiles)
		}
		if !strings.HasPrefix(env.fake.logFiles[0].filename, "ticket-john-") {
			t.Fatalf("unexpected transcript filename %q", env.fake.logFiles[0].filename)
		}
		if len(env.fake.deleted) != 1 || env.fake.deleted[0] != ticket.ID {
			t.Fatalf("expected conversation deletion, got %+v", env.fake.deleted)
		}
	})

	t.Run("second close reports NotFound without re-exporting", func(t *testing.T) {
		env := newTestEnv(t)
		ticket, _ := env.lifecycle.Submit(ctx, supportRequest("u1", "john"))

		if _, err := env.lifecycle.Close(ctx, ticket.ID); err != nil {
			t.Fatalf("first close failed: %v", err)
		}
		_, err := env.lifecycle.Close(ctx, ticket.ID)
		if !apperrors.IsCode(err, apperrors.CodeNotFound) {
			t.Fatalf("expected NOT_FOUND, got %v", err)
		}
		if len(env.fake.logFiles) != 1 {
			t.Fatalf("second close must not re-export, got %d deliveries", len(env.fake.logFiles))
		}
	})

	t.Run("one failed delivery does not block the other", func(t *testing.T) {
		env := newTestEnv(t)
		env.fake.failSendFile = true
		ticket, _ := env.lifecycle.Submit(ctx, supportRequest("u1", "john"))

		if _, err := env.lifecycle.Close(ctx, ticket.ID); err != nil {
			t.Fatalf("close must succeed despite delivery failure, got %v", err)
		}
		if len(env.fake.dmFiles) != 1 {
			t.Fatalf("dm delivery should still happen, got %+v", env.fake.dmFiles)
		}
	})

	t.Run("history failure keeps the ticket open", func(t *testing.T) {
		env := newTestEnv(t)
		ticket, _ := env.lifecycle.Submit(ctx, supportRequest("u1", "john"))
		env.fake.failHistory = true

		_, err := env.lifecycle.Close(ctx, ticket.ID)
		if !apperrors.IsCode(err, apperrors.CodeTransportFailure) {
			t.Fatalf("expected TRANSPORT_FAILURE, got %v", err)
		}
		if _, err := env.tickets.Get(ticket.ID); err != nil {
			t.Fatalf("ticket must remain open, got %v", err)
		}
	})
}

// End-to-end walk through the lifecycle state machine.
func TestTicketLifecycle_Scenario(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	env := newTestEnv(t)
	env.fake.managers["mgr-m"] = true
	env.fake.managers["mgr-n"] = true

	ticket, err := env.lifecycle.Submit(ctx, supportRequest("u1", "john"))
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if ticket.Status != domain.TicketStatusPending {
		t.Fatalf("expected PENDING, got %s", ticket.Status)
	}

	if _, err := env.arbiter.Claim(ctx, ticket.ID, "mgr-m"); err != nil {
		t.Fatalf("claim by M failed: %v", err)
	}

	_, err = env.arbiter.Claim(ctx, ticket.ID, "mgr-n")
	if !apperrors.IsCode(err, apperrors.CodeAlreadyClaimed) || apperrors.ClaimantFromError(err) != "mgr-m" {
		t.Fatalf("expected ALREADY_CLAIMED(mgr-m), got %v", err)
	}

	if _, err := env.lifecycle.Close(ctx, ticket.ID); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if env.tickets.Len() != 0 {
		t.Fatalf("store should be empty after close")
	}
	if len(env.fake.logFiles) != 1 || len(env.fake.dmFiles) != 1 {
		t.Fatalf("expected both transcript deliveries, got log=%d dm=%d", len(env.fake.logFiles), len(env.fake.dmFiles))
	}
}
