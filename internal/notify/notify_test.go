package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spec-kit/maintenance-ticket-service/internal/domain"
)

const validChatID = "U0123456789abcdef0123456789abcdef"

func TestValidChatUserID(t *testing.T) {
	cases := map[string]bool{
		validChatID:                          true,
		"U0123456789ABCDEF0123456789abcdef":  true,
		"U0123456789abcdeg0123456789abcdef":  false,
		"u0123456789abcdef0123456789abcdef":  false,
		"U0123456789abcdef0123456789abcde":   false,
		"U0123456789abcdef0123456789abcdef0": false,
		"":                                   false,
		"C0123456789abcdef0123456789abcdef":  false,
	}
	for id, want := range cases {
		if got := ValidChatUserID(id); got != want {
			t.Errorf("ValidChatUserID(%q) = %v, want %v", id, got, want)
		}
	}
}

func TestKindFor(t *testing.T) {
	cases := []struct {
		transition domain.TransitionKind
		status     domain.TicketStatus
		want       Kind
	}{
		{domain.TransitionCreate, domain.TicketStatusOpen, KindCreated},
		{domain.TransitionReject, domain.TicketStatusRejectedPendingL3, KindRejectToManager},
		{domain.TransitionReject, domain.TicketStatusRejectedFinal, KindRejectFinal},
		{domain.TransitionAssign, domain.TicketStatusAssigned, KindReassigned},
		{domain.TransitionReassign, domain.TicketStatusOpen, KindReassigned},
		{domain.TransitionReopen, domain.TicketStatusReopenedInProgress, KindReopened},
	}
	for _, tc := range cases {
		got, ok := KindFor(tc.transition, tc.status)
		if !ok || got != tc.want {
			t.Errorf("KindFor(%s, %s) = %q, %v", tc.transition, tc.status, got, ok)
		}
	}
	if _, ok := KindFor("bogus", domain.TicketStatusOpen); ok {
		t.Error("unknown transition must not map")
	}
}

func TestSelectHeroImage(t *testing.T) {
	now := time.Now()
	images := []domain.TicketImage{
		{ID: "a1", Tag: domain.ImageTagAfter, URL: "https://img/a1", UploadedAt: now},
		{ID: "b1", Tag: domain.ImageTagBefore, URL: "https://img/b1", UploadedAt: now.Add(time.Second)},
		{ID: "b2", Tag: domain.ImageTagBefore, URL: "https://img/b2", UploadedAt: now.Add(2 * time.Second)},
	}
	if got := SelectHeroImage(images, StyleFor(KindCreated).HeroTag); got == nil || got.ID != "b1" {
		t.Errorf("created hero = %+v", got)
	}
	if got := SelectHeroImage(images, StyleFor(KindCompleted).HeroTag); got == nil || got.ID != "a1" {
		t.Errorf("completed hero = %+v", got)
	}
	if got := SelectHeroImage(images, StyleFor(KindClosed).HeroTag); got != nil {
		t.Errorf("closed should have no hero, got %+v", got)
	}
}

func sampleMessage(kind Kind) Message {
	reason := "wrong machine <b>"
	return Message{
		Kind: kind,
		Ticket: domain.Ticket{
			ID:              "t-1",
			TicketNumber:    "TKT-20260101-001",
			Title:           "Oil leak on press 4",
			Status:          domain.TicketStatusRejectedFinal,
			SeverityLevel:   domain.SeverityHigh,
			Priority:        domain.TicketPriorityUrgent,
			AreaID:          "area-a",
			RejectionReason: &reason,
		},
		ActorName:    "Mina",
		HeroImageURL: "https://img.example.com/before.jpg",
		TicketURL:    "https://plant.example.com/tickets/t-1",
	}
}

func TestRenderEmail(t *testing.T) {
	subject, body, err := RenderEmail(sampleMessage(KindRejectFinal))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if subject != "[TKT-20260101-001] Ticket rejected" {
		t.Errorf("subject = %q", subject)
	}
	for _, want := range []string{"Oil leak on press 4", "https://img.example.com/before.jpg", "https://plant.example.com/tickets/t-1", "wrong machine &lt;b&gt;"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
}

func TestRenderChat(t *testing.T) {
	msg := RenderChat(sampleMessage(KindEscalated))
	if msg.Type != "flex" || msg.Contents.Type != "bubble" {
		t.Fatalf("unexpected message shape: %+v", msg)
	}
	if msg.Contents.Hero == nil || msg.Contents.Hero.URL != "https://img.example.com/before.jpg" {
		t.Errorf("hero = %+v", msg.Contents.Hero)
	}
	if msg.Contents.Header.BackgroundColor != StyleFor(KindEscalated).Color {
		t.Errorf("header color = %q", msg.Contents.Header.BackgroundColor)
	}
	if msg.Contents.Footer == nil {
		t.Fatal("expected link footer")
	}

	noLink := sampleMessage(KindClosed)
	noLink.HeroImageURL = ""
	noLink.TicketURL = ""
	plain := RenderChat(noLink)
	if plain.Contents.Hero != nil || plain.Contents.Footer != nil {
		t.Errorf("expected no hero/footer: %+v", plain.Contents)
	}
}

func TestChatClientPush(t *testing.T) {
	var got pushRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != pushPath {
			t.Errorf("path = %q", r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewChatClient(srv.URL, "token-1", 5*time.Second)
	if err := client.Push(context.Background(), validChatID, RenderChat(sampleMessage(KindAccepted))); err != nil {
		t.Fatalf("push: %v", err)
	}
	if auth != "Bearer token-1" {
		t.Errorf("authorization = %q", auth)
	}
	if got.To != validChatID || len(got.Messages) != 1 {
		t.Errorf("request = %+v", got)
	}
}

func TestChatClientRejectsMalformedIDWithoutCalling(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	client := NewChatClient(srv.URL, "token-1", time.Second)
	err := client.Push(context.Background(), "not-a-chat-id", ChatMessage{})
	if !errors.Is(err, ErrInvalidRecipient) {
		t.Fatalf("err = %v, want ErrInvalidRecipient", err)
	}
	if calls.Load() != 0 {
		t.Errorf("server called %d times", calls.Load())
	}
}

func TestChatClientSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"message":"rate limited"}`))
	}))
	defer srv.Close()

	client := NewChatClient(srv.URL, "token-1", time.Second)
	err := client.Push(context.Background(), validChatID, ChatMessage{})
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("err = %v", err)
	}
}

func TestNewChatClientDisabledWithoutToken(t *testing.T) {
	if NewChatClient("https://api.example.com", " ", time.Second) != nil {
		t.Fatal("expected nil client without token")
	}
}

func TestSMTPSenderRejectsBadAddress(t *testing.T) {
	sender := &SMTPSender{from: "noreply@example.com"}
	err := sender.Send(context.Background(), "not an address", "s", "<p>b</p>")
	if !errors.Is(err, ErrInvalidRecipient) {
		t.Fatalf("err = %v", err)
	}
}
