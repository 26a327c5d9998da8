package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/maintenance-ticket-service/internal/config"
	"github.com/spec-kit/maintenance-ticket-service/internal/domain"
	"github.com/spec-kit/maintenance-ticket-service/internal/events"
	"github.com/spec-kit/maintenance-ticket-service/internal/notify"
	"github.com/spec-kit/maintenance-ticket-service/internal/observability"
	"github.com/spec-kit/maintenance-ticket-service/internal/repository"
)

type recipientRole int

const (
	roleReporter recipientRole = iota
	roleAssignee
	roleEscalatedTo
	roleAreaEngineers
	roleAreaManagers
)

// recipientRules lists, per message kind, who hears about it. Order is notification order.
var recipientRules = map[notify.Kind][]recipientRole{
	notify.KindCreated:         {roleReporter, roleAreaEngineers, roleAssignee},
	notify.KindAccepted:        {roleReporter},
	notify.KindRejectToManager: {roleReporter, roleAreaManagers},
	notify.KindRejectFinal:     {roleReporter, roleAssignee},
	notify.KindCompleted:       {roleReporter},
	notify.KindEscalated:       {roleEscalatedTo, roleReporter},
	notify.KindClosed:          {roleAssignee},
	notify.KindReopened:        {roleAssignee},
	notify.KindReassigned:      {roleAssignee},
}

// NotificationOptions tunes delivery.
type NotificationOptions struct {
	DeliveryTimeout time.Duration
	MaxAttempts     int
	Concurrency     int
	RetryDelay      time.Duration
	PublicBaseURL   string
}

// NotificationOptionsFromConfig converts loaded configuration.
func NotificationOptionsFromConfig(cfg config.NotificationConfig) NotificationOptions {
	return NotificationOptions{
		DeliveryTimeout: cfg.DeliveryTimeout(),
		MaxAttempts:     cfg.MaxAttempts,
		Concurrency:     cfg.Concurrency,
		RetryDelay:      500 * time.Millisecond,
		PublicBaseURL:   cfg.PublicBaseURL,
	}
}

// NotificationDependencies bundles collaborators for the notification service.
// A nil channel is treated as not configured.
type NotificationDependencies struct {
	PersonRepo repository.PersonRepository
	ImageRepo  repository.ImageRepository
	Approvals  ApprovalResolver
	Email      notify.EmailSender
	Chat       notify.ChatPusher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Options    NotificationOptions
}

// NotificationService turns transition events into email and chat deliveries.
type NotificationService struct {
	people    repository.PersonRepository
	images    repository.ImageRepository
	approvals ApprovalResolver
	email     notify.EmailSender
	chat      notify.ChatPusher
	metrics   *observability.Metrics
	logger    *zap.Logger
	opts      NotificationOptions
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	opts := deps.Options
	if opts.DeliveryTimeout <= 0 {
		opts.DeliveryTimeout = 10 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		people:    deps.PersonRepo,
		images:    deps.ImageRepo,
		approvals: deps.Approvals,
		email:     deps.Email,
		chat:      deps.Chat,
		metrics:   deps.Metrics,
		logger:    logger,
		opts:      opts,
	}
}

// RegisterHandlers subscribes to transition events.
func (n *NotificationService) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.Subscribe(n.HandleTransition)
}

// HandleTransition notifies every recipient of event on every configured channel.
// Delivery failures are logged and counted, never returned.
func (n *NotificationService) HandleTransition(ctx context.Context, event events.TransitionEvent) error {
	kind, ok := notify.KindFor(event.Kind, event.NewStatus)
	if !ok {
		return nil
	}
	ticket := event.Ticket

	recipients, err := n.Recipients(ctx, kind, ticket)
	if err != nil {
		return fmt.Errorf("resolve recipients: %w", err)
	}
	if len(recipients) == 0 {
		n.logger.Debug("no recipients", zap.String("ticket_id", ticket.ID), zap.String("kind", string(kind)))
		return nil
	}

	lookup := recipients
	if event.Actor != "" {
		lookup = append(append([]string{}, recipients...), event.Actor)
	}
	people, err := n.people.GetByIDs(ctx, lookup)
	if err != nil {
		return fmt.Errorf("load recipients: %w", err)
	}
	byID := make(map[string]domain.Person, len(people))
	for _, p := range people {
		byID[p.ID] = p
	}

	base := notify.Message{
		Kind:         kind,
		Ticket:       ticket,
		ActorName:    byID[event.Actor].Name,
		Notes:        event.Notes,
		HeroImageURL: n.heroImageURL(ctx, kind, ticket.ID),
	}
	if n.opts.PublicBaseURL != "" && ticket.ID != "" {
		base.TicketURL = n.opts.PublicBaseURL + "/tickets/" + ticket.ID
	}

	var g errgroup.Group
	g.SetLimit(n.opts.Concurrency)
	for _, id := range recipients {
		person, found := byID[id]
		if !found || !person.IsActive {
			n.logger.Debug("skipping recipient", zap.String("ticket_id", ticket.ID), zap.String("person_id", id))
			continue
		}
		msg := base
		msg.RecipientName = person.Name

		if n.email != nil {
			n.scheduleEmail(ctx, &g, person, msg)
		}
		if n.chat != nil {
			n.scheduleChat(ctx, &g, person, msg)
		}
	}
	// goroutines never return errors; failures are accounted inside deliver
	_ = g.Wait()
	return nil
}

// Recipients computes the ordered, deduplicated person ids to notify for kind.
func (n *NotificationService) Recipients(ctx context.Context, kind notify.Kind, ticket domain.Ticket) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	add := func(id string) {
		if id == "" {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	for _, role := range recipientRules[kind] {
		switch role {
		case roleReporter:
			add(ticket.ReportedBy)
		case roleAssignee:
			if ticket.AssignedTo != nil {
				add(*ticket.AssignedTo)
			}
		case roleEscalatedTo:
			if ticket.EscalatedTo != nil {
				add(*ticket.EscalatedTo)
			}
		case roleAreaEngineers, roleAreaManagers:
			minLevel := domain.ApprovalEngineer
			if role == roleAreaManagers {
				minLevel = domain.ApprovalManager
			}
			ids, err := n.approvals.ListAreaApprovers(ctx, ticket.AreaID, minLevel)
			if err != nil {
				return nil, err
			}
			for _, id := range ids {
				add(id)
			}
		}
	}
	return out, nil
}

func (n *NotificationService) heroImageURL(ctx context.Context, kind notify.Kind, ticketID string) string {
	tag := notify.StyleFor(kind).HeroTag
	if tag == "" || n.images == nil {
		return ""
	}
	images, err := n.images.ListByTicket(ctx, ticketID)
	if err != nil {
		n.logger.Warn("load hero image", zap.String("ticket_id", ticketID), zap.Error(err))
		return ""
	}
	if hero := notify.SelectHeroImage(images, tag); hero != nil {
		return hero.URL
	}
	return ""
}

func (n *NotificationService) scheduleEmail(ctx context.Context, g *errgroup.Group, person domain.Person, msg notify.Message) {
	if person.Email == "" {
		n.metrics.RecordDelivery(notify.ChannelEmail, observability.DeliverySkipped)
		return
	}
	subject, body, err := notify.RenderEmail(msg)
	if err != nil {
		n.metrics.RecordDelivery(notify.ChannelEmail, observability.DeliveryFailed)
		n.logger.Error("render email", zap.String("ticket_id", msg.Ticket.ID), zap.Error(err))
		return
	}
	g.Go(func() error {
		n.deliver(ctx, notify.ChannelEmail, msg.Ticket.ID, person.ID, func(ctx context.Context) error {
			return n.email.Send(ctx, person.Email, subject, body)
		})
		return nil
	})
}

func (n *NotificationService) scheduleChat(ctx context.Context, g *errgroup.Group, person domain.Person, msg notify.Message) {
	if person.ChatUserID == "" {
		n.metrics.RecordDelivery(notify.ChannelChat, observability.DeliverySkipped)
		return
	}
	payload := notify.RenderChat(msg)
	g.Go(func() error {
		n.deliver(ctx, notify.ChannelChat, msg.Ticket.ID, person.ID, func(ctx context.Context) error {
			return n.chat.Push(ctx, person.ChatUserID, payload)
		})
		return nil
	})
}

// deliver makes up to MaxAttempts attempts, each bounded by DeliveryTimeout.
func (n *NotificationService) deliver(ctx context.Context, channel, ticketID, personID string, send func(context.Context) error) {
	fields := []zap.Field{
		zap.String("channel", channel),
		zap.String("ticket_id", ticketID),
		zap.String("person_id", personID),
	}
	for attempt := 1; ; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, n.opts.DeliveryTimeout)
		err := send(attemptCtx)
		cancel()
		if err == nil {
			n.metrics.RecordDelivery(channel, observability.DeliverySent)
			return
		}
		if errors.Is(err, notify.ErrInvalidRecipient) {
			n.metrics.RecordDelivery(channel, observability.DeliveryRejected)
			n.logger.Warn("notification recipient rejected", append(fields, zap.Error(err))...)
			return
		}
		if attempt >= n.opts.MaxAttempts || ctx.Err() != nil {
			n.metrics.RecordDelivery(channel, observability.DeliveryFailed)
			n.logger.Error("notification delivery failed", append(fields, zap.Int("attempts", attempt), zap.Error(err))...)
			return
		}
		n.metrics.RecordDelivery(channel, observability.DeliveryRetried)
		n.logger.Warn("notification delivery retry", append(fields, zap.Int("attempt", attempt), zap.Error(err))...)
		select {
		case <-ctx.Done():
			n.metrics.RecordDelivery(channel, observability.DeliveryFailed)
			return
		case <-time.After(n.opts.RetryDelay):
		}
	}
}
