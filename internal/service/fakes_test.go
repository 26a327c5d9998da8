package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/maintenance-ticket-service/internal/domain"
	"github.com/spec-kit/maintenance-ticket-service/internal/events"
	"github.com/spec-kit/maintenance-ticket-service/internal/notify"
	"github.com/spec-kit/maintenance-ticket-service/internal/repository"
)

// memStore backs every fake repository; ApplyTransition emulates the
// conditional status update under a single mutex.
type memStore struct {
	mu       sync.Mutex
	now      func() time.Time
	nextID   int
	daySeq   map[string]int
	tickets  map[string]*domain.Ticket
	history  []domain.StatusHistoryEntry
	comments []domain.Comment
	areas    map[string]domain.Area
	people   map[string]domain.Person
	grants   []domain.ApprovalGrant
	images   map[string][]domain.TicketImage

	// loadBarrier, when set, holds each GetByID until all expected loads arrived.
	loadBarrier *sync.WaitGroup
}

func newMemStore(now func() time.Time) *memStore {
	return &memStore{
		now:     now,
		daySeq:  make(map[string]int),
		tickets: make(map[string]*domain.Ticket),
		areas:   make(map[string]domain.Area),
		people:  make(map[string]domain.Person),
		images:  make(map[string][]domain.TicketImage),
	}
}

func (s *memStore) id(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s-%d", prefix, s.nextID)
}

func (s *memStore) addPerson(p domain.Person) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.people[p.ID] = p
}

func (s *memStore) grant(personID, areaID string, level domain.ApprovalLevel, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants = append(s.grants, domain.ApprovalGrant{
		ID:       s.id("G"),
		PersonID: personID,
		AreaID:   areaID,
		Level:    level,
		IsActive: active,
	})
}

// putTicket stores t as-is, for tests that start from a given state.
func (s *memStore) putTicket(t domain.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets[t.ID] = t.Clone()
}

func (s *memStore) ticket(id string) domain.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.tickets[id].Clone()
}

func (s *memStore) historyFor(ticketID string) []domain.StatusHistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.StatusHistoryEntry
	for _, e := range s.history {
		if e.TicketID == ticketID {
			out = append(out, e)
		}
	}
	return out
}

type fakeTickets struct{ *memStore }

func (f fakeTickets) Create(_ context.Context, ticket *domain.Ticket, entry *domain.StatusHistoryEntry, comment *domain.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now()
	day := now.UTC().Format("20060102")
	f.daySeq[day]++
	ticket.ID = uuid.NewString()
	ticket.TicketNumber = domain.FormatTicketNumber(now.UTC(), f.daySeq[day])
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	f.tickets[ticket.ID] = ticket.Clone()

	entry.TicketID = ticket.ID
	f.appendHistory(entry)
	if comment != nil {
		comment.TicketID = ticket.ID
		f.appendComment(comment)
	}
	return nil
}

func (f fakeTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	f.mu.Lock()
	barrier := f.loadBarrier
	t, ok := f.tickets[id]
	var out *domain.Ticket
	if ok {
		out = t.Clone()
	}
	f.mu.Unlock()

	if barrier != nil {
		barrier.Done()
		barrier.Wait()
	}
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return out, nil
}

func (f fakeTickets) ApplyTransition(_ context.Context, ticket *domain.Ticket, expected domain.TicketStatus, entry *domain.StatusHistoryEntry, comment *domain.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.tickets[ticket.ID]
	if !ok || stored.Status != expected {
		return repository.ErrStatusConflict
	}
	ticket.UpdatedAt = f.now()
	f.tickets[ticket.ID] = ticket.Clone()
	f.appendHistory(entry)
	if comment != nil {
		f.appendComment(comment)
	}
	return nil
}

func (s *memStore) appendHistory(entry *domain.StatusHistoryEntry) {
	entry.ID = s.id("H")
	entry.ChangedAt = s.now()
	s.history = append(s.history, *entry)
}

func (s *memStore) appendComment(comment *domain.Comment) {
	comment.ID = s.id("C")
	comment.CreatedAt = s.now()
	s.comments = append(s.comments, *comment)
}

type fakeHistory struct{ *memStore }

func (f fakeHistory) ListByTicket(_ context.Context, ticketID string) ([]domain.StatusHistoryEntry, error) {
	return f.historyFor(ticketID), nil
}

type fakeComments struct{ *memStore }

func (f fakeComments) Create(_ context.Context, comment *domain.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appendComment(comment)
	return nil
}

func (f fakeComments) ListByTicket(_ context.Context, ticketID string) ([]domain.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Comment
	for _, c := range f.comments {
		if c.TicketID == ticketID {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeAreas struct{ *memStore }

func (f fakeAreas) GetByID(_ context.Context, id string) (*domain.Area, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.areas[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &a, nil
}

type fakePeople struct{ *memStore }

func (f fakePeople) GetByID(_ context.Context, id string) (*domain.Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.people[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &p, nil
}

func (f fakePeople) GetByIDs(_ context.Context, ids []string) ([]domain.Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Person
	for _, id := range ids {
		if p, ok := f.people[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeGrants struct{ *memStore }

func (f fakeGrants) ListByPersonArea(_ context.Context, personID, areaID string) ([]domain.ApprovalGrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ApprovalGrant
	for _, g := range f.grants {
		if g.PersonID == personID && g.AreaID == areaID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f fakeGrants) ListByArea(_ context.Context, areaID string) ([]domain.ApprovalGrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ApprovalGrant
	for _, g := range f.grants {
		if g.AreaID == areaID {
			out = append(out, g)
		}
	}
	return out, nil
}

type fakeImages struct{ *memStore }

func (f fakeImages) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketImage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	images := append([]domain.TicketImage{}, f.images[ticketID]...)
	sort.SliceStable(images, func(i, j int) bool { return images[i].UploadedAt.Before(images[j].UploadedAt) })
	return images, nil
}

// recordingPublisher keeps published events. With hang set, Publish waits for ctx.
type recordingPublisher struct {
	mu     sync.Mutex
	err    error
	hang   bool
	events []events.TransitionEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.TransitionEvent) error {
	p.mu.Lock()
	hang := p.hang
	p.mu.Unlock()
	if hang {
		<-ctx.Done()
		return ctx.Err()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) published() []events.TransitionEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.TransitionEvent{}, p.events...)
}

type sentEmail struct {
	to      string
	subject string
	body    string
}

// fakeEmail fails the first failures[to] sends to an address; -1 fails forever.
type fakeEmail struct {
	mu       sync.Mutex
	failures map[string]int
	attempts map[string]int
	sent     []sentEmail
}

func newFakeEmail() *fakeEmail {
	return &fakeEmail{failures: make(map[string]int), attempts: make(map[string]int)}
}

func (f *fakeEmail) Send(_ context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts[to]++
	if remaining := f.failures[to]; remaining != 0 {
		if remaining > 0 {
			f.failures[to]--
		}
		return fmt.Errorf("smtp unavailable")
	}
	f.sent = append(f.sent, sentEmail{to: to, subject: subject, body: body})
	return nil
}

func (f *fakeEmail) attemptsTo(to string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[to]
}

func (f *fakeEmail) delivered() []sentEmail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentEmail{}, f.sent...)
}

type fakeChat struct {
	mu       sync.Mutex
	err      error
	attempts map[string]int
	sent     []string
}

func newFakeChat() *fakeChat {
	return &fakeChat{attempts: make(map[string]int)}
}

func (f *fakeChat) Push(_ context.Context, chatUserID string, _ notify.ChatMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts[chatUserID]++
	if !notify.ValidChatUserID(chatUserID) {
		return fmt.Errorf("%w: %q", notify.ErrInvalidRecipient, chatUserID)
	}
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, chatUserID)
	return nil
}

func (f *fakeChat) attemptsTo(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[id]
}
