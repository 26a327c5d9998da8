package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
	"strings"

	"github.com/spec-kit/maintenance-ticket-service/internal/domain"
)

// Message is everything a channel needs to render one notification.
type Message struct {
	Kind          Kind
	Ticket        domain.Ticket
	ActorName     string
	RecipientName string
	Notes         string
	HeroImageURL  string
	TicketURL     string
}

var emailTemplate = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
<body style="margin:0;padding:24px;background:#f4f6f8;font-family:Arial,Helvetica,sans-serif;">
<div style="max-width:600px;margin:0 auto;background:#ffffff;border-radius:8px;overflow:hidden;">
  <div style="background:{{.Style.Color}};color:#ffffff;padding:16px 24px;font-size:18px;font-weight:bold;">
    {{.Style.Icon}} {{.Style.Subject}}
  </div>
  {{if .Message.HeroImageURL}}<img src="{{.Message.HeroImageURL}}" alt="evidence" style="display:block;width:100%;max-height:320px;object-fit:cover;">{{end}}
  <div style="padding:24px;color:#333333;font-size:14px;line-height:1.6;">
    {{if .Message.RecipientName}}<p>Dear {{.Message.RecipientName}},</p>{{end}}
    <p><strong>{{.Message.Ticket.TicketNumber}}</strong> {{.Message.Ticket.Title}}</p>
    <table style="width:100%;border-collapse:collapse;">
      {{range .Rows}}<tr>
        <td style="padding:6px 8px;border-bottom:1px solid #e0e0e0;color:#757575;width:40%;">{{.Label}}</td>
        <td style="padding:6px 8px;border-bottom:1px solid #e0e0e0;">{{.Value}}</td>
      </tr>{{end}}
    </table>
    {{if .Message.Notes}}<p style="margin-top:16px;white-space:pre-line;">{{.Message.Notes}}</p>{{end}}
    {{if .Message.TicketURL}}<p style="margin-top:24px;text-align:center;">
      <a href="{{.Message.TicketURL}}" style="background:{{.Style.Color}};color:#ffffff;padding:10px 20px;border-radius:4px;text-decoration:none;">Open ticket</a>
    </p>{{end}}
  </div>
</div>
</body>
</html>
`))

type row struct {
	Label string
	Value string
}

// RenderEmail produces the subject and HTML body for msg.
func RenderEmail(msg Message) (string, string, error) {
	style := StyleFor(msg.Kind)
	subject := fmt.Sprintf("[%s] %s", msg.Ticket.TicketNumber, style.Subject)

	var buf bytes.Buffer
	err := emailTemplate.Execute(&buf, struct {
		Style   Style
		Message Message
		Rows    []row
	}{Style: style, Message: msg, Rows: detailRows(msg)})
	if err != nil {
		return "", "", fmt.Errorf("render email: %w", err)
	}
	return subject, buf.String(), nil
}

func detailRows(msg Message) []row {
	t := msg.Ticket
	rows := []row{
		{Label: "Status", Value: string(t.Status)},
		{Label: "Severity", Value: string(t.SeverityLevel)},
		{Label: "Priority", Value: string(t.Priority)},
		{Label: "Area", Value: t.AreaID},
	}
	if msg.ActorName != "" {
		rows = append(rows, row{Label: "Updated by", Value: msg.ActorName})
	}
	if t.ScheduledComplete != nil && msg.Kind == KindAccepted {
		rows = append(rows, row{Label: "Scheduled completion", Value: t.ScheduledComplete.Format("2006-01-02 15:04")})
	}
	if t.RejectionReason != nil && (msg.Kind == KindRejectFinal || msg.Kind == KindRejectToManager) {
		rows = append(rows, row{Label: "Rejection reason", Value: *t.RejectionReason})
	}
	if t.EscalationReason != nil && msg.Kind == KindEscalated {
		rows = append(rows, row{Label: "Escalation reason", Value: *t.EscalationReason})
	}
	if msg.Kind == KindCompleted {
		if t.CostAvoidance != nil {
			rows = append(rows, row{Label: "Cost avoidance", Value: strconv.FormatFloat(*t.CostAvoidance, 'f', 2, 64)})
		}
		if t.DowntimeAvoidanceHours != nil {
			rows = append(rows, row{Label: "Downtime avoided (h)", Value: strconv.FormatFloat(*t.DowntimeAvoidanceHours, 'f', -1, 64)})
		}
	}
	if t.SatisfactionRating != nil && msg.Kind == KindClosed {
		rows = append(rows, row{Label: "Satisfaction", Value: strings.Repeat("★", *t.SatisfactionRating)})
	}
	return rows
}

// ChatMessage is a flex message accepted by the chat push API.
type ChatMessage struct {
	Type     string     `json:"type"`
	AltText  string     `json:"altText"`
	Contents FlexBubble `json:"contents"`
}

// FlexBubble is a single card.
type FlexBubble struct {
	Type   string     `json:"type"`
	Header *FlexBox   `json:"header,omitempty"`
	Hero   *FlexImage `json:"hero,omitempty"`
	Body   *FlexBox   `json:"body,omitempty"`
	Footer *FlexBox   `json:"footer,omitempty"`
}

// FlexImage is the hero block of a bubble.
type FlexImage struct {
	Type        string `json:"type"`
	URL         string `json:"url"`
	Size        string `json:"size"`
	AspectRatio string `json:"aspectRatio"`
	AspectMode  string `json:"aspectMode"`
}

// FlexBox lays out components.
type FlexBox struct {
	Type            string          `json:"type"`
	Layout          string          `json:"layout"`
	BackgroundColor string          `json:"backgroundColor,omitempty"`
	Spacing         string          `json:"spacing,omitempty"`
	Contents        []FlexComponent `json:"contents"`
}

// FlexComponent is a text or button element.
type FlexComponent struct {
	Type   string      `json:"type"`
	Text   string      `json:"text,omitempty"`
	Weight string      `json:"weight,omitempty"`
	Size   string      `json:"size,omitempty"`
	Color  string      `json:"color,omitempty"`
	Wrap   bool        `json:"wrap,omitempty"`
	Style  string      `json:"style,omitempty"`
	Action *FlexAction `json:"action,omitempty"`
}

// FlexAction is what a button does when tapped.
type FlexAction struct {
	Type  string `json:"type"`
	Label string `json:"label"`
	URI   string `json:"uri"`
}

// RenderChat builds the flex card for msg.
func RenderChat(msg Message) ChatMessage {
	style := StyleFor(msg.Kind)
	title := fmt.Sprintf("%s %s", style.Icon, style.Subject)

	body := &FlexBox{
		Type:    "box",
		Layout:  "vertical",
		Spacing: "sm",
		Contents: []FlexComponent{
			{Type: "text", Text: msg.Ticket.TicketNumber, Weight: "bold", Size: "md"},
			{Type: "text", Text: msg.Ticket.Title, Wrap: true},
		},
	}
	for _, r := range detailRows(msg) {
		body.Contents = append(body.Contents, FlexComponent{
			Type: "text", Text: r.Label + ": " + r.Value, Size: "sm", Color: "#666666", Wrap: true,
		})
	}
	if msg.Notes != "" {
		body.Contents = append(body.Contents, FlexComponent{Type: "text", Text: msg.Notes, Size: "sm", Wrap: true})
	}

	bubble := FlexBubble{
		Type: "bubble",
		Header: &FlexBox{
			Type:            "box",
			Layout:          "vertical",
			BackgroundColor: style.Color,
			Contents: []FlexComponent{
				{Type: "text", Text: title, Weight: "bold", Color: "#FFFFFF"},
			},
		},
		Body: body,
	}
	if msg.HeroImageURL != "" {
		bubble.Hero = &FlexImage{Type: "image", URL: msg.HeroImageURL, Size: "full", AspectRatio: "20:13", AspectMode: "cover"}
	}
	if msg.TicketURL != "" {
		bubble.Footer = &FlexBox{
			Type:   "box",
			Layout: "vertical",
			Contents: []FlexComponent{{
				Type:   "button",
				Style:  "primary",
				Color:  style.Color,
				Action: &FlexAction{Type: "uri", Label: "Open ticket", URI: msg.TicketURL},
			}},
		}
	}

	return ChatMessage{
		Type:     "flex",
		AltText:  fmt.Sprintf("[%s] %s", msg.Ticket.TicketNumber, style.Subject),
		Contents: bubble,
	}
}
