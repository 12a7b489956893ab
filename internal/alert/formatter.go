package alert

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"sailboat/config"
	"sailboat/internal/model"
	"sailboat/pkg/utils"
)

const (
	TitleError     = "Error"
	TitleTraceback = "Traceback"

	errorMarker     = "ERROR"
	tracebackMarker = "Traceback"
)

// Classification is the result of scanning captured stderr.
type Classification struct {
	ErrorCount     int
	TracebackCount int
	Lines          []string
}

// Message is a rendered alert. It is transmitted, never stored.
type Message struct {
	Title          string
	Text           string
	ErrorCount     int
	TracebackCount int
	Lines          []string
	OccurredAt     time.Time
	SentAt         time.Time
	Context        model.TriggerContext
}

type Markdown struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Payload is the webhook body.
type Payload struct {
	MsgType  string   `json:"msgtype"`
	Markdown Markdown `json:"markdown"`
}

func (m Message) Payload() Payload {
	return Payload{
		MsgType:  "markdown",
		Markdown: Markdown{Title: m.Title, Text: m.Text},
	}
}

// Classify splits raw on newlines. Lines containing ERROR are kept one by one.
// A line containing Traceback keeps it and every following line. Both rules
// apply independently, so a line may be counted and appended twice.
func Classify(raw string) Classification {
	var c Classification
	raw = strings.TrimSuffix(raw, "\n")
	if raw == "" {
		return c
	}
	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		if strings.Contains(line, errorMarker) {
			c.ErrorCount++
			c.Lines = append(c.Lines, line)
		}
		if strings.Contains(line, tracebackMarker) {
			c.TracebackCount++
			c.Lines = append(c.Lines, lines[i:]...)
		}
	}
	return c
}

func (c Classification) Title() string {
	if c.TracebackCount > 0 {
		return TitleTraceback
	}
	return TitleError
}

type Formatter interface {
	Format(raw string, occurredAt time.Time, tc model.TriggerContext) Message
}

// NewFormatter selects a formatter by name. Unknown names fall back to markdown.
func NewFormatter(cfg config.Alert) Formatter {
	switch cfg.Formatter {
	case "text":
		return &TextFormatter{Keyword: cfg.Keyword, now: utils.TimeNow}
	default:
		return &MarkdownFormatter{
			Keyword:        cfg.Keyword,
			ErrorImage:     cfg.ErrorImage,
			TracebackImage: cfg.TracebackImage,
			now:            utils.TimeNow,
		}
	}
}

// MarkdownFormatter renders the robot-webhook markdown layout.
type MarkdownFormatter struct {
	Keyword        string
	ErrorImage     string
	TracebackImage string
	now            func() time.Time
}

func (f *MarkdownFormatter) Format(raw string, occurredAt time.Time, tc model.TriggerContext) Message {
	return f.Render(Classify(raw), occurredAt, tc)
}

func (f *MarkdownFormatter) Render(c Classification, occurredAt time.Time, tc model.TriggerContext) Message {
	title := c.Title()
	image := f.ErrorImage
	if title == TitleTraceback {
		image = f.TracebackImage
	}
	sentAt := f.clock()

	var b strings.Builder
	fmt.Fprintf(&b, "#### TOTAL -- Error Number: %d, Traceback Number: %d \n", c.ErrorCount, c.TracebackCount)
	fmt.Fprintf(&b, "> ![screenshot](%s) \n\n", image)
	b.WriteString("> **Error message** \n\n")
	fmt.Fprintf(&b, "> %s \n\n", strings.Join(c.Lines, "\n\n > "))
	b.WriteString("> -------- \n\n")
	fmt.Fprintf(&b, "> **Timer**\n\n> %s \n\n", contextString(tc))
	b.WriteString("> -------- \n\n")
	b.WriteString("> **Other information** \n\n")
	fmt.Fprintf(&b, "> Occurrence Time: %s \n\n", utils.FormatDateTime(occurredAt))
	fmt.Fprintf(&b, "> Send Time: %s \n\n", utils.FormatDateTime(sentAt))
	fmt.Fprintf(&b, "> Message Type: %s", f.Keyword)

	return Message{
		Title:          title,
		Text:           b.String(),
		ErrorCount:     c.ErrorCount,
		TracebackCount: c.TracebackCount,
		Lines:          c.Lines,
		OccurredAt:     occurredAt,
		SentAt:         sentAt,
		Context:        tc,
	}
}

func (f *MarkdownFormatter) clock() time.Time {
	if f.now == nil {
		return time.Now()
	}
	return f.now()
}

// TextFormatter renders a plain-text body for chat transports without
// markdown support.
type TextFormatter struct {
	Keyword string
	now     func() time.Time
}

func (f *TextFormatter) Format(raw string, occurredAt time.Time, tc model.TriggerContext) Message {
	c := Classify(raw)
	sentAt := time.Now()
	if f.now != nil {
		sentAt = f.now()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s: %d error(s), %d traceback(s)\n", f.Keyword, c.Title(), c.ErrorCount, c.TracebackCount)
	fmt.Fprintf(&b, "project=%s version=%s schedule=%s\n", tc.Project, tc.Version, tc.ScheduleID)
	for _, line := range c.Lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "occurred %s, sent %s", utils.FormatDateTime(occurredAt), utils.FormatDateTime(sentAt))

	return Message{
		Title:          c.Title(),
		Text:           b.String(),
		ErrorCount:     c.ErrorCount,
		TracebackCount: c.TracebackCount,
		Lines:          c.Lines,
		OccurredAt:     occurredAt,
		SentAt:         sentAt,
		Context:        tc,
	}
}

func contextString(tc model.TriggerContext) string {
	data, err := json.Marshal(tc)
	if err != nil {
		return fmt.Sprintf("%+v", tc)
	}
	return string(data)
}
