// =============================================================================
// Invoice Dashboard - Data Assistant
// =============================================================================
//
// This module answers free-text questions about the filtered view of a
// session. The model never sees the whole upload: it gets a compact context
// made of the column mapping, the row count, the KPIs and the first rows of
// the view as CSV.
//
// CONVERSATION:
//   Each session keeps its own history. A question and its answer are
//   appended only after a successful call, so a failed request leaves the
//   history unchanged.
//
// LANGUAGE:
//   The assistant answers in the language of the question (Arabic or
//   English).
//
// =============================================================================

package assistant

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"go.uber.org/zap"

	"github.com/ginjaninja78/invoice-dashboard/internal/dataset"
	"github.com/ginjaninja78/invoice-dashboard/internal/kpi"
)

var (
	// ErrEmptyQuestion is returned for a blank question.
	ErrEmptyQuestion = errors.New("question is empty")

	// ErrEmptyAnswer is returned when the model produced no text.
	ErrEmptyAnswer = errors.New("assistant returned an empty answer")
)

// DefaultContextRows is the number of view rows sent with each question.
const DefaultContextRows = 50

// Instructions is the system prompt sent with every request.
const Instructions = "أنت مساعد تحليل فواتير. أجب دائمًا بنفس لغة سؤال المستخدم (العربية أو الإنجليزية). " +
	"إذا لم يكن من الممكن الإجابة من البيانات المتاحة، فاذكر ذلك بوضوح.\n\n" +
	"You are an invoice analytics assistant. Respond in the same language as the user's question. " +
	"Base every figure on the data context provided; the KPIs are computed over the whole filtered view, " +
	"while the sample rows are only the first rows of it. If a question cannot be answered from the data, say so. " +
	"Format answers in Markdown."

// =============================================================================
// TYPES
// =============================================================================

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Answer is the reply to one question.
type Answer struct {
	// Markdown is the raw model output.
	Markdown string `json:"markdown"`

	// HTML is Markdown rendered for display.
	HTML string `json:"html"`
}

// Completer sends one prompt to a language model.
type Completer interface {
	Complete(ctx context.Context, instructions, prompt string) (string, error)
}

// =============================================================================
// ASSISTANT
// =============================================================================

// Assistant builds prompts from views and renders answers.
type Assistant struct {
	completer   Completer
	contextRows int
	opts        kpi.Options
	logger      *zap.Logger
	now         func() time.Time
}

// New returns an Assistant. contextRows <= 0 uses DefaultContextRows and a
// nil logger discards output.
func New(c Completer, contextRows int, opts kpi.Options, logger *zap.Logger) *Assistant {
	if contextRows <= 0 {
		contextRows = DefaultContextRows
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assistant{completer: c, contextRows: contextRows, opts: opts, logger: logger, now: time.Now}
}

// Ask answers question about view. history holds the earlier turns of the
// conversation, oldest first. On success it returns the two messages the
// caller should append to the history.
func (a *Assistant) Ask(ctx context.Context, view dataset.View, history []Message, question string) (Answer, []Message, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, nil, ErrEmptyQuestion
	}

	prompt := BuildPrompt(BuildContext(view, a.opts, a.contextRows), history, question)

	start := a.now()
	text, err := a.completer.Complete(ctx, Instructions, prompt)
	if err != nil {
		a.logger.Warn("assistant request failed", zap.Error(err), zap.Int("history", len(history)))
		return Answer{}, nil, fmt.Errorf("assistant request failed: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Answer{}, nil, ErrEmptyAnswer
	}

	html, err := RenderHTML(text)
	if err != nil {
		return Answer{}, nil, err
	}

	a.logger.Debug("assistant answered",
		zap.Int("view_rows", view.Len()),
		zap.Int("prompt_bytes", len(prompt)),
		zap.Duration("elapsed", a.now().Sub(start)),
	)

	now := a.now()
	turns := []Message{
		{Role: RoleUser, Content: question, At: now},
		{Role: RoleAssistant, Content: text, At: now},
	}
	return Answer{Markdown: text, HTML: html}, turns, nil
}

// =============================================================================
// PROMPT BUILDING
// =============================================================================

// BuildContext describes view for the model.
//
// EXAMPLE:
//
//	Columns: invoice_amount <- "Amount", client <- "اسم العميل"
//	Rows in view: 120
//	KPIs:
//	- Total Invoice Amount: 1,250.00 SAR
//	First 50 rows (CSV):
//	invoice_amount,client,outstanding_amount
//	1000,Acme,1000
func BuildContext(view dataset.View, opts kpi.Options, rows int) string {
	var b strings.Builder

	fields := view.Mapping.Mapped()
	cols := make([]string, 0, len(fields))
	for _, f := range fields {
		h, _ := view.Mapping.Header(f)
		cols = append(cols, fmt.Sprintf("%s <- %q", f, h))
	}
	fmt.Fprintf(&b, "Columns: %s\n", strings.Join(cols, ", "))
	fmt.Fprintf(&b, "Rows in view: %d\n", view.Len())

	set, err := kpi.Summarize(view, opts)
	switch {
	case errors.Is(err, kpi.ErrEmptyView):
		b.WriteString("KPIs: none, no records match the current filters\n")
	case err == nil:
		b.WriteString("KPIs:\n")
		for _, k := range set {
			fmt.Fprintf(&b, "- %s: %s\n", k.Label, k.Formatted)
		}
	}

	if view.Empty() {
		return b.String()
	}

	n := min(rows, view.Len())
	fmt.Fprintf(&b, "First %d rows (CSV):\n", n)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		header = append(header, string(f))
	}
	_ = w.Write(append(header, "outstanding_amount"))
	for _, r := range view.Records[:n] {
		rec := make([]string, 0, len(fields)+1)
		for _, f := range fields {
			rec = append(rec, r.Cell(f).String())
		}
		_ = w.Write(append(rec, r.Outstanding().String()))
	}
	w.Flush()
	b.Write(buf.Bytes())

	return b.String()
}

// BuildPrompt joins the data context, the conversation so far and the new
// question into one prompt.
func BuildPrompt(dataContext string, history []Message, question string) string {
	var b strings.Builder

	b.WriteString("Data context:\n```\n")
	b.WriteString(strings.TrimRight(dataContext, "\n"))
	b.WriteString("\n```\n\n")

	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, m := range history {
			b.WriteString(string(m.Role))
			b.WriteString(": ")
			b.WriteString(m.Content)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}

// RenderHTML converts a Markdown answer to HTML.
func RenderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("failed to render answer: %w", err)
	}
	return buf.String(), nil
}
