// Package delivery hands one-time codes to members over email, SMS or, in
// development, a local writer.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	memberModels "unionvote/internal/member/models"
	"unionvote/internal/verification/models"
)

var (
	ErrUnsupportedChannel = errors.New("delivery: no sender for contact channel")
	ErrDeliveryFailed     = errors.New("delivery: provider rejected message")
)

// Sender delivers a code to one contact.
type Sender interface {
	Deliver(ctx context.Context, contact memberModels.Contact, code string, purpose models.Purpose) error
}

// Router picks a Sender by the contact's channel.
type Router struct {
	senders map[memberModels.ContactChannel]Sender
	logger  *slog.Logger
}

func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{senders: make(map[memberModels.ContactChannel]Sender), logger: logger}
}

// Register installs sender for channel, replacing any previous one.
func (r *Router) Register(channel memberModels.ContactChannel, sender Sender) *Router {
	r.senders[channel] = sender
	return r
}

func (r *Router) Deliver(ctx context.Context, contact memberModels.Contact, code string, purpose models.Purpose) error {
	sender, ok := r.senders[contact.Channel]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedChannel, contact.Channel)
	}
	if err := sender.Deliver(ctx, contact, code, purpose); err != nil {
		r.logger.WarnContext(ctx, "code delivery failed",
			"channel", string(contact.Channel),
			"to", MaskAddress(contact.Address),
			"error", err,
		)
		return err
	}
	r.logger.InfoContext(ctx, "code delivered",
		"channel", string(contact.Channel),
		"to", MaskAddress(contact.Address),
		"purpose", string(purpose),
	)
	return nil
}

// WriterSender prints codes to a local writer. Development only; codes never
// reach the structured log.
type WriterSender struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterSender(w io.Writer) *WriterSender {
	return &WriterSender{w: w}
}

func (s *WriterSender) Deliver(_ context.Context, contact memberModels.Contact, code string, purpose models.Purpose) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.w, "[dev-delivery] %s %s code for %s: %s\n", contact.Channel, purpose, contact.Address, code)
	return err
}

// MaskAddress keeps enough of an address to correlate logs without exposing it.
func MaskAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if at := strings.LastIndex(addr, "@"); at > 0 {
		return addr[:1] + "***" + addr[at:]
	}
	if len(addr) > 4 {
		return "***" + addr[len(addr)-4:]
	}
	return "***"
}

func messageBody(code string, purpose models.Purpose) string {
	return fmt.Sprintf("Your union election %s code is %s. It expires in 5 minutes. Do not share it.",
		strings.ToLower(strings.ReplaceAll(string(purpose), "_", " ")), code)
}
