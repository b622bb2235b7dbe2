package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
	"gorm.io/gorm"

	"github.com/whatsorder/go-orders-backend/internal/chat"
	"github.com/whatsorder/go-orders-backend/internal/domain"
	"github.com/whatsorder/go-orders-backend/internal/session"
)

// ConversationUserID owns every order placed through the chat channel.
// Conversational customers have no operator account; the synthetic bot
// user keeps the orders table uniform.
const ConversationUserID = "whatsapp-bot"

// OrderPlacer creates orders from resolved item requests. OrderService is
// the production implementation.
type OrderPlacer interface {
	Create(ctx context.Context, userID, customerPhone, customerName string, items []ItemInput) (*domain.Order, error)
}

// CatalogLister returns the catalog for the products reply.
// ProductService is the production implementation.
type CatalogLister interface {
	List(ctx context.Context) ([]domain.Product, error)
}

// ReplySender delivers the bot's reply over the messaging channel.
// messaging.WhatsApp is the production implementation.
type ReplySender interface {
	SendText(ctx context.Context, to, text string) error
}

// MessageArchive persists raw inbound messages. repo.SaveInboundMessage is
// the production implementation, adapted through a shim.
type MessageArchive interface {
	SaveInboundMessage(ctx context.Context, db *gorm.DB, userName, message string) error
}

// inr renders amounts for customer-facing replies; grouping follows
// English digit rules which is what the original audience sees.
var inr = message.NewPrinter(language.English)

// FormatAmount renders a monetary value for customer-facing text. Shared
// with the HTTP layer so API confirmations match chat replies.
func FormatAmount(v float64) string {
	return inr.Sprintf("%v", number.Decimal(v))
}

// ConversationService drives one inbound chat message through the reducer
// and performs the side effects the outcome asks for: catalog listing,
// order submission, session transitions, and the outbound reply.
type ConversationService struct {
	// DB is the GORM handle used for message archiving.
	DB *gorm.DB
	// Sessions holds per-customer conversation state.
	Sessions session.Store
	// Orders places orders parsed from chat.
	Orders OrderPlacer
	// Catalog lists products for the products command.
	Catalog CatalogLister
	// Sender delivers replies; may be nil when the caller only wants the
	// reply text.
	Sender ReplySender
	// Archive stores raw inbound messages; may be nil to disable archiving.
	Archive MessageArchive
	// SessionTTL is the idle conversation expiry; zero falls back to
	// session.DefaultTTL.
	SessionTTL time.Duration
	// Log is the service logger.
	Log zerolog.Logger
}

// HandleMessage processes one inbound message end to end and returns the
// reply that was (or would be) sent. Errors from archiving, session
// storage, and reply delivery are logged and absorbed; the conversation
// must keep working through any of them.
func (s *ConversationService) HandleMessage(ctx context.Context, from, profileName, text string) string {
	text = strings.ToLower(strings.TrimSpace(text))

	if s.Archive != nil {
		if err := s.Archive.SaveInboundMessage(ctx, s.DB, from, text); err != nil {
			s.Log.Warn().Err(err).Str("from", from).Msg("inbound message archive failed")
		}
	}

	state := chat.StateIdle
	sess, err := s.Sessions.Get(ctx, from)
	if err != nil {
		s.Log.Warn().Err(err).Str("from", from).Msg("session load failed, treating as idle")
	} else if sess != nil {
		state = sess.State
	}

	out := chat.Reduce(state, chat.Input{From: from, Text: text, ProfileName: profileName})

	reply := out.Reply
	switch out.Action {
	case chat.ActionListProducts:
		reply = s.productsReply(ctx)
	case chat.ActionSubmitOrder:
		reply = s.submitOrder(ctx, out.Order)
	}

	s.applyState(ctx, from, out.Next)

	if s.Sender != nil {
		if err := s.Sender.SendText(ctx, from, reply); err != nil {
			s.Log.Warn().Err(err).Str("to", from).Msg("reply delivery failed")
		}
	}
	return reply
}

// applyState persists the next session state. Idle sessions are not
// stored; reaching idle deletes whatever session existed.
func (s *ConversationService) applyState(ctx context.Context, from string, next chat.State) {
	var err error
	if next == chat.StateIdle {
		err = s.Sessions.Delete(ctx, from)
	} else {
		ttl := s.SessionTTL
		if ttl <= 0 {
			ttl = session.DefaultTTL
		}
		err = s.Sessions.Set(ctx, from, &session.Session{State: next}, ttl)
	}
	if err != nil {
		s.Log.Warn().Err(err).Str("from", from).Msg("session update failed")
	}
}

func (s *ConversationService) productsReply(ctx context.Context) string {
	products, err := s.Catalog.List(ctx)
	if err != nil {
		s.Log.Error().Err(err).Msg("catalog fetch for products reply failed")
		return "❌ Sorry, I couldn't fetch the product list right now."
	}
	if len(products) == 0 {
		return "ℹ️ No products available at the moment."
	}
	var b strings.Builder
	b.WriteString("🛒 Available Products:")
	for _, p := range products {
		fmt.Fprintf(&b, "\n• %s - ₹%s", p.Name, FormatAmount(p.Price))
	}
	return b.String()
}

func (s *ConversationService) submitOrder(ctx context.Context, req *chat.OrderRequest) string {
	items := make([]ItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, ItemInput{Name: it.Name, Quantity: it.Quantity})
	}

	o, err := s.Orders.Create(ctx, ConversationUserID, req.CustomerPhone, req.CustomerName, items)
	if err != nil {
		var unknown *UnknownProductError
		if errors.As(err, &unknown) {
			return fmt.Sprintf("❌ Order failed: Product '%s' not found.%s",
				unknown.Name, availableNames(unknown.Catalog))
		}
		s.Log.Error().Err(err).Str("from", req.CustomerPhone).Msg("conversational order failed")
		return "❌ Sorry, there was an error processing your order. Please try again later."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "✅ Order placed successfully!\n\n📋 Order ID: %s\n💰 Total: ₹%s\n\n📦 Items:",
		o.ID, FormatAmount(o.TotalAmount))
	for _, it := range o.Items {
		fmt.Fprintf(&b, "\n• %dx %s - ₹%s", it.Quantity, it.ProductName, FormatAmount(it.LineTotal))
	}
	return b.String()
}

// availableNames renders " Available products: a, b, c" from the live
// catalog, or nothing when the catalog could not be loaded.
func availableNames(products []domain.Product) string {
	if len(products) == 0 {
		return ""
	}
	names := make([]string, 0, len(products))
	for _, p := range products {
		names = append(names, strings.ToLower(p.Name))
	}
	return " Available products: " + strings.Join(names, ", ")
}
