package notify

import (
	"encoding/json"
	"fmt"

	"shareit/internal/domain"
	"shareit/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// OpsNotifier forwards booking events to the operations Telegram chat.
type OpsNotifier struct {
	sender domain.TelegramSender
	chatID int64
	logger *zerolog.Logger
}

func NewOpsNotifier(sender domain.TelegramSender, chatID int64, logger *zerolog.Logger) *OpsNotifier {
	return &OpsNotifier{sender: sender, chatID: chatID, logger: logger}
}

// NewBotAPI builds a Telegram client from a bot token.
func NewBotAPI(token string, debug bool) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	bot.Debug = debug
	return bot, nil
}

// Subscribe registers the notifier on booking lifecycle events.
func (n *OpsNotifier) Subscribe(bus *events.EventBus) {
	if bus == nil {
		return
	}
	bus.Subscribe(events.EventBookingCreated, n.onBookingEvent)
	bus.Subscribe(events.EventBookingApproved, n.onBookingEvent)
	bus.Subscribe(events.EventBookingRejected, n.onBookingEvent)
}

func (n *OpsNotifier) onBookingEvent(event *events.Event) error {
	var payload events.BookingEventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		n.logger.Error().Err(err).Str("event", event.Type).Msg("decode event payload")
		return err
	}

	text := n.formatMessage(event.Type, payload)
	if text == "" {
		return nil
	}

	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.sender.Send(msg); err != nil {
		n.logger.Error().Err(err).Str("event", event.Type).Int64("booking_id", payload.BookingID).Msg("send telegram notification")
		return err
	}
	return nil
}

func (n *OpsNotifier) formatMessage(eventType string, p events.BookingEventPayload) string {
	period := fmt.Sprintf("%s - %s", p.Start.Format("02.01.2006 15:04"), p.End.Format("02.01.2006 15:04"))

	switch eventType {
	case events.EventBookingCreated:
		return fmt.Sprintf("📋 Новая заявка №%d\nВещь: %s\nАрендатор: %s\nПериод: %s",
			p.BookingID, p.ItemName, p.BookerName, period)
	case events.EventBookingApproved:
		return fmt.Sprintf("✅ Заявка №%d подтверждена\nВещь: %s\nПериод: %s",
			p.BookingID, p.ItemName, period)
	case events.EventBookingRejected:
		return fmt.Sprintf("❌ Заявка №%d отклонена\nВещь: %s\nПериод: %s",
			p.BookingID, p.ItemName, period)
	default:
		return ""
	}
}
