package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"trade_gateway/internal/models"
	"trade_gateway/pkg/logger"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	queueSize = 64

	verbConfirm = "CONF"
	verbCancel  = "REJ"
)

type botAPI interface {
	Send(c tgbot.Chattable) (tgbot.Message, error)
	Request(c tgbot.Chattable) (*tgbot.APIResponse, error)
	GetUpdatesChan(config tgbot.UpdateConfig) tgbot.UpdatesChannel
	StopReceivingUpdates()
}

// Telegram sends trade events to one chat. Pending trades get
// confirm/cancel buttons that drive the bound Resolver.
type Telegram struct {
	bot    botAPI
	chatID int64
	queue  chan models.TradeEvent

	mu       sync.Mutex
	resolver Resolver
	prompts  map[string]int // trade id -> message id
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return newTelegram(b, chatID), nil
}

func newTelegram(b botAPI, chatID int64) *Telegram {
	return &Telegram{
		bot:     b,
		chatID:  chatID,
		queue:   make(chan models.TradeEvent, queueSize),
		prompts: make(map[string]int),
	}
}

func (t *Telegram) Bind(r Resolver) {
	t.mu.Lock()
	t.resolver = r
	t.mu.Unlock()
}

// Publish enqueues the event; a full queue drops it.
func (t *Telegram) Publish(_ context.Context, ev models.TradeEvent) {
	select {
	case t.queue <- ev:
	default:
		logger.Warn("telegram queue is full, dropping %s event for %s", ev.Status, ev.TradeID)
	}
}

// Start: отправка событий + long-polling callback_query.
func (t *Telegram) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	t.mu.Lock()
	t.cancel = cancel
	t.done = make(chan struct{})
	t.mu.Unlock()

	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"callback_query"}
	updates := t.bot.GetUpdatesChan(u)

	go func() {
		defer close(t.done)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-t.queue:
				t.deliver(ev)
			case upd, ok := <-updates:
				if !ok {
					updates = nil
					continue
				}
				if upd.CallbackQuery != nil {
					go t.HandleCallback(ctx, upd.CallbackQuery)
				}
			}
		}
	}()
	return nil
}

func (t *Telegram) Stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.mu.Unlock()
	if cancel == nil {
		return
	}
	t.bot.StopReceivingUpdates()
	cancel()
	<-done
}

func (t *Telegram) deliver(ev models.TradeEvent) {
	text := formatEvent(ev)

	if ev.Status == models.StatusPending {
		msg := tgbot.NewMessage(t.chatID, text)
		msg.ReplyMarkup = tgbot.NewInlineKeyboardMarkup(tgbot.NewInlineKeyboardRow(
			tgbot.NewInlineKeyboardButtonData("✅ Confirm", verbConfirm+"::"+ev.TradeID),
			tgbot.NewInlineKeyboardButtonData("❌ Cancel", verbCancel+"::"+ev.TradeID),
		))
		sent, err := t.bot.Send(msg)
		if err != nil {
			logger.Error("telegram send: %v", err)
			return
		}
		t.mu.Lock()
		t.prompts[ev.TradeID] = sent.MessageID
		t.mu.Unlock()
		return
	}

	t.mu.Lock()
	msgID, ok := t.prompts[ev.TradeID]
	delete(t.prompts, ev.TradeID)
	t.mu.Unlock()

	if ok {
		// кнопки больше не нужны, статус дописываем в то же сообщение
		_ = t.editReplyMarkupRemove(msgID)
		if err := t.editText(msgID, text); err == nil {
			return
		}
	}
	if _, err := t.bot.Send(tgbot.NewMessage(t.chatID, text)); err != nil {
		logger.Error("telegram send: %v", err)
	}
}

// HandleCallback resolves a button press (CONF::id / REJ::id).
func (t *Telegram) HandleCallback(ctx context.Context, cb *tgbot.CallbackQuery) {
	if cb == nil {
		return
	}
	if cb.Message == nil || cb.Message.Chat == nil || cb.Message.Chat.ID != t.chatID {
		return
	}

	verb, id, ok := strings.Cut(cb.Data, "::")
	if !ok || id == "" {
		return
	}

	t.mu.Lock()
	r := t.resolver
	t.mu.Unlock()
	if r == nil {
		t.answer(cb.ID, "Not ready")
		return
	}

	var err error
	switch verb {
	case verbConfirm:
		var res models.ExecutedTrade
		res, err = r.Confirm(ctx, id)
		if err == nil {
			t.answer(cb.ID, string(res.Status))
		}
	case verbCancel:
		err = r.Cancel(ctx, id)
		if err == nil {
			t.answer(cb.ID, string(models.StatusCancelled))
		}
	default:
		return
	}

	if errors.Is(err, models.ErrNotFound) {
		t.answer(cb.ID, "Trade not found")
		_ = t.editReplyMarkupRemove(cb.Message.MessageID)
	} else if err != nil {
		logger.Error("telegram callback %s: %v", cb.Data, err)
		t.answer(cb.ID, "Error")
	}
}

func (t *Telegram) answer(callbackID, text string) {
	_, _ = t.bot.Request(tgbot.NewCallback(callbackID, text))
}

func (t *Telegram) editReplyMarkupRemove(msgID int) error {
	rm := tgbot.InlineKeyboardMarkup{InlineKeyboard: [][]tgbot.InlineKeyboardButton{}}
	_, err := t.bot.Request(tgbot.NewEditMessageReplyMarkup(t.chatID, msgID, rm))
	return err
}

func (t *Telegram) editText(msgID int, text string) error {
	_, err := t.bot.Request(tgbot.NewEditMessageText(t.chatID, msgID, text))
	return err
}
