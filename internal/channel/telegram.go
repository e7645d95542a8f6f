package channel

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	sdklogger "github.com/riverfjs/agentsdk-go/pkg/logger"
	telegramify "github.com/riverfjs/telegramify-go"

	"github.com/riverfjs/taskdeck/internal/bus"
	"github.com/riverfjs/taskdeck/internal/config"
)

const telegramChannelName = "telegram"

// TelegramBot interface for mocking telegram bot API
type TelegramBot interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetSelf() tgbotapi.User
}

type tgBotWrapper struct {
	bot *tgbotapi.BotAPI
}

func (w *tgBotWrapper) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return w.bot.GetUpdatesChan(config)
}

func (w *tgBotWrapper) StopReceivingUpdates() {
	w.bot.StopReceivingUpdates()
}

func (w *tgBotWrapper) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	return w.bot.Send(c)
}

func (w *tgBotWrapper) GetSelf() tgbotapi.User {
	return w.bot.Self
}

// BotFactory creates TelegramBot instances (allows mocking)
type BotFactory func(token, apiEndpoint string, client *http.Client) (TelegramBot, error)

var defaultBotFactory BotFactory = func(token, apiEndpoint string, client *http.Client) (TelegramBot, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, apiEndpoint, client)
	if err != nil {
		return nil, err
	}
	return &tgBotWrapper{bot: bot}, nil
}

// TelegramChannel mirrors notices to one chat and answers task commands.
type TelegramChannel struct {
	BaseChannel
	token      string
	chatID     int64
	proxy      string
	botFactory BotFactory
	commands   *CommandHandler

	mu     sync.Mutex
	bot    TelegramBot
	cancel context.CancelFunc
}

func NewTelegramChannel(cfg config.TelegramConfig, commands *CommandHandler, logger sdklogger.Logger) (*TelegramChannel, error) {
	return NewTelegramChannelWithFactory(cfg, commands, defaultBotFactory, logger)
}

// NewTelegramChannelWithFactory creates a TelegramChannel with custom bot factory (for testing)
func NewTelegramChannelWithFactory(cfg config.TelegramConfig, commands *CommandHandler, factory BotFactory, logger sdklogger.Logger) (*TelegramChannel, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	return &TelegramChannel{
		BaseChannel: NewBaseChannel(telegramChannelName, cfg.AllowFrom, logger),
		token:       cfg.Token,
		chatID:      cfg.ChatID,
		proxy:       cfg.Proxy,
		botFactory:  factory,
		commands:    commands,
	}, nil
}

func (t *TelegramChannel) initBot() error {
	client := http.DefaultClient
	if t.proxy != "" {
		proxyURL, err := url.Parse(t.proxy)
		if err != nil {
			return fmt.Errorf("parse proxy url: %w", err)
		}
		client = &http.Client{
			Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
		}
	}

	bot, err := t.botFactory(t.token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return fmt.Errorf("create telegram bot: %w", err)
	}
	t.SetBot(bot)
	t.logger.Infof("[telegram] authorized as @%s", bot.GetSelf().UserName)
	return nil
}

func (t *TelegramChannel) Start(ctx context.Context) error {
	if err := t.initBot(); err != nil {
		return err
	}
	if t.commands == nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	t.cancel = cancel
	bot := t.bot
	t.mu.Unlock()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case update := <-updates:
				if update.Message == nil {
					continue
				}
				t.handleMessage(update.Message)
			case <-ctx.Done():
				return
			}
		}
	}()

	t.logger.Infof("[telegram] polling started")
	return nil
}

func (t *TelegramChannel) handleMessage(msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	senderID := strconv.FormatInt(msg.From.ID, 10)
	if !t.IsAllowed(senderID) {
		t.logger.Warnf("[telegram] rejected message from %s (%s)", senderID, msg.From.UserName)
		return
	}
	if t.commands == nil {
		return
	}

	res := t.commands.HandleCommand(msg.Text)
	if !res.Handled {
		return
	}
	if err := t.sendNewMessage(msg.Chat.ID, res.Response); err != nil {
		t.logger.Errorf("[telegram] reply to %d failed: %v", msg.Chat.ID, err)
	}
}

func (t *TelegramChannel) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	if t.bot != nil {
		t.bot.StopReceivingUpdates()
	}
	return nil
}

// SetBot sets the bot (for testing)
func (t *TelegramChannel) SetBot(bot TelegramBot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bot = bot
}

// Send mirrors a notice to the configured chat.
func (t *TelegramChannel) Send(n bus.Notice) error {
	if t.chatID == 0 {
		return fmt.Errorf("telegram chat_id not configured")
	}
	return t.sendNewMessage(t.chatID, formatNotice(n))
}

func formatNotice(n bus.Notice) string {
	var sb strings.Builder
	sb.WriteString("🔔 **")
	sb.WriteString(n.Title)
	sb.WriteString("**")
	if body := strings.TrimSpace(n.Body); body != "" {
		sb.WriteString("\n\n")
		sb.WriteString(body)
	}
	return sb.String()
}

// sendNewMessage renders markdown through telegramify and sends every
// resulting piece in order.
func (t *TelegramChannel) sendNewMessage(chatID int64, content string) error {
	t.mu.Lock()
	bot := t.bot
	t.mu.Unlock()
	if bot == nil {
		return fmt.Errorf("telegram bot not initialized")
	}

	const maxUTF16Len = 4090 // Telegram limit is 4096
	contents, err := telegramify.Telegramify(context.Background(), content, maxUTF16Len, false, nil)
	if err != nil {
		return fmt.Errorf("telegramify process: %w", err)
	}

	for _, item := range contents {
		switch c := item.(type) {
		case *telegramify.Text:
			if err := t.sendTextContent(bot, chatID, c); err != nil {
				return err
			}
		case *telegramify.File:
			doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: c.FileName, Bytes: c.FileData})
			doc.Caption = c.CaptionText
			if _, err := bot.Send(doc); err != nil {
				return fmt.Errorf("send file: %w", err)
			}
		default:
			t.logger.Warnf("[telegram] unknown content type: %T", item)
		}
	}
	return nil
}

func (t *TelegramChannel) sendTextContent(bot TelegramBot, chatID int64, text *telegramify.Text) error {
	tgMsg := tgbotapi.NewMessage(chatID, text.Text)
	if len(text.Entities) > 0 {
		tgEntities := make([]tgbotapi.MessageEntity, 0, len(text.Entities))
		for _, ent := range text.Entities {
			tgEntities = append(tgEntities, tgbotapi.MessageEntity{
				Type:     ent.Type,
				Offset:   ent.Offset,
				Length:   ent.Length,
				URL:      ent.URL,
				Language: ent.Language,
			})
		}
		tgMsg.Entities = tgEntities
	}

	if _, err := bot.Send(tgMsg); err != nil {
		// Fallback to plain text if entity parsing fails
		t.logger.Warnf("[telegram] failed to send with entities, falling back to plain text: %v", err)
		if _, err2 := bot.Send(tgbotapi.NewMessage(chatID, text.Text)); err2 != nil {
			return fmt.Errorf("send telegram message: %w", err2)
		}
	}
	return nil
}
