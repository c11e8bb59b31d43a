// Package bot implements the Telegram transport and command handlers.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/C0okiesl/KopiRadar/internal/config"
	"github.com/C0okiesl/KopiRadar/internal/geocode"
	"github.com/C0okiesl/KopiRadar/internal/radar"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Watcher registers and removes recurring watches for chats.
type Watcher interface {
	AddWatch(ctx context.Context, chatID int64)
	RemoveWatch(chatID int64)
}

// Bot is the Telegram bot that handles user commands and sends digests.
type Bot struct {
	api     telegramAPI
	svc     *radar.Service
	geo     geocode.Geocoder
	watcher Watcher
	cfg     *config.Config
	log     *slog.Logger
}

// New creates a Bot with the given Telegram token, radar service, and config.
func New(token string, svc *radar.Service, geo geocode.Geocoder, cfg *config.Config, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	return &Bot{
		api: api,
		svc: svc,
		geo: geo,
		cfg: cfg,
		log: log,
	}, nil
}

// SetWatcher wires the scheduler in after construction. The scheduler needs
// the bot as its Sender, so the two cannot reference each other at build
// time.
func (b *Bot) SetWatcher(w Watcher) {
	b.watcher = w
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			// Channel posts and other anonymous sources carry no sender.
			if update.Message.From == nil {
				continue
			}
			if !b.cfg.IsUserAllowed(update.Message.From.ID) {
				b.reply(update.Message.Chat.ID, "Access denied.")
				continue
			}
			b.handleCommand(ctx, update.Message)
		}
	}
}

// SendMessage sends a text message to the given chat.
func (b *Bot) SendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.SendMessage(chatID, text)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.Fields(strings.TrimSpace(msg.CommandArguments()))
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	// First contact from a chat provisions its record and starts the watch
	// before any command runs, so the first scheduled tick is never skipped.
	if cmd != "stop" && !b.svc.IsRegistered(chatID) {
		if err := b.svc.EnsureUser(ctx, chatID); err != nil {
			b.log.Error("provision user", "chat_id", chatID, "error", err)
			b.reply(chatID, "Something went wrong, please try again.")
			return
		}
		if b.watcher != nil {
			b.watcher.AddWatch(ctx, chatID)
		}
	}

	switch cmd {
	case "start", "help":
		b.handleHelp(chatID)
	case "addfilter":
		b.handleAddFilter(ctx, chatID, args)
	case "removefilter":
		b.handleRemoveFilter(ctx, chatID, args)
	case "showfilter":
		b.handleShowFilter(chatID)
	case "filteron":
		b.handleFilterSwitch(ctx, chatID, args)
	case "addfav":
		b.handleAddFav(ctx, chatID, args)
	case "removefav":
		b.handleRemoveFav(ctx, chatID, args)
	case "showfav":
		b.handleShowFav(chatID)
	case "addlocation":
		b.handleAddLocation(ctx, chatID, args)
	case "removelocation":
		b.handleRemoveLocation(ctx, chatID, args)
	case "showlocation":
		b.handleShowLocation(chatID)
	case "setlocation":
		b.handleSetLocation(ctx, chatID, args)
	case "addspeciallocation":
		b.handleAddSpecial(ctx, chatID, args)
	case "removespeciallocation":
		b.handleRemoveSpecial(ctx, chatID, args)
	case "showspeciallocation":
		b.handleShowSpecial(ctx, chatID)
	case "check":
		b.handleCheck(ctx, chatID)
	case "stop":
		b.handleStop(ctx, chatID)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}
