// Package bot is the Telegram presentation layer: it renders topic lists,
// due reminders and statistics, and routes every mutation through the topic
// repository. Nothing in here owns scheduling state.
package bot

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/revtrack/internal/topics"
)

// MenuButton represents a button in an inline menu.
type MenuButton struct {
	Text         string
	CallbackData string
}

// createKeyboard creates an inline keyboard from menu buttons.
func createKeyboard(buttons [][]MenuButton) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var keyboardRow []tgbotapi.InlineKeyboardButton
		for _, button := range row {
			keyboardRow = append(keyboardRow, tgbotapi.NewInlineKeyboardButtonData(button.Text, button.CallbackData))
		}
		keyboard = append(keyboard, keyboardRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

// pendingAdd tracks a chat in the middle of the two-step /add flow.
type pendingAdd struct {
	Name    string
	Started time.Time
}

// Bot represents the Telegram application.
type Bot struct {
	api    *tgbotapi.BotAPI
	repo   *topics.Repository
	config *BotConfig
	clock  func() time.Time

	mu             sync.Mutex
	chatID         int64
	pendingAdds    map[int64]*pendingAdd
	awaitingUpload map[int64]bool
}

// New creates a new bot instance. The token comes from the
// TELEGRAM_BOT_TOKEN environment variable; TELEGRAM_CHAT_ID optionally pins
// the reminder chat up front.
func New(repo *topics.Repository) (*Bot, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable is not set")
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	config := DefaultConfig()
	if raw := os.Getenv("TELEGRAM_CHAT_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %w", raw, err)
		}
		config.ChatID = id
	}

	return &Bot{
		api:            api,
		repo:           repo,
		config:         config,
		clock:          time.Now,
		chatID:         config.ChatID,
		pendingAdds:    make(map[int64]*pendingAdd),
		awaitingUpload: make(map[int64]bool),
	}, nil
}

// Start runs the update loop until the context is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	log.Printf("bot authorized as @%s", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if err := b.handleUpdate(ctx, update); err != nil {
				log.Printf("error handling update: %v", err)
			}
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	switch {
	case update.CallbackQuery != nil:
		return b.HandleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		return b.HandleCommand(ctx, update.Message)
	case update.Message != nil && update.Message.Document != nil:
		return b.handleDocument(ctx, update.Message)
	case update.Message != nil:
		return b.HandleText(ctx, update.Message)
	}
	return nil
}

// SendDueReminder implements scheduler.Notifier: one message naming how many
// topics are due. Without a bound chat the reminder is dropped, which is the
// permission-denied analogue of the original's desktop notifications.
func (b *Bot) SendDueReminder(count int) error {
	b.mu.Lock()
	chatID := b.chatID
	b.mu.Unlock()
	if chatID == 0 {
		log.Printf("no chat bound for reminders, dropping reminder for %d due topics", count)
		return nil
	}

	plural := ""
	if count > 1 {
		plural = "s"
	}
	text := fmt.Sprintf("⏰ Revision reminder!\nYou have %d topic%s due for revision today. Use /due to see them.", count, plural)
	return b.send(tgbotapi.NewMessage(chatID, text))
}

// bindChat remembers the chat reminders should go to. The first /start wins
// unless TELEGRAM_CHAT_ID pinned one.
func (b *Bot) bindChat(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.chatID == 0 {
		b.chatID = chatID
	}
}

func (b *Bot) send(c tgbotapi.Chattable) error {
	if _, err := b.api.Send(c); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// downloadDocument fetches an uploaded file into a temp path for the
// importer. The caller removes the file.
func (b *Bot) downloadDocument(doc *tgbotapi.Document) (string, error) {
	url, err := b.api.GetFileDirectURL(doc.FileID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve file URL: %w", err)
	}

	resp, err := http.Get(url)
	if err != nil {
		return "", fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	tmp, err := os.CreateTemp("", "revtrack-import-*"+filepath.Ext(doc.FileName))
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer tmp.Close()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	return tmp.Name(), nil
}
