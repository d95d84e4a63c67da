package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/revtrack/internal/excel"
	"github.com/example/revtrack/internal/schedule"
	"github.com/example/revtrack/internal/stats"
	"github.com/example/revtrack/internal/topics"
	"github.com/example/revtrack/pkg/models"
)

// Callback data prefixes.
const (
	callbackCategory      = "cat:"
	callbackDone          = "done:"
	callbackUndo          = "undo:"
	callbackDelete        = "del:"
	callbackConfirmDelete = "confirmdel:"
	callbackCancel        = "cancel"
)

// HandleCommand routes bot commands.
func (b *Bot) HandleCommand(ctx context.Context, message *tgbotapi.Message) error {
	switch message.Command() {
	case "start":
		return b.handleStart(message)
	case "help":
		return b.handleHelp(message)
	case "add":
		return b.handleAdd(message)
	case "list":
		return b.handleList(message)
	case "due":
		return b.handleDue(message)
	case "done":
		return b.handleDone(message)
	case "delete":
		return b.handleDelete(message)
	case "stats":
		return b.handleStats(message)
	case "remind":
		return b.handleRemind(message)
	case "import":
		return b.handleImport(message)
	case "cancel":
		return b.handleCancel(message)
	default:
		return b.send(tgbotapi.NewMessage(message.Chat.ID, "Unknown command. Use /help to see what I can do."))
	}
}

func (b *Bot) handleStart(message *tgbotapi.Message) error {
	b.bindChat(message.Chat.ID)

	text := "👋 Welcome to the revision tracker!\n\n" +
		"Add a topic and I schedule revisions for it on days " +
		offsetsLine() + " after creation, then remind you when one is due.\n\n" +
		"Use /add to track your first topic, /help for everything else."
	return b.send(tgbotapi.NewMessage(message.Chat.ID, text))
}

func (b *Bot) handleHelp(message *tgbotapi.Message) error {
	text := "📖 Commands\n\n" +
		"/add — track a new topic\n" +
		"/list — all topics with their next revision\n" +
		"/due — topics due for revision now\n" +
		"/done — mark a topic's next revision complete\n" +
		"/delete — remove a topic and its schedule\n" +
		"/stats — categories and last week's revisions\n" +
		"/remind — send the due reminder now\n" +
		"/import — bulk import topics from XLSX/CSV\n" +
		"/cancel — abort the current operation\n\n" +
		"🔄 Revision schedule: days " + offsetsLine() + " after a topic is created."
	return b.send(tgbotapi.NewMessage(message.Chat.ID, text))
}

func (b *Bot) handleAdd(message *tgbotapi.Message) error {
	// "/add Binary Search" skips the name prompt.
	if args := strings.TrimSpace(message.CommandArguments()); args != "" {
		return b.promptCategory(message.Chat.ID, args)
	}

	b.mu.Lock()
	b.pendingAdds[message.Chat.ID] = &pendingAdd{Started: b.clock()}
	b.mu.Unlock()

	msg := tgbotapi.NewMessage(message.Chat.ID, "📝 What topic do you want to track? Send me its name.")
	msg.ReplyMarkup = createKeyboard([][]MenuButton{
		{{Text: "❌ Cancel", CallbackData: callbackCancel}},
	})
	return b.send(msg)
}

// HandleText consumes plain messages, which only matter inside the /add flow.
func (b *Bot) HandleText(ctx context.Context, message *tgbotapi.Message) error {
	b.mu.Lock()
	pending := b.pendingAdds[message.Chat.ID]
	b.mu.Unlock()
	if pending == nil {
		return b.send(tgbotapi.NewMessage(message.Chat.ID, "Use /add to track a topic, or /help for all commands."))
	}

	name := strings.TrimSpace(message.Text)
	if name == "" {
		return b.send(tgbotapi.NewMessage(message.Chat.ID, "The topic name must not be empty. Try again or /cancel."))
	}

	b.mu.Lock()
	delete(b.pendingAdds, message.Chat.ID)
	b.mu.Unlock()
	return b.promptCategory(message.Chat.ID, name)
}

// promptCategory asks for the category of a named topic via inline keyboard.
// The topic name travels inside the pending state, not the callback data,
// which is capped at 64 bytes by Telegram.
func (b *Bot) promptCategory(chatID int64, name string) error {
	b.mu.Lock()
	b.pendingAdds[chatID] = &pendingAdd{Name: name, Started: b.clock()}
	b.mu.Unlock()

	var rows [][]MenuButton
	for _, c := range models.Categories {
		rows = append(rows, []MenuButton{{Text: string(c), CallbackData: callbackCategory + string(c)}})
	}
	rows = append(rows, []MenuButton{{Text: "❌ Cancel", CallbackData: callbackCancel}})

	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("📂 Pick a category for %q:", name))
	msg.ReplyMarkup = createKeyboard(rows)
	return b.send(msg)
}

func (b *Bot) handleList(message *tgbotapi.Message) error {
	all := b.repo.Topics()
	if len(all) == 0 {
		return b.send(tgbotapi.NewMessage(message.Chat.ID, "No topics yet! Use /add to get started."))
	}

	// Optional ephemeral filter: "/list dsa" or a name fragment.
	filter := strings.TrimSpace(message.CommandArguments())
	if filter != "" {
		all = filterTopics(all, filter)
		if len(all) == 0 {
			return b.send(tgbotapi.NewMessage(message.Chat.ID, fmt.Sprintf("No topics match %q.", filter)))
		}
	}

	now := b.clock()
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📚 Your topics (%d):\n\n", len(all)))
	for i, t := range all {
		if i >= b.config.MaxListItems {
			sb.WriteString(fmt.Sprintf("… and %d more. Use /list <filter> to narrow down.\n", len(all)-i))
			break
		}
		sb.WriteString(topicLine(i+1, t, now))
	}
	return b.send(tgbotapi.NewMessage(message.Chat.ID, sb.String()))
}

func (b *Bot) handleDue(message *tgbotapi.Message) error {
	now := b.clock()
	due := b.repo.DueTopics(now)
	if len(due) == 0 {
		return b.send(tgbotapi.NewMessage(message.Chat.ID, "✅ Nothing due right now. Keep it up!"))
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("⏰ Due for revision (%d):\n\n", len(due)))
	for i, t := range due {
		sb.WriteString(topicLine(i+1, t, now))
	}
	sb.WriteString("\nUse /done to mark one complete.")
	return b.send(tgbotapi.NewMessage(message.Chat.ID, sb.String()))
}

func (b *Bot) handleDone(message *tgbotapi.Message) error {
	now := b.clock()
	var rows [][]MenuButton
	for _, t := range b.repo.Topics() {
		next, ok := schedule.NextCheckpoint(t.Revisions)
		if !ok {
			continue // mastered
		}
		label := fmt.Sprintf("%s — day %d", t.Name, next.Day)
		if schedule.IsDue(next, now) {
			label = "⏰ " + label
		}
		rows = append(rows, []MenuButton{{
			Text:         label,
			CallbackData: fmt.Sprintf("%s%s:%d", callbackDone, t.ID, next.Day),
		}})
	}
	if len(rows) == 0 {
		return b.send(tgbotapi.NewMessage(message.Chat.ID, "Every topic is fully revised. 🎉"))
	}
	rows = append(rows, []MenuButton{{Text: "❌ Cancel", CallbackData: callbackCancel}})

	msg := tgbotapi.NewMessage(message.Chat.ID, "Which topic did you revise?")
	msg.ReplyMarkup = createKeyboard(rows)
	return b.send(msg)
}

func (b *Bot) handleDelete(message *tgbotapi.Message) error {
	var rows [][]MenuButton
	for _, t := range b.repo.Topics() {
		rows = append(rows, []MenuButton{{
			Text:         fmt.Sprintf("%s (%s)", t.Name, t.Category),
			CallbackData: callbackDelete + t.ID,
		}})
	}
	if len(rows) == 0 {
		return b.send(tgbotapi.NewMessage(message.Chat.ID, "No topics to delete."))
	}
	rows = append(rows, []MenuButton{{Text: "❌ Cancel", CallbackData: callbackCancel}})

	msg := tgbotapi.NewMessage(message.Chat.ID, "🗑 Which topic should I delete? This also removes its revision progress.")
	msg.ReplyMarkup = createKeyboard(rows)
	return b.send(msg)
}

func (b *Bot) handleStats(message *tgbotapi.Message) error {
	snapshot := b.repo.Topics()
	now := b.clock()
	summary := stats.Summarize(snapshot, now)

	var sb strings.Builder
	sb.WriteString("📊 Your statistics\n\n")
	sb.WriteString(fmt.Sprintf("Topics: %d (due: %d, mastered: %d)\n", summary.Topics, summary.Due, summary.Mastered))
	sb.WriteString(fmt.Sprintf("Revisions completed: %d of %d\n\n", summary.CompletedCheckpoints, summary.TotalCheckpoints))

	sb.WriteString("By category:\n")
	dist := stats.CategoryDistribution(snapshot)
	for _, c := range models.Categories {
		sb.WriteString(fmt.Sprintf("  %s: %d\n", c, dist[c]))
	}

	sb.WriteString("\nRevisions this week:\n")
	for _, dc := range stats.CompletionsByDay(snapshot, now.AddDate(0, 0, -6), now) {
		sb.WriteString(fmt.Sprintf("  %s %s %d\n", dc.Date.Format("Mon Jan 2"), strings.Repeat("▇", dc.Count), dc.Count))
	}
	return b.send(tgbotapi.NewMessage(message.Chat.ID, sb.String()))
}

func (b *Bot) handleRemind(message *tgbotapi.Message) error {
	b.bindChat(message.Chat.ID)
	count := b.repo.DueCount(b.clock())
	if count == 0 {
		return b.send(tgbotapi.NewMessage(message.Chat.ID, "✅ Nothing due right now."))
	}
	return b.SendDueReminder(count)
}

func (b *Bot) handleImport(message *tgbotapi.Message) error {
	b.mu.Lock()
	b.awaitingUpload[message.Chat.ID] = true
	b.mu.Unlock()

	text := "📎 Send me an XLSX or CSV file with one topic per row:\n\n" +
		"  column A: topic name\n" +
		"  column B: category (DSA, System Design or OOPs)\n\n" +
		"The first row is treated as a header. /cancel to abort."
	return b.send(tgbotapi.NewMessage(message.Chat.ID, text))
}

func (b *Bot) handleCancel(message *tgbotapi.Message) error {
	b.mu.Lock()
	delete(b.pendingAdds, message.Chat.ID)
	delete(b.awaitingUpload, message.Chat.ID)
	b.mu.Unlock()
	return b.send(tgbotapi.NewMessage(message.Chat.ID, "Cancelled."))
}

// handleDocument runs the importer on an uploaded spreadsheet.
func (b *Bot) handleDocument(ctx context.Context, message *tgbotapi.Message) error {
	b.mu.Lock()
	awaiting := b.awaitingUpload[message.Chat.ID]
	delete(b.awaitingUpload, message.Chat.ID)
	b.mu.Unlock()
	if !awaiting {
		return b.send(tgbotapi.NewMessage(message.Chat.ID, "Use /import first if you want me to load topics from that file."))
	}

	path, err := b.downloadDocument(message.Document)
	if err != nil {
		log.Printf("import download failed: %v", err)
		return b.send(tgbotapi.NewMessage(message.Chat.ID, "⚠️ I couldn't download that file. Try /import again."))
	}
	defer os.Remove(path)

	config := excel.DefaultImportConfig()
	config.FilePath = path
	result, err := excel.ImportTopics(ctx, b.repo, config)
	if err != nil {
		log.Printf("import failed: %v", err)
		return b.send(tgbotapi.NewMessage(message.Chat.ID, "⚠️ That file couldn't be read as XLSX or CSV."))
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📥 Import finished: %d rows, %d created, %d skipped.\n", result.TotalProcessed, result.Created, result.Skipped))
	for i, e := range result.Errors {
		if i >= 10 {
			sb.WriteString(fmt.Sprintf("… and %d more problems.\n", len(result.Errors)-i))
			break
		}
		sb.WriteString("  " + e + "\n")
	}
	return b.send(tgbotapi.NewMessage(message.Chat.ID, sb.String()))
}

// HandleCallback routes inline keyboard presses.
func (b *Bot) HandleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	// Always answer, or the client shows a spinner forever.
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Printf("error answering callback: %v", err)
	}

	data := cb.Data
	chatID := cb.Message.Chat.ID
	switch {
	case data == callbackCancel:
		b.mu.Lock()
		delete(b.pendingAdds, chatID)
		delete(b.awaitingUpload, chatID)
		b.mu.Unlock()
		return b.send(tgbotapi.NewMessage(chatID, "Cancelled."))

	case strings.HasPrefix(data, callbackCategory):
		return b.finishAdd(ctx, chatID, models.Category(strings.TrimPrefix(data, callbackCategory)))

	case strings.HasPrefix(data, callbackDone):
		return b.completeCheckpoint(ctx, chatID, strings.TrimPrefix(data, callbackDone), true)

	case strings.HasPrefix(data, callbackUndo):
		return b.completeCheckpoint(ctx, chatID, strings.TrimPrefix(data, callbackUndo), false)

	case strings.HasPrefix(data, callbackDelete):
		return b.confirmDelete(chatID, strings.TrimPrefix(data, callbackDelete))

	case strings.HasPrefix(data, callbackConfirmDelete):
		return b.finishDelete(ctx, chatID, strings.TrimPrefix(data, callbackConfirmDelete))
	}
	return nil
}

func (b *Bot) finishAdd(ctx context.Context, chatID int64, category models.Category) error {
	b.mu.Lock()
	pending := b.pendingAdds[chatID]
	delete(b.pendingAdds, chatID)
	b.mu.Unlock()
	if pending == nil || pending.Name == "" {
		return b.send(tgbotapi.NewMessage(chatID, "That add flow expired. Start over with /add."))
	}

	topic, err := b.repo.Create(ctx, pending.Name, category)
	if err != nil {
		var verr *topics.ValidationError
		if errors.As(err, &verr) {
			return b.send(tgbotapi.NewMessage(chatID, "⚠️ "+verr.Error()+". Start over with /add."))
		}
		// Persistence failed but the topic is live for this session.
		log.Printf("create persisted with error: %v", err)
	}

	next, _ := schedule.NextCheckpoint(topic.Revisions)
	text := fmt.Sprintf("✅ Tracking %q (%s).\nFirst revision: %s (day %d).",
		topic.Name, topic.Category, next.DueDate.Format("Mon, Jan 2"), next.Day)
	return b.send(tgbotapi.NewMessage(chatID, text))
}

// completeCheckpoint toggles "id:day" to the given completion state.
func (b *Bot) completeCheckpoint(ctx context.Context, chatID int64, ref string, completed bool) error {
	sep := strings.LastIndex(ref, ":")
	if sep < 0 {
		return fmt.Errorf("malformed checkpoint callback %q", ref)
	}
	topicID := ref[:sep]
	day, err := strconv.Atoi(ref[sep+1:])
	if err != nil {
		return fmt.Errorf("malformed checkpoint day in callback %q", ref)
	}

	explicit := completed
	if err := b.repo.Toggle(ctx, topicID, day, &explicit); err != nil {
		var nf *topics.NotFoundError
		if errors.As(err, &nf) {
			return b.send(tgbotapi.NewMessage(chatID, "⚠️ That topic is gone. Use /list to see the current ones."))
		}
		log.Printf("toggle persisted with error: %v", err)
	}

	topic, err := b.repo.Get(topicID)
	if err != nil {
		return err
	}

	if !completed {
		return b.send(tgbotapi.NewMessage(chatID, fmt.Sprintf("↩️ Unmarked day %d of %q.", day, topic.Name)))
	}

	var text string
	if next, ok := schedule.NextCheckpoint(topic.Revisions); ok {
		text = fmt.Sprintf("✅ Day %d of %q done. Next revision: %s (day %d).",
			day, topic.Name, next.DueDate.Format("Mon, Jan 2"), next.Day)
	} else {
		text = fmt.Sprintf("🏆 Day %d of %q done — topic mastered!", day, topic.Name)
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = createKeyboard([][]MenuButton{
		{{Text: "↩️ Undo", CallbackData: fmt.Sprintf("%s%s:%d", callbackUndo, topic.ID, day)}},
	})
	return b.send(msg)
}

func (b *Bot) confirmDelete(chatID int64, topicID string) error {
	topic, err := b.repo.Get(topicID)
	if err != nil {
		return b.send(tgbotapi.NewMessage(chatID, "That topic is already gone."))
	}

	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf(
		"Delete %q and all its revision progress? This cannot be undone.", topic.Name))
	msg.ReplyMarkup = createKeyboard([][]MenuButton{
		{
			{Text: "🗑 Delete", CallbackData: callbackConfirmDelete + topicID},
			{Text: "❌ Cancel", CallbackData: callbackCancel},
		},
	})
	return b.send(msg)
}

func (b *Bot) finishDelete(ctx context.Context, chatID int64, topicID string) error {
	if err := b.repo.Delete(ctx, topicID); err != nil {
		log.Printf("delete persisted with error: %v", err)
	}
	return b.send(tgbotapi.NewMessage(chatID, "🗑 Deleted."))
}

// topicLine renders one topic for /list and /due.
func topicLine(n int, t models.Topic, now time.Time) string {
	lastRevised := t.CreatedAt
	if at, ok := schedule.LastCompletedAt(t.Revisions); ok {
		lastRevised = at
	}

	next, ok := schedule.NextCheckpoint(t.Revisions)
	var status string
	switch {
	case !ok:
		status = "🏆 mastered"
	case schedule.IsDue(next, now):
		if late := -schedule.DaysUntilDue(next, now); late > 0 {
			status = fmt.Sprintf("⏰ due (day %d, %d days late)", next.Day, late)
		} else {
			status = fmt.Sprintf("⏰ due today (day %d)", next.Day)
		}
	default:
		status = fmt.Sprintf("next in %d days (day %d)", schedule.DaysUntilDue(next, now), next.Day)
	}

	return fmt.Sprintf("%d. %s [%s]\n    %s · last revised %s\n",
		n, t.Name, t.Category, status, lastRevised.Format("Jan 2"))
}

// filterTopics narrows a snapshot by category or name fragment. Pure view
// logic; never persisted.
func filterTopics(all []models.Topic, filter string) []models.Topic {
	if category, ok := models.ParseCategory(filter); ok {
		var out []models.Topic
		for _, t := range all {
			if t.Category == category {
				out = append(out, t)
			}
		}
		return out
	}

	needle := strings.ToLower(filter)
	var out []models.Topic
	for _, t := range all {
		if strings.Contains(strings.ToLower(t.Name), needle) {
			out = append(out, t)
		}
	}
	return out
}

func offsetsLine() string {
	parts := make([]string, len(models.RevisionOffsets))
	for i, d := range models.RevisionOffsets {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ", ")
}
