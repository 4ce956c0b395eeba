package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/conceptbot/internal/excel"
	"github.com/example/conceptbot/pkg/models"
)

// Callback payload prefixes.
const (
	callbackReveal = "reveal_"
	callbackAnswer = "answer_"
)

// Grades offered after the answer is revealed. Each maps to the
// correctness/confidence pair fed into the scheduler.
var grades = map[string]struct {
	Correct    bool
	Confidence models.Confidence
}{
	"knew":   {Correct: true, Confidence: models.ConfidenceHigh},
	"unsure": {Correct: true, Confidence: models.ConfidenceLow},
	"guess":  {Correct: true, Confidence: models.ConfidenceNone},
	"missed": {Correct: false, Confidence: models.ConfidenceNone},
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) error {
	if message.From == nil {
		return nil
	}

	user, err := b.users.EnsureUser(ctx, &models.User{
		ID:        message.From.ID,
		Username:  message.From.UserName,
		FirstName: message.From.FirstName,
		LastName:  message.From.LastName,
		IsAdmin:   b.cfg.IsAdmin(message.From.ID),
	})
	if err != nil {
		return err
	}

	if message.Document != nil {
		return b.handleDocument(ctx, user, message)
	}
	if !message.IsCommand() {
		b.sendText(message.Chat.ID, "I don't understand. Use /help to see available commands.")
		return nil
	}

	switch message.Command() {
	case "start":
		return b.handleStart(message)
	case "help":
		return b.handleStart(message)
	case "review":
		return b.askNextQuestion(ctx, user.ID, message.Chat.ID)
	case "stats":
		return b.handleStats(ctx, user.ID, message.Chat.ID)
	case "due":
		return b.handleDue(ctx, user.ID, message.Chat.ID)
	case "import":
		return b.handleImportCommand(user, message)
	default:
		b.sendText(message.Chat.ID, "Unknown command. Use /help to see available commands.")
		return nil
	}
}

func (b *Bot) handleStart(message *tgbotapi.Message) error {
	welcomeText := "👋 Welcome! I quiz you on your concepts and schedule reviews so you see " +
		"each one right before you'd forget it.\n\n" +
		"Commands:\n" +
		"/review — answer the next due question\n" +
		"/due — how many concepts are waiting\n" +
		"/stats — your mastery breakdown\n" +
		"/import — (admin) upload an Excel/CSV file with concepts"
	return b.send(tgbotapi.NewMessage(message.Chat.ID, welcomeText))
}

// askNextQuestion pulls one due concept and presents it with a reveal button.
func (b *Bot) askNextQuestion(ctx context.Context, userID, chatID int64) error {
	concept, err := b.orch.NextDueQuestion(ctx, userID)
	if err != nil {
		return err
	}
	if concept == nil {
		b.sendText(chatID, "🎉 Nothing is due right now. Come back later!")
		return nil
	}

	b.mu.Lock()
	b.pending[chatID] = pendingQuestion{ConceptID: concept.ID, AskedAt: b.now()}
	b.mu.Unlock()

	text := fmt.Sprintf("📝 *%s*", concept.Question)
	if concept.Category != "" {
		text = fmt.Sprintf("📝 [%s] *%s*", concept.Category, concept.Question)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = createKeyboard([][]MenuButton{
		{{Text: "Show answer", CallbackData: fmt.Sprintf("%s%d", callbackReveal, concept.ID)}},
	})
	return b.send(msg)
}

func (b *Bot) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	if callback.Message == nil || callback.From == nil {
		return fmt.Errorf("invalid callback: required fields are missing")
	}

	// Always answer the callback query to remove the loading state.
	if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		b.log.Warnw("answer callback", "error", err)
	}

	data := callback.Data
	switch {
	case strings.HasPrefix(data, callbackReveal):
		conceptID, err := strconv.ParseInt(strings.TrimPrefix(data, callbackReveal), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid concept ID in callback: %w", err)
		}
		return b.revealAnswer(ctx, callback, conceptID)

	case strings.HasPrefix(data, callbackAnswer):
		parts := strings.SplitN(strings.TrimPrefix(data, callbackAnswer), "_", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid answer callback %q", data)
		}
		conceptID, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid concept ID in callback: %w", err)
		}
		return b.gradeAnswer(ctx, callback, conceptID, parts[1])

	default:
		b.sendText(callback.Message.Chat.ID, "⚠️ Unknown action")
		return nil
	}
}

// revealAnswer edits the question message to show the answer plus the four
// grading buttons.
func (b *Bot) revealAnswer(ctx context.Context, callback *tgbotapi.CallbackQuery, conceptID int64) error {
	concept, err := b.orch.Concept(ctx, callback.From.ID, conceptID)
	if err != nil {
		return err
	}

	text := fmt.Sprintf("📝 *%s*\n\n💡 %s\n\nHow did you do?", concept.Question, concept.Answer)
	keyboard := createKeyboard([][]MenuButton{
		{
			{Text: "✅ Knew it", CallbackData: answerCallback(conceptID, "knew")},
			{Text: "🤔 Unsure", CallbackData: answerCallback(conceptID, "unsure")},
		},
		{
			{Text: "🎲 Guessed", CallbackData: answerCallback(conceptID, "guess")},
			{Text: "❌ Didn't know", CallbackData: answerCallback(conceptID, "missed")},
		},
	})

	edit := tgbotapi.NewEditMessageTextAndMarkup(callback.Message.Chat.ID, callback.Message.MessageID, text, keyboard)
	edit.ParseMode = tgbotapi.ModeMarkdown
	return b.send(edit)
}

// gradeAnswer records the graded answer and reports the new schedule.
func (b *Bot) gradeAnswer(ctx context.Context, callback *tgbotapi.CallbackQuery, conceptID int64, grade string) error {
	g, ok := grades[grade]
	if !ok {
		return fmt.Errorf("unknown grade %q", grade)
	}

	chatID := callback.Message.Chat.ID

	b.mu.Lock()
	pending, hasPending := b.pending[chatID]
	delete(b.pending, chatID)
	b.mu.Unlock()

	var responseTime float64
	if hasPending && pending.ConceptID == conceptID {
		responseTime = b.now().Sub(pending.AskedAt).Seconds()
	}

	result, err := b.orch.RecordAnswer(ctx, callback.From.ID, conceptID, g.Correct, g.Confidence, responseTime)
	if err != nil {
		return err
	}

	text := fmt.Sprintf("%s Status: *%s*. Next review in %s.",
		gradeEmoji(g.Correct), result.Status, formatInterval(result.IntervalDays))
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if err := b.send(msg); err != nil {
		return err
	}

	// Roll straight into the next due question, if any.
	return b.askNextQuestion(ctx, callback.From.ID, chatID)
}

func (b *Bot) handleStats(ctx context.Context, userID, chatID int64) error {
	summary, err := b.orch.StatusSummary(ctx, userID)
	if err != nil {
		return err
	}
	if summary.Total == 0 {
		b.sendText(chatID, "No concepts yet. Import some with /import to get started!")
		return nil
	}

	text := fmt.Sprintf(
		"📊 *Your progress* (%d concepts)\n\n"+
			"🏆 Stable: %d\n"+
			"🌱 Fragile: %d\n"+
			"📖 Learning: %d\n"+
			"💤 Lapsed: %d",
		summary.Total, summary.Stable, summary.Fragile, summary.Learning, summary.Lapsed)
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	return b.send(msg)
}

func (b *Bot) handleDue(ctx context.Context, userID, chatID int64) error {
	due, err := b.orch.DueConcepts(ctx, userID)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		b.sendText(chatID, "🎉 Nothing is due right now.")
		return nil
	}
	b.sendText(chatID, fmt.Sprintf("⏰ %d concept(s) due. Use /review to start.", len(due)))
	return nil
}

func (b *Bot) handleImportCommand(user *models.User, message *tgbotapi.Message) error {
	if !user.IsAdmin {
		b.sendText(message.Chat.ID, "This command is only available for administrators.")
		return nil
	}

	b.mu.Lock()
	b.awaitingUpload[message.Chat.ID] = true
	b.mu.Unlock()

	b.sendText(message.Chat.ID,
		"Send an .xlsx or .csv file with columns: title, category, question, answer (header row skipped).")
	return nil
}

func (b *Bot) handleDocument(ctx context.Context, user *models.User, message *tgbotapi.Message) error {
	b.mu.Lock()
	awaiting := b.awaitingUpload[message.Chat.ID]
	delete(b.awaitingUpload, message.Chat.ID)
	b.mu.Unlock()

	if !awaiting || !user.IsAdmin {
		b.sendText(message.Chat.ID, "Use /import first if you want to upload concepts.")
		return nil
	}

	path, err := b.downloadDocument(message.Document)
	if err != nil {
		return err
	}
	defer os.Remove(path)

	result, err := excel.ImportConcepts(ctx, b.store, user.ID, excel.DefaultImportConfig(path))
	if err != nil {
		return err
	}

	text := fmt.Sprintf("✅ Import finished: %d imported, %d skipped of %d rows.",
		result.Imported, result.Skipped, result.TotalProcessed)
	if len(result.Errors) > 0 {
		text += fmt.Sprintf("\n⚠️ %d row(s) failed, first: %s", len(result.Errors), result.Errors[0])
	}
	b.sendText(message.Chat.ID, text)
	return nil
}

// downloadDocument fetches an uploaded file into a temp path preserving the
// original extension, so the importer can pick the right format.
func (b *Bot) downloadDocument(doc *tgbotapi.Document) (string, error) {
	url, err := b.api.GetFileDirectURL(doc.FileID)
	if err != nil {
		return "", fmt.Errorf("resolve file URL: %w", err)
	}

	resp, err := http.Get(url)
	if err != nil {
		return "", fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	tmp, err := os.CreateTemp("", "import-*"+filepath.Ext(doc.FileName))
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer tmp.Close()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("save file: %w", err)
	}
	return tmp.Name(), nil
}

func answerCallback(conceptID int64, grade string) string {
	return fmt.Sprintf("%s%d_%s", callbackAnswer, conceptID, grade)
}

func gradeEmoji(correct bool) string {
	if correct {
		return "✅"
	}
	return "📌"
}

// formatInterval renders a fractional day count for humans.
func formatInterval(days float64) string {
	switch {
	case days < 1.0/24:
		return fmt.Sprintf("%.0f minutes", days*24*60)
	case days < 1:
		return fmt.Sprintf("%.1f hours", days*24)
	default:
		return fmt.Sprintf("%.1f days", days)
	}
}
