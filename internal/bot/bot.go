package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"house-expenses/internal/classifier"
	"house-expenses/internal/model"
	"house-expenses/internal/repository"
	"house-expenses/internal/service"
)

type fsmState int

const (
	stateIdle fsmState = iota
	stateAwaitSettlementText
	stateAwaitNewAmount
)

type conversation struct {
	state     fsmState
	expenseID uint
}

const (
	btnCancel          = "↩️ Отмена"
	menuLabelReport    = "📊 Отчёт"
	menuLabelForeman   = "👷 Прораб"
	menuLabelRecent    = "🧾 Последние"
	menuLabelHelp      = "ℹ️ Помощь"
	maxPhotoBytes      = 10 << 20
	defaultRecentLimit = 10
)

// Bot wires the Telegram API to the ledger services and keeps the per-user
// input state machine. The ledger itself never sees any of this.
type Bot struct {
	api           *tgbotapi.BotAPI
	userRepo      *repository.UserRepository
	ledgerSvc     *service.LedgerService
	intakeSvc     *service.IntakeService
	reportSvc     *service.ReportService
	fileClient    *http.Client
	conversations map[int64]conversation
	mu            sync.Mutex
}

func New(token string, userRepo *repository.UserRepository, ledgerSvc *service.LedgerService, intakeSvc *service.IntakeService, reportSvc *service.ReportService) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("[info] bot authorized on account %s", api.Self.UserName)

	return &Bot{
		api:           api,
		userRepo:      userRepo,
		ledgerSvc:     ledgerSvc,
		intakeSvc:     intakeSvc,
		reportSvc:     reportSvc,
		fileClient:    &http.Client{Timeout: 30 * time.Second},
		conversations: make(map[int64]conversation),
	}, nil
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		if update.Message == nil {
			continue
		}
		if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
			continue
		}
		if err := b.handleMessage(ctx, update.Message); err != nil {
			log.Printf("handle message: %v", err)
		}
	}

	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if !msg.IsCommand() && isCancelInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Ввод отменён.")
	}

	if msg.IsCommand() {
		log.Printf("[info] command from %d: /%s %s", msg.From.ID, msg.Command(), msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	if handled, err := b.handleMenuAlias(ctx, msg); handled {
		return err
	}

	switch conv := b.getConversation(msg.From.ID); conv.state {
	case stateAwaitSettlementText:
		b.clearConversation(msg.From.ID)
		return b.handleSettlementText(ctx, msg)
	case stateAwaitNewAmount:
		return b.handleNewAmount(ctx, msg, conv.expenseID)
	default:
		return b.handleIntake(ctx, msg)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start", "help":
		return b.handleStart(ctx, msg)
	case "report":
		return b.handleReport(ctx, msg)
	case "categories":
		return b.handleCategories(ctx, msg)
	case "foreman":
		return b.handleForeman(ctx, msg)
	case "settle":
		return b.handleSettle(ctx, msg)
	case "recent":
		return b.handleRecent(ctx, msg)
	case "edit":
		return b.handleEdit(ctx, msg)
	case "delete":
		return b.handleDelete(ctx, msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Ввод отменён.")
	default:
		return b.sendText(msg.Chat.ID, "Команда не поддерживается. Загляни в /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}

	text := "🏠 <b>Учёт расходов на строительство дома</b>\n\n" +
		"Присылай сообщения о расходах (можно с фото чека), я их учту.\n\n" +
		"<b>Примеры:</b>\n" +
		"• <code>на кирпич 1000</code>\n" +
		"• <code>цемент 500</code>\n" +
		"• <code>дал прорабу 5000</code>\n" +
		"• <code>прораб потратил 2000 на песок</code>\n\n" +
		"<b>Команды:</b>\n" +
		"/report — отчёт по расходам\n" +
		"/categories — список категорий\n" +
		"/foreman — баланс прораба\n" +
		"/settle — закрыть выдачу прорабу\n" +
		"/recent — последние расходы\n" +
		"/edit &lt;id&gt; — изменить сумму расхода\n" +
		"/delete &lt;id&gt; — удалить расход\n" +
		"/cancel — отменить текущий ввод\n" +
		"/help — показать это сообщение"

	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleReport(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	text, err := b.reportSvc.SpendingReport(ctx, user)
	if err != nil {
		return b.sendText(msg.Chat.ID, "Не удалось сформировать отчёт. Попробуйте позже.")
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleCategories(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	categories, err := b.ledgerSvc.ListCategories(ctx, user)
	if err != nil {
		return b.sendText(msg.Chat.ID, "Не удалось получить категории. Попробуйте позже.")
	}
	if len(categories) == 0 {
		return b.sendText(msg.Chat.ID, "📂 Категорий пока нет.")
	}
	var builder strings.Builder
	builder.WriteString("📂 <b>Категории</b>\n")
	for _, category := range categories {
		builder.WriteString(fmt.Sprintf("• %s\n", escape(category.Name)))
	}
	return b.sendText(msg.Chat.ID, strings.TrimSpace(builder.String()))
}

func (b *Bot) handleForeman(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	text, err := b.reportSvc.ForemanSummary(ctx, user)
	if err != nil {
		return b.sendText(msg.Chat.ID, "Не удалось получить баланс. Попробуйте позже.")
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleSettle(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	balance, err := b.ledgerSvc.ForemanBalance(ctx, user)
	if err != nil {
		return b.sendText(msg.Chat.ID, "Не удалось получить баланс. Попробуйте позже.")
	}
	if !balance.Outstanding.IsPositive() {
		return b.sendText(msg.Chat.ID, "✅ Прораб отчитался за все деньги.")
	}

	b.setConversation(msg.From.ID, conversation{state: stateAwaitSettlementText})
	text := fmt.Sprintf(
		"👷 Остаток у прораба: <b>%s</b>\n\nНапишите, на что прораб потратил деньги.\nПример: <code>песок 2000</code> или <code>купил гвозди на 500</code>",
		service.FormatAmount(balance.Outstanding),
	)
	return b.sendWithReplyMarkup(msg.Chat.ID, text, cancelKeyboard())
}

func (b *Bot) handleSettlementText(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	result, err := b.intakeSvc.RecordSettlement(ctx, user, msg.Text)
	if err != nil {
		return b.sendText(msg.Chat.ID, "Не удалось сохранить отчёт. Попробуйте позже.")
	}
	if result.Outcome != service.OutcomeRecorded {
		return b.sendText(msg.Chat.ID, "⚠️ Не удалось понять сумму. Попробуйте /settle ещё раз.")
	}

	recorded := result.Recorded[0]
	text := fmt.Sprintf(
		"✅ Отчёт прораба записан!\nКатегория: <b>%s</b>\nСумма: <b>%s</b>\nОстаток у прораба: <b>%s</b>",
		escape(recorded.Category),
		service.FormatAmount(recorded.Amount),
		service.FormatAmount(result.Balance.Outstanding),
	)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleRecent(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	limit := defaultRecentLimit
	if args := strings.TrimSpace(msg.CommandArguments()); args != "" {
		if parsed, err := strconv.Atoi(args); err == nil && parsed > 0 && parsed <= 50 {
			limit = parsed
		}
	}

	expenses, err := b.ledgerSvc.ListRecent(ctx, user, limit)
	if err != nil {
		return b.sendText(msg.Chat.ID, "Не удалось получить расходы. Попробуйте позже.")
	}
	if len(expenses) == 0 {
		return b.sendText(msg.Chat.ID, "🧾 Расходов пока не записано.")
	}

	var builder strings.Builder
	builder.WriteString("🧾 <b>Последние расходы</b>\n\n")
	for _, expense := range expenses {
		builder.WriteString(fmt.Sprintf("<b>#%d</b> %s — %s\n", expense.ID, escape(expense.Category.Name), service.FormatAmount(expense.Amount)))
		if expense.Description != "" {
			builder.WriteString(fmt.Sprintf("   📝 %s\n", escape(expense.Description)))
		}
		builder.WriteString(fmt.Sprintf("   📅 %s\n", expense.CreatedAt.Format("2006-01-02 15:04")))
	}
	builder.WriteString("\nИзменить сумму: /edit &lt;id&gt; · удалить: /delete &lt;id&gt;")
	return b.sendText(msg.Chat.ID, builder.String())
}

func (b *Bot) handleEdit(ctx context.Context, msg *tgbotapi.Message) error {
	expenseID, ok := parseIDArgument(msg.CommandArguments())
	if !ok {
		return b.sendText(msg.Chat.ID, "Укажи ID расхода: /edit 12 (список — в /recent)")
	}

	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	expense, err := b.ledgerSvc.GetExpense(ctx, user, expenseID)
	if err != nil {
		if errors.Is(err, service.ErrRecordNotFound) {
			return b.sendText(msg.Chat.ID, "Расход не найден.")
		}
		return b.sendText(msg.Chat.ID, "Не удалось найти расход. Попробуйте позже.")
	}

	b.setConversation(msg.From.ID, conversation{state: stateAwaitNewAmount, expenseID: expense.ID})
	text := fmt.Sprintf(
		"✏️ Расход <b>#%d</b> (%s, %s).\nВведите новую сумму:",
		expense.ID, escape(expense.Category.Name), service.FormatAmount(expense.Amount),
	)
	return b.sendWithReplyMarkup(msg.Chat.ID, text, cancelKeyboard())
}

func (b *Bot) handleNewAmount(ctx context.Context, msg *tgbotapi.Message, expenseID uint) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	amount, err := parseAmountInput(msg.Text)
	if err != nil {
		return b.sendWithReplyMarkup(msg.Chat.ID, "Сумма должна быть положительным числом, например <code>1500</code> или <code>99.90</code>.", cancelKeyboard())
	}

	b.clearConversation(msg.From.ID)

	expense, err := b.ledgerSvc.UpdateExpenseAmount(ctx, user, expenseID, amount)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRecordNotFound):
			return b.sendText(msg.Chat.ID, "Расход не найден или уже удалён.")
		case errors.Is(err, service.ErrInvalidAmount):
			return b.sendText(msg.Chat.ID, "Сумма должна быть положительной.")
		default:
			return b.sendText(msg.Chat.ID, "Не удалось обновить расход. Попробуйте позже.")
		}
	}

	log.Printf("[info] expense amount updated id=%d user=%d", expense.ID, user.ID)
	return b.sendText(msg.Chat.ID, fmt.Sprintf(
		"✏️ Сумма расхода <b>#%d</b> обновлена: %s",
		expense.ID, service.FormatAmount(expense.Amount),
	))
}

func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message) error {
	expenseID, ok := parseIDArgument(msg.CommandArguments())
	if !ok {
		return b.sendText(msg.Chat.ID, "Укажи ID расхода: /delete 12 (список — в /recent)")
	}

	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	deleted, err := b.ledgerSvc.DeleteExpense(ctx, user, expenseID)
	if err != nil {
		return b.sendText(msg.Chat.ID, "Не удалось удалить расход. Попробуйте позже.")
	}
	if !deleted {
		return b.sendText(msg.Chat.ID, "Расход не найден.")
	}

	log.Printf("[info] expense deleted id=%d user=%d", expenseID, user.ID)

	balance, err := b.ledgerSvc.ForemanBalance(ctx, user)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("🗑 Расход #%d удалён.", expenseID))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf(
		"🗑 Расход #%d удалён.\nОстаток у прораба: <b>%s</b>",
		expenseID, service.FormatAmount(balance.Outstanding),
	))
}

func (b *Bot) handleIntake(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	text := msg.Text
	var photo []byte
	if len(msg.Photo) > 0 {
		if text == "" {
			text = msg.Caption
		}
		photo, err = b.downloadPhoto(msg.Photo[len(msg.Photo)-1])
		if err != nil {
			log.Printf("download photo: %v", err)
		}
	}

	result, err := b.intakeSvc.Record(ctx, user, text, photo)
	if err != nil {
		return b.sendText(msg.Chat.ID, "Не удалось сохранить запись. Попробуйте позже.")
	}
	return b.sendText(msg.Chat.ID, renderIntakeResult(result))
}

func renderIntakeResult(result *service.IntakeResult) string {
	switch result.Outcome {
	case service.OutcomeEmpty:
		return "Отправь сообщение о расходе, например <code>на кирпич 1000</code>."
	case service.OutcomeNothingUnderstood:
		if result.Skipped > 0 && result.Unrecognized == 0 {
			return "⚠️ Не удалось понять сумму или категорию. Попробуйте ещё раз."
		}
		return "🤔 Не удалось понять сообщение.\nПопробуйте написать, например:\n" +
			"• <code>на кирпич 1000</code>\n" +
			"• <code>дал прорабу 5000</code>\n" +
			"• <code>прораб потратил 2000 на песок</code>"
	}

	var builder strings.Builder
	for _, recorded := range result.Recorded {
		switch recorded.Kind {
		case classifier.KindForemanGive:
			builder.WriteString(fmt.Sprintf("💰 Записано: выдано прорабу <b>%s</b>\n", service.FormatAmount(recorded.Amount)))
		case classifier.KindForemanReport:
			builder.WriteString(fmt.Sprintf("✅ Отчёт прораба: <b>%s</b> — %s\n", escape(recorded.Category), service.FormatAmount(recorded.Amount)))
		default:
			builder.WriteString(fmt.Sprintf("✅ Расход записан: <b>%s</b> — %s\n", escape(recorded.Category), service.FormatAmount(recorded.Amount)))
		}
	}
	if result.Skipped > 0 {
		builder.WriteString(fmt.Sprintf("⚠️ Пропущено позиций: %d\n", result.Skipped))
	}
	if result.Balance != nil {
		builder.WriteString(fmt.Sprintf("\n👷 Остаток у прораба: <b>%s</b>", service.FormatAmount(result.Balance.Outstanding)))
	}
	return strings.TrimSpace(builder.String())
}

// SendSpendingReports sends the spending report to every known user.
func (b *Bot) SendSpendingReports(ctx context.Context) error {
	users, err := b.userRepo.ListAll(ctx)
	if err != nil {
		return err
	}
	for _, user := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		text, err := b.reportSvc.SpendingReport(ctx, &user)
		if err != nil {
			log.Printf("build report for user %d: %v", user.TelegramID, err)
			continue
		}
		if err := b.sendText(user.TelegramID, text); err != nil {
			log.Printf("send report to %d: %v", user.TelegramID, err)
		}
	}
	return nil
}

func (b *Bot) downloadPhoto(size tgbotapi.PhotoSize) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(size.FileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file url: %w", err)
	}
	resp, err := b.fileClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes))
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	switch strings.TrimSpace(msg.Text) {
	case menuLabelReport:
		return true, b.handleReport(ctx, msg)
	case menuLabelForeman:
		return true, b.handleForeman(ctx, msg)
	case menuLabelRecent:
		return true, b.handleRecent(ctx, msg)
	case menuLabelHelp:
		return true, b.handleStart(ctx, msg)
	default:
		return false, nil
	}
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*model.User, error) {
	return b.userRepo.UpsertFromTelegram(ctx, from.ID, from.FirstName, from.LastName, from.UserName)
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) getConversation(userID int64) conversation {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) setConversation(userID int64, conv conversation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = conv
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelReport),
			tgbotapi.NewKeyboardButton(menuLabelForeman),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelRecent),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancel),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func isCancelInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancel) || value == "отмена"
}

func parseIDArgument(args string) (uint, bool) {
	value, err := strconv.ParseUint(strings.TrimSpace(args), 10, 64)
	if err != nil || value == 0 {
		return 0, false
	}
	return uint(value), true
}

// parseAmountInput parses a user-typed amount, accepting a comma as the
// decimal separator.
func parseAmountInput(text string) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(text), ",", ".")
	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, err
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}

func escape(s string) string {
	return html.EscapeString(s)
}
