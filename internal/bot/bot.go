package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"gorm.io/gorm"

	"habit-points/internal/config"
	"habit-points/internal/export"
	"habit-points/internal/model"
	"habit-points/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageTitle
	stagePoints
	stageTarget
	stageRoutine
)

const (
	cbIncPrefix      = "inc:"
	cbDecPrefix      = "dec:"
	cbDeletePrefix   = "delete:"
	cbConfirmPrefix  = "confirm:"
	cbCancel         = "cancel"
	cbTemplatePrefix = "tpl:"
	cbApplyPrefix    = "use:"
)

const (
	btnYes            = "Yes"
	btnNo             = "No"
	btnCancelDialog   = "⏪ Cancel input"
	menuLabelNewTask  = "➕ New task"
	menuLabelToday    = "📋 Today"
	menuLabelTemplate = "📦 Templates"
	menuLabelHelp     = "ℹ️ Help"
)

type conversationState struct {
	stage conversationStage
	input service.TaskInput
}

// Bot aggregates Telegram API with the tracker services.
type Bot struct {
	api           *tgbotapi.BotAPI
	days          *service.DayService
	taskSvc       *service.TaskService
	completionSvc *service.CompletionService
	templateSvc   *service.TemplateService
	positionSvc   *service.PositionService
	config        *config.Config
	conversations map[int64]*conversationState
	mu            sync.Mutex
}

func New(token string, days *service.DayService, taskSvc *service.TaskService, completionSvc *service.CompletionService, templateSvc *service.TemplateService, positionSvc *service.PositionService, cfg *config.Config) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("[info] bot authorized on account %s", api.Self.UserName)

	return &Bot{
		api:           api,
		days:          days,
		taskSvc:       taskSvc,
		completionSvc: completionSvc,
		templateSvc:   templateSvc,
		positionSvc:   positionSvc,
		config:        cfg,
		conversations: make(map[int64]*conversationState),
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
		switch {
		case update.CallbackQuery != nil:
			if update.CallbackQuery.Message == nil || !b.allowed(update.CallbackQuery.Message.Chat.ID) {
				continue
			}
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				log.Printf("handle callback: %v", err)
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if !b.allowed(update.Message.Chat.ID) {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				log.Printf("handle message: %v", err)
			}
		}
	}

	return nil
}

// allowed enforces the optional single-owner chat restriction.
func (b *Bot) allowed(chatID int64) bool {
	return b.config.AllowedChatID == 0 || b.config.AllowedChatID == chatID
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Task creation cancelled.")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		log.Printf("[info] command from %d: /%s %s", msg.From.ID, msg.Command(), msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	if b.hasConversation(msg.From.ID) {
		return b.handleConversation(ctx, msg)
	}

	return b.sendText(msg.Chat.ID, "I didn't get that. Use /add to create a task or /help for the command list.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "today":
		return b.sendToday(ctx, msg.Chat.ID)
	case "add":
		return b.startNewTaskConversation(msg)
	case "done":
		return b.handleDone(ctx, msg)
	case "undo":
		return b.handleUndo(ctx, msg)
	case "templates":
		return b.handleTemplates(ctx, msg)
	case "savetemplate":
		return b.handleSaveTemplate(ctx, msg)
	case "apply":
		return b.handleApply(ctx, msg)
	case "move":
		return b.handleMove(ctx, msg)
	case "delete":
		return b.handleDelete(ctx, msg)
	case "duplicate":
		return b.handleDuplicate(ctx, msg)
	case "export":
		return b.handleExport(ctx, msg)
	case "progress":
		return b.handleProgress(ctx, msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Task creation cancelled.")
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	date, err := b.days.Today(ctx)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not open today: %s", escape(err.Error())))
	}

	if b.config.SeedDemoTasks {
		if err := b.taskSvc.EnsureDefaultTasks(ctx, date); err != nil {
			log.Printf("seed default tasks: %v", err)
		}
	}

	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "there"
	}

	text := fmt.Sprintf(
		"👋 Hi, %s!\n<b>I track your daily habits and score them with points.</b>\n\nCommands:\n"+
			"• /add — create a new task\n"+
			"• /today — today's tasks with +/− buttons\n"+
			"• /done &lt;id&gt; — log one completion\n"+
			"• /undo &lt;id&gt; — take one back\n"+
			"• /templates — reusable templates\n"+
			"• /progress — points vs daily goal\n"+
			"• /help — all commands",
		escape(name),
	)

	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "ℹ️ <b>Commands</b>\n" +
		"• /add — create a task step by step\n" +
		"• /today — today's list, tap ➕/➖ to log completions\n" +
		"• /done &lt;id&gt; — log one completion for task id\n" +
		"• /undo &lt;id&gt; — remove one completion\n" +
		"• /move &lt;from&gt; &lt;to&gt; — reorder today's list (1-based)\n" +
		"• /delete &lt;id&gt; — delete a task\n" +
		"• /duplicate &lt;id&gt; — copy a task with progress reset\n" +
		"• /savetemplate &lt;id&gt; — keep a task as a reusable template\n" +
		"• /templates — list templates, tap to apply to today\n" +
		"• /apply — materialize all routine templates onto today\n" +
		"• /export [csv|json] — download today's snapshot\n" +
		"• /progress — points against the daily goal\n" +
		"• /cancel — abort the current input"
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) startNewTaskConversation(msg *tgbotapi.Message) error {
	b.setConversation(msg.From.ID, &conversationState{stage: stageTitle})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 New task.\n<b>Step 1:</b> what is it called?", cancelKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageTitle:
		if text == "" {
			return b.sendWithReplyMarkup(msg.Chat.ID, "The title cannot be empty. Try again.", cancelKeyboard())
		}
		state.input.Title = text
		state.stage = stagePoints
		return b.sendWithReplyMarkup(msg.Chat.ID, "💎 How many points per completion? (e.g. <code>3</code>)", cancelKeyboard())
	case stagePoints:
		points, err := strconv.ParseFloat(text, 64)
		if err != nil || points < 0 {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Points must be a non-negative number, e.g. <code>2.5</code>.", cancelKeyboard())
		}
		state.input.Points = points
		state.stage = stageTarget
		return b.sendWithReplyMarkup(msg.Chat.ID, "🎯 How many completions count as done? (1 or more)", cancelKeyboard())
	case stageTarget:
		target, err := strconv.Atoi(text)
		if err != nil || target < 1 {
			return b.sendText(msg.Chat.ID, "The target must be a whole number, at least 1.")
		}
		state.input.Target = target
		state.stage = stageRoutine
		return b.sendWithReplyMarkup(msg.Chat.ID, "🔁 Is this a recurring routine?", yesNoKeyboard())
	case stageRoutine:
		lower := strings.ToLower(text)
		switch lower {
		case "yes", "y", strings.ToLower(btnYes):
			state.input.Routine = true
		case "no", "n", "-", strings.ToLower(btnNo):
			state.input.Routine = false
		default:
			return b.sendWithReplyMarkup(msg.Chat.ID, "Tap Yes or No.", yesNoKeyboard())
		}
		err := b.finishTaskCreation(ctx, state.input, msg.Chat.ID)
		b.clearConversation(msg.From.ID)
		return err
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Dialog reset. Start over with /add.")
	}
}

func (b *Bot) finishTaskCreation(ctx context.Context, input service.TaskInput, chatID int64) error {
	task, err := b.taskSvc.Create(ctx, input)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Could not save the task: %s", escape(err.Error())))
	}

	log.Printf("[info] task created id=%d routine=%t", task.ID, task.Routine)

	var summary strings.Builder
	summary.WriteString("✅ <b>Task saved</b>\n")
	summary.WriteString(fmt.Sprintf("• <b>ID:</b> %d\n", task.ID))
	summary.WriteString(fmt.Sprintf("• <b>Title:</b> %s\n", escape(task.Title)))
	summary.WriteString(fmt.Sprintf("• <b>Points:</b> %g per completion\n", task.Points))
	summary.WriteString(fmt.Sprintf("• <b>Target:</b> %d (max %d)\n", task.Target, task.Max))
	if task.Routine {
		summary.WriteString("• <b>Routine:</b> yes — /savetemplate to reuse it daily\n")
	}

	reply := tgbotapi.NewMessage(chatID, strings.TrimSpace(summary.String()))
	reply.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	reply.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(reply); err != nil {
		return err
	}
	return b.sendToday(ctx, chatID)
}

func (b *Bot) handleDone(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, err := parseIDArg(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Give me a task id: /done 12")
	}
	return b.incrementAndReport(ctx, msg.Chat.ID, taskID)
}

func (b *Bot) handleUndo(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, err := parseIDArg(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Give me a task id: /undo 12")
	}
	return b.decrementAndReport(ctx, msg.Chat.ID, taskID)
}

func (b *Bot) incrementAndReport(ctx context.Context, chatID int64, taskID uint) error {
	task, date, err := b.completionSvc.Increment(ctx, taskID, time.Now())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return b.sendText(chatID, "Task not found.")
		}
		return b.sendText(chatID, fmt.Sprintf("Error: %s", escape(err.Error())))
	}

	if date == nil {
		return b.sendText(chatID, fmt.Sprintf("«%s» is already at its cap (%d/%d).", escape(task.Title), task.Completed, task.Max))
	}

	text := fmt.Sprintf("%s «%s» %d/%d · day total <b>%.0f</b>",
		stateIcon(task), escape(task.Title), task.Completed, task.Target, date.CachedPoints)
	return b.sendText(chatID, text)
}

func (b *Bot) decrementAndReport(ctx context.Context, chatID int64, taskID uint) error {
	task, date, err := b.completionSvc.Decrement(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return b.sendText(chatID, "Task not found.")
		}
		return b.sendText(chatID, fmt.Sprintf("Error: %s", escape(err.Error())))
	}

	if date == nil {
		return b.sendText(chatID, fmt.Sprintf("«%s» has no completions to undo.", escape(task.Title)))
	}

	text := fmt.Sprintf("↩️ «%s» %d/%d · day total <b>%.0f</b>",
		escape(task.Title), task.Completed, task.Target, date.CachedPoints)
	return b.sendText(chatID, text)
}

func (b *Bot) handleTemplates(ctx context.Context, msg *tgbotapi.Message) error {
	templates, err := b.templateSvc.List(ctx, nil)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not load templates: %s", escape(err.Error())))
	}
	if len(templates) == 0 {
		return b.sendText(msg.Chat.ID, "No templates yet. Save one with /savetemplate <id>.")
	}

	var builder strings.Builder
	builder.WriteString("📦 <b>Templates</b>\nTap one to add it to today.\n\n")

	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, tpl := range templates {
		mark := ""
		if tpl.Routine {
			mark = " ♻️"
		}
		builder.WriteString(fmt.Sprintf("• <b>#%d</b> %s%s — %g pts × %d\n", tpl.ID, escape(tpl.Title), mark, tpl.Points, tpl.Target))
		buttons = append(buttons, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("➕ %s", shortTitle(tpl.Title, 24)),
				fmt.Sprintf("%s%d", cbApplyPrefix, tpl.ID),
			),
		})
	}

	reply := tgbotapi.NewMessage(msg.Chat.ID, strings.TrimSpace(builder.String()))
	reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	reply.ParseMode = tgbotapi.ModeHTML
	_, err = b.api.Send(reply)
	return err
}

func (b *Bot) handleSaveTemplate(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, err := parseIDArg(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Give me a task id: /savetemplate 12")
	}

	template, err := b.templateSvc.CopyAsTemplate(ctx, taskID)
	if err != nil {
		if errors.Is(err, service.ErrDuplicateTemplate) {
			return b.sendText(msg.Chat.ID, "A template with that title already exists — nothing saved.")
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return b.sendText(msg.Chat.ID, "Task not found.")
		}
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Error: %s", escape(err.Error())))
	}

	return b.sendText(msg.Chat.ID, fmt.Sprintf("📦 Saved «%s» as template #%d.", escape(template.Title), template.ID))
}

func (b *Bot) handleApply(ctx context.Context, msg *tgbotapi.Message) error {
	date, err := b.days.Today(ctx)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Error: %s", escape(err.Error())))
	}

	applied, err := b.templateSvc.ApplyTemplates(ctx, date, true)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Applied %d template(s) before an error: %s", applied, escape(err.Error())))
	}
	if applied == 0 {
		return b.sendText(msg.Chat.ID, "All routine templates are already on today's list.")
	}
	if err := b.sendText(msg.Chat.ID, fmt.Sprintf("♻️ Added %d routine(s) to today.", applied)); err != nil {
		return err
	}
	return b.sendToday(ctx, msg.Chat.ID)
}

func (b *Bot) handleMove(ctx context.Context, msg *tgbotapi.Message) error {
	fields := strings.Fields(msg.CommandArguments())
	if len(fields) != 2 {
		return b.sendText(msg.Chat.ID, "Usage: /move <from> <to> — positions as shown in /today, starting at 1.")
	}
	from, err1 := strconv.Atoi(fields[0])
	to, err2 := strconv.Atoi(fields[1])
	if err1 != nil || err2 != nil {
		return b.sendText(msg.Chat.ID, "Both positions must be numbers.")
	}

	date, err := b.days.Today(ctx)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Error: %s", escape(err.Error())))
	}

	// The visible list is 1-based for humans.
	if _, err := b.positionSvc.Reorder(ctx, date.ID, from-1, to-1); err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not reorder: %s", escape(err.Error())))
	}
	return b.sendToday(ctx, msg.Chat.ID)
}

func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, err := parseIDArg(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Give me a task id: /delete 12")
	}

	return b.askDeleteConfirmation(ctx, msg.Chat.ID, taskID)
}

func (b *Bot) askDeleteConfirmation(ctx context.Context, chatID int64, taskID uint) error {
	task, err := b.taskSvc.Get(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return b.sendText(chatID, "Task not found.")
		}
		return b.sendText(chatID, fmt.Sprintf("Error: %s", escape(err.Error())))
	}

	text := fmt.Sprintf("Delete «%s» (#%d)?", escape(task.Title), task.ID)
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 Delete", fmt.Sprintf("%s%d", cbConfirmPrefix, task.ID)),
			tgbotapi.NewInlineKeyboardButtonData("↩️ Keep", cbCancel),
		),
	)
	return b.sendWithReplyMarkup(chatID, text, markup)
}

func (b *Bot) handleDuplicate(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, err := parseIDArg(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Give me a task id: /duplicate 12")
	}

	copied, err := b.taskSvc.Duplicate(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return b.sendText(msg.Chat.ID, "Task not found.")
		}
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Error: %s", escape(err.Error())))
	}

	if err := b.sendText(msg.Chat.ID, fmt.Sprintf("📄 Copied «%s» as #%d.", escape(copied.Title), copied.ID)); err != nil {
		return err
	}
	return b.sendToday(ctx, msg.Chat.ID)
}

func (b *Bot) handleExport(ctx context.Context, msg *tgbotapi.Message) error {
	format := strings.ToLower(strings.TrimSpace(msg.CommandArguments()))
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "json" {
		return b.sendText(msg.Chat.ID, "Supported formats: /export csv or /export json.")
	}

	date, tasks, err := b.todaySnapshot(ctx)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Error: %s", escape(err.Error())))
	}

	var buf bytes.Buffer
	if format == "csv" {
		err = export.ToCSV(&buf, date, tasks)
	} else {
		err = export.ToJSON(&buf, date, tasks)
	}
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Export failed: %s", escape(err.Error())))
	}

	name := fmt.Sprintf("habits-%s.%s", date.Day.Format("2006-01-02"), format)
	doc := tgbotapi.NewDocument(msg.Chat.ID, tgbotapi.FileBytes{Name: name, Bytes: buf.Bytes()})
	_, err = b.api.Send(doc)
	return err
}

func (b *Bot) handleProgress(ctx context.Context, msg *tgbotapi.Message) error {
	date, tasks, err := b.todaySnapshot(ctx)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Error: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, progressText(date, tasks))
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}

	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Printf("callback ack: %v", err)
	}

	data := cb.Data
	chatID := cb.Message.Chat.ID

	switch {
	case strings.HasPrefix(data, cbIncPrefix):
		taskID, err := parseCallbackID(data, cbIncPrefix)
		if err != nil {
			return nil
		}
		return b.incrementAndReport(ctx, chatID, taskID)
	case strings.HasPrefix(data, cbDecPrefix):
		taskID, err := parseCallbackID(data, cbDecPrefix)
		if err != nil {
			return nil
		}
		return b.decrementAndReport(ctx, chatID, taskID)
	case strings.HasPrefix(data, cbDeletePrefix):
		taskID, err := parseCallbackID(data, cbDeletePrefix)
		if err != nil {
			return nil
		}
		return b.askDeleteConfirmation(ctx, chatID, taskID)
	case strings.HasPrefix(data, cbConfirmPrefix):
		taskID, err := parseCallbackID(data, cbConfirmPrefix)
		if err != nil {
			return nil
		}
		return b.deleteTaskAndRefresh(ctx, chatID, taskID)
	case strings.HasPrefix(data, cbApplyPrefix):
		templateID, err := parseCallbackID(data, cbApplyPrefix)
		if err != nil {
			return nil
		}
		return b.applyTemplateAndRefresh(ctx, chatID, templateID)
	case strings.HasPrefix(data, cbTemplatePrefix):
		taskID, err := parseCallbackID(data, cbTemplatePrefix)
		if err != nil {
			return nil
		}
		_, err = b.templateSvc.CopyAsTemplate(ctx, taskID)
		if errors.Is(err, service.ErrDuplicateTemplate) {
			return b.sendText(chatID, "A template with that title already exists.")
		}
		if err != nil {
			return b.sendText(chatID, fmt.Sprintf("Error: %s", escape(err.Error())))
		}
		return b.sendText(chatID, "📦 Template saved.")
	case data == cbCancel:
		return nil
	default:
		return nil
	}
}

func (b *Bot) deleteTaskAndRefresh(ctx context.Context, chatID int64, taskID uint) error {
	task, err := b.taskSvc.Get(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return b.sendText(chatID, "Task not found or already deleted.")
		}
		return b.sendText(chatID, fmt.Sprintf("Error: %s", escape(err.Error())))
	}

	if err := b.taskSvc.Delete(ctx, taskID); err != nil {
		return b.sendText(chatID, fmt.Sprintf("Could not delete the task: %s", escape(err.Error())))
	}

	log.Printf("[info] task deleted id=%d", taskID)
	if err := b.sendText(chatID, fmt.Sprintf("🗑 «%s» deleted.", escape(task.Title))); err != nil {
		return err
	}
	return b.sendToday(ctx, chatID)
}

func (b *Bot) applyTemplateAndRefresh(ctx context.Context, chatID int64, templateID uint) error {
	date, err := b.days.Today(ctx)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Error: %s", escape(err.Error())))
	}

	instance, err := b.templateSvc.Materialize(ctx, templateID, date)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return b.sendText(chatID, "Template not found.")
		}
		return b.sendText(chatID, fmt.Sprintf("Error: %s", escape(err.Error())))
	}

	log.Printf("[info] template %d materialized as task %d", templateID, instance.ID)
	if err := b.sendText(chatID, fmt.Sprintf("➕ «%s» added to today.", escape(instance.Title))); err != nil {
		return err
	}
	return b.sendToday(ctx, chatID)
}

func (b *Bot) todaySnapshot(ctx context.Context) (*model.Date, []model.Task, error) {
	date, err := b.days.Today(ctx)
	if err != nil {
		return nil, nil, err
	}
	tasks, err := b.taskSvc.List(ctx, date.ID)
	if err != nil {
		return nil, nil, err
	}
	return date, tasks, nil
}

func (b *Bot) sendToday(ctx context.Context, chatID int64) error {
	date, tasks, err := b.todaySnapshot(ctx)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Could not load today's tasks: %s", escape(err.Error())))
	}

	if len(tasks) == 0 {
		return b.sendText(chatID, "Nothing on today's list. Add a task with /add or /apply your routines.")
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("📋 <b>%s</b>\n", date.Day.Format("Monday, 2 Jan")))
	builder.WriteString(progressText(date, tasks))
	builder.WriteString("\n\n")

	var buttons [][]tgbotapi.InlineKeyboardButton
	for i := range tasks {
		task := &tasks[i]
		builder.WriteString(formatTask(i+1, task))
		buttons = append(buttons, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("➕ #%d %s", task.ID, shortTitle(task.Title, 18)),
				fmt.Sprintf("%s%d", cbIncPrefix, task.ID),
			),
			tgbotapi.NewInlineKeyboardButtonData("➖", fmt.Sprintf("%s%d", cbDecPrefix, task.ID)),
			tgbotapi.NewInlineKeyboardButtonData("📦", fmt.Sprintf("%s%d", cbTemplatePrefix, task.ID)),
			tgbotapi.NewInlineKeyboardButtonData("🗑", fmt.Sprintf("%s%d", cbDeletePrefix, task.ID)),
		})
	}

	reply := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	reply.ParseMode = tgbotapi.ModeHTML
	_, err = b.api.Send(reply)
	return err
}

// SendDailyDigest pushes the evening summary to the configured owner chat.
func (b *Bot) SendDailyDigest(ctx context.Context) error {
	if b.config.AllowedChatID == 0 {
		log.Println("[info] digest skipped: no ALLOWED_CHAT_ID configured")
		return nil
	}

	date, tasks, err := b.todaySnapshot(ctx)
	if err != nil {
		return err
	}

	var builder strings.Builder
	builder.WriteString("🌙 <b>Evening digest</b>\n")
	builder.WriteString(progressText(date, tasks))
	builder.WriteString("\n")
	for i := range tasks {
		builder.WriteString("\n")
		builder.WriteString(strings.TrimRight(formatTask(i+1, &tasks[i]), "\n"))
	}
	return b.sendText(b.config.AllowedChatID, strings.TrimSpace(builder.String()))
}

// RollOver resolves the new day and materializes routine templates onto it.
func (b *Bot) RollOver(ctx context.Context) error {
	date, err := b.days.Today(ctx)
	if err != nil {
		return err
	}
	applied, err := b.templateSvc.ApplyTemplates(ctx, date, true)
	if err != nil {
		return fmt.Errorf("roll over templates: %w", err)
	}
	log.Printf("[info] rollover for %s: %d routine(s) applied", date.Day.Format("2006-01-02"), applied)
	return nil
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelNewTask):
		return true, b.startNewTaskConversation(msg)
	case strings.ToLower(menuLabelToday):
		return true, b.sendToday(ctx, msg.Chat.ID)
	case strings.ToLower(menuLabelTemplate):
		return true, b.handleTemplates(ctx, msg)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
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

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) hasConversation(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.conversations[userID]
	return ok
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelNewTask),
			tgbotapi.NewKeyboardButton(menuLabelToday),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelTemplate),
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
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func yesNoKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnYes),
			tgbotapi.NewKeyboardButton(btnNo),
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func isCancelDialogInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancelDialog) || value == "cancel"
}

func parseIDArg(args string) (uint, error) {
	raw := strings.TrimSpace(args)
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(value), nil
}

func parseCallbackID(data, prefix string) (uint, error) {
	raw := strings.TrimPrefix(data, prefix)
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(value), nil
}

func stateIcon(task *model.Task) string {
	switch service.State(task) {
	case service.StateAtMax:
		return "🔒"
	case service.StateTargetMet:
		return "✅"
	case service.StateInProgress:
		return "🔆"
	default:
		return "⚪️"
	}
}

func formatTask(number int, task *model.Task) string {
	var b strings.Builder
	flags := ""
	if task.Critical {
		flags += " ❗️"
	}
	if task.Routine {
		flags += " ♻️"
	}
	if task.Optional {
		flags += " 🪶"
	}
	b.WriteString(fmt.Sprintf("%d. %s <b>#%d</b> %s%s\n", number, stateIcon(task), task.ID, escape(task.Title), flags))
	b.WriteString(fmt.Sprintf("   %d/%d · %g pts each\n", task.Completed, task.Target, task.Points))
	return b.String()
}

func progressText(date *model.Date, tasks []model.Task) string {
	ratio := service.Progress(date, tasks)
	return fmt.Sprintf("%s <b>%.0f</b> / %d pts (%.0f%%)", progressBar(ratio), date.CachedPoints, date.Target, ratio*100)
}

func progressBar(ratio float64) string {
	const width = 10
	filled := int(ratio * width)
	if filled > width {
		filled = width
	}
	return strings.Repeat("▰", filled) + strings.Repeat("▱", width-filled)
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func escape(s string) string {
	return html.EscapeString(s)
}
