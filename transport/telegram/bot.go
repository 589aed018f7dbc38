package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/X1ag/RemindBot/internal/domain"
	"github.com/X1ag/RemindBot/internal/usecase"
)

const (
	msgGreeting = "Привет! Я твой офисный помощник.\n" +
		"Просто напиши мне напоминание в формате:\n" +
		"`Завтра 10:30 Позвонить клиенту`\n" +
		"или\n" +
		"`25.03.2025 14:00 Созвониться с бухгалтерией`\n\n" +
		"Доступные команды:\n" +
		"/tasks — список активных задач\n" +
		"/done <номер> — отметить задачу выполненной"
	msgBadFormat   = "Не понял формат. Попробуй: `25.12 15:30 Купить молоко`"
	msgBadDateTime = "Ошибка в дате/времени. Используй формат ДД.ММ.ГГГГ ЧЧ:ММ или 'завтра ЧЧ:ММ'"
	msgNoTasks     = "У тебя нет активных напоминаний."
	msgTasksHeader = "📋 Твои задачи:\n"
	msgDoneUsage   = "Укажи номер задачи, например: /done 3"
	msgNoSuchTask  = "Нет задачи с таким номером."
	msgInternal    = "Что-то пошло не так, попробуй позже."
)

// sender is the part of *bot.Bot used to post messages.
type sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

type Bot struct {
	client     *bot.Bot
	sender     sender
	reminderUC *usecase.ReminderUsecase
	logger     *slog.Logger
}

// NewBot connects to the Bot API with token and registers the command handlers.
func NewBot(token string, reminderUC *usecase.ReminderUsecase, logger *slog.Logger) (*Bot, error) {
	b := newBot(nil, reminderUC, logger)
	client, err := bot.New(token, bot.WithDefaultHandler(b.TextHandler))
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	b.client = client
	b.sender = client
	b.RegisterHandlers()
	return b, nil
}

func newBot(s sender, reminderUC *usecase.ReminderUsecase, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		sender:     s,
		reminderUC: reminderUC,
		logger:     logger.With("component", "telegram"),
	}
}

// Start polls for updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) {
	b.logger.Info("telegram bot started")
	b.client.Start(ctx)
	b.logger.Info("telegram bot stopped")
}

func (b *Bot) RegisterHandlers() {
	b.client.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypeExact, b.StartHandler)
	b.client.RegisterHandler(bot.HandlerTypeMessageText, "/tasks", bot.MatchTypeExact, b.TasksHandler)
	b.client.RegisterHandler(bot.HandlerTypeMessageText, "/done", bot.MatchTypePrefix, b.DoneHandler)
}

// Send delivers text to chatID. It makes Bot a domain.Notifier.
func (b *Bot) Send(ctx context.Context, chatID int64, text string) error {
	_, err := b.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	return err
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if err := b.Send(ctx, chatID, text); err != nil {
		b.logger.Error("error sending reply", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) StartHandler(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg, userID, ok := incoming(update)
	if !ok {
		return
	}
	b.reply(ctx, msg.Chat.ID, msgGreeting)
	b.logger.Info("user started the bot", "user_id", userID)
}

// TextHandler treats any non-command text as a new reminder.
func (b *Bot) TextHandler(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg, userID, ok := incoming(update)
	if !ok || msg.Text == "" || strings.HasPrefix(msg.Text, "/") {
		return
	}

	conf, err := b.reminderUC.Intake(ctx, userID, msg.Chat.ID, msg.Text)
	if err != nil {
		var fe *domain.FormatError
		switch {
		case errors.As(err, &fe) && fe.IsFieldCount():
			b.reply(ctx, msg.Chat.ID, msgBadFormat)
		case errors.As(err, &fe):
			b.reply(ctx, msg.Chat.ID, msgBadDateTime)
		default:
			b.logger.Error("error creating reminder", "user_id", userID, "error", err)
			b.reply(ctx, msg.Chat.ID, msgInternal)
		}
		return
	}

	b.reply(ctx, msg.Chat.ID, fmt.Sprintf("✅ Напомню: %s\n⏰ %s", conf.Text, conf.FormattedTime()))
}

func (b *Bot) TasksHandler(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg, userID, ok := incoming(update)
	if !ok {
		return
	}

	reminders, err := b.reminderUC.ListActive(ctx, userID)
	if err != nil {
		b.logger.Error("error listing reminders", "user_id", userID, "error", err)
		b.reply(ctx, msg.Chat.ID, msgInternal)
		return
	}
	if len(reminders) == 0 {
		b.reply(ctx, msg.Chat.ID, msgNoTasks)
		b.logger.Info("task list is empty", "user_id", userID)
		return
	}

	b.reply(ctx, msg.Chat.ID, RenderTasks(reminders))
	b.logger.Info("task list sent", "user_id", userID, "count", len(reminders))
}

func (b *Bot) DoneHandler(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg, userID, ok := incoming(update)
	if !ok {
		return
	}

	index, ok := doneArgument(msg.Text)
	if !ok {
		b.reply(ctx, msg.Chat.ID, msgDoneUsage)
		b.logger.Warn("done without a task number", "user_id", userID, "text", msg.Text)
		return
	}

	reminder, err := b.reminderUC.Complete(ctx, userID, index)
	switch {
	case errors.Is(err, domain.ErrNoSuchTask):
		b.reply(ctx, msg.Chat.ID, msgNoSuchTask)
	case err != nil:
		b.logger.Error("error completing reminder", "user_id", userID, "error", err)
		b.reply(ctx, msg.Chat.ID, msgInternal)
	default:
		b.reply(ctx, msg.Chat.ID, fmt.Sprintf("Задача %d отмечена выполненной.", index))
		b.logger.Info("task completed", "user_id", userID, "reminder_id", reminder.ID)
	}
}

// RenderTasks numbers reminders from 1 in the order given.
func RenderTasks(reminders []*domain.Reminder) string {
	var sb strings.Builder
	sb.WriteString(msgTasksHeader)
	for i, r := range reminders {
		fmt.Fprintf(&sb, "%d. %s — %s\n", i+1, r.Text, r.RemindTime.Format(domain.DisplayLayout))
	}
	return sb.String()
}

// doneArgument extracts N from "/done N" (or "/done@bot N").
func doneArgument(text string) (int, bool) {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return 0, false
	}
	cmd := fields[0]
	if cmd != "/done" && !strings.HasPrefix(cmd, "/done@") {
		return 0, false
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

func incoming(update *models.Update) (*models.Message, int64, bool) {
	if update == nil || update.Message == nil || update.Message.From == nil {
		return nil, 0, false
	}
	return update.Message, update.Message.From.ID, true
}
