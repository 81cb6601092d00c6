package notifier

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/kevinnadar22/mongovault/internal/config"
	"github.com/kevinnadar22/mongovault/internal/domain"
)

type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegram(cfg *config.NotifierConfig) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	var chatID int64
	fmt.Sscanf(cfg.ChatID, "%d", &chatID)

	return &TelegramNotifier{
		bot:    bot,
		chatID: chatID,
	}, nil
}

func (t *TelegramNotifier) NotifyJob(ctx context.Context, job domain.Job) error {
	var message string

	switch job.Status {
	case domain.JobSucceeded:
		message = fmt.Sprintf(
			"✅ %s succeeded\n\n"+
				"🗄 Database: %s\n"+
				"📁 Archive: %s\n"+
				"📊 Size: %s\n"+
				"🕐 Duration: %s",
			job.Kind,
			job.Database,
			job.ArchiveID,
			humanBytes(job.Bytes),
			job.FinishedAt.Sub(job.StartedAt).Round(time.Second),
		)
	case domain.JobCancelled:
		message = fmt.Sprintf("⚠️ %s of %s cancelled", job.Kind, job.Database)
	default:
		message = fmt.Sprintf(
			"❌ %s of %s failed\n\n"+
				"Reason: %s\n"+
				"Detail: %s",
			job.Kind,
			job.Database,
			job.Failure,
			job.Error,
		)
	}

	msg := tgbotapi.NewMessage(t.chatID, message)
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram notification: %w", err)
	}
	return nil
}

func (t *TelegramNotifier) NotifySweep(ctx context.Context, deleted, failed int) error {
	if deleted == 0 && failed == 0 {
		return nil
	}

	message := fmt.Sprintf("🧹 Retention sweep: %d archive(s) deleted", deleted)
	if failed > 0 {
		message += fmt.Sprintf(", %d deletion(s) failed", failed)
	}

	msg := tgbotapi.NewMessage(t.chatID, message)
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram notification: %w", err)
	}
	return nil
}

// humanBytes renders a byte count for notification text.
func humanBytes(size int64) string {
	units := []string{"B", "KB", "MB", "GB", "TB"}
	value := float64(size)
	for _, unit := range units {
		if value < 1024 {
			return fmt.Sprintf("%.2f %s", value, unit)
		}
		value /= 1024
	}
	return fmt.Sprintf("%.2f PB", value)
}
