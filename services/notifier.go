package services

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Notifier — исходящие письма игрокам. Доставка вне ядра движка.
type Notifier interface {
	Send(ctx context.Context, to []string, subject, body string) error
}

// OpsNotifier — оповещение операторов о спорных результатах.
type OpsNotifier interface {
	Alert(ctx context.Context, message string) error
}

// Broadcaster — live-обновления сетки (реализуется websocket-хабом).
type Broadcaster interface {
	BroadcastTournament(tournamentID int, eventType string, payload interface{})
}

const notifyConcurrency = 4

// fanOutEmail рассылает письмо каждому адресату отдельно, fire-and-forget:
// переход состояния не ждёт и не откатывается из-за ошибок доставки.
func fanOutEmail(logger *slog.Logger, notifier Notifier, recipients []string, subject, body string) {
	if notifier == nil || len(recipients) == 0 {
		return
	}
	go func() {
		g := new(errgroup.Group)
		g.SetLimit(notifyConcurrency)
		for _, recipient := range recipients {
			recipient := recipient
			g.Go(func() error {
				if err := notifier.Send(context.Background(), []string{recipient}, subject, body); err != nil {
					logger.Error("failed to send notification email",
						slog.String("recipient", recipient),
						slog.String("subject", subject),
						slog.Any("error", err))
				}
				return nil
			})
		}
		_ = g.Wait()
	}()
}

// alertOps шлёт сообщение операторам, не прерывая основную операцию.
func alertOps(ctx context.Context, logger *slog.Logger, ops OpsNotifier, message string) {
	if ops == nil {
		return
	}
	if err := ops.Alert(ctx, message); err != nil {
		logger.Error("failed to alert operators", slog.Any("error", err))
	}
}
