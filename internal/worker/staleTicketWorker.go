package worker

import (
	"context"
	"time"

	"github.com/SnowyCoder/queuify/internal/service"

	"github.com/sirupsen/logrus"
)

// StaleTicketWorker периодически отменяет открытые талоны прошедших дней:
// очередь не обслужила их вовремя, держать слот дальше нет смысла.
type StaleTicketWorker struct {
	ticketService service.TicketService
	interval      time.Duration
}

func NewStaleTicketWorker(ticketService service.TicketService, interval time.Duration) *StaleTicketWorker {
	return &StaleTicketWorker{
		ticketService: ticketService,
		interval:      interval,
	}
}

func (w *StaleTicketWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logrus.Info("Stale ticket worker started")

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Stale ticket worker stopped")
			return
		case <-ticker.C:
			w.cancelStaleTickets(ctx)
		}
	}
}

func (w *StaleTicketWorker) cancelStaleTickets(ctx context.Context) {
	if err := w.ticketService.CancelStaleTickets(ctx, time.Now()); err != nil {
		logrus.Errorf("Failed to cancel stale tickets: %v", err)
		return
	}

	logrus.Debug("Stale ticket pass completed")
}
