package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/paddockhq/marketsync/internal/domain"
)

// SignalSink builds the callback the analytics fetcher invokes with every
// newly derived signal: the signal is cached as a view and fanned out on the
// listing's signal channel.
func SignalSink(views domain.ViewCache, bus domain.SignalBus, logger *slog.Logger) func(domain.TradeSignal) {
	logger = logger.With(slog.String("component", "signal_sink"))
	return func(sig domain.TradeSignal) {
		ctx := context.Background()
		if views != nil {
			if err := views.SetSignal(ctx, sig); err != nil {
				logger.Warn("cache signal failed", slog.String("error", err.Error()))
			}
		}
		if bus != nil {
			payload, err := json.Marshal(sig)
			if err != nil {
				return
			}
			if err := bus.Publish(ctx, SignalChannel(sig.ListingID), payload); err != nil {
				logger.Warn("publish signal failed", slog.String("error", err.Error()))
			}
		}
	}
}
