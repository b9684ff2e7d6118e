package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

// holdSignals keeps pipe alive through terminal interrupts, which reach
// the stages directly through the process group, and cancels the
// returned context when a termination request is aimed at pipe itself.
// Stages are started with default dispositions regardless. The returned
// func deregisters the handler.
func holdSignals(parent context.Context, logger *zap.Logger) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGHUP)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-ch:
				switch sig {
				case syscall.SIGTERM, syscall.SIGHUP:
					logger.Info("pipe.signal", zap.Stringer("signal", sig), zap.String("action", "terminate"))
					cancel()
				default:
					logger.Debug("pipe.signal", zap.Stringer("signal", sig), zap.String("action", "wait"))
				}
			case <-done:
				return
			}
		}
	}()
	return ctx, func() {
		signal.Stop(ch)
		close(done)
		cancel()
	}
}
