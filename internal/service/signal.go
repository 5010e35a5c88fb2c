// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

type signalSource interface {
	Notify(c chan<- os.Signal, sig ...os.Signal)
	Stop(c chan<- os.Signal)
}

type stdLibSignalSource struct{}

func (stdLibSignalSource) Notify(c chan<- os.Signal, sig ...os.Signal) {
	signal.Notify(c, sig...)
}

func (stdLibSignalSource) Stop(c chan<- os.Signal) {
	signal.Stop(c)
}

// HandleSignals enables the compass on SIGUSR1, the user gesture of a status bar click, and
// retries the acquisition on SIGUSR2. The acquisition runs in the background so a compass
// gesture is handled while a location prompt is pending; overlapping retries are rejected by
// the controller.
func (s *Service) HandleSignals(ctx context.Context, sigChan chan os.Signal) {
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-sigChan:
			if !ok {
				return
			}
			s.logger.Debug("received signal", slog.String("signal", sig.String()))
			switch sig {
			case syscall.SIGUSR1:
				s.enableCompass(ctx)
			case syscall.SIGUSR2:
				wg.Go(func() { s.acquire(ctx) })
			}
		}
	}
}
