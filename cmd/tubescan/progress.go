package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/mattn/go-isatty"

	"tubescan/internal/analysis"
	"tubescan/internal/logging"
)

// progressPrinter renders orchestrator notifications. On a terminal it
// redraws one status line; otherwise it prints sampled lines.
type progressPrinter struct {
	out     io.Writer
	live    bool
	sampler *logging.ProgressSampler
	stop    *atomic.Bool
}

func newProgressPrinter(out io.Writer, stop *atomic.Bool) *progressPrinter {
	return &progressPrinter{
		out:     out,
		live:    isTerminal(out),
		sampler: logging.NewProgressSampler(10),
		stop:    stop,
	}
}

// Notify implements analysis.ProgressSink.
func (p *progressPrinter) Notify(ev analysis.Progress) bool {
	percent := ev.Fraction * 100
	switch {
	case p.live:
		fmt.Fprintf(p.out, "\r\033[K[%3.0f%%] %s", percent, ev.Message)
		if ev.Done {
			fmt.Fprintln(p.out)
		}
	case ev.Done || p.sampler.ShouldLog(ev.Fraction):
		fmt.Fprintf(p.out, "[%3.0f%%] %s\n", percent, ev.Message)
	}
	return p.stop == nil || !p.stop.Load()
}

// finish terminates a live line left open by an interrupted run.
func (p *progressPrinter) finish(report analysis.Report) {
	if p.live && report.Stopped {
		fmt.Fprintln(p.out)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// watchInterrupt turns the first SIGINT/SIGTERM into a stop request honoured
// between videos. A second signal cancels the returned context.
func watchInterrupt(parent context.Context, out io.Writer) (context.Context, *atomic.Bool, func()) {
	ctx, cancel := context.WithCancel(parent)
	stop := new(atomic.Bool)
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-signals:
				if stop.Swap(true) {
					cancel()
					return
				}
				fmt.Fprintln(out, "\nStopping after the current video (interrupt again to abort)")
			}
		}
	}()

	return ctx, stop, func() {
		signal.Stop(signals)
		cancel()
	}
}
