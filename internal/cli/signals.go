package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
)

// interruptHandler implements two-stage interruption: the first signal
// asks the run to stop after the current fix, the second cancels it.
type interruptHandler struct {
	cancel  context.CancelFunc
	w       io.Writer
	keep    atomic.Bool
	count   atomic.Int32
	sig     chan os.Signal
	done    chan struct{}
	stopped sync.Once
}

func newInterruptHandler(cancel context.CancelFunc, w io.Writer) *interruptHandler {
	h := &interruptHandler{
		cancel: cancel,
		w:      w,
		sig:    make(chan os.Signal, 2),
		done:   make(chan struct{}),
	}
	h.keep.Store(true)
	return h
}

// Listen starts handling SIGINT and SIGTERM.
func (h *interruptHandler) Listen() {
	signal.Notify(h.sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		for {
			select {
			case <-h.sig:
				h.interrupt()
			case <-h.done:
				return
			}
		}
	}()
}

func (h *interruptHandler) interrupt() {
	if h.count.Add(1) == 1 {
		h.keep.Store(false)
		fmt.Fprintln(h.w, "\nInterrupted: finishing the current fix. Press Ctrl+C again to abort.")
		return
	}
	fmt.Fprintln(h.w, "\nAborting...")
	h.cancel()
}

// KeepRunning reports whether the run may start another diagnostic.
func (h *interruptHandler) KeepRunning() bool {
	return h.keep.Load()
}

// Stop releases the signal handler.
func (h *interruptHandler) Stop() {
	h.stopped.Do(func() {
		signal.Stop(h.sig)
		close(h.done)
	})
}
