package shared

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"
)

// ShutdownGrace is how long a command may clean up after the first signal.
const ShutdownGrace = 5 * time.Second

// SetupSignalHandling cancels the returned context on the first interrupt
// or termination signal. A second signal, or the grace period running out,
// exits the process.
func SetupSignalHandling(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 2)
	sigs := []os.Signal{os.Interrupt}
	if runtime.GOOS != "windows" {
		sigs = append(sigs, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT)
		signal.Ignore(syscall.SIGPIPE)
	}
	signal.Notify(sigCh, sigs...)

	go func() {
		var s os.Signal
		select {
		case s = <-sigCh:
			cancel()
		case <-ctx.Done():
			signal.Stop(sigCh)
			return
		}

		select {
		case <-sigCh:
			if ss, ok := s.(syscall.Signal); ok {
				os.Exit(128 + int(ss))
			}
			os.Exit(1)
		case <-time.After(ShutdownGrace):
			os.Exit(0)
		}
	}()

	return ctx, cancel
}
