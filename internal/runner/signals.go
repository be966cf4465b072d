package runner

import (
	"os"
	"os/signal"
	"syscall"
)

// NotifyShutdown installs SIGINT/SIGTERM handling for one validation run:
// on the first signal every live step process group is terminated
// cooperatively, then onDone is invoked (typically to exit the program).
// The returned stop function uninstalls the handler; call it once the run
// completes so a later Ctrl-C behaves normally again.
func NotifyShutdown(reg *Registry, onDone func(sig os.Signal)) (stop func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		select {
		case sig := <-sigCh:
			reg.TerminateAll()
			if onDone != nil {
				onDone(sig)
			}
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}
