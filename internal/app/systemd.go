package app

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "boothqr/pkg/logx"
)

// systemdNotifier speaks the sd_notify protocol. Every call is a no-op
// when NOTIFY_SOCKET is unset, so it is safe outside systemd.
type systemdNotifier struct {
	enabled bool
	log     logx.Logger
	notify  func(state string) (bool, error)
}

func newSystemdNotifier(enabled bool, log logx.Logger) *systemdNotifier {
	return &systemdNotifier{
		enabled: enabled,
		log:     log,
		notify:  func(state string) (bool, error) { return daemon.SdNotify(false, state) },
	}
}

func (n *systemdNotifier) send(state string) {
	if !n.enabled {
		return
	}
	sent, err := n.notify(state)
	if err != nil {
		n.log.Debug("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		n.log.Trace("sd_notify", logx.String("state", state))
	}
}

func (n *systemdNotifier) Ready()    { n.send(daemon.SdNotifyReady) }
func (n *systemdNotifier) Stopping() { n.send(daemon.SdNotifyStopping) }

// watchdog pings at half the interval systemd asked for, until ctx ends.
func (n *systemdNotifier) watchdog(ctx context.Context) {
	if !n.enabled {
		return
	}
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return
	}
	every := interval / 2
	n.log.Debug("systemd watchdog enabled", logx.Duration("every", every))
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n.send(daemon.SdNotifyWatchdog)
		}
	}
}
