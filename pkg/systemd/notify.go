// Package systemd reports service state to systemd via sd_notify. Outside
// a systemd unit (no NOTIFY_SOCKET) every call is a no-op.
package systemd

import (
	"context"
	"errors"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "tempo/pkg/logx"
)

// Ready reports READY=1. sent is false when not running under systemd.
func Ready() (sent bool, err error) { return daemon.SdNotify(false, daemon.SdNotifyReady) }

// Stopping reports STOPPING=1.
func Stopping() (sent bool, err error) { return daemon.SdNotify(false, daemon.SdNotifyStopping) }

// Reloading reports RELOADING=1. Send Ready once the reload is done.
func Reloading() (sent bool, err error) { return daemon.SdNotify(false, daemon.SdNotifyReloading) }

// Status sets the free-form unit status line shown by systemctl status.
func Status(msg string) (sent bool, err error) { return daemon.SdNotify(false, "STATUS="+msg) }

// Watchdog sends WATCHDOG=1 at half the configured interval while healthy
// reports true. It returns nil at once when the watchdog is not enabled for
// this process, and when ctx is done.
func Watchdog(ctx context.Context, healthy func(context.Context) bool, log logx.Logger) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		return err
	}
	if interval <= 0 {
		return nil
	}
	if healthy == nil {
		return errors.New("systemd: nil health check")
	}

	period := interval / 2
	log.Debug("watchdog enabled", logx.Duration("interval", interval))
	tk := time.NewTicker(period)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tk.C:
			hctx, cancel := context.WithTimeout(ctx, period)
			ok := healthy(hctx)
			cancel()
			if !ok {
				// Skipping the ping lets systemd restart a wedged process.
				log.Warn("health check failed; watchdog ping skipped")
				continue
			}
			if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
				log.Warn("watchdog notify failed", logx.Err(err))
			}
		}
	}
}
