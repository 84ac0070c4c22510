package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tempo/internal/app"
	logx "tempo/pkg/logx"
	"tempo/pkg/systemd"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./tempo.yaml", "path to config (json or yaml)")
	flag.Parse()

	a, err := app.New(cfgPath)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.Start(ctx); err != nil {
		fmt.Println("fatal start:", err)
		os.Exit(1)
	}
	log := a.Logger().With(logx.String("comp", "main"))

	if _, err := systemd.Ready(); err != nil {
		log.Warn("sd_notify READY failed", logx.Err(err))
	}
	go func() {
		healthy := func(c context.Context) bool {
			_, err := a.Snapshot(c)
			return err == nil
		}
		if err := systemd.Watchdog(ctx, healthy, log); err != nil {
			log.Warn("watchdog disabled", logx.Err(err))
		}
	}()

	sigs := make(chan os.Signal, 4)
	signal.Notify(sigs, append([]os.Signal{os.Interrupt, syscall.SIGTERM}, controlSignals...)...)
	defer signal.Stop(sigs)

	reason := app.StopUnknown
wait:
	for {
		select {
		case <-a.Done():
			reason = app.StopFatalError
			log.Error("fatal error", logx.Err(a.Err()))
			break wait
		case sig := <-sigs:
			if act := control(sig); act != actNone {
				handle(ctx, a, act, log)
				continue
			}
			reason = app.StopSIGTERM
			if sig == os.Interrupt {
				reason = app.StopSIGINT
			}
			break wait
		}
	}

	_, _ = systemd.Stopping()
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	_ = a.Stop(stopCtx, reason)
	if reason == app.StopFatalError {
		stopCancel()
		os.Exit(1)
	}
}

func handle(ctx context.Context, a *app.App, act action, log logx.Logger) {
	switch act {
	case actReload:
		_, _ = systemd.Reloading()
		if err := a.Reload(ctx); err != nil {
			log.Warn("reload failed", logx.Err(err))
		}
		_, _ = systemd.Ready()
	case actPause, actResume:
		op, fn := "resume", a.ResumeAll
		if act == actPause {
			op, fn = "pause", a.PauseAll
		}
		if err := fn(ctx); err != nil {
			log.Warn(op+" all failed", logx.Err(err))
			return
		}
		log.Info(op + " all (signal)")
		_, _ = systemd.Status(op + "d")
	}
}
