//go:build unix

package main

import (
	"os"
	"syscall"
)

type action uint8

const (
	actNone action = iota
	actPause
	actResume
	actReload
)

// SIGUSR1 pauses every handle, SIGUSR2 resumes them and SIGHUP reloads the
// config file.
var controlSignals = []os.Signal{syscall.SIGUSR1, syscall.SIGUSR2, syscall.SIGHUP}

func control(sig os.Signal) action {
	switch sig {
	case syscall.SIGUSR1:
		return actPause
	case syscall.SIGUSR2:
		return actResume
	case syscall.SIGHUP:
		return actReload
	}
	return actNone
}
