//go:build !unix

package main

import "os"

type action uint8

const (
	actNone action = iota
	actPause
	actResume
	actReload
)

var controlSignals []os.Signal

func control(os.Signal) action { return actNone }
