package main

import (
	"io/ioutil"

	"github.com/alexcesaro/log"
	"github.com/alexcesaro/log/golog"
)

var logger *golog.Logger

// SetLogger overrides the logger of the peerrpc command.
func SetLogger(l *golog.Logger) {
	logger = l
}

func init() {
	// Null logger until main picks a level
	SetLogger(golog.New(ioutil.Discard, log.Debug))
}
