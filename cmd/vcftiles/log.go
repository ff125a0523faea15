package main

import (
	golog "log"
	"os"

	"github.com/grailbio/base/log"
)

// levelOutputter writes messages at or below its level to stderr
type levelOutputter struct {
	level log.Level
	out   *golog.Logger
}

func (o *levelOutputter) Level() log.Level {
	return o.level
}

func (o *levelOutputter) Output(calldepth int, level log.Level, s string) error {
	if level > o.level {
		return nil
	}
	return o.out.Output(calldepth+1, s)
}

// setupLogging installs the outputter for the chosen verbosity: quiet keeps
// errors and warnings, the default adds progress, verbose adds debug detail
func setupLogging(verbose, quiet bool) {
	level := log.Info
	switch {
	case quiet:
		level = log.Error
	case verbose:
		level = log.Debug
	}
	log.SetOutputter(&levelOutputter{
		level: level,
		out:   golog.New(os.Stderr, "", golog.LstdFlags),
	})
}
