// Package applog centralizes structured logging so every package in the
// fleet shares one format and level policy instead of ad hoc fmt.Printf
// calls, following the pack's convention of reaching for logrus rather than
// the standard library's log package for service-shaped code.
package applog

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	once sync.Once
	base *logrus.Logger
)

func root() *logrus.Logger {
	once.Do(func() {
		base = logrus.New()
		base.SetOutput(os.Stdout)
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		if os.Getenv("LOG_FORMAT") == "json" {
			base.SetFormatter(&logrus.JSONFormatter{})
		}
		lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
		if err != nil {
			lvl = logrus.InfoLevel
		}
		base.SetLevel(lvl)
	})
	return base
}

// For returns a logger scoped to component, e.g. applog.For("swap-indexer").
func For(component string) *logrus.Entry {
	return root().WithField("component", component)
}
