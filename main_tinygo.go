//go:build tinygo

package main

import (
	"context"

	"ember/app"
	"ember/hal"

	"go.uber.org/zap/zapcore"
)

func main() {
	h := hal.New()
	log := hal.NewZapLogger(h.Logger(), zapcore.InfoLevel)

	sys, err := app.New(h, log, app.Config{})
	if err != nil {
		h.Logger().WriteLineString("boot: " + err.Error())
		select {}
	}
	if err := sys.Run(context.Background()); err != nil {
		h.Logger().WriteLineString("halted: " + err.Error())
	}
	select {}
}
