package main

import (
	"log"

	"github.com/casewatch/casebot/app"
	corecmd "github.com/casewatch/casebot/core/cmd"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return app.Load(path)
		},
		Bootstrap: func(cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			return app.Bootstrap(cfg.(*app.Config))
		},
	})
	if err != nil {
		log.Fatalf("casebot: %v", err)
	}
}
