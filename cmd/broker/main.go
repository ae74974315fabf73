package main

import (
	"flag"
	"fmt"
	"os"

	brokerapp "github.com/magicaleks/qudata-broker/internal/app/broker"
	"github.com/magicaleks/qudata-broker/internal/config"
)

func main() {
	var (
		configFile  = flag.String("config", "configs/broker.yaml", "Path to config file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("qudata-broker %s\n", brokerapp.BrokerVersion)
		os.Exit(0)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	app, err := brokerapp.NewApplication(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup error: %v\n", err)
		os.Exit(1)
	}

	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "broker exited with error: %v\n", err)
		os.Exit(1)
	}
}
