// Copyright 2020 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tevino/abool"

	"github.com/newrelic/cpumonitor/pkg/config"
	wlog "github.com/newrelic/cpumonitor/pkg/log"
	"github.com/newrelic/cpumonitor/pkg/metrics"
	"github.com/newrelic/cpumonitor/pkg/sysinfo"
)

var (
	configFile  string
	showVersion bool
	showInfo    bool
	verbose     bool
	perCore     bool

	buildVersion = "development"
	gitCommit    = ""
)

var mainLog = wlog.WithComponent("Main")

func init() {
	flag.StringVar(&configFile, "config", "", "Overrides default configuration file")
	flag.BoolVar(&showVersion, "version", false, "Shows version details")
	flag.BoolVar(&showInfo, "cpu_info", false, "Prints processor identification and exits")
	flag.BoolVar(&verbose, "verbose", false, "Enables verbose logging")
	flag.BoolVar(&perCore, "per_core", false, "Adds per-core utilization to each sample")
}

func main() {
	flag.Parse()

	if showVersion {
		fmt.Printf("cpumonitor version: %s, GoVersion: %s, GitCommit: %s\n",
			buildVersion, runtime.Version(), gitCommit)
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot load configuration: %v\n", err)
		os.Exit(1)
	}
	if verbose {
		cfg.Verbose = true
	}
	if perCore {
		cfg.PerCore = true
	}
	configureLogs(cfg)

	if showInfo {
		if err := printCPUInfo(); err != nil {
			mainLog.WithError(err).Error("Cannot read processor identification.")
			os.Exit(1)
		}
		os.Exit(0)
	}

	if err := run(cfg); err != nil {
		mainLog.WithError(err).Error("Monitor stopped with error.")
		os.Exit(1)
	}
}

func configureLogs(cfg *config.Config) {
	wlog.SetOutput(os.Stderr)
	if cfg.Verbose {
		wlog.SetLevel(logrus.DebugLevel)
	}
	if cfg.LogFormat == "json" {
		wlog.SetFormatter(&logrus.JSONFormatter{})
	}
}

func printCPUInfo() error {
	id, err := sysinfo.ReadCPUID()
	if err != nil {
		return err
	}
	return json.NewEncoder(os.Stdout).Encode(id)
}

func run(cfg *config.Config) error {
	monitor, err := metrics.NewCPUMonitor(cfg.PerCore)
	if err != nil {
		return err
	}
	mainLog.WithField("logicalProcessors", monitor.Processor().LogicalProcessorCount()).
		Info("Starting CPU monitor.")

	stopping := abool.New()
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-signals
		// Latch so a second signal during drain is not reported again.
		if stopping.SetToIf(false, true) {
			mainLog.WithField("signal", sig.String()).Info("Shutting down.")
		}
	}()

	encoder := json.NewEncoder(os.Stdout)
	ticker := time.NewTicker(time.Duration(cfg.SampleRateSecs) * time.Second)
	defer ticker.Stop()

	for !stopping.IsSet() {
		sample, err := monitor.Sample()
		if err != nil {
			return err
		}
		if err := encoder.Encode(sample); err != nil {
			return err
		}
		<-ticker.C
	}
	return nil
}
