// SPDX-FileCopyrightText: 2026 The fjage-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"time"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"

	"github.com/dtn7/fjage-go/pkg/fjage"
	"github.com/dtn7/fjage-go/pkg/unet"
)

// tomlConfig describes the optional configuration file.
type tomlConfig struct {
	Gateway fjage.GatewayConf
	Logging logConf
}

// logConf describes the Logging-configuration block.
type logConf struct {
	Level        string
	ReportCaller bool `toml:"report-caller"`
	Format       string
}

// conf is the loaded configuration, used for every Gateway of this tool.
var conf tomlConfig

// loadConfig from a TOML file and configure the logging. An empty filename
// keeps the defaults.
func loadConfig(filename string) error {
	if filename != "" {
		if _, err := toml.DecodeFile(filename, &conf); err != nil {
			return err
		}
	}

	if conf.Logging.Level != "" {
		if lvl, err := log.ParseLevel(conf.Logging.Level); err != nil {
			log.WithFields(log.Fields{
				"level":    conf.Logging.Level,
				"error":    err,
				"provided": "panic,fatal,error,warn,info,debug,trace",
			}).Warn("Failed to set log level. Please select one of the provided ones")
		} else {
			log.SetLevel(lvl)
		}
	}

	log.SetReportCaller(conf.Logging.ReportCaller)

	switch conf.Logging.Format {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})

	case "json":
		log.SetFormatter(&log.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})

	default:
		log.Warn("Unknown logging format")
	}

	return nil
}

// gatewayOptions for a node given on the command line, e.g., "localhost:1100".
// The node's address replaces the one from the configuration file; the other
// options are kept.
func gatewayOptions(node string) (fjage.Options, error) {
	gc := conf.Gateway
	gc.URL = node
	gc.Hostname, gc.Port, gc.Pathname, gc.Scheme = "", 0, "", ""
	return gc.Options()
}

// openGateway to a node or exit.
func openGateway(node string) *fjage.Gateway {
	opts, err := gatewayOptions(node)
	if err != nil {
		printFatal(err, "Parsing node address errored")
	}

	gw, err := fjage.NewGateway(opts)
	if err != nil {
		printFatal(err, "Creating Gateway errored")
	}
	return gw
}

// openSocket to a node or exit.
func openSocket(node string) *unet.Socket {
	opts, err := gatewayOptions(node)
	if err != nil {
		printFatal(err, "Parsing node address errored")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	sock, err := unet.Dial(ctx, opts)
	if err != nil {
		printFatal(err, "Creating Socket errored")
	}
	return sock
}
