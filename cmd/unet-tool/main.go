// SPDX-FileCopyrightText: 2026 The fjage-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
)

// printUsage of unet-tool and exit with an error code afterwards.
func printUsage() {
	_, _ = fmt.Fprintf(os.Stderr, "Usage of %s [-config file.toml] tx|rx|agents|get|set|exchange:\n\n", os.Args[0])

	_, _ = fmt.Fprintf(os.Stderr, "%s tx [-protocol n] node address [byte...]\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Sends a datagram to the address through the node, e.g., \"localhost:1100\" or\n")
	_, _ = fmt.Fprintf(os.Stderr, "  \"ws://localhost:8080/ws/\". Without bytes, the datagram is read from stdin.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s rx [-protocol n] [-count n] [-timeout d] node\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Prints datagrams received by the node until count datagrams were received,\n")
	_, _ = fmt.Fprintf(os.Stderr, "  the timeout expired or an interrupt arrived.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s agents node\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Lists all agents and services of the node.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s get node agent [param...]\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Prints the agent's parameters, all of them if none is named.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s set node agent param value\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Sets an agent's parameter and prints the confirmed value.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s exchange node address directory\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Sends each file created in the directory as a datagram to the address and\n")
	_, _ = fmt.Fprintf(os.Stderr, "  writes received datagrams as new files into the directory.\n\n")

	os.Exit(1)
}

// exit is os.Exit, replaced in tests.
var exit = os.Exit

// printFatal of an error with a short context description and exits afterwards.
// The closers are closed first, as deferred calls are skipped when exiting.
func printFatal(err error, msg string, closers ...io.Closer) {
	log.WithError(err).Error(msg)

	for _, c := range closers {
		if cErr := c.Close(); cErr != nil {
			log.WithError(cErr).Warn("Closing errored")
		}
	}
	exit(1)
}

func main() {
	configFile := flag.String("config", "", "TOML configuration with [gateway] and [logging] blocks")
	flag.Usage = printUsage
	flag.Parse()

	if err := loadConfig(*configFile); err != nil {
		printFatal(err, "Loading configuration errored")
	}

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
	}

	switch args[0] {
	case "tx":
		transmit(args[1:])

	case "rx":
		receive(args[1:])

	case "agents":
		listAgents(args[1:])

	case "get":
		getParams(args[1:])

	case "set":
		setParam(args[1:])

	case "exchange":
		startExchange(args[1:])

	default:
		printUsage()
	}
}
