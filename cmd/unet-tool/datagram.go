// SPDX-FileCopyrightText: 2026 The fjage-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/fjage-go/pkg/unet"
)

// parseBytes of the command line, each one a number between 0 and 255.
func parseBytes(args []string) ([]byte, error) {
	data := make([]byte, 0, len(args))
	for _, arg := range args {
		b, err := strconv.ParseUint(arg, 0, 8)
		if err != nil {
			return nil, fmt.Errorf("byte %q: %w", arg, err)
		}
		data = append(data, byte(b))
	}
	return data, nil
}

// transmit a datagram for the "tx" CLI option.
func transmit(args []string) {
	flags := flag.NewFlagSet("tx", flag.ExitOnError)
	protocol := flags.Int("protocol", unet.ProtocolData, "datagram protocol")
	_ = flags.Parse(args)

	if flags.NArg() < 2 {
		printUsage()
	}

	var (
		node = flags.Arg(0)
		data []byte
		err  error
	)

	to, err := strconv.Atoi(flags.Arg(1))
	if err != nil {
		printFatal(err, "Parsing address errored")
	}

	if flags.NArg() > 2 {
		data, err = parseBytes(flags.Args()[2:])
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		printFatal(err, "Reading datagram errored")
	}

	sock := openSocket(node)
	defer func() { _ = sock.Close() }()

	if !sock.SendTo(context.Background(), data, to, *protocol) {
		printFatal(fmt.Errorf("datagram to %d was refused", to), "Sending datagram errored", sock)
	}

	log.WithFields(log.Fields{
		"to":       to,
		"protocol": *protocol,
		"bytes":    len(data),
	}).Info("Sent datagram")
}

// receive datagrams for the "rx" CLI option.
func receive(args []string) {
	flags := flag.NewFlagSet("rx", flag.ExitOnError)
	protocol := flags.Int("protocol", -1, "only receive datagrams of this protocol")
	count := flags.Int("count", 0, "exit after this many datagrams, 0 for no limit")
	timeout := flags.Duration("timeout", 0, "exit after this time without a datagram, 0 for no limit")
	_ = flags.Parse(args)

	if flags.NArg() != 1 {
		printUsage()
	}

	sock := openSocket(flags.Arg(0))
	defer func() { _ = sock.Close() }()

	if *protocol >= 0 && !sock.Bind(*protocol) {
		printFatal(fmt.Errorf("protocol %d is reserved", *protocol), "Binding socket errored", sock)
	}
	if *timeout > 0 {
		sock.SetTimeout(*timeout)
	} else {
		sock.SetTimeout(-1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	for received := 0; *count == 0 || received < *count; received++ {
		ntf := sock.Receive(ctx)
		if ntf == nil {
			log.Info("No further datagram")
			return
		}

		from, _ := ntf.Int(unet.FieldFrom)
		data, _ := ntf.Bytes(unet.FieldData)
		fmt.Printf("%s from=%d protocol=%d data=%v\n",
			time.Now().Format(time.RFC3339), from, unet.Protocol(ntf), data)
	}
}
