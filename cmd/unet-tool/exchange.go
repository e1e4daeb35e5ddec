// SPDX-FileCopyrightText: 2026 The fjage-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/fsnotify/fsnotify"

	"github.com/dtn7/fjage-go/pkg/fjage"
	"github.com/dtn7/fjage-go/pkg/unet"
)

// exchange datagrams between a user and a node over the filesystem.
type exchange struct {
	directory  string
	address    int
	knownFiles sync.Map
	sock       *unet.Socket
	watcher    *fsnotify.Watcher

	closeChan    chan os.Signal
	datagramChan chan *fjage.Message
}

// startExchange to exchange datagrams between the directory and a node.
func startExchange(args []string) {
	if len(args) != 3 {
		printUsage()
	}

	var (
		node      = args[0]
		directory = args[2]

		err error
	)

	ex := &exchange{
		directory:    directory,
		closeChan:    make(chan os.Signal, 1),
		datagramChan: make(chan *fjage.Message),
	}

	if ex.address, err = strconv.Atoi(args[1]); err != nil {
		printFatal(err, "Parsing address errored")
	}

	signal.Notify(ex.closeChan, os.Interrupt)

	ex.sock = openSocket(node)
	ex.sock.SetTimeout(-1)

	if ex.watcher, err = fsnotify.NewWatcher(); err != nil {
		printFatal(err, "Starting file watcher errored", ex.sock)
	}
	if err = ex.watcher.Add(directory); err != nil {
		printFatal(err, "Adding directory to file watcher errored", ex.watcher, ex.sock)
	}

	go ex.handleDatagramRead()
	ex.handler()
}

// cleanFilepath creates a relative path from the initial path to a new file's
// path.
func (ex *exchange) cleanFilepath(f string) string {
	rel, err := filepath.Rel(ex.directory, f)
	if err != nil {
		log.WithField("path", f).WithError(err).Fatal("Failed to clean file path")
	}
	return rel
}

func (ex *exchange) handler() {
	defer func() {
		_ = ex.watcher.Close()
		_ = ex.sock.Close()
	}()

	for {
		select {
		case <-ex.closeChan:
			log.Info("Received interrupt signal")
			return

		case e, ok := <-ex.watcher.Events:
			if !ok {
				log.Error("fsnotify's Event channel was closed")
				return
			}

			if _, ok := ex.knownFiles.Load(ex.cleanFilepath(e.Name)); ok {
				log.WithField("file", e.Name).Debug("Skipping file; already known")
				continue
			}

			if e.Op&fsnotify.Create == 0 {
				log.WithFields(log.Fields{
					"file":      e.Name,
					"operation": e.Op.String(),
				}).Debug("Ignoring fsnotify event")
				continue
			}

			ex.readNewFile(e)

		case err, ok := <-ex.watcher.Errors:
			if !ok {
				log.Error("fsnotify's Errors channel was closed")
				return
			}

			log.WithError(err).Error("fsnotify errored")
			return

		case ntf, ok := <-ex.datagramChan:
			if !ok {
				log.Error("Datagram reader channel was closed")
				return
			}

			from, _ := ntf.Int(unet.FieldFrom)
			data, _ := ntf.Bytes(unet.FieldData)

			filePath := filepath.Join(ex.directory, ntf.MsgID)
			logger := log.WithFields(log.Fields{
				"from": from,
				"file": filePath,
			})

			// Known before creation, so the watcher's event is skipped.
			ex.knownFiles.Store(ex.cleanFilepath(filePath), struct{}{})

			if err := os.WriteFile(filePath, data, 0o644); err != nil {
				logger.WithError(err).Error("Writing file errored")
				return
			}

			logger.Info("Saved received datagram")
		}
	}
}

func (ex *exchange) readNewFile(e fsnotify.Event) {
	for i := 0; i < 5; i++ {
		if data, err := os.ReadFile(e.Name); err != nil {
			log.WithError(err).WithField("file", e.Name).Warn("Reading file errored, retrying..")
		} else if !ex.sock.SendTo(context.Background(), data, ex.address, unet.ProtocolData) {
			log.WithFields(log.Fields{
				"file": e.Name,
				"to":   ex.address,
			}).Warn("Sending datagram was refused, retrying..")
		} else {
			log.WithFields(log.Fields{
				"file": e.Name,
				"to":   ex.address,
			}).Info("Sent datagram")
			return
		}

		time.Sleep(time.Duration(math.Pow(2, float64(i))) * 100 * time.Millisecond)
	}

	log.WithField("file", e.Name).Error("Failed to process file, giving up.")
}

func (ex *exchange) handleDatagramRead() {
	for {
		ntf := ex.sock.Receive(context.Background())
		if ntf == nil {
			log.Error("Receiving datagram failed")

			close(ex.datagramChan)
			return
		}
		ex.datagramChan <- ntf
	}
}
