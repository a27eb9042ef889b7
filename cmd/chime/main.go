// Copyright 2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Command chime is a terminal front for the chime Matrix client engine. It
// authenticates (guest by default, password when configured), keeps a
// continuous sync loop running, prints incoming messages, and sends stdin
// lines to the selected room.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix/id"

	"github.com/aiku/chime/pkg/config"
	"github.com/aiku/chime/pkg/engine"
	"github.com/aiku/chime/pkg/format"
)

// These are filled at build time with -ldflags.
var (
	Tag       = "unknown"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	defaultPath, err := config.Path()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var (
		cfgPath = flag.String("c", defaultPath, "configuration file")
		server  = flag.String("s", "", "homeserver URL override")
		user    = flag.String("u", "", "username override")
		pass    = flag.String("p", "", "password override")
		roomID  = flag.String("room", "", "room id to select after the initial sync")
		version = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *version {
		fmt.Printf("chime %s (%s, built %s)\n", Tag, Commit, BuildTime)
		return
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *server != "" {
		cfg.Server = *server
	}
	if *user != "" {
		cfg.Username = *user
	}
	if *pass != "" {
		cfg.Password = *pass
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).With().Timestamp().Logger()

	eng, err := engine.New(cfg.MediaCacheDir(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize engine")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eng.Run(ctx)

	if cfg.Username != "" && cfg.Password != "" {
		eng.Submit(engine.Login{User: cfg.Username, Password: cfg.Password, Server: cfg.Server})
	} else {
		log.Info().Str("server", cfg.Server).Msg("No credentials configured, joining as guest")
		eng.Submit(engine.Guest{Server: cfg.Server})
	}

	// stdin lines become messages to the selected room.
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			if line := sc.Text(); line != "" {
				eng.Submit(engine.SendMsg{Body: line})
			}
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info().Msg("Interrupted, shutting down")
		eng.Submit(engine.ShutDown{})
	}()

	drain(eng, log, id.RoomID(*roomID))
}

// drain consumes engine responses until the channel closes. It implements
// the continuous sync policy: every authentication or sync completion
// immediately arms the next Sync, and a sync failure stops the loop instead
// of retrying.
func drain(eng *engine.Engine, log zerolog.Logger, wantRoom id.RoomID) {
	for resp := range eng.Responses() {
		switch r := resp.(type) {
		case engine.AuthResponse:
			if r.Error != nil {
				log.Fatal().Err(r.Error).Msg("Authentication failed")
			}
			log.Info().Str("user_id", string(r.UserID)).Msg("Logged in")
			eng.Submit(engine.GetUsername{})
			eng.Submit(engine.Sync{})

		case engine.UsernameResponse:
			if r.Error == nil && r.Name != "" {
				log.Info().Str("display_name", r.Name).Msg("Profile loaded")
			}

		case engine.SyncResponse:
			if r.Error != nil {
				log.Error().Err(r.Error).Msg("Sync failed, stopping")
				eng.Submit(engine.ShutDown{})
				continue
			}
			if r.Initial {
				for _, rm := range r.Rooms {
					fmt.Printf("%s  %s (%d members)\n", rm.ID, rm.Name, rm.Members)
				}
				if wantRoom != "" {
					eng.Submit(engine.SetRoom{Room: wantRoom})
					eng.Submit(engine.GetRoomMessages{})
				}
			}
			for _, msg := range r.Messages {
				printMessage(msg.Sender.String(), msg.Body)
			}
			eng.Submit(engine.Sync{})

		case engine.SetRoomResponse:
			if r.Error != nil {
				log.Error().Err(r.Error).Msg("Failed to select room")
				continue
			}
			fmt.Printf("== %s", r.Room.Name)
			if r.Room.Topic != "" {
				fmt.Printf(" (%s)", r.Room.Topic)
			}
			fmt.Println()

		case engine.MessagesResponse:
			if r.Error != nil {
				log.Error().Err(r.Error).Msg("Failed to fetch messages")
				continue
			}
			for _, msg := range r.Messages {
				printMessage(msg.Sender.String(), msg.Body)
			}

		case engine.SendResponse:
			if r.Error != nil {
				log.Error().Err(r.Error).Msg("Failed to send message")
			}
		}
	}
}

func printMessage(sender, body string) {
	fmt.Printf("<%s> %s\n", sender, format.Markup(body))
}
