// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/Tecet/OLLM-CLI-sub019/internal/compression"
	"github.com/Tecet/OLLM-CLI-sub019/internal/mode"
	"github.com/Tecet/OLLM-CLI-sub019/internal/snapshot"
	"github.com/spf13/cobra"
)

// forceCompressAction is the action `/context compress` always requests
// regardless of the current fill ratio.
func forceCompressAction() compression.Action { return compression.ActionNormalCompress }

// snapshotNow builds a rollback-purpose snapshot of rt's current session
// state, the purpose `/context snapshot` always uses.
func snapshotNow(rt *Runtime) *snapshot.Snapshot {
	s := rt.session
	return snapshot.New(s.ID, snapshot.PurposeRollback, snapshot.ConversationState{
		Messages:    s.Messages.Messages(),
		Checkpoints: s.Checkpoints.All(),
		Goal:        s.Goal,
	})
}

// runChat is the root command's default action: a line-oriented REPL
// reading user turns from stdin and dispatching the `/` command surface
// of spec.md §6 (`/new`, `/clear`, `/context ...`, `/mode <name>`).
func runChat(cmd *cobra.Command, args []string) error {
	rt, err := NewRuntime(ollmHome, modelFlag, baseURL)
	if err != nil {
		return fmt.Errorf("initializing runtime: %w", err)
	}
	defer rt.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("ollm: bound to model %q (home %s). Type /help for commands, Ctrl-D to exit.\n", modelFlag, ollmHome)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if handleCommand(ctx, rt, line) {
				break
			}
			continue
		}

		result, err := rt.loop.RunTurn(ctx, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		if result.Cancelled {
			fmt.Println("[cancelled]")
			continue
		}
		fmt.Println(result.FinalMessage.Content)
		if result.ForcedStop {
			fmt.Fprintln(os.Stderr, "[reached the maximum number of tool-call rounds for this turn]")
		}
	}

	return scanner.Err()
}

// handleCommand runs one `/`-prefixed command; it returns true when the
// REPL should exit.
func handleCommand(ctx context.Context, rt *Runtime, line string) bool {
	fields := strings.Fields(line)
	cmd := fields[0]
	rest := fields[1:]

	switch cmd {
	case "/exit", "/quit":
		return true

	case "/help":
		fmt.Println("/new, /clear, /context [compress|snapshot|restore <id>], /mode <name>, /model <name>, /exit")

	case "/new":
		rt.New()
		fmt.Println("started a new session")

	case "/clear":
		rt.Clear()
		fmt.Println("cleared live messages")

	case "/model":
		if len(rest) != 1 {
			fmt.Println("usage: /model <name>")
			return false
		}
		rt.SwapModel(rest[0])
		if msgs := rt.session.Messages.Messages(); len(msgs) > 0 {
			fmt.Println(msgs[len(msgs)-1].Content)
		}

	case "/mode":
		if len(rest) != 1 {
			fmt.Println("usage: /mode <name>")
			return false
		}
		if _, err := rt.modeMgr.Switch(mode.Mode(rest[0]), rt.session.Messages.Messages(), nil, ""); err != nil {
			fmt.Fprintf(os.Stderr, "mode switch refused: %v\n", err)
			return false
		}
		fmt.Printf("switched to mode %q\n", rest[0])

	case "/context":
		handleContext(ctx, rt, rest)

	default:
		fmt.Printf("unknown command %q\n", cmd)
	}

	return false
}

func handleContext(ctx context.Context, rt *Runtime, args []string) {
	if len(args) == 0 {
		usage := rt.pool.Usage()
		fmt.Printf("tokens %d / user_size %d (%.1f%% of user) / provider_size %d (%.1f%% of provider)\n",
			usage.Current, usage.UserSize, usage.PercentOfUser*100, usage.ProviderSize, usage.PercentOfProvider*100)
		return
	}

	switch args[0] {
	case "compress":
		usage := rt.pool.Usage()
		ck, err := rt.compressor.Run(ctx, forceCompressAction(), usage.ProviderSize, rt.session.Goal)
		if err != nil {
			fmt.Fprintf(os.Stderr, "compress failed: %v\n", err)
			return
		}
		if ck == nil {
			fmt.Println("nothing to compress")
			return
		}
		fmt.Printf("compressed into checkpoint %s\n", ck.ID)

	case "snapshot":
		snap := snapshotNow(rt)
		if err := rt.snapshots.Save(ctx, snap); err != nil {
			fmt.Fprintf(os.Stderr, "snapshot failed: %v\n", err)
			return
		}
		fmt.Printf("saved snapshot %s\n", snap.ID)

	case "restore":
		if len(args) != 2 {
			fmt.Println("usage: /context restore <id>")
			return
		}
		snap, ok, err := rt.snapshots.Get(rt.session.ID, args[1])
		if err != nil || !ok {
			fmt.Fprintf(os.Stderr, "snapshot %q not found\n", args[1])
			return
		}
		rt.session.Messages.Replace(snap.ConversationState.Messages)
		rt.session.Goal = snap.ConversationState.Goal
		fmt.Printf("restored snapshot %s\n", snap.ID)

	default:
		fmt.Printf("unknown /context subcommand %q\n", args[0])
	}
}
