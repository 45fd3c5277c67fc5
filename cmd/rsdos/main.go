// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Command rsdos is the thin CLI front end for the object store core: it
// only parses arguments and prints results, leaving every storage
// decision to the container package.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/unkcpz/rsdos/config"
	"github.com/unkcpz/rsdos/container"
	"github.com/unkcpz/rsdos/modules/digest"
	"github.com/unkcpz/rsdos/modules/rsdoserr"
	"github.com/unkcpz/rsdos/modules/streamio"
	"github.com/unkcpz/rsdos/modules/strengthen"
	"github.com/unkcpz/rsdos/modules/trace"
	"github.com/unkcpz/rsdos/pack"
)

const (
	exitOK             = 0
	exitUserError      = 1
	exitIOError        = 2
	exitNotInitialized = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: rsdos <init|status|add-files|optimize|cat> ...")
		return exitUserError
	}
	root := os.Getenv("RSDOS_ROOT")
	if root == "" {
		root = "."
	}
	root = strengthen.ExpandPath(root)
	trace.Logger.WithField("root", root).WithField("cmd", args[0]).Debug("dispatching subcommand")
	switch args[0] {
	case "init":
		return cmdInit(root, args[1:])
	case "status":
		return cmdStatus(root, args[1:])
	case "add-files":
		return cmdAddFiles(root, args[1:])
	case "optimize":
		return cmdOptimize(root, args[1:])
	case "cat":
		return cmdCat(root, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\n", args[0])
		return exitUserError
	}
}

func cmdInit(root string, args []string) int {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	packSize := fs.String("pack-size", "", "target size of each pack file, e.g. 4g")
	compression := fs.String("compression", "", "compression algorithm, e.g. zlib+1 or zstd:3")
	clear := fs.Bool("clear", false, "purge the container root before initializing")
	if err := fs.Parse(args); err != nil {
		return exitUserError
	}

	cfg := config.Default()
	if *packSize != "" {
		n, err := strengthen.ParseSize(*packSize)
		if err != nil {
			fmt.Fprintf(os.Stderr, "bad --pack-size: %v\n", err)
			return exitUserError
		}
		cfg.PackSizeTarget = n
	}
	if *compression != "" {
		cfg.CompressionAlgorithm = *compression
	}
	if err := container.Init(root, cfg, *clear); err != nil {
		return exitForError(err)
	}
	fmt.Printf("initialized container %s at %s\n", cfg.ContainerID, root)
	return exitOK
}

func cmdStatus(root string, args []string) int {
	c, err := container.Open(root)
	if err != nil {
		return exitForError(err)
	}
	defer c.Close()
	st, err := c.Status()
	if err != nil {
		return exitForError(err)
	}
	fmt.Printf("container:   %s\n", st.ContainerID)
	fmt.Printf("compression: %s\n", st.Compression)
	fmt.Printf("loose:       %d objects, %s\n", st.LooseCount, strengthen.FormatSize(st.LooseBytes))
	fmt.Printf("packed:      %d objects, %s stored (%s raw)\n",
		st.PackedCount, strengthen.FormatSize(st.PackedBytes), strengthen.FormatSize(st.PackedRaw))
	return exitOK
}

func cmdAddFiles(root string, args []string) int {
	fs := flag.NewFlagSet("add-files", flag.ContinueOnError)
	to := fs.String("to", "loose", "destination storage class: loose or auto")
	if err := fs.Parse(args); err != nil {
		return exitUserError
	}
	if *to != "loose" && *to != "auto" {
		fmt.Fprintf(os.Stderr, "--to must be loose or auto, got %q\n", *to)
		return exitUserError
	}
	paths := fs.Args()
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "add-files: no paths given")
		return exitUserError
	}

	c, err := container.Open(root)
	if err != nil {
		return exitForError(err)
	}
	defer c.Close()

	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", p, err)
			return exitIOError
		}
		h, err := c.Insert(f)
		_ = f.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", p, err)
			return exitForError(err)
		}
		fmt.Printf("%s  %s\n", h, p)
	}

	if *to == "auto" {
		if _, err := c.PackAllLoose(pack.Auto); err != nil {
			return exitForError(err)
		}
	}
	return exitOK
}

func cmdOptimize(root string, args []string) int {
	fs := flag.NewFlagSet("optimize", flag.ContinueOnError)
	compress := fs.String("compress", "auto", "compression decision: auto, yes, or no")
	if err := fs.Parse(args); err != nil {
		return exitUserError
	}
	if len(fs.Args()) == 0 || fs.Args()[0] != "pack" {
		fmt.Fprintln(os.Stderr, "usage: rsdos optimize pack [--compress auto|yes|no]")
		return exitUserError
	}
	// flags may also follow the "pack" action
	if err := fs.Parse(fs.Args()[1:]); err != nil {
		return exitUserError
	}
	mode, err := pack.ParseCompressMode(*compress)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUserError
	}

	c, err := container.Open(root)
	if err != nil {
		return exitForError(err)
	}
	defer c.Close()

	stats, err := c.PackAllLoose(mode)
	if err != nil {
		return exitForError(err)
	}
	fmt.Printf("packed %d objects (%s stored, %s saved by compression)\n",
		stats.ObjectsPacked, strengthen.FormatSize(stats.BytesPacked), strengthen.FormatSize(stats.BytesCompressed))
	return exitOK
}

func cmdCat(root string, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: rsdos cat <digest>")
		return exitUserError
	}
	h, err := digest.NewHashEx(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUserError
	}

	c, err := container.Open(root)
	if err != nil {
		return exitForError(err)
	}
	defer c.Close()

	r, err := c.Extract(h)
	if err != nil {
		return exitForError(err)
	}
	defer r.Close()

	if _, err := streamio.Copy(os.Stdout, r); err != nil {
		fmt.Fprintln(os.Stderr, trace.Errorf("streaming object %s to stdout: %v", h, err))
		return exitIOError
	}
	return exitOK
}

func exitForError(err error) int {
	fmt.Fprintln(os.Stderr, err)
	switch {
	case rsdoserr.Is(err, rsdoserr.KindNotInitialized):
		return exitNotInitialized
	case rsdoserr.Is(err, rsdoserr.KindIO):
		return exitIOError
	default:
		return exitUserError
	}
}
