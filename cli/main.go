package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"streamup"
	"streamup/config"
	"streamup/storage"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "add":
		cmdAdd(args)
	case "ls":
		cmdList(args)
	case "pause":
		cmdEntry(args, "pause", func(e *streamup.Engine, id string) error { return e.Pause(id) })
	case "resume":
		cmdEntry(args, "resume", func(e *streamup.Engine, id string) error { return e.Resume(id) })
	case "cancel":
		cmdEntry(args, "cancel", func(e *streamup.Engine, id string) error { return e.Cancel(id) })
	case "rm":
		cmdEntry(args, "rm", func(e *streamup.Engine, id string) error { return e.RemoveFromHistory(id) })
	case "pause-all":
		cmdAll(args, func(e *streamup.Engine) { e.PauseAll() })
	case "resume-all":
		cmdAll(args, func(e *streamup.Engine) { e.ResumeAll() })
	case "title":
		cmdTitle(args)
	case "thumb":
		cmdThumb(args)
	case "run":
		cmdRun(args)
	case "sync":
		cmdSync(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `streamup - resumable chunked video uploads

Usage:
  streamup add [flags] <file>...     Enqueue files for upload
  streamup ls [flags]                Show the upload queue
  streamup run [flags]               Process the queue until interrupted
  streamup pause <id>                Pause one entry
  streamup resume <id>               Resume one entry
  streamup pause-all                 Pause everything
  streamup resume-all                Resume everything
  streamup cancel <id>               Cancel an entry (deletes unfinished remote resources)
  streamup rm <id>                   Remove a finished entry from history
  streamup sync                      Reconcile history against the remote catalog
  streamup title <id> <title>        Rename an entry locally and remotely
  streamup thumb <id> <image>        Upload a thumbnail for an entry
  streamup help                      Show this help message

Examples:
  streamup add --library 7 movie.mp4                # Enqueue one file
  streamup run --drain                              # Upload until the queue is empty
  streamup ls                                       # Inspect progress

For help on a specific command: streamup <command> -h
`)
}

func newFlagSet(name, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s\n\nFlags:\n", usage)
		fs.PrintDefaults()
	}
	return fs
}

func configFlag(fs *flag.FlagSet) *string {
	return fs.String("config", "~/.streamup/config.yaml", "Path to the configuration file")
}

func openEngine(configPath string) *streamup.Engine {
	cfg, err := config.Load(configPath)
	if err != nil {
		fatal("load config: %v", err)
	}
	engine, err := streamup.NewEngine(cfg, nil)
	if err != nil {
		fatal("%v", err)
	}
	return engine
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func cmdAdd(args []string) {
	fs := newFlagSet("add", "Usage: streamup add [flags] <file>...")
	configPath := configFlag(fs)
	library := fs.String("library", "", "Target library id (required)")
	collection := fs.String("collection", "", "Optional target collection id")
	fs.Parse(args)

	files := fs.Args()
	if len(files) == 0 {
		fatal("missing files to enqueue")
	}
	if *library == "" {
		fatal("missing --library")
	}

	engine := openEngine(*configPath)
	defer engine.Close()

	added, err := engine.Enqueue(files, *library, *collection)
	if err != nil {
		fatal("%v", err)
	}
	for _, e := range added {
		fmt.Printf("%s  %s  %s\n", shortID(e.ID), e.Status, e.FilePath)
	}
}

func cmdList(args []string) {
	fs := newFlagSet("ls", "Usage: streamup ls [flags]")
	configPath := configFlag(fs)
	all := fs.Bool("all", false, "Include full entry ids")
	fs.Parse(args)

	engine := openEngine(*configPath)
	defer engine.Close()

	entries := engine.List()
	if len(entries) == 0 {
		fmt.Println("queue is empty")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tPROGRESS\tFILE\tVIDEO")
	for _, e := range entries {
		id := shortID(e.ID)
		if *all {
			id = e.ID
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			id, e.Status, progressCell(e), e.FilePath, e.VideoID)
	}
	w.Flush()
}

func progressCell(e *storage.QueueEntry) string {
	switch e.Status {
	case storage.StatusSuccess:
		return "100%"
	case storage.StatusFailed:
		if e.Error != "" {
			return "error: " + e.Error
		}
		return "error"
	default:
		return fmt.Sprintf("%.0f%%", e.Progress()*100)
	}
}

func cmdEntry(args []string, name string, op func(*streamup.Engine, string) error) {
	fs := newFlagSet(name, "Usage: streamup "+name+" [flags] <id>")
	configPath := configFlag(fs)
	fs.Parse(args)

	if len(fs.Args()) != 1 {
		fatal("expected exactly one entry id")
	}

	engine := openEngine(*configPath)
	defer engine.Close()

	id, err := resolveID(engine.List(), fs.Args()[0])
	if err != nil {
		fatal("%v", err)
	}
	if err := op(engine, id); err != nil {
		fatal("%s %s: %v", name, shortID(id), err)
	}
}

func cmdAll(args []string, op func(*streamup.Engine)) {
	fs := newFlagSet("bulk", "Usage: streamup pause-all|resume-all [flags]")
	configPath := configFlag(fs)
	fs.Parse(args)

	engine := openEngine(*configPath)
	defer engine.Close()
	op(engine)
}

func cmdRun(args []string) {
	fs := newFlagSet("run", "Usage: streamup run [flags]")
	configPath := configFlag(fs)
	drain := fs.Bool("drain", false, "Exit once the queue has no pending or active uploads")
	fs.Parse(args)

	engine := openEngine(*configPath)
	defer engine.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine.Start(ctx)
	fmt.Fprintln(os.Stderr, "processing queue, ^C to stop")

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if *drain && engine.Drained() {
				return
			}
		}
	}
}

func cmdTitle(args []string) {
	fs := newFlagSet("title", "Usage: streamup title [flags] <id> <title>")
	configPath := configFlag(fs)
	fs.Parse(args)

	if len(fs.Args()) != 2 {
		fatal("expected an entry id and a title")
	}

	engine := openEngine(*configPath)
	defer engine.Close()

	id, err := resolveID(engine.List(), fs.Args()[0])
	if err != nil {
		fatal("%v", err)
	}
	if err := engine.UpdateTitle(context.Background(), id, fs.Args()[1]); err != nil {
		fatal("title: %v", err)
	}
}

func cmdThumb(args []string) {
	fs := newFlagSet("thumb", "Usage: streamup thumb [flags] <id> <image>")
	configPath := configFlag(fs)
	fs.Parse(args)

	if len(fs.Args()) != 2 {
		fatal("expected an entry id and an image path")
	}

	engine := openEngine(*configPath)
	defer engine.Close()

	id, err := resolveID(engine.List(), fs.Args()[0])
	if err != nil {
		fatal("%v", err)
	}
	if err := engine.SetThumbnail(context.Background(), id, fs.Args()[1]); err != nil {
		fatal("thumb: %v", err)
	}
}

func cmdSync(args []string) {
	fs := newFlagSet("sync", "Usage: streamup sync [flags]")
	configPath := configFlag(fs)
	fs.Parse(args)

	engine := openEngine(*configPath)
	defer engine.Close()

	if err := engine.Sync(context.Background()); err != nil {
		fatal("sync: %v", err)
	}
	fmt.Println("history reconciled")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// resolveID accepts a full id or a unique prefix.
func resolveID(entries []*storage.QueueEntry, arg string) (string, error) {
	var match string
	for _, e := range entries {
		if e.ID == arg {
			return e.ID, nil
		}
		if strings.HasPrefix(e.ID, arg) {
			if match != "" {
				return "", fmt.Errorf("ambiguous entry id %q", arg)
			}
			match = e.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("no entry matches %q", arg)
	}
	return match, nil
}
