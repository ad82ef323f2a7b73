package main

import (
	"flag"
)

// DBCommands exposes engine introspection subcommands
type DBCommands struct {
	cli *CLI
}

// NewDBCommands creates a new DB commands handler
func NewDBCommands(cli *CLI) *DBCommands {
	return &DBCommands{cli: cli}
}

// Handle routes DB subcommands
func (d *DBCommands) Handle(args []string) {
	if len(args) == 0 {
		d.cli.Errorln("DB subcommand required")
		d.cli.Errorln("Usage: rockgatectl db <property|sequence|wal|wal-current|flush-wal|health> [options]")
		d.cli.Exit(1)
		return
	}

	subcommand := args[0]
	subArgs := args[1:]

	switch subcommand {
	case "property":
		d.Property(subArgs)
	case "sequence":
		d.Sequence(subArgs)
	case "wal":
		d.Wal(subArgs)
	case "wal-current":
		d.WalCurrent(subArgs)
	case "flush-wal":
		d.FlushWal(subArgs)
	case "health":
		d.Health(subArgs)
	default:
		d.cli.Errorf("Unknown DB subcommand: %s\n", subcommand)
		d.cli.Errorln("Available: property, sequence, wal, wal-current, flush-wal, health")
		d.cli.Exit(1)
	}
}

// Property reads a named engine property
func (d *DBCommands) Property(args []string) {
	config, remaining, err := d.cli.ParseGlobalFlags(args, "property")
	if err == flag.ErrHelp {
		d.cli.Println("Usage: rockgatectl db property <name> [options]")
		d.cli.Println()
		d.cli.Println("Known properties: engine, sequence, lsm-size, vlog-size, levels, tables")
		return
	}
	d.cli.HandleError(err, "parsing flags")
	d.cli.ValidateExactArgs(remaining, 1, "Usage: rockgatectl db property <name>")

	name := remaining[0]
	client := d.cli.CreateClient(config)

	value, err := client.GetProperty(name)
	d.cli.HandleError(err, "reading property '"+name+"'")

	d.cli.Printf("%s\n", value)
}

// Sequence prints the current commit sequence number
func (d *DBCommands) Sequence(args []string) {
	config, remaining, err := d.cli.ParseGlobalFlags(args, "sequence")
	if err == flag.ErrHelp {
		d.cli.Println("Usage: rockgatectl db sequence [options]")
		return
	}
	d.cli.HandleError(err, "parsing flags")
	d.cli.ValidateExactArgs(remaining, 0, "Usage: rockgatectl db sequence")

	client := d.cli.CreateClient(config)

	seq, err := client.GetSequence()
	d.cli.HandleError(err, "reading sequence")

	d.cli.Printf("%d\n", seq)
}

// Wal lists write-ahead log files oldest first
func (d *DBCommands) Wal(args []string) {
	config, remaining, err := d.cli.ParseGlobalFlags(args, "wal")
	if err == flag.ErrHelp {
		d.cli.Println("Usage: rockgatectl db wal [options]")
		return
	}
	d.cli.HandleError(err, "parsing flags")
	d.cli.ValidateExactArgs(remaining, 0, "Usage: rockgatectl db wal")

	client := d.cli.CreateClient(config)

	resp, err := client.GetWalFiles()
	d.cli.HandleError(err, "listing WAL files")

	if resp.Count == 0 {
		d.cli.Println("No WAL files")
		return
	}

	for _, f := range resp.Files {
		live := ""
		if f.Live {
			live = " (live)"
		}
		d.cli.Printf("%d  %s  %d bytes%s\n", f.LogNumber, f.Path, f.SizeBytes, live)
	}
}

// WalCurrent prints the live write-ahead log file
func (d *DBCommands) WalCurrent(args []string) {
	config, remaining, err := d.cli.ParseGlobalFlags(args, "wal-current")
	if err == flag.ErrHelp {
		d.cli.Println("Usage: rockgatectl db wal-current [options]")
		return
	}
	d.cli.HandleError(err, "parsing flags")
	d.cli.ValidateExactArgs(remaining, 0, "Usage: rockgatectl db wal-current")

	client := d.cli.CreateClient(config)

	wf, err := client.GetCurrentWalFile()
	d.cli.HandleError(err, "reading current WAL file")

	d.cli.Printf("%d  %s  %d bytes\n", wf.LogNumber, wf.Path, wf.SizeBytes)
}

// FlushWal flushes the write-ahead log to stable storage
func (d *DBCommands) FlushWal(args []string) {
	if len(args) > 0 && (args[0] == "-h" || args[0] == "--help") {
		d.cli.Println("Usage: rockgatectl db flush-wal [--no-sync] [options]")
		return
	}

	fs := flag.NewFlagSet("flush-wal", flag.ContinueOnError)
	fs.SetOutput(d.cli.Error)
	noSync := fs.Bool("no-sync", false, "Flush without fsync")
	serverURL := fs.String("server", defaultServerURL, "Rockgate server URL")

	err := fs.Parse(args)
	d.cli.HandleError(err, "parsing flags")
	d.cli.ValidateExactArgs(fs.Args(), 0, "Usage: rockgatectl db flush-wal [--no-sync]")

	client := NewRockgateClient(*serverURL)

	err = client.FlushWal(!*noSync)
	d.cli.HandleError(err, "flushing WAL")

	d.cli.Println("WAL flushed")
}

// Health prints server health and the current sequence
func (d *DBCommands) Health(args []string) {
	config, remaining, err := d.cli.ParseGlobalFlags(args, "health")
	if err == flag.ErrHelp {
		d.cli.Println("Usage: rockgatectl db health [options]")
		return
	}
	d.cli.HandleError(err, "parsing flags")
	d.cli.ValidateExactArgs(remaining, 0, "Usage: rockgatectl db health")

	client := d.cli.CreateClient(config)

	health, err := client.Health()
	d.cli.HandleError(err, "checking health")

	d.cli.Printf("status:   %s\n", health.Status)
	d.cli.Printf("version:  %s\n", health.Version)
	d.cli.Printf("sequence: %d\n", health.Sequence)
}
