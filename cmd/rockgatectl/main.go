package main

import (
	"fmt"
	"os"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cli := NewCLI()
	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "kv":
		NewKVCommands(cli).Handle(args)
	case "batch":
		NewBatchCommands(cli).Handle(args)
	case "db":
		NewDBCommands(cli).Handle(args)
	case "updates":
		NewUpdatesCommands(cli).Handle(args)
	case "version":
		fmt.Printf("rockgatectl version %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("rockgatectl - Rockgate CLI Tool")
	fmt.Println()
	fmt.Println("Usage: rockgatectl <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  kv <subcommand>      Key-value operations")
	fmt.Println("    get <key>          Get value by key")
	fmt.Println("    set <key> <value>  Set key-value pair")
	fmt.Println("    delete <key>       Delete key")
	fmt.Println("    many <key>...      Get several keys at once")
	fmt.Println("    clear              Clear a key range (--start/--end)")
	fmt.Println("    query              Page through a key range snapshot")
	fmt.Println()
	fmt.Println("  batch <op>...        Apply put/delete operations atomically")
	fmt.Println()
	fmt.Println("  db <subcommand>      Engine introspection")
	fmt.Println("    property <name>    Read an engine property")
	fmt.Println("    sequence           Show the current commit sequence")
	fmt.Println("    wal                List write-ahead log files")
	fmt.Println("    wal-current        Show the live write-ahead log file")
	fmt.Println("    flush-wal          Flush the write-ahead log")
	fmt.Println("    health             Server health")
	fmt.Println()
	fmt.Println("  updates              Stream the change feed (--since <seq>)")
	fmt.Println()
	fmt.Println("  version              Show version")
	fmt.Println("  help                 Show this help")
	fmt.Println()
	fmt.Println("Global Options:")
	fmt.Println("  --server <url>       Rockgate server URL (default: http://localhost:8988)")
}
