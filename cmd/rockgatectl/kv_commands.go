package main

import (
	"flag"
	"strings"
)

// KVCommands handles all KV related commands
type KVCommands struct {
	cli *CLI
}

// NewKVCommands creates a new KV commands handler
func NewKVCommands(cli *CLI) *KVCommands {
	return &KVCommands{cli: cli}
}

// Handle routes KV subcommands
func (k *KVCommands) Handle(args []string) {
	if len(args) == 0 {
		k.cli.Errorln("KV subcommand required")
		k.cli.Errorln("Usage: rockgatectl kv <get|set|delete|many|clear|query> [options]")
		k.cli.Exit(1)
		return
	}

	subcommand := args[0]
	subArgs := args[1:]

	switch subcommand {
	case "get":
		k.Get(subArgs)
	case "set":
		k.Set(subArgs)
	case "delete":
		k.Delete(subArgs)
	case "many":
		k.Many(subArgs)
	case "clear":
		k.Clear(subArgs)
	case "query":
		k.Query(subArgs)
	default:
		k.cli.Errorf("Unknown KV subcommand: %s\n", subcommand)
		k.cli.Errorln("Available: get, set, delete, many, clear, query")
		k.cli.Exit(1)
	}
}

// Get retrieves a value by key
func (k *KVCommands) Get(args []string) {
	config, remaining, err := k.cli.ParseGlobalFlags(args, "get")
	if err == flag.ErrHelp {
		k.cli.Println("Usage: rockgatectl kv get <key> [options]")
		return
	}
	k.cli.HandleError(err, "parsing flags")
	k.cli.ValidateExactArgs(remaining, 1, "Usage: rockgatectl kv get <key>")

	key := remaining[0]
	client := k.cli.CreateClient(config)

	value, err := client.GetKV(key)
	k.cli.HandleError(err, "getting key '"+key+"'")

	k.cli.Printf("%s\n", value)
}

// Set sets a key-value pair
func (k *KVCommands) Set(args []string) {
	config, remaining, err := k.cli.ParseGlobalFlags(args, "set")
	if err == flag.ErrHelp {
		k.cli.Println("Usage: rockgatectl kv set <key> <value> [options]")
		return
	}
	k.cli.HandleError(err, "parsing flags")
	k.cli.ValidateExactArgs(remaining, 2, "Usage: rockgatectl kv set <key> <value>")

	key := remaining[0]
	value := remaining[1]
	client := k.cli.CreateClient(config)

	err = client.SetKV(key, value)
	k.cli.HandleError(err, "setting key '"+key+"'")

	k.cli.Printf("Successfully set %s = %s\n", key, value)
}

// Delete deletes a key
func (k *KVCommands) Delete(args []string) {
	config, remaining, err := k.cli.ParseGlobalFlags(args, "delete")
	if err == flag.ErrHelp {
		k.cli.Println("Usage: rockgatectl kv delete <key> [options]")
		return
	}
	k.cli.HandleError(err, "parsing flags")
	k.cli.ValidateExactArgs(remaining, 1, "Usage: rockgatectl kv delete <key>")

	key := remaining[0]
	client := k.cli.CreateClient(config)

	err = client.DeleteKV(key)
	k.cli.HandleError(err, "deleting key '"+key+"'")

	k.cli.Printf("Successfully deleted key: %s\n", key)
}

// Many retrieves several keys in one round trip
func (k *KVCommands) Many(args []string) {
	config, remaining, err := k.cli.ParseGlobalFlags(args, "many")
	if err == flag.ErrHelp {
		k.cli.Println("Usage: rockgatectl kv many <key> [key...] [options]")
		return
	}
	k.cli.HandleError(err, "parsing flags")
	k.cli.ValidateMinArgs(remaining, 1, "Usage: rockgatectl kv many <key> [key...]")

	client := k.cli.CreateClient(config)

	resp, err := client.GetManyKV(remaining)
	k.cli.HandleError(err, "getting keys")

	for _, key := range remaining {
		if value, ok := resp.Found[key]; ok {
			k.cli.Printf("%s = %s\n", key, value)
		} else {
			k.cli.Printf("%s (not found)\n", key)
		}
	}
}

// Clear deletes a contiguous key range
func (k *KVCommands) Clear(args []string) {
	if len(args) > 0 && (args[0] == "-h" || args[0] == "--help") {
		k.cli.Println("Usage: rockgatectl kv clear [--start <key>] [--end <key>] [options]")
		k.cli.Println()
		k.cli.Println("Without bounds the whole keyspace is cleared.")
		return
	}

	fs := flag.NewFlagSet("clear", flag.ContinueOnError)
	fs.SetOutput(k.cli.Error)
	start := fs.String("start", "", "Inclusive lower bound")
	end := fs.String("end", "", "Exclusive upper bound")
	serverURL := fs.String("server", defaultServerURL, "Rockgate server URL")

	err := fs.Parse(args)
	k.cli.HandleError(err, "parsing flags")
	k.cli.ValidateExactArgs(fs.Args(), 0, "Usage: rockgatectl kv clear [--start <key>] [--end <key>]")

	client := NewRockgateClient(*serverURL)

	err = client.ClearKV(*start, *end)
	k.cli.HandleError(err, "clearing range")

	k.cli.Println("Range cleared")
}

// Query pages through a snapshot of a key range
func (k *KVCommands) Query(args []string) {
	if len(args) > 0 && (args[0] == "-h" || args[0] == "--help") {
		k.cli.Println("Usage: rockgatectl kv query [options]")
		k.cli.Println()
		k.cli.Println("Options:")
		k.cli.Println("  --start <key>   Inclusive lower bound")
		k.cli.Println("  --end <key>     Exclusive upper bound")
		k.cli.Println("  --limit <n>     Page size")
		k.cli.Println("  --reverse       Descending key order")
		k.cli.Println("  --all           Follow pagination until finished")
		k.cli.Println("  --server <url>  Rockgate server URL")
		return
	}

	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	fs.SetOutput(k.cli.Error)
	start := fs.String("start", "", "Inclusive lower bound")
	end := fs.String("end", "", "Exclusive upper bound")
	limit := fs.Int("limit", 0, "Page size")
	reverse := fs.Bool("reverse", false, "Descending key order")
	all := fs.Bool("all", false, "Follow pagination until finished")
	serverURL := fs.String("server", defaultServerURL, "Rockgate server URL")

	err := fs.Parse(args)
	k.cli.HandleError(err, "parsing flags")
	k.cli.ValidateExactArgs(fs.Args(), 0, "Usage: rockgatectl kv query [options]")

	client := NewRockgateClient(*serverURL)

	params := QueryParams{Start: *start, End: *end, Limit: *limit, Reverse: *reverse}
	total := 0
	for {
		resp, err := client.Query(params)
		k.cli.HandleError(err, "querying")

		for _, row := range resp.Rows {
			k.cli.Printf("%s = %s\n", row.Key, row.Value)
			total++
		}

		if resp.Finished || !*all || len(resp.Rows) == 0 {
			if !resp.Finished && !*all {
				k.cli.Println()
				k.cli.Printf("(truncated at %d rows, rerun with --all)\n", total)
			}
			return
		}

		// Resume past the last row of this page.
		last := resp.Rows[len(resp.Rows)-1].Key
		params.Start = last
		params.ExcludeStart = true
	}
}

// BatchCommands applies atomic multi-operation writes
type BatchCommands struct {
	cli *CLI
}

// NewBatchCommands creates a new batch commands handler
func NewBatchCommands(cli *CLI) *BatchCommands {
	return &BatchCommands{cli: cli}
}

// Handle parses put:key=value and delete:key arguments and applies them
func (b *BatchCommands) Handle(args []string) {
	if len(args) > 0 && (args[0] == "-h" || args[0] == "--help") {
		b.cli.Println("Usage: rockgatectl batch <op>... [options]")
		b.cli.Println()
		b.cli.Println("Operations:")
		b.cli.Println("  put:<key>=<value>  Stage a put")
		b.cli.Println("  delete:<key>       Stage a delete")
		b.cli.Println()
		b.cli.Println("Example:")
		b.cli.Println("  rockgatectl batch put:a=1 put:b=2 delete:c")
		return
	}

	config, remaining, err := b.cli.ParseGlobalFlags(args, "batch")
	if err == flag.ErrHelp {
		b.cli.Println("Usage: rockgatectl batch <op>... [options]")
		return
	}
	b.cli.HandleError(err, "parsing flags")
	b.cli.ValidateMinArgs(remaining, 1, "Usage: rockgatectl batch <op>...")

	ops := make([]BatchOp, 0, len(remaining))
	for _, arg := range remaining {
		switch {
		case strings.HasPrefix(arg, "put:"):
			kv := strings.SplitN(strings.TrimPrefix(arg, "put:"), "=", 2)
			if len(kv) != 2 || kv[0] == "" {
				b.cli.ExitError("Invalid put operation: %s (want put:<key>=<value>)\n", arg)
				return
			}
			ops = append(ops, BatchOp{Type: "put", Key: kv[0], Value: kv[1]})
		case strings.HasPrefix(arg, "delete:"):
			key := strings.TrimPrefix(arg, "delete:")
			if key == "" {
				b.cli.ExitError("Invalid delete operation: %s (want delete:<key>)\n", arg)
				return
			}
			ops = append(ops, BatchOp{Type: "delete", Key: key})
		default:
			b.cli.ExitError("Unknown operation: %s (want put:<key>=<value> or delete:<key>)\n", arg)
			return
		}
	}

	client := b.cli.CreateClient(config)

	resp, err := client.ApplyBatch(ops)
	b.cli.HandleError(err, "applying batch")

	b.cli.Printf("Applied %d operations\n", resp.Count)
}
