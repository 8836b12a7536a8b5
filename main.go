package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/illarion/lockkv/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "set":
		runSet(ctx, os.Args[2:])
	case "get":
		runGet(ctx, os.Args[2:])
	case "rm":
		runRm(ctx, os.Args[2:])
	case "clear":
		runClear(ctx, os.Args[2:])
	case "destroy":
		runDestroy(ctx, os.Args[2:])
	case "ls":
		runLs(ctx, os.Args[2:])
	case "compact":
		runCompact(ctx, os.Args[2:])
	case "diff":
		runDiff(ctx, os.Args[2:])
	case "keyring":
		runKeyring(ctx, os.Args[2:])
	case "completion":
		runCompletion(ctx, os.Args[2:])
	case "help", "-h", "--help":
		if len(os.Args) <= 2 {
			printUsage()
			return
		}
		printCommandHelp(os.Args[2])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// parseFlags parses the shared flags plus whatever extra registers on fs
func parseFlags(fs *flag.FlagSet, args []string) *cmd.Options {
	opts := cmd.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	cmd.SetupLogging(opts.Verbose)
	return opts
}

func runSet(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("set", flag.ExitOnError)
	file := fs.String("f", "", "Read the value from a file")
	opts := parseFlags(fs, args)

	switch fs.NArg() {
	case 1:
		cmd.Set(ctx, opts, fs.Arg(0), nil, *file)
	case 2:
		cmd.Set(ctx, opts, fs.Arg(0), []byte(fs.Arg(1)), *file)
	default:
		fmt.Fprintln(os.Stderr, "Usage: lockkv set [flags] <key> [value]")
		os.Exit(1)
	}
}

func runGet(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	opts := parseFlags(fs, args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: lockkv get [flags] <key>")
		os.Exit(1)
	}
	cmd.Get(ctx, opts, fs.Arg(0))
}

func runRm(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("rm", flag.ExitOnError)
	opts := parseFlags(fs, args)

	cmd.Remove(ctx, opts, fs.Args())
}

func runClear(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	force := fs.Bool("force", false, "Clear without confirmation")
	opts := parseFlags(fs, args)

	cmd.Clear(ctx, opts, *force)
}

func runDestroy(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("destroy", flag.ExitOnError)
	force := fs.Bool("force", false, "Destroy without confirmation")
	opts := parseFlags(fs, args)

	cmd.Destroy(ctx, opts, *force)
}

func runLs(_ context.Context, args []string) {
	fs := flag.NewFlagSet("ls", flag.ExitOnError)
	opts := parseFlags(fs, args)

	cmd.Ls(opts)
}

func runCompact(_ context.Context, args []string) {
	fs := flag.NewFlagSet("compact", flag.ExitOnError)
	opts := parseFlags(fs, args)

	cmd.Compact(opts)
}

func runDiff(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("diff", flag.ExitOnError)
	opts := parseFlags(fs, args)

	if fs.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "Usage: lockkv diff [flags] <key> <file>")
		os.Exit(1)
	}
	cmd.Diff(ctx, opts, fs.Arg(0), fs.Arg(1))
}

func runKeyring(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: lockkv keyring <save|delete|status> [flags]")
		os.Exit(1)
	}

	fs := flag.NewFlagSet("keyring", flag.ExitOnError)
	opts := parseFlags(fs, args[1:])

	switch args[0] {
	case "save":
		cmd.KeyringSave(ctx, opts)
	case "delete":
		cmd.KeyringDelete(opts)
	case "status":
		cmd.KeyringStatus(opts)
	default:
		fmt.Fprintf(os.Stderr, "Unknown keyring command: %s\n", args[0])
		os.Exit(1)
	}
}

func runCompletion(_ context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: lockkv completion <bash|zsh|fish>")
		os.Exit(1)
	}
	cmd.Completion(args[0])
}

func printUsage() {
	fmt.Println("lockkv - Encrypted key-value storage")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  lockkv <command> [flags] [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  set         Encrypt and store a value")
	fmt.Println("  get         Decrypt and print a value")
	fmt.Println("  rm          Remove keys")
	fmt.Println("  clear       Remove every entry of a table")
	fmt.Println("  destroy     Delete a whole database")
	fmt.Println("  ls          List databases in the data directory")
	fmt.Println("  compact     Compact a database to reclaim disk space")
	fmt.Println("  diff        Compare a stored value with a local file")
	fmt.Println("  keyring     Manage the secret in the OS keyring")
	fmt.Println("  completion  Generate shell completions")
	fmt.Println("  help        Show help for a command")
	fmt.Println()
	fmt.Println("Shared flags:")
	fmt.Println("  -dir <path>        Data directory (default $LOCKKV_DIR or the user config dir)")
	fmt.Println("  -db <name>         Database name (default lockkv)")
	fmt.Println("  -table <name>      Table name (default store)")
	fmt.Println("  -iterations <n>    Key derivation iterations")
	fmt.Println("  -salt <hex>        Salt used when the table is created")
	fmt.Println("  -kdf <name>        pbkdf2 (default), hkdf or argon2id")
	fmt.Println("  -cipher <name>     aes-gcm (default) or chacha20-poly1305")
	fmt.Println("  -v                 Verbose diagnostic logging")
	fmt.Println()
	fmt.Println("The secret is read from $LOCKKV_SECRET, the OS keyring, or a prompt.")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  lockkv set api-token s3cr3t          # Store a value")
	fmt.Println("  lockkv set -f cert.pem tls-cert      # Store a file")
	fmt.Println("  lockkv get api-token                 # Print a value")
	fmt.Println("  lockkv get -table prod api-token     # Use another table")
	fmt.Println()
	fmt.Println("Use 'lockkv help <command>' for more information about a command.")
}

func printCommandHelp(command string) {
	switch command {
	case "set":
		fmt.Println("lockkv set [flags] [-f file] <key> [value]")
		fmt.Println()
		fmt.Println("Encrypts a value and stores it under key.")
		fmt.Println("The value is taken from the argument, the -f file, or stdin.")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  lockkv set api-token s3cr3t")
		fmt.Println("  lockkv set -f .env dotenv")
		fmt.Println("  echo -n s3cr3t | lockkv set api-token")
	case "get":
		fmt.Println("lockkv get [flags] <key>")
		fmt.Println()
		fmt.Println("Decrypts a value and writes it to stdout.")
		fmt.Println("Fails if the key is missing or the secret, salt or iterations are wrong.")
	case "rm":
		fmt.Println("lockkv rm [flags] <key> [key...]")
		fmt.Println()
		fmt.Println("Removes keys. Removing a missing key is not an error.")
	case "clear":
		fmt.Println("lockkv clear [flags] [-force]")
		fmt.Println()
		fmt.Println("Removes every entry of the table. The salt is kept, so the same")
		fmt.Println("secret keeps working for new values.")
	case "destroy":
		fmt.Println("lockkv destroy [flags] [-force]")
		fmt.Println()
		fmt.Println("Deletes the whole database: every table and its salt.")
		fmt.Println("Also removes the secret from the OS keyring.")
	case "ls":
		fmt.Println("lockkv ls [flags]")
		fmt.Println()
		fmt.Println("Lists database files in the data directory with version and size.")
		fmt.Println("Names are stored hashed; the database selected by -db is marked.")
		fmt.Println()
		fmt.Println("Does not require a secret.")
	case "compact":
		fmt.Println("lockkv compact [flags]")
		fmt.Println()
		fmt.Println("Compacts the database selected by -db to reclaim unused disk space.")
		fmt.Println()
		fmt.Println("Does not require a secret.")
	case "diff":
		fmt.Println("lockkv diff [flags] <key> <file>")
		fmt.Println()
		fmt.Println("Shows a unified diff from the stored value to the local file.")
	case "keyring":
		fmt.Println("lockkv keyring <save|delete|status> [flags]")
		fmt.Println()
		fmt.Println("Manages the secret of the selected database and table in the OS keyring.")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  lockkv keyring save")
		fmt.Println("  lockkv keyring status -table prod")
	case "completion":
		fmt.Println("lockkv completion <bash|zsh|fish>")
		fmt.Println()
		fmt.Println("Outputs shell completion script for the specified shell.")
		fmt.Println()
		fmt.Println("Setup:")
		fmt.Println("  # Bash - add to ~/.bashrc")
		fmt.Println("  eval \"$(lockkv completion bash)\"")
		fmt.Println()
		fmt.Println("  # Zsh - add to ~/.zshrc")
		fmt.Println("  eval \"$(lockkv completion zsh)\"")
		fmt.Println()
		fmt.Println("  # Fish - add to ~/.config/fish/config.fish")
		fmt.Println("  lockkv completion fish | source")
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
	}
}
