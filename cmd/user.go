package cmd

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"text/tabwriter"

	"grimm.is/netguard/internal/auth"
	"grimm.is/netguard/internal/config"
)

// RunUser manages portal accounts in the users file named by the config.
func RunUser(args []string) error {
	return runUser(args, os.Stdin, os.Stdout)
}

func runUser(args []string, in io.Reader, out io.Writer) error {
	if len(args) < 1 {
		printUserUsage(out)
		return errors.New("missing user command")
	}

	flags := flag.NewFlagSet("user "+args[0], flag.ContinueOnError)
	flags.SetOutput(out)
	configFile := flags.String("config", "", "Configuration file")
	flags.StringVar(configFile, "c", "", "Configuration file (short)")
	password := flags.String("password", "", "Password (read from stdin when omitted)")
	if err := flags.Parse(args[1:]); err != nil {
		return err
	}

	store, err := openUserStore(*configFile)
	if err != nil {
		return err
	}

	switch args[0] {
	case "add":
		name, err := oneArg(flags, "user add <name>")
		if err != nil {
			return err
		}
		pw, err := readPassword(*password, in, out)
		if err != nil {
			return err
		}
		if err := store.CreateUser(name, pw); err != nil {
			return err
		}
		Printer.Fprintf(out, "User %s added\n", name)

	case "passwd":
		name, err := oneArg(flags, "user passwd <name>")
		if err != nil {
			return err
		}
		pw, err := readPassword(*password, in, out)
		if err != nil {
			return err
		}
		if err := store.UpdatePassword(name, pw); err != nil {
			return err
		}
		Printer.Fprintf(out, "Password for %s updated\n", name)

	case "del", "delete", "rm":
		name, err := oneArg(flags, "user del <name>")
		if err != nil {
			return err
		}
		if err := store.DeleteUser(name); err != nil {
			return err
		}
		Printer.Fprintf(out, "User %s deleted\n", name)

	case "list", "ls":
		w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "USERNAME\tCREATED")
		for _, u := range store.ListUsers() {
			fmt.Fprintf(w, "%s\t%s\n", u.Username, u.CreatedAt.Format("2006-01-02 15:04"))
		}
		w.Flush()

	default:
		printUserUsage(out)
		return fmt.Errorf("unknown user command: %s", args[0])
	}
	return nil
}

func openUserStore(configFile string) (*auth.Store, error) {
	path := configPath(configFile)
	cfg, err := config.LoadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) || configFile != "" {
			return nil, err
		}
		// No config yet: fall back to the default state directory.
		cfg = config.DefaultConfig()
	}
	return auth.NewStore(cfg.UsersPath())
}

func oneArg(flags *flag.FlagSet, usage string) (string, error) {
	if flags.NArg() != 1 {
		return "", fmt.Errorf("usage: %s", usage)
	}
	return flags.Arg(0), nil
}

// readPassword returns flagValue or the first line of in.
func readPassword(flagValue string, in io.Reader, out io.Writer) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	Printer.Fprintf(out, "Password: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty password")
	}
	return line, nil
}

func printUserUsage(out io.Writer) {
	Printer.Fprintf(out, `Usage: netguard user <command> [-c config] [args]

Commands:
  add <name>      Create a portal user (password from -password or stdin)
  passwd <name>   Change a user's password
  del <name>      Delete a user
  list            List users
`)
}
