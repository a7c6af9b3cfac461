package main

import (
	"flag"
	"os"

	"grimm.is/netguard/cmd"
	"grimm.is/netguard/internal/brand"
	"grimm.is/netguard/internal/i18n"
)

var printer = i18n.NewCLIPrinter()

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "start":
		startFlags := flag.NewFlagSet("start", flag.ExitOnError)
		configFile := startFlags.String("config", brand.DefaultConfigPath(), "Configuration file")
		startFlags.StringVar(configFile, "c", brand.DefaultConfigPath(), "Configuration file (short)")
		startFlags.Parse(os.Args[2:])

		if err := cmd.RunStart(*configFile); err != nil {
			printer.Fprintf(os.Stderr, "Start failed: %v\n", err)
			os.Exit(1)
		}

	case "check":
		checkFlags := flag.NewFlagSet("check", flag.ExitOnError)
		verbose := checkFlags.Bool("verbose", false, "Verbose output")
		checkFlags.BoolVar(verbose, "v", false, "Verbose output (short)")
		checkFlags.Parse(os.Args[2:])

		configFile := brand.DefaultConfigPath()
		if len(checkFlags.Args()) > 0 {
			configFile = checkFlags.Arg(0)
		}

		if err := cmd.RunCheck(configFile, *verbose); err != nil {
			printer.Fprintf(os.Stderr, "Check failed: %v\n", err)
			os.Exit(1)
		}

	case "user":
		if err := cmd.RunUser(os.Args[2:]); err != nil {
			printer.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}

	case "config":
		if len(os.Args) < 3 || os.Args[2] != "init" {
			printer.Println("Usage: " + brand.BinaryName + " config init [-force] [path]")
			os.Exit(1)
		}
		initFlags := flag.NewFlagSet("config init", flag.ExitOnError)
		force := initFlags.Bool("force", false, "Overwrite an existing file")
		initFlags.Parse(os.Args[3:])

		if err := cmd.RunConfigInit(initFlags.Arg(0), *force); err != nil {
			printer.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}

	case "version", "-v", "--version":
		cmd.PrintVersion()

	case "help", "-h", "--help":
		printUsage()

	default:
		printer.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	printer.Printf(`%s - %s

Usage: %s <command> [options]

Commands:
  start [-c file]          Run the gateway in the foreground
  check [-v] [file]        Validate configuration and show the baseline ruleset
  user <add|passwd|del|list>
                           Manage portal accounts
  config init [path]       Write a default configuration file
  version                  Show version information

Signals (start):
  SIGHUP   reload configuration and users
  SIGUSR1  run an integrity sweep now
`, brand.Name, brand.Description, brand.BinaryName)
}
