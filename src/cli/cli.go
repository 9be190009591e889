// This file is part of Latsar.

// Latsar is free software released under the MIT License.
// See LICENSE.md file for details.

// Package cli is a small flag parser. Every flag can also be set from an
// environment variable: "db-source" with prefix "LATSAR_" reads
// LATSAR_DB_SOURCE. Flags given on the command line win.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	errHelp    = errors.New("help requested")
	errVersion = errors.New("version requested")
)

type variable struct {
	name        string
	cliFlagName string

	preHook func(string) (string, error)

	value        interface{}
	valueDefault string
	required     bool
	usage        string
}

type CLI struct {
	version   string
	envPrefix string
	out       io.Writer
	lookupEnv func(string) (string, bool)

	vars []variable
	args []string
}

type FlagOptions struct {
	Required bool
	PreHook  func(string) (string, error)
}

func New(version, envPrefix string) *CLI {
	return &CLI{
		version:   version,
		envPrefix: envPrefix,
		out:       os.Stdout,
		lookupEnv: os.LookupEnv,
	}
}

// envName turns "db-driver" into "<prefix>DB_DRIVER".
func (c *CLI) envName(name string) string {
	return c.envPrefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

func (c *CLI) addVar(name string, value interface{}, defValue string, usage string, opts *FlagOptions) {
	if name == "" {
		panic("cli: add variable: variable name could not be empty")
	}
	if usage == "" {
		panic("cli: flag \"" + name + "\" has empty \"usage\" field")
	}
	if opts == nil {
		opts = &FlagOptions{}
	}

	c.vars = append(c.vars, variable{
		name:         name,
		cliFlagName:  "-" + name,
		preHook:      opts.PreHook,
		value:        value,
		valueDefault: defValue,
		required:     opts.Required,
		usage:        usage,
	})
}

func (c *CLI) AddStringVar(name, defValue string, usage string, opts *FlagOptions) *string {
	if opts != nil && opts.PreHook != nil {
		var err error
		defValue, err = opts.PreHook(defValue)
		if err != nil {
			panic("cli: add string variable \"" + name + "\": " + err.Error())
		}
	}

	val := &defValue
	c.addVar(name, val, defValue, usage, opts)
	return val
}

func (c *CLI) AddBoolVar(name string, usage string) *bool {
	val := new(bool)
	c.addVar(name, val, "", usage, nil)
	return val
}

func (c *CLI) AddDurationVar(name, defValue string, usage string, opts *FlagOptions) *time.Duration {
	valDuration, err := ParseDuration(defValue)
	if err != nil {
		panic("cli: add duration variable \"" + name + "\": " + err.Error())
	}

	val := &valDuration
	c.addVar(name, val, defValue, usage, opts)
	return val
}

func writeVar(val string, to interface{}, preHook func(string) (string, error)) error {
	if preHook != nil {
		var err error
		val, err = preHook(val)
		if err != nil {
			return err
		}
	}

	switch to := to.(type) {
	case *string:
		*to = val

	case *bool:
		b, err := strconv.ParseBool(val)
		if err != nil {
			return err
		}
		*to = b

	case *time.Duration:
		d, err := ParseDuration(val)
		if err != nil {
			return err
		}
		*to = d

	default:
		panic("cli: write variable: unknown \"to\" argument type")
	}

	return nil
}

func (c *CLI) printHelp() {
	var maxFlagSize int
	var reqFlags string

	for _, v := range c.vars {
		if len(v.cliFlagName) > maxFlagSize {
			maxFlagSize = len(v.cliFlagName)
		}
		if v.required {
			reqFlags += "[" + v.cliFlagName + "] "
		}
	}

	fmt.Fprintln(c.out, "Usage:", os.Args[0], reqFlags+"[OPTION]... [ARG]...")
	fmt.Fprintln(c.out)

	for _, v := range c.vars {
		spaces := strings.Repeat(" ", maxFlagSize-len(v.cliFlagName)+2)

		var defaultStr string
		if v.valueDefault != "" {
			defaultStr = " (default: " + v.valueDefault + ")"
		}

		fmt.Fprintln(c.out, " ", v.cliFlagName, spaces, v.usage+defaultStr, "["+c.envName(v.name)+"]")
	}

	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "  -version   Display version and exit.")
	fmt.Fprintln(c.out, "  -help      Display this help and exit.")
}

// normalizeFlag converts --flag to -flag
func normalizeFlag(arg string) string {
	if strings.HasPrefix(arg, "--") {
		return strings.TrimPrefix(arg, "-")
	}
	return arg
}

func (c *CLI) lookup(flag string) *variable {
	for i := range c.vars {
		if c.vars[i].cliFlagName == flag {
			return &c.vars[i]
		}
	}
	return nil
}

// ParseArgs reads the environment and then args. Parsing stops at the
// first argument that is not a flag, or after "--"; the rest is kept
// for Args.
func (c *CLI) ParseArgs(args []string) error {
	readVars := make(map[string]struct{})

	for i := range c.vars {
		v := &c.vars[i]
		envVal, found := c.lookupEnv(c.envName(v.name))
		if !found || envVal == "" {
			continue
		}
		if err := writeVar(envVal, v.value, v.preHook); err != nil {
			return fmt.Errorf("read environment variable %s: %w", c.envName(v.name), err)
		}
		readVars[v.name] = struct{}{}
	}

	alreadyRead := make(map[string]struct{})
	c.args = nil

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			c.args = args[i+1:]
			break
		}
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			c.args = args[i:]
			break
		}

		flag, value, hasValue := strings.Cut(normalizeFlag(arg), "=")
		switch flag {
		case "-version":
			return errVersion
		case "-help", "-h":
			return errHelp
		}

		if _, exist := alreadyRead[flag]; exist {
			return fmt.Errorf("flag %q occurs twice", flag)
		}

		v := c.lookup(flag)
		if v == nil {
			return fmt.Errorf("unknown flag %q", arg)
		}
		alreadyRead[flag] = struct{}{}
		readVars[v.name] = struct{}{}

		if _, isBool := v.value.(*bool); isBool && !hasValue {
			*(v.value.(*bool)) = true
			continue
		}

		if !hasValue {
			if i+1 >= len(args) {
				return fmt.Errorf("no value for %q flag", v.cliFlagName)
			}
			i++
			value = args[i]
		}

		if err := writeVar(value, v.value, v.preHook); err != nil {
			return fmt.Errorf("read %q flag: %w", v.cliFlagName, err)
		}
	}

	for _, v := range c.vars {
		if !v.required {
			continue
		}
		if _, ok := readVars[v.name]; !ok {
			return fmt.Errorf("%q flag is missing", v.cliFlagName)
		}
	}

	return nil
}

// Parse parses os.Args. It exits on -help, -version or a bad flag.
func (c *CLI) Parse() {
	err := c.ParseArgs(os.Args[1:])
	switch {
	case err == nil:
		return
	case errors.Is(err, errHelp):
		c.printHelp()
		os.Exit(0)
	case errors.Is(err, errVersion):
		fmt.Fprintln(c.out, c.version)
		os.Exit(0)
	default:
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}
}

// Args returns the arguments left after the flags.
func (c *CLI) Args() []string {
	return c.args
}
