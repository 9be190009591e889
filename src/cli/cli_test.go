// This file is part of Latsar.

// Latsar is free software released under the MIT License.
// See LICENSE.md file for details.

package cli

import (
	"errors"
	"testing"
	"time"
)

func newTestCLI(env map[string]string) *CLI {
	c := New("test", "LATSAR_")
	c.lookupEnv = func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}
	return c
}

func TestParseArgs(t *testing.T) {
	c := newTestCLI(map[string]string{
		"LATSAR_DB_SOURCE": "/env/cache.db",
		"LATSAR_ADDRESS":   "env:1",
	})
	address := c.AddStringVar("address", ":8080", "listen address", nil)
	source := c.AddStringVar("db-source", "", "database source", nil)
	debug := c.AddBoolVar("debug", "debug logging")
	timeout := c.AddDurationVar("shutdown-timeout", "10s", "shutdown timeout", nil)

	err := c.ParseArgs([]string{"--address", "127.0.0.1:9000", "-debug", "-shutdown-timeout=1m", "push", "-x"})
	if err != nil {
		t.Fatal(err)
	}

	if *address != "127.0.0.1:9000" {
		t.Errorf("address = %q", *address)
	}
	if *source != "/env/cache.db" {
		t.Errorf("db-source = %q", *source)
	}
	if !*debug {
		t.Error("debug not set")
	}
	if *timeout != time.Minute {
		t.Errorf("shutdown-timeout = %s", *timeout)
	}

	args := c.Args()
	if len(args) != 2 || args[0] != "push" || args[1] != "-x" {
		t.Errorf("args = %q", args)
	}
}

func TestParseArgsErrors(t *testing.T) {
	tests := map[string][]string{
		"unknown":  {"-nope"},
		"twice":    {"-address", "a", "-address", "b"},
		"no value": {"-address"},
	}

	for name, args := range tests {
		c := newTestCLI(nil)
		c.AddStringVar("address", "", "listen address", nil)
		if err := c.ParseArgs(args); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestParseArgsRequired(t *testing.T) {
	c := newTestCLI(nil)
	c.AddStringVar("config", "", "config file", &FlagOptions{Required: true})
	if err := c.ParseArgs(nil); err == nil {
		t.Fatal("expected missing flag error")
	}

	c = newTestCLI(map[string]string{"LATSAR_CONFIG": "/etc/latsar.yml"})
	c.AddStringVar("config", "", "config file", &FlagOptions{Required: true})
	if err := c.ParseArgs(nil); err != nil {
		t.Fatal(err)
	}
}

func TestParseArgsHelpVersion(t *testing.T) {
	c := newTestCLI(nil)
	if err := c.ParseArgs([]string{"--help"}); !errors.Is(err, errHelp) {
		t.Errorf("help: got %v", err)
	}
	if err := c.ParseArgs([]string{"-version"}); !errors.Is(err, errVersion) {
		t.Errorf("version: got %v", err)
	}
}
