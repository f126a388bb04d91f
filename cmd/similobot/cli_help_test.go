package main

import (
	"bytes"
	"strings"
	"testing"
)

func runRootCommandForTest(args ...string) (string, error) {
	root := buildRootCommand()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestCLIRootHelpListsCommands(t *testing.T) {
	t.Parallel()

	output, err := runRootCommandForTest("--help")
	if err != nil {
		t.Fatalf("execute --help: %v\nOutput:\n%s", err, output)
	}

	for _, want := range []string{"onboard", "chat", "serve", "status", "sessions", "version"} {
		if !strings.Contains(output, want) {
			t.Errorf("root help missing %q\nOutput:\n%s", want, output)
		}
	}
}

func TestCLISessionsHelp(t *testing.T) {
	t.Parallel()

	output, err := runRootCommandForTest("sessions", "--help")
	if err != nil {
		t.Fatalf("execute sessions --help: %v\nOutput:\n%s", err, output)
	}

	for _, want := range []string{"list", "purge"} {
		if !strings.Contains(output, want) {
			t.Errorf("sessions help missing %q\nOutput:\n%s", want, output)
		}
	}
}

func TestCLIBareInvocationFails(t *testing.T) {
	t.Parallel()

	_, err := runRootCommandForTest()
	if err == nil {
		t.Fatal("expected error when no subcommand is given")
	}
	if !strings.Contains(err.Error(), "subcommand") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCLIVersionFlag(t *testing.T) {
	// printVersion writes to stdout directly, so only assert it succeeds.
	_, err := runRootCommandForTest("--version")
	if err != nil {
		t.Fatalf("execute --version: %v", err)
	}
}
