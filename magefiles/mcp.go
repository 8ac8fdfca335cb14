//go:build mage

package main

import (
	"fmt"
	"os"
	"os/exec"
)

// Mcp builds and runs the paper-search MCP server over stdio.
func Mcp() error {
	if err := Build(); err != nil {
		return err
	}
	cmd := exec.Command("./bin/paper-search-mcp")
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	fmt.Println("[mcp] Starting paper-search MCP server on stdio.")
	return cmd.Run()
}
