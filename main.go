// Package main implements the blockview executable.
package main

import "github.com/oasisprotocol/blockview/cmd"

func main() {
	cmd.Execute()
}
