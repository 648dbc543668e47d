// ABOUTME: Entry point for the kith CLI, API server and MCP server
// ABOUTME: All routing lives in the cobra command tree under cli/
package main

import "github.com/harperreed/kith/cli"

func main() {
	cli.Execute()
}
