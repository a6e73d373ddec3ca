package main

import "github.com/mautops/integration-monitor/cmd"

func main() {
	cmd.Execute()
}
