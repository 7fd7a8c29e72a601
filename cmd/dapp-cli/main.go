package main

import "dapp-core/cmd/dapp-cli/cmd"

func main() {
	cmd.Execute()
}
