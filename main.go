package main

import "github.com/caedis/mod-updater/cmd"

func main() {
	cmd.Execute()
}
