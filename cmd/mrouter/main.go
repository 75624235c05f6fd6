package main

import "github.com/wrcad/xictools-sub010/cmd/mrouter/cmd"

func main() {
	cmd.Execute()
}
