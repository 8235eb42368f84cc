package main

import "turnover-sync/cmd"

func main() {
	cmd.Execute()
}
