package main

import "github.com/chris/hbrowse/cmd"

func main() {
	cmd.Execute()
}
