package main

import "github.com/calidris/movetrack/cmd"

func main() {
	cmd.Execute()
}
