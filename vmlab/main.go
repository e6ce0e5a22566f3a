package main

import "github.com/vmlab-project/vmlab/vmlab/cmd"

func main() {
	cmd.Execute()
}
