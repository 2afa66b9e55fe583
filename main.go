package main

import "github.com/protocolzero/codepolice/cmd"

func main() {
	cmd.Execute()
}
