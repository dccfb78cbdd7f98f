package main

import (
	"ccranking/cmd/ccranking/commands"
	"ccranking/pkg/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
