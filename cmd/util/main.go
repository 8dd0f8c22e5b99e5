package main

import (
	"github.com/jettonkit/airdrop/cmd/util/cmd"
)

func main() {
	cmd.Execute()
}
