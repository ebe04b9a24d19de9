package main

import (
	"github.com/cryptotheoryum/adex-validator/cmd"
)

func main() {
	cmd.Execute()
}
