package main

import (
	"log"

	"github.com/llmrelay/llmrelay/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
