package main

import (
	"github.com/lithium-ci/lithium/cmd"
	"github.com/lithium-ci/lithium/pkg/env"
	"github.com/lithium-ci/lithium/pkg/log"
)

func main() {
	if err := env.Process(); err != nil {
		log.Fatal("environment failure", "error", err)
	}

	if err := cmd.Execute(); err != nil {
		log.Fatal("lithium failure", "error", err)
	}
}
