package main

import (
	"os"

	_ "github.com/effectai/engine-sub003/pkg/logger"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
