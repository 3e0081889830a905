package main

import (
	"log"
	"os"

	"github.com/TFMV/filelist/cmd"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("filelist: ")

	// Set up a deferred function to recover from panics.
	defer func() {
		if r := recover(); r != nil {
			log.Printf("recovered from panic: %v", r)
			os.Exit(2)
		}
	}()

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
