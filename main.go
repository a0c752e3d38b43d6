package main

import (
	"log"

	_ "github.com/anoixa/cat-catalog/docs"

	"github.com/anoixa/cat-catalog/config"

	"github.com/anoixa/cat-catalog/cmd"
)

// @title        Cat Catalog API
// @version      1.0
// @description  List, fetch and upload cats.
// @BasePath     /api
func main() {
	log.Printf("cat catalog %s (%s)", config.Version, config.CommitHash)
	cmd.Execute()
}
