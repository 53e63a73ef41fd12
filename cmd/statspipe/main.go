package main

import (
	"os"

	"github.com/communitystats/statspipe/internal/commands"
)

func main() {
	os.Exit(commands.Execute())
}
