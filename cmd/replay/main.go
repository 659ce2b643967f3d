package main

import (
	"context"
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/danielpatrickdp/progression-engine/internal/cli"
)

// #region main

// replay is the standalone form of "progressionctl replay".
func main() {
	root := cli.NewRootCommand("replay")
	root.SetArgs(append([]string{"replay"}, os.Args[1:]...))
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}

// #endregion main
