// Command eventctl runs operator tasks: migrations, seeding, admin accounts and reminder sweeps.
package main

import (
	"fmt"
	"os"

	"github.com/unievents/backend/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
