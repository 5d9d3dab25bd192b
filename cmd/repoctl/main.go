// Command repoctl inspects repository configuration and the stores behind it.
package main

import "github.com/nimburion/repokit/pkg/cli"

func main() {
	cli.Execute(cli.NewRootCommand(cli.Options{
		Name:        "repoctl",
		Description: "Inspect repokit stores and collections",
		EnvPrefix:   "REPOKIT",
	}))
}
