// Command devolve runs the boss process and a reference worker.
package main

import "github.com/amberarrow/devolve/cmd"

func main() {
	cmd.Execute()
}
