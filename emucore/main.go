// Command emucore records and replays runs of the demo machine.
package main

import "github.com/sarchlab/emucore/emucore/cmd"

func main() {
	cmd.Execute()
}
