// Command procsim runs process-interaction simulations.
package main

import "github.com/sarchlab/procsim/cmd"

func main() {
	cmd.Execute()
}
