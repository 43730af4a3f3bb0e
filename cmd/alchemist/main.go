// Command alchemist serves the CV Alchemist application from a pre-fork
// worker pool bound to $PORT.
package main

import "github.com/mesh-intelligence/cvalchemist/internal/cli"

func main() {
	cli.Execute()
}
