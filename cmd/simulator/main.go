// Package main is the scenario simulator CLI.
package main

func main() {
	Execute()
}
