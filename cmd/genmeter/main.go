// Package main is the entry point for the genmeter service.
package main

func main() {
	Execute()
}
