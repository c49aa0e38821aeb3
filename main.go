/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/mautops/submission-workflow/cmd"

func main() {
	cmd.Execute()
}
