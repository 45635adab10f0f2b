package main

import (
	"fmt"
	"os"

	"certus/pkg/digest"
)

func runHash(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "hash requires <file>")
		return 1
	}
	sum, err := digest.SHA256File(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash %s: %v\n", args[0], err)
		return 1
	}
	fmt.Println(sum)
	return 0
}
