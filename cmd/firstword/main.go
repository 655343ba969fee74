package main

import (
	"fmt"
	"io"
	"os"

	"github.com/samandartukhtayev/first-steps/wordscan"
)

func main() {
	if err := run(os.Stdout); err != nil {
		os.Exit(1)
	}
}

func run(w io.Writer) error {
	s := "hello, world!"
	_, err := fmt.Fprintln(w, wordscan.FirstWord(s))
	return err
}
