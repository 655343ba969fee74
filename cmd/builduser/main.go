package main

import (
	"io"
	"os"

	"github.com/samandartukhtayev/first-steps/models"
)

func main() {
	if _, err := run(os.Stdout); err != nil {
		os.Exit(1)
	}
}

// run builds the record and writes nothing to w
func run(w io.Writer) (*models.User, error) {
	return models.BuildUser("someone@example.com", "someusername123"), nil
}
