// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package prompt asks yes/no questions on a terminal.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/zeebo/errs"
)

// Error is the default error class for prompt package.
var Error = errs.Class("prompt")

// Confirm writes question to out and reads answers from in until one of
// them is a yes or a no. Running out of input counts as no.
func Confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	scanner := bufio.NewScanner(in)
	for {
		if _, err := fmt.Fprint(out, question+" [y/n]: "); err != nil {
			return false, Error.Wrap(err)
		}
		if !scanner.Scan() {
			return false, Error.Wrap(scanner.Err())
		}

		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "yes", "y", "true":
			return true, nil
		case "no", "n", "false":
			return false, nil
		}
	}
}
