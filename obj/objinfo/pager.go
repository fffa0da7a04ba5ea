// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"io"
	"os"
	"os/exec"

	"github.com/kballard/go-shellquote"
	"github.com/pkg/errors"
)

// pagerCommand returns the pager command line for table output on a
// terminal, or "" if output should not be paged. OBJINFO_PAGER takes
// precedence over PAGER, and "cat" means no pager.
func pagerCommand() string {
	switch os.Getenv("TERM") {
	case "", "dumb":
		return ""
	}
	cmd, ok := os.LookupEnv("OBJINFO_PAGER")
	if !ok {
		cmd, ok = os.LookupEnv("PAGER")
	}
	if !ok {
		cmd = "less"
	}
	if cmd == "cat" {
		return ""
	}
	return cmd
}

// A pager is a running pager process. Writes go to its input.
type pager struct {
	cmd *exec.Cmd
	in  io.WriteCloser
}

// startPager starts the shell-quoted command line cmdline with its
// output going to stdout and stderr.
func startPager(cmdline string, stdout, stderr io.Writer) (*pager, error) {
	argv, err := shellquote.Split(cmdline)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing pager %q", cmdline)
	}
	if len(argv) == 0 {
		return nil, errors.New("empty pager command")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	// -F so single-screen output doesn't invoke paging.
	cmd.Env = append(os.Environ(), "LESS=-FR "+os.Getenv("LESS"))
	if os.Getenv("LV") == "" {
		cmd.Env = append(cmd.Env, "LV=-c")
	}
	in, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "starting pager %q", cmdline)
	}
	return &pager{cmd, in}, nil
}

func (p *pager) Write(b []byte) (int, error) {
	return p.in.Write(b)
}

// Close closes the pager's input and waits for it to exit.
func (p *pager) Close() error {
	p.in.Close()
	return p.cmd.Wait()
}
