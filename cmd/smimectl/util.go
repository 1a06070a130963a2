package main

import "errors"

func fmtError(msg string) error { return errors.New(msg) }
