// Package repository holds the MySQL-backed credential store. The sentinel
// errors below let the service layer tell "no such row" apart from
// infrastructure failures, which it must never turn into a security
// decision.
package repository

import "errors"

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned by UserRepo.Create on a duplicate email.
var ErrEmailExists = errors.New("email already exists")
