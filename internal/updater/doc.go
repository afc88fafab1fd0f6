// Package updater implements the self-update mechanism for an installed
// package. A Checker fetches a remote JSON manifest, compares its version to
// the installed one using semantic-version precedence, remembers the last
// successful check per package so hot paths can skip redundant fetches, and
// applies an update by downloading, verifying, and atomically swapping the
// package directory. Failures never leave a partial install behind.
package updater
