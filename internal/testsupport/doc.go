// Package testsupport provides shared fixtures for offload tests: temp-dir
// configs, sized source files, ledger stores, and catalog index databases.
package testsupport
