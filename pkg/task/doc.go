// Package task provides the host side of a build task: the input variants a
// task is fed, ordered output → input mappings decoded from YAML, glob
// expansion and a Base that writes outputs under a dist directory.
package task
