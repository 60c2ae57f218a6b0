// Command classcoach is the command-line client for the classcoach daemon.
//
// Most commands talk to a running daemon over its HTTP API: submit uploads a
// recording, status/show/list read analyses back, and export writes history
// to a spreadsheet. analyze runs one recording through the pipeline in
// process without a daemon, and daemon runs the daemon in the foreground.
package main
