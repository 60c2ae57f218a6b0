// Package daemonrun hosts the foreground daemon process shared by the
// classcoachd binary and the `classcoach daemon` command.
package daemonrun
