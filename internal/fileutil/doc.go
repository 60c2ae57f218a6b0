// Package fileutil writes files so that readers never observe partial content.
package fileutil
