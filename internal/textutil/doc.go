// Package textutil provides filename sanitization for user-supplied names.
package textutil
