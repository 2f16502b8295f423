// Package deps checks for the external binaries obsdemux shells out to.
package deps
