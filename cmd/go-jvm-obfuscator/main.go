/*
JVM Archive Obfuscator (Entry Point)

This tool reads a JAR, rewrites method calls into encrypted invokedynamic
call sites resolved by a generated bootstrap class, and writes the result,
optionally laid out to break common archive tooling.
*/
package main

import (
	"github.com/whit3rabbit/jvmmixer/cmd/go-jvm-obfuscator/cmd"
)

// main is the entry point of the application.
func main() {
	cmd.Execute()
}
