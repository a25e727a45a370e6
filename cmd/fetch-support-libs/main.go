// Command fetch-support-libs downloads the prebuilt Windows support libraries
// matching the DCMTK release checked out in the current directory.
package main

import "github.com/dcmtk-tools/support-libs/cmd/fetch-support-libs/cmd"

func main() {
	cmd.Execute()
}
