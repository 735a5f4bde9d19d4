// Command mapcov checks that every FHIR mapping rule is covered by the
// project's test suite.
package main

import "github.com/BAL-DMU/mapcov/cmd"

func main() {
	cmd.Execute()
}
