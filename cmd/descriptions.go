package cmd

const rootLongDescription = `mapcov verifies that every rule in a set of FHIR mapping language
files is exercised by the project's test suite.

It disables one rule at a time, uploads the modified map to a running
matchbox engine and reruns the tests associated with that map. A rule
whose removal makes at least one test fail is covered; a rule whose
removal goes unnoticed is missing coverage.

The engine is always restored to the unmodified maps, even when a run
is interrupted.`

const listLongDescription = `List every mapping rule that a verification run would disable, per
mapping file, without contacting the engine or running any tests.`

const cleanLongDescription = `Delete the previously uploaded StructureMaps from the engine, in
reverse dependency order. Maps the engine does not hold are ignored.`
